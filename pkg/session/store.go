package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"tourdesk/pkg/apperr"
	"tourdesk/pkg/logger"
	"tourdesk/pkg/store"
)

const defaultIdleExpiry = 24 * time.Hour

// Store reads and merges conversation contexts on top of a key-value store.
type Store struct {
	kv   store.Store
	idle time.Duration
	now  func() time.Time
	log  *slog.Logger
}

// Option customizes a Store.
type Option func(*Store)

func WithIdleExpiry(d time.Duration) Option {
	return func(s *Store) {
		if d > 0 {
			s.idle = d
		}
	}
}

func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		if now != nil {
			s.now = now
		}
	}
}

func WithLogger(log *slog.Logger) Option {
	return func(s *Store) {
		s.log = logger.OrDefault(log).With("component", "session.store")
	}
}

func NewStore(kv store.Store, opts ...Option) *Store {
	s := &Store{
		kv:   kv,
		idle: defaultIdleExpiry,
		now:  time.Now,
		log:  slog.Default().With("component", "session.store"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Get returns the context for id. A missing or idle-expired context comes
// back fresh. When the store is unreachable the fresh context is returned
// together with a persistence_unavailable error.
func (s *Store) Get(ctx context.Context, id string) (Context, error) {
	raw, err := s.kv.Get(ctx, store.ContextKey(id))
	if errors.Is(err, store.ErrNotFound) {
		return s.fresh(id), nil
	}
	if err != nil {
		s.log.Warn("Session read degraded", "conversation_id", id, "error", err)
		return s.fresh(id), apperr.Wrapf(apperr.PersistenceUnavailable, err, "load context")
	}

	c, ok := s.decode(id, raw)
	if !ok {
		return s.fresh(id), nil
	}
	return c, nil
}

// Merge applies p to the stored context atomically and returns the result.
// On store failure the merge is applied to a fresh context so the caller can
// still answer this turn statelessly.
func (s *Store) Merge(ctx context.Context, id string, p Partial) (Context, error) {
	var merged Context
	err := s.kv.Update(ctx, store.ContextKey(id), s.idle, func(current []byte) ([]byte, error) {
		base := s.fresh(id)
		if current != nil {
			if c, ok := s.decode(id, current); ok {
				base = c
			}
		}
		merged = base.Apply(p, s.now())
		return json.Marshal(merged)
	})
	if err != nil {
		s.log.Warn("Session merge degraded", "conversation_id", id, "error", err)
		return s.fresh(id).Apply(p, s.now()), apperr.Wrapf(apperr.PersistenceUnavailable, err, "merge context")
	}
	return merged, nil
}

// Reset clears slots and flow state. When keepOriginal is set the original
// query survives the reset.
func (s *Store) Reset(ctx context.Context, id string, keepOriginal bool) (Context, error) {
	var reset Context
	err := s.kv.Update(ctx, store.ContextKey(id), s.idle, func(current []byte) ([]byte, error) {
		reset = s.fresh(id)
		if keepOriginal && current != nil {
			if c, ok := s.decode(id, current); ok {
				reset.OriginalQuery = c.OriginalQuery
			}
		}
		reset.LastUpdated = s.now()
		return json.Marshal(reset)
	})
	if err != nil {
		s.log.Warn("Session reset degraded", "conversation_id", id, "error", err)
		return s.fresh(id), apperr.Wrapf(apperr.PersistenceUnavailable, err, "reset context")
	}
	return reset, nil
}

func (s *Store) fresh(id string) Context {
	return Context{ConversationID: id, CreatedAt: s.now()}
}

// decode parses a stored context and applies lazy idle expiry.
func (s *Store) decode(id string, raw []byte) (Context, bool) {
	var c Context
	if err := json.Unmarshal(raw, &c); err != nil {
		s.log.Warn("Discarding unreadable session", "conversation_id", id, "error", err)
		return Context{}, false
	}
	if !c.LastUpdated.IsZero() && s.now().Sub(c.LastUpdated) > s.idle {
		s.log.Debug("Session expired", "conversation_id", id, "last_updated", c.LastUpdated)
		return Context{}, false
	}
	if c.ConversationID == "" {
		c.ConversationID = id
	}
	return c, true
}

// String is used in debug logs.
func (c Context) String() string {
	return fmt.Sprintf("context(%s flow=%s missing=%v)", c.ConversationID, c.PendingFlow, c.Slots.Missing())
}
