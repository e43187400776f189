// Package memstore is the in-process Store used for single-node deployments
// and tests.
package memstore

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"tourdesk/pkg/logger"
	"tourdesk/pkg/store"
)

type entry struct {
	value     []byte
	expiresAt time.Time
}

func (e entry) expired(now time.Time) bool {
	return !e.expiresAt.IsZero() && !now.Before(e.expiresAt)
}

// Store keeps values in a map guarded by a mutex. Expired entries are hidden
// on read and removed by Sweep.
type Store struct {
	mu      sync.Mutex
	items   map[string]entry
	now     func() time.Time
	log     *slog.Logger
	janitor *cron.Cron
}

// Option customizes a Store.
type Option func(*Store)

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		if now != nil {
			s.now = now
		}
	}
}

// WithLogger sets the store logger.
func WithLogger(log *slog.Logger) Option {
	return func(s *Store) {
		s.log = logger.OrDefault(log).With("component", "store.memory")
	}
}

func New(opts ...Option) *Store {
	s := &Store{
		items: make(map[string]entry),
		now:   time.Now,
		log:   slog.Default().With("component", "store.memory"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Store) Get(_ context.Context, key string) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.items[key]
	if !ok || e.expired(s.now()) {
		return nil, store.ErrNotFound
	}
	return clone(e.value), nil
}

func (s *Store) Put(_ context.Context, key string, value []byte, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.items[key] = s.newEntry(value, ttl)
	return nil
}

func (s *Store) PutIfAbsent(_ context.Context, key string, value []byte, ttl time.Duration) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if e, ok := s.items[key]; ok && !e.expired(s.now()) {
		return false, nil
	}
	s.items[key] = s.newEntry(value, ttl)
	return true, nil
}

func (s *Store) Update(_ context.Context, key string, ttl time.Duration, fn store.UpdateFunc) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var current []byte
	if e, ok := s.items[key]; ok && !e.expired(s.now()) {
		current = clone(e.value)
	}

	next, err := fn(current)
	if err != nil {
		return err
	}
	if next == nil {
		delete(s.items, key)
		return nil
	}
	s.items[key] = s.newEntry(next, ttl)
	return nil
}

func (s *Store) Delete(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.items, key)
	return nil
}

func (s *Store) Ping(context.Context) error { return nil }

// Len returns the number of stored entries, including expired ones that have
// not been swept yet.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.items)
}

// Sweep removes expired entries and returns how many were dropped.
func (s *Store) Sweep() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	removed := 0
	for key, e := range s.items {
		if e.expired(now) {
			delete(s.items, key)
			removed++
		}
	}
	return removed
}

// StartJanitor schedules Sweep with a cron spec such as "@every 1m".
func (s *Store) StartJanitor(spec string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.janitor != nil {
		return nil
	}

	c := cron.New()
	if _, err := c.AddFunc(spec, func() {
		if removed := s.Sweep(); removed > 0 {
			s.log.Debug("Swept expired entries", "removed", removed)
		}
	}); err != nil {
		return fmt.Errorf("schedule janitor %q: %w", spec, err)
	}
	c.Start()
	s.janitor = c
	return nil
}

// Close stops the janitor, if running.
func (s *Store) Close() error {
	s.mu.Lock()
	c := s.janitor
	s.janitor = nil
	s.mu.Unlock()

	if c != nil {
		<-c.Stop().Done()
	}
	return nil
}

func (s *Store) newEntry(value []byte, ttl time.Duration) entry {
	e := entry{value: clone(value)}
	if ttl > 0 {
		e.expiresAt = s.now().Add(ttl)
	}
	return e
}

func clone(b []byte) []byte {
	if b == nil {
		return nil
	}
	out := make([]byte, len(b))
	copy(out, b)
	return out
}

var _ store.Store = (*Store)(nil)
