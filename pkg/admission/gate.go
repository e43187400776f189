// Package admission rejects duplicate and stale inbound events before they
// reach the aggregator.
package admission

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"tourdesk/pkg/apperr"
	"tourdesk/pkg/bus"
	"tourdesk/pkg/logger"
	"tourdesk/pkg/store"
)

const (
	defaultStaleness = 5 * time.Minute
	bucketWidth      = time.Second
)

// Verdict is the outcome of Admit.
type Verdict int

const (
	Accepted Verdict = iota
	DuplicateRejected
	StaleRejected
)

func (v Verdict) String() string {
	switch v {
	case Accepted:
		return "accepted"
	case DuplicateRejected:
		return "duplicate_rejected"
	case StaleRejected:
		return "stale_rejected"
	default:
		return "unknown"
	}
}

// Gate records fingerprints of admitted events for the staleness window.
type Gate struct {
	kv        store.Store
	staleness time.Duration
	now       func() time.Time
	log       *slog.Logger
}

type Option func(*Gate)

func WithStaleness(d time.Duration) Option {
	return func(g *Gate) {
		if d > 0 {
			g.staleness = d
		}
	}
}

func WithClock(now func() time.Time) Option {
	return func(g *Gate) {
		if now != nil {
			g.now = now
		}
	}
}

func WithLogger(log *slog.Logger) Option {
	return func(g *Gate) {
		g.log = logger.OrDefault(log).With("component", "admission")
	}
}

func NewGate(kv store.Store, opts ...Option) *Gate {
	g := &Gate{
		kv:        kv,
		staleness: defaultStaleness,
		now:       time.Now,
		log:       slog.Default().With("component", "admission"),
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Admit classifies ev. Check and record happen in one PutIfAbsent, so two
// identical events racing each other admit exactly once.
//
// If the admission record cannot be written the event is accepted and the
// returned error carries persistence_unavailable.
func (g *Gate) Admit(ctx context.Context, ev bus.InboundEvent) (Verdict, error) {
	now := g.now()
	at := ev.Timestamp
	if at.IsZero() {
		at = now
	}

	if now.Sub(at) > g.staleness {
		g.log.Debug("Rejected stale event", "conversation_id", ev.ConversationID, "kind", ev.Kind, "age", now.Sub(at))
		return StaleRejected, nil
	}

	fp := Fingerprint(ev, at)
	created, err := g.kv.PutIfAbsent(ctx, store.DedupKey(fp), []byte(strconv.FormatInt(now.UnixMilli(), 10)), g.staleness)
	if err != nil {
		g.log.Warn("Admission record unavailable, admitting without dedup",
			"conversation_id", ev.ConversationID, "kind", ev.Kind, "error", err)
		return Accepted, apperr.Wrapf(apperr.PersistenceUnavailable, err, "record fingerprint")
	}
	if !created {
		g.log.Debug("Rejected duplicate event", "conversation_id", ev.ConversationID, "kind", ev.Kind, "fingerprint", fp[:12])
		return DuplicateRejected, nil
	}

	return Accepted, nil
}

// Fingerprint hashes the event kind, a kind-specific discriminator and a
// one-second timestamp bucket.
//
// Message events use the platform message id, or the actor plus a hash of
// the text when the platform omits an id. Actor events (follow, button
// click) use the actor id. Everything else uses only kind and bucket.
func Fingerprint(ev bus.InboundEvent, at time.Time) string {
	bucket := strconv.FormatInt(at.Truncate(bucketWidth).Unix(), 10)

	var parts []string
	switch ev.Kind {
	case bus.KindText, bus.KindImage, bus.KindSticker, bus.KindFile:
		if id := strings.TrimSpace(ev.MessageID); id != "" {
			parts = []string{string(ev.Kind), ev.Channel, "msg", id}
			break
		}
		textSum := sha256.Sum256([]byte(ev.Text))
		parts = []string{string(ev.Kind), ev.Channel, "actor", ev.ActorID, hex.EncodeToString(textSum[:8]), bucket}
	case bus.KindFollow, bus.KindButton:
		parts = []string{string(ev.Kind), ev.Channel, "actor", ev.ActorID, bucket}
		if ev.Kind == bus.KindButton {
			parts = append(parts, ev.Text)
		}
	default:
		parts = []string{string(ev.Kind), ev.Channel, ev.ConversationID, bucket}
	}

	sum := sha256.Sum256([]byte(strings.Join(parts, "\x1f")))
	return hex.EncodeToString(sum[:])
}
