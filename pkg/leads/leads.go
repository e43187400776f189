// Package leads records contact handoffs for the sales team.
package leads

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"tourdesk/pkg/logger"
	"tourdesk/pkg/store"
)

const (
	DefaultRetention = 180 * 24 * time.Hour
	DefaultSource    = "tourdesk_bot"

	StatusNew = "new_lead"
)

var ErrNotFound = errors.New("leads: not found")

// Lead is one captured contact.
type Lead struct {
	ID              string    `json:"id"`
	Phone           string    `json:"phone"`
	ConversationID  string    `json:"conversation_id"`
	Channel         string    `json:"channel"`
	Source          string    `json:"source"`
	Status          string    `json:"status"`
	CountryInterest string    `json:"country_interest,omitempty"`
	SpecialCase     string    `json:"special_case,omitempty"`
	OriginalQuery   string    `json:"original_query,omitempty"`
	Description     string    `json:"description"`
	CreatedAt       time.Time `json:"created_at"`
}

// Notifier announces new leads.
type Notifier interface {
	Notify(ctx context.Context, lead Lead) error
}

// Recorder stores leads and indexes them by phone per conversation so a
// repeated number does not create a second lead.
type Recorder struct {
	kv        store.Store
	retention time.Duration
	source    string
	notifier  Notifier
	now       func() time.Time
	log       *slog.Logger
}

var newLeadID = func() string { return uuid.NewString() }

type Option func(*Recorder)

func WithRetention(d time.Duration) Option {
	return func(r *Recorder) {
		if d > 0 {
			r.retention = d
		}
	}
}

func WithSource(source string) Option {
	return func(r *Recorder) {
		if s := strings.TrimSpace(source); s != "" {
			r.source = s
		}
	}
}

func WithNotifier(n Notifier) Option {
	return func(r *Recorder) { r.notifier = n }
}

func WithLogger(log *slog.Logger) Option {
	return func(r *Recorder) {
		r.log = logger.OrDefault(log).With("component", "leads")
	}
}

func NewRecorder(kv store.Store, opts ...Option) *Recorder {
	r := &Recorder{
		kv:        kv,
		retention: DefaultRetention,
		source:    DefaultSource,
		now:       time.Now,
		log:       slog.Default().With("component", "leads"),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Record saves lead and notifies. It returns the stored lead and whether it
// was new; a phone already recorded for the conversation returns the
// existing lead.
func (r *Recorder) Record(ctx context.Context, lead Lead) (Lead, bool, error) {
	if strings.TrimSpace(lead.Phone) == "" {
		return Lead{}, false, errors.New("leads: phone is required")
	}

	lead.ID = newLeadID()
	if lead.Source == "" {
		lead.Source = r.source
	}
	if lead.Status == "" {
		lead.Status = StatusNew
	}
	if lead.CreatedAt.IsZero() {
		lead.CreatedAt = r.now()
	}

	created, err := r.kv.PutIfAbsent(ctx, store.LeadPhoneKey(lead.Phone, lead.ConversationID), []byte(lead.ID), r.retention)
	if err != nil {
		return Lead{}, false, fmt.Errorf("index lead phone: %w", err)
	}
	if !created {
		raw, err := r.kv.Get(ctx, store.LeadPhoneKey(lead.Phone, lead.ConversationID))
		if err != nil {
			return Lead{}, false, fmt.Errorf("read lead phone index: %w", err)
		}
		existing, err := r.Get(ctx, string(raw))
		if err == nil {
			r.log.Debug("Lead already recorded", "lead_id", existing.ID, "conversation_id", lead.ConversationID)
			return existing, false, nil
		}
		if !errors.Is(err, ErrNotFound) {
			return Lead{}, false, err
		}
		if err := r.kv.Put(ctx, store.LeadPhoneKey(lead.Phone, lead.ConversationID), []byte(lead.ID), r.retention); err != nil {
			return Lead{}, false, fmt.Errorf("repair lead phone index: %w", err)
		}
	}

	raw, err := json.Marshal(lead)
	if err != nil {
		return Lead{}, false, fmt.Errorf("encode lead: %w", err)
	}
	if err := r.kv.Put(ctx, store.LeadKey(lead.ID), raw, r.retention); err != nil {
		return Lead{}, false, fmt.Errorf("save lead: %w", err)
	}

	r.log.Info("Lead captured",
		"lead_id", lead.ID,
		"conversation_id", lead.ConversationID,
		"channel", lead.Channel,
		"special_case", lead.SpecialCase,
	)

	if r.notifier != nil {
		if err := r.notifier.Notify(ctx, lead); err != nil {
			r.log.Warn("Lead notification failed", "lead_id", lead.ID, "error", err)
		}
	}
	return lead, true, nil
}

// Get loads a lead by id.
func (r *Recorder) Get(ctx context.Context, id string) (Lead, error) {
	raw, err := r.kv.Get(ctx, store.LeadKey(id))
	if errors.Is(err, store.ErrNotFound) {
		return Lead{}, ErrNotFound
	}
	if err != nil {
		return Lead{}, fmt.Errorf("load lead %s: %w", id, err)
	}

	var lead Lead
	if err := json.Unmarshal(raw, &lead); err != nil {
		return Lead{}, fmt.Errorf("decode lead %s: %w", id, err)
	}
	return lead, nil
}

// Describe builds the one-line summary shown to sales staff.
func Describe(country string, days, pax int, special string) string {
	var parts []string
	if country != "" {
		parts = append(parts, country)
	}
	if days > 0 {
		parts = append(parts, fmt.Sprintf("%d ngày", days))
	}
	if pax > 0 {
		parts = append(parts, fmt.Sprintf("%d người", pax))
	}
	if special != "" {
		parts = append(parts, "yêu cầu đặc biệt: "+special)
	}
	if len(parts) == 0 {
		return "Khách để lại số điện thoại cần tư vấn"
	}
	return strings.Join(parts, ", ")
}
