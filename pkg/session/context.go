// Package session keeps the merged per-conversation context: known slots,
// dialog flow state and the last delivered quote.
package session

import (
	"time"

	"tourdesk/pkg/pricing"
)

// Flow is where the dialog stands for a conversation.
type Flow string

const (
	FlowNone        Flow = ""
	FlowEliciting   Flow = "eliciting"
	FlowQuoted      Flow = "quoted"
	FlowHandoff     Flow = "handoff"
	FlowSpecialCase Flow = "special_case"
)

// Slot names, as reported by Slots.Missing.
const (
	SlotDestination = "destination"
	SlotPax         = "pax"
	SlotDays        = "days"
)

// Slots holds extracted trip fields. A nil pointer means unknown.
type Slots struct {
	Destination    *string         `json:"destination,omitempty"`
	Region         *pricing.Region `json:"region,omitempty"`
	Pax            *int            `json:"pax,omitempty"`
	Days           *int            `json:"days,omitempty"`
	NoMeal         *bool           `json:"no_meal,omitempty"`
	UpgradeHotel   *bool           `json:"upgrade_hotel,omitempty"`
	GuideFromStart *bool           `json:"guide_from_start,omitempty"`
	NoESIM         *bool           `json:"no_esim,omitempty"`
}

// Merge returns s with every non-nil field of p applied. Nil fields in p
// never erase known values.
func (s Slots) Merge(p Slots) Slots {
	s.Destination = pick(s.Destination, p.Destination)
	s.Region = pick(s.Region, p.Region)
	s.Pax = pick(s.Pax, p.Pax)
	s.Days = pick(s.Days, p.Days)
	s.NoMeal = pick(s.NoMeal, p.NoMeal)
	s.UpgradeHotel = pick(s.UpgradeHotel, p.UpgradeHotel)
	s.GuideFromStart = pick(s.GuideFromStart, p.GuideFromStart)
	s.NoESIM = pick(s.NoESIM, p.NoESIM)
	return s
}

func pick[T any](current, next *T) *T {
	if next == nil {
		return current
	}
	v := *next
	return &v
}

// Missing lists the slots needed for a quote that are still unknown, in a
// stable order.
func (s Slots) Missing() []string {
	var missing []string
	if s.Region == nil {
		missing = append(missing, SlotDestination)
	}
	if s.Days == nil || *s.Days <= 0 {
		missing = append(missing, SlotDays)
	}
	if s.Pax == nil || *s.Pax <= 0 {
		missing = append(missing, SlotPax)
	}
	return missing
}

// Complete reports whether region, pax and days are all known.
func (s Slots) Complete() bool {
	return len(s.Missing()) == 0
}

// HasModifiers reports whether any modifier field is set.
func (s Slots) HasModifiers() bool {
	return s.NoMeal != nil || s.UpgradeHotel != nil || s.GuideFromStart != nil || s.NoESIM != nil
}

// HasCore reports whether any of destination, pax or days is set.
func (s Slots) HasCore() bool {
	return s.Destination != nil || s.Region != nil || s.Pax != nil || s.Days != nil
}

// Modifiers converts the modifier slots for the pricing engine.
func (s Slots) Modifiers() pricing.Modifiers {
	return pricing.Modifiers{
		NoMeal:         deref(s.NoMeal),
		UpgradeHotel:   deref(s.UpgradeHotel),
		GuideFromStart: deref(s.GuideFromStart),
		NoESIM:         deref(s.NoESIM),
	}
}

func deref(b *bool) bool {
	return b != nil && *b
}

// Context is the persisted state of one conversation.
type Context struct {
	ConversationID string         `json:"conversation_id"`
	Slots          Slots          `json:"slots"`
	PendingFlow    Flow           `json:"pending_flow,omitempty"`
	LastQuote      *pricing.Quote `json:"last_quote,omitempty"`
	OriginalQuery  string         `json:"original_query,omitempty"`
	Contact        string         `json:"contact,omitempty"`
	SpecialCase    string         `json:"special_case,omitempty"`
	Turns          int            `json:"turns"`
	CreatedAt      time.Time      `json:"created_at"`
	LastUpdated    time.Time      `json:"last_updated"`
}

// Partial is a merge request. Nil fields are left untouched.
type Partial struct {
	Slots       Slots
	PendingFlow *Flow
	LastQuote   *pricing.Quote
	// OriginalQuery is recorded only while the context has none.
	OriginalQuery *string
	Contact       *string
	SpecialCase   *string
	// CountTurn increments Turns.
	CountTurn bool
}

// Apply merges p into c and stamps LastUpdated.
func (c Context) Apply(p Partial, now time.Time) Context {
	c.Slots = c.Slots.Merge(p.Slots)
	if p.PendingFlow != nil {
		c.PendingFlow = *p.PendingFlow
	}
	if p.LastQuote != nil {
		q := *p.LastQuote
		c.LastQuote = &q
	}
	if p.OriginalQuery != nil && c.OriginalQuery == "" {
		c.OriginalQuery = *p.OriginalQuery
	}
	if p.Contact != nil {
		c.Contact = *p.Contact
	}
	if p.SpecialCase != nil {
		c.SpecialCase = *p.SpecialCase
	}
	if p.CountTurn {
		c.Turns++
	}
	if c.CreatedAt.IsZero() {
		c.CreatedAt = now
	}
	c.LastUpdated = now
	return c
}

// Ptr returns a pointer to v. Handy for building Partial and Slots values.
func Ptr[T any](v T) *T { return &v }
