// Package dialog decides the reply to one coalesced turn: it extracts slots,
// merges them into the conversation context and either quotes, asks for
// what is missing, or hands the conversation to a human.
package dialog

import (
	"context"
	"log/slog"
	"strings"

	"tourdesk/pkg/apperr"
	"tourdesk/pkg/leads"
	"tourdesk/pkg/logger"
	"tourdesk/pkg/pricing"
	"tourdesk/pkg/session"
	"tourdesk/pkg/slots"
)

const (
	defaultHotline = "1900 636563"
	defaultBrand   = "Passport Lounge"

	// Incomplete turns after which the reply also offers a human callback.
	elicitTurnsBeforeOffer = 4
)

// State is the branch a turn took.
type State string

const (
	StateReset       State = "reset"
	StateHandoff     State = "handoff"
	StateSpecialCase State = "special_case"
	StateQuoted      State = "quoted"
	StateRequoted    State = "requoted"
	StateClarify     State = "clarify"
	StateEliciting   State = "eliciting"
)

// Extractor derives slots from a turn.
type Extractor interface {
	Extract(ctx context.Context, text string, current session.Slots) slots.Extraction
}

// LeadRecorder stores contact handoffs.
type LeadRecorder interface {
	Record(ctx context.Context, lead leads.Lead) (leads.Lead, bool, error)
}

// Input is one coalesced turn.
type Input struct {
	ConversationID string
	Channel        string
	Text           string
}

// Reply is what the controller decided. Messages are sent in order.
type Reply struct {
	State     State
	Messages  []string
	Quote     *pricing.Quote
	Lead      *leads.Lead
	CaseType  slots.CaseType
	Inference slots.Outcome
	// Degraded collects non-fatal failures; the reply is still usable.
	Degraded []error
}

type Controller struct {
	sessions  *session.Store
	extractor Extractor
	catalog   *pricing.Catalog
	leads     LeadRecorder
	texts     texts
	log       *slog.Logger
}

type Option func(*Controller)

func WithLeads(r LeadRecorder) Option {
	return func(c *Controller) { c.leads = r }
}

func WithHotline(hotline string) Option {
	return func(c *Controller) {
		if h := strings.TrimSpace(hotline); h != "" {
			c.texts.hotline = h
		}
	}
}

func WithBrand(brand string) Option {
	return func(c *Controller) {
		if b := strings.TrimSpace(brand); b != "" {
			c.texts.brand = b
		}
	}
}

func WithLogger(log *slog.Logger) Option {
	return func(c *Controller) {
		c.log = logger.OrDefault(log).With("component", "dialog")
	}
}

func New(sessions *session.Store, extractor Extractor, catalog *pricing.Catalog, opts ...Option) *Controller {
	c := &Controller{
		sessions:  sessions,
		extractor: extractor,
		catalog:   catalog,
		texts:     texts{hotline: defaultHotline, brand: defaultBrand},
		log:       slog.Default().With("component", "dialog"),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Welcome is sent when a user follows the account.
func (c *Controller) Welcome() string { return c.texts.welcome() }

// MediaNotice answers non-text messages.
func (c *Controller) MediaNotice() string { return c.texts.mediaNotice() }

// Fallback is sent when a turn fails outright.
func (c *Controller) Fallback() string { return c.texts.fallback() }

// Handle runs one turn. Branches are tried in order: reset, phone handoff,
// special case, quote, clarification, elicitation. Store failures degrade
// the turn to stateless handling and are reported in Reply.Degraded. The
// returned error is terminal and the caller should send Fallback.
func (c *Controller) Handle(ctx context.Context, in Input) (Reply, error) {
	var reply Reply
	degrade := func(err error) {
		if err != nil {
			reply.Degraded = append(reply.Degraded, err)
		}
	}

	current, err := c.sessions.Get(ctx, in.ConversationID)
	degrade(err)

	ex := c.extractor.Extract(ctx, in.Text, current.Slots)
	reply.Inference = ex.Inference.Outcome
	degrade(ex.Inference.Err)

	log := c.log.With("conversation_id", in.ConversationID)

	switch {
	case ex.Reset:
		_, err := c.sessions.Reset(ctx, in.ConversationID, true)
		degrade(err)
		reply.State = StateReset
		reply.Messages = []string{c.texts.reset()}

	case ex.Phone != "":
		c.handoff(ctx, in, current, ex.Phone, &reply, degrade)

	case ex.Special:
		merged, err := c.sessions.Merge(ctx, in.ConversationID, session.Partial{
			Slots:         ex.Slots,
			PendingFlow:   session.Ptr(session.FlowSpecialCase),
			SpecialCase:   session.Ptr(string(ex.CaseType)),
			OriginalQuery: session.Ptr(in.Text),
			CountTurn:     true,
		})
		degrade(err)
		reply.State = StateSpecialCase
		reply.CaseType = ex.CaseType
		reply.Messages = c.texts.specialCase(ex.CaseType, destinationName(merged.Slots))

	default:
		partial := session.Partial{Slots: ex.Slots, CountTurn: true}
		if ex.Slots.HasCore() {
			partial.OriginalQuery = session.Ptr(in.Text)
		}

		merged, err := c.sessions.Merge(ctx, in.ConversationID, partial)
		degrade(err)

		switch {
		case merged.Slots.Complete():
			if err := c.quote(ctx, current, merged, ex, &reply, degrade); err != nil {
				return reply, err
			}
		case ex.Ambiguous != nil:
			reply.State = StateClarify
			reply.Messages = []string{c.texts.clarify(*ex.Ambiguous, merged.Slots.Missing())}
			_, err := c.sessions.Merge(ctx, in.ConversationID, session.Partial{PendingFlow: session.Ptr(session.FlowEliciting)})
			degrade(err)
		default:
			reply.State = StateEliciting
			reply.Messages = []string{c.texts.eliciting(destinationName(merged.Slots), merged.Slots.Missing())}
			if merged.Turns >= elicitTurnsBeforeOffer {
				reply.Messages = append(reply.Messages, c.texts.needPhone())
			}
			_, err := c.sessions.Merge(ctx, in.ConversationID, session.Partial{PendingFlow: session.Ptr(session.FlowEliciting)})
			degrade(err)
		}
	}

	log.Info("Turn handled",
		"state", reply.State,
		"case_type", reply.CaseType,
		"inference", reply.Inference,
		"degraded", len(reply.Degraded),
	)
	return reply, nil
}

func (c *Controller) handoff(ctx context.Context, in Input, current session.Context, phone string, reply *Reply, degrade func(error)) {
	merged, err := c.sessions.Merge(ctx, in.ConversationID, session.Partial{
		PendingFlow: session.Ptr(session.FlowHandoff),
		Contact:     session.Ptr(phone),
		CountTurn:   true,
	})
	degrade(err)
	if err != nil {
		merged.Slots = current.Slots
		merged.SpecialCase = current.SpecialCase
		merged.OriginalQuery = current.OriginalQuery
	}

	reply.State = StateHandoff
	reply.Messages = []string{c.texts.phoneAck(phone)}

	if c.leads == nil {
		return
	}

	var days, pax int
	if merged.Slots.Days != nil {
		days = *merged.Slots.Days
	}
	if merged.Slots.Pax != nil {
		pax = *merged.Slots.Pax
	}
	country := destinationName(merged.Slots)

	lead, _, err := c.leads.Record(ctx, leads.Lead{
		Phone:           phone,
		ConversationID:  in.ConversationID,
		Channel:         in.Channel,
		CountryInterest: country,
		SpecialCase:     merged.SpecialCase,
		OriginalQuery:   merged.OriginalQuery,
		Description:     leads.Describe(country, days, pax, merged.SpecialCase),
	})
	if err != nil {
		degrade(apperr.Wrapf(apperr.PersistenceUnavailable, err, "record lead"))
		return
	}
	reply.Lead = &lead
}

func (c *Controller) quote(ctx context.Context, prev, merged session.Context, ex slots.Extraction, reply *Reply, degrade func(error)) error {
	s := merged.Slots
	q, err := c.catalog.Quote(*s.Region, *s.Pax, *s.Days, s.Modifiers())
	if err != nil {
		return apperr.Wrapf(apperr.Internal, err, "quote %s", *s.Region)
	}

	deltaOnly := prev.PendingFlow == session.FlowQuoted &&
		prev.LastQuote != nil &&
		ex.Slots.HasModifiers() &&
		!ex.Slots.HasCore()

	reasons := []string(nil)
	if deltaOnly {
		reasons = modifierReasons(prev.LastQuote.Modifiers, q.Modifiers)
	}

	if deltaOnly && len(reasons) > 0 {
		reply.State = StateRequoted
		reply.Messages = []string{c.texts.delta(*prev.LastQuote, q, reasons)}
	} else {
		reply.State = StateQuoted
		reply.Messages = []string{c.texts.quote(q, destinationName(s, q.Label), c.defaultPriced(s), c.catalog.IncludedServices(q.Modifiers))}
	}
	reply.Quote = &q

	_, err = c.sessions.Merge(ctx, merged.ConversationID, session.Partial{
		PendingFlow: session.Ptr(session.FlowQuoted),
		LastQuote:   &q,
	})
	degrade(err)
	return nil
}

// defaultPriced reports whether the named destination is missing from the
// catalog and was priced at the default region.
func (c *Controller) defaultPriced(s session.Slots) bool {
	if s.Destination == nil || s.Region == nil || *s.Region != c.catalog.DefaultRegion {
		return false
	}
	_, known := c.catalog.Resolve(*s.Destination)
	return !known
}

// destinationName prefers the destination the user named, then any
// fallback such as the region label.
func destinationName(s session.Slots, fallback ...string) string {
	if s.Destination != nil && *s.Destination != "" {
		return *s.Destination
	}
	for _, f := range fallback {
		if f != "" {
			return f
		}
	}
	return ""
}
