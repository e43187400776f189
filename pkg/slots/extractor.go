// Package slots derives trip fields from a turn of free text. Pattern rules
// run first; a language capability is consulted only for core slots the
// rules and the current context leave unknown.
package slots

import (
	"context"
	"log/slog"
	"time"

	"tourdesk/pkg/logger"
	"tourdesk/pkg/pricing"
	"tourdesk/pkg/session"
)

const defaultInferenceTimeout = 8 * time.Second

// Capability is the language model collaborator.
type Capability interface {
	Complete(ctx context.Context, instructions string, input string) (string, error)
}

// Extraction is what one turn contributed. Slots holds only values found in
// this turn; merging into the stored context is the caller's job.
type Extraction struct {
	Slots session.Slots
	// Phone is set when the turn carried a phone number. Nothing else is
	// extracted in that case.
	Phone    string
	Reset    bool
	Special  bool
	CaseType CaseType
	// Ambiguous names the destination an unqualified ambiguous word could
	// refer to, when no destination is known.
	Ambiguous *pricing.Alias
	Inference Inference
}

// Extractor is safe for concurrent use.
type Extractor struct {
	catalog    *pricing.Catalog
	aliases    []pricing.Alias
	capability Capability
	timeout    time.Duration
	log        *slog.Logger
}

type Option func(*Extractor)

// WithCapability enables the inference stage.
func WithCapability(c Capability) Option {
	return func(e *Extractor) { e.capability = c }
}

func WithInferenceTimeout(d time.Duration) Option {
	return func(e *Extractor) {
		if d > 0 {
			e.timeout = d
		}
	}
}

func WithLogger(log *slog.Logger) Option {
	return func(e *Extractor) {
		e.log = logger.OrDefault(log).With("component", "slots")
	}
}

func New(catalog *pricing.Catalog, opts ...Option) *Extractor {
	e := &Extractor{
		catalog: catalog,
		aliases: catalog.Aliases(),
		timeout: defaultInferenceTimeout,
		log:     slog.Default().With("component", "slots"),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Extract runs both stages against one turn. current is the context before
// this turn and decides which slots are still missing.
func (e *Extractor) Extract(ctx context.Context, text string, current session.Slots) Extraction {
	var out Extraction

	if phone, ok := ExtractPhone(text); ok {
		out.Phone = phone
		out.Inference = Inference{Outcome: OutcomeSkipped}
		return out
	}

	norm := normalize(text)
	out.Reset = detectReset(norm)

	if ct := detectConcern(norm); ct != CaseNone {
		out.Special = true
		out.CaseType = ct
	}

	if found, ambiguous := matchDestination(norm, e.aliases); found != nil {
		name, region := found.Destination, found.Region
		out.Slots.Destination = &name
		out.Slots.Region = &region
	} else if ambiguous != nil && current.Region == nil {
		out.Ambiguous = ambiguous
	}

	out.Slots.Pax, out.Slots.Days = extractCounts(norm)
	out.Slots.NoMeal = toggle(norm, noMealOn, noMealOff)
	out.Slots.UpgradeHotel = toggle(norm, upgradeHotelOn, upgradeHotelOff)
	out.Slots.GuideFromStart = toggle(norm, guideOn, guideOff)
	out.Slots.NoESIM = toggle(norm, noESIMOn, nil)

	switch {
	case e.capability == nil, out.Reset, out.Special, out.Ambiguous != nil, norm == "":
		out.Inference = Inference{Outcome: OutcomeSkipped}
		return out
	}

	missing := current.Merge(out.Slots).Missing()
	if len(missing) == 0 {
		out.Inference = Inference{Outcome: OutcomeSkipped}
		return out
	}

	inferCtx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	inferred, inf := e.infer(inferCtx, text, missing)
	out.Inference = inf
	if inf.Outcome == OutcomeOK {
		out.Slots = out.Slots.Merge(inferred)
	}
	return out
}
