package slots

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"

	"tourdesk/pkg/apperr"
	"tourdesk/pkg/session"
)

// Outcome of the inference stage.
type Outcome string

const (
	OutcomeSkipped      Outcome = "skipped"
	OutcomeOK           Outcome = "ok"
	OutcomeParseFailure Outcome = "parse_failure"
	OutcomeUnavailable  Outcome = "unavailable"
)

// Inference reports what the capability was asked and what it filled.
type Inference struct {
	Outcome Outcome
	Asked   []string
	Filled  []string
	Err     error
}

type inferredSlots struct {
	Destination *string `json:"destination"`
	Pax         *int    `json:"pax"`
	Days        *int    `json:"days"`
}

func (e *Extractor) infer(ctx context.Context, text string, missing []string) (session.Slots, Inference) {
	inf := Inference{Asked: missing}

	raw, err := e.capability.Complete(ctx, inferenceInstructions(missing), text)
	if err != nil {
		inf.Outcome = OutcomeUnavailable
		inf.Err = apperr.Wrapf(apperr.CapabilityUnavailable, err, "infer %s", strings.Join(missing, ","))
		e.log.Warn("Slot inference unavailable", "missing", missing, "error", err)
		return session.Slots{}, inf
	}

	parsed, err := parseInferred(raw)
	if err != nil {
		inf.Outcome = OutcomeParseFailure
		inf.Err = apperr.Wrapf(apperr.ExtractionAmbiguous, err, "parse inference")
		e.log.Warn("Slot inference reply rejected", "missing", missing, "error", err, "reply_preview", preview(raw, 120))
		return session.Slots{}, inf
	}

	var out session.Slots
	asked := make(map[string]bool, len(missing))
	for _, m := range missing {
		asked[m] = true
	}

	if asked[session.SlotDestination] && parsed.Destination != nil {
		if name := strings.TrimSpace(*parsed.Destination); name != "" {
			// Unlisted destinations are priced at the catalog default region.
			region, known := e.catalog.Resolve(name)
			if !known {
				e.log.Info("Inferred destination not in catalog", "destination", name, "region", region)
			}
			out.Destination = &name
			out.Region = &region
			inf.Filled = append(inf.Filled, session.SlotDestination)
		}
	}
	if asked[session.SlotPax] && parsed.Pax != nil && *parsed.Pax >= minPax && *parsed.Pax <= maxPax {
		out.Pax = parsed.Pax
		inf.Filled = append(inf.Filled, session.SlotPax)
	}
	if asked[session.SlotDays] && parsed.Days != nil && *parsed.Days >= minDays && *parsed.Days <= maxDays {
		out.Days = parsed.Days
		inf.Filled = append(inf.Filled, session.SlotDays)
	}

	inf.Outcome = OutcomeOK
	e.log.Debug("Slot inference done", "asked", missing, "filled", inf.Filled)
	return out, inf
}

func inferenceInstructions(missing []string) string {
	return strings.Join([]string{
		"You read one message from a Vietnamese traveller asking about a tour.",
		"Extract only these fields: " + strings.Join(missing, ", ") + ".",
		"",
		"Fields:",
		"- destination: the country or city the traveller wants to visit, as written, or null.",
		"- pax: the number of travellers as an integer, or null.",
		"- days: the trip length in days as an integer (one week is 7), or null.",
		"",
		"The words \"anh\" and \"ý\" are usually pronouns or nouns, not countries. Use null unless the message clearly names a trip there.",
		"Never guess. Use null when the message does not state a value.",
		"",
		`Return JSON only, with exactly the keys "destination", "pax" and "days".`,
	}, "\n")
}

// parseInferred decodes the capability reply strictly: one JSON object,
// known keys only, nothing after it. Markdown code fences are tolerated.
func parseInferred(raw string) (inferredSlots, error) {
	s := strings.TrimSpace(raw)
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(s, "```")

	var out inferredSlots
	dec := json.NewDecoder(bytes.NewBufferString(strings.TrimSpace(s)))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&out); err != nil {
		return inferredSlots{}, fmt.Errorf("slots: decode inference: %w", err)
	}
	if err := dec.Decode(&struct{}{}); !errors.Is(err, io.EOF) {
		if err == nil {
			return inferredSlots{}, errors.New("slots: decode inference: multiple JSON values")
		}
		return inferredSlots{}, fmt.Errorf("slots: decode inference trailing data: %w", err)
	}
	return out, nil
}

func preview(s string, limit int) string {
	runes := []rune(s)
	if len(runes) <= limit {
		return s
	}
	return string(runes[:limit]) + "..."
}
