package slots

import (
	"strings"

	"tourdesk/pkg/pricing"
)

type destinationMatch struct {
	alias pricing.Alias
	index int
}

// matchDestination finds the earliest destination mention in text. An
// ambiguous alias only counts when a qualifier sits right before it or a
// suffix qualifier right after it. An unqualified ambiguous alias that ends
// the turn is returned as ambiguous so the caller can ask about it.
func matchDestination(text string, aliases []pricing.Alias) (found *pricing.Alias, ambiguous *pricing.Alias) {
	masked := mask(text, blockers)
	tokens := strings.Fields(masked)
	padded := " " + masked + " "

	var best *destinationMatch
	for _, a := range aliases {
		if a.Text == "" {
			continue
		}
		for _, idx := range wordIndexes(padded, a.Text) {
			if a.Ambiguous && !qualified(padded, idx, a.Text) {
				if ambiguous == nil && endsWith(tokens, a.Text) {
					alias := a
					ambiguous = &alias
				}
				continue
			}
			if best == nil || idx < best.index {
				best = &destinationMatch{alias: a, index: idx}
			}
			break
		}
	}

	if best != nil {
		return &best.alias, nil
	}
	return nil, ambiguous
}

// wordIndexes returns the byte offsets in padded text where " phrase "
// starts.
func wordIndexes(padded, phrase string) []int {
	needle := " " + phrase + " "
	var out []int
	for from := 0; from < len(padded); {
		i := strings.Index(padded[from:], needle)
		if i < 0 {
			break
		}
		out = append(out, from+i)
		from += i + 1
	}
	return out
}

func qualified(padded string, idx int, phrase string) bool {
	before := strings.TrimSpace(padded[:idx])
	for _, q := range qualifiers {
		if before == q || strings.HasSuffix(before, " "+q) {
			return true
		}
	}

	after := strings.TrimSpace(padded[idx+len(phrase)+1:])
	for _, q := range suffixQualifiers {
		if after == q || strings.HasPrefix(after, q+" ") {
			return true
		}
	}
	return false
}

func endsWith(tokens []string, phrase string) bool {
	words := strings.Fields(phrase)
	if len(words) > len(tokens) {
		return false
	}
	tail := tokens[len(tokens)-len(words):]
	for i := range words {
		if tail[i] != words[i] {
			return false
		}
	}
	return true
}
