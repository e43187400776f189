package slots

import (
	"regexp"
	"strconv"
	"strings"

	"tourdesk/pkg/pricing"
)

const (
	minPax  = 1
	maxPax  = 100
	minDays = 1
	maxDays = 60
)

var (
	digitLetter = regexp.MustCompile(`(\d)(\pL)`)
	letterDigit = regexp.MustCompile(`(\pL)(\d)`)

	// phoneCandidate finds a national prefix followed by digit groups. The
	// groups are then walked until exactly 9 or 10 national digits are seen.
	phoneCandidate = regexp.MustCompile(`(?:^|[^\d+])(\+84|0)((?:[ \t.\-]?\d+)+)`)
	digitGroup     = regexp.MustCompile(`\d+`)
)

func init() {
	for _, list := range [][]string{
		blockers, qualifiers, suffixQualifiers, resetPhrases,
		noMealOn, noMealOff, upgradeHotelOn, upgradeHotelOff, guideOn, guideOff, noESIMOn,
		couples, solo,
	} {
		for i, p := range list {
			list[i] = pricing.Normalize(p)
		}
	}
	for i := range concerns {
		for j, p := range concerns[i].phrases {
			concerns[i].phrases[j] = pricing.Normalize(p)
		}
	}
}

// normalize prepares turn text for rule matching: pricing.Normalize plus a
// space between glued digits and letters ("10ngày" -> "10 ngày").
func normalize(text string) string {
	s := pricing.Normalize(text)
	s = digitLetter.ReplaceAllString(s, "$1 $2")
	s = letterDigit.ReplaceAllString(s, "$1 $2")
	return s
}

func contains(text, phrase string) bool {
	return phrase != "" && strings.Contains(" "+text+" ", " "+phrase+" ")
}

func containsAny(text string, phrases []string) bool {
	for _, p := range phrases {
		if contains(text, p) {
			return true
		}
	}
	return false
}

// mask replaces every word-bounded occurrence of the phrases with "_".
func mask(text string, phrases []string) string {
	padded := " " + text + " "
	for _, p := range phrases {
		needle := " " + p + " "
		for strings.Contains(padded, needle) {
			padded = strings.ReplaceAll(padded, needle, " _ ")
		}
	}
	return strings.TrimSpace(padded)
}

// ExtractPhone returns the first Vietnamese phone number in raw text in its
// national form (leading 0, digits only).
func ExtractPhone(raw string) (string, bool) {
	for _, m := range phoneCandidate.FindAllStringSubmatch(raw, -1) {
		rest := m[2]
		national := ""
		for i, g := range digitGroup.FindAllString(rest, -1) {
			if i == 0 && m[1] == "+84" {
				// "+84 0912..." keeps the trunk zero.
				g = strings.TrimPrefix(g, "0")
			}
			national += g
			if len(national) >= 9 {
				break
			}
		}
		if n := len(national); n == 9 || n == 10 {
			return "0" + national, true
		}
	}
	return "", false
}

// detectReset reports whether the turn asks to start over.
func detectReset(text string) bool {
	return containsAny(text, resetPhrases)
}

func detectConcern(text string) CaseType {
	for _, c := range concerns {
		if containsAny(text, c.phrases) {
			return c.caseType
		}
	}
	return CaseNone
}

// toggle returns true/false when one of the on/off phrase sets matches.
// Off phrases win so that negations of an on phrase read correctly.
func toggle(text string, on, off []string) *bool {
	if containsAny(text, off) {
		v := false
		return &v
	}
	if containsAny(text, on) {
		v := true
		return &v
	}
	return nil
}

// numberBefore parses the quantity that ends right before tokens[i]: a digit
// token or up to three Vietnamese number words.
func numberBefore(tokens []string, i int) (int, bool) {
	if i == 0 {
		return 0, false
	}
	if n, err := strconv.Atoi(tokens[i-1]); err == nil {
		return n, true
	}
	for width := 3; width >= 1; width-- {
		start := i - width
		if start < 0 {
			continue
		}
		if n, ok := parseNumberWords(tokens[start:i]); ok {
			return n, true
		}
	}
	return 0, false
}

// parseNumberWords handles "năm", "mười", "mười lăm", "hai mươi", "hai mươi
// mốt" and similar spellings below one hundred.
func parseNumberWords(words []string) (int, bool) {
	unit := func(w string) (int, bool) {
		n, ok := numberWords[w]
		return n, ok
	}

	switch len(words) {
	case 1:
		if words[0] == "mười" {
			return 10, true
		}
		return unit(words[0])
	case 2:
		if words[0] == "mười" {
			if u, ok := unit(words[1]); ok {
				return 10 + u, true
			}
			return 0, false
		}
		if words[1] == "mươi" {
			if t, ok := unit(words[0]); ok && t > 1 {
				return t * 10, true
			}
		}
		return 0, false
	case 3:
		if words[1] != "mươi" {
			return 0, false
		}
		t, ok := unit(words[0])
		if !ok || t < 2 {
			return 0, false
		}
		u, ok := unit(words[2])
		if !ok {
			return 0, false
		}
		return t*10 + u, true
	}
	return 0, false
}

// extractCounts finds party size and trip length.
func extractCounts(text string) (pax *int, days *int) {
	tokens := strings.Fields(text)

	var plainPax, adults, children, group int
	var dayCount, nights, weeks, months int

	for i, tok := range tokens {
		next := ""
		if i+1 < len(tokens) {
			next = tokens[i+1]
		}

		if groupWords[tok] && next != "" {
			if n, err := strconv.Atoi(next); err == nil && group == 0 {
				group = n
			}
		}

		n, ok := numberBefore(tokens, i)
		if !ok {
			continue
		}

		switch {
		case tok == "người" && next == "lớn":
			adults += n
		case childUnits[tok]:
			children += n
		case tok == "thành" && next == "viên", paxUnits[tok]:
			if plainPax == 0 {
				plainPax = n
			}
		case tok == "ngày":
			if dayCount == 0 {
				dayCount = n
			}
		case tok == "đêm":
			if nights == 0 {
				nights = n
			}
		case tok == "tuần":
			if weeks == 0 {
				weeks = n
			}
		case tok == "tháng":
			// "ngày 1 tháng 2" is a date, not a duration.
			if months == 0 && (i < 2 || tokens[i-2] != "ngày") {
				months = n
			}
		}
	}

	if adults == 0 && containsAny(text, couples) {
		adults = 2
	}

	var p int
	switch {
	case adults > 0:
		p = adults + children
	case plainPax > 0:
		p = plainPax
	case group > 0:
		p = group
	case containsAny(text, solo):
		p = 1
	}
	if p >= minPax && p <= maxPax {
		pax = &p
	}

	var d int
	switch {
	case dayCount > 0:
		d = dayCount
	case nights > 0:
		d = nights + 1
	case weeks > 0:
		d = weeks * 7
	case contains(text, "nửa tháng"):
		d = 15
	case months > 0:
		d = months * 30
	}
	if d >= minDays && d <= maxDays {
		days = &d
	}
	return pax, days
}
