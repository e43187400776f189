package channel

import (
	"strings"
	"unicode/utf8"
)

// Split breaks text into chunks of at most limit runes. Lines are kept
// together where possible; a line longer than limit is cut on word
// boundaries, and a single word longer than limit is cut hard.
func Split(text string, limit int) []string {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}
	if limit <= 0 || utf8.RuneCountInString(text) <= limit {
		return []string{text}
	}

	var (
		chunks []string
		cur    strings.Builder
		curLen int
	)
	flush := func() {
		if s := strings.TrimSpace(cur.String()); s != "" {
			chunks = append(chunks, s)
		}
		cur.Reset()
		curLen = 0
	}
	add := func(piece string, sep string) {
		n := utf8.RuneCountInString(piece)
		if curLen > 0 && curLen+utf8.RuneCountInString(sep)+n > limit {
			flush()
		}
		if curLen > 0 {
			cur.WriteString(sep)
			curLen += utf8.RuneCountInString(sep)
		}
		cur.WriteString(piece)
		curLen += n
	}

	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimRight(line, " \t\r")
		if utf8.RuneCountInString(line) <= limit {
			add(line, "\n")
			continue
		}

		flush()
		for _, word := range strings.Fields(line) {
			for utf8.RuneCountInString(word) > limit {
				flush()
				head, tail := cutRunes(word, limit)
				chunks = append(chunks, head)
				word = tail
			}
			add(word, " ")
		}
		flush()
	}
	flush()
	return chunks
}

func cutRunes(s string, n int) (string, string) {
	i := 0
	for pos := range s {
		if i == n {
			return s[:pos], s[pos:]
		}
		i++
	}
	return s, ""
}
