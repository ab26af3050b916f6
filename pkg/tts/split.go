package tts

import "strings"

// boundaryRunes are the sentence-ending characters that trigger a split
// (spec.md §4.6: ". ! ? ;" plus newline), preserved in the emitted sentence.
const boundaryRunes = ".!?;"

// Split breaks text into sentence-sized chunks on ".", "!", "?", ";" and
// newline, preserving the boundary punctuation on the preceding sentence.
// Fragments shorter than minChars are coalesced onto the next sentence so
// that short interjections ("Ok." "Sure.") don't each trigger a separate
// synthesis round trip.
func Split(text string, minChars int) []string {
	if minChars <= 0 {
		minChars = 20
	}

	var raw []string
	var cur strings.Builder
	for _, r := range text {
		cur.WriteRune(r)
		if r == '\n' {
			raw = append(raw, cur.String())
			cur.Reset()
			continue
		}
		if strings.ContainsRune(boundaryRunes, r) {
			raw = append(raw, cur.String())
			cur.Reset()
		}
	}
	if cur.Len() > 0 {
		raw = append(raw, cur.String())
	}

	var out []string
	var pending strings.Builder
	for _, s := range raw {
		trimmed := strings.TrimSpace(s)
		if trimmed == "" {
			continue
		}
		if pending.Len() > 0 {
			pending.WriteString(" ")
		}
		pending.WriteString(trimmed)
		if pending.Len() >= minChars {
			out = append(out, pending.String())
			pending.Reset()
		}
	}
	if pending.Len() > 0 {
		out = append(out, pending.String())
	}
	return out
}
