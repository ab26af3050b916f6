package stt

import "strings"

// garbageTranscripts is the frozen "no-speech" set (spec.md §4.5, Open
// Question in §9 resolved in SPEC_FULL.md §6). Matching is case-insensitive
// against the trimmed transcript.
var garbageTranscripts = map[string]bool{
	"":              true,
	"[blank_audio]": true,
	"[music]":       true,
	"(silence)":     true,
	"[silence]":     true,
	"[no speech]":   true,
	"[inaudible]":   true,
	"...":           true,
	".":             true,
}

// isGarbage reports whether text should be treated as empty per spec.md
// §4.5's garbage-transcript filter.
func isGarbage(text string) bool {
	trimmed := strings.ToLower(strings.TrimSpace(text))
	return garbageTranscripts[trimmed]
}
