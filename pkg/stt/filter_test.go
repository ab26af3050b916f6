package stt

import "testing"

func TestIsGarbage(t *testing.T) {
	cases := map[string]bool{
		"Hello there":    false,
		"":               true,
		"   ":            true,
		"[BLANK_AUDIO]":  true,
		"[blank_audio]":  true,
		"[Music]":        true,
		"(silence)":      true,
		"[SILENCE]":      true,
		"[No Speech]":    true,
		"[inaudible]":    true,
		"...":            true,
		".":              true,
		"Hello.":         false,
	}
	for text, want := range cases {
		if got := isGarbage(text); got != want {
			t.Errorf("isGarbage(%q) = %v, want %v", text, got, want)
		}
	}
}
