package tts

import (
	"reflect"
	"testing"
)

func TestSplitPreservesPunctuation(t *testing.T) {
	got := Split("Hello there. How are you today? I am fine!", 1)
	want := []string{"Hello there.", "How are you today?", "I am fine!"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("got %v, want %v", got, want)
	}
}

func TestSplitCoalescesShortFragments(t *testing.T) {
	got := Split("Ok. Sure. Let's go to the store and buy some milk.", 20)
	for _, s := range got {
		if len(s) < 20 {
			t.Errorf("fragment %q shorter than min_chunk_chars", s)
		}
	}
}

func TestSplitHandlesNewlines(t *testing.T) {
	got := Split("Line one\nLine two", 1)
	want := []string{"Line one", "Line two"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("got %v, want %v", got, want)
	}
}
