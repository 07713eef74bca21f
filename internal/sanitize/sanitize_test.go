package sanitize

import (
	"strings"
	"testing"
)

func TestSanitizeRemovesPhrasesCaseInsensitive(t *testing.T) {
	in := "PRODUCTIVITY MONITOR\nget back on task! editing main.go - unproductive? productive."
	got := Sanitize(in, DefaultPhrases)

	lower := strings.ToLower(got)
	for _, p := range []string{"productivity monitor", "get back on task!", "productive"} {
		if strings.Contains(lower, p) {
			t.Fatalf("expected %q removed, got %q", p, got)
		}
	}
	if !strings.Contains(got, "editing main.go") {
		t.Fatalf("expected unrelated text kept, got %q", got)
	}
}

func TestSanitizeLongestPhraseFirst(t *testing.T) {
	got := Sanitize("you are unproductive", []string{"productive", "unproductive"})
	if got != "you are " {
		t.Fatalf("expected whole phrase removed, got %q", got)
	}
}

func TestSanitizeEmptyPhraseList(t *testing.T) {
	if got := Sanitize("as is", nil); got != "as is" {
		t.Fatalf("expected text unchanged, got %q", got)
	}
}

func TestSuggestMatchesInVocabularyOrder(t *testing.T) {
	got := Suggest("watching youtube after reading reddit", DefaultDistractions)
	if len(got) != 2 || got[0] != "Reddit" || got[1] != "YouTube" {
		t.Fatalf("unexpected suggestions %v", got)
	}
}

func TestSuggestPlaceholderWhenNothingMatches(t *testing.T) {
	got := Suggest("go test ./...", DefaultDistractions)
	if len(got) != 1 || got[0] != NoSuggestions {
		t.Fatalf("expected placeholder, got %v", got)
	}
}
