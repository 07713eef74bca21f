package logging

import "testing"

func TestTruncate(t *testing.T) {
	if got := Truncate("  short\n", 10); got != "short" {
		t.Fatalf("unexpected %q", got)
	}
	if got := Truncate("line one\nline two", 8); got != "line one..." {
		t.Fatalf("unexpected %q", got)
	}
}
