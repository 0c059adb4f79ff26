package tokenizer

import (
	"strings"
	"testing"
)

func TestCountAlwaysPositive(t *testing.T) {
	tok := New()

	tests := []string{"", "x", "hello world", strings.Repeat("func main() {}\n", 100)}
	for _, text := range tests {
		if got := tok.Count(text); got < 1 {
			t.Errorf("Count(%q...) = %d, want >= 1", truncate(text), got)
		}
	}
}

func TestCountMonotonicOnRepetition(t *testing.T) {
	tok := New()

	short := tok.Count("var x = 1\n")
	long := tok.Count(strings.Repeat("var x = 1\n", 50))
	if long <= short {
		t.Errorf("expected longer text to have more tokens: short=%d long=%d", short, long)
	}
}

func TestHeuristicCount(t *testing.T) {
	tests := []struct {
		text string
		want int
	}{
		{"", 1},
		{"abc", 1},
		{"abcd", 1},
		{"abcdefgh", 2},
		{strings.Repeat("a", 400), 100},
	}

	for _, tt := range tests {
		if got := heuristicCount(tt.text); got != tt.want {
			t.Errorf("heuristicCount(len=%d) = %d, want %d", len(tt.text), got, tt.want)
		}
	}
}

func TestSharedIsStable(t *testing.T) {
	a := Shared()
	b := Shared()
	if a != b {
		t.Error("Shared() should return the same instance")
	}
}

func TestEncodingName(t *testing.T) {
	tok := New()
	name := tok.Encoding()
	if tok.Heuristic() {
		if name != "heuristic" {
			t.Errorf("heuristic tokenizer encoding = %q", name)
		}
		return
	}
	if name != "cl100k_base" {
		t.Errorf("encoding = %q, want cl100k_base", name)
	}
}

func truncate(s string) string {
	if len(s) > 12 {
		return s[:12]
	}
	return s
}
