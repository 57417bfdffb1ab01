package text_test

import (
	"testing"

	"github.com/google/go-cmp/cmp"

	"grant-insight/internal/utils/text"
)

func TestCountRunes(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  int
	}{
		{"ascii", "hello", 5},
		{"empty", "", 0},
		{"japanese", "こんにちは", 5},
		{"mixed", "hello世界", 7},
		{"emoji", "Hello👋", 6},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := text.CountRunes(tt.input); got != tt.want {
				t.Errorf("CountRunes(%q) = %d, want %d", tt.input, got, tt.want)
			}
		})
	}
}

func TestTruncate(t *testing.T) {
	tests := []struct {
		name  string
		input string
		limit int
		want  string
	}{
		{"short enough", "hello", 10, "hello"},
		{"exact", "hello", 5, "hello"},
		{"cut", "hello world", 8, "hello..."},
		{"multibyte", "日本語のテキスト", 5, "日本..."},
		{"tiny limit", "hello", 2, "he"},
		{"zero", "hello", 0, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := text.Truncate(tt.input, tt.limit); got != tt.want {
				t.Errorf("Truncate(%q, %d) = %q, want %q", tt.input, tt.limit, got, tt.want)
			}
		})
	}
}

func TestSentences(t *testing.T) {
	got := text.Sentences("We dig wells.  Rural  districts lack water!\nBudget follows\n\nDone?")
	want := []string{"We dig wells.", "Rural districts lack water!", "Budget follows", "Done?"}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("Sentences mismatch (-want +got):\n%s", diff)
	}
}

func TestKeywords(t *testing.T) {
	body := "Water access matters. Clean water for rural schools. Schools need water and sanitation."
	got := text.Keywords(body, 3)
	want := []string{"water", "schools", "access"}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("Keywords mismatch (-want +got):\n%s", diff)
	}

	if got := text.Keywords(body, 0); got != nil {
		t.Errorf("Keywords(n=0) = %v, want nil", got)
	}
}

func TestOverlap(t *testing.T) {
	if got := text.Overlap("clean water grants", "Funding for clean water projects"); got < 0.66 || got > 0.67 {
		t.Errorf("Overlap = %v, want 2/3", got)
	}
	if got := text.Overlap("the and of", "anything"); got != 0 {
		t.Errorf("Overlap with only stopwords = %v, want 0", got)
	}
}

func TestNormalize(t *testing.T) {
	if got := text.Normalize("  What   GRANTS\tfit? "); got != "what grants fit?" {
		t.Errorf("Normalize = %q", got)
	}
}
