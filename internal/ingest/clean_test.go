package ingest

import (
	"errors"
	"testing"
)

func TestClean(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"collapses spaces", "a   b\t\tc", "a b c"},
		{"collapses newlines", "line one\n\n\n\nline two", "line one\nline two"},
		{"trims edges", "  \n padded \n  ", "padded"},
		{"mixed whitespace around newline", "a \n\t b", "a\nb"},
		{"already clean", "nothing to do here", "nothing to do here"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Clean(tt.in)
			if err != nil {
				t.Fatalf("Clean(%q) error: %v", tt.in, err)
			}
			if got != tt.want {
				t.Errorf("Clean(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestCleanEmpty(t *testing.T) {
	for _, in := range []string{"", "   ", "\n\n\t  \n"} {
		_, err := Clean(in)
		var ece *EmptyContentError
		if !errors.As(err, &ece) {
			t.Errorf("Clean(%q) = %v, want EmptyContentError", in, err)
		}
	}
}
