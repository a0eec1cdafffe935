package timespec

import (
	"testing"
	"time"
)

func TestParse_RFC3339(t *testing.T) {
	got, err := Parse("2026-08-29T13:00:00Z")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := time.Date(2026, 8, 29, 13, 0, 0, 0, time.UTC)
	if !got.Equal(want) {
		t.Errorf("expected %v, got %v", want, got)
	}
}

func TestParse_Duration(t *testing.T) {
	before := time.Now().UTC().Add(-time.Hour)
	got, err := Parse("1h")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	after := time.Now().UTC().Add(-time.Hour)

	if got.Before(before) || got.After(after) {
		t.Errorf("expected roughly one hour ago, got %v", got)
	}
}

func TestParse_Invalid(t *testing.T) {
	for _, spec := range []string{"", "yesterday", "1 hour", "2026-13-99"} {
		if _, err := Parse(spec); err == nil {
			t.Errorf("expected error for %q", spec)
		}
	}
}
