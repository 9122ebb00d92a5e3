package prompts

import (
	"strings"
	"testing"
	"time"
)

func TestSystem(t *testing.T) {
	now := time.Date(2025, 8, 31, 23, 15, 0, 0, time.UTC)
	got := System(42, now)

	if !strings.Contains(got, "shard 42") {
		t.Error("prompt missing shard id")
	}
	if !strings.Contains(got, "2025-08-31") {
		t.Error("prompt missing current date")
	}
	if !strings.Contains(got, "export_results") {
		t.Error("prompt missing export guidance")
	}
	if !strings.Contains(got, "search_customers") {
		t.Error("prompt missing id-lookup guidance")
	}
}

func TestSystem_DateIsUTC(t *testing.T) {
	loc := time.FixedZone("UTC+13", 13*3600)
	// Local date is already Sep 1; the prompt pins to the UTC date.
	now := time.Date(2025, 9, 1, 10, 0, 0, 0, loc)
	if got := System(1, now); !strings.Contains(got, "2025-08-31") {
		t.Errorf("prompt date not UTC-normalized:\n%s", got)
	}
}
