package logger

import (
	"errors"
	"testing"
)

func TestProgressTracker_Update(t *testing.T) {
	tracker := NewProgressTracker("test run", 4, nil)

	tracker.Update(1, "parse")
	stats := tracker.GetStats()
	if stats.Current != 1 {
		t.Errorf("Expected current 1, got %d", stats.Current)
	}
	if stats.Stage != "parse" {
		t.Errorf("Expected stage 'parse', got %q", stats.Stage)
	}
	if stats.Percentage != 25.0 {
		t.Errorf("Expected 25%%, got %.1f", stats.Percentage)
	}

	tracker.Update(3, "match")
	stats = tracker.GetStats()
	if stats.Stage != "match" {
		t.Errorf("Expected stage 'match', got %q", stats.Stage)
	}
	if stats.Percentage != 75.0 {
		t.Errorf("Expected 75%%, got %.1f", stats.Percentage)
	}

	tracker.Complete()
	stats = tracker.GetStats()
	if stats.Current != stats.Total {
		t.Errorf("Expected completion at %d/%d, got %d", stats.Total, stats.Total, stats.Current)
	}
}

func TestProgressTracker_CompleteWithError(t *testing.T) {
	tracker := NewProgressTracker("failing run", 2, nil)

	tracker.Update(1, "parse")
	tracker.CompleteWithError(errors.New("bad input"))

	// A failed run keeps its last position instead of jumping to done
	stats := tracker.GetStats()
	if stats.Current != 1 {
		t.Errorf("Expected current 1 after failure, got %d", stats.Current)
	}
	if stats.Stage != "parse" {
		t.Errorf("Expected stage 'parse' after failure, got %q", stats.Stage)
	}
}

func TestProgressTracker_OpenEnded(t *testing.T) {
	tracker := NewProgressTracker("open-ended run", 0, nil)

	tracker.Update(5, "scan")
	stats := tracker.GetStats()
	if stats.Current != 5 {
		t.Errorf("Expected current 5, got %d", stats.Current)
	}
	if stats.Percentage != 0 {
		t.Errorf("Expected zero percentage without a total, got %.1f", stats.Percentage)
	}
}
