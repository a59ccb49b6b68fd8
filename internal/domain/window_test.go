package domain

import (
	"testing"
	"time"
)

func TestWindowOffsets(t *testing.T) {
	tests := []struct {
		window WindowType
		offset time.Duration
	}{
		{Window0h, 0},
		{Window1h, time.Hour},
		{Window6h, 6 * time.Hour},
		{Window12h, 12 * time.Hour},
		{Window24h, 24 * time.Hour},
		{Window48h, 48 * time.Hour},
		{Window7d, 7 * 24 * time.Hour},
		{Window14d, 14 * 24 * time.Hour},
	}

	for _, tt := range tests {
		if got := tt.window.Offset(); got != tt.offset {
			t.Errorf("%s.Offset() = %v, want %v", tt.window, got, tt.offset)
		}
		if !tt.window.IsValid() {
			t.Errorf("%s.IsValid() = false", tt.window)
		}
	}
}

func TestScheduledWindowsExclude0h(t *testing.T) {
	windows := ScheduledWindows()
	if len(windows) != len(AllWindows())-1 {
		t.Fatalf("ScheduledWindows() has %d entries, want %d", len(windows), len(AllWindows())-1)
	}
	for _, w := range windows {
		if w == Window0h {
			t.Error("ScheduledWindows() contains the 0h window")
		}
	}
}

func TestTerminalWindow(t *testing.T) {
	if got := TerminalWindow(); got != Window14d {
		t.Errorf("TerminalWindow() = %s, want %s", got, Window14d)
	}
	if got := TrackingDuration(); got != 14*24*time.Hour {
		t.Errorf("TrackingDuration() = %v, want %v", got, 14*24*time.Hour)
	}
}

func TestInvalidWindow(t *testing.T) {
	if WindowType("3h").IsValid() {
		t.Error(`WindowType("3h").IsValid() = true`)
	}
}
