package domain

import "time"

// WindowType identifies one fixed measurement window relative to a video's
// publish time. The 0h window is captured synchronously at discovery and is
// never scheduled.
type WindowType string

const (
	Window0h  WindowType = "0h"
	Window1h  WindowType = "1h"
	Window6h  WindowType = "6h"
	Window12h WindowType = "12h"
	Window24h WindowType = "24h"
	Window48h WindowType = "48h"
	Window7d  WindowType = "7d"
	Window14d WindowType = "14d"
)

var windowOffsets = map[WindowType]time.Duration{
	Window0h:  0,
	Window1h:  1 * time.Hour,
	Window6h:  6 * time.Hour,
	Window12h: 12 * time.Hour,
	Window24h: 24 * time.Hour,
	Window48h: 48 * time.Hour,
	Window7d:  7 * 24 * time.Hour,
	Window14d: 14 * 24 * time.Hour,
}

var windowOrder = []WindowType{
	Window0h, Window1h, Window6h, Window12h,
	Window24h, Window48h, Window7d, Window14d,
}

// AllWindows returns every window in chronological order.
func AllWindows() []WindowType {
	out := make([]WindowType, len(windowOrder))
	copy(out, windowOrder)
	return out
}

// ScheduledWindows returns the windows that get schedule entries, which is
// everything except 0h.
func ScheduledWindows() []WindowType {
	out := make([]WindowType, 0, len(windowOrder)-1)
	for _, w := range windowOrder {
		if w != Window0h {
			out = append(out, w)
		}
	}
	return out
}

// TerminalWindow is the last window; completing it ends a video's tracking.
func TerminalWindow() WindowType {
	return windowOrder[len(windowOrder)-1]
}

// Offset returns the window's distance from publish time.
func (w WindowType) Offset() time.Duration {
	return windowOffsets[w]
}

func (w WindowType) IsValid() bool {
	_, ok := windowOffsets[w]
	return ok
}

// TrackingDuration is how long a video stays under measurement after
// publish, which equals the terminal window's offset.
func TrackingDuration() time.Duration {
	return windowOffsets[TerminalWindow()]
}
