package domain

import "time"

// Snapshot is an immutable metrics fact captured at one window. Append-only;
// when duplicates exist for a (video, window) the latest captured_at wins.
type Snapshot struct {
	ID         int64      `json:"id"`
	VideoID    string     `json:"video_id"`
	WindowType WindowType `json:"window_type"`
	Views      int64      `json:"views"`
	Likes      int64      `json:"likes"`
	Comments   int64      `json:"comments"`
	CapturedAt time.Time  `json:"captured_at"`
}

// VideoMetrics is the raw triple the metrics provider returns.
type VideoMetrics struct {
	Views    int64 `json:"views"`
	Likes    int64 `json:"likes"`
	Comments int64 `json:"comments"`
}

// ScheduleStatus is the state of one scheduled capture.
type ScheduleStatus string

const (
	SchedulePending   ScheduleStatus = "pending"
	ScheduleCompleted ScheduleStatus = "completed"
	ScheduleFailed    ScheduleStatus = "failed"
)

// ScheduledSnapshot is one pending measurement task: capture video_id's
// metrics at window_type once scheduled_for has passed. Created in bulk when
// the video is created, mutated only by the snapshot worker, never deleted.
type ScheduledSnapshot struct {
	ID           int64          `json:"id"`
	VideoID      string         `json:"video_id"`
	WindowType   WindowType     `json:"window_type"`
	ScheduledFor time.Time      `json:"scheduled_for"`
	Status       ScheduleStatus `json:"status"`
	Attempts     int            `json:"attempts"`
	LastError    string         `json:"last_error"`
	CompletedAt  time.Time      `json:"completed_at"`
}

// SnapshotCoverage reports how many of a video's expected windows have a
// recorded snapshot.
type SnapshotCoverage struct {
	VideoID  string  `json:"video_id"`
	Actual   int     `json:"actual"`
	Expected int     `json:"expected"`
	Coverage float64 `json:"coverage"`
}
