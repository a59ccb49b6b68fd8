package domain

import "time"

// TrackingStatus is a video's lifecycle state.
type TrackingStatus string

const (
	TrackingActive    TrackingStatus = "active"
	TrackingCompleted TrackingStatus = "completed"
	TrackingDeleted   TrackingStatus = "deleted"
)

// Video is a discovered video under measurement. Exactly one row exists per
// external video ID.
type Video struct {
	VideoID         string         `json:"video_id"`
	ChannelID       string         `json:"channel_id"`
	Title           string         `json:"title"`
	Description     string         `json:"description"`
	PublishedAt     time.Time      `json:"published_at"`
	DurationSeconds int            `json:"duration_seconds"`
	IsShort         bool           `json:"is_short"`
	TrackingStatus  TrackingStatus `json:"tracking_status"`
	TrackingUntil   time.Time      `json:"tracking_until"`
}

// VideoDetails is the full metadata the metrics provider returns at
// discovery time.
type VideoDetails struct {
	VideoID         string    `json:"video_id"`
	ChannelID       string    `json:"channel_id"`
	Title           string    `json:"title"`
	Description     string    `json:"description"`
	PublishedAt     time.Time `json:"published_at"`
	DurationSeconds int       `json:"duration_seconds"`
	Views           int64     `json:"views"`
	Likes           int64     `json:"likes"`
	Comments        int64     `json:"comments"`
}
