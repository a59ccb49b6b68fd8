package domain

import "time"

// Channel is a tracked competitor YouTube channel. Soft-deactivated, never
// hard-deleted while videos reference it.
type Channel struct {
	ChannelID       string    `json:"channel_id"`
	ChannelName     string    `json:"channel_name"`
	SubscriberCount int64     `json:"subscriber_count"`
	TotalVideos     int64     `json:"total_videos"`
	IsActive        bool      `json:"is_active"`
	CreatedAt       time.Time `json:"created_at"`
	LastCheckedAt   time.Time `json:"last_checked_at"`
}

// ChannelInfo is what the metrics provider returns for a channel lookup.
type ChannelInfo struct {
	ChannelID       string `json:"channel_id"`
	ChannelName     string `json:"channel_name"`
	SubscriberCount int64  `json:"subscriber_count"`
	TotalVideos     int64  `json:"total_videos"`
}

// Bucket is a named grouping of channels scoped for trend detection.
// A channel may belong to any number of buckets.
type Bucket struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`
}
