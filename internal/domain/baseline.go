package domain

import "time"

// ChannelBaseline is the cached median performance for a channel's content of
// one type at one window. Derived from snapshots, upserted, never authored.
type ChannelBaseline struct {
	ChannelID      string     `json:"channel_id"`
	IsShort        bool       `json:"is_short"`
	WindowType     WindowType `json:"window_type"`
	MedianViews    int64      `json:"median_views"`
	MedianLikes    int64      `json:"median_likes"`
	MedianComments int64      `json:"median_comments"`
	SampleSize     int        `json:"sample_size"`
	UpdatedAt      time.Time  `json:"updated_at"`
}
