package domain

import "time"

// WebSubSubscription is one channel's push-subscription lease with the hub.
type WebSubSubscription struct {
	ChannelID    string    `json:"channel_id"`
	FeedURL      string    `json:"feed_url"`
	CallbackURL  string    `json:"callback_url"`
	SubscribedAt time.Time `json:"subscribed_at"`
	ExpiresAt    time.Time `json:"expires_at"`
	IsActive     bool      `json:"is_active"`
}
