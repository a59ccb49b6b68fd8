package domain

import "time"

// VideoTopic is one extracted topic phrase for a video. A video has zero to
// three; extraction is attempted at most once per video.
type VideoTopic struct {
	VideoID string `json:"video_id"`
	Topic   string `json:"topic"`
}

// TopicCluster is a persistent named group of semantically similar topic
// strings, scoped to a bucket (empty BucketID means global mode). A topic
// string maps to at most one cluster within its scope.
type TopicCluster struct {
	ID             string    `json:"id"`
	BucketID       string    `json:"bucket_id"`
	NormalizedName string    `json:"normalized_name"`
	Topics         []string  `json:"topics"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// TrendStatus is a trending topic's lifecycle state.
type TrendStatus string

const (
	TrendActive   TrendStatus = "active"
	TrendFading   TrendStatus = "fading"
	TrendInactive TrendStatus = "inactive"
)

// TrendingTopic is the per-(bucket, cluster) trend row, updated in place
// across detection runs so lifecycle history survives.
type TrendingTopic struct {
	ID              string      `json:"id"`
	BucketID        string      `json:"bucket_id"`
	ClusterID       string      `json:"cluster_id"`
	ClusterName     string      `json:"cluster_name"`
	ChannelCount    int         `json:"channel_count"`
	VideoCount      int         `json:"video_count"`
	AvgPerformance  float64     `json:"avg_performance"`
	HasPerformance  bool        `json:"has_performance"`
	VideoIDs        []string    `json:"video_ids"`
	PeriodStart     time.Time   `json:"period_start"`
	PeriodEnd       time.Time   `json:"period_end"`
	Status          TrendStatus `json:"status"`
	FirstDetectedAt time.Time   `json:"first_detected_at"`
	DetectedAt      time.Time   `json:"detected_at"`
}

// QualifiedTopic is one (video, topic) row that passed the performance gate,
// carrying the data trend detection aggregates over.
type QualifiedTopic struct {
	VideoID          string  `json:"video_id"`
	ChannelID        string  `json:"channel_id"`
	Topic            string  `json:"topic"`
	Views            int64   `json:"views"`
	PerformanceRatio float64 `json:"performance_ratio"`
	HasRatio         bool    `json:"has_ratio"`
}
