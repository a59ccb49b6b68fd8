package constants

import "time"

var SnapshotConfig = struct {
	MaxAttempts  int
	SweepLimit   int
	FetchTimeout time.Duration
}{
	MaxAttempts:  3,
	SweepLimit:   100,
	FetchTimeout: 30 * time.Second,
}

var BaselineConfig = struct {
	SampleSize int
	MinSample  int
}{
	SampleSize: 30, // most recent snapshots used for the median
	MinSample:  5,  // below this, no baseline is produced
}

var TrendConfig = struct {
	MinChannels      int
	MinPerformance   float64
	WindowDays       int
	ClusterBatchSize int
	ReferenceWindow  string
	StaleAfter       time.Duration
}{
	MinChannels:      3,
	MinPerformance:   1.5,
	WindowDays:       14,
	ClusterBatchSize: 50, // max topics per oracle call
	ReferenceWindow:  "24h",
	StaleAfter:       30 * 24 * time.Hour,
}

var ExtractionConfig = struct {
	MaxTopics           int
	MaxTranscriptChars  int
	MaxDescriptionChars int
	MaxContentChars     int
}{
	MaxTopics:           3,
	MaxTranscriptChars:  5000,
	MaxDescriptionChars: 2000,
	MaxContentChars:     4000,
}

var OracleConfig = struct {
	ParseRetries    int
	RequestTimeout  time.Duration
	Temperature     float32
	MaxOutputTokens int32
}{
	ParseRetries:    1, // one retry on malformed output, then fallback
	RequestTimeout:  60 * time.Second,
	Temperature:     0.1,
	MaxOutputTokens: 2000,
}

var ShortsConfig = struct {
	ProbeTimeout    time.Duration
	MaxShortSeconds int
	CacheTTL        time.Duration
}{
	ProbeTimeout:    10 * time.Second,
	MaxShortSeconds: 180,
	CacheTTL:        7 * 24 * time.Hour,
}

var DiscoveryConfig = struct {
	FeedTimeout    time.Duration
	MaxConcurrency int
}{
	FeedTimeout:    15 * time.Second,
	MaxConcurrency: 5,
}

var CircuitBreakerConfig = struct {
	FailureThreshold int
	ResetTimeout     time.Duration
	RateLimitTimeout time.Duration
}{
	FailureThreshold: 3,
	ResetTimeout:     5 * time.Minute,
	RateLimitTimeout: 15 * time.Minute,
}

var CacheTTL = struct {
	Transcript  time.Duration
	ChannelInfo time.Duration
}{
	Transcript:  24 * time.Hour,
	ChannelInfo: 20 * time.Minute,
}
