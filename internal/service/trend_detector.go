package service

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/creatrr/competitor-tracker-go/internal/constants"
	"github.com/creatrr/competitor-tracker-go/internal/domain"
	"github.com/creatrr/competitor-tracker-go/internal/service/ai"
	"github.com/creatrr/competitor-tracker-go/internal/util"
)

type trendTopicStore interface {
	GetTopicsForVideos(ctx context.Context, videoIDs []string) ([]*domain.VideoTopic, error)
	GetClusterIndex(ctx context.Context, bucketID string) (map[string]string, error)
	SaveCluster(ctx context.Context, bucketID, normalizedName string, topics []string) (string, error)
	GetClusters(ctx context.Context, bucketID string) ([]*domain.TopicCluster, error)
	UpsertTrending(ctx context.Context, t *domain.TrendingTopic) error
	GetLiveTrending(ctx context.Context, bucketID string) ([]*domain.TrendingTopic, error)
	MarkTrendingInactive(ctx context.Context, ids []string) error
	ExpireStale(ctx context.Context, cutoff time.Time) (int, error)
}

type trendBucketStore interface {
	GetAll(ctx context.Context) ([]*domain.Bucket, error)
	GetChannelIDs(ctx context.Context, bucketID string) ([]string, error)
}

type trendVideoStore interface {
	GetPublishedSince(ctx context.Context, channelIDs []string, cutoff time.Time) ([]*domain.Video, error)
}

type trendSnapshotStore interface {
	GetLatestAtWindow(ctx context.Context, videoIDs []string, window domain.WindowType) (map[string]*domain.Snapshot, error)
}

type trendChannelStore interface {
	GetActive(ctx context.Context) ([]*domain.Channel, error)
}

type topicClusterer interface {
	ClusterTopics(ctx context.Context, topics []string, promptContext string) (*ai.ClusterResult, error)
}

// TrendDetector finds topic clusters spanning multiple channels within a
// bucket. Cluster identity is persistent: known topics are resolved through
// the stored index and only new vocabulary reaches the oracle, so trend rows
// keep their identity (and first_detected_at) across runs.
type TrendDetector struct {
	topics    trendTopicStore
	buckets   trendBucketStore
	videos    trendVideoStore
	snapshots trendSnapshotStore
	channels  trendChannelStore
	baselines performanceRater
	oracle    topicClusterer
	logger    *zap.Logger
}

func NewTrendDetector(topics trendTopicStore, buckets trendBucketStore, videos trendVideoStore,
	snapshots trendSnapshotStore, channels trendChannelStore, baselines performanceRater,
	oracle topicClusterer, logger *zap.Logger) *TrendDetector {
	return &TrendDetector{
		topics:    topics,
		buckets:   buckets,
		videos:    videos,
		snapshots: snapshots,
		channels:  channels,
		baselines: baselines,
		oracle:    oracle,
		logger:    logger,
	}
}

// DetectedTrend is one cluster that met the reporting threshold.
type DetectedTrend struct {
	BucketID       string
	ClusterID      string
	ClusterName    string
	ChannelCount   int
	VideoCount     int
	AvgPerformance float64
	HasPerformance bool
	VideoIDs       []string
}

// TrendRunSummary reports one full detection run.
type TrendRunSummary struct {
	Buckets         int
	QualifiedTopics int
	NewTopics       int
	ClustersUpdated int
	Deactivated     int
	Expired         int
	Degraded        bool
	Trends          []DetectedTrend
}

// DetectTrends runs per-bucket detection for every configured bucket, or a
// single global pass when no buckets exist.
func (d *TrendDetector) DetectTrends(ctx context.Context) (*TrendRunSummary, error) {
	summary := &TrendRunSummary{}

	buckets, err := d.buckets.GetAll(ctx)
	if err != nil {
		return nil, err
	}

	if len(buckets) == 0 {
		channels, err := d.channels.GetActive(ctx)
		if err != nil {
			return nil, err
		}
		channelIDs := make([]string, len(channels))
		for i, ch := range channels {
			channelIDs[i] = ch.ChannelID
		}
		d.detectForScope(ctx, "", "", channelIDs, summary)
	} else {
		summary.Buckets = len(buckets)
		for _, bucket := range buckets {
			if ctx.Err() != nil {
				return summary, ctx.Err()
			}
			channelIDs, err := d.buckets.GetChannelIDs(ctx, bucket.ID)
			if err != nil {
				d.logger.Error("failed to load bucket channels",
					zap.String("bucketId", bucket.ID),
					zap.Error(err))
				continue
			}
			d.detectForScope(ctx, bucket.ID, bucket.Name, channelIDs, summary)
		}
	}

	expired, err := d.topics.ExpireStale(ctx, time.Now().Add(-constants.TrendConfig.StaleAfter))
	if err != nil {
		d.logger.Error("staleness expiry failed", zap.Error(err))
	} else {
		summary.Expired = expired
	}

	d.logger.Info("trend detection finished",
		zap.Int("buckets", summary.Buckets),
		zap.Int("qualifiedTopics", summary.QualifiedTopics),
		zap.Int("newTopics", summary.NewTopics),
		zap.Int("clustersUpdated", summary.ClustersUpdated),
		zap.Int("deactivated", summary.Deactivated),
		zap.Int("trendsDetected", len(summary.Trends)),
		zap.Bool("degraded", summary.Degraded))
	return summary, nil
}

// detectForScope runs detection for one bucket (or the global scope when
// bucketID is empty). Per-scope failures are logged and tallied, never
// propagated.
func (d *TrendDetector) detectForScope(ctx context.Context, bucketID, bucketName string, channelIDs []string, summary *TrendRunSummary) {
	qualified, err := d.collectQualifiedTopics(ctx, channelIDs)
	if err != nil {
		d.logger.Error("failed to collect qualified topics",
			zap.String("bucketId", bucketID),
			zap.Error(err))
		return
	}
	summary.QualifiedTopics += len(qualified)

	index, err := d.topics.GetClusterIndex(ctx, bucketID)
	if err != nil {
		d.logger.Error("failed to load cluster index",
			zap.String("bucketId", bucketID),
			zap.Error(err))
		return
	}

	// Partition the run's vocabulary into known and new topics.
	var vocabulary []string
	seen := make(map[string]bool)
	for _, q := range qualified {
		if !seen[q.Topic] {
			seen[q.Topic] = true
			vocabulary = append(vocabulary, q.Topic)
		}
	}
	var newTopics []string
	for _, t := range vocabulary {
		if _, known := index[t]; !known {
			newTopics = append(newTopics, t)
		}
	}
	summary.NewTopics += len(newTopics)

	clusterNames := make(map[string]string)
	existing, err := d.topics.GetClusters(ctx, bucketID)
	if err != nil {
		d.logger.Error("failed to load clusters",
			zap.String("bucketId", bucketID),
			zap.Error(err))
		return
	}
	for _, c := range existing {
		clusterNames[c.ID] = c.NormalizedName
	}

	if len(newTopics) > 0 {
		if err := d.clusterNewTopics(ctx, bucketID, bucketName, newTopics, index, clusterNames, summary); err != nil {
			d.logger.Error("clustering new topics failed",
				zap.String("bucketId", bucketID),
				zap.Error(err))
			return
		}
	}

	activeClusters := d.upsertTrendRows(ctx, bucketID, channelIDs, qualified, index, clusterNames, summary)
	d.deactivateMissing(ctx, bucketID, activeClusters, summary)
}

// collectQualifiedTopics builds the (video, topic) rows passing the
// performance gate for the scope's channels within the trend window.
func (d *TrendDetector) collectQualifiedTopics(ctx context.Context, channelIDs []string) ([]*domain.QualifiedTopic, error) {
	if len(channelIDs) == 0 {
		return nil, nil
	}

	videos, err := d.videos.GetPublishedSince(ctx, channelIDs, TrendWindowCutoff(time.Now()))
	if err != nil {
		return nil, err
	}
	if len(videos) == 0 {
		return nil, nil
	}

	videoIDs := make([]string, len(videos))
	videoByID := make(map[string]*domain.Video, len(videos))
	for i, v := range videos {
		videoIDs[i] = v.VideoID
		videoByID[v.VideoID] = v
	}

	topicRows, err := d.topics.GetTopicsForVideos(ctx, videoIDs)
	if err != nil {
		return nil, err
	}
	if len(topicRows) == 0 {
		return nil, nil
	}

	window := domain.WindowType(constants.TrendConfig.ReferenceWindow)
	snapshots, err := d.snapshots.GetLatestAtWindow(ctx, videoIDs, window)
	if err != nil {
		return nil, err
	}

	// Per-video gate results, computed once even when a video has several
	// topics.
	type gate struct {
		pass     bool
		views    int64
		ratio    float64
		hasRatio bool
	}
	gates := make(map[string]gate)

	var qualified []*domain.QualifiedTopic
	for _, row := range topicRows {
		g, done := gates[row.VideoID]
		if !done {
			video := videoByID[row.VideoID]
			snap := snapshots[row.VideoID]
			if video == nil || snap == nil {
				g = gate{}
			} else {
				ratio, ok, err := d.baselines.PerformanceRatio(ctx, video.ChannelID, video.IsShort, window, snap.Views)
				if err != nil {
					return nil, err
				}
				g = gate{
					views:    snap.Views,
					ratio:    ratio,
					hasRatio: ok,
					pass:     !ok || ratio >= constants.TrendConfig.MinPerformance,
				}
			}
			gates[row.VideoID] = g
		}
		if !g.pass {
			continue
		}
		qualified = append(qualified, &domain.QualifiedTopic{
			VideoID:          row.VideoID,
			ChannelID:        videoByID[row.VideoID].ChannelID,
			Topic:            row.Topic,
			Views:            g.views,
			PerformanceRatio: g.ratio,
			HasRatio:         g.hasRatio,
		})
	}
	return qualified, nil
}

// clusterNewTopics sends the unseen vocabulary to the oracle, persists the
// resulting clusters, and extends the in-memory index with the new mappings.
// Topics already mapped never move clusters here.
func (d *TrendDetector) clusterNewTopics(ctx context.Context, bucketID, bucketName string, newTopics []string,
	index map[string]string, clusterNames map[string]string, summary *TrendRunSummary) error {

	result, err := d.oracle.ClusterTopics(ctx, newTopics, bucketName)
	if err != nil {
		return err
	}
	if result.Degraded {
		summary.Degraded = true
	}

	assigned := make(map[string]bool)
	for _, cluster := range result.Clusters {
		// First cluster wins when the oracle lists a topic twice.
		members := make([]string, 0, len(cluster.Topics))
		for _, t := range cluster.Topics {
			if assigned[t] {
				continue
			}
			if _, known := index[t]; known {
				continue
			}
			assigned[t] = true
			members = append(members, t)
		}
		if len(members) == 0 {
			continue
		}

		clusterID, err := d.topics.SaveCluster(ctx, bucketID, cluster.Name, members)
		if err != nil {
			d.logger.Error("failed to save cluster",
				zap.String("bucketId", bucketID),
				zap.String("cluster", cluster.Name),
				zap.Error(err))
			continue
		}
		clusterNames[clusterID] = cluster.Name
		for _, t := range members {
			index[t] = clusterID
		}
	}
	return nil
}

// upsertTrendRows recomputes cluster membership over the qualified set and
// writes the per-cluster trend rows, returning the set of cluster IDs that
// appeared this run.
func (d *TrendDetector) upsertTrendRows(ctx context.Context, bucketID string, channelIDs []string,
	qualified []*domain.QualifiedTopic, index map[string]string, clusterNames map[string]string,
	summary *TrendRunSummary) map[string]bool {

	type clusterAgg struct {
		videoIDs []string
		videos   map[string]bool
		channels map[string]bool
		ratioSum float64
		ratioN   int
	}
	aggs := make(map[string]*clusterAgg)

	for _, q := range qualified {
		clusterID, ok := index[q.Topic]
		if !ok {
			continue
		}
		agg := aggs[clusterID]
		if agg == nil {
			agg = &clusterAgg{
				videos:   make(map[string]bool),
				channels: make(map[string]bool),
			}
			aggs[clusterID] = agg
		}
		if agg.videos[q.VideoID] {
			continue
		}
		agg.videos[q.VideoID] = true
		agg.videoIDs = append(agg.videoIDs, q.VideoID)
		agg.channels[q.ChannelID] = true
		if q.HasRatio {
			agg.ratioSum += q.PerformanceRatio
			agg.ratioN++
		}
	}

	now := time.Now()
	periodStart := TrendWindowCutoff(now)
	reportThreshold := util.Max(2, util.Min(constants.TrendConfig.MinChannels, len(channelIDs)/2))

	activeClusters := make(map[string]bool)
	for clusterID, agg := range aggs {
		channelCount := len(agg.channels)

		status := domain.TrendFading
		if channelCount >= 2 {
			status = domain.TrendActive
		}

		// FirstDetectedAt only lands on insert; the upsert's conflict
		// branch keeps the stored value for an existing row.
		row := &domain.TrendingTopic{
			BucketID:        bucketID,
			ClusterID:       clusterID,
			ClusterName:     clusterNames[clusterID],
			ChannelCount:    channelCount,
			VideoCount:      len(agg.videoIDs),
			HasPerformance:  agg.ratioN > 0,
			VideoIDs:        agg.videoIDs,
			PeriodStart:     periodStart,
			PeriodEnd:       now,
			Status:          status,
			FirstDetectedAt: now,
			DetectedAt:      now,
		}
		if agg.ratioN > 0 {
			row.AvgPerformance = agg.ratioSum / float64(agg.ratioN)
		}

		if err := d.topics.UpsertTrending(ctx, row); err != nil {
			d.logger.Error("failed to upsert trending topic",
				zap.String("bucketId", bucketID),
				zap.String("clusterId", clusterID),
				zap.Error(err))
			continue
		}
		activeClusters[clusterID] = true
		summary.ClustersUpdated++

		if channelCount >= reportThreshold {
			summary.Trends = append(summary.Trends, DetectedTrend{
				BucketID:       bucketID,
				ClusterID:      clusterID,
				ClusterName:    row.ClusterName,
				ChannelCount:   channelCount,
				VideoCount:     row.VideoCount,
				AvgPerformance: row.AvgPerformance,
				HasPerformance: row.HasPerformance,
				VideoIDs:       agg.videoIDs,
			})
			d.logger.Info("trend detected",
				zap.String("bucketId", bucketID),
				zap.String("cluster", row.ClusterName),
				zap.Int("channels", channelCount),
				zap.Int("videos", row.VideoCount),
				zap.Float64("avgPerformance", row.AvgPerformance))
		}
	}
	return activeClusters
}

// deactivateMissing forces previously live trend rows to inactive when their
// cluster produced no qualifying video this run.
func (d *TrendDetector) deactivateMissing(ctx context.Context, bucketID string, activeClusters map[string]bool, summary *TrendRunSummary) {
	live, err := d.topics.GetLiveTrending(ctx, bucketID)
	if err != nil {
		d.logger.Error("failed to load live trends",
			zap.String("bucketId", bucketID),
			zap.Error(err))
		return
	}

	var stale []string
	for _, t := range live {
		if !activeClusters[t.ClusterID] {
			stale = append(stale, t.ID)
		}
	}
	if len(stale) == 0 {
		return
	}

	if err := d.topics.MarkTrendingInactive(ctx, stale); err != nil {
		d.logger.Error("failed to deactivate trends",
			zap.String("bucketId", bucketID),
			zap.Error(err))
		return
	}
	summary.Deactivated += len(stale)
}
