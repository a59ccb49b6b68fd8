package service

import (
	"context"
	"fmt"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/creatrr/competitor-tracker-go/internal/domain"
	"github.com/creatrr/competitor-tracker-go/internal/service/ai"
)

type fakeTrendTopics struct {
	topicsByVideo map[string][]string
	index         map[string]string
	clusters      []*domain.TopicCluster
	live          []*domain.TrendingTopic

	saved           map[string][]string // clusterID -> topics
	upserted        []*domain.TrendingTopic
	markedInactive  []string
	expireStaleHits int
	nextClusterSeq  int
}

func (f *fakeTrendTopics) GetTopicsForVideos(_ context.Context, videoIDs []string) ([]*domain.VideoTopic, error) {
	var rows []*domain.VideoTopic
	for _, id := range videoIDs {
		for _, topic := range f.topicsByVideo[id] {
			rows = append(rows, &domain.VideoTopic{VideoID: id, Topic: topic})
		}
	}
	return rows, nil
}

func (f *fakeTrendTopics) GetClusterIndex(_ context.Context, _ string) (map[string]string, error) {
	index := make(map[string]string, len(f.index))
	for k, v := range f.index {
		index[k] = v
	}
	return index, nil
}

func (f *fakeTrendTopics) SaveCluster(_ context.Context, _ string, normalizedName string, topics []string) (string, error) {
	f.nextClusterSeq++
	id := fmt.Sprintf("cluster-%d", f.nextClusterSeq)
	if f.saved == nil {
		f.saved = make(map[string][]string)
	}
	f.saved[id] = topics
	f.clusters = append(f.clusters, &domain.TopicCluster{ID: id, NormalizedName: normalizedName, Topics: topics})
	return id, nil
}

func (f *fakeTrendTopics) GetClusters(_ context.Context, _ string) ([]*domain.TopicCluster, error) {
	return f.clusters, nil
}

func (f *fakeTrendTopics) UpsertTrending(_ context.Context, t *domain.TrendingTopic) error {
	f.upserted = append(f.upserted, t)
	return nil
}

func (f *fakeTrendTopics) GetLiveTrending(_ context.Context, _ string) ([]*domain.TrendingTopic, error) {
	return f.live, nil
}

func (f *fakeTrendTopics) MarkTrendingInactive(_ context.Context, ids []string) error {
	f.markedInactive = append(f.markedInactive, ids...)
	return nil
}

func (f *fakeTrendTopics) ExpireStale(_ context.Context, _ time.Time) (int, error) {
	f.expireStaleHits++
	return 2, nil
}

type fakeTrendBuckets struct {
	buckets    []*domain.Bucket
	channelIDs map[string][]string
}

func (f *fakeTrendBuckets) GetAll(_ context.Context) ([]*domain.Bucket, error) {
	return f.buckets, nil
}

func (f *fakeTrendBuckets) GetChannelIDs(_ context.Context, bucketID string) ([]string, error) {
	return f.channelIDs[bucketID], nil
}

type fakeTrendVideos struct {
	videos []*domain.Video
}

func (f *fakeTrendVideos) GetPublishedSince(_ context.Context, channelIDs []string, _ time.Time) ([]*domain.Video, error) {
	allowed := make(map[string]bool, len(channelIDs))
	for _, id := range channelIDs {
		allowed[id] = true
	}
	var out []*domain.Video
	for _, v := range f.videos {
		if allowed[v.ChannelID] {
			out = append(out, v)
		}
	}
	return out, nil
}

type fakeTrendSnapshots struct {
	views map[string]int64
}

func (f *fakeTrendSnapshots) GetLatestAtWindow(_ context.Context, videoIDs []string, window domain.WindowType) (map[string]*domain.Snapshot, error) {
	out := make(map[string]*domain.Snapshot)
	for _, id := range videoIDs {
		if views, ok := f.views[id]; ok {
			out[id] = &domain.Snapshot{VideoID: id, WindowType: window, Views: views}
		}
	}
	return out, nil
}

type fakeTrendChannels struct {
	channels []*domain.Channel
}

func (f *fakeTrendChannels) GetActive(_ context.Context) ([]*domain.Channel, error) {
	return f.channels, nil
}

type fakeClusterer struct {
	result   *ai.ClusterResult
	calls    int
	inputs   [][]string
	contexts []string
}

func (f *fakeClusterer) ClusterTopics(_ context.Context, topics []string, clusterContext string) (*ai.ClusterResult, error) {
	f.calls++
	f.inputs = append(f.inputs, topics)
	f.contexts = append(f.contexts, clusterContext)
	if f.result != nil {
		return f.result, nil
	}
	// One singleton cluster per topic by default.
	result := &ai.ClusterResult{}
	for _, t := range topics {
		result.Clusters = append(result.Clusters, ai.Cluster{Name: t, Topics: []string{t}})
	}
	return result, nil
}

// threeChannelFixture has the same topic on outperforming videos across three
// channels, the minimal setup for a reportable trend in a three-channel scope.
func threeChannelFixture() (*fakeTrendTopics, *fakeTrendBuckets, *fakeTrendVideos, *fakeTrendSnapshots, *fakeTrendChannels) {
	now := time.Now()
	topics := &fakeTrendTopics{topicsByVideo: map[string][]string{
		"v1": {"camping gear reviews"},
		"v2": {"camping gear reviews"},
		"v3": {"camping gear reviews"},
	}}
	videos := &fakeTrendVideos{videos: []*domain.Video{
		{VideoID: "v1", ChannelID: "ch1", PublishedAt: now.Add(-48 * time.Hour)},
		{VideoID: "v2", ChannelID: "ch2", PublishedAt: now.Add(-72 * time.Hour)},
		{VideoID: "v3", ChannelID: "ch3", PublishedAt: now.Add(-96 * time.Hour)},
	}}
	snapshots := &fakeTrendSnapshots{views: map[string]int64{"v1": 3000, "v2": 4000, "v3": 5000}}
	channels := &fakeTrendChannels{channels: []*domain.Channel{
		{ChannelID: "ch1"}, {ChannelID: "ch2"}, {ChannelID: "ch3"},
	}}
	return topics, &fakeTrendBuckets{}, videos, snapshots, channels
}

func TestDetectTrendsReportsCrossChannelCluster(t *testing.T) {
	topics, buckets, videos, snapshots, channels := threeChannelFixture()
	clusterer := &fakeClusterer{result: &ai.ClusterResult{
		Clusters: []ai.Cluster{{Name: "camping gear", Topics: []string{"camping gear reviews"}}},
	}}
	rater := &fakeRater{medians: map[string]int64{"ch1": 1000, "ch2": 2000, "ch3": 2500}}
	detector := NewTrendDetector(topics, buckets, videos, snapshots, channels, rater, clusterer, zap.NewNop())

	summary, err := detector.DetectTrends(context.Background())
	if err != nil {
		t.Fatalf("DetectTrends returned error: %v", err)
	}

	if summary.QualifiedTopics != 3 {
		t.Errorf("QualifiedTopics = %d, want 3", summary.QualifiedTopics)
	}
	if summary.NewTopics != 1 {
		t.Errorf("NewTopics = %d, want 1", summary.NewTopics)
	}
	if len(summary.Trends) != 1 {
		t.Fatalf("Trends = %+v, want exactly one", summary.Trends)
	}

	trend := summary.Trends[0]
	if trend.ChannelCount != 3 || trend.VideoCount != 3 {
		t.Errorf("trend = %+v, want 3 channels and 3 videos", trend)
	}
	// Ratios: 3.0, 2.0, 2.0.
	if !trend.HasPerformance || trend.AvgPerformance < 2.32 || trend.AvgPerformance > 2.34 {
		t.Errorf("AvgPerformance = %v, want about 2.33", trend.AvgPerformance)
	}

	if len(topics.upserted) != 1 {
		t.Fatalf("upserted %d trend rows, want 1", len(topics.upserted))
	}
	if topics.upserted[0].Status != domain.TrendActive {
		t.Errorf("status = %s, want active", topics.upserted[0].Status)
	}
}

func TestDetectTrendsStampsFirstDetection(t *testing.T) {
	topics, buckets, videos, snapshots, channels := threeChannelFixture()
	detector := NewTrendDetector(topics, buckets, videos, snapshots, channels,
		&fakeRater{}, &fakeClusterer{}, zap.NewNop())

	before := time.Now()
	if _, err := detector.DetectTrends(context.Background()); err != nil {
		t.Fatalf("DetectTrends returned error: %v", err)
	}

	if len(topics.upserted) != 1 {
		t.Fatalf("upserted %d trend rows, want 1", len(topics.upserted))
	}
	row := topics.upserted[0]
	if row.FirstDetectedAt.Before(before) {
		t.Errorf("FirstDetectedAt = %v, want at or after %v", row.FirstDetectedAt, before)
	}
	if row.DetectedAt.Before(before) {
		t.Errorf("DetectedAt = %v, want at or after %v", row.DetectedAt, before)
	}
}

func TestDetectTrendsSingleChannelFades(t *testing.T) {
	now := time.Now()
	topics := &fakeTrendTopics{topicsByVideo: map[string][]string{
		"v1": {"solo topic"},
	}}
	videos := &fakeTrendVideos{videos: []*domain.Video{
		{VideoID: "v1", ChannelID: "ch1", PublishedAt: now.Add(-24 * time.Hour)},
	}}
	snapshots := &fakeTrendSnapshots{views: map[string]int64{"v1": 3000}}
	channels := &fakeTrendChannels{channels: []*domain.Channel{
		{ChannelID: "ch1"}, {ChannelID: "ch2"}, {ChannelID: "ch3"}, {ChannelID: "ch4"},
	}}
	detector := NewTrendDetector(topics, &fakeTrendBuckets{}, videos, snapshots, channels,
		&fakeRater{}, &fakeClusterer{}, zap.NewNop())

	summary, err := detector.DetectTrends(context.Background())
	if err != nil {
		t.Fatalf("DetectTrends returned error: %v", err)
	}

	if len(topics.upserted) != 1 {
		t.Fatalf("upserted %d trend rows, want 1", len(topics.upserted))
	}
	if topics.upserted[0].Status != domain.TrendFading {
		t.Errorf("status = %s, want fading", topics.upserted[0].Status)
	}
	if len(summary.Trends) != 0 {
		t.Errorf("Trends = %+v, want none for a single channel", summary.Trends)
	}
}

func TestDetectTrendsDeactivatesMissingClusters(t *testing.T) {
	topics, buckets, videos, snapshots, channels := threeChannelFixture()
	topics.live = []*domain.TrendingTopic{
		{ID: "row-9", ClusterID: "gone-cluster", Status: domain.TrendActive},
	}
	detector := NewTrendDetector(topics, buckets, videos, snapshots, channels,
		&fakeRater{}, &fakeClusterer{}, zap.NewNop())

	summary, err := detector.DetectTrends(context.Background())
	if err != nil {
		t.Fatalf("DetectTrends returned error: %v", err)
	}

	if summary.Deactivated != 1 {
		t.Errorf("Deactivated = %d, want 1", summary.Deactivated)
	}
	if len(topics.markedInactive) != 1 || topics.markedInactive[0] != "row-9" {
		t.Errorf("markedInactive = %v, want [row-9]", topics.markedInactive)
	}
}

func TestDetectTrendsKnownTopicsSkipOracle(t *testing.T) {
	topics, buckets, videos, snapshots, channels := threeChannelFixture()
	topics.index = map[string]string{"camping gear reviews": "cluster-1"}
	topics.clusters = []*domain.TopicCluster{
		{ID: "cluster-1", NormalizedName: "camping gear", Topics: []string{"camping gear reviews"}},
	}
	clusterer := &fakeClusterer{}
	detector := NewTrendDetector(topics, buckets, videos, snapshots, channels,
		&fakeRater{}, clusterer, zap.NewNop())

	summary, err := detector.DetectTrends(context.Background())
	if err != nil {
		t.Fatalf("DetectTrends returned error: %v", err)
	}

	if clusterer.calls != 0 {
		t.Errorf("oracle called %d times with no new vocabulary, want 0", clusterer.calls)
	}
	if summary.NewTopics != 0 {
		t.Errorf("NewTopics = %d, want 0", summary.NewTopics)
	}
	if len(summary.Trends) != 1 || summary.Trends[0].ClusterID != "cluster-1" {
		t.Errorf("Trends = %+v, want the persisted cluster reported", summary.Trends)
	}
}

func TestDetectTrendsDegradedPropagates(t *testing.T) {
	topics, buckets, videos, snapshots, channels := threeChannelFixture()
	clusterer := &fakeClusterer{result: &ai.ClusterResult{
		Clusters: []ai.Cluster{{Name: "camping gear reviews", Topics: []string{"camping gear reviews"}}},
		Degraded: true,
	}}
	detector := NewTrendDetector(topics, buckets, videos, snapshots, channels,
		&fakeRater{}, clusterer, zap.NewNop())

	summary, err := detector.DetectTrends(context.Background())
	if err != nil {
		t.Fatalf("DetectTrends returned error: %v", err)
	}
	if !summary.Degraded {
		t.Error("Degraded = false after a degraded clustering result")
	}
}

func TestDetectTrendsExpiresStale(t *testing.T) {
	topics, buckets, videos, snapshots, channels := threeChannelFixture()
	detector := NewTrendDetector(topics, buckets, videos, snapshots, channels,
		&fakeRater{}, &fakeClusterer{}, zap.NewNop())

	summary, err := detector.DetectTrends(context.Background())
	if err != nil {
		t.Fatalf("DetectTrends returned error: %v", err)
	}
	if topics.expireStaleHits != 1 {
		t.Errorf("ExpireStale called %d times, want 1", topics.expireStaleHits)
	}
	if summary.Expired != 2 {
		t.Errorf("Expired = %d, want 2", summary.Expired)
	}
}

func TestDetectTrendsPerBucketScopes(t *testing.T) {
	now := time.Now()
	topics := &fakeTrendTopics{topicsByVideo: map[string][]string{
		"v1": {"bucket one topic"},
		"v2": {"bucket one topic"},
		"v3": {"bucket two topic"},
	}}
	buckets := &fakeTrendBuckets{
		buckets: []*domain.Bucket{{ID: "b1", Name: "Tech"}, {ID: "b2", Name: "Cooking"}},
		channelIDs: map[string][]string{
			"b1": {"ch1", "ch2"},
			"b2": {"ch3"},
		},
	}
	videos := &fakeTrendVideos{videos: []*domain.Video{
		{VideoID: "v1", ChannelID: "ch1", PublishedAt: now.Add(-24 * time.Hour)},
		{VideoID: "v2", ChannelID: "ch2", PublishedAt: now.Add(-24 * time.Hour)},
		{VideoID: "v3", ChannelID: "ch3", PublishedAt: now.Add(-24 * time.Hour)},
	}}
	snapshots := &fakeTrendSnapshots{views: map[string]int64{"v1": 1000, "v2": 1000, "v3": 1000}}
	clusterer := &fakeClusterer{}
	detector := NewTrendDetector(topics, buckets, videos, snapshots, &fakeTrendChannels{},
		&fakeRater{}, clusterer, zap.NewNop())

	summary, err := detector.DetectTrends(context.Background())
	if err != nil {
		t.Fatalf("DetectTrends returned error: %v", err)
	}

	if summary.Buckets != 2 {
		t.Errorf("Buckets = %d, want 2", summary.Buckets)
	}
	if len(topics.upserted) != 2 {
		t.Fatalf("upserted %d trend rows, want one per bucket", len(topics.upserted))
	}
	statusByBucket := map[string]domain.TrendStatus{}
	for _, row := range topics.upserted {
		statusByBucket[row.BucketID] = row.Status
	}
	if statusByBucket["b1"] != domain.TrendActive {
		t.Errorf("bucket b1 status = %s, want active", statusByBucket["b1"])
	}
	if statusByBucket["b2"] != domain.TrendFading {
		t.Errorf("bucket b2 status = %s, want fading", statusByBucket["b2"])
	}
	// Each bucket's new vocabulary goes to the oracle with that bucket's name.
	if len(clusterer.contexts) != 2 || clusterer.contexts[0] != "Tech" || clusterer.contexts[1] != "Cooking" {
		t.Errorf("clustering contexts = %v, want [Tech Cooking]", clusterer.contexts)
	}
}
