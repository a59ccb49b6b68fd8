package service

import (
	"context"
	stderrors "errors"
	"strings"
	"testing"

	"go.uber.org/zap"

	"github.com/creatrr/competitor-tracker-go/internal/domain"
)

type fakeTranscripts struct {
	text string
	err  error
}

func (f *fakeTranscripts) Fetch(_ context.Context, _ string) (string, error) {
	return f.text, f.err
}

type fakeExtractor struct {
	topics   []string
	err      error
	calls    int
	contents []string
}

func (f *fakeExtractor) ExtractTopics(_ context.Context, content string) ([]string, error) {
	f.calls++
	f.contents = append(f.contents, content)
	return f.topics, f.err
}

type fakePipelineTopics struct {
	tagged map[string]bool
	saved  map[string][]string
}

func (f *fakePipelineTopics) AddVideoTopics(_ context.Context, videoID string, topics []string) error {
	if f.saved == nil {
		f.saved = make(map[string][]string)
	}
	f.saved[videoID] = topics
	return nil
}

func (f *fakePipelineTopics) VideoHasTopics(_ context.Context, videoID string) (bool, error) {
	return f.tagged[videoID], nil
}

type fakePipelineSnapshots struct {
	views map[string]int64 // videoID -> views at the reference window
}

func (f *fakePipelineSnapshots) GetByWindow(_ context.Context, videoID string, window domain.WindowType) (*domain.Snapshot, error) {
	views, ok := f.views[videoID]
	if !ok {
		return nil, nil
	}
	return &domain.Snapshot{VideoID: videoID, WindowType: window, Views: views}, nil
}

type fakeRater struct {
	medians map[string]int64 // channelID -> median views; absent means no baseline
}

func (f *fakeRater) PerformanceRatio(_ context.Context, channelID string, _ bool, _ domain.WindowType, views int64) (float64, bool, error) {
	median, ok := f.medians[channelID]
	if !ok || median == 0 {
		return 0, false, nil
	}
	return float64(views) / float64(median), true, nil
}

func testVideo(videoID, channelID string) *domain.Video {
	return &domain.Video{
		VideoID:     videoID,
		ChannelID:   channelID,
		Title:       "A video",
		Description: "Some description text",
	}
}

func TestQualifiesForExtraction(t *testing.T) {
	snapshots := &fakePipelineSnapshots{views: map[string]int64{
		"hot":  1500,
		"warm": 1499,
		"new":  50,
	}}
	rater := &fakeRater{medians: map[string]int64{"ch1": 1000}}
	pipeline := NewTopicPipeline(&fakeTranscripts{}, &fakeExtractor{}, &fakePipelineTopics{}, snapshots, rater, zap.NewNop())

	tests := []struct {
		name  string
		video *domain.Video
		want  bool
	}{
		{"meets threshold", testVideo("hot", "ch1"), true},
		{"just under threshold", testVideo("warm", "ch1"), false},
		{"no baseline auto-qualifies", testVideo("new", "ch2"), true},
		{"no reference snapshot", testVideo("missing", "ch1"), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := pipeline.QualifiesForExtraction(context.Background(), tt.video)
			if err != nil {
				t.Fatalf("QualifiesForExtraction returned error: %v", err)
			}
			if got != tt.want {
				t.Errorf("QualifiesForExtraction = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestExtractTopicsForVideoIsIdempotent(t *testing.T) {
	extractor := &fakeExtractor{topics: []string{"budget gaming pc builds"}}
	topics := &fakePipelineTopics{tagged: map[string]bool{"vid1": true}}
	pipeline := NewTopicPipeline(&fakeTranscripts{}, extractor, topics, &fakePipelineSnapshots{}, &fakeRater{}, zap.NewNop())

	got, err := pipeline.ExtractTopicsForVideo(context.Background(), testVideo("vid1", "ch1"))
	if err != nil {
		t.Fatalf("ExtractTopicsForVideo returned error: %v", err)
	}
	if got != nil {
		t.Errorf("topics = %v, want nil for an already-tagged video", got)
	}
	if extractor.calls != 0 {
		t.Errorf("extractor called %d times for a tagged video, want 0", extractor.calls)
	}
}

func TestExtractTopicsForVideoPrefersTranscript(t *testing.T) {
	extractor := &fakeExtractor{topics: []string{"topic one"}}
	pipeline := NewTopicPipeline(
		&fakeTranscripts{text: "full transcript words"},
		extractor, &fakePipelineTopics{}, &fakePipelineSnapshots{}, &fakeRater{}, zap.NewNop())

	if _, err := pipeline.ExtractTopicsForVideo(context.Background(), testVideo("vid1", "ch1")); err != nil {
		t.Fatalf("ExtractTopicsForVideo returned error: %v", err)
	}
	if len(extractor.contents) != 1 {
		t.Fatalf("extractor called %d times, want 1", len(extractor.contents))
	}
	if !strings.Contains(extractor.contents[0], "Transcript: full transcript words") {
		t.Errorf("content missing transcript section: %q", extractor.contents[0])
	}
}

func TestExtractTopicsForVideoFallsBackToDescription(t *testing.T) {
	extractor := &fakeExtractor{topics: []string{"topic one"}}
	pipeline := NewTopicPipeline(
		&fakeTranscripts{err: stderrors.New("no captions")},
		extractor, &fakePipelineTopics{}, &fakePipelineSnapshots{}, &fakeRater{}, zap.NewNop())

	if _, err := pipeline.ExtractTopicsForVideo(context.Background(), testVideo("vid1", "ch1")); err != nil {
		t.Fatalf("ExtractTopicsForVideo returned error: %v", err)
	}
	if !strings.Contains(extractor.contents[0], "Description: Some description text") {
		t.Errorf("content missing description fallback: %q", extractor.contents[0])
	}
}

func TestProcessQualifyingVideos(t *testing.T) {
	snapshots := &fakePipelineSnapshots{views: map[string]int64{
		"hot":  2000,
		"cold": 500,
	}}
	rater := &fakeRater{medians: map[string]int64{"ch1": 1000}}
	extractor := &fakeExtractor{topics: []string{"a topic"}}
	topics := &fakePipelineTopics{}
	pipeline := NewTopicPipeline(&fakeTranscripts{text: "words"}, extractor, topics, snapshots, rater, zap.NewNop())

	summary := pipeline.ProcessQualifyingVideos(context.Background(), []*domain.Video{
		testVideo("hot", "ch1"),
		testVideo("cold", "ch1"),
	})

	if summary.Considered != 2 || summary.Qualified != 1 || summary.Extracted != 1 || summary.Skipped != 1 {
		t.Errorf("summary = %+v, want Considered=2 Qualified=1 Extracted=1 Skipped=1", summary)
	}
	if _, ok := topics.saved["hot"]; !ok {
		t.Error("qualifying video has no saved topics")
	}
	if _, ok := topics.saved["cold"]; ok {
		t.Error("non-qualifying video was tagged")
	}
}
