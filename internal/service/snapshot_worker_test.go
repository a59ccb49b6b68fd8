package service

import (
	"context"
	stderrors "errors"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/creatrr/competitor-tracker-go/internal/constants"
	"github.com/creatrr/competitor-tracker-go/internal/domain"
	"github.com/creatrr/competitor-tracker-go/pkg/errors"
)

type fakeMetricsProvider struct {
	metrics map[string]*domain.VideoMetrics
	errs    map[string]error
	calls   int
}

func (f *fakeMetricsProvider) FetchVideoMetrics(_ context.Context, videoID string) (*domain.VideoMetrics, error) {
	f.calls++
	if err, ok := f.errs[videoID]; ok {
		return nil, err
	}
	if m, ok := f.metrics[videoID]; ok {
		return m, nil
	}
	return &domain.VideoMetrics{Views: 100, Likes: 10, Comments: 1}, nil
}

type addedSnapshot struct {
	videoID string
	window  domain.WindowType
	metrics domain.VideoMetrics
}

type fakeWorkerSnapshots struct {
	due         []*domain.ScheduledSnapshot
	added       []addedSnapshot
	completed   []int64
	attempts    map[int64]int
	failedGiven []int64
}

func (f *fakeWorkerSnapshots) Add(_ context.Context, videoID string, window domain.WindowType, m domain.VideoMetrics) error {
	f.added = append(f.added, addedSnapshot{videoID: videoID, window: window, metrics: m})
	return nil
}

func (f *fakeWorkerSnapshots) GetPendingDue(_ context.Context, _ time.Time, limit int) ([]*domain.ScheduledSnapshot, error) {
	if limit < len(f.due) {
		return f.due[:limit], nil
	}
	return f.due, nil
}

func (f *fakeWorkerSnapshots) MarkScheduledCompleted(_ context.Context, scheduledID int64) error {
	f.completed = append(f.completed, scheduledID)
	return nil
}

func (f *fakeWorkerSnapshots) MarkScheduledFailed(_ context.Context, scheduledID int64, _ string, maxAttempts int) (domain.ScheduleStatus, error) {
	if f.attempts == nil {
		f.attempts = make(map[int64]int)
	}
	f.attempts[scheduledID]++
	if f.attempts[scheduledID] >= maxAttempts {
		f.failedGiven = append(f.failedGiven, scheduledID)
		return domain.ScheduleFailed, nil
	}
	return domain.SchedulePending, nil
}

func (f *fakeWorkerSnapshots) GetByWindow(_ context.Context, _ string, _ domain.WindowType) (*domain.Snapshot, error) {
	return nil, nil
}

type fakeWorkerVideos struct {
	active    []*domain.Video
	completed []string
	deleted   []string
}

func (f *fakeWorkerVideos) GetActive(_ context.Context) ([]*domain.Video, error) {
	return f.active, nil
}

func (f *fakeWorkerVideos) MarkCompleted(_ context.Context, videoID string) error {
	f.completed = append(f.completed, videoID)
	return nil
}

func (f *fakeWorkerVideos) MarkDeleted(_ context.Context, videoID string) error {
	f.deleted = append(f.deleted, videoID)
	return nil
}

func dueEntry(id int64, videoID string, window domain.WindowType) *domain.ScheduledSnapshot {
	return &domain.ScheduledSnapshot{
		ID:         id,
		VideoID:    videoID,
		WindowType: window,
		Status:     domain.SchedulePending,
	}
}

func TestProcessPendingSnapshotsCaptures(t *testing.T) {
	provider := &fakeMetricsProvider{
		metrics: map[string]*domain.VideoMetrics{
			"vid1": {Views: 5000, Likes: 200, Comments: 30},
		},
	}
	snapshots := &fakeWorkerSnapshots{due: []*domain.ScheduledSnapshot{
		dueEntry(1, "vid1", domain.Window1h),
	}}
	videos := &fakeWorkerVideos{}
	worker := NewSnapshotWorker(provider, snapshots, videos, zap.NewNop())

	result, err := worker.ProcessPendingSnapshots(context.Background(), 100)
	if err != nil {
		t.Fatalf("ProcessPendingSnapshots returned error: %v", err)
	}
	if result.Due != 1 || result.Captured != 1 {
		t.Errorf("result = %+v, want Due=1 Captured=1", result)
	}
	if len(snapshots.added) != 1 || snapshots.added[0].metrics.Views != 5000 {
		t.Fatalf("added = %+v, want one snapshot with 5000 views", snapshots.added)
	}
	if len(snapshots.completed) != 1 || snapshots.completed[0] != 1 {
		t.Errorf("completed = %v, want [1]", snapshots.completed)
	}
	if len(videos.completed) != 0 {
		t.Errorf("video completed on non-terminal window: %v", videos.completed)
	}
}

func TestProcessPendingSnapshotsRetriesBeforeFailing(t *testing.T) {
	provider := &fakeMetricsProvider{
		errs: map[string]error{"vid1": stderrors.New("upstream timeout")},
	}
	snapshots := &fakeWorkerSnapshots{due: []*domain.ScheduledSnapshot{
		dueEntry(1, "vid1", domain.Window6h),
	}}
	videos := &fakeWorkerVideos{}
	worker := NewSnapshotWorker(provider, snapshots, videos, zap.NewNop())

	// First two sweeps stay pending, the third exhausts the attempt budget.
	for i := 0; i < 2; i++ {
		result, err := worker.ProcessPendingSnapshots(context.Background(), 100)
		if err != nil {
			t.Fatalf("sweep %d returned error: %v", i+1, err)
		}
		if result.Retried != 1 || result.Failed != 0 {
			t.Fatalf("sweep %d result = %+v, want Retried=1 Failed=0", i+1, result)
		}
	}

	result, err := worker.ProcessPendingSnapshots(context.Background(), 100)
	if err != nil {
		t.Fatalf("final sweep returned error: %v", err)
	}
	if result.Failed != 1 || result.Retried != 0 {
		t.Errorf("final sweep result = %+v, want Failed=1 Retried=0", result)
	}
	if len(videos.deleted) != 0 {
		t.Errorf("video marked deleted on a transient failure: %v", videos.deleted)
	}
}

func TestProcessPendingSnapshotsDeletedUpstream(t *testing.T) {
	provider := &fakeMetricsProvider{
		errs: map[string]error{"vid1": errors.NewNotFoundError("video", "vid1")},
	}
	snapshots := &fakeWorkerSnapshots{due: []*domain.ScheduledSnapshot{
		dueEntry(1, "vid1", domain.Window24h),
	}}
	videos := &fakeWorkerVideos{}
	worker := NewSnapshotWorker(provider, snapshots, videos, zap.NewNop())

	// The not-found failure still runs through the attempt budget.
	for i := 0; i < 2; i++ {
		worker.ProcessPendingSnapshots(context.Background(), 100)
		if len(videos.deleted) != 0 {
			t.Fatalf("video deleted before attempts were exhausted")
		}
	}
	worker.ProcessPendingSnapshots(context.Background(), 100)
	if len(videos.deleted) != 1 || videos.deleted[0] != "vid1" {
		t.Errorf("deleted = %v, want [vid1]", videos.deleted)
	}
}

func TestTerminalWindowCompletesVideo(t *testing.T) {
	provider := &fakeMetricsProvider{}
	snapshots := &fakeWorkerSnapshots{due: []*domain.ScheduledSnapshot{
		dueEntry(7, "vid1", domain.TerminalWindow()),
	}}
	videos := &fakeWorkerVideos{}
	worker := NewSnapshotWorker(provider, snapshots, videos, zap.NewNop())

	result, err := worker.ProcessPendingSnapshots(context.Background(), 100)
	if err != nil {
		t.Fatalf("ProcessPendingSnapshots returned error: %v", err)
	}
	if result.Completed != 1 {
		t.Errorf("result.Completed = %d, want 1", result.Completed)
	}
	if len(videos.completed) != 1 || videos.completed[0] != "vid1" {
		t.Errorf("completed = %v, want [vid1]", videos.completed)
	}
}

func TestQuotaExceededDefersSweep(t *testing.T) {
	provider := &fakeMetricsProvider{
		errs: map[string]error{
			"vid1": errors.NewQuotaExceededError("quota exhausted", "fetch metrics", nil),
		},
	}
	snapshots := &fakeWorkerSnapshots{due: []*domain.ScheduledSnapshot{
		dueEntry(1, "vid1", domain.Window1h),
		dueEntry(2, "vid2", domain.Window6h),
	}}
	worker := NewSnapshotWorker(provider, snapshots, &fakeWorkerVideos{}, zap.NewNop())

	result, err := worker.ProcessPendingSnapshots(context.Background(), 100)
	if err != nil {
		t.Fatalf("ProcessPendingSnapshots returned error: %v", err)
	}
	if provider.calls != 1 {
		t.Errorf("provider calls = %d, want 1 (sweep should stop at the throttle)", provider.calls)
	}
	if len(snapshots.attempts) != 0 {
		t.Errorf("attempts recorded = %v, want none", snapshots.attempts)
	}
	if result.Captured != 0 || result.Retried != 0 || result.Failed != 0 {
		t.Errorf("result = %+v, want no captures, retries, or failures", result)
	}
}

func TestTransientErrorConsumesAttemptsWithoutBlockingSweep(t *testing.T) {
	provider := &fakeMetricsProvider{
		metrics: map[string]*domain.VideoMetrics{
			"healthy": {Views: 2000, Likes: 50, Comments: 5},
		},
		errs: map[string]error{
			"broken": errors.NewTransientError("backend error", "fetch metrics", nil),
		},
	}
	snapshots := &fakeWorkerSnapshots{due: []*domain.ScheduledSnapshot{
		dueEntry(1, "broken", domain.Window1h),
		dueEntry(2, "healthy", domain.Window1h),
	}}
	videos := &fakeWorkerVideos{}
	worker := NewSnapshotWorker(provider, snapshots, videos, zap.NewNop())

	for i := 0; i < constants.SnapshotConfig.MaxAttempts; i++ {
		if _, err := worker.ProcessPendingSnapshots(context.Background(), 100); err != nil {
			t.Fatalf("sweep %d returned error: %v", i+1, err)
		}
	}

	if got := snapshots.attempts[1]; got != constants.SnapshotConfig.MaxAttempts {
		t.Errorf("attempts for broken entry = %d, want %d", got, constants.SnapshotConfig.MaxAttempts)
	}
	if len(snapshots.failedGiven) != 1 || snapshots.failedGiven[0] != 1 {
		t.Errorf("failed entries = %v, want [1]", snapshots.failedGiven)
	}
	healthy := 0
	for _, s := range snapshots.added {
		if s.videoID == "healthy" {
			healthy++
		}
	}
	if healthy != constants.SnapshotConfig.MaxAttempts {
		t.Errorf("healthy captures = %d, want one per sweep (%d)", healthy, constants.SnapshotConfig.MaxAttempts)
	}
	if len(videos.deleted) != 0 {
		t.Errorf("deleted videos = %v, want none for a transient failure", videos.deleted)
	}
}

func TestCheckAndCompleteVideos(t *testing.T) {
	now := time.Now()
	videos := &fakeWorkerVideos{active: []*domain.Video{
		{VideoID: "old", PublishedAt: now.Add(-domain.TrackingDuration() - time.Hour)},
		{VideoID: "fresh", PublishedAt: now.Add(-time.Hour)},
	}}
	worker := NewSnapshotWorker(&fakeMetricsProvider{}, &fakeWorkerSnapshots{}, videos, zap.NewNop())

	completed, err := worker.CheckAndCompleteVideos(context.Background())
	if err != nil {
		t.Fatalf("CheckAndCompleteVideos returned error: %v", err)
	}
	if completed != 1 {
		t.Errorf("completed = %d, want 1", completed)
	}
	if len(videos.completed) != 1 || videos.completed[0] != "old" {
		t.Errorf("completed videos = %v, want [old]", videos.completed)
	}
}
