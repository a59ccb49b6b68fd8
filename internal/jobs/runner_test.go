package jobs

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/creatrr/competitor-tracker-go/internal/config"
	"github.com/creatrr/competitor-tracker-go/internal/domain"
	"github.com/creatrr/competitor-tracker-go/internal/service"
)

type fakeDiscovery struct {
	summary *service.DiscoverySummary
	err     error
	panics  bool
}

func (f *fakeDiscovery) PollAllChannels(_ context.Context) (*service.DiscoverySummary, error) {
	if f.panics {
		panic("feed parser exploded")
	}
	return f.summary, f.err
}

type fakeWorker struct {
	sweep     *service.SweepResult
	completed int
}

func (f *fakeWorker) ProcessPendingSnapshots(_ context.Context, _ int) (*service.SweepResult, error) {
	return f.sweep, nil
}

func (f *fakeWorker) CheckAndCompleteVideos(_ context.Context) (int, error) {
	return f.completed, nil
}

type fakeBaselines struct {
	updated int
	skipped int
}

func (f *fakeBaselines) UpdateAllBaselines(_ context.Context) (int, int, error) {
	return f.updated, f.skipped, nil
}

type fakeScheduler struct {
	backfilled int
}

func (f *fakeScheduler) ReconcileSchedules(_ context.Context) (int, error) {
	return f.backfilled, nil
}

type fakePipeline struct {
	summary *service.PipelineSummary
}

func (f *fakePipeline) ProcessQualifyingVideos(_ context.Context, _ []*domain.Video) *service.PipelineSummary {
	return f.summary
}

type fakeDetector struct {
	summary *service.TrendRunSummary
}

func (f *fakeDetector) DetectTrends(_ context.Context) (*service.TrendRunSummary, error) {
	return f.summary, nil
}

type fakeVideos struct{}

func (f *fakeVideos) GetPublishedSince(_ context.Context, _ []string, _ time.Time) ([]*domain.Video, error) {
	return nil, nil
}

type fakeChannels struct{}

func (f *fakeChannels) GetActive(_ context.Context) ([]*domain.Channel, error) {
	return []*domain.Channel{{ChannelID: "ch1"}}, nil
}

type fakeRenewer struct {
	renewed int
	failed  int
	calls   int
}

func (f *fakeRenewer) RenewExpiring(_ context.Context, _ time.Duration) (int, int, error) {
	f.calls++
	return f.renewed, f.failed, nil
}

func newTestRunner(discovery *fakeDiscovery, renewer LeaseRenewer) *Runner {
	return NewRunner(
		discovery,
		&fakeWorker{sweep: &service.SweepResult{Due: 3, Captured: 2, Retried: 1}, completed: 4},
		&fakeBaselines{updated: 7, skipped: 3},
		&fakeScheduler{backfilled: 2},
		&fakePipeline{summary: &service.PipelineSummary{Considered: 5, Qualified: 2, Extracted: 2}},
		&fakeDetector{summary: &service.TrendRunSummary{QualifiedTopics: 6, ClustersUpdated: 3}},
		&fakeVideos{},
		&fakeChannels{},
		renewer,
		config.JobsConfig{},
		zap.NewNop(),
	)
}

func TestRunDiscoveryTick(t *testing.T) {
	runner := newTestRunner(&fakeDiscovery{
		summary: &service.DiscoverySummary{ChannelsChecked: 10, NewVideos: 2},
	}, nil)

	summary := runner.RunDiscoveryTick(context.Background())
	if summary.Err != "" {
		t.Fatalf("Err = %q, want empty", summary.Err)
	}
	if summary.Counts["channels_checked"] != 10 || summary.Counts["new_videos"] != 2 {
		t.Errorf("counts = %v", summary.Counts)
	}
}

func TestRunDiscoveryTickCapturesError(t *testing.T) {
	runner := newTestRunner(&fakeDiscovery{err: errors.New("feed unreachable")}, nil)

	summary := runner.RunDiscoveryTick(context.Background())
	if summary.Err != "feed unreachable" {
		t.Errorf("Err = %q, want the job error", summary.Err)
	}
}

func TestTickRecoversPanic(t *testing.T) {
	runner := newTestRunner(&fakeDiscovery{panics: true}, nil)

	summary := runner.RunDiscoveryTick(context.Background())
	if summary == nil {
		t.Fatal("summary is nil, want a populated summary from the recovered path")
	}
	if !strings.Contains(summary.Err, "panic") {
		t.Errorf("Err = %q, want a recovered panic", summary.Err)
	}
	if summary.Job != "discovery" {
		t.Errorf("Job = %q, want discovery", summary.Job)
	}
	if summary.Duration <= 0 {
		t.Errorf("Duration = %v, want it measured on the recovered path", summary.Duration)
	}
}

func TestRunSnapshotWorkerTick(t *testing.T) {
	runner := newTestRunner(&fakeDiscovery{summary: &service.DiscoverySummary{}}, nil)

	summary := runner.RunSnapshotWorkerTick(context.Background())
	if summary.Counts["due"] != 3 || summary.Counts["captured"] != 2 || summary.Counts["retried"] != 1 {
		t.Errorf("counts = %v", summary.Counts)
	}
}

func TestRunBaselineTick(t *testing.T) {
	runner := newTestRunner(&fakeDiscovery{summary: &service.DiscoverySummary{}}, nil)

	summary := runner.RunBaselineTick(context.Background())
	if summary.Err != "" {
		t.Fatalf("Err = %q, want empty", summary.Err)
	}
	if summary.Counts["baselines_updated"] != 7 || summary.Counts["baselines_skipped"] != 3 {
		t.Errorf("counts = %v", summary.Counts)
	}
}

func TestRunCompletionCheckTickWithoutRenewer(t *testing.T) {
	runner := newTestRunner(&fakeDiscovery{summary: &service.DiscoverySummary{}}, nil)

	summary := runner.RunCompletionCheckTick(context.Background())
	if summary.Err != "" {
		t.Fatalf("Err = %q, want empty", summary.Err)
	}
	if summary.Counts["videos_completed"] != 4 || summary.Counts["schedules_backfilled"] != 2 {
		t.Errorf("counts = %v", summary.Counts)
	}
	if _, ok := summary.Counts["leases_renewed"]; ok {
		t.Error("lease counts present without a renewer")
	}
}

func TestRunCompletionCheckTickRenewsLeases(t *testing.T) {
	renewer := &fakeRenewer{renewed: 3, failed: 1}
	runner := newTestRunner(&fakeDiscovery{summary: &service.DiscoverySummary{}}, renewer)

	summary := runner.RunCompletionCheckTick(context.Background())
	if renewer.calls != 1 {
		t.Fatalf("renewer called %d times, want 1", renewer.calls)
	}
	if summary.Counts["leases_renewed"] != 3 || summary.Counts["lease_renewals_failed"] != 1 {
		t.Errorf("counts = %v", summary.Counts)
	}
}

func TestRunTrendDetectionTick(t *testing.T) {
	runner := newTestRunner(&fakeDiscovery{summary: &service.DiscoverySummary{}}, nil)

	summary := runner.RunTrendDetectionTick(context.Background())
	if summary.Err != "" {
		t.Fatalf("Err = %q, want empty", summary.Err)
	}
	if summary.Counts["videos_considered"] != 5 || summary.Counts["qualified_topics"] != 6 {
		t.Errorf("counts = %v", summary.Counts)
	}
	if summary.Counts["clusters_updated"] != 3 {
		t.Errorf("counts = %v", summary.Counts)
	}
}
