// Package jobs drives the periodic pipeline: discovery, snapshot sweeps,
// baseline refresh, the completion backstop, and trend detection. One
// goroutine, distinct tickers, jobs never overlap themselves.
package jobs

import (
	"context"
	"fmt"
	"runtime/debug"
	"time"

	"go.uber.org/zap"

	"github.com/creatrr/competitor-tracker-go/internal/config"
	"github.com/creatrr/competitor-tracker-go/internal/constants"
	"github.com/creatrr/competitor-tracker-go/internal/domain"
	"github.com/creatrr/competitor-tracker-go/internal/service"
)

type discoveryJob interface {
	PollAllChannels(ctx context.Context) (*service.DiscoverySummary, error)
}

type snapshotJob interface {
	ProcessPendingSnapshots(ctx context.Context, limit int) (*service.SweepResult, error)
	CheckAndCompleteVideos(ctx context.Context) (int, error)
}

type baselineJob interface {
	UpdateAllBaselines(ctx context.Context) (int, int, error)
}

type reconcileJob interface {
	ReconcileSchedules(ctx context.Context) (int, error)
}

type pipelineJob interface {
	ProcessQualifyingVideos(ctx context.Context, videos []*domain.Video) *service.PipelineSummary
}

type trendJob interface {
	DetectTrends(ctx context.Context) (*service.TrendRunSummary, error)
}

type videoLister interface {
	GetPublishedSince(ctx context.Context, channelIDs []string, cutoff time.Time) ([]*domain.Video, error)
}

type channelLister interface {
	GetActive(ctx context.Context) ([]*domain.Channel, error)
}

// LeaseRenewer is optional; it is nil when push ingestion is disabled.
type LeaseRenewer interface {
	RenewExpiring(ctx context.Context, buffer time.Duration) (int, int, error)
}

// TickSummary is the uniform result every tick reports. Err carries a
// caught job-scoped failure; ticks never propagate errors to the loop.
type TickSummary struct {
	Job      string
	Counts   map[string]int
	Err      string
	Duration time.Duration
}

// Runner owns the scheduling loop.
type Runner struct {
	discovery discoveryJob
	worker    snapshotJob
	baselines baselineJob
	scheduler reconcileJob
	pipeline  pipelineJob
	detector  trendJob
	videos    videoLister
	channels  channelLister
	renewer   LeaseRenewer // nil unless push ingestion is configured
	intervals config.JobsConfig
	logger    *zap.Logger
	stop      chan struct{}
}

func NewRunner(discovery discoveryJob, worker snapshotJob, baselines baselineJob,
	scheduler reconcileJob, pipeline pipelineJob, detector trendJob,
	videos videoLister, channels channelLister, renewer LeaseRenewer,
	intervals config.JobsConfig, logger *zap.Logger) *Runner {
	return &Runner{
		discovery: discovery,
		worker:    worker,
		baselines: baselines,
		scheduler: scheduler,
		pipeline:  pipeline,
		detector:  detector,
		videos:    videos,
		channels:  channels,
		renewer:   renewer,
		intervals: intervals,
		logger:    logger,
		stop:      make(chan struct{}),
	}
}

// Start runs the loop until Stop is called or ctx ends. Discovery and the
// snapshot sweep run once immediately so a fresh deployment does not idle
// through its first intervals.
func (r *Runner) Start(ctx context.Context) {
	r.logger.Info("job runner starting",
		zap.Duration("discovery", r.intervals.PollingInterval),
		zap.Duration("snapshots", r.intervals.SnapshotInterval),
		zap.Duration("baselines", r.intervals.BaselineInterval),
		zap.Duration("completionCheck", r.intervals.CompletionInterval),
		zap.Duration("trends", r.intervals.TrendInterval))

	r.RunDiscoveryTick(ctx)
	r.RunSnapshotWorkerTick(ctx)

	discoveryT := time.NewTicker(r.intervals.PollingInterval)
	snapshotT := time.NewTicker(r.intervals.SnapshotInterval)
	baselineT := time.NewTicker(r.intervals.BaselineInterval)
	completionT := time.NewTicker(r.intervals.CompletionInterval)
	trendT := time.NewTicker(r.intervals.TrendInterval)
	defer discoveryT.Stop()
	defer snapshotT.Stop()
	defer baselineT.Stop()
	defer completionT.Stop()
	defer trendT.Stop()

	for {
		select {
		case <-ctx.Done():
			r.logger.Info("job runner stopping", zap.Error(ctx.Err()))
			return
		case <-r.stop:
			r.logger.Info("job runner stopped")
			return
		case <-discoveryT.C:
			r.RunDiscoveryTick(ctx)
		case <-snapshotT.C:
			r.RunSnapshotWorkerTick(ctx)
		case <-baselineT.C:
			r.RunBaselineTick(ctx)
		case <-completionT.C:
			r.RunCompletionCheckTick(ctx)
		case <-trendT.C:
			r.RunTrendDetectionTick(ctx)
		}
	}
}

func (r *Runner) Stop() {
	close(r.stop)
}

// runProtected executes one job body with panic recovery so a broken tick
// can never take down the loop. The return is named so the recovered path
// still hands back the populated summary.
func (r *Runner) runProtected(job string, body func() (map[string]int, error)) (summary *TickSummary) {
	summary = &TickSummary{Job: job, Counts: map[string]int{}}
	start := time.Now()

	defer func() {
		summary.Duration = time.Since(start)
		if rec := recover(); rec != nil {
			summary.Err = fmt.Sprintf("panic: %v", rec)
			r.logger.Error("job panicked",
				zap.String("job", job),
				zap.Any("panic", rec),
				zap.ByteString("stack", debug.Stack()))
		}
	}()

	counts, err := body()
	if counts != nil {
		summary.Counts = counts
	}
	if err != nil {
		summary.Err = err.Error()
		r.logger.Error("job failed",
			zap.String("job", job),
			zap.Error(err))
	}
	return summary
}

func (r *Runner) RunDiscoveryTick(ctx context.Context) *TickSummary {
	return r.runProtected("discovery", func() (map[string]int, error) {
		s, err := r.discovery.PollAllChannels(ctx)
		if err != nil {
			return nil, err
		}
		return map[string]int{
			"channels_checked": s.ChannelsChecked,
			"new_videos":       s.NewVideos,
			"errors":           s.Errors,
		}, nil
	})
}

func (r *Runner) RunSnapshotWorkerTick(ctx context.Context) *TickSummary {
	return r.runProtected("snapshot_worker", func() (map[string]int, error) {
		s, err := r.worker.ProcessPendingSnapshots(ctx, constants.SnapshotConfig.SweepLimit)
		if err != nil {
			return nil, err
		}
		return map[string]int{
			"due":       s.Due,
			"captured":  s.Captured,
			"retried":   s.Retried,
			"failed":    s.Failed,
			"completed": s.Completed,
		}, nil
	})
}

func (r *Runner) RunBaselineTick(ctx context.Context) *TickSummary {
	return r.runProtected("baseline_refresh", func() (map[string]int, error) {
		updated, skipped, err := r.baselines.UpdateAllBaselines(ctx)
		if err != nil {
			return nil, err
		}
		return map[string]int{
			"baselines_updated": updated,
			"baselines_skipped": skipped,
		}, nil
	})
}

// RunCompletionCheckTick is the low-frequency backstop: expire videos past
// their horizon, backfill missing schedule entries, renew push leases.
func (r *Runner) RunCompletionCheckTick(ctx context.Context) *TickSummary {
	return r.runProtected("completion_check", func() (map[string]int, error) {
		counts := map[string]int{}

		completed, err := r.worker.CheckAndCompleteVideos(ctx)
		if err != nil {
			return counts, err
		}
		counts["videos_completed"] = completed

		backfilled, err := r.scheduler.ReconcileSchedules(ctx)
		if err != nil {
			return counts, err
		}
		counts["schedules_backfilled"] = backfilled

		if r.renewer != nil {
			renewed, failed, err := r.renewer.RenewExpiring(ctx, 12*time.Hour)
			if err != nil {
				return counts, err
			}
			counts["leases_renewed"] = renewed
			counts["lease_renewals_failed"] = failed
		}
		return counts, nil
	})
}

// RunTrendDetectionTick extracts topics for qualifying recent videos, then
// runs cluster-based detection over the tagged set.
func (r *Runner) RunTrendDetectionTick(ctx context.Context) *TickSummary {
	return r.runProtected("trend_detection", func() (map[string]int, error) {
		counts := map[string]int{}

		channels, err := r.channels.GetActive(ctx)
		if err != nil {
			return counts, err
		}
		channelIDs := make([]string, len(channels))
		for i, ch := range channels {
			channelIDs[i] = ch.ChannelID
		}

		videos, err := r.videos.GetPublishedSince(ctx, channelIDs, service.TrendWindowCutoff(time.Now()))
		if err != nil {
			return counts, err
		}

		ps := r.pipeline.ProcessQualifyingVideos(ctx, videos)
		counts["videos_considered"] = ps.Considered
		counts["videos_qualified"] = ps.Qualified
		counts["topics_extracted"] = ps.Extracted
		counts["extraction_errors"] = ps.Errors

		ts, err := r.detector.DetectTrends(ctx)
		if err != nil {
			return counts, err
		}
		counts["buckets"] = ts.Buckets
		counts["qualified_topics"] = ts.QualifiedTopics
		counts["new_topics"] = ts.NewTopics
		counts["clusters_updated"] = ts.ClustersUpdated
		counts["trends_deactivated"] = ts.Deactivated
		counts["trends_expired"] = ts.Expired
		counts["trends_detected"] = len(ts.Trends)
		if ts.Degraded {
			counts["clustering_degraded"] = 1
		}
		return counts, nil
	})
}
