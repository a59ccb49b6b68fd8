package service

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/creatrr/competitor-tracker-go/internal/constants"
	"github.com/creatrr/competitor-tracker-go/internal/domain"
	"github.com/creatrr/competitor-tracker-go/pkg/errors"
)

// metricsProvider is the slice of the YouTube service the worker needs.
type metricsProvider interface {
	FetchVideoMetrics(ctx context.Context, videoID string) (*domain.VideoMetrics, error)
}

type workerSnapshotStore interface {
	Add(ctx context.Context, videoID string, window domain.WindowType, m domain.VideoMetrics) error
	GetPendingDue(ctx context.Context, now time.Time, limit int) ([]*domain.ScheduledSnapshot, error)
	MarkScheduledCompleted(ctx context.Context, scheduledID int64) error
	MarkScheduledFailed(ctx context.Context, scheduledID int64, reason string, maxAttempts int) (domain.ScheduleStatus, error)
	GetByWindow(ctx context.Context, videoID string, window domain.WindowType) (*domain.Snapshot, error)
}

type workerVideoStore interface {
	GetActive(ctx context.Context) ([]*domain.Video, error)
	MarkCompleted(ctx context.Context, videoID string) error
	MarkDeleted(ctx context.Context, videoID string) error
}

// SnapshotWorker drains due schedule entries: fetch current metrics, record
// the snapshot, and advance the entry's state. A deleted video fails its
// remaining entries through the normal attempt budget rather than a special
// path, so one bad API response can never end tracking early.
type SnapshotWorker struct {
	provider  metricsProvider
	snapshots workerSnapshotStore
	videos    workerVideoStore
	logger    *zap.Logger
}

func NewSnapshotWorker(provider metricsProvider, snapshots workerSnapshotStore, videos workerVideoStore, logger *zap.Logger) *SnapshotWorker {
	return &SnapshotWorker{
		provider:  provider,
		snapshots: snapshots,
		videos:    videos,
		logger:    logger,
	}
}

// SweepResult summarizes one worker pass.
type SweepResult struct {
	Due       int
	Captured  int
	Retried   int
	Failed    int
	Completed int
}

// ProcessPendingSnapshots handles up to limit due entries in scheduled
// order. Entries are processed independently; one failure never blocks the
// rest of the sweep.
func (w *SnapshotWorker) ProcessPendingSnapshots(ctx context.Context, limit int) (*SweepResult, error) {
	due, err := w.snapshots.GetPendingDue(ctx, time.Now(), limit)
	if err != nil {
		return nil, err
	}

	result := &SweepResult{Due: len(due)}
	for _, entry := range due {
		if ctx.Err() != nil {
			return result, ctx.Err()
		}
		if stop := w.processEntry(ctx, entry, result); stop {
			break
		}
	}

	if result.Due > 0 {
		w.logger.Info("snapshot sweep finished",
			zap.Int("due", result.Due),
			zap.Int("captured", result.Captured),
			zap.Int("retried", result.Retried),
			zap.Int("failed", result.Failed),
			zap.Int("videosCompleted", result.Completed))
	}
	return result, nil
}

// processEntry returns true when the sweep should stop early. Per-entry
// failures, transient or not, consume the entry's attempt budget; only a
// provider-wide throttle (quota exhausted, rate limited) defers the sweep,
// since it would fail every remaining entry too.
func (w *SnapshotWorker) processEntry(ctx context.Context, entry *domain.ScheduledSnapshot, result *SweepResult) bool {
	metrics, err := w.provider.FetchVideoMetrics(ctx, entry.VideoID)
	if err != nil {
		if errors.IsQuotaExceeded(err) {
			w.logger.Warn("metrics provider throttled, sweep deferred",
				zap.Int64("scheduleId", entry.ID),
				zap.Error(err))
			return true
		}
		w.handleFailure(ctx, entry, err, result)
		return false
	}

	if err := w.snapshots.Add(ctx, entry.VideoID, entry.WindowType, *metrics); err != nil {
		w.handleFailure(ctx, entry, err, result)
		return false
	}
	if err := w.snapshots.MarkScheduledCompleted(ctx, entry.ID); err != nil {
		w.logger.Error("snapshot stored but schedule entry not marked",
			zap.Int64("scheduleId", entry.ID),
			zap.Error(err))
		return false
	}
	result.Captured++

	if entry.WindowType == domain.TerminalWindow() {
		if err := w.videos.MarkCompleted(ctx, entry.VideoID); err != nil {
			w.logger.Error("failed to complete video after terminal window",
				zap.String("videoId", entry.VideoID),
				zap.Error(err))
			return false
		}
		result.Completed++
		w.logger.Info("video tracking completed",
			zap.String("videoId", entry.VideoID))
	}
	return false
}

func (w *SnapshotWorker) handleFailure(ctx context.Context, entry *domain.ScheduledSnapshot, cause error, result *SweepResult) {
	status, err := w.snapshots.MarkScheduledFailed(ctx, entry.ID, cause.Error(), constants.SnapshotConfig.MaxAttempts)
	if err != nil {
		w.logger.Error("failed to record snapshot failure",
			zap.Int64("scheduleId", entry.ID),
			zap.Error(err))
		return
	}

	if status == domain.ScheduleFailed {
		result.Failed++
		w.logger.Warn("schedule entry exhausted its attempts",
			zap.Int64("scheduleId", entry.ID),
			zap.String("videoId", entry.VideoID),
			zap.String("window", string(entry.WindowType)),
			zap.Error(cause))
	} else {
		result.Retried++
		w.logger.Debug("snapshot capture will be retried",
			zap.Int64("scheduleId", entry.ID),
			zap.String("videoId", entry.VideoID),
			zap.Error(cause))
	}

	if errors.IsNotFound(cause) && status == domain.ScheduleFailed {
		if err := w.videos.MarkDeleted(ctx, entry.VideoID); err != nil {
			w.logger.Error("failed to mark video deleted",
				zap.String("videoId", entry.VideoID),
				zap.Error(err))
			return
		}
		w.logger.Info("video no longer exists upstream, tracking stopped",
			zap.String("videoId", entry.VideoID))
	}
}

// CheckAndCompleteVideos sweeps active videos whose tracking horizon has
// passed and completes them. Covers videos whose terminal capture failed
// permanently, which the per-entry path never completes.
func (w *SnapshotWorker) CheckAndCompleteVideos(ctx context.Context) (int, error) {
	active, err := w.videos.GetActive(ctx)
	if err != nil {
		return 0, err
	}

	now := time.Now()
	completed := 0
	for _, v := range active {
		if now.Before(v.PublishedAt.Add(domain.TrackingDuration())) {
			continue
		}
		if err := w.videos.MarkCompleted(ctx, v.VideoID); err != nil {
			w.logger.Error("failed to complete expired video",
				zap.String("videoId", v.VideoID),
				zap.Error(err))
			continue
		}
		completed++
	}

	if completed > 0 {
		w.logger.Info("completed videos past tracking horizon",
			zap.Int("count", completed))
	}
	return completed, nil
}
