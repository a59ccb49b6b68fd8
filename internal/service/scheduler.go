package service

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/creatrr/competitor-tracker-go/internal/domain"
	"github.com/creatrr/competitor-tracker-go/internal/service/store"
)

// scheduleStore is the slice of the snapshot repository the scheduler needs.
type scheduleStore interface {
	CreateScheduled(ctx context.Context, entries []*domain.ScheduledSnapshot) error
}

type scheduleGapStore interface {
	GetScheduleGaps(ctx context.Context, expectedWindows int) ([]*store.ScheduleGap, error)
}

// SnapshotScheduler creates the per-video capture timetable. Every video
// gets one pending entry per scheduled window at publish time plus the
// window offset, including entries already in the past for late discoveries.
type SnapshotScheduler struct {
	snapshots scheduleStore
	videos    scheduleGapStore
	logger    *zap.Logger
}

func NewSnapshotScheduler(snapshots scheduleStore, videos scheduleGapStore, logger *zap.Logger) *SnapshotScheduler {
	return &SnapshotScheduler{
		snapshots: snapshots,
		videos:    videos,
		logger:    logger,
	}
}

// CreateSchedules writes the full set of scheduled windows for one video.
func (s *SnapshotScheduler) CreateSchedules(ctx context.Context, videoID string, publishedAt time.Time) error {
	windows := domain.ScheduledWindows()
	entries := make([]*domain.ScheduledSnapshot, 0, len(windows))
	for _, w := range windows {
		entries = append(entries, &domain.ScheduledSnapshot{
			VideoID:      videoID,
			WindowType:   w,
			ScheduledFor: publishedAt.Add(w.Offset()),
			Status:       domain.SchedulePending,
		})
	}

	if err := s.snapshots.CreateScheduled(ctx, entries); err != nil {
		return err
	}

	s.logger.Debug("created snapshot schedules",
		zap.String("videoId", videoID),
		zap.Int("windows", len(entries)),
		zap.Time("publishedAt", publishedAt))
	return nil
}

// ReconcileSchedules backfills schedule entries for active videos that are
// missing windows, which happens after crashes between video creation and
// schedule creation.
func (s *SnapshotScheduler) ReconcileSchedules(ctx context.Context) (int, error) {
	expected := len(domain.ScheduledWindows())
	gaps, err := s.videos.GetScheduleGaps(ctx, expected)
	if err != nil {
		return 0, err
	}

	backfilled := 0
	for _, gap := range gaps {
		existing := make(map[domain.WindowType]bool, len(gap.ExistingWindows))
		for _, w := range gap.ExistingWindows {
			existing[domain.WindowType(w)] = true
		}

		var entries []*domain.ScheduledSnapshot
		for _, w := range domain.ScheduledWindows() {
			if existing[w] {
				continue
			}
			entries = append(entries, &domain.ScheduledSnapshot{
				VideoID:      gap.VideoID,
				WindowType:   w,
				ScheduledFor: gap.PublishedAt.Add(w.Offset()),
				Status:       domain.SchedulePending,
			})
		}
		if len(entries) == 0 {
			continue
		}

		if err := s.snapshots.CreateScheduled(ctx, entries); err != nil {
			s.logger.Error("failed to backfill schedules",
				zap.String("videoId", gap.VideoID),
				zap.Error(err))
			continue
		}
		backfilled += len(entries)
		s.logger.Info("backfilled missing schedules",
			zap.String("videoId", gap.VideoID),
			zap.Int("entries", len(entries)))
	}

	return backfilled, nil
}
