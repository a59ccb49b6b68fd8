package service

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/creatrr/competitor-tracker-go/internal/constants"
	"github.com/creatrr/competitor-tracker-go/internal/domain"
	"github.com/creatrr/competitor-tracker-go/internal/util"
)

type baselineSnapshotStore interface {
	GetForBaseline(ctx context.Context, channelID string, isShort bool, window domain.WindowType, limit int) ([]*domain.Snapshot, error)
}

type baselineStore interface {
	Upsert(ctx context.Context, b *domain.ChannelBaseline) error
	Get(ctx context.Context, channelID string, isShort bool, window domain.WindowType) (*domain.ChannelBaseline, error)
}

type baselineChannelStore interface {
	GetActive(ctx context.Context) ([]*domain.Channel, error)
}

// BaselineService maintains the per-channel median baselines that
// performance ratios are measured against. Medians, not means: a single
// viral video must not drag the channel's norm with it.
type BaselineService struct {
	snapshots baselineSnapshotStore
	baselines baselineStore
	channels  baselineChannelStore
	logger    *zap.Logger
}

func NewBaselineService(snapshots baselineSnapshotStore, baselines baselineStore, channels baselineChannelStore, logger *zap.Logger) *BaselineService {
	return &BaselineService{
		snapshots: snapshots,
		baselines: baselines,
		channels:  channels,
		logger:    logger,
	}
}

// CalculateChannelBaseline computes the median metrics over the channel's
// most recent sample at one (isShort, window) cell. Returns (nil, nil) when
// the sample is below the minimum; an existing baseline row is left as-is in
// that case.
func (s *BaselineService) CalculateChannelBaseline(ctx context.Context, channelID string, isShort bool, window domain.WindowType) (*domain.ChannelBaseline, error) {
	snapshots, err := s.snapshots.GetForBaseline(ctx, channelID, isShort, window, constants.BaselineConfig.SampleSize)
	if err != nil {
		return nil, err
	}
	if len(snapshots) < constants.BaselineConfig.MinSample {
		return nil, nil
	}

	views := make([]int64, len(snapshots))
	likes := make([]int64, len(snapshots))
	comments := make([]int64, len(snapshots))
	for i, snap := range snapshots {
		views[i] = snap.Views
		likes[i] = snap.Likes
		comments[i] = snap.Comments
	}

	medianViews, _ := util.MedianInt64(views)
	medianLikes, _ := util.MedianInt64(likes)
	medianComments, _ := util.MedianInt64(comments)

	return &domain.ChannelBaseline{
		ChannelID:      channelID,
		IsShort:        isShort,
		WindowType:     window,
		MedianViews:    medianViews,
		MedianLikes:    medianLikes,
		MedianComments: medianComments,
		SampleSize:     len(snapshots),
		UpdatedAt:      time.Now(),
	}, nil
}

// UpdateAllBaselinesForChannel recomputes every (isShort, window) cell for
// one channel and upserts the ones with enough data. Returns how many cells
// were updated and how many were skipped (insufficient sample or a cell-level
// failure).
func (s *BaselineService) UpdateAllBaselinesForChannel(ctx context.Context, channelID string) (updated, skipped int, err error) {
	for _, isShort := range []bool{false, true} {
		for _, window := range domain.AllWindows() {
			baseline, err := s.CalculateChannelBaseline(ctx, channelID, isShort, window)
			if err != nil {
				s.logger.Error("baseline calculation failed",
					zap.String("channelId", channelID),
					zap.Bool("isShort", isShort),
					zap.String("window", string(window)),
					zap.Error(err))
				skipped++
				continue
			}
			if baseline == nil {
				skipped++
				continue
			}
			if err := s.baselines.Upsert(ctx, baseline); err != nil {
				s.logger.Error("baseline upsert failed",
					zap.String("channelId", channelID),
					zap.Error(err))
				skipped++
				continue
			}
			updated++
		}
	}
	return updated, skipped, nil
}

// UpdateAllBaselines refreshes baselines for every active channel.
func (s *BaselineService) UpdateAllBaselines(ctx context.Context) (int, int, error) {
	channels, err := s.channels.GetActive(ctx)
	if err != nil {
		return 0, 0, err
	}

	totalUpdated, totalSkipped := 0, 0
	for _, ch := range channels {
		if ctx.Err() != nil {
			return totalUpdated, totalSkipped, ctx.Err()
		}
		updated, skipped, err := s.UpdateAllBaselinesForChannel(ctx, ch.ChannelID)
		if err != nil {
			s.logger.Error("channel baseline refresh failed",
				zap.String("channelId", ch.ChannelID),
				zap.Error(err))
			continue
		}
		totalUpdated += updated
		totalSkipped += skipped
	}

	s.logger.Info("baseline refresh finished",
		zap.Int("channels", len(channels)),
		zap.Int("baselinesUpdated", totalUpdated),
		zap.Int("baselinesSkipped", totalSkipped))
	return totalUpdated, totalSkipped, nil
}

// PerformanceRatio compares a video's views at the reference window to its
// channel's baseline. ok is false when no baseline exists or the baseline
// median is zero.
func (s *BaselineService) PerformanceRatio(ctx context.Context, channelID string, isShort bool, window domain.WindowType, views int64) (float64, bool, error) {
	baseline, err := s.baselines.Get(ctx, channelID, isShort, window)
	if err != nil {
		return 0, false, err
	}
	if baseline == nil || baseline.MedianViews == 0 {
		return 0, false, nil
	}
	return float64(views) / float64(baseline.MedianViews), true, nil
}
