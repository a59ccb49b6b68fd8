package service

import (
	"context"
	"encoding/xml"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/sourcegraph/conc/pool"
	"go.uber.org/zap"

	"github.com/creatrr/competitor-tracker-go/internal/constants"
	"github.com/creatrr/competitor-tracker-go/internal/domain"
)

type detailsProvider interface {
	FetchVideoDetails(ctx context.Context, videoID string) (*domain.VideoDetails, error)
}

type shortsClassifier interface {
	IsShort(ctx context.Context, videoID string, durationSeconds int) bool
}

type discoveryVideoStore interface {
	Exists(ctx context.Context, videoID string) (bool, error)
	Create(ctx context.Context, v *domain.Video) error
}

type discoverySnapshotAdder interface {
	Add(ctx context.Context, videoID string, window domain.WindowType, m domain.VideoMetrics) error
}

type discoveryChannelStore interface {
	GetActive(ctx context.Context) ([]*domain.Channel, error)
}

type scheduleCreator interface {
	CreateSchedules(ctx context.Context, videoID string, publishedAt time.Time) error
}

// DiscoveryService finds newly published videos by polling each active
// channel's Atom feed. Feed fan-out runs on a bounded goroutine pool; a
// failing channel is tallied and never aborts the sweep.
type DiscoveryService struct {
	provider  detailsProvider
	shorts    shortsClassifier
	videos    discoveryVideoStore
	snapshots discoverySnapshotAdder
	channels  discoveryChannelStore
	scheduler scheduleCreator
	client    *http.Client
	logger    *zap.Logger
}

func NewDiscoveryService(provider detailsProvider, shorts shortsClassifier, videos discoveryVideoStore,
	snapshots discoverySnapshotAdder, channels discoveryChannelStore, scheduler scheduleCreator,
	logger *zap.Logger) *DiscoveryService {
	return &DiscoveryService{
		provider:  provider,
		shorts:    shorts,
		videos:    videos,
		snapshots: snapshots,
		channels:  channels,
		scheduler: scheduler,
		client:    &http.Client{Timeout: constants.DiscoveryConfig.FeedTimeout},
		logger:    logger,
	}
}

// DiscoverySummary reports one polling sweep.
type DiscoverySummary struct {
	ChannelsChecked int
	NewVideos       int
	Errors          int
}

type feedVideo struct {
	VideoID     string
	Title       string
	PublishedAt time.Time
}

// atomFeed matches the youtube.com/feeds/videos.xml shape; only the entry
// fields discovery needs are mapped.
type atomFeed struct {
	Entries []struct {
		VideoID   string `xml:"http://www.youtube.com/xml/schemas/2015 videoId"`
		Title     string `xml:"title"`
		Published string `xml:"published"`
	} `xml:"entry"`
}

// PollAllChannels sweeps every active channel's feed for unknown videos and
// brings each one under tracking.
func (s *DiscoveryService) PollAllChannels(ctx context.Context) (*DiscoverySummary, error) {
	channels, err := s.channels.GetActive(ctx)
	if err != nil {
		return nil, err
	}

	summary := &DiscoverySummary{ChannelsChecked: len(channels)}
	var mu sync.Mutex

	p := pool.New().WithMaxGoroutines(constants.DiscoveryConfig.MaxConcurrency)
	for _, ch := range channels {
		ch := ch
		p.Go(func() {
			found, err := s.PollChannel(ctx, ch.ChannelID)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				summary.Errors++
				return
			}
			summary.NewVideos += found
		})
	}
	p.Wait()

	s.logger.Info("discovery sweep finished",
		zap.Int("channelsChecked", summary.ChannelsChecked),
		zap.Int("newVideos", summary.NewVideos),
		zap.Int("errors", summary.Errors))
	return summary, nil
}

// PollChannel checks one channel's feed and returns how many new videos were
// brought under tracking.
func (s *DiscoveryService) PollChannel(ctx context.Context, channelID string) (int, error) {
	recent, err := s.fetchRecentVideos(ctx, channelID)
	if err != nil {
		s.logger.Error("feed fetch failed",
			zap.String("channelId", channelID),
			zap.Error(err))
		return 0, err
	}

	found := 0
	for _, fv := range recent {
		exists, err := s.videos.Exists(ctx, fv.VideoID)
		if err != nil {
			s.logger.Error("existence check failed",
				zap.String("videoId", fv.VideoID),
				zap.Error(err))
			continue
		}
		if exists {
			continue
		}

		if _, err := s.DiscoverNewVideo(ctx, fv.VideoID, channelID); err != nil {
			s.logger.Error("failed to process discovered video",
				zap.String("videoId", fv.VideoID),
				zap.String("channelId", channelID),
				zap.Error(err))
			continue
		}
		found++
	}
	return found, nil
}

// DiscoverNewVideo brings one video under tracking: fetch details, classify
// Shorts, create the record with its tracking horizon, take the immediate 0h
// snapshot, and create the window schedule.
func (s *DiscoveryService) DiscoverNewVideo(ctx context.Context, videoID, channelID string) (*domain.Video, error) {
	details, err := s.provider.FetchVideoDetails(ctx, videoID)
	if err != nil {
		return nil, err
	}

	isShort := s.shorts.IsShort(ctx, videoID, details.DurationSeconds)

	video := &domain.Video{
		VideoID:         videoID,
		ChannelID:       channelID,
		Title:           details.Title,
		Description:     details.Description,
		PublishedAt:     details.PublishedAt,
		DurationSeconds: details.DurationSeconds,
		IsShort:         isShort,
		TrackingStatus:  domain.TrackingActive,
		TrackingUntil:   details.PublishedAt.Add(domain.TrackingDuration()),
	}
	if err := s.videos.Create(ctx, video); err != nil {
		return nil, err
	}

	if err := s.snapshots.Add(ctx, videoID, domain.Window0h, domain.VideoMetrics{
		Views:    details.Views,
		Likes:    details.Likes,
		Comments: details.Comments,
	}); err != nil {
		s.logger.Error("immediate snapshot failed",
			zap.String("videoId", videoID),
			zap.Error(err))
	}

	if err := s.scheduler.CreateSchedules(ctx, videoID, details.PublishedAt); err != nil {
		s.logger.Error("schedule creation failed",
			zap.String("videoId", videoID),
			zap.Error(err))
	}

	s.logger.Info("new video under tracking",
		zap.String("videoId", videoID),
		zap.String("channelId", channelID),
		zap.Bool("isShort", isShort),
		zap.Time("publishedAt", details.PublishedAt))
	return video, nil
}

func (s *DiscoveryService) fetchRecentVideos(ctx context.Context, channelID string) ([]feedVideo, error) {
	url := fmt.Sprintf("https://www.youtube.com/feeds/videos.xml?channel_id=%s", channelID)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("feed request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("feed returned status %d", resp.StatusCode)
	}

	var feed atomFeed
	if err := xml.NewDecoder(resp.Body).Decode(&feed); err != nil {
		return nil, fmt.Errorf("feed parse failed: %w", err)
	}

	videos := make([]feedVideo, 0, len(feed.Entries))
	for _, entry := range feed.Entries {
		if entry.VideoID == "" {
			continue
		}
		published, err := time.Parse(time.RFC3339, entry.Published)
		if err != nil {
			published = time.Time{}
		}
		videos = append(videos, feedVideo{
			VideoID:     entry.VideoID,
			Title:       entry.Title,
			PublishedAt: published,
		})
	}
	return videos, nil
}
