package youtube

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
	"google.golang.org/api/youtube/v3"

	"github.com/creatrr/competitor-tracker-go/internal/domain"
	"github.com/creatrr/competitor-tracker-go/internal/service/cache"
	"github.com/creatrr/competitor-tracker-go/pkg/errors"
)

// YouTubeService is the metrics provider. All reads are API-key based;
// NotFound is distinguishable from transient failures via pkg/errors.
type YouTubeService struct {
	service    *youtube.Service
	cache      *cache.CacheService
	logger     *zap.Logger
	quotaUsed  int
	quotaMu    sync.Mutex
	quotaReset time.Time
}

const (
	dailyQuotaLimit   = 10000
	searchQuotaCost   = 100 // search.list cost
	listQuotaCost     = 1   // videos.list / channels.list cost
	quotaSafetyMargin = 500
)

func NewYouTubeService(apiKey string, cacheSvc *cache.CacheService, logger *zap.Logger) (*YouTubeService, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("YouTube API key is required")
	}

	ctx := context.Background()
	service, err := youtube.NewService(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("failed to create YouTube service: %w", err)
	}

	ys := &YouTubeService{
		service:    service,
		cache:      cacheSvc,
		logger:     logger,
		quotaUsed:  0,
		quotaReset: getNextQuotaReset(),
	}

	logger.Info("YouTube metrics provider initialized",
		zap.Time("quotaReset", ys.quotaReset))

	return ys, nil
}

// Quota resets at midnight Pacific, per the API's accounting.
func getNextQuotaReset() time.Time {
	pt, _ := time.LoadLocation("America/Los_Angeles")
	now := time.Now().In(pt)
	next := time.Date(now.Year(), now.Month(), now.Day()+1, 0, 0, 0, 0, pt)
	return next
}

func (ys *YouTubeService) checkQuota(cost int) error {
	ys.quotaMu.Lock()
	defer ys.quotaMu.Unlock()

	now := time.Now()
	if now.After(ys.quotaReset) {
		ys.quotaUsed = 0
		ys.quotaReset = getNextQuotaReset()
		ys.logger.Info("YouTube API quota auto-reset",
			zap.Time("nextReset", ys.quotaReset))
	}

	if ys.quotaUsed+cost > (dailyQuotaLimit - quotaSafetyMargin) {
		return errors.NewQuotaExceededError(
			fmt.Sprintf("YouTube API quota exhausted: used %d/%d, resets at %s",
				ys.quotaUsed, dailyQuotaLimit, ys.quotaReset.Format(time.RFC3339)),
			"quota_check", nil)
	}

	return nil
}

func (ys *YouTubeService) consumeQuota(cost int) {
	ys.quotaMu.Lock()
	defer ys.quotaMu.Unlock()

	ys.quotaUsed += cost
	remaining := dailyQuotaLimit - ys.quotaUsed

	if remaining < quotaSafetyMargin*2 {
		ys.logger.Warn("YouTube API quota running low",
			zap.Int("remaining", remaining),
			zap.Time("resetTime", ys.quotaReset))
	}
}

// FetchVideoMetrics returns the current view/like/comment counts for a video,
// or a NotFoundError when the video no longer exists upstream.
func (ys *YouTubeService) FetchVideoMetrics(ctx context.Context, videoID string) (*domain.VideoMetrics, error) {
	if err := ys.checkQuota(listQuotaCost); err != nil {
		return nil, err
	}

	call := ys.service.Videos.List([]string{"statistics"}).Id(videoID)

	resp, err := call.Context(ctx).Do()
	if err != nil {
		return nil, wrapAPIError("fetch video metrics", err)
	}
	ys.consumeQuota(listQuotaCost)

	if len(resp.Items) == 0 {
		return nil, errors.NewNotFoundError("video", videoID)
	}

	stats := resp.Items[0].Statistics
	return &domain.VideoMetrics{
		Views:    int64(stats.ViewCount),
		Likes:    int64(stats.LikeCount),
		Comments: int64(stats.CommentCount),
	}, nil
}

// FetchVideoDetails returns full video metadata plus current metrics, used at
// discovery time.
func (ys *YouTubeService) FetchVideoDetails(ctx context.Context, videoID string) (*domain.VideoDetails, error) {
	if err := ys.checkQuota(listQuotaCost); err != nil {
		return nil, err
	}

	call := ys.service.Videos.List([]string{"snippet", "contentDetails", "statistics"}).Id(videoID)

	resp, err := call.Context(ctx).Do()
	if err != nil {
		return nil, wrapAPIError("fetch video details", err)
	}
	ys.consumeQuota(listQuotaCost)

	if len(resp.Items) == 0 {
		return nil, errors.NewNotFoundError("video", videoID)
	}

	item := resp.Items[0]
	publishedAt, err := time.Parse(time.RFC3339, item.Snippet.PublishedAt)
	if err != nil {
		return nil, fmt.Errorf("invalid publishedAt %q: %w", item.Snippet.PublishedAt, err)
	}

	return &domain.VideoDetails{
		VideoID:         videoID,
		ChannelID:       item.Snippet.ChannelId,
		Title:           item.Snippet.Title,
		Description:     item.Snippet.Description,
		PublishedAt:     publishedAt,
		DurationSeconds: ParseISO8601Duration(item.ContentDetails.Duration),
		Views:           int64(item.Statistics.ViewCount),
		Likes:           int64(item.Statistics.LikeCount),
		Comments:        int64(item.Statistics.CommentCount),
	}, nil
}

// FetchChannelInfo returns channel metadata, served from cache when fresh.
func (ys *YouTubeService) FetchChannelInfo(ctx context.Context, channelID string) (*domain.ChannelInfo, error) {
	if ys.cache != nil {
		if info, found := ys.cache.GetChannelInfo(ctx, channelID); found {
			return info, nil
		}
	}

	if err := ys.checkQuota(listQuotaCost); err != nil {
		return nil, err
	}

	call := ys.service.Channels.List([]string{"snippet", "statistics"}).Id(channelID)

	resp, err := call.Context(ctx).Do()
	if err != nil {
		return nil, wrapAPIError("fetch channel info", err)
	}
	ys.consumeQuota(listQuotaCost)

	if len(resp.Items) == 0 {
		return nil, errors.NewNotFoundError("channel", channelID)
	}

	info := channelInfoFromItem(resp.Items[0])
	if ys.cache != nil {
		ys.cache.SetChannelInfo(ctx, info)
	}
	return info, nil
}

func channelInfoFromItem(item *youtube.Channel) *domain.ChannelInfo {
	return &domain.ChannelInfo{
		ChannelID:       item.Id,
		ChannelName:     item.Snippet.Title,
		SubscriberCount: int64(item.Statistics.SubscriberCount),
		TotalVideos:     int64(item.Statistics.VideoCount),
	}
}

// wrapAPIError maps googleapi failures onto the error taxonomy: 404 means the
// entity is gone, 403/429 are provider-wide throttles, everything else is
// treated as transient.
func wrapAPIError(operation string, err error) error {
	if apiErr, ok := err.(*googleapi.Error); ok {
		switch apiErr.Code {
		case 404:
			return errors.NewNotFoundError("resource", operation)
		case 403, 429:
			return errors.NewQuotaExceededError(
				fmt.Sprintf("YouTube API throttled during %s", operation), operation, err)
		}
	}
	return errors.NewTransientError(
		fmt.Sprintf("YouTube API error during %s", operation), operation, err)
}

func (ys *YouTubeService) GetQuotaStatus() (used int, remaining int, resetTime time.Time) {
	ys.quotaMu.Lock()
	defer ys.quotaMu.Unlock()

	if time.Now().After(ys.quotaReset) {
		return 0, dailyQuotaLimit, getNextQuotaReset()
	}

	return ys.quotaUsed, dailyQuotaLimit - ys.quotaUsed, ys.quotaReset
}
