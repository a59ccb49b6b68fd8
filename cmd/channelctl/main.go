// Command channelctl manages the set of tracked competitor channels. It
// accepts any channel reference a person would paste (URL, @handle, raw UC
// id), resolves it to a canonical channel ID, and applies the requested
// action: register, deactivate, refresh stats, or detach from a bucket.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"go.uber.org/zap"

	"github.com/creatrr/competitor-tracker-go/internal/config"
	"github.com/creatrr/competitor-tracker-go/internal/domain"
	"github.com/creatrr/competitor-tracker-go/internal/service/cache"
	"github.com/creatrr/competitor-tracker-go/internal/service/database"
	"github.com/creatrr/competitor-tracker-go/internal/service/store"
	"github.com/creatrr/competitor-tracker-go/internal/service/youtube"
	"github.com/creatrr/competitor-tracker-go/internal/util"
)

var (
	action     = flag.String("action", "add", "One of: add, deactivate, refresh, detach")
	channelRef = flag.String("channel", "", "Channel URL, @handle, or UC... channel ID (required)")
	bucketName = flag.String("bucket", "", "Bucket name (add: attach, created if missing; detach: required)")
)

func main() {
	flag.Parse()
	if *channelRef == "" {
		fmt.Fprintln(os.Stderr, "usage: channelctl -action <add|deactivate|refresh|detach> -channel <url|@handle|UC...> [-bucket <name>]")
		os.Exit(2)
	}

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}
	logger, err := util.NewLogger(cfg.Logging.Level, "")
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	if err := run(cfg, logger); err != nil {
		logger.Error("channelctl failed", zap.String("action", *action), zap.Error(err))
		os.Exit(1)
	}
}

func run(cfg *config.Config, logger *zap.Logger) error {
	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
	defer cancel()

	ref, err := youtube.ParseChannelURL(*channelRef)
	if err != nil {
		return fmt.Errorf("cannot parse channel reference: %w", err)
	}

	postgresSvc, err := database.NewPostgresService(database.PostgresConfig{
		Host:     cfg.Postgres.Host,
		Port:     cfg.Postgres.Port,
		User:     cfg.Postgres.User,
		Password: cfg.Postgres.Password,
		Database: cfg.Postgres.Database,
	}, logger)
	if err != nil {
		return err
	}
	defer postgresSvc.Close()

	cacheSvc, err := cache.NewCacheService(cache.CacheConfig{
		Host:     cfg.Redis.Host,
		Port:     cfg.Redis.Port,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	}, logger)
	if err != nil {
		return err
	}
	defer cacheSvc.Close()

	youtubeSvc, err := youtube.NewYouTubeService(cfg.YouTube.APIKey, cacheSvc, logger)
	if err != nil {
		return err
	}

	channelID, err := youtubeSvc.ResolveChannelID(ctx, ref)
	if err != nil {
		return fmt.Errorf("cannot resolve channel: %w", err)
	}

	channels := store.NewChannelRepository(postgresSvc, logger)
	buckets := store.NewBucketRepository(postgresSvc, logger)

	switch *action {
	case "add":
		return addChannel(ctx, youtubeSvc, channels, buckets, channelID, logger)
	case "deactivate":
		return deactivateChannel(ctx, channels, channelID, logger)
	case "refresh":
		return refreshChannel(ctx, youtubeSvc, cacheSvc, channels, channelID, logger)
	case "detach":
		return detachChannel(ctx, buckets, channelID, logger)
	}
	return fmt.Errorf("unknown action: %s", *action)
}

func addChannel(ctx context.Context, yt *youtube.YouTubeService, channels *store.ChannelRepository, buckets *store.BucketRepository, channelID string, logger *zap.Logger) error {
	info, err := yt.FetchChannelInfo(ctx, channelID)
	if err != nil {
		return fmt.Errorf("cannot fetch channel info: %w", err)
	}
	if err := channels.Create(ctx, &domain.Channel{
		ChannelID:       info.ChannelID,
		ChannelName:     info.ChannelName,
		SubscriberCount: info.SubscriberCount,
		TotalVideos:     info.TotalVideos,
		IsActive:        true,
	}); err != nil {
		return fmt.Errorf("cannot create channel: %w", err)
	}
	logger.Info("channel registered",
		zap.String("channelId", info.ChannelID),
		zap.String("name", info.ChannelName),
		zap.Int64("subscribers", info.SubscriberCount))

	if *bucketName == "" {
		return nil
	}
	bucket, err := findOrCreateBucket(ctx, buckets, *bucketName)
	if err != nil {
		return err
	}
	if err := buckets.AddChannel(ctx, bucket.ID, info.ChannelID); err != nil {
		return fmt.Errorf("cannot attach channel to bucket: %w", err)
	}
	logger.Info("channel attached to bucket",
		zap.String("bucket", bucket.Name),
		zap.String("channelId", info.ChannelID))
	return nil
}

func deactivateChannel(ctx context.Context, channels *store.ChannelRepository, channelID string, logger *zap.Logger) error {
	ch, err := channels.Get(ctx, channelID)
	if err != nil {
		return fmt.Errorf("cannot load channel: %w", err)
	}
	if err := channels.Deactivate(ctx, channelID); err != nil {
		return fmt.Errorf("cannot deactivate channel: %w", err)
	}
	logger.Info("channel deactivated",
		zap.String("channelId", channelID),
		zap.String("name", ch.ChannelName))
	return nil
}

func refreshChannel(ctx context.Context, yt *youtube.YouTubeService, cacheSvc *cache.CacheService, channels *store.ChannelRepository, channelID string, logger *zap.Logger) error {
	cacheSvc.InvalidateChannelInfo(ctx, channelID)
	info, err := yt.FetchChannelInfo(ctx, channelID)
	if err != nil {
		return fmt.Errorf("cannot fetch channel info: %w", err)
	}
	if err := channels.UpdateStats(ctx, channelID, info.SubscriberCount, info.TotalVideos); err != nil {
		return fmt.Errorf("cannot update channel stats: %w", err)
	}
	logger.Info("channel stats refreshed",
		zap.String("channelId", channelID),
		zap.Int64("subscribers", info.SubscriberCount),
		zap.Int64("totalVideos", info.TotalVideos))
	return nil
}

func detachChannel(ctx context.Context, buckets *store.BucketRepository, channelID string, logger *zap.Logger) error {
	if *bucketName == "" {
		return fmt.Errorf("detach requires -bucket")
	}
	all, err := buckets.GetAll(ctx)
	if err != nil {
		return err
	}
	for _, b := range all {
		if b.Name == *bucketName {
			if err := buckets.RemoveChannel(ctx, b.ID, channelID); err != nil {
				return fmt.Errorf("cannot detach channel from bucket: %w", err)
			}
			logger.Info("channel detached from bucket",
				zap.String("bucket", b.Name),
				zap.String("channelId", channelID))
			return nil
		}
	}
	return fmt.Errorf("bucket not found: %s", *bucketName)
}

func findOrCreateBucket(ctx context.Context, buckets *store.BucketRepository, name string) (*domain.Bucket, error) {
	existing, err := buckets.GetAll(ctx)
	if err != nil {
		return nil, err
	}
	for _, b := range existing {
		if b.Name == name {
			return b, nil
		}
	}
	return buckets.Create(ctx, name)
}
