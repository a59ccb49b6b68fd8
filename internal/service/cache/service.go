package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/creatrr/competitor-tracker-go/internal/constants"
	"github.com/creatrr/competitor-tracker-go/internal/domain"
)

// CacheService fronts Redis for the hot lookups the pipeline repeats:
// transcripts, channel info, and shorts probes.
type CacheService struct {
	client *redis.Client
	logger *zap.Logger
}

type CacheConfig struct {
	Host     string
	Port     int
	Password string
	DB       int
}

func NewCacheService(cfg CacheConfig, logger *zap.Logger) (*CacheService, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Password:     cfg.Password,
		DB:           cfg.DB,
		MaxRetries:   3,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
		PoolSize:     10,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	logger.Info("Redis connected",
		zap.String("addr", fmt.Sprintf("%s:%d", cfg.Host, cfg.Port)),
		zap.Int("db", cfg.DB),
	)

	return &CacheService{
		client: client,
		logger: logger,
	}, nil
}

func (c *CacheService) Get(ctx context.Context, key string, dest any) (bool, error) {
	value, err := c.client.Get(ctx, key).Result()
	if err == redis.Nil {
		return false, nil
	}
	if err != nil {
		c.logger.Error("Cache get failed", zap.String("key", key), zap.Error(err))
		return false, err
	}

	if dest != nil {
		if err := json.Unmarshal([]byte(value), dest); err != nil {
			c.logger.Error("Cache unmarshal failed", zap.String("key", key), zap.Error(err))
			return false, err
		}
	}

	return true, nil
}

func (c *CacheService) Set(ctx context.Context, key string, value any, ttl time.Duration) error {
	jsonData, err := json.Marshal(value)
	if err != nil {
		return err
	}

	if err := c.client.Set(ctx, key, jsonData, ttl).Err(); err != nil {
		c.logger.Error("Cache set failed", zap.String("key", key), zap.Error(err))
		return err
	}

	return nil
}

func (c *CacheService) Del(ctx context.Context, key string) error {
	if err := c.client.Del(ctx, key).Err(); err != nil {
		c.logger.Error("Cache delete failed", zap.String("key", key), zap.Error(err))
		return err
	}
	return nil
}

// GetTranscript returns a cached transcript. The empty string is cached too,
// to remember videos with no transcript available.
func (c *CacheService) GetTranscript(ctx context.Context, videoID string) (string, bool) {
	var transcript string
	found, err := c.Get(ctx, "tracker:transcript:"+videoID, &transcript)
	if err != nil || !found {
		return "", false
	}
	return transcript, true
}

func (c *CacheService) SetTranscript(ctx context.Context, videoID, transcript string) {
	if err := c.Set(ctx, "tracker:transcript:"+videoID, transcript, constants.CacheTTL.Transcript); err != nil {
		c.logger.Debug("Failed to cache transcript", zap.String("video", videoID), zap.Error(err))
	}
}

func (c *CacheService) GetChannelInfo(ctx context.Context, channelID string) (*domain.ChannelInfo, bool) {
	var info domain.ChannelInfo
	found, err := c.Get(ctx, "tracker:channel_info:"+channelID, &info)
	if err != nil || !found {
		return nil, false
	}
	return &info, true
}

func (c *CacheService) SetChannelInfo(ctx context.Context, info *domain.ChannelInfo) {
	if err := c.Set(ctx, "tracker:channel_info:"+info.ChannelID, info, constants.CacheTTL.ChannelInfo); err != nil {
		c.logger.Debug("Failed to cache channel info", zap.String("channel", info.ChannelID), zap.Error(err))
	}
}

// InvalidateChannelInfo drops the cached info so the next lookup hits the API.
func (c *CacheService) InvalidateChannelInfo(ctx context.Context, channelID string) {
	if err := c.Del(ctx, "tracker:channel_info:"+channelID); err != nil {
		c.logger.Debug("Failed to invalidate channel info", zap.String("channel", channelID), zap.Error(err))
	}
}

// GetShortsFlag returns the cached shorts-probe result for a video.
func (c *CacheService) GetShortsFlag(ctx context.Context, videoID string) (bool, bool) {
	var isShort bool
	found, err := c.Get(ctx, "tracker:is_short:"+videoID, &isShort)
	if err != nil || !found {
		return false, false
	}
	return isShort, true
}

func (c *CacheService) SetShortsFlag(ctx context.Context, videoID string, isShort bool) {
	if err := c.Set(ctx, "tracker:is_short:"+videoID, isShort, constants.ShortsConfig.CacheTTL); err != nil {
		c.logger.Debug("Failed to cache shorts flag", zap.String("video", videoID), zap.Error(err))
	}
}

func (c *CacheService) IsConnected(ctx context.Context) bool {
	return c.client.Ping(ctx).Err() == nil
}

func (c *CacheService) Close() error {
	if err := c.client.Close(); err != nil {
		c.logger.Error("Failed to close Redis connection", zap.Error(err))
		return err
	}
	c.logger.Info("Redis disconnected")
	return nil
}
