package app

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/creatrr/competitor-tracker-go/internal/config"
	"github.com/creatrr/competitor-tracker-go/internal/ingest"
	"github.com/creatrr/competitor-tracker-go/internal/jobs"
	"github.com/creatrr/competitor-tracker-go/internal/service"
	"github.com/creatrr/competitor-tracker-go/internal/service/ai"
	"github.com/creatrr/competitor-tracker-go/internal/service/cache"
	"github.com/creatrr/competitor-tracker-go/internal/service/database"
	"github.com/creatrr/competitor-tracker-go/internal/service/store"
	"github.com/creatrr/competitor-tracker-go/internal/service/transcript"
	"github.com/creatrr/competitor-tracker-go/internal/service/youtube"
)

// Container holds the assembled runtime. Build wires everything; main only
// starts and stops what it finds here.
type Container struct {
	Config *config.Config
	Logger *zap.Logger

	Runner     *jobs.Runner
	Server     *http.Server       // nil unless push ingestion is enabled
	Subscriber *ingest.Subscriber // nil unless push ingestion is enabled

	closers []func()
}

// Close releases infrastructure in reverse construction order.
func (c *Container) Close() {
	for i := len(c.closers) - 1; i >= 0; i-- {
		c.closers[i]()
	}
}

// Build assembles all infrastructure and services. Heavy initialization
// (DB, cache, API clients) happens here so the job runner stays pure
// orchestration.
func Build(ctx context.Context, cfg *config.Config, logger *zap.Logger) (container *Container, err error) {
	if cfg == nil {
		return nil, fmt.Errorf("config must not be nil")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger must not be nil")
	}

	var closers []func()
	defer func() {
		if err != nil {
			for i := len(closers) - 1; i >= 0; i-- {
				closers[i]()
			}
		}
	}()

	// Cache and database
	cacheSvc, err := cache.NewCacheService(cache.CacheConfig{
		Host:     cfg.Redis.Host,
		Port:     cfg.Redis.Port,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	}, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create cache service: %w", err)
	}
	closers = append(closers, func() {
		_ = cacheSvc.Close()
	})

	postgresSvc, err := database.NewPostgresService(database.PostgresConfig{
		Host:     cfg.Postgres.Host,
		Port:     cfg.Postgres.Port,
		User:     cfg.Postgres.User,
		Password: cfg.Postgres.Password,
		Database: cfg.Postgres.Database,
	}, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create postgres service: %w", err)
	}
	closers = append(closers, func() {
		_ = postgresSvc.Close()
	})

	// Repositories
	channelRepo := store.NewChannelRepository(postgresSvc, logger)
	videoRepo := store.NewVideoRepository(postgresSvc, logger)
	snapshotRepo := store.NewSnapshotRepository(postgresSvc, logger)
	baselineRepo := store.NewBaselineRepository(postgresSvc, logger)
	topicRepo := store.NewTopicRepository(postgresSvc, logger)
	bucketRepo := store.NewBucketRepository(postgresSvc, logger)
	subscriptionRepo := store.NewSubscriptionRepository(postgresSvc, logger)

	// External data sources
	youtubeSvc, err := youtube.NewYouTubeService(cfg.YouTube.APIKey, cacheSvc, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create youtube service: %w", err)
	}
	shortsDetector := youtube.NewShortsDetector(cacheSvc, logger)
	transcriptSvc := transcript.NewService(cacheSvc, logger)

	// AI stack
	modelManager, err := ai.NewModelManager(ctx, ai.ModelManagerConfig{
		GeminiAPIKey:   cfg.Gemini.APIKey,
		OpenAIAPIKey:   cfg.OpenAI.APIKey,
		GeminiModel:    cfg.Gemini.Model,
		OpenAIModel:    cfg.OpenAI.Model,
		EnableFallback: cfg.OpenAI.EnableFallback,
	}, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create model manager: %w", err)
	}
	oracle := ai.NewTopicOracle(modelManager, logger)

	// Pipeline services
	scheduler := service.NewSnapshotScheduler(snapshotRepo, videoRepo, logger)
	worker := service.NewSnapshotWorker(youtubeSvc, snapshotRepo, videoRepo, logger)
	baselineSvc := service.NewBaselineService(snapshotRepo, baselineRepo, channelRepo, logger)
	pipeline := service.NewTopicPipeline(transcriptSvc, oracle, topicRepo, snapshotRepo, baselineSvc, logger)
	detector := service.NewTrendDetector(topicRepo, bucketRepo, videoRepo, snapshotRepo,
		channelRepo, baselineSvc, oracle, logger)
	discovery := service.NewDiscoveryService(youtubeSvc, shortsDetector, videoRepo,
		snapshotRepo, channelRepo, scheduler, logger)

	// Push ingestion is optional; polling stays as the fallback either way.
	var (
		subscriber *ingest.Subscriber
		server     *http.Server
		renewer    jobs.LeaseRenewer
	)
	if cfg.Discovery.Mode == "websub" {
		subscriber = ingest.NewSubscriber(cfg.Discovery.WebSubCallbackURL,
			cfg.Discovery.WebSubLeaseSeconds, subscriptionRepo, channelRepo, logger)
		renewer = subscriber

		mux := http.NewServeMux()
		mux.Handle("/websub/callback", ingest.NewHandler(discovery, videoRepo, logger))
		mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
			if err := postgresSvc.Ping(r.Context()); err != nil {
				http.Error(w, "database unavailable", http.StatusServiceUnavailable)
				return
			}
			if !cacheSvc.IsConnected(r.Context()) {
				http.Error(w, "cache unavailable", http.StatusServiceUnavailable)
				return
			}

			used, remaining, resetTime := youtubeSvc.GetQuotaStatus()
			circuit := modelManager.CircuitStatus()
			w.Header().Set("Content-Type", "application/json")
			json.NewEncoder(w).Encode(map[string]any{
				"status":          "ok",
				"quota_used":      used,
				"quota_remaining": remaining,
				"quota_reset":     resetTime.Format(time.RFC3339),
				"ai_circuit":      strings.ToLower(string(circuit.State)),
			})
		})
		server = &http.Server{
			Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
			Handler:      mux,
			ReadTimeout:  10 * time.Second,
			WriteTimeout: 10 * time.Second,
		}
	}

	runner := jobs.NewRunner(discovery, worker, baselineSvc, scheduler, pipeline,
		detector, videoRepo, channelRepo, renewer, cfg.Jobs, logger)

	return &Container{
		Config:     cfg,
		Logger:     logger,
		Runner:     runner,
		Server:     server,
		Subscriber: subscriber,
		closers:    closers,
	}, nil
}
