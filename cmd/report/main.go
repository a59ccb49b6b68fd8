// Command report inspects tracking state: live trending topics for a bucket
// (or the global scope), a single trend's detail, or snapshot coverage for a
// video.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"go.uber.org/zap"

	"github.com/creatrr/competitor-tracker-go/internal/config"
	"github.com/creatrr/competitor-tracker-go/internal/service/database"
	"github.com/creatrr/competitor-tracker-go/internal/service/store"
	"github.com/creatrr/competitor-tracker-go/internal/util"
)

var (
	videoID    = flag.String("video", "", "Print snapshot coverage for this video")
	channelID  = flag.String("channel", "", "Print stored baselines for this channel ID")
	bucketName = flag.String("bucket", "", "Bucket to report on (empty is the global scope)")
	clusterID  = flag.String("cluster", "", "Print one trend's detail for -bucket and this cluster ID")
)

func main() {
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}
	logger, err := util.NewLogger("warn", "")
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	if err := run(cfg, logger); err != nil {
		fmt.Fprintf(os.Stderr, "report failed: %v\n", err)
		os.Exit(1)
	}
}

func run(cfg *config.Config, logger *zap.Logger) error {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

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

	if *videoID != "" {
		return printCoverage(ctx, postgresSvc, logger)
	}
	if *channelID != "" {
		return printBaselines(ctx, postgresSvc, logger)
	}

	bucketID := ""
	if *bucketName != "" {
		bucketID, err = resolveBucketID(ctx, postgresSvc, logger, *bucketName)
		if err != nil {
			return err
		}
	}
	if *clusterID != "" {
		return printTrendDetail(ctx, postgresSvc, logger, bucketID)
	}
	return printLiveTrends(ctx, postgresSvc, logger, bucketID)
}

func printCoverage(ctx context.Context, db *database.PostgresService, logger *zap.Logger) error {
	videos := store.NewVideoRepository(db, logger)
	snapshots := store.NewSnapshotRepository(db, logger)

	video, err := videos.Get(ctx, *videoID)
	if err != nil {
		return err
	}
	cov, err := snapshots.GetCoverage(ctx, *videoID)
	if err != nil {
		return err
	}

	kind := "video"
	if video.IsShort {
		kind = "short"
	}
	fmt.Printf("%s  %q (%s, %s)\n", video.VideoID, video.Title, kind, video.TrackingStatus)
	fmt.Printf("published %s, tracked until %s\n",
		video.PublishedAt.Format(time.RFC3339), video.TrackingUntil.Format(time.RFC3339))
	fmt.Printf("coverage: %d/%d windows (%.0f%%)\n", cov.Actual, cov.Expected, cov.Coverage*100)
	return nil
}

func printBaselines(ctx context.Context, db *database.PostgresService, logger *zap.Logger) error {
	baselines := store.NewBaselineRepository(db, logger)
	rows, err := baselines.GetAllForChannel(ctx, *channelID)
	if err != nil {
		return err
	}
	if len(rows) == 0 {
		fmt.Println("no baselines stored for that channel")
		return nil
	}

	fmt.Printf("baselines for %s:\n", *channelID)
	for _, b := range rows {
		kind := "video"
		if b.IsShort {
			kind = "short"
		}
		fmt.Printf("  %-5s %-4s views=%d likes=%d comments=%d sample=%d updated=%s\n",
			kind, b.WindowType, b.MedianViews, b.MedianLikes, b.MedianComments,
			b.SampleSize, b.UpdatedAt.Format(time.RFC3339))
	}
	return nil
}

func printTrendDetail(ctx context.Context, db *database.PostgresService, logger *zap.Logger, bucketID string) error {
	topics := store.NewTopicRepository(db, logger)
	trend, err := topics.GetTrending(ctx, bucketID, *clusterID)
	if err != nil {
		return err
	}
	if trend == nil {
		fmt.Println("no trend recorded for that cluster")
		return nil
	}

	fmt.Printf("%s  [%s]\n", trend.ClusterName, trend.Status)
	fmt.Printf("channels %d, videos %d", trend.ChannelCount, trend.VideoCount)
	if trend.HasPerformance {
		fmt.Printf(", avg performance %.2fx", trend.AvgPerformance)
	}
	fmt.Println()
	fmt.Printf("first detected %s, last seen %s\n",
		trend.FirstDetectedAt.Format(time.RFC3339), trend.DetectedAt.Format(time.RFC3339))
	for _, id := range trend.VideoIDs {
		fmt.Printf("  %s\n", id)
	}
	return nil
}

func printLiveTrends(ctx context.Context, db *database.PostgresService, logger *zap.Logger, bucketID string) error {
	topics := store.NewTopicRepository(db, logger)
	trends, err := topics.GetLiveTrending(ctx, bucketID)
	if err != nil {
		return err
	}
	if len(trends) == 0 {
		fmt.Println("no live trends")
		return nil
	}

	scope := "global"
	if *bucketName != "" {
		scope = *bucketName
	}
	fmt.Printf("live trends (%s):\n", scope)
	for _, t := range trends {
		perf := "no baseline"
		if t.HasPerformance {
			perf = fmt.Sprintf("%.2fx", t.AvgPerformance)
		}
		fmt.Printf("  %-8s %-40q channels=%d videos=%d perf=%s cluster=%s\n",
			t.Status, t.ClusterName, t.ChannelCount, t.VideoCount, perf, t.ClusterID)
	}
	return nil
}

func resolveBucketID(ctx context.Context, db *database.PostgresService, logger *zap.Logger, name string) (string, error) {
	buckets := store.NewBucketRepository(db, logger)
	all, err := buckets.GetAll(ctx)
	if err != nil {
		return "", err
	}
	for _, b := range all {
		if b.Name == name {
			return b.ID, nil
		}
	}
	return "", fmt.Errorf("bucket not found: %s", name)
}
