package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/lib/pq"
	"go.uber.org/zap"

	"github.com/creatrr/competitor-tracker-go/internal/domain"
	"github.com/creatrr/competitor-tracker-go/internal/service/database"
)

// TopicRepository persists extracted video topics, the persistent topic
// clusters, and the per-(bucket, cluster) trending rows.
type TopicRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

func NewTopicRepository(postgres *database.PostgresService, logger *zap.Logger) *TopicRepository {
	return &TopicRepository{
		db:     postgres.GetDB(),
		logger: logger,
	}
}

func (r *TopicRepository) AddVideoTopics(ctx context.Context, videoID string, topics []string) error {
	if len(topics) == 0 {
		return nil
	}

	stmt, err := r.db.PrepareContext(ctx,
		`INSERT INTO video_topics (video_id, topic) VALUES ($1, $2) ON CONFLICT DO NOTHING`)
	if err != nil {
		return fmt.Errorf("failed to prepare topic insert: %w", err)
	}
	defer stmt.Close()

	for _, topic := range topics {
		if _, err := stmt.ExecContext(ctx, videoID, topic); err != nil {
			return fmt.Errorf("failed to insert topic for %s: %w", videoID, err)
		}
	}
	return nil
}

// VideoHasTopics reports whether extraction already ran for a video.
// Extraction is attempted at most once; existence is the idempotence check.
func (r *TopicRepository) VideoHasTopics(ctx context.Context, videoID string) (bool, error) {
	var one int
	err := r.db.QueryRowContext(ctx,
		`SELECT 1 FROM video_topics WHERE video_id = $1 LIMIT 1`, videoID).Scan(&one)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to check video topics: %w", err)
	}
	return true, nil
}

// GetTopicsForVideos returns all topic rows for the listed videos.
func (r *TopicRepository) GetTopicsForVideos(ctx context.Context, videoIDs []string) ([]*domain.VideoTopic, error) {
	if len(videoIDs) == 0 {
		return nil, nil
	}

	rows, err := r.db.QueryContext(ctx,
		`SELECT video_id, topic FROM video_topics WHERE video_id = ANY($1)`, pq.Array(videoIDs))
	if err != nil {
		return nil, fmt.Errorf("failed to query video topics: %w", err)
	}
	defer rows.Close()

	var topics []*domain.VideoTopic
	for rows.Next() {
		var t domain.VideoTopic
		if err := rows.Scan(&t.VideoID, &t.Topic); err != nil {
			return nil, fmt.Errorf("failed to scan video topic: %w", err)
		}
		topics = append(topics, &t)
	}
	return topics, rows.Err()
}

// GetClusterIndex returns the persisted topic -> cluster ID mapping for a
// bucket scope. Empty bucketID selects the global scope.
func (r *TopicRepository) GetClusterIndex(ctx context.Context, bucketID string) (map[string]string, error) {
	query := `
		SELECT ct.topic, ct.cluster_id
		FROM cluster_topics ct
		JOIN topic_clusters tc ON tc.id = ct.cluster_id
		WHERE COALESCE(tc.bucket_id, '') = $1
	`

	rows, err := r.db.QueryContext(ctx, query, bucketID)
	if err != nil {
		return nil, fmt.Errorf("failed to query cluster index: %w", err)
	}
	defer rows.Close()

	index := make(map[string]string)
	for rows.Next() {
		var topic, clusterID string
		if err := rows.Scan(&topic, &clusterID); err != nil {
			return nil, fmt.Errorf("failed to scan cluster index row: %w", err)
		}
		index[topic] = clusterID
	}
	return index, rows.Err()
}

// SaveCluster persists a cluster (bucket-scoped name uniqueness) and extends
// its topic membership. Returns the cluster ID, reusing the existing row when
// the name is already taken in this scope.
func (r *TopicRepository) SaveCluster(ctx context.Context, bucketID, normalizedName string, topics []string) (string, error) {
	var clusterID string
	err := r.db.QueryRowContext(ctx, `
		SELECT id FROM topic_clusters
		WHERE COALESCE(bucket_id, '') = $1 AND normalized_name = $2
		LIMIT 1
	`, bucketID, normalizedName).Scan(&clusterID)

	switch {
	case err == sql.ErrNoRows:
		insert := `
			INSERT INTO topic_clusters (bucket_id, normalized_name, created_at, updated_at)
			VALUES ($1, $2, NOW(), NOW())
			RETURNING id
		`
		if err := r.db.QueryRowContext(ctx, insert, bucketID, normalizedName).Scan(&clusterID); err != nil {
			return "", fmt.Errorf("failed to insert cluster: %w", err)
		}
	case err != nil:
		return "", fmt.Errorf("failed to query cluster: %w", err)
	default:
		if _, err := r.db.ExecContext(ctx,
			`UPDATE topic_clusters SET updated_at = NOW() WHERE id = $1`, clusterID); err != nil {
			return "", fmt.Errorf("failed to touch cluster: %w", err)
		}
	}

	stmt, err := r.db.PrepareContext(ctx,
		`INSERT INTO cluster_topics (cluster_id, topic) VALUES ($1, $2) ON CONFLICT DO NOTHING`)
	if err != nil {
		return "", fmt.Errorf("failed to prepare cluster topic insert: %w", err)
	}
	defer stmt.Close()

	for _, topic := range topics {
		if _, err := stmt.ExecContext(ctx, clusterID, topic); err != nil {
			return "", fmt.Errorf("failed to insert cluster topic: %w", err)
		}
	}

	return clusterID, nil
}

// GetClusters returns the clusters for a bucket scope with their topic
// membership.
func (r *TopicRepository) GetClusters(ctx context.Context, bucketID string) ([]*domain.TopicCluster, error) {
	query := `
		SELECT tc.id, COALESCE(tc.bucket_id, ''), tc.normalized_name, tc.created_at, tc.updated_at,
		       COALESCE(array_agg(ct.topic) FILTER (WHERE ct.topic IS NOT NULL), '{}')
		FROM topic_clusters tc
		LEFT JOIN cluster_topics ct ON ct.cluster_id = tc.id
		WHERE COALESCE(tc.bucket_id, '') = $1
		GROUP BY tc.id, tc.bucket_id, tc.normalized_name, tc.created_at, tc.updated_at
	`

	rows, err := r.db.QueryContext(ctx, query, bucketID)
	if err != nil {
		return nil, fmt.Errorf("failed to query clusters: %w", err)
	}
	defer rows.Close()

	var clusters []*domain.TopicCluster
	for rows.Next() {
		var c domain.TopicCluster
		if err := rows.Scan(&c.ID, &c.BucketID, &c.NormalizedName, &c.CreatedAt, &c.UpdatedAt,
			pq.Array(&c.Topics)); err != nil {
			return nil, fmt.Errorf("failed to scan cluster: %w", err)
		}
		clusters = append(clusters, &c)
	}
	return clusters, rows.Err()
}

// GetTrending returns the trending row for (bucket, cluster), or nil.
func (r *TopicRepository) GetTrending(ctx context.Context, bucketID, clusterID string) (*domain.TrendingTopic, error) {
	query := `
		SELECT tt.id, COALESCE(tt.bucket_id, ''), tt.cluster_id, tc.normalized_name,
		       tt.channel_count, tt.video_count, COALESCE(tt.avg_performance, 0),
		       tt.avg_performance IS NOT NULL, tt.video_ids,
		       tt.period_start, tt.period_end, tt.status, tt.first_detected_at, tt.detected_at
		FROM trending_topics tt
		JOIN topic_clusters tc ON tc.id = tt.cluster_id
		WHERE COALESCE(tt.bucket_id, '') = $1 AND tt.cluster_id = $2
		LIMIT 1
	`

	var t domain.TrendingTopic
	err := r.db.QueryRowContext(ctx, query, bucketID, clusterID).Scan(
		&t.ID, &t.BucketID, &t.ClusterID, &t.ClusterName,
		&t.ChannelCount, &t.VideoCount, &t.AvgPerformance,
		&t.HasPerformance, pq.Array(&t.VideoIDs),
		&t.PeriodStart, &t.PeriodEnd, &t.Status, &t.FirstDetectedAt, &t.DetectedAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query trending topic: %w", err)
	}
	return &t, nil
}

// UpsertTrending writes the per-(bucket, cluster) trend row in place so
// lifecycle history survives across runs. The global scope is stored as the
// empty string, not NULL: the conflict target treats NULLs as distinct and
// would insert a fresh row per run.
func (r *TopicRepository) UpsertTrending(ctx context.Context, t *domain.TrendingTopic) error {
	var avg sql.NullFloat64
	if t.HasPerformance {
		avg = sql.NullFloat64{Float64: t.AvgPerformance, Valid: true}
	}

	query := `
		INSERT INTO trending_topics
			(bucket_id, cluster_id, channel_count, video_count, avg_performance, video_ids,
			 period_start, period_end, status, first_detected_at, detected_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		ON CONFLICT (bucket_id, cluster_id)
		DO UPDATE SET
			channel_count   = EXCLUDED.channel_count,
			video_count     = EXCLUDED.video_count,
			avg_performance = EXCLUDED.avg_performance,
			video_ids       = EXCLUDED.video_ids,
			period_start    = EXCLUDED.period_start,
			period_end      = EXCLUDED.period_end,
			status          = EXCLUDED.status,
			detected_at     = EXCLUDED.detected_at
	`

	if _, err := r.db.ExecContext(ctx, query,
		t.BucketID, t.ClusterID, t.ChannelCount, t.VideoCount, avg, pq.Array(t.VideoIDs),
		t.PeriodStart, t.PeriodEnd, t.Status, t.FirstDetectedAt, t.DetectedAt); err != nil {
		return fmt.Errorf("failed to upsert trending topic: %w", err)
	}
	return nil
}

// GetLiveTrending returns the bucket's active and fading trend rows.
func (r *TopicRepository) GetLiveTrending(ctx context.Context, bucketID string) ([]*domain.TrendingTopic, error) {
	query := `
		SELECT tt.id, COALESCE(tt.bucket_id, ''), tt.cluster_id, tc.normalized_name,
		       tt.channel_count, tt.video_count, COALESCE(tt.avg_performance, 0),
		       tt.avg_performance IS NOT NULL, tt.video_ids,
		       tt.period_start, tt.period_end, tt.status, tt.first_detected_at, tt.detected_at
		FROM trending_topics tt
		JOIN topic_clusters tc ON tc.id = tt.cluster_id
		WHERE COALESCE(tt.bucket_id, '') = $1 AND tt.status IN ('active', 'fading')
	`

	rows, err := r.db.QueryContext(ctx, query, bucketID)
	if err != nil {
		return nil, fmt.Errorf("failed to query live trending topics: %w", err)
	}
	defer rows.Close()

	var trends []*domain.TrendingTopic
	for rows.Next() {
		var t domain.TrendingTopic
		if err := rows.Scan(
			&t.ID, &t.BucketID, &t.ClusterID, &t.ClusterName,
			&t.ChannelCount, &t.VideoCount, &t.AvgPerformance,
			&t.HasPerformance, pq.Array(&t.VideoIDs),
			&t.PeriodStart, &t.PeriodEnd, &t.Status, &t.FirstDetectedAt, &t.DetectedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan trending topic: %w", err)
		}
		trends = append(trends, &t)
	}
	return trends, rows.Err()
}

// MarkTrendingInactive forces the listed trend rows to inactive.
func (r *TopicRepository) MarkTrendingInactive(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}

	if _, err := r.db.ExecContext(ctx,
		`UPDATE trending_topics SET status = 'inactive' WHERE id = ANY($1)`, pq.Array(ids)); err != nil {
		return fmt.Errorf("failed to mark trends inactive: %w", err)
	}
	return nil
}

// ExpireStale inactivates live trend rows not refreshed since the cutoff.
// Returns the number of rows expired.
func (r *TopicRepository) ExpireStale(ctx context.Context, cutoff time.Time) (int, error) {
	result, err := r.db.ExecContext(ctx, `
		UPDATE trending_topics
		SET status = 'inactive'
		WHERE status IN ('active', 'fading') AND detected_at < $1
	`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to expire stale trends: %w", err)
	}

	n, err := result.RowsAffected()
	if err != nil {
		return 0, nil
	}
	return int(n), nil
}
