package store

import (
	"context"
	"database/sql"
	"fmt"

	"go.uber.org/zap"

	"github.com/creatrr/competitor-tracker-go/internal/domain"
	"github.com/creatrr/competitor-tracker-go/internal/service/database"
)

// BucketRepository persists channel groupings used to scope trend detection.
type BucketRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

func NewBucketRepository(postgres *database.PostgresService, logger *zap.Logger) *BucketRepository {
	return &BucketRepository{
		db:     postgres.GetDB(),
		logger: logger,
	}
}

func (r *BucketRepository) Create(ctx context.Context, name string) (*domain.Bucket, error) {
	var b domain.Bucket
	err := r.db.QueryRowContext(ctx, `
		INSERT INTO buckets (name, created_at) VALUES ($1, NOW())
		RETURNING id, name, created_at
	`, name).Scan(&b.ID, &b.Name, &b.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to insert bucket: %w", err)
	}
	return &b, nil
}

func (r *BucketRepository) GetAll(ctx context.Context) ([]*domain.Bucket, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, name, created_at FROM buckets ORDER BY created_at`)
	if err != nil {
		return nil, fmt.Errorf("failed to query buckets: %w", err)
	}
	defer rows.Close()

	var buckets []*domain.Bucket
	for rows.Next() {
		var b domain.Bucket
		if err := rows.Scan(&b.ID, &b.Name, &b.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan bucket: %w", err)
		}
		buckets = append(buckets, &b)
	}
	return buckets, rows.Err()
}

// GetChannelIDs returns the member channel IDs of a bucket.
func (r *BucketRepository) GetChannelIDs(ctx context.Context, bucketID string) ([]string, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT channel_id FROM bucket_channels WHERE bucket_id = $1 ORDER BY channel_id`, bucketID)
	if err != nil {
		return nil, fmt.Errorf("failed to query bucket channels: %w", err)
	}
	defer rows.Close()

	var channelIDs []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan bucket channel: %w", err)
		}
		channelIDs = append(channelIDs, id)
	}
	return channelIDs, rows.Err()
}

// AddChannel adds a channel to a bucket; channels may belong to any number of
// buckets.
func (r *BucketRepository) AddChannel(ctx context.Context, bucketID, channelID string) error {
	query := `
		INSERT INTO bucket_channels (bucket_id, channel_id)
		VALUES ($1, $2)
		ON CONFLICT DO NOTHING
	`

	if _, err := r.db.ExecContext(ctx, query, bucketID, channelID); err != nil {
		return fmt.Errorf("failed to add channel to bucket: %w", err)
	}
	return nil
}

func (r *BucketRepository) RemoveChannel(ctx context.Context, bucketID, channelID string) error {
	if _, err := r.db.ExecContext(ctx,
		`DELETE FROM bucket_channels WHERE bucket_id = $1 AND channel_id = $2`,
		bucketID, channelID); err != nil {
		return fmt.Errorf("failed to remove channel from bucket: %w", err)
	}
	return nil
}
