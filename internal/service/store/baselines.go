package store

import (
	"context"
	"database/sql"
	"fmt"

	"go.uber.org/zap"

	"github.com/creatrr/competitor-tracker-go/internal/domain"
	"github.com/creatrr/competitor-tracker-go/internal/service/database"
)

// BaselineRepository persists derived channel baselines.
type BaselineRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

func NewBaselineRepository(postgres *database.PostgresService, logger *zap.Logger) *BaselineRepository {
	return &BaselineRepository{
		db:     postgres.GetDB(),
		logger: logger,
	}
}

// Upsert creates the baseline row or overwrites all derived fields. Keyed by
// (channel_id, is_short, window_type).
func (r *BaselineRepository) Upsert(ctx context.Context, b *domain.ChannelBaseline) error {
	query := `
		INSERT INTO channel_baselines
			(channel_id, is_short, window_type, median_views, median_likes, median_comments, sample_size, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (channel_id, is_short, window_type)
		DO UPDATE SET
			median_views    = EXCLUDED.median_views,
			median_likes    = EXCLUDED.median_likes,
			median_comments = EXCLUDED.median_comments,
			sample_size     = EXCLUDED.sample_size,
			updated_at      = EXCLUDED.updated_at
	`

	if _, err := r.db.ExecContext(ctx, query,
		b.ChannelID, b.IsShort, b.WindowType,
		b.MedianViews, b.MedianLikes, b.MedianComments,
		b.SampleSize, b.UpdatedAt); err != nil {
		return fmt.Errorf("failed to upsert baseline: %w", err)
	}
	return nil
}

func (r *BaselineRepository) Get(ctx context.Context, channelID string, isShort bool, window domain.WindowType) (*domain.ChannelBaseline, error) {
	query := `
		SELECT channel_id, is_short, window_type, median_views, median_likes,
		       median_comments, sample_size, updated_at
		FROM channel_baselines
		WHERE channel_id = $1 AND is_short = $2 AND window_type = $3
		LIMIT 1
	`

	var b domain.ChannelBaseline
	err := r.db.QueryRowContext(ctx, query, channelID, isShort, window).Scan(
		&b.ChannelID, &b.IsShort, &b.WindowType, &b.MedianViews, &b.MedianLikes,
		&b.MedianComments, &b.SampleSize, &b.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query baseline: %w", err)
	}
	return &b, nil
}

// GetAllForChannel returns every stored baseline for a channel.
func (r *BaselineRepository) GetAllForChannel(ctx context.Context, channelID string) ([]*domain.ChannelBaseline, error) {
	query := `
		SELECT channel_id, is_short, window_type, median_views, median_likes,
		       median_comments, sample_size, updated_at
		FROM channel_baselines
		WHERE channel_id = $1
		ORDER BY is_short, window_type
	`

	rows, err := r.db.QueryContext(ctx, query, channelID)
	if err != nil {
		return nil, fmt.Errorf("failed to query channel baselines: %w", err)
	}
	defer rows.Close()

	var baselines []*domain.ChannelBaseline
	for rows.Next() {
		var b domain.ChannelBaseline
		if err := rows.Scan(
			&b.ChannelID, &b.IsShort, &b.WindowType, &b.MedianViews, &b.MedianLikes,
			&b.MedianComments, &b.SampleSize, &b.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan baseline: %w", err)
		}
		baselines = append(baselines, &b)
	}
	return baselines, rows.Err()
}
