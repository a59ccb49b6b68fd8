package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/creatrr/competitor-tracker-go/internal/domain"
	"github.com/creatrr/competitor-tracker-go/internal/service/database"
)

// ChannelRepository persists tracked channels.
type ChannelRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

func NewChannelRepository(postgres *database.PostgresService, logger *zap.Logger) *ChannelRepository {
	return &ChannelRepository{
		db:     postgres.GetDB(),
		logger: logger,
	}
}

func (r *ChannelRepository) Create(ctx context.Context, ch *domain.Channel) error {
	query := `
		INSERT INTO channels (channel_id, channel_name, subscriber_count, total_videos, is_active, created_at)
		VALUES ($1, $2, $3, $4, TRUE, NOW())
	`

	if _, err := r.db.ExecContext(ctx, query,
		ch.ChannelID, ch.ChannelName, ch.SubscriberCount, ch.TotalVideos); err != nil {
		return fmt.Errorf("failed to insert channel: %w", err)
	}
	return nil
}

func (r *ChannelRepository) Get(ctx context.Context, channelID string) (*domain.Channel, error) {
	query := `
		SELECT channel_id, channel_name, subscriber_count, total_videos, is_active,
		       created_at, COALESCE(last_checked_at, created_at)
		FROM channels
		WHERE channel_id = $1
		LIMIT 1
	`

	var ch domain.Channel
	err := r.db.QueryRowContext(ctx, query, channelID).Scan(
		&ch.ChannelID, &ch.ChannelName, &ch.SubscriberCount, &ch.TotalVideos,
		&ch.IsActive, &ch.CreatedAt, &ch.LastCheckedAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query channel: %w", err)
	}
	return &ch, nil
}

func (r *ChannelRepository) GetActive(ctx context.Context) ([]*domain.Channel, error) {
	query := `
		SELECT channel_id, channel_name, subscriber_count, total_videos, is_active,
		       created_at, COALESCE(last_checked_at, created_at)
		FROM channels
		WHERE is_active = TRUE
		ORDER BY created_at DESC
	`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query active channels: %w", err)
	}
	defer rows.Close()

	var channels []*domain.Channel
	for rows.Next() {
		var ch domain.Channel
		if err := rows.Scan(
			&ch.ChannelID, &ch.ChannelName, &ch.SubscriberCount, &ch.TotalVideos,
			&ch.IsActive, &ch.CreatedAt, &ch.LastCheckedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan channel: %w", err)
		}
		channels = append(channels, &ch)
	}
	return channels, rows.Err()
}

// UpdateStats refreshes the cached subscriber/video counts and bumps
// last_checked_at.
func (r *ChannelRepository) UpdateStats(ctx context.Context, channelID string, subscribers, totalVideos int64) error {
	query := `
		UPDATE channels
		SET subscriber_count = $2, total_videos = $3, last_checked_at = $4
		WHERE channel_id = $1
	`

	if _, err := r.db.ExecContext(ctx, query, channelID, subscribers, totalVideos, time.Now().UTC()); err != nil {
		return fmt.Errorf("failed to update channel stats: %w", err)
	}
	return nil
}

// Deactivate soft-deletes a channel. Rows are never hard-deleted while videos
// reference them.
func (r *ChannelRepository) Deactivate(ctx context.Context, channelID string) error {
	query := `UPDATE channels SET is_active = FALSE, last_checked_at = $2 WHERE channel_id = $1`

	if _, err := r.db.ExecContext(ctx, query, channelID, time.Now().UTC()); err != nil {
		return fmt.Errorf("failed to deactivate channel: %w", err)
	}
	return nil
}
