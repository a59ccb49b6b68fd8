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

// SubscriptionRepository tracks push-subscription leases per channel so
// renewal can run before the hub drops us.
type SubscriptionRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

func NewSubscriptionRepository(postgres *database.PostgresService, logger *zap.Logger) *SubscriptionRepository {
	return &SubscriptionRepository{
		db:     postgres.GetDB(),
		logger: logger,
	}
}

func (r *SubscriptionRepository) Upsert(ctx context.Context, sub *domain.WebSubSubscription) error {
	query := `
		INSERT INTO websub_subscriptions (channel_id, feed_url, callback_url, subscribed_at, expires_at, is_active)
		VALUES ($1, $2, $3, $4, $5, TRUE)
		ON CONFLICT (channel_id) DO UPDATE SET
			feed_url = EXCLUDED.feed_url,
			callback_url = EXCLUDED.callback_url,
			subscribed_at = EXCLUDED.subscribed_at,
			expires_at = EXCLUDED.expires_at,
			is_active = TRUE
	`

	if _, err := r.db.ExecContext(ctx, query,
		sub.ChannelID, sub.FeedURL, sub.CallbackURL, sub.SubscribedAt, sub.ExpiresAt); err != nil {
		return fmt.Errorf("failed to upsert subscription: %w", err)
	}
	return nil
}

func (r *SubscriptionRepository) Deactivate(ctx context.Context, channelID string) error {
	query := `UPDATE websub_subscriptions SET is_active = FALSE WHERE channel_id = $1`

	if _, err := r.db.ExecContext(ctx, query, channelID); err != nil {
		return fmt.Errorf("failed to deactivate subscription: %w", err)
	}
	return nil
}

// GetExpiring returns active subscriptions whose lease ends before the
// threshold.
func (r *SubscriptionRepository) GetExpiring(ctx context.Context, threshold time.Time) ([]*domain.WebSubSubscription, error) {
	query := `
		SELECT channel_id, feed_url, callback_url, subscribed_at, expires_at, is_active
		FROM websub_subscriptions
		WHERE is_active = TRUE AND expires_at < $1
		ORDER BY expires_at
	`

	rows, err := r.db.QueryContext(ctx, query, threshold)
	if err != nil {
		return nil, fmt.Errorf("failed to query expiring subscriptions: %w", err)
	}
	defer rows.Close()

	var subs []*domain.WebSubSubscription
	for rows.Next() {
		var s domain.WebSubSubscription
		if err := rows.Scan(&s.ChannelID, &s.FeedURL, &s.CallbackURL,
			&s.SubscribedAt, &s.ExpiresAt, &s.IsActive); err != nil {
			return nil, fmt.Errorf("failed to scan subscription: %w", err)
		}
		subs = append(subs, &s)
	}
	return subs, rows.Err()
}
