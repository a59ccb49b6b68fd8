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

// VideoRepository persists discovered videos.
type VideoRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

func NewVideoRepository(postgres *database.PostgresService, logger *zap.Logger) *VideoRepository {
	return &VideoRepository{
		db:     postgres.GetDB(),
		logger: logger,
	}
}

func (r *VideoRepository) Create(ctx context.Context, v *domain.Video) error {
	query := `
		INSERT INTO videos (video_id, channel_id, title, description, published_at,
		                    duration_seconds, is_short, tracking_status, tracking_until)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`

	if _, err := r.db.ExecContext(ctx, query,
		v.VideoID, v.ChannelID, v.Title, v.Description, v.PublishedAt,
		v.DurationSeconds, v.IsShort, v.TrackingStatus, v.TrackingUntil); err != nil {
		return fmt.Errorf("failed to insert video: %w", err)
	}
	return nil
}

func (r *VideoRepository) Get(ctx context.Context, videoID string) (*domain.Video, error) {
	query := `
		SELECT video_id, channel_id, COALESCE(title, ''), COALESCE(description, ''),
		       published_at, COALESCE(duration_seconds, 0), COALESCE(is_short, FALSE),
		       tracking_status, tracking_until
		FROM videos
		WHERE video_id = $1
		LIMIT 1
	`

	var v domain.Video
	err := r.db.QueryRowContext(ctx, query, videoID).Scan(
		&v.VideoID, &v.ChannelID, &v.Title, &v.Description, &v.PublishedAt,
		&v.DurationSeconds, &v.IsShort, &v.TrackingStatus, &v.TrackingUntil,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query video: %w", err)
	}
	return &v, nil
}

func (r *VideoRepository) Exists(ctx context.Context, videoID string) (bool, error) {
	var one int
	err := r.db.QueryRowContext(ctx,
		`SELECT 1 FROM videos WHERE video_id = $1 LIMIT 1`, videoID).Scan(&one)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to check video existence: %w", err)
	}
	return true, nil
}

func (r *VideoRepository) GetActive(ctx context.Context) ([]*domain.Video, error) {
	return r.queryVideos(ctx, `
		SELECT video_id, channel_id, COALESCE(title, ''), COALESCE(description, ''),
		       published_at, COALESCE(duration_seconds, 0), COALESCE(is_short, FALSE),
		       tracking_status, tracking_until
		FROM videos
		WHERE tracking_status = 'active'
		ORDER BY published_at
	`)
}

// GetPublishedSince returns videos from the given channels published at or
// after the cutoff, regardless of tracking status.
func (r *VideoRepository) GetPublishedSince(ctx context.Context, channelIDs []string, cutoff time.Time) ([]*domain.Video, error) {
	if len(channelIDs) == 0 {
		return nil, nil
	}

	return r.queryVideos(ctx, `
		SELECT video_id, channel_id, COALESCE(title, ''), COALESCE(description, ''),
		       published_at, COALESCE(duration_seconds, 0), COALESCE(is_short, FALSE),
		       tracking_status, tracking_until
		FROM videos
		WHERE channel_id = ANY($1) AND published_at >= $2
		ORDER BY published_at DESC
	`, pq.Array(channelIDs), cutoff)
}

func (r *VideoRepository) queryVideos(ctx context.Context, query string, args ...any) ([]*domain.Video, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query videos: %w", err)
	}
	defer rows.Close()

	var videos []*domain.Video
	for rows.Next() {
		var v domain.Video
		if err := rows.Scan(
			&v.VideoID, &v.ChannelID, &v.Title, &v.Description, &v.PublishedAt,
			&v.DurationSeconds, &v.IsShort, &v.TrackingStatus, &v.TrackingUntil,
		); err != nil {
			return nil, fmt.Errorf("failed to scan video: %w", err)
		}
		videos = append(videos, &v)
	}
	return videos, rows.Err()
}

func (r *VideoRepository) MarkCompleted(ctx context.Context, videoID string) error {
	return r.setStatus(ctx, videoID, domain.TrackingCompleted)
}

func (r *VideoRepository) MarkDeleted(ctx context.Context, videoID string) error {
	return r.setStatus(ctx, videoID, domain.TrackingDeleted)
}

func (r *VideoRepository) setStatus(ctx context.Context, videoID string, status domain.TrackingStatus) error {
	query := `UPDATE videos SET tracking_status = $2 WHERE video_id = $1`

	if _, err := r.db.ExecContext(ctx, query, videoID, status); err != nil {
		return fmt.Errorf("failed to update tracking status: %w", err)
	}
	return nil
}

// ScheduleGap is an active video whose schedule-entry set is incomplete,
// together with the window labels that do exist. Used by the reconciliation
// pass to backfill entries lost to a partial bulk insert.
type ScheduleGap struct {
	VideoID         string
	PublishedAt     time.Time
	ExistingWindows []string
}

func (r *VideoRepository) GetScheduleGaps(ctx context.Context, expectedWindows int) ([]*ScheduleGap, error) {
	query := `
		SELECT v.video_id, v.published_at,
		       COALESCE(array_agg(ss.window_type) FILTER (WHERE ss.window_type IS NOT NULL), '{}')
		FROM videos v
		LEFT JOIN scheduled_snapshots ss ON ss.video_id = v.video_id
		WHERE v.tracking_status = 'active'
		GROUP BY v.video_id, v.published_at
		HAVING COUNT(ss.id) < $1
	`

	rows, err := r.db.QueryContext(ctx, query, expectedWindows)
	if err != nil {
		return nil, fmt.Errorf("failed to query schedule gaps: %w", err)
	}
	defer rows.Close()

	var gaps []*ScheduleGap
	for rows.Next() {
		var g ScheduleGap
		if err := rows.Scan(&g.VideoID, &g.PublishedAt, pq.Array(&g.ExistingWindows)); err != nil {
			return nil, fmt.Errorf("failed to scan schedule gap: %w", err)
		}
		gaps = append(gaps, &g)
	}
	return gaps, rows.Err()
}
