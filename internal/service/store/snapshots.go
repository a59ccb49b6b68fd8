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

// SnapshotRepository persists immutable metric snapshots and the mutable
// schedule entries that drive their capture.
type SnapshotRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

func NewSnapshotRepository(postgres *database.PostgresService, logger *zap.Logger) *SnapshotRepository {
	return &SnapshotRepository{
		db:     postgres.GetDB(),
		logger: logger,
	}
}

func (r *SnapshotRepository) Add(ctx context.Context, videoID string, window domain.WindowType, m domain.VideoMetrics) error {
	query := `
		INSERT INTO snapshots (video_id, window_type, views, likes, comments, captured_at)
		VALUES ($1, $2, $3, $4, $5, NOW())
	`

	if _, err := r.db.ExecContext(ctx, query, videoID, window, m.Views, m.Likes, m.Comments); err != nil {
		return fmt.Errorf("failed to insert snapshot: %w", err)
	}
	return nil
}

// GetByWindow returns the snapshot at a window for a video. When duplicates
// exist the latest captured_at wins.
func (r *SnapshotRepository) GetByWindow(ctx context.Context, videoID string, window domain.WindowType) (*domain.Snapshot, error) {
	query := `
		SELECT id, video_id, window_type, views, likes, comments, captured_at
		FROM snapshots
		WHERE video_id = $1 AND window_type = $2
		ORDER BY captured_at DESC
		LIMIT 1
	`

	var s domain.Snapshot
	err := r.db.QueryRowContext(ctx, query, videoID, window).Scan(
		&s.ID, &s.VideoID, &s.WindowType, &s.Views, &s.Likes, &s.Comments, &s.CapturedAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query snapshot: %w", err)
	}
	return &s, nil
}

// GetLatestAtWindow returns each listed video's snapshot at a window, one per
// video, latest captured_at winning.
func (r *SnapshotRepository) GetLatestAtWindow(ctx context.Context, videoIDs []string, window domain.WindowType) (map[string]*domain.Snapshot, error) {
	if len(videoIDs) == 0 {
		return map[string]*domain.Snapshot{}, nil
	}

	query := `
		SELECT DISTINCT ON (video_id)
		       id, video_id, window_type, views, likes, comments, captured_at
		FROM snapshots
		WHERE video_id = ANY($1) AND window_type = $2
		ORDER BY video_id, captured_at DESC
	`

	rows, err := r.db.QueryContext(ctx, query, pq.Array(videoIDs), window)
	if err != nil {
		return nil, fmt.Errorf("failed to query window snapshots: %w", err)
	}
	defer rows.Close()

	result := make(map[string]*domain.Snapshot)
	for rows.Next() {
		var s domain.Snapshot
		if err := rows.Scan(&s.ID, &s.VideoID, &s.WindowType, &s.Views, &s.Likes, &s.Comments, &s.CapturedAt); err != nil {
			return nil, fmt.Errorf("failed to scan snapshot: %w", err)
		}
		result[s.VideoID] = &s
	}
	return result, rows.Err()
}

// GetForBaseline returns the most recent snapshots (one per video, latest
// capture winning) at a window across a channel's videos of one content type.
// Tracking completion is not required; any recorded snapshot counts.
func (r *SnapshotRepository) GetForBaseline(ctx context.Context, channelID string, isShort bool, window domain.WindowType, limit int) ([]*domain.Snapshot, error) {
	query := `
		SELECT id, video_id, window_type, views, likes, comments, captured_at
		FROM (
			SELECT DISTINCT ON (s.video_id)
			       s.id, s.video_id, s.window_type, s.views, s.likes, s.comments, s.captured_at
			FROM snapshots s
			JOIN videos v ON v.video_id = s.video_id
			WHERE v.channel_id = $1 AND COALESCE(v.is_short, FALSE) = $2 AND s.window_type = $3
			ORDER BY s.video_id, s.captured_at DESC
		) latest
		ORDER BY captured_at DESC
		LIMIT $4
	`

	rows, err := r.db.QueryContext(ctx, query, channelID, isShort, window, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query baseline snapshots: %w", err)
	}
	defer rows.Close()

	var snapshots []*domain.Snapshot
	for rows.Next() {
		var s domain.Snapshot
		if err := rows.Scan(&s.ID, &s.VideoID, &s.WindowType, &s.Views, &s.Likes, &s.Comments, &s.CapturedAt); err != nil {
			return nil, fmt.Errorf("failed to scan snapshot: %w", err)
		}
		snapshots = append(snapshots, &s)
	}
	return snapshots, rows.Err()
}

// GetCoverage reports how many of the expected windows a video has snapshots
// for.
func (r *SnapshotRepository) GetCoverage(ctx context.Context, videoID string) (*domain.SnapshotCoverage, error) {
	var actual int
	err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(DISTINCT window_type) FROM snapshots WHERE video_id = $1`, videoID).Scan(&actual)
	if err != nil {
		return nil, fmt.Errorf("failed to query snapshot coverage: %w", err)
	}

	expected := len(domain.AllWindows())
	cov := &domain.SnapshotCoverage{
		VideoID:  videoID,
		Actual:   actual,
		Expected: expected,
	}
	if expected > 0 {
		cov.Coverage = float64(actual) / float64(expected)
	}
	return cov, nil
}

// CreateScheduled bulk-inserts pending schedule entries.
func (r *SnapshotRepository) CreateScheduled(ctx context.Context, entries []*domain.ScheduledSnapshot) error {
	if len(entries) == 0 {
		return nil
	}

	query := `
		INSERT INTO scheduled_snapshots (video_id, window_type, scheduled_for, status, attempts)
		VALUES ($1, $2, $3, $4, 0)
	`

	stmt, err := r.db.PrepareContext(ctx, query)
	if err != nil {
		return fmt.Errorf("failed to prepare schedule insert: %w", err)
	}
	defer stmt.Close()

	for _, e := range entries {
		if _, err := stmt.ExecContext(ctx, e.VideoID, e.WindowType, e.ScheduledFor, e.Status); err != nil {
			return fmt.Errorf("failed to insert schedule entry %s/%s: %w", e.VideoID, e.WindowType, err)
		}
	}
	return nil
}

// GetPendingDue returns pending entries whose scheduled_for has passed, in
// ascending scheduled_for order, capped at limit.
func (r *SnapshotRepository) GetPendingDue(ctx context.Context, now time.Time, limit int) ([]*domain.ScheduledSnapshot, error) {
	query := `
		SELECT id, video_id, window_type, scheduled_for, status, attempts, COALESCE(last_error, '')
		FROM scheduled_snapshots
		WHERE status = 'pending' AND scheduled_for <= $1
		ORDER BY scheduled_for
		LIMIT $2
	`

	rows, err := r.db.QueryContext(ctx, query, now, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query due schedule entries: %w", err)
	}
	defer rows.Close()

	var entries []*domain.ScheduledSnapshot
	for rows.Next() {
		var e domain.ScheduledSnapshot
		if err := rows.Scan(&e.ID, &e.VideoID, &e.WindowType, &e.ScheduledFor, &e.Status, &e.Attempts, &e.LastError); err != nil {
			return nil, fmt.Errorf("failed to scan schedule entry: %w", err)
		}
		entries = append(entries, &e)
	}
	return entries, rows.Err()
}

func (r *SnapshotRepository) MarkScheduledCompleted(ctx context.Context, scheduledID int64) error {
	query := `
		UPDATE scheduled_snapshots
		SET status = 'completed', completed_at = NOW()
		WHERE id = $1
	`

	if _, err := r.db.ExecContext(ctx, query, scheduledID); err != nil {
		return fmt.Errorf("failed to mark schedule entry completed: %w", err)
	}
	return nil
}

// MarkScheduledFailed records a failed attempt. The increment and the
// retry-or-terminal decision happen in one statement so the attempt count
// cannot drift under a crash between read and write. Returns the resulting
// status.
func (r *SnapshotRepository) MarkScheduledFailed(ctx context.Context, scheduledID int64, reason string, maxAttempts int) (domain.ScheduleStatus, error) {
	query := `
		UPDATE scheduled_snapshots
		SET attempts = attempts + 1,
		    last_error = $2,
		    status = CASE WHEN attempts + 1 >= $3 THEN 'failed' ELSE 'pending' END
		WHERE id = $1
		RETURNING status
	`

	var status domain.ScheduleStatus
	if err := r.db.QueryRowContext(ctx, query, scheduledID, reason, maxAttempts).Scan(&status); err != nil {
		return "", fmt.Errorf("failed to mark schedule entry failed: %w", err)
	}
	return status, nil
}
