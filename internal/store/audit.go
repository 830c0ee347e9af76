package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/pbelov/snowview/internal/web/models"
)

// AuditRepository appends to the append-only query log. Writes are
// best-effort from the caller's point of view: a failed insert must never
// invalidate an already-materialized query result.
type AuditRepository struct {
	db *sql.DB
}

func NewAuditRepository(db *DB) *AuditRepository {
	return &AuditRepository{db: db.DB}
}

func (r *AuditRepository) Record(ctx context.Context, rec *models.AuditRecord) error {
	rec.CreatedAt = time.Now()
	result, err := r.db.ExecContext(ctx, `
		INSERT INTO query_log (user_id, view_id, range_start, range_end, row_count, duration_ms, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		rec.UserID, rec.ViewID,
		rec.RangeStart.Format("2006-01-02"), rec.RangeEnd.Format("2006-01-02"),
		rec.RowCount, rec.Duration.Milliseconds(), rec.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to record query: %w", err)
	}
	rec.ID, _ = result.LastInsertId()
	return nil
}

// Recent returns the newest log entries, newest first.
func (r *AuditRepository) Recent(ctx context.Context, limit int) ([]models.AuditRecord, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, user_id, view_id, range_start, range_end, row_count, duration_ms, created_at
		FROM query_log ORDER BY created_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	records := []models.AuditRecord{}
	for rows.Next() {
		var rec models.AuditRecord
		var start, end string
		var durationMs int64
		if err := rows.Scan(&rec.ID, &rec.UserID, &rec.ViewID, &start, &end,
			&rec.RowCount, &durationMs, &rec.CreatedAt); err != nil {
			return nil, err
		}
		rec.RangeStart, _ = time.Parse("2006-01-02", start)
		rec.RangeEnd, _ = time.Parse("2006-01-02", end)
		rec.Duration = time.Duration(durationMs) * time.Millisecond
		records = append(records, rec)
	}
	return records, rows.Err()
}

// Prune deletes log entries older than the cutoff and reports how many
// were removed.
func (r *AuditRepository) Prune(ctx context.Context, cutoff time.Time) (int64, error) {
	result, err := r.db.ExecContext(ctx,
		"DELETE FROM query_log WHERE created_at < ?", cutoff)
	if err != nil {
		return 0, err
	}
	deleted, _ := result.RowsAffected()
	return deleted, nil
}
