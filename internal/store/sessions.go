package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/pbelov/snowview/internal/web/models"
)

type SessionRepository struct {
	db *sql.DB
}

func NewSessionRepository(db *DB) *SessionRepository {
	return &SessionRepository{db: db.DB}
}

func (r *SessionRepository) Create(ctx context.Context, userID, email string, ttl time.Duration) (*models.Session, error) {
	s := &models.Session{
		ID:        uuid.New().String(),
		UserID:    userID,
		Email:     email,
		ExpiresAt: time.Now().Add(ttl),
		CreatedAt: time.Now(),
	}

	_, err := r.db.ExecContext(ctx, `
		INSERT INTO sessions (id, user_id, email, expires_at, created_at)
		VALUES (?, ?, ?, ?, ?)`,
		s.ID, s.UserID, s.Email, s.ExpiresAt, s.CreatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create session: %w", err)
	}
	return s, nil
}

// Get returns the session if it exists and has not expired, else (nil, nil).
func (r *SessionRepository) Get(ctx context.Context, id string) (*models.Session, error) {
	s := &models.Session{}
	err := r.db.QueryRowContext(ctx, `
		SELECT id, user_id, email, expires_at, created_at
		FROM sessions WHERE id = ?`, id,
	).Scan(&s.ID, &s.UserID, &s.Email, &s.ExpiresAt, &s.CreatedAt)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if time.Now().After(s.ExpiresAt) {
		return nil, nil
	}
	return s, nil
}

func (r *SessionRepository) Delete(ctx context.Context, id string) error {
	_, err := r.db.ExecContext(ctx, "DELETE FROM sessions WHERE id = ?", id)
	return err
}

// DeleteExpired removes expired sessions and returns their ids so callers
// can drop any per-session state held elsewhere.
func (r *SessionRepository) DeleteExpired(ctx context.Context) ([]string, error) {
	rows, err := r.db.QueryContext(ctx,
		"SELECT id FROM sessions WHERE expires_at <= ?", time.Now())
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	if len(ids) > 0 {
		if _, err := r.db.ExecContext(ctx,
			"DELETE FROM sessions WHERE expires_at <= ?", time.Now()); err != nil {
			return nil, err
		}
	}
	return ids, nil
}
