package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/pbelov/snowview/internal/web/models"
)

type ViewRepository struct {
	db *sql.DB
}

func NewViewRepository(db *DB) *ViewRepository {
	return &ViewRepository{db: db.DB}
}

func (r *ViewRepository) Create(ctx context.Context, name, address string) (*models.View, error) {
	v := &models.View{
		ID:        uuid.New().String(),
		Name:      name,
		Address:   address,
		CreatedAt: time.Now(),
	}

	_, err := r.db.ExecContext(ctx, `
		INSERT INTO views (id, name, address, created_at) VALUES (?, ?, ?, ?)`,
		v.ID, v.Name, v.Address, v.CreatedAt,
	)
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint") {
			return nil, fmt.Errorf("view %q already exists", name)
		}
		return nil, fmt.Errorf("failed to create view: %w", err)
	}
	return v, nil
}

func (r *ViewRepository) GetByName(ctx context.Context, name string) (*models.View, error) {
	v := &models.View{}
	err := r.db.QueryRowContext(ctx,
		"SELECT id, name, address, created_at FROM views WHERE name = ?", name,
	).Scan(&v.ID, &v.Name, &v.Address, &v.CreatedAt)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return v, nil
}

func (r *ViewRepository) List(ctx context.Context) ([]models.View, error) {
	rows, err := r.db.QueryContext(ctx,
		"SELECT id, name, address, created_at FROM views ORDER BY name")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanViews(rows)
}

func (r *ViewRepository) Delete(ctx context.Context, name string) error {
	result, err := r.db.ExecContext(ctx, "DELETE FROM views WHERE name = ?", name)
	if err != nil {
		return err
	}
	affected, _ := result.RowsAffected()
	if affected == 0 {
		return fmt.Errorf("view %q not found", name)
	}
	return nil
}

// Grant permits a user to query a view. Granting twice is a no-op.
func (r *ViewRepository) Grant(ctx context.Context, userID, viewID string) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT OR IGNORE INTO view_grants (user_id, view_id) VALUES (?, ?)`,
		userID, viewID,
	)
	if err != nil {
		return fmt.Errorf("failed to grant view: %w", err)
	}
	return nil
}

func (r *ViewRepository) Revoke(ctx context.Context, userID, viewID string) error {
	result, err := r.db.ExecContext(ctx,
		"DELETE FROM view_grants WHERE user_id = ? AND view_id = ?", userID, viewID)
	if err != nil {
		return fmt.Errorf("failed to revoke view: %w", err)
	}
	affected, _ := result.RowsAffected()
	if affected == 0 {
		return fmt.Errorf("no such grant")
	}
	return nil
}

// ForUser returns the views the user may query, resolved through the
// users -> view_grants -> views join on the lower-cased email. A user
// with no grants gets an empty slice, not an error.
func (r *ViewRepository) ForUser(ctx context.Context, email string) ([]models.View, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT v.id, v.name, v.address, v.created_at
		FROM users u
		JOIN view_grants g ON g.user_id = u.id
		JOIN views v ON v.id = g.view_id
		WHERE lower(u.email) = ?
		ORDER BY v.name`, strings.ToLower(email))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanViews(rows)
}

func scanViews(rows *sql.Rows) ([]models.View, error) {
	views := []models.View{}
	for rows.Next() {
		var v models.View
		if err := rows.Scan(&v.ID, &v.Name, &v.Address, &v.CreatedAt); err != nil {
			return nil, err
		}
		views = append(views, v)
	}
	return views, rows.Err()
}
