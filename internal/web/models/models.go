package models

import "time"

// User is a dashboard account. Accounts are administered through the CLI
// (or the static config file), never through the web surface itself.
type User struct {
	ID           string    `json:"id"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"`
	Name         string    `json:"name"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// View is a named, permissioned pointer to a queryable warehouse object.
// Address is the schema-qualified object name without the database prefix.
type View struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Address   string    `json:"address"`
	CreatedAt time.Time `json:"created_at"`
}

// Session is the explicit per-user context resolved by the auth
// middleware on every request.
type Session struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id"`
	Email     string    `json:"email"`
	ExpiresAt time.Time `json:"expires_at"`
	CreatedAt time.Time `json:"created_at"`
}

// AuditRecord captures one successful report query.
type AuditRecord struct {
	ID         int64         `json:"id"`
	UserID     string        `json:"user_id"`
	ViewID     string        `json:"view_id"`
	RangeStart time.Time     `json:"range_start"`
	RangeEnd   time.Time     `json:"range_end"`
	RowCount   int           `json:"row_count"`
	Duration   time.Duration `json:"duration"`
	CreatedAt  time.Time     `json:"created_at"`
}
