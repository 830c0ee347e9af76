// Package auth validates login credentials. Two mutually exclusive
// strategies exist per deployment: static (users in the config file) and
// database (users table in the metadata store).
package auth

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"golang.org/x/crypto/bcrypt"

	"github.com/pbelov/snowview/internal/config"
	"github.com/pbelov/snowview/internal/store"
	"github.com/pbelov/snowview/internal/web/models"
)

// ErrInvalidCredentials is the only failure callers may show to the
// user. Unknown user, wrong password and lookup errors all collapse into
// it; the distinction goes to the log.
var ErrInvalidCredentials = errors.New("invalid email or password")

type Authenticator interface {
	Authenticate(ctx context.Context, email, password string) (*models.User, error)
}

// Static authenticates against the users mapping from the config file.
type Static struct {
	users  map[string]config.StaticUser
	logger *slog.Logger
}

func NewStatic(cfg config.AuthConfig, logger *slog.Logger) *Static {
	return &Static{users: cfg.Users, logger: logger}
}

func (a *Static) Authenticate(ctx context.Context, email, password string) (*models.User, error) {
	email = strings.ToLower(email)

	u, ok := a.users[email]
	if !ok {
		a.logger.Debug("login for unknown user", "email", email)
		return nil, ErrInvalidCredentials
	}

	if u.PasswordHash != "" {
		if err := bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password)); err != nil {
			return nil, ErrInvalidCredentials
		}
	} else if !strings.EqualFold(u.Password, password) {
		// Legacy plaintext entries compare case-insensitively.
		return nil, ErrInvalidCredentials
	}

	// Static deployments have no user table; the email doubles as the id.
	return &models.User{ID: email, Email: email}, nil
}

// Database authenticates against the users table. Passwords are bcrypt
// hashes, so the comparison is case-sensitive.
type Database struct {
	users  *store.UserRepository
	logger *slog.Logger
}

func NewDatabase(users *store.UserRepository, logger *slog.Logger) *Database {
	return &Database{users: users, logger: logger}
}

func (a *Database) Authenticate(ctx context.Context, email, password string) (*models.User, error) {
	email = strings.ToLower(email)

	u, err := a.users.GetByEmail(ctx, email)
	if err != nil {
		a.logger.Error("user lookup failed", "email", email, "error", err)
		return nil, ErrInvalidCredentials
	}
	if u == nil {
		a.logger.Debug("login for unknown user", "email", email)
		return nil, ErrInvalidCredentials
	}

	if err := bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password)); err != nil {
		return nil, ErrInvalidCredentials
	}

	return u, nil
}
