// Package registry resolves which warehouse views a user may query.
package registry

import (
	"context"
	"log/slog"
	"strings"

	"github.com/pbelov/snowview/internal/config"
	"github.com/pbelov/snowview/internal/store"
	"github.com/pbelov/snowview/internal/web/models"
)

// Resolver maps an authenticated user to their permitted views. An empty
// slice means "nothing selectable" and is not an error; the dashboard
// renders it as an empty list.
type Resolver interface {
	UserViews(ctx context.Context, user *models.User) ([]models.View, error)
}

// Static resolves views from the config file: the user's view-name list
// looked up against the global views mapping.
type Static struct {
	users  map[string]config.StaticUser
	views  map[string]config.StaticView
	logger *slog.Logger
}

func NewStatic(cfg *config.Config, logger *slog.Logger) *Static {
	return &Static{users: cfg.Auth.Users, views: cfg.Views, logger: logger}
}

func (r *Static) UserViews(ctx context.Context, user *models.User) ([]models.View, error) {
	entry, ok := r.users[strings.ToLower(user.Email)]
	if !ok {
		return []models.View{}, nil
	}

	views := []models.View{}
	for _, name := range entry.Views {
		v, ok := r.views[name]
		if !ok {
			r.logger.Warn("user references unknown view", "email", user.Email, "view", name)
			continue
		}
		views = append(views, models.View{ID: name, Name: name, Address: v.Address})
	}
	return views, nil
}

// Database resolves views through the users -> view_grants -> views join.
// A failed query is logged and yields an empty list rather than an error,
// so a registry problem degrades to "no views available".
type Database struct {
	views  *store.ViewRepository
	logger *slog.Logger
}

func NewDatabase(views *store.ViewRepository, logger *slog.Logger) *Database {
	return &Database{views: views, logger: logger}
}

func (r *Database) UserViews(ctx context.Context, user *models.User) ([]models.View, error) {
	views, err := r.views.ForUser(ctx, user.Email)
	if err != nil {
		r.logger.Error("view lookup failed", "email", user.Email, "error", err)
		return []models.View{}, nil
	}
	return views, nil
}
