package middleware

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/pbelov/snowview/internal/store"
)

var testLogger = slog.New(slog.NewTextHandler(io.Discard, nil))

func setupSessions(t *testing.T) *store.SessionRepository {
	t.Helper()
	db, err := store.New(":memory:")
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	if err := db.Migrate(); err != nil {
		t.Fatalf("failed to migrate: %v", err)
	}
	return store.NewSessionRepository(db)
}

func TestAuthRedirectsWithoutCookie(t *testing.T) {
	sessions := setupSessions(t)

	handler := Auth(sessions, testLogger)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("handler should not be reached")
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusSeeOther {
		t.Errorf("expected 303, got %d", rec.Code)
	}
	if loc := rec.Header().Get("Location"); loc != "/auth/login" {
		t.Errorf("expected redirect to /auth/login, got %q", loc)
	}
}

func TestAuthRejectsExpiredSession(t *testing.T) {
	sessions := setupSessions(t)

	sess, err := sessions.Create(context.Background(), "u1", "user@example.com", -time.Minute)
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	handler := Auth(sessions, testLogger)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("handler should not be reached")
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(&http.Cookie{Name: "session", Value: sess.ID})
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusSeeOther {
		t.Errorf("expected 303, got %d", rec.Code)
	}
}

func TestAuthPutsSessionOnContext(t *testing.T) {
	sessions := setupSessions(t)

	sess, err := sessions.Create(context.Background(), "u1", "user@example.com", time.Hour)
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	var seen bool
	handler := Auth(sessions, testLogger)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = true
		got := GetSession(r)
		if got == nil {
			t.Fatal("expected session on context")
		}
		if got.ID != sess.ID || got.Email != "user@example.com" {
			t.Errorf("unexpected session: %+v", got)
		}
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(&http.Cookie{Name: "session", Value: sess.ID})
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if !seen {
		t.Fatal("handler was not reached")
	}
	if rec.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", rec.Code)
	}
}
