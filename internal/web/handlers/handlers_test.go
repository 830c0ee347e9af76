package handlers

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/pbelov/snowview/internal/auth"
	"github.com/pbelov/snowview/internal/config"
	"github.com/pbelov/snowview/internal/dateutil"
	"github.com/pbelov/snowview/internal/metrics"
	"github.com/pbelov/snowview/internal/registry"
	"github.com/pbelov/snowview/internal/store"
	"github.com/pbelov/snowview/internal/warehouse"
	"github.com/pbelov/snowview/internal/web/middleware"
	"github.com/pbelov/snowview/internal/web/models"
	"github.com/pbelov/snowview/internal/web/session"
	"github.com/pbelov/snowview/internal/web/views"
)

var testLogger = slog.New(slog.NewTextHandler(io.Discard, nil))

// fakeRunner returns a canned result or error without a warehouse.
type fakeRunner struct {
	result *warehouse.Result
	err    error
	calls  int
}

func (f *fakeRunner) Run(ctx context.Context, view models.View, dr dateutil.DateRange) (*warehouse.Result, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	r := *f.result
	r.View = view
	r.Range = dr
	return &r, nil
}

type fixture struct {
	h        *Handlers
	db       *store.DB
	sessions *store.SessionRepository
	cache    *session.ResultCache
	runner   *fakeRunner
}

func testConfig() *config.Config {
	return &config.Config{
		Auth: config.AuthConfig{
			Mode:       config.AuthModeStatic,
			SessionTTL: time.Hour,
			Users: map[string]config.StaticUser{
				"analyst@example.com": {
					Password: "secret",
					Views:    []string{"Campaign Delivery"},
				},
			},
		},
		Views: map[string]config.StaticView{
			"Campaign Delivery": {Address: "REPORTING.CAMPAIGN_DELIVERY_V"},
			"Campaign Spend":    {Address: "REPORTING.CAMPAIGN_SPEND_V"},
		},
		Reporting: config.ReportingConfig{
			FloorDate:     "2019-01-01",
			PreviewRows:   100,
			ExcelRowLimit: 100000,
		},
	}
}

func setup(t *testing.T) *fixture {
	t.Helper()

	cfg := testConfig()

	db, err := store.New(":memory:")
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	if err := db.Migrate(); err != nil {
		t.Fatalf("failed to migrate: %v", err)
	}

	engine, err := views.New()
	if err != nil {
		t.Fatalf("failed to build views: %v", err)
	}

	sessions := store.NewSessionRepository(db)
	cache := session.NewResultCache()
	runner := &fakeRunner{result: &warehouse.Result{
		Columns:  []string{"AD_DATE", "IMPRESSIONS"},
		Rows:     [][]string{{"01.05.2024", "1200"}},
		Duration: 120 * time.Millisecond,
	}}

	h := New(
		cfg,
		testLogger,
		engine,
		auth.NewStatic(cfg.Auth, testLogger),
		registry.NewStatic(cfg, testLogger),
		runner,
		sessions,
		nil, // audit disabled (static mode)
		cache,
		metrics.New(),
	)

	return &fixture{h: h, db: db, sessions: sessions, cache: cache, runner: runner}
}

// login creates a session directly and returns its cookie.
func (f *fixture) login(t *testing.T) (*models.Session, *http.Cookie) {
	t.Helper()
	sess, err := f.sessions.Create(context.Background(), "analyst@example.com", "analyst@example.com", time.Hour)
	if err != nil {
		t.Fatalf("failed to create session: %v", err)
	}
	return sess, &http.Cookie{Name: "session", Value: sess.ID}
}

// protected wraps a handler the way the server does.
func (f *fixture) protected(h http.HandlerFunc) http.Handler {
	return middleware.Auth(f.sessions, testLogger)(h)
}

func postForm(target string, form url.Values) *http.Request {
	req := httptest.NewRequest(http.MethodPost, target, strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return req
}

func TestLoginSuccess(t *testing.T) {
	f := setup(t)

	req := postForm("/auth/login", url.Values{
		"email":    {"Analyst@Example.com"},
		"password": {"secret"},
	})
	rec := httptest.NewRecorder()
	f.h.Login(rec, req)

	if rec.Code != http.StatusSeeOther {
		t.Fatalf("expected 303, got %d", rec.Code)
	}
	if loc := rec.Header().Get("Location"); loc != "/" {
		t.Errorf("expected redirect to /, got %q", loc)
	}

	var cookie *http.Cookie
	for _, c := range rec.Result().Cookies() {
		if c.Name == "session" {
			cookie = c
		}
	}
	if cookie == nil || cookie.Value == "" {
		t.Fatal("expected session cookie")
	}

	sess, err := f.sessions.Get(context.Background(), cookie.Value)
	if err != nil || sess == nil {
		t.Fatalf("expected persisted session, got (%v, %v)", sess, err)
	}
	if sess.Email != "analyst@example.com" {
		t.Errorf("unexpected session email %q", sess.Email)
	}
}

func TestLoginBadPassword(t *testing.T) {
	f := setup(t)

	req := postForm("/auth/login", url.Values{
		"email":    {"analyst@example.com"},
		"password": {"wrong"},
	})
	rec := httptest.NewRecorder()
	f.h.Login(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected login page re-render, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "Invalid email or password") {
		t.Error("expected generic credentials error in body")
	}
	if len(rec.Result().Cookies()) != 0 {
		t.Error("expected no cookie on failed login")
	}
}

func TestLogoutDropsSessionAndCache(t *testing.T) {
	f := setup(t)
	sess, cookie := f.login(t)
	f.cache.Put(sess.ID, &warehouse.Result{})

	req := httptest.NewRequest(http.MethodGet, "/auth/logout", nil)
	req.AddCookie(cookie)
	rec := httptest.NewRecorder()
	f.protected(f.h.Logout).ServeHTTP(rec, req)

	if rec.Code != http.StatusSeeOther {
		t.Fatalf("expected 303, got %d", rec.Code)
	}
	if got, err := f.sessions.Get(context.Background(), sess.ID); err != nil || got != nil {
		t.Errorf("expected session gone, got (%v, %v)", got, err)
	}
	if f.cache.Get(sess.ID) != nil {
		t.Error("expected cached result dropped on logout")
	}
}

func TestDashboardListsViews(t *testing.T) {
	f := setup(t)
	_, cookie := f.login(t)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(cookie)
	rec := httptest.NewRecorder()
	f.protected(f.h.Dashboard).ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	body := rec.Body.String()
	if !strings.Contains(body, "Campaign Delivery") {
		t.Error("expected granted view in selector")
	}
	if strings.Contains(body, "Campaign Spend") {
		t.Error("ungranted view must not appear in selector")
	}
}

func TestQueryRejectsInvalidRange(t *testing.T) {
	f := setup(t)
	_, cookie := f.login(t)

	future := time.Now().AddDate(0, 1, 0).Format(dateutil.ISO)

	cases := []struct {
		name       string
		start, end string
	}{
		{"end in future", "2024-05-01", future},
		{"start after end", "2024-05-31", "2024-05-01"},
		{"before floor", "2018-01-01", "2024-05-31"},
		{"malformed", "05/01/2024", "2024-05-31"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := postForm("/query", url.Values{
				"view":  {"Campaign Delivery"},
				"start": {tc.start},
				"end":   {tc.end},
			})
			req.AddCookie(cookie)
			rec := httptest.NewRecorder()
			f.protected(f.h.Query).ServeHTTP(rec, req)

			if rec.Code != http.StatusUnprocessableEntity {
				t.Fatalf("expected 422, got %d", rec.Code)
			}
		})
	}

	if f.runner.calls != 0 {
		t.Errorf("invalid ranges must not reach the warehouse, got %d calls", f.runner.calls)
	}
}

func TestQueryRejectsUnpermittedView(t *testing.T) {
	f := setup(t)
	_, cookie := f.login(t)

	req := postForm("/query", url.Values{
		"view":  {"Campaign Spend"},
		"start": {"2024-05-01"},
		"end":   {"2024-05-31"},
	})
	req.AddCookie(cookie)
	rec := httptest.NewRecorder()
	f.protected(f.h.Query).ServeHTTP(rec, req)

	if rec.Code != http.StatusForbidden {
		t.Fatalf("expected 403, got %d", rec.Code)
	}
	if f.runner.calls != 0 {
		t.Error("unpermitted view must not reach the warehouse")
	}
}

func TestQueryCachesResultAndRedirects(t *testing.T) {
	f := setup(t)
	sess, cookie := f.login(t)

	req := postForm("/query", url.Values{
		"view":  {"Campaign Delivery"},
		"start": {"2024-05-01"},
		"end":   {"2024-05-31"},
	})
	req.AddCookie(cookie)
	rec := httptest.NewRecorder()
	f.protected(f.h.Query).ServeHTTP(rec, req)

	if rec.Code != http.StatusSeeOther {
		t.Fatalf("expected 303, got %d: %s", rec.Code, rec.Body.String())
	}

	cached := f.cache.Get(sess.ID)
	if cached == nil {
		t.Fatal("expected result in cache")
	}
	if cached.View.Name != "Campaign Delivery" {
		t.Errorf("unexpected cached view %q", cached.View.Name)
	}

	// Dashboard now shows the preview
	req = httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(cookie)
	rec = httptest.NewRecorder()
	f.protected(f.h.Dashboard).ServeHTTP(rec, req)

	if !strings.Contains(rec.Body.String(), "IMPRESSIONS") {
		t.Error("expected result columns in preview")
	}
}

func TestQueryFailureRendersGenericError(t *testing.T) {
	f := setup(t)
	sess, cookie := f.login(t)
	f.runner.err = errors.New("390114 (08004): certificate expired for account xy12345")

	req := postForm("/query", url.Values{
		"view":  {"Campaign Delivery"},
		"start": {"2024-05-01"},
		"end":   {"2024-05-31"},
	})
	req.AddCookie(cookie)
	rec := httptest.NewRecorder()
	f.protected(f.h.Query).ServeHTTP(rec, req)

	if rec.Code != http.StatusBadGateway {
		t.Fatalf("expected 502, got %d", rec.Code)
	}
	body := rec.Body.String()
	if strings.Contains(body, "390114") || strings.Contains(body, "certificate") {
		t.Error("warehouse error detail must not reach the browser")
	}
	if !strings.Contains(body, "report query failed") {
		t.Error("expected generic failure message")
	}
	if f.cache.Get(sess.ID) != nil {
		t.Error("failed query must not populate the cache")
	}
}

func TestAuditFailureKeepsResult(t *testing.T) {
	f := setup(t)
	sess, cookie := f.login(t)

	// Audit repo over a closed database: every insert fails
	auditDB, err := store.New(":memory:")
	if err != nil {
		t.Fatalf("failed to open audit db: %v", err)
	}
	if err := auditDB.Migrate(); err != nil {
		t.Fatalf("failed to migrate audit db: %v", err)
	}
	f.h.audit = store.NewAuditRepository(auditDB)
	auditDB.Close()

	req := postForm("/query", url.Values{
		"view":  {"Campaign Delivery"},
		"start": {"2024-05-01"},
		"end":   {"2024-05-31"},
	})
	req.AddCookie(cookie)
	rec := httptest.NewRecorder()
	f.protected(f.h.Query).ServeHTTP(rec, req)

	if rec.Code != http.StatusSeeOther {
		t.Fatalf("expected 303 despite audit failure, got %d", rec.Code)
	}
	if f.cache.Get(sess.ID) == nil {
		t.Error("audit failure must not invalidate the result")
	}
}

func TestExportCSV(t *testing.T) {
	f := setup(t)
	sess, cookie := f.login(t)
	f.cache.Put(sess.ID, &warehouse.Result{
		View:    models.View{Name: "Campaign Delivery"},
		Columns: []string{"AD_DATE"},
		Rows:    [][]string{{"01.05.2024"}},
	})

	req := httptest.NewRequest(http.MethodGet, "/export?format=csv", nil)
	req.AddCookie(cookie)
	rec := httptest.NewRecorder()
	f.protected(f.h.Export).ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "text/csv" {
		t.Errorf("unexpected content type %q", ct)
	}
	if cd := rec.Header().Get("Content-Disposition"); !strings.Contains(cd, `"Campaign Delivery.csv"`) {
		t.Errorf("unexpected content disposition %q", cd)
	}
	if !strings.Contains(rec.Body.String(), "AD_DATE") {
		t.Error("expected header row in csv body")
	}
}

func TestExportDefaultsToExcel(t *testing.T) {
	f := setup(t)
	sess, cookie := f.login(t)
	f.cache.Put(sess.ID, &warehouse.Result{
		View:    models.View{Name: "Campaign Delivery"},
		Columns: []string{"AD_DATE"},
		Rows:    [][]string{{"01.05.2024"}},
	})

	req := httptest.NewRequest(http.MethodGet, "/export", nil)
	req.AddCookie(cookie)
	rec := httptest.NewRecorder()
	f.protected(f.h.Export).ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); !strings.Contains(ct, "spreadsheetml") {
		t.Errorf("expected xlsx content type, got %q", ct)
	}
	if cd := rec.Header().Get("Content-Disposition"); !strings.Contains(cd, ".xlsx") {
		t.Errorf("unexpected content disposition %q", cd)
	}
}

func TestExportWithoutResultRedirects(t *testing.T) {
	f := setup(t)
	_, cookie := f.login(t)

	req := httptest.NewRequest(http.MethodGet, "/export", nil)
	req.AddCookie(cookie)
	rec := httptest.NewRecorder()
	f.protected(f.h.Export).ServeHTTP(rec, req)

	if rec.Code != http.StatusSeeOther {
		t.Fatalf("expected 303, got %d", rec.Code)
	}
}
