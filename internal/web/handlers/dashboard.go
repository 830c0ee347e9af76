package handlers

import (
	"fmt"
	"net/http"
	"time"

	"github.com/pbelov/snowview/internal/dateutil"
	"github.com/pbelov/snowview/internal/export"
	"github.com/pbelov/snowview/internal/warehouse"
	"github.com/pbelov/snowview/internal/web/middleware"
	"github.com/pbelov/snowview/internal/web/models"
)

// dashboardData drives the dashboard template: the selector state plus
// the cached result, if any.
type dashboardData struct {
	Email        string
	Error        string
	Views        []models.View
	SelectedView string
	Start        string
	End          string
	Floor        string
	Today        string

	Result        *warehouse.Result
	Preview       [][]string
	PreviewRows   int
	DefaultFormat string
	SlowExcel     bool
}

// Dashboard renders the report form and, when the session has a cached
// result, its preview.
func (h *Handlers) Dashboard(w http.ResponseWriter, r *http.Request) {
	sess := middleware.GetSession(r)

	data, err := h.dashboard(r, sess)
	if err != nil {
		h.logger.Error("failed to build dashboard", "email", sess.Email, "error", err)
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}
	h.render(w, "dashboard", data)
}

// Query runs the report for the submitted view and date range, caches the
// result for the session and redirects back to the dashboard.
func (h *Handlers) Query(w http.ResponseWriter, r *http.Request) {
	sess := middleware.GetSession(r)

	if err := r.ParseForm(); err != nil {
		h.dashboardError(w, r, sess, http.StatusBadRequest, "Invalid form data")
		return
	}

	viewName := r.FormValue("view")
	view, err := h.permittedView(r, sess, viewName)
	if err != nil {
		h.logger.Warn("query for unpermitted view", "email", sess.Email, "view", viewName)
		h.dashboardError(w, r, sess, http.StatusForbidden, "That view is not available for your account")
		return
	}

	dr, err := dateutil.ParseRange(r.FormValue("start"), r.FormValue("end"))
	if err != nil {
		h.dashboardError(w, r, sess, http.StatusUnprocessableEntity, "Dates must be YYYY-MM-DD")
		return
	}
	if err := dr.Validate(time.Now(), h.cfg.Reporting.FloorTime()); err != nil {
		h.dashboardError(w, r, sess, http.StatusUnprocessableEntity, rangeMessage(err))
		return
	}

	result, err := h.runner.Run(r.Context(), view, dr)
	if err != nil {
		// Full detail is already in the log; the browser gets a generic line.
		h.metrics.QueriesTotal.WithLabelValues(view.Name, "error").Inc()
		h.dashboardError(w, r, sess, http.StatusBadGateway,
			"The report query failed. Please try again or contact an administrator.")
		return
	}

	h.metrics.QueriesTotal.WithLabelValues(view.Name, "success").Inc()
	h.metrics.QueryDurationSeconds.Observe(result.Duration.Seconds())
	h.metrics.QueryResultRows.Observe(float64(result.RowCount()))

	h.cache.Put(sess.ID, result)
	h.recordAudit(r, sess, result)

	http.Redirect(w, r, "/", http.StatusSeeOther)
}

// Export streams the session's cached result in the requested format.
func (h *Handlers) Export(w http.ResponseWriter, r *http.Request) {
	sess := middleware.GetSession(r)

	result := h.cache.Get(sess.ID)
	if result == nil {
		// Nothing fetched yet in this session
		http.Redirect(w, r, "/", http.StatusSeeOther)
		return
	}

	format := r.URL.Query().Get("format")
	if format != export.FormatCSV && format != export.FormatExcel {
		format = export.DefaultFormat(result.RowCount(), h.cfg.Reporting.ExcelRowLimit)
	}

	var data []byte
	var err error
	if format == export.FormatExcel {
		data, err = export.Excel(result)
	} else {
		data, err = export.CSV(result)
	}
	if err != nil {
		h.logger.Error("export failed", "email", sess.Email, "format", format, "error", err)
		http.Error(w, "Export failed", http.StatusInternalServerError)
		return
	}

	h.metrics.ExportsTotal.WithLabelValues(format).Inc()

	w.Header().Set("Content-Type", export.ContentType(format))
	w.Header().Set("Content-Disposition",
		fmt.Sprintf("attachment; filename=%q", export.Filename(result.View.Name, format)))
	w.Write(data)
}

// dashboard assembles the template data for the session: selector state
// from the cached result when present, the default window otherwise.
func (h *Handlers) dashboard(r *http.Request, sess *models.Session) (*dashboardData, error) {
	views, err := h.registry.UserViews(r.Context(), &models.User{ID: sess.UserID, Email: sess.Email})
	if err != nil {
		return nil, err
	}

	now := time.Now()
	window := dateutil.DefaultWindow(now)

	data := &dashboardData{
		Email:       sess.Email,
		Views:       views,
		Start:       window.Start.Format(dateutil.ISO),
		End:         window.End.Format(dateutil.ISO),
		Floor:       h.cfg.Reporting.FloorDate,
		Today:       now.Format(dateutil.ISO),
		PreviewRows: h.cfg.Reporting.PreviewRows,
	}

	if result := h.cache.Get(sess.ID); result != nil {
		data.Result = result
		data.SelectedView = result.View.Name
		data.Start = result.Range.Start.Format(dateutil.ISO)
		data.End = result.Range.End.Format(dateutil.ISO)

		data.Preview = result.Rows
		if len(data.Preview) > data.PreviewRows {
			data.Preview = data.Preview[:data.PreviewRows]
		}

		data.DefaultFormat = export.DefaultFormat(result.RowCount(), h.cfg.Reporting.ExcelRowLimit)
		data.SlowExcel = data.DefaultFormat == export.FormatCSV
	}

	return data, nil
}

// dashboardError re-renders the dashboard with an error banner, keeping
// the submitted selector values so the user can correct them.
func (h *Handlers) dashboardError(w http.ResponseWriter, r *http.Request, sess *models.Session, status int, message string) {
	data, err := h.dashboard(r, sess)
	if err != nil {
		h.logger.Error("failed to build dashboard", "email", sess.Email, "error", err)
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}

	data.Error = message
	if v := r.FormValue("view"); v != "" {
		data.SelectedView = v
	}
	if s := r.FormValue("start"); s != "" {
		data.Start = s
	}
	if e := r.FormValue("end"); e != "" {
		data.End = e
	}

	w.WriteHeader(status)
	h.render(w, "dashboard", data)
}

// permittedView resolves a view name against the user's grants. Picking
// from the permitted list is the authorization check: names outside it
// fail here regardless of what the form posted.
func (h *Handlers) permittedView(r *http.Request, sess *models.Session, name string) (models.View, error) {
	views, err := h.registry.UserViews(r.Context(), &models.User{ID: sess.UserID, Email: sess.Email})
	if err != nil {
		return models.View{}, err
	}
	for _, v := range views {
		if v.Name == name {
			return v, nil
		}
	}
	return models.View{}, fmt.Errorf("view %q not permitted", name)
}

// recordAudit appends to the query log. Failures are logged and swallowed:
// the materialized result stays valid either way.
func (h *Handlers) recordAudit(r *http.Request, sess *models.Session, result *warehouse.Result) {
	if h.audit == nil {
		return
	}
	rec := &models.AuditRecord{
		UserID:     sess.UserID,
		ViewID:     result.View.ID,
		RangeStart: result.Range.Start,
		RangeEnd:   result.Range.End,
		RowCount:   result.RowCount(),
		Duration:   result.Duration,
	}
	if err := h.audit.Record(r.Context(), rec); err != nil {
		h.logger.Warn("failed to record query log entry",
			"email", sess.Email, "view", result.View.Name, "error", err)
	}
}

func rangeMessage(err error) string {
	switch err {
	case dateutil.ErrStartAfterEnd:
		return "Start date must not be after end date"
	case dateutil.ErrEndInFuture:
		return "End date must not be in the future"
	case dateutil.ErrBeforeFloor:
		return "Start date is before the earliest available data"
	default:
		return "Invalid date range"
	}
}
