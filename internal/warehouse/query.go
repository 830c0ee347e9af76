package warehouse

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"time"

	"github.com/pbelov/snowview/internal/dateutil"
	"github.com/pbelov/snowview/internal/web/models"
)

var (
	ErrBadAddress = errors.New("invalid view address")
	ErrQuery      = errors.New("query failed")
)

// The one query shape the dashboard supports. The view address is bound
// through IDENTIFIER and the date bounds through TO_DATE, so no user
// input is ever spliced into the SQL text.
const reportQuery = `SELECT * FROM IDENTIFIER(?) ` +
	`WHERE TO_DATE(AD_DATE, 'DD.MM.YYYY') BETWEEN TO_DATE(?, 'YYYY-MM-DD') AND TO_DATE(?, 'YYYY-MM-DD') ` +
	`ORDER BY TO_DATE(AD_DATE, 'DD.MM.YYYY')`

// addressPattern accepts SCHEMA.OBJECT or a bare OBJECT name. Checked on
// top of the IDENTIFIER bind before anything reaches the warehouse.
var addressPattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_$]*(\.[A-Za-z_][A-Za-z0-9_$]*)?$`)

// Result is one fully materialized query result. It is held in the
// session's cache until the next successful query overwrites it; preview
// and export read it without mutation.
type Result struct {
	View     models.View
	Range    dateutil.DateRange
	Columns  []string
	Rows     [][]string
	Duration time.Duration
}

func (r *Result) RowCount() int {
	return len(r.Rows)
}

// Executor runs the fixed report query against the shared pool.
type Executor struct {
	db       *sql.DB
	database string
	timeout  time.Duration
	logger   *slog.Logger
}

func NewExecutor(db *sql.DB, database string, timeout time.Duration, logger *slog.Logger) *Executor {
	return &Executor{db: db, database: database, timeout: timeout, logger: logger}
}

// ValidAddress reports whether addr is an acceptable qualified view
// address.
func ValidAddress(addr string) bool {
	return addressPattern.MatchString(addr)
}

// Run executes the report query for one view and date range and
// materializes the full result set. Duration covers submission through
// materialization. The error detail is logged here; callers surface only
// a generic failure to the user.
func (e *Executor) Run(ctx context.Context, view models.View, dr dateutil.DateRange) (*Result, error) {
	if !ValidAddress(view.Address) {
		return nil, fmt.Errorf("%w: %q", ErrBadAddress, view.Address)
	}
	qualified := e.database + "." + view.Address

	ctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	start := time.Now()
	rows, err := e.db.QueryContext(ctx, reportQuery,
		qualified, dr.Start.Format(dateutil.ISO), dr.End.Format(dateutil.ISO))
	if err != nil {
		e.logger.Error("report query failed", "view", view.Name, "address", qualified, "error", err)
		return nil, fmt.Errorf("%w: %v", ErrQuery, err)
	}
	defer rows.Close()

	columns, err := rows.Columns()
	if err != nil {
		e.logger.Error("failed to read columns", "view", view.Name, "error", err)
		return nil, fmt.Errorf("%w: %v", ErrQuery, err)
	}

	result := &Result{View: view, Range: dr, Columns: columns, Rows: [][]string{}}

	values := make([]any, len(columns))
	ptrs := make([]any, len(columns))
	for i := range values {
		ptrs[i] = &values[i]
	}

	for rows.Next() {
		if err := rows.Scan(ptrs...); err != nil {
			e.logger.Error("failed to scan row", "view", view.Name, "error", err)
			return nil, fmt.Errorf("%w: %v", ErrQuery, err)
		}
		row := make([]string, len(columns))
		for i, v := range values {
			row[i] = formatValue(v)
		}
		result.Rows = append(result.Rows, row)
	}
	if err := rows.Err(); err != nil {
		e.logger.Error("row iteration failed", "view", view.Name, "error", err)
		return nil, fmt.Errorf("%w: %v", ErrQuery, err)
	}

	result.Duration = time.Since(start)

	e.logger.Info("report query completed",
		"view", view.Name,
		"range", dr.String(),
		"rows", result.RowCount(),
		"duration", result.Duration,
	)
	return result, nil
}

// formatValue renders a driver value the way it should appear in the
// preview table and in exports. NULL becomes the empty string.
func formatValue(v any) string {
	switch val := v.(type) {
	case nil:
		return ""
	case []byte:
		return string(val)
	case string:
		return val
	case time.Time:
		return val.Format("2006-01-02 15:04:05")
	default:
		return fmt.Sprintf("%v", val)
	}
}
