package warehouse

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pbelov/snowview/internal/dateutil"
	"github.com/pbelov/snowview/internal/web/models"
)

var testLogger = slog.New(slog.NewTextHandler(io.Discard, nil))

func testRange(t *testing.T) dateutil.DateRange {
	t.Helper()
	dr, err := dateutil.ParseRange("2024-05-01", "2024-05-31")
	require.NoError(t, err)
	return dr
}

func TestValidAddress(t *testing.T) {
	valid := []string{
		"REPORTING.CAMPAIGN_DELIVERY_V",
		"campaign_delivery",
		"S1.T$2",
		"_private.view_1",
	}
	for _, addr := range valid {
		assert.True(t, ValidAddress(addr), addr)
	}

	invalid := []string{
		"",
		"REPORTING..VIEW",
		"a.b.c",
		"view; DROP TABLE users",
		"view name",
		`"quoted"`,
		"1starts_with_digit",
	}
	for _, addr := range invalid {
		assert.False(t, ValidAddress(addr), addr)
	}
}

func TestExecutorRun(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	view := models.View{ID: "v1", Name: "Campaign Delivery", Address: "REPORTING.CAMPAIGN_DELIVERY_V"}

	mock.ExpectQuery(regexp.QuoteMeta(reportQuery)).
		WithArgs("MEDIA.REPORTING.CAMPAIGN_DELIVERY_V", "2024-05-01", "2024-05-31").
		WillReturnRows(sqlmock.NewRows([]string{"AD_DATE", "CAMPAIGN", "IMPRESSIONS"}).
			AddRow("01.05.2024", "spring_launch", int64(120000)).
			AddRow("02.05.2024", "spring_launch", nil))

	e := NewExecutor(db, "MEDIA", time.Minute, testLogger)
	result, err := e.Run(context.Background(), view, testRange(t))
	require.NoError(t, err)

	assert.Equal(t, []string{"AD_DATE", "CAMPAIGN", "IMPRESSIONS"}, result.Columns)
	assert.Equal(t, 2, result.RowCount())
	assert.Equal(t, []string{"01.05.2024", "spring_launch", "120000"}, result.Rows[0])
	// NULL renders as empty string
	assert.Equal(t, "", result.Rows[1][2])
	assert.Greater(t, result.Duration, time.Duration(0))
	assert.Equal(t, view, result.View)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestExecutorRunRejectsBadAddress(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	view := models.View{Name: "bad", Address: "REPORTING.V; DROP TABLE USERS"}

	e := NewExecutor(db, "MEDIA", time.Minute, testLogger)
	_, err = e.Run(context.Background(), view, testRange(t))
	assert.ErrorIs(t, err, ErrBadAddress)

	// Nothing may reach the warehouse
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestExecutorRunQueryError(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectQuery(regexp.QuoteMeta(reportQuery)).
		WillReturnError(errors.New("SQL compilation error: object does not exist"))

	view := models.View{Name: "Campaign Delivery", Address: "REPORTING.MISSING_V"}
	e := NewExecutor(db, "MEDIA", time.Minute, testLogger)
	_, err = e.Run(context.Background(), view, testRange(t))

	// The generic sentinel is what handlers branch on; the underlying
	// detail stays out of user-facing messages.
	assert.ErrorIs(t, err, ErrQuery)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestFormatValue(t *testing.T) {
	ts := time.Date(2024, 5, 1, 10, 30, 0, 0, time.UTC)
	assert.Equal(t, "", formatValue(nil))
	assert.Equal(t, "abc", formatValue([]byte("abc")))
	assert.Equal(t, "abc", formatValue("abc"))
	assert.Equal(t, "2024-05-01 10:30:00", formatValue(ts))
	assert.Equal(t, "42", formatValue(int64(42)))
	assert.Equal(t, "3.14", formatValue(3.14))
}
