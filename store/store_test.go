package store

import (
	"context"
	"database/sql"
	"math"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/YuminosukeSato/penreg/pkg/errors"
	"github.com/YuminosukeSato/penreg/tune"
	"github.com/YuminosukeSato/penreg/workflow"
)

func sampleReport() *workflow.Report {
	rmse := tune.MetricRecord{Penalty: 0, Mixture: 0, Metric: tune.RMSE, Mean: 0.4, StdErr: 0.05, N: 2}
	rsq := tune.MetricRecord{Penalty: 0, Mixture: 0, Metric: tune.RSQ, Mean: 0.98, StdErr: 0.01, N: 2}
	return &workflow.Report{
		RunID:       "6f1c2f4e-0000-4000-8000-000000000001",
		StartedAt:   time.Date(2026, 10, 18, 9, 0, 0, 0, time.UTC),
		Source:      "data.csv",
		Target:      "y",
		Fingerprint: "00000000deadbeef",
		Rows:        20, TrainRows: 14, TestRows: 6, Strata: 1,
		Folds: 2, GridSize: 1,
		Records:    []tune.MetricRecord{rmse, rsq},
		Best:       tune.BestConfig{ByRMSE: rmse, ByRSQ: &rsq},
		SelectedBy: tune.RMSE,
		Selected:   rmse,
		CV:         rmse,
		Test:       workflow.Evaluation{RMSE: 0.5, RSQ: math.NaN(), N: 6},
		Intercept:  3,
		Coefficients: []workflow.Coefficient{
			{Term: "x1", Estimate: 2},
			{Term: "x2", Estimate: -1.5},
		},
	}
}

func newMock(t *testing.T) (*Store, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return New(sqlx.NewDb(db, "sqlite3")), mock
}

func TestDriverFor(t *testing.T) {
	tests := []struct {
		dsn, driver, source string
	}{
		{"postgres://u:p@localhost/penreg?sslmode=disable", "postgres", "postgres://u:p@localhost/penreg?sslmode=disable"},
		{"postgresql://localhost/penreg", "postgres", "postgresql://localhost/penreg"},
		{"sqlite3://runs.db", "sqlite3", "runs.db"},
		{"sqlite://:memory:", "sqlite3", ":memory:"},
		{"file:runs.db?cache=shared", "sqlite3", "file:runs.db?cache=shared"},
		{"runs.db", "sqlite3", "runs.db"},
	}
	for _, tt := range tests {
		t.Run(tt.dsn, func(t *testing.T) {
			driver, source := DriverFor(tt.dsn)
			assert.Equal(t, tt.driver, driver)
			assert.Equal(t, tt.source, source)
		})
	}
}

func TestMigrate(t *testing.T) {
	s, mock := newMock(t)
	for range schema {
		mock.ExpectExec("CREATE TABLE IF NOT EXISTS").WillReturnResult(sqlmock.NewResult(0, 0))
	}
	require.NoError(t, s.Migrate(context.Background()))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSaveRun(t *testing.T) {
	s, mock := newMock(t)
	rep := sampleReport()

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO runs").
		WithArgs(rep.RunID, rep.StartedAt, "data.csv", "y", "00000000deadbeef",
			20, 14, 6, 2, 1, 0,
			"rmse", 0.0, 0.0, 0.4, 0.5, nil,
			3.0, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec("INSERT INTO metric_records").
		WithArgs(
			rep.RunID, 0.0, 0.0, "rmse", 0.4, 0.05, 2, 0,
			rep.RunID, 0.0, 0.0, "rsq", 0.98, 0.01, 2, 0,
		).
		WillReturnResult(sqlmock.NewResult(0, 2))
	mock.ExpectExec("INSERT INTO coefficients").
		WithArgs(rep.RunID, 0, "x1", 2.0, rep.RunID, 1, "x2", -1.5).
		WillReturnResult(sqlmock.NewResult(0, 2))
	mock.ExpectCommit()

	require.NoError(t, s.SaveRun(context.Background(), rep))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSaveRun_RollsBackOnError(t *testing.T) {
	s, mock := newMock(t)

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO runs").WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec("INSERT INTO metric_records").WillReturnError(errors.New("disk full"))
	mock.ExpectRollback()

	err := s.SaveRun(context.Background(), sampleReport())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to insert metric records")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSaveRun_RequiresRunID(t *testing.T) {
	s, _ := newMock(t)
	rep := sampleReport()
	rep.RunID = ""
	assert.True(t, errors.IsInvalidConfiguration(s.SaveRun(context.Background(), rep)))
}

func TestGetRun(t *testing.T) {
	s, mock := newMock(t)
	cols := []string{
		"id", "started_at", "source", "target", "fingerprint",
		"n_rows", "train_rows", "test_rows", "folds", "grid_size", "excluded",
		"selected_by", "penalty", "mixture", "cv_rmse", "test_rmse", "test_rsq",
		"intercept", "report",
	}
	started := time.Date(2026, 10, 18, 9, 0, 0, 0, time.UTC)
	mock.ExpectQuery("SELECT (.+) FROM runs WHERE id").
		WithArgs("run-1").
		WillReturnRows(sqlmock.NewRows(cols).AddRow(
			"run-1", started, "data.csv", "y", "00000000deadbeef",
			20, 14, 6, 2, 4, 1,
			"rmse", 1.0, 0.0, 0.4, 0.5, nil,
			3.0, "{}",
		))

	run, err := s.GetRun(context.Background(), "run-1")
	require.NoError(t, err)
	assert.Equal(t, "run-1", run.ID)
	assert.Equal(t, started, run.StartedAt)
	assert.Equal(t, 1, run.Excluded)
	assert.Equal(t, 1.0, run.Penalty)
	assert.False(t, run.TestRSQ.Valid)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGetRun_NotFound(t *testing.T) {
	s, mock := newMock(t)
	mock.ExpectQuery("SELECT (.+) FROM runs WHERE id").
		WithArgs("missing").
		WillReturnError(sql.ErrNoRows)

	_, err := s.GetRun(context.Background(), "missing")
	assert.True(t, errors.Is(err, ErrRunNotFound))
}

func TestRecordsAndCoefficients(t *testing.T) {
	s, mock := newMock(t)
	mock.ExpectQuery("FROM metric_records WHERE run_id").
		WithArgs("run-1").
		WillReturnRows(sqlmock.NewRows([]string{"run_id", "penalty", "mixture", "metric", "mean", "std_err", "n", "excluded"}).
			AddRow("run-1", 0.0, 0.0, "rmse", 0.4, 0.05, 2, 0).
			AddRow("run-1", 0.0, 0.0, "rsq", 0.98, 0.01, 2, 0))
	mock.ExpectQuery("FROM coefficients WHERE run_id").
		WithArgs("run-1").
		WillReturnRows(sqlmock.NewRows([]string{"run_id", "ord", "term", "estimate"}).
			AddRow("run-1", 0, "x1", 2.0).
			AddRow("run-1", 1, "x2", -1.5))

	records, err := s.Records(context.Background(), "run-1")
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, tune.RSQ, records[1].Metric)
	assert.Equal(t, 0.98, records[1].Mean)

	coefs, err := s.Coefficients(context.Background(), "run-1")
	require.NoError(t, err)
	assert.Equal(t, []workflow.Coefficient{{Term: "x1", Estimate: 2}, {Term: "x2", Estimate: -1.5}}, coefs)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestOpen_SQLiteRoundTrip(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "runs.db")
	s, err := Open(ctx, "sqlite3://"+path)
	if err != nil && strings.Contains(err.Error(), "cgo") {
		t.Skip("go-sqlite3 needs cgo")
	}
	require.NoError(t, err)
	defer s.Close()

	rep := sampleReport()
	require.NoError(t, s.SaveRun(ctx, rep))

	run, err := s.GetRun(ctx, rep.RunID)
	require.NoError(t, err)
	assert.Equal(t, rep.Fingerprint, run.Fingerprint)
	assert.True(t, rep.StartedAt.Equal(run.StartedAt))
	assert.False(t, run.TestRSQ.Valid)

	records, err := s.Records(ctx, rep.RunID)
	require.NoError(t, err)
	assert.Equal(t, rep.Records, records)

	coefs, err := s.Coefficients(ctx, rep.RunID)
	require.NoError(t, err)
	assert.Equal(t, rep.Coefficients, coefs)

	assert.Error(t, s.SaveRun(ctx, rep), "run ids are unique")
}

func TestOpen_EmptyDSN(t *testing.T) {
	_, err := Open(context.Background(), "")
	assert.True(t, errors.IsInvalidConfiguration(err))
}
