// Package store persists tuning runs, their metric records and the final
// coefficients in SQLite or PostgreSQL.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"

	"github.com/YuminosukeSato/penreg/pkg/errors"
	"github.com/YuminosukeSato/penreg/tune"
	"github.com/YuminosukeSato/penreg/workflow"
)

var ErrRunNotFound = errors.New("run not found")

var schema = []string{
	`CREATE TABLE IF NOT EXISTS runs (
		id          TEXT PRIMARY KEY,
		started_at  TIMESTAMP NOT NULL,
		source      TEXT NOT NULL,
		target      TEXT NOT NULL,
		fingerprint TEXT NOT NULL,
		n_rows      INTEGER NOT NULL,
		train_rows  INTEGER NOT NULL,
		test_rows   INTEGER NOT NULL,
		folds       INTEGER NOT NULL,
		grid_size   INTEGER NOT NULL,
		excluded    INTEGER NOT NULL,
		selected_by TEXT NOT NULL,
		penalty     DOUBLE PRECISION NOT NULL,
		mixture     DOUBLE PRECISION NOT NULL,
		cv_rmse     DOUBLE PRECISION NOT NULL,
		test_rmse   DOUBLE PRECISION NOT NULL,
		test_rsq    DOUBLE PRECISION,
		intercept   DOUBLE PRECISION NOT NULL,
		report      TEXT NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS metric_records (
		run_id   TEXT NOT NULL REFERENCES runs(id),
		penalty  DOUBLE PRECISION NOT NULL,
		mixture  DOUBLE PRECISION NOT NULL,
		metric   TEXT NOT NULL,
		mean     DOUBLE PRECISION NOT NULL,
		std_err  DOUBLE PRECISION NOT NULL,
		n        INTEGER NOT NULL,
		excluded INTEGER NOT NULL,
		PRIMARY KEY (run_id, penalty, mixture, metric)
	)`,
	`CREATE TABLE IF NOT EXISTS coefficients (
		run_id   TEXT NOT NULL REFERENCES runs(id),
		ord      INTEGER NOT NULL,
		term     TEXT NOT NULL,
		estimate DOUBLE PRECISION NOT NULL,
		PRIMARY KEY (run_id, term)
	)`,
}

// Run is the summary row of a stored run.
type Run struct {
	ID          string          `db:"id"`
	StartedAt   time.Time       `db:"started_at"`
	Source      string          `db:"source"`
	Target      string          `db:"target"`
	Fingerprint string          `db:"fingerprint"`
	Rows        int             `db:"n_rows"`
	TrainRows   int             `db:"train_rows"`
	TestRows    int             `db:"test_rows"`
	Folds       int             `db:"folds"`
	GridSize    int             `db:"grid_size"`
	Excluded    int             `db:"excluded"`
	SelectedBy  string          `db:"selected_by"`
	Penalty     float64         `db:"penalty"`
	Mixture     float64         `db:"mixture"`
	CVRMSE      float64         `db:"cv_rmse"`
	TestRMSE    float64         `db:"test_rmse"`
	TestRSQ     sql.NullFloat64 `db:"test_rsq"`
	Intercept   float64         `db:"intercept"`
	Report      string          `db:"report"`
}

type recordRow struct {
	RunID string `db:"run_id"`
	tune.MetricRecord
}

type coefficientRow struct {
	RunID string `db:"run_id"`
	Ord   int    `db:"ord"`
	workflow.Coefficient
}

type Store struct {
	db *sqlx.DB
}

// New wraps an open connection.
func New(db *sqlx.DB) *Store {
	return &Store{db: db}
}

// DriverFor maps a DSN to a driver name and the source passed to it.
// postgres:// and postgresql:// URLs use lib/pq; sqlite3://path, sqlite://path
// and bare paths use go-sqlite3.
func DriverFor(dsn string) (driver, source string) {
	switch {
	case strings.HasPrefix(dsn, "postgres://"), strings.HasPrefix(dsn, "postgresql://"):
		return "postgres", dsn
	case strings.HasPrefix(dsn, "sqlite3://"):
		return "sqlite3", strings.TrimPrefix(dsn, "sqlite3://")
	case strings.HasPrefix(dsn, "sqlite://"):
		return "sqlite3", strings.TrimPrefix(dsn, "sqlite://")
	default:
		return "sqlite3", dsn
	}
}

// Open connects to dsn and creates the tables if needed.
func Open(ctx context.Context, dsn string) (*Store, error) {
	if dsn == "" {
		return nil, errors.NewValidationError("store.dsn", "a DSN is required", dsn)
	}
	driver, source := DriverFor(dsn)
	db, err := sqlx.ConnectContext(ctx, driver, source)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to connect to %s database", driver)
	}
	if driver == "sqlite3" {
		// in-memory databases exist per connection
		db.SetMaxOpenConns(1)
	}
	s := New(db)
	if err := s.Migrate(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) Close() error { return s.db.Close() }

// Migrate creates the runs, metric_records and coefficients tables.
func (s *Store) Migrate(ctx context.Context) error {
	for _, stmt := range schema {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return errors.Wrap(err, "migration failed")
		}
	}
	return nil
}

// SaveRun writes the report in one transaction.
func (s *Store) SaveRun(ctx context.Context, rep *workflow.Report) (err error) {
	if rep == nil || rep.RunID == "" {
		return errors.NewValidationError("report", "a report with a run id is required", nil)
	}
	body, err := json.Marshal(rep)
	if err != nil {
		return errors.Wrap(err, "failed to marshal report")
	}

	run := Run{
		ID:          rep.RunID,
		StartedAt:   rep.StartedAt.UTC(),
		Source:      rep.Source,
		Target:      rep.Target,
		Fingerprint: rep.Fingerprint,
		Rows:        rep.Rows,
		TrainRows:   rep.TrainRows,
		TestRows:    rep.TestRows,
		Folds:       rep.Folds,
		GridSize:    rep.GridSize,
		Excluded:    rep.Excluded,
		SelectedBy:  string(rep.SelectedBy),
		Penalty:     rep.Selected.Penalty,
		Mixture:     rep.Selected.Mixture,
		CVRMSE:      rep.CV.Mean,
		TestRMSE:    rep.Test.RMSE,
		TestRSQ:     sql.NullFloat64{Float64: rep.Test.RSQ, Valid: rep.Test.RSQDefined},
		Intercept:   rep.Intercept,
		Report:      string(body),
	}

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return errors.Wrap(err, "failed to begin transaction")
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	_, err = tx.NamedExecContext(ctx, `
		INSERT INTO runs (
			id, started_at, source, target, fingerprint,
			n_rows, train_rows, test_rows, folds, grid_size, excluded,
			selected_by, penalty, mixture, cv_rmse, test_rmse, test_rsq,
			intercept, report
		) VALUES (
			:id, :started_at, :source, :target, :fingerprint,
			:n_rows, :train_rows, :test_rows, :folds, :grid_size, :excluded,
			:selected_by, :penalty, :mixture, :cv_rmse, :test_rmse, :test_rsq,
			:intercept, :report
		)`, run)
	if err != nil {
		return errors.Wrap(err, "failed to insert run")
	}

	if len(rep.Records) > 0 {
		rows := make([]recordRow, len(rep.Records))
		for i, r := range rep.Records {
			rows[i] = recordRow{RunID: rep.RunID, MetricRecord: r}
		}
		_, err = tx.NamedExecContext(ctx, `
			INSERT INTO metric_records (run_id, penalty, mixture, metric, mean, std_err, n, excluded)
			VALUES (:run_id, :penalty, :mixture, :metric, :mean, :std_err, :n, :excluded)`, rows)
		if err != nil {
			return errors.Wrap(err, "failed to insert metric records")
		}
	}

	if len(rep.Coefficients) > 0 {
		rows := make([]coefficientRow, len(rep.Coefficients))
		for i, c := range rep.Coefficients {
			rows[i] = coefficientRow{RunID: rep.RunID, Ord: i, Coefficient: c}
		}
		_, err = tx.NamedExecContext(ctx, `
			INSERT INTO coefficients (run_id, ord, term, estimate)
			VALUES (:run_id, :ord, :term, :estimate)`, rows)
		if err != nil {
			return errors.Wrap(err, "failed to insert coefficients")
		}
	}

	if err = tx.Commit(); err != nil {
		return errors.Wrap(err, "failed to commit run")
	}
	return nil
}

// GetRun loads the summary row of a run.
func (s *Store) GetRun(ctx context.Context, id string) (*Run, error) {
	var run Run
	err := s.db.GetContext(ctx, &run, s.db.Rebind(`SELECT * FROM runs WHERE id = ?`), id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, errors.Wrapf(ErrRunNotFound, "run %s", id)
		}
		return nil, err
	}
	return &run, nil
}

// Records returns the metric records of a run in penalty, mixture, metric order.
func (s *Store) Records(ctx context.Context, runID string) ([]tune.MetricRecord, error) {
	var rows []recordRow
	err := s.db.SelectContext(ctx, &rows, s.db.Rebind(`
		SELECT run_id, penalty, mixture, metric, mean, std_err, n, excluded
		FROM metric_records WHERE run_id = ?
		ORDER BY penalty, mixture, metric`), runID)
	if err != nil {
		return nil, err
	}
	out := make([]tune.MetricRecord, len(rows))
	for i, r := range rows {
		out[i] = r.MetricRecord
	}
	return out, nil
}

// Coefficients returns the stored coefficients in their ranked order.
func (s *Store) Coefficients(ctx context.Context, runID string) ([]workflow.Coefficient, error) {
	var rows []coefficientRow
	err := s.db.SelectContext(ctx, &rows, s.db.Rebind(`
		SELECT run_id, ord, term, estimate
		FROM coefficients WHERE run_id = ?
		ORDER BY ord`), runID)
	if err != nil {
		return nil, err
	}
	out := make([]workflow.Coefficient, len(rows))
	for i, r := range rows {
		out[i] = r.Coefficient
	}
	return out, nil
}
