package recorder

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	_ "modernc.org/sqlite"

	"PriceForecaster/internal/model"
	"PriceForecaster/internal/pipeline"
)

// SQLiteRecorder persists runs and their forecast rows to a SQLite database.
type SQLiteRecorder struct {
	db  *sql.DB
	mu  sync.Mutex
	log zerolog.Logger
	now func() time.Time
}

// NewSQLiteRecorder opens (or creates) the SQLite database and runs migrations.
func NewSQLiteRecorder(dbPath string, log zerolog.Logger) (*SQLiteRecorder, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	// WAL lets the API read while the scheduler writes.
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("set WAL mode: %w", err)
	}

	r := &SQLiteRecorder{db: db, log: log, now: time.Now}
	if err := r.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	log.Info().Str("path", dbPath).Msg("sqlite recorder opened")
	return r, nil
}

func (r *SQLiteRecorder) migrate() error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS forecast_runs (
			id            TEXT PRIMARY KEY,
			created_at    INTEGER NOT NULL,
			symbol        TEXT NOT NULL,
			start_date    INTEGER,
			end_date      INTEGER,
			horizon       INTEGER,
			close_column  TEXT,
			points        INTEGER,
			mean          REAL,
			max           REAL,
			min           REAL,
			outcome       TEXT NOT NULL,
			error         TEXT,
			last_estimate REAL,
			last_lower    REAL,
			last_upper    REAL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_runs_symbol_ts ON forecast_runs(symbol, created_at)`,

		`CREATE TABLE IF NOT EXISTS forecast_points (
			run_id     TEXT NOT NULL REFERENCES forecast_runs(id),
			ds         INTEGER NOT NULL,
			yhat       REAL,
			yhat_lower REAL,
			yhat_upper REAL,
			historical INTEGER,
			PRIMARY KEY (run_id, ds)
		)`,
	}

	for _, s := range stmts {
		if _, err := r.db.Exec(s); err != nil {
			return fmt.Errorf("exec %q: %w", s[:40], err)
		}
	}
	return nil
}

// RecordRun stores the run and, when it succeeded, every forecast row in one
// transaction. It returns the new run ID.
func (r *SQLiteRecorder) RecordRun(ctx context.Context, req pipeline.Request, res *pipeline.Result, runErr error) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	run := newRun(uuid.NewString(), req, res, runErr, r.now())

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return "", fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `INSERT INTO forecast_runs
		(id, created_at, symbol, start_date, end_date, horizon, close_column,
		 points, mean, max, min, outcome, error, last_estimate, last_lower, last_upper)
		VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?)`,
		run.ID, run.CreatedAt.Unix(), run.Symbol, unixOrNull(run.Start), unixOrNull(run.End), run.Horizon,
		run.Column, run.Summary.Count, run.Summary.Mean, run.Summary.Max, run.Summary.Min,
		run.Outcome, run.Error, run.LastEstimate, run.LastLower, run.LastUpper,
	)
	if err != nil {
		return "", fmt.Errorf("insert run: %w", err)
	}

	if res != nil && res.Forecast != nil {
		stmt, err := tx.PrepareContext(ctx, `INSERT INTO forecast_points
			(run_id, ds, yhat, yhat_lower, yhat_upper, historical) VALUES (?,?,?,?,?,?)`)
		if err != nil {
			return "", fmt.Errorf("prepare points: %w", err)
		}
		defer stmt.Close()
		for _, row := range res.Forecast.Rows {
			if _, err := stmt.ExecContext(ctx, run.ID, row.Time.Unix(), row.Estimate, row.Lower, row.Upper, row.Historical); err != nil {
				return "", fmt.Errorf("insert point: %w", err)
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return "", fmt.Errorf("commit: %w", err)
	}
	r.log.Debug().Str("run_id", run.ID).Str("symbol", run.Symbol).Str("outcome", run.Outcome).Msg("run recorded")
	return run.ID, nil
}

// RecentRuns returns up to limit runs, newest first. An empty symbol matches
// every symbol.
func (r *SQLiteRecorder) RecentRuns(ctx context.Context, symbol string, limit int) ([]Run, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := r.db.QueryContext(ctx, `SELECT
		id, created_at, symbol, start_date, end_date, horizon, close_column,
		points, mean, max, min, outcome, error, last_estimate, last_lower, last_upper
		FROM forecast_runs
		WHERE (? = '' OR symbol = ?)
		ORDER BY created_at DESC, rowid DESC
		LIMIT ?`, symbol, symbol, limit)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		var (
			run          Run
			created      int64
			start, end   sql.NullInt64
			column, errS sql.NullString
		)
		if err := rows.Scan(&run.ID, &created, &run.Symbol, &start, &end, &run.Horizon, &column,
			&run.Summary.Count, &run.Summary.Mean, &run.Summary.Max, &run.Summary.Min,
			&run.Outcome, &errS, &run.LastEstimate, &run.LastLower, &run.LastUpper); err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		run.CreatedAt = time.Unix(created, 0).UTC()
		if start.Valid {
			run.Start = time.Unix(start.Int64, 0).UTC()
		}
		if end.Valid {
			run.End = time.Unix(end.Int64, 0).UTC()
		}
		run.Column = column.String
		run.Error = errS.String
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

// RunPoints returns the forecast rows of one run in date order.
func (r *SQLiteRecorder) RunPoints(ctx context.Context, id string) ([]model.ForecastRow, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT ds, yhat, yhat_lower, yhat_upper, historical
		FROM forecast_points WHERE run_id = ? ORDER BY ds`, id)
	if err != nil {
		return nil, fmt.Errorf("query points: %w", err)
	}
	defer rows.Close()

	var out []model.ForecastRow
	for rows.Next() {
		var (
			row model.ForecastRow
			ds  int64
		)
		if err := rows.Scan(&ds, &row.Estimate, &row.Lower, &row.Upper, &row.Historical); err != nil {
			return nil, fmt.Errorf("scan point: %w", err)
		}
		row.Time = time.Unix(ds, 0).UTC()
		out = append(out, row)
	}
	return out, rows.Err()
}

func (r *SQLiteRecorder) Close() error {
	r.log.Info().Msg("closing sqlite recorder")
	return r.db.Close()
}

func unixOrNull(t time.Time) any {
	if t.IsZero() {
		return nil
	}
	return t.Unix()
}
