package store

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	_ "modernc.org/sqlite"

	"github.com/sells-group/locator-cli/internal/model"
)

// SQLiteSink writes records to a local SQLite database using modernc.org/sqlite.
type SQLiteSink struct {
	db      *sql.DB
	runID   string
	pending [][]any
	written int64
	log     *zap.Logger
	outcome
}

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
func NewSQLite(dsn, runID string) (*SQLiteSink, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close() //nolint:errcheck
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteSink{
		db:    db,
		runID: runID,
		log:   zap.L().With(zap.String("component", "store.sqlite"), zap.String("run_id", runID)),
	}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS runs (
	id          TEXT PRIMARY KEY,
	start_url   TEXT NOT NULL,
	status      TEXT NOT NULL DEFAULT 'running',
	records     INTEGER NOT NULL DEFAULT 0,
	started_at  DATETIME NOT NULL DEFAULT (datetime('now')),
	finished_at DATETIME
);

CREATE TABLE IF NOT EXISTS locations (
	id              TEXT PRIMARY KEY,
	run_id          TEXT NOT NULL REFERENCES runs(id),
	state           TEXT NOT NULL,
	county          TEXT NOT NULL,
	population      INTEGER,
	population_note TEXT,
	center_name     TEXT NOT NULL,
	address         TEXT NOT NULL,
	contact         TEXT NOT NULL,
	access_points   INTEGER NOT NULL DEFAULT 0,
	created_at      DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE INDEX IF NOT EXISTS idx_locations_run_id ON locations(run_id);
CREATE INDEX IF NOT EXISTS idx_locations_state_county ON locations(state, county);
`

// Migrate creates the runs and locations tables.
func (s *SQLiteSink) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

// BeginRun records the start of the sink's run.
func (s *SQLiteSink) BeginRun(ctx context.Context, startURL string) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO runs (id, start_url, status, started_at) VALUES (?, ?, ?, ?)`,
		s.runID, startURL, RunStatusRunning, time.Now().UTC(),
	)
	return eris.Wrap(err, "sqlite: insert run")
}

// Write buffers rec and flushes once a full batch is pending.
func (s *SQLiteSink) Write(ctx context.Context, rec model.Record) error {
	s.pending = append(s.pending, locationRow(s.runID, rec, time.Now().UTC()))
	if len(s.pending) >= batchSize {
		return s.flush(ctx)
	}
	return nil
}

func (s *SQLiteSink) flush(ctx context.Context) error {
	if len(s.pending) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return eris.Wrap(err, "sqlite: begin tx")
	}
	defer tx.Rollback() //nolint:errcheck

	placeholders := strings.TrimSuffix(strings.Repeat("?, ", len(locationColumns)), ", ")
	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO locations (`+strings.Join(locationColumns, ", ")+`) VALUES (`+placeholders+`)`,
	)
	if err != nil {
		return eris.Wrap(err, "sqlite: prepare insert")
	}
	defer stmt.Close() //nolint:errcheck

	for _, row := range s.pending {
		if _, err := stmt.ExecContext(ctx, row...); err != nil {
			return eris.Wrap(err, "sqlite: insert location")
		}
	}
	if err := tx.Commit(); err != nil {
		return eris.Wrap(err, "sqlite: commit")
	}

	s.written += int64(len(s.pending))
	s.log.Debug("flushed locations", zap.Int("rows", len(s.pending)))
	s.pending = s.pending[:0]
	return nil
}

// Close flushes pending rows, records the run's final status and closes
// the database. The run is complete unless Fail was called.
func (s *SQLiteSink) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	status, cause := s.status()
	if cause != nil {
		s.log.Warn("run failed", zap.Error(cause))
	}

	err := s.flush(ctx)
	if err == nil {
		_, err = s.db.ExecContext(ctx,
			`UPDATE runs SET status = ?, records = ?, finished_at = ? WHERE id = ?`,
			status, s.written, time.Now().UTC(), s.runID,
		)
		err = eris.Wrap(err, "sqlite: finish run")
	}
	if cerr := s.db.Close(); err == nil && cerr != nil {
		err = eris.Wrap(cerr, "sqlite: close")
	}
	return err
}

// Records returns the records stored for runID in insertion order.
func (s *SQLiteSink) Records(ctx context.Context, runID string) ([]model.Record, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT state, county, population, population_note, center_name, address, contact, access_points
		 FROM locations WHERE run_id = ? ORDER BY rowid`,
		runID,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: query locations")
	}
	defer rows.Close() //nolint:errcheck

	var out []model.Record
	for rows.Next() {
		var (
			rec  model.Record
			pop  sql.NullInt64
			note sql.NullString
		)
		if err := rows.Scan(&rec.State, &rec.County, &pop, &note, &rec.CenterName, &rec.Address, &rec.Contact, &rec.AccessPoints); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan location")
		}
		if pop.Valid {
			rec.Population = model.CountOf(pop.Int64)
		} else {
			rec.Population = model.Missing(note.String)
		}
		out = append(out, rec)
	}
	return out, eris.Wrap(rows.Err(), "sqlite: iterate locations")
}

// RunStatus returns the status and record count stored for runID.
func (s *SQLiteSink) RunStatus(ctx context.Context, runID string) (string, int64, error) {
	var (
		status  string
		records int64
	)
	err := s.db.QueryRowContext(ctx, `SELECT status, records FROM runs WHERE id = ?`, runID).Scan(&status, &records)
	if err != nil {
		return "", 0, eris.Wrapf(err, "sqlite: get run %s", runID)
	}
	return status, records, nil
}
