package store

import (
	"context"
	"sort"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/locator-cli/internal/db"
	"github.com/sells-group/locator-cli/internal/model"
)

const (
	locationsTable  = "locator.locations"
	populationTable = "locator.county_population"
)

var populationUpsert = db.UpsertConfig{
	Table:        populationTable,
	Columns:      []string{"state", "county", "population", "updated_at"},
	ConflictKeys: []string{"state", "county"},
}

type countyKey struct{ state, county string }

// PostgresSink appends records to locator.locations with COPY and keeps
// locator.county_population current for every resolved county.
type PostgresSink struct {
	pool    db.Pool
	closeFn func()
	runID   string

	pending [][]any
	pops    map[countyKey]int64
	written int64
	log     *zap.Logger
	outcome
}

// NewPostgres connects to connString and returns a sink for runID.
func NewPostgres(ctx context.Context, connString, runID string) (*PostgresSink, error) {
	pool, err := db.Connect(ctx, connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: connect")
	}
	s := newPostgresSink(pool, runID)
	s.closeFn = pool.Close
	return s, nil
}

func newPostgresSink(pool db.Pool, runID string) *PostgresSink {
	return &PostgresSink{
		pool:  pool,
		runID: runID,
		pops:  make(map[countyKey]int64),
		log:   zap.L().With(zap.String("component", "store.postgres"), zap.String("run_id", runID)),
	}
}

const postgresMigration = `
CREATE SCHEMA IF NOT EXISTS locator;

CREATE TABLE IF NOT EXISTS locator.runs (
	id          TEXT PRIMARY KEY,
	start_url   TEXT NOT NULL,
	status      TEXT NOT NULL DEFAULT 'running',
	records     BIGINT NOT NULL DEFAULT 0,
	started_at  TIMESTAMPTZ NOT NULL DEFAULT now(),
	finished_at TIMESTAMPTZ
);

CREATE TABLE IF NOT EXISTS locator.locations (
	id              TEXT PRIMARY KEY,
	run_id          TEXT NOT NULL REFERENCES locator.runs(id),
	state           TEXT NOT NULL,
	county          TEXT NOT NULL,
	population      BIGINT,
	population_note TEXT,
	center_name     TEXT NOT NULL,
	address         TEXT NOT NULL,
	contact         TEXT NOT NULL,
	access_points   INTEGER NOT NULL DEFAULT 0,
	created_at      TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS locator.county_population (
	state      TEXT NOT NULL,
	county     TEXT NOT NULL,
	population BIGINT NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	PRIMARY KEY (state, county)
);

CREATE INDEX IF NOT EXISTS idx_locations_run_id ON locator.locations(run_id);
CREATE INDEX IF NOT EXISTS idx_locations_state_county ON locator.locations(state, county);
`

// Migrate creates the locator schema and its tables.
func (s *PostgresSink) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

// BeginRun records the start of the sink's run.
func (s *PostgresSink) BeginRun(ctx context.Context, startURL string) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO locator.runs (id, start_url, status, started_at) VALUES ($1, $2, $3, $4)`,
		s.runID, startURL, RunStatusRunning, time.Now().UTC(),
	)
	return eris.Wrap(err, "postgres: insert run")
}

// Write buffers rec and copies a batch once it is full.
func (s *PostgresSink) Write(ctx context.Context, rec model.Record) error {
	s.pending = append(s.pending, locationRow(s.runID, rec, time.Now().UTC()))
	if rec.Population.Known {
		s.pops[countyKey{rec.State, rec.County}] = rec.Population.Count
	}
	if len(s.pending) >= batchSize {
		return s.flush(ctx)
	}
	return nil
}

func (s *PostgresSink) flush(ctx context.Context) error {
	if len(s.pending) == 0 {
		return nil
	}
	n, err := db.CopyFrom(ctx, s.pool, locationsTable, locationColumns, s.pending)
	if err != nil {
		return eris.Wrap(err, "postgres: copy locations")
	}
	s.written += n
	s.log.Debug("copied locations", zap.Int64("rows", n))
	s.pending = s.pending[:0]
	return nil
}

// populationRows returns one row per resolved county, sorted by key.
func (s *PostgresSink) populationRows(now time.Time) [][]any {
	keys := make([]countyKey, 0, len(s.pops))
	for k := range s.pops {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].state != keys[j].state {
			return keys[i].state < keys[j].state
		}
		return keys[i].county < keys[j].county
	})

	rows := make([][]any, 0, len(keys))
	for _, k := range keys {
		rows = append(rows, []any{k.state, k.county, s.pops[k], now})
	}
	return rows
}

// Close copies pending rows, upserts county populations, records the run's
// final status and releases the pool. The run is complete unless Fail was
// called.
func (s *PostgresSink) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	defer func() {
		if s.closeFn != nil {
			s.closeFn()
		}
	}()

	if err := s.flush(ctx); err != nil {
		return err
	}

	status, cause := s.status()
	now := time.Now().UTC()
	n, err := db.BulkUpsert(ctx, s.pool, populationUpsert, s.populationRows(now))
	if err != nil {
		return eris.Wrap(err, "postgres: upsert county population")
	}

	if _, err := s.pool.Exec(ctx,
		`UPDATE locator.runs SET status = $1, records = $2, finished_at = $3 WHERE id = $4`,
		status, s.written, now, s.runID,
	); err != nil {
		return eris.Wrap(err, "postgres: finish run")
	}

	s.log.Info("postgres sink closed",
		zap.String("status", status),
		zap.Int64("records", s.written),
		zap.Int64("counties", n),
		zap.Error(cause),
	)
	return nil
}
