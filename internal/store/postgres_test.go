package store

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/locator-cli/internal/model"
)

// newMockPostgresSink creates a PostgresSink backed by pgxmock for unit testing.
func newMockPostgresSink(t *testing.T) (*PostgresSink, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool(pgxmock.QueryMatcherOption(pgxmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(func() { mock.Close() })

	return newPostgresSink(mock, "run-1"), mock
}

func sampleRecord(county string, pop model.Population) model.Record {
	return model.Record{
		State:        "Ohio",
		County:       county,
		Population:   pop,
		CenterName:   "The UPS Store",
		Address:      "1 Main St inside: Kroger",
		Contact:      "(555) 000-0001",
		AccessPoints: 4,
	}
}

// expectPopulationUpsert registers the temp-table upsert of county populations.
func expectPopulationUpsert(mock pgxmock.PgxPoolIface, n int64) {
	mock.ExpectBegin()
	mock.ExpectExec("CREATE TEMP TABLE").WillReturnResult(pgxmock.NewResult("CREATE", 0))
	mock.ExpectCopyFrom(pgx.Identifier{"_tmp_upsert_locator_county_population"}, populationUpsert.Columns).WillReturnResult(n)
	mock.ExpectExec("INSERT INTO").WillReturnResult(pgxmock.NewResult("INSERT", n))
	mock.ExpectCommit()
}

func TestPostgresSink_Migrate(t *testing.T) {
	s, mock := newMockPostgresSink(t)

	mock.ExpectExec(`CREATE SCHEMA IF NOT EXISTS locator`).WillReturnResult(pgxmock.NewResult("CREATE", 0))

	require.NoError(t, s.Migrate(context.Background()))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresSink_MigrateError(t *testing.T) {
	s, mock := newMockPostgresSink(t)

	mock.ExpectExec(`CREATE SCHEMA`).WillReturnError(errors.New("permission denied"))

	err := s.Migrate(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "postgres: migrate")
}

func TestPostgresSink_BeginRun(t *testing.T) {
	s, mock := newMockPostgresSink(t)

	mock.ExpectExec(`INSERT INTO locator\.runs`).
		WithArgs("run-1", "https://locations.example.com/us/en/", RunStatusRunning, pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	require.NoError(t, s.BeginRun(context.Background(), "https://locations.example.com/us/en/"))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresSink_WriteAndClose(t *testing.T) {
	s, mock := newMockPostgresSink(t)
	ctx := context.Background()

	require.NoError(t, s.Write(ctx, sampleRecord("Franklin", model.CountOf(1323807))))
	require.NoError(t, s.Write(ctx, sampleRecord("Franklin", model.CountOf(1323807))))
	require.NoError(t, s.Write(ctx, sampleRecord("Summit", model.Missing(model.PopulationDataNotFound))))

	mock.ExpectCopyFrom(pgx.Identifier{"locator", "locations"}, locationColumns).WillReturnResult(3)
	expectPopulationUpsert(mock, 1)
	mock.ExpectExec(`UPDATE locator\.runs SET status`).
		WithArgs(RunStatusComplete, int64(3), pgxmock.AnyArg(), "run-1").
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	require.NoError(t, s.Close())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresSink_PopulationRows(t *testing.T) {
	s, _ := newMockPostgresSink(t)
	ctx := context.Background()

	// Buffered writes never reach the pool below batchSize.
	require.NoError(t, s.Write(ctx, sampleRecord("Summit", model.CountOf(540428))))
	require.NoError(t, s.Write(ctx, sampleRecord("Franklin", model.CountOf(1323807))))
	require.NoError(t, s.Write(ctx, sampleRecord("Franklin", model.CountOf(1323807))))
	require.NoError(t, s.Write(ctx, sampleRecord("Adams", model.Missing(model.PopulationNotFound))))

	now := time.Date(2026, 1, 2, 0, 0, 0, 0, time.UTC)
	rows := s.populationRows(now)
	require.Len(t, rows, 2)
	assert.Equal(t, []any{"Ohio", "Franklin", int64(1323807), now}, rows[0])
	assert.Equal(t, []any{"Ohio", "Summit", int64(540428), now}, rows[1])
}

func TestPostgresSink_CloseWithoutPopulations(t *testing.T) {
	s, mock := newMockPostgresSink(t)

	require.NoError(t, s.Write(context.Background(), sampleRecord("Summit", model.Missing(model.PopulationDataNotFound))))

	mock.ExpectCopyFrom(pgx.Identifier{"locator", "locations"}, locationColumns).WillReturnResult(1)
	mock.ExpectExec(`UPDATE locator\.runs SET status`).
		WithArgs(RunStatusComplete, int64(1), pgxmock.AnyArg(), "run-1").
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	require.NoError(t, s.Close())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresSink_FailedRun(t *testing.T) {
	s, mock := newMockPostgresSink(t)

	require.NoError(t, s.Write(context.Background(), sampleRecord("Franklin", model.CountOf(1323807))))
	s.Fail(context.Canceled)

	mock.ExpectCopyFrom(pgx.Identifier{"locator", "locations"}, locationColumns).WillReturnResult(1)
	expectPopulationUpsert(mock, 1)
	mock.ExpectExec(`UPDATE locator\.runs SET status`).
		WithArgs(RunStatusFailed, int64(1), pgxmock.AnyArg(), "run-1").
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	require.NoError(t, s.Close())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresSink_FlushesFullBatch(t *testing.T) {
	s, mock := newMockPostgresSink(t)
	ctx := context.Background()

	mock.ExpectCopyFrom(pgx.Identifier{"locator", "locations"}, locationColumns).WillReturnResult(int64(batchSize))

	for i := 0; i < batchSize; i++ {
		require.NoError(t, s.Write(ctx, sampleRecord(fmt.Sprintf("County %d", i), model.Missing(model.PopulationNotFound))))
	}
	assert.Empty(t, s.pending)
	assert.Equal(t, int64(batchSize), s.written)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresSink_CopyError(t *testing.T) {
	s, mock := newMockPostgresSink(t)

	require.NoError(t, s.Write(context.Background(), sampleRecord("Franklin", model.CountOf(1))))

	mock.ExpectCopyFrom(pgx.Identifier{"locator", "locations"}, locationColumns).
		WillReturnError(errors.New("connection reset"))

	err := s.Close()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "postgres: copy locations")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresSink_CloseCallsCloseFn(t *testing.T) {
	s, mock := newMockPostgresSink(t)
	closed := false
	s.closeFn = func() { closed = true }

	mock.ExpectExec(`UPDATE locator\.runs SET status`).WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	require.NoError(t, s.Close())
	assert.True(t, closed)
}

func TestNewPostgres_BadConnString(t *testing.T) {
	_, err := NewPostgres(context.Background(), "postgres://%zz", "run-1")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "postgres: connect")
}

func TestLocationRow(t *testing.T) {
	now := time.Date(2026, 1, 2, 0, 0, 0, 0, time.UTC)

	row := locationRow("run-1", sampleRecord("Franklin", model.CountOf(1323807)), now)
	require.Len(t, row, len(locationColumns))
	assert.NotEmpty(t, row[0])
	assert.Equal(t, "run-1", row[1])
	assert.Equal(t, int64(1323807), row[4])
	assert.Nil(t, row[5])
	assert.Equal(t, 4, row[9])
	assert.Equal(t, now, row[10])

	row = locationRow("run-1", sampleRecord("Summit", model.Missing(model.PopulationDataNotFound)), now)
	assert.Nil(t, row[4])
	assert.Equal(t, model.PopulationDataNotFound, row[5])
}
