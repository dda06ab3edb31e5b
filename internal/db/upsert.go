package db

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/rotisserie/eris"
)

// UpsertConfig describes a merge of rows into Table keyed on ConflictKeys.
type UpsertConfig struct {
	Table        string
	Columns      []string
	ConflictKeys []string
	// UpdateCols are overwritten on conflict. Nil means every column outside
	// ConflictKeys; an empty slice leaves existing rows untouched.
	UpdateCols []string
}

// BulkUpsert stages rows in a transaction-scoped temp table with COPY and
// merges them into cfg.Table in one INSERT ... ON CONFLICT. Rows repeating a
// conflict key are collapsed to the last one, since a single statement
// cannot update the same target row twice. Returns the merged row count.
func BulkUpsert(ctx context.Context, pool Pool, cfg UpsertConfig, rows [][]any) (int64, error) {
	if len(rows) == 0 {
		return 0, nil
	}
	if err := cfg.validate(); err != nil {
		return 0, err
	}
	rows = cfg.dedupe(rows)

	tx, err := pool.Begin(ctx)
	if err != nil {
		return 0, eris.Wrap(err, "db: upsert: begin tx")
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	if _, err := tx.Exec(ctx, cfg.stageSQL()); err != nil {
		return 0, eris.Wrapf(err, "db: upsert: create staging table for %s", cfg.Table)
	}
	if _, err := tx.CopyFrom(ctx, cfg.stagingTable(), cfg.Columns, pgx.CopyFromRows(rows)); err != nil {
		return 0, eris.Wrapf(err, "db: upsert: stage rows for %s", cfg.Table)
	}

	tag, err := tx.Exec(ctx, cfg.mergeSQL())
	if err != nil {
		return 0, eris.Wrapf(err, "db: upsert: merge into %s", cfg.Table)
	}
	if err := tx.Commit(ctx); err != nil {
		return 0, eris.Wrap(err, "db: upsert: commit tx")
	}
	return tag.RowsAffected(), nil
}

func (c UpsertConfig) validate() error {
	if len(c.Columns) == 0 {
		return eris.New("db: upsert: no columns specified")
	}
	if len(c.ConflictKeys) == 0 {
		return eris.New("db: upsert: no conflict keys specified")
	}
	if _, err := c.keyIndexes(); err != nil {
		return err
	}
	return nil
}

// keyIndexes maps each conflict key to its position in Columns.
func (c UpsertConfig) keyIndexes() ([]int, error) {
	pos := make(map[string]int, len(c.Columns))
	for i, col := range c.Columns {
		pos[col] = i
	}
	idx := make([]int, len(c.ConflictKeys))
	for i, k := range c.ConflictKeys {
		p, ok := pos[k]
		if !ok {
			return nil, eris.Errorf("db: upsert: conflict key %q not in columns", k)
		}
		idx[i] = p
	}
	return idx, nil
}

// dedupe keeps the last row for each conflict key, in first-seen key order.
func (c UpsertConfig) dedupe(rows [][]any) [][]any {
	idx, _ := c.keyIndexes()
	slot := make(map[string]int, len(rows))
	out := make([][]any, 0, len(rows))

	var key strings.Builder
	for _, row := range rows {
		key.Reset()
		for _, i := range idx {
			if i < len(row) {
				fmt.Fprint(&key, row[i])
			}
			key.WriteByte(0)
		}
		if j, ok := slot[key.String()]; ok {
			out[j] = row
			continue
		}
		slot[key.String()] = len(out)
		out = append(out, row)
	}
	return out
}

func (c UpsertConfig) stagingTable() pgx.Identifier {
	return pgx.Identifier{"_tmp_upsert_" + strings.ReplaceAll(c.Table, ".", "_")}
}

func (c UpsertConfig) stageSQL() string {
	return fmt.Sprintf("CREATE TEMP TABLE %s (LIKE %s INCLUDING DEFAULTS) ON COMMIT DROP",
		c.stagingTable().Sanitize(), sanitizeTable(c.Table))
}

func (c UpsertConfig) mergeSQL() string {
	cols := columnList(c.Columns)
	action := "DO NOTHING"
	if update := c.updateColumns(); len(update) > 0 {
		sets := make([]string, len(update))
		for i, col := range update {
			q := pgx.Identifier{col}.Sanitize()
			sets[i] = q + " = EXCLUDED." + q
		}
		action = "DO UPDATE SET " + strings.Join(sets, ", ")
	}
	return fmt.Sprintf("INSERT INTO %s (%s) SELECT %s FROM %s ON CONFLICT (%s) %s",
		sanitizeTable(c.Table), cols, cols, c.stagingTable().Sanitize(), columnList(c.ConflictKeys), action)
}

func (c UpsertConfig) updateColumns() []string {
	if c.UpdateCols != nil {
		return c.UpdateCols
	}
	keys := make(map[string]bool, len(c.ConflictKeys))
	for _, k := range c.ConflictKeys {
		keys[k] = true
	}
	var out []string
	for _, col := range c.Columns {
		if !keys[col] {
			out = append(out, col)
		}
	}
	return out
}

// identifier splits schema-qualified table names like "locator.locations".
func identifier(table string) pgx.Identifier {
	if schema, name, ok := strings.Cut(table, "."); ok {
		return pgx.Identifier{schema, name}
	}
	return pgx.Identifier{table}
}

func sanitizeTable(table string) string {
	return identifier(table).Sanitize()
}

func columnList(cols []string) string {
	quoted := make([]string, len(cols))
	for i, c := range cols {
		quoted[i] = pgx.Identifier{c}.Sanitize()
	}
	return strings.Join(quoted, ", ")
}
