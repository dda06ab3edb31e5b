package census

import (
	"context"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/locator-cli/internal/fetcher"
	"github.com/sells-group/locator-cli/internal/model"
)

// Dataset columns the table strategy needs.
const (
	ColumnName       = "NAME"
	ColumnPopulation = "P1_001N"
)

// TableResolver answers lookups from an in-memory copy of a Census
// dataset keyed by "<county> County, <state>". Immutable after load.
type TableResolver struct {
	pops map[string]int64
}

// NewTable builds a resolver from an existing key -> population map.
func NewTable(pops map[string]int64) *TableResolver {
	cp := make(map[string]int64, len(pops))
	for k, v := range pops {
		cp[k] = v
	}
	return &TableResolver{pops: cp}
}

// TableKey returns the dataset NAME for a county.
func TableKey(state, county string) string {
	return county + " County, " + state
}

// Population implements Resolver. It never returns an error.
func (t *TableResolver) Population(_ context.Context, state, county string) (model.Population, error) {
	if n, ok := t.pops[TableKey(state, county)]; ok {
		return model.CountOf(n), nil
	}
	return model.Missing(model.PopulationNotFound), nil
}

// Len returns the number of counties loaded.
func (t *TableResolver) Len() int {
	return len(t.pops)
}

// LoadTable reads a dataset from a CSV, XLSX or ZIP (holding a CSV) file.
// An http(s) source is downloaded into tempDir first.
func LoadTable(ctx context.Context, source string, f fetcher.Fetcher, tempDir string) (*TableResolver, error) {
	log := zap.L().With(zap.String("component", "census.table"), zap.String("source", source))

	local, err := localize(ctx, source, f, tempDir)
	if err != nil {
		return nil, err
	}

	ext := strings.ToLower(filepath.Ext(local))
	if ext == ".zip" {
		if err := os.MkdirAll(tempDir, 0o755); err != nil {
			return nil, eris.Wrap(err, "census: create temp dir")
		}
		local, err = fetcher.ExtractZIPMatch(local, ".csv", tempDir)
		if err != nil {
			return nil, eris.Wrap(err, "census: extract dataset")
		}
		ext = ".csv"
	}

	var rows [][]string
	switch ext {
	case ".xlsx":
		rows, err = fetcher.ReadXLSX(local, fetcher.XLSXOptions{})
		if err != nil {
			return nil, eris.Wrap(err, "census: read dataset")
		}
	default:
		rows, err = readCSV(ctx, local)
		if err != nil {
			return nil, err
		}
	}

	t, skipped, err := buildTable(rows)
	if err != nil {
		return nil, err
	}
	log.Info("population table loaded", zap.Int("counties", t.Len()), zap.Int("skipped", skipped))
	return t, nil
}

// localize returns a local path for source, downloading it when remote.
func localize(ctx context.Context, source string, f fetcher.Fetcher, tempDir string) (string, error) {
	u, err := url.Parse(source)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") {
		return source, nil
	}
	if f == nil {
		return "", eris.Errorf("census: no fetcher to download %s", source)
	}
	if err := os.MkdirAll(tempDir, 0o755); err != nil {
		return "", eris.Wrap(err, "census: create temp dir")
	}

	name := path.Base(u.Path)
	if name == "" || name == "/" || name == "." {
		name = "dataset.csv"
	}
	dest := filepath.Join(tempDir, name)
	if _, err := f.DownloadToFile(ctx, source, dest); err != nil {
		return "", eris.Wrap(err, "census: download dataset")
	}
	return dest, nil
}

func readCSV(ctx context.Context, local string) ([][]string, error) {
	file, err := os.Open(local)
	if err != nil {
		return nil, eris.Wrap(err, "census: open dataset")
	}
	defer file.Close() //nolint:errcheck

	rowCh, errCh := fetcher.StreamCSV(ctx, file, fetcher.CSVOptions{LazyQuotes: true})
	var rows [][]string
	for row := range rowCh {
		rows = append(rows, row)
	}
	for err := range errCh {
		if err != nil {
			return nil, eris.Wrap(err, "census: read dataset")
		}
	}
	return rows, nil
}

// buildTable indexes rows by NAME. Rows whose population is not an integer,
// such as the label row under the Census header, are skipped.
func buildTable(rows [][]string) (*TableResolver, int, error) {
	if len(rows) == 0 {
		return nil, 0, eris.New("census: dataset is empty")
	}
	header := append([]string(nil), rows[0]...)
	if len(header) > 0 {
		header[0] = strings.TrimPrefix(header[0], "\ufeff")
	}
	idx, err := fetcher.ColumnIndex(header, ColumnName, ColumnPopulation)
	if err != nil {
		return nil, 0, eris.Wrap(err, "census: dataset header")
	}
	nameCol, popCol := idx[ColumnName], idx[ColumnPopulation]

	pops := make(map[string]int64, len(rows))
	skipped := 0
	for _, row := range rows[1:] {
		if nameCol >= len(row) || popCol >= len(row) {
			skipped++
			continue
		}
		n, err := strconv.ParseInt(strings.TrimSpace(row[popCol]), 10, 64)
		if err != nil {
			skipped++
			continue
		}
		pops[row[nameCol]] = n
	}
	return &TableResolver{pops: pops}, skipped, nil
}
