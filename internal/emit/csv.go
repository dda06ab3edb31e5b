package emit

import (
	"context"
	"encoding/csv"
	"os"

	"github.com/rotisserie/eris"

	"github.com/sells-group/locator-cli/internal/model"
)

// CSVWriter writes a header row followed by one row per record.
type CSVWriter struct {
	path   string
	schema Schema

	f *os.File
	w *csv.Writer
}

// NewCSVWriter creates a CSV sink for path.
func NewCSVWriter(path string, schema Schema) *CSVWriter {
	return &CSVWriter{path: path, schema: schema}
}

// Write implements Sink.
func (c *CSVWriter) Write(_ context.Context, rec model.Record) error {
	if c.w == nil {
		f, err := createFile(c.path)
		if err != nil {
			return err
		}
		c.f = f
		c.w = csv.NewWriter(f)
		if err := c.w.Write(c.schema.Columns); err != nil {
			return eris.Wrap(err, "emit: write CSV header")
		}
	}
	if err := c.w.Write(c.schema.Strings(rec)); err != nil {
		return eris.Wrap(err, "emit: write CSV row")
	}
	return nil
}

// Close implements Sink.
func (c *CSVWriter) Close() error {
	if c.f == nil {
		return nil
	}
	c.w.Flush()
	werr := c.w.Error()
	cerr := c.f.Close()
	c.f, c.w = nil, nil
	if werr != nil {
		return eris.Wrap(werr, "emit: flush CSV")
	}
	if cerr != nil {
		return eris.Wrap(cerr, "emit: close CSV")
	}
	return nil
}
