package emit

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"os"

	"github.com/rotisserie/eris"

	"github.com/sells-group/locator-cli/internal/model"
)

// JSONWriter writes an indented JSON array of objects whose keys follow
// the schema's column order.
type JSONWriter struct {
	path   string
	schema Schema

	f *os.File
	w *bufio.Writer
	n int
}

// NewJSONWriter creates a JSON sink for path.
func NewJSONWriter(path string, schema Schema) *JSONWriter {
	return &JSONWriter{path: path, schema: schema}
}

// Write implements Sink.
func (j *JSONWriter) Write(_ context.Context, rec model.Record) error {
	obj, err := j.object(rec)
	if err != nil {
		return err
	}

	if j.f == nil {
		f, err := createFile(j.path)
		if err != nil {
			return err
		}
		j.f = f
		j.w = bufio.NewWriter(f)
		if _, err := j.w.WriteString("[\n  "); err != nil {
			return eris.Wrap(err, "emit: write JSON")
		}
	} else if _, err := j.w.WriteString(",\n  "); err != nil {
		return eris.Wrap(err, "emit: write JSON")
	}

	if _, err := j.w.Write(obj); err != nil {
		return eris.Wrap(err, "emit: write JSON")
	}
	j.n++
	return nil
}

// object renders rec as an indented object with ordered keys.
func (j *JSONWriter) object(rec model.Record) ([]byte, error) {
	var raw bytes.Buffer
	raw.WriteByte('{')
	for i, col := range j.schema.Columns {
		if i > 0 {
			raw.WriteByte(',')
		}
		k, err := json.Marshal(col)
		if err != nil {
			return nil, eris.Wrap(err, "emit: encode JSON key")
		}
		v, err := json.Marshal(j.schema.Values(rec)[i])
		if err != nil {
			return nil, eris.Wrap(err, "emit: encode JSON value")
		}
		raw.Write(k)
		raw.WriteByte(':')
		raw.Write(v)
	}
	raw.WriteByte('}')

	var out bytes.Buffer
	if err := json.Indent(&out, raw.Bytes(), "  ", "  "); err != nil {
		return nil, eris.Wrap(err, "emit: indent JSON")
	}
	return out.Bytes(), nil
}

// Close implements Sink.
func (j *JSONWriter) Close() error {
	if j.f == nil {
		return nil
	}
	_, werr := j.w.WriteString("\n]\n")
	if werr == nil {
		werr = j.w.Flush()
	}
	cerr := j.f.Close()
	j.f, j.w = nil, nil
	if werr != nil {
		return eris.Wrap(werr, "emit: flush JSON")
	}
	if cerr != nil {
		return eris.Wrap(cerr, "emit: close JSON")
	}
	return nil
}
