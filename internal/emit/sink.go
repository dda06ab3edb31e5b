package emit

import (
	"context"
	"os"
	"path/filepath"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/locator-cli/internal/model"
)

// Sink receives records one at a time. Close flushes buffered output; a
// sink that never received a record leaves no output behind.
type Sink interface {
	Write(ctx context.Context, rec model.Record) error
	Close() error
}

// OpenFile returns the file sink for format ("csv", "json" or "xlsx").
// The file is not created until the first record arrives.
func OpenFile(format, path string, schema Schema) (Sink, error) {
	switch format {
	case "csv":
		return NewCSVWriter(path, schema), nil
	case "json":
		return NewJSONWriter(path, schema), nil
	case "xlsx":
		return NewXLSXWriter(path, schema), nil
	default:
		return nil, eris.Errorf("emit: unsupported file format %q", format)
	}
}

// Failer is implemented by sinks that record how a run ended.
type Failer interface {
	Fail(cause error)
}

// Drain writes every record from in to sink until in is closed. On a write
// error it stops reading and returns; the producer must watch its context.
// The sink stays open so the caller can close it with the run's outcome.
func Drain(ctx context.Context, in <-chan model.Record, sink Sink) (int64, error) {
	log := zap.L().With(zap.String("component", "emit"))
	var n int64

	for {
		select {
		case rec, ok := <-in:
			if !ok {
				log.Info("output complete", zap.Int64("records", n))
				return n, nil
			}
			if err := sink.Write(ctx, rec); err != nil {
				return n, eris.Wrap(err, "emit: write record")
			}
			n++
			if n%500 == 0 {
				log.Debug("records written", zap.Int64("records", n))
			}
		case <-ctx.Done():
			return n, ctx.Err()
		}
	}
}

// Finish closes sink. A non-nil cause marks a Failer sink failed first.
func Finish(sink Sink, cause error) error {
	if f, ok := sink.(Failer); ok && cause != nil {
		f.Fail(cause)
	}
	return eris.Wrap(sink.Close(), "emit: close sink")
}

// ensureDir creates the parent directories of path.
func ensureDir(path string) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return eris.Wrap(err, "emit: create output dir")
		}
	}
	return nil
}

// createFile creates path and any missing parent directories.
func createFile(path string) (*os.File, error) {
	if err := ensureDir(path); err != nil {
		return nil, err
	}
	f, err := os.Create(path)
	if err != nil {
		return nil, eris.Wrap(err, "emit: create output file")
	}
	return f, nil
}
