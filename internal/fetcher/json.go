package fetcher

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"io"

	"github.com/rotisserie/eris"
)

// leadBytes is how much of a body is inspected before decoding.
const leadBytes = 512

// RowFunc receives each decoded row with its index in the array. Returning
// an error stops decoding.
type RowFunc func(i int, row []string) error

// DecodeRows streams a JSON array of string arrays, the shape the Census
// Data API answers with, calling fn for each row in order. The API reports
// bad queries as plain text, so a body that is not an array is rejected
// with its leading bytes in the error. Empty input yields no rows.
func DecodeRows(ctx context.Context, r io.Reader, fn RowFunc) error {
	br := bufio.NewReaderSize(r, leadBytes)
	lead, _ := br.Peek(leadBytes)
	lead = bytes.TrimSpace(lead)
	if len(lead) == 0 {
		return nil
	}
	if lead[0] != '[' {
		return eris.Errorf("json: expected array, got %q", truncate(lead, 80))
	}

	dec := json.NewDecoder(br)
	if _, err := dec.Token(); err != nil {
		return eris.Wrap(err, "json: read opening token")
	}

	for i := 0; dec.More(); i++ {
		if err := ctx.Err(); err != nil {
			return eris.Wrap(err, "json: context cancelled")
		}
		var row []string
		if err := dec.Decode(&row); err != nil {
			return eris.Wrapf(err, "json: decode row %d", i)
		}
		if err := fn(i, row); err != nil {
			return err
		}
	}

	if _, err := dec.Token(); err != nil && err != io.EOF {
		return eris.Wrap(err, "json: read closing token")
	}
	return nil
}

func truncate(b []byte, n int) string {
	if len(b) > n {
		return string(b[:n]) + "..."
	}
	return string(b)
}
