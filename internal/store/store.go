// Package store persists crawl records to SQL databases. Every row is
// tagged with the run that produced it.
package store

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/sells-group/locator-cli/internal/model"
)

// batchSize is the number of buffered rows that triggers a flush.
const batchSize = 500

// Run statuses written to the runs table.
const (
	RunStatusRunning  = "running"
	RunStatusComplete = "complete"
	RunStatusFailed   = "failed"
)

// outcome tracks how a run ended. The zero value is a clean run.
type outcome struct {
	mu    sync.Mutex
	cause error
}

// Fail marks the run failed. The first cause wins.
func (o *outcome) Fail(cause error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.cause == nil {
		o.cause = cause
	}
}

// status returns the status Close records for the run.
func (o *outcome) status() (string, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.cause != nil {
		return RunStatusFailed, o.cause
	}
	return RunStatusComplete, nil
}

var locationColumns = []string{
	"id", "run_id", "state", "county", "population", "population_note",
	"center_name", "address", "contact", "access_points", "created_at",
}

// locationRow flattens a record into locationColumns order. A resolved
// population fills population; a sentinel fills population_note.
func locationRow(runID string, rec model.Record, now time.Time) []any {
	var pop, note any
	if rec.Population.Known {
		pop = rec.Population.Count
	} else {
		note = rec.Population.Sentinel
	}
	return []any{
		uuid.New().String(), runID, rec.State, rec.County, pop, note,
		rec.CenterName, rec.Address, rec.Contact, rec.AccessPoints, now,
	}
}
