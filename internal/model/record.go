package model

import (
	"encoding/json"
	"strconv"
)

// Sentinel values substituted when data cannot be found.
const (
	// PopulationDataNotFound is returned by the Census API strategy on a miss.
	PopulationDataNotFound = "Population Data Not Found"
	// PopulationNotFound is returned by the local dataset strategy on a miss.
	PopulationNotFound = "Population Not Found"
	// ContactPlaceholder pads the contact list when a location has no phone.
	ContactPlaceholder = "Not given on that place"
)

// Population is either a resolved head count or a sentinel string.
type Population struct {
	Count    int64
	Known    bool
	Sentinel string
}

// CountOf builds a resolved population.
func CountOf(n int64) Population {
	return Population{Count: n, Known: true}
}

// Missing builds an unresolved population carrying the given sentinel.
func Missing(sentinel string) Population {
	return Population{Sentinel: sentinel}
}

// String renders the count, or the sentinel when unresolved.
func (p Population) String() string {
	if p.Known {
		return strconv.FormatInt(p.Count, 10)
	}
	return p.Sentinel
}

// Value returns an int64 when resolved and the sentinel string otherwise.
func (p Population) Value() any {
	if p.Known {
		return p.Count
	}
	return p.Sentinel
}

// MarshalJSON emits a bare number when resolved and a string otherwise.
func (p Population) MarshalJSON() ([]byte, error) {
	return json.Marshal(p.Value())
}

// Record is one scraped location enriched with its county population.
type Record struct {
	State        string     `json:"state"`
	County       string     `json:"county"`
	Population   Population `json:"population"`
	CenterName   string     `json:"center_name"`
	Address      string     `json:"address"`
	Contact      string     `json:"contact"`
	AccessPoints int        `json:"access_points"`
}
