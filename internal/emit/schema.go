// Package emit writes records to the configured output file.
package emit

import (
	"strconv"

	"github.com/rotisserie/eris"

	"github.com/sells-group/locator-cli/internal/model"
)

// Schema is an ordered set of output columns.
type Schema struct {
	Name    string
	Columns []string
	compact bool
}

// Output schemas.
var (
	Full = Schema{
		Name:    "full",
		Columns: []string{"State", "County", "Population", "Center_name", "Address", "Contact", "UPS Access Points"},
	}
	Compact = Schema{
		Name:    "compact",
		Columns: []string{"state", "county", "population", "center_name", "address", "contact"},
		compact: true,
	}
)

// SchemaByName returns the schema called name.
func SchemaByName(name string) (Schema, error) {
	switch name {
	case Full.Name:
		return Full, nil
	case Compact.Name:
		return Compact, nil
	default:
		return Schema{}, eris.Errorf("emit: unknown schema %q", name)
	}
}

// Values returns the record's fields in column order. Population is an
// int64 when known and the sentinel string otherwise.
func (s Schema) Values(r model.Record) []any {
	vals := []any{r.State, r.County, r.Population.Value(), r.CenterName, r.Address, r.Contact}
	if !s.compact {
		vals = append(vals, r.AccessPoints)
	}
	return vals
}

// Strings returns the record's fields in column order as text.
func (s Schema) Strings(r model.Record) []string {
	row := []string{r.State, r.County, r.Population.String(), r.CenterName, r.Address, r.Contact}
	if !s.compact {
		row = append(row, strconv.Itoa(r.AccessPoints))
	}
	return row
}
