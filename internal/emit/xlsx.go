package emit

import (
	"context"

	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx/v2"

	"github.com/sells-group/locator-cli/internal/model"
)

const xlsxSheet = "Locations"

// XLSXWriter builds a single-sheet workbook in memory and saves it on Close.
type XLSXWriter struct {
	path   string
	schema Schema

	file  *xlsx.File
	sheet *xlsx.Sheet
}

// NewXLSXWriter creates an XLSX sink for path.
func NewXLSXWriter(path string, schema Schema) *XLSXWriter {
	return &XLSXWriter{path: path, schema: schema}
}

// Write implements Sink.
func (x *XLSXWriter) Write(_ context.Context, rec model.Record) error {
	if x.sheet == nil {
		x.file = xlsx.NewFile()
		sheet, err := x.file.AddSheet(xlsxSheet)
		if err != nil {
			return eris.Wrap(err, "emit: add sheet")
		}
		x.sheet = sheet
		header := sheet.AddRow()
		for _, col := range x.schema.Columns {
			header.AddCell().SetString(col)
		}
	}

	row := x.sheet.AddRow()
	for _, v := range x.schema.Values(rec) {
		cell := row.AddCell()
		switch val := v.(type) {
		case int64:
			cell.SetInt64(val)
		case int:
			cell.SetInt(val)
		case string:
			cell.SetString(val)
		}
	}
	return nil
}

// Close implements Sink.
func (x *XLSXWriter) Close() error {
	if x.file == nil {
		return nil
	}
	f := x.file
	x.file, x.sheet = nil, nil
	if err := ensureDir(x.path); err != nil {
		return err
	}
	if err := f.Save(x.path); err != nil {
		return eris.Wrap(err, "emit: save XLSX")
	}
	return nil
}
