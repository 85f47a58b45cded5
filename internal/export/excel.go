// Package export renders the catalog as an Excel price list.
package export

import (
	"fmt"
	"io"

	"github.com/xuri/excelize/v2"
)

// sheetWriter appends rows to the sheets of a workbook.
type sheetWriter struct {
	file         *excelize.File
	currentSheet string
	currentRow   int
	headerStyle  int
	moneyStyle   int
}

func newSheetWriter() (*sheetWriter, error) {
	f := excelize.NewFile()
	header, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return nil, err
	}
	pounds := "£#,##0.00"
	money, err := f.NewStyle(&excelize.Style{CustomNumFmt: &pounds})
	if err != nil {
		return nil, err
	}
	return &sheetWriter{file: f, headerStyle: header, moneyStyle: money}, nil
}

// addSheet starts a new sheet, reusing the default one for the first call.
func (w *sheetWriter) addSheet(name string) error {
	// Excel limit.
	if len(name) > 31 {
		name = name[:31]
	}

	if w.currentSheet == "" {
		if err := w.file.SetSheetName("Sheet1", name); err != nil {
			return err
		}
	} else if _, err := w.file.NewSheet(name); err != nil {
		return fmt.Errorf("create sheet %s: %w", name, err)
	}

	w.currentSheet = name
	w.currentRow = 1
	return nil
}

func (w *sheetWriter) writeHeader(columns ...string) error {
	row := make([]any, len(columns))
	for i, c := range columns {
		row[i] = c
	}
	if err := w.writeRow(row...); err != nil {
		return err
	}
	start, _ := excelize.CoordinatesToCellName(1, w.currentRow-1)
	end, _ := excelize.CoordinatesToCellName(len(columns), w.currentRow-1)
	return w.file.SetCellStyle(w.currentSheet, start, end, w.headerStyle)
}

// writeRow writes values left to right. Values of type pounds get the currency format.
func (w *sheetWriter) writeRow(values ...any) error {
	if w.currentSheet == "" {
		return fmt.Errorf("no active sheet")
	}
	for i, v := range values {
		cell, err := excelize.CoordinatesToCellName(i+1, w.currentRow)
		if err != nil {
			return err
		}
		if p, ok := v.(pounds); ok {
			if err := w.file.SetCellFloat(w.currentSheet, cell, float64(p)/100, -1, 64); err != nil {
				return err
			}
			if err := w.file.SetCellStyle(w.currentSheet, cell, cell, w.moneyStyle); err != nil {
				return err
			}
			continue
		}
		if err := w.file.SetCellValue(w.currentSheet, cell, v); err != nil {
			return err
		}
	}
	w.currentRow++
	return nil
}

func (w *sheetWriter) save(out io.Writer) error {
	return w.file.Write(out)
}

func (w *sheetWriter) close() error {
	return w.file.Close()
}

// pounds marks a pence amount for currency formatting.
type pounds int64
