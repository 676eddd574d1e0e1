package crosstab

import (
	"fmt"
	"math"

	"github.com/xuri/excelize/v2"
)

const (
	excelVariableWidth = 40
	excelValueWidth    = 25
	excelCellWidth     = 12
	// data starts below the two header rows and right of the two key columns
	excelFirstDataRow = 3
	excelFirstDataCol = 3
)

// SheetName is the worksheet name used for the i-th table of a set.
func SheetName(i int) string {
	return fmt.Sprintf("Table %d", i+1)
}

// WriteExcel writes every table to its own worksheet of a new workbook
// saved at filename.
func WriteExcel(tables []*Table, filename string) error {
	if len(tables) == 0 {
		return fmt.Errorf("write excel: no tables")
	}

	f := excelize.NewFile()
	defer f.Close()

	header, err := f.NewStyle(&excelize.Style{
		Font:      &excelize.Font{Bold: true},
		Alignment: &excelize.Alignment{WrapText: true, Vertical: "top"},
	})
	if err != nil {
		return err
	}
	numbers, err := f.NewStyle(&excelize.Style{
		Alignment: &excelize.Alignment{Horizontal: "right"},
	})
	if err != nil {
		return err
	}

	for i, t := range tables {
		sheet := SheetName(i)
		if i == 0 {
			err = f.SetSheetName(f.GetSheetName(0), sheet)
		} else {
			_, err = f.NewSheet(sheet)
		}
		if err != nil {
			return fmt.Errorf("write excel: create sheet %q: %w", sheet, err)
		}
		err = writeSheet(f, sheet, t, header, numbers)
		if err != nil {
			return fmt.Errorf("write excel: sheet %q: %w", sheet, err)
		}
	}

	return f.SaveAs(filename)
}

func writeSheet(f *excelize.File, sheet string, t *Table, header, numbers int) error {
	set := func(col, row int, v any) error {
		cell, err := excelize.CoordinatesToCellName(col, row)
		if err != nil {
			return err
		}
		return f.SetCellValue(sheet, cell, v)
	}

	for j, c := range t.Columns {
		col := excelFirstDataCol + j
		if err := set(col, 1, c.Variable); err != nil {
			return err
		}
		if err := set(col, 2, c.Value); err != nil {
			return err
		}
	}
	for i, k := range t.Rows {
		row := excelFirstDataRow + i
		if err := set(1, row, k.Variable); err != nil {
			return err
		}
		if err := set(2, row, k.Value); err != nil {
			return err
		}
		for j, v := range t.Data[i] {
			if math.IsNaN(v) {
				continue
			}
			if err := set(excelFirstDataCol+j, row, v); err != nil {
				return err
			}
		}
	}

	if err := f.SetColWidth(sheet, "A", "A", excelVariableWidth); err != nil {
		return err
	}
	if err := f.SetColWidth(sheet, "B", "B", excelValueWidth); err != nil {
		return err
	}
	if len(t.Columns) == 0 {
		return nil
	}

	lastCol, err := excelize.ColumnNumberToName(excelFirstDataCol + len(t.Columns) - 1)
	if err != nil {
		return err
	}
	if err := f.SetColWidth(sheet, "C", lastCol, excelCellWidth); err != nil {
		return err
	}
	if err := f.SetCellStyle(sheet, "A1", fmt.Sprintf("%s2", lastCol), header); err != nil {
		return err
	}
	if len(t.Rows) > 0 {
		bottomRight := fmt.Sprintf("%s%d", lastCol, excelFirstDataRow+len(t.Rows)-1)
		if err := f.SetCellStyle(sheet, "C3", bottomRight, numbers); err != nil {
			return err
		}
	}
	return nil
}
