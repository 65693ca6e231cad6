package template

import (
	"fmt"

	"github.com/xuri/excelize/v2"
)

// Worksheet names of the cost report workbook.
const (
	SheetProjectInfo   = "ProjektInformation"
	SheetTotalCost     = "TotalKostnad"
	SheetSubstructures = "SubStrukturer"
)

// Sheets lists the worksheets a template must contain.
var Sheets = []string{SheetProjectInfo, SheetTotalCost, SheetSubstructures}

// CellValue assigns a value to an absolute cell address.
type CellValue struct {
	Sheet string
	Cell  string
	Value any
}

// CellStyle applies a registered style to a cell range.
type CellStyle struct {
	Sheet string
	From  string
	To    string
	Style string
}

// Mapping is a declarative description of what goes where in a workbook.
type Mapping struct {
	Values []CellValue
	Styles []CellStyle
	// RowStyles maps sheet rows to style names; applied before cell styles.
	RowStyles []RowStyle
	// Borders add a single border edge on top of whatever style a cell has.
	Borders []CellBorder
	// FitColumns lists columns whose width follows their widest value.
	FitColumns []FitColumn
}

// CellBorder sets one border edge across a range, keeping the rest of each
// cell's style.
type CellBorder struct {
	Sheet  string
	From   string
	To     string
	Border excelize.Border
}

// RowStyle applies a registered style to a whole row.
type RowStyle struct {
	Sheet string
	Row   int
	Style string
}

// FitColumn widens a column to fit the given values.
type FitColumn struct {
	Sheet  string
	Column string
	Values []string
}

// Apply writes the mapping into f. styles resolves style names to excelize
// style IDs.
func (m Mapping) Apply(f *excelize.File, styles map[string]int) error {
	for _, s := range m.RowStyles {
		id, ok := styles[s.Style]
		if !ok {
			return fmt.Errorf("unknown style %q", s.Style)
		}
		if err := f.SetRowStyle(s.Sheet, s.Row, s.Row, id); err != nil {
			return fmt.Errorf("style row %s!%d: %w", s.Sheet, s.Row, err)
		}
	}

	for _, v := range m.Values {
		if err := f.SetCellValue(v.Sheet, v.Cell, v.Value); err != nil {
			return fmt.Errorf("set %s!%s: %w", v.Sheet, v.Cell, err)
		}
	}

	for _, s := range m.Styles {
		id, ok := styles[s.Style]
		if !ok {
			return fmt.Errorf("unknown style %q", s.Style)
		}
		to := s.To
		if to == "" {
			to = s.From
		}
		if err := f.SetCellStyle(s.Sheet, s.From, to, id); err != nil {
			return fmt.Errorf("style %s!%s:%s: %w", s.Sheet, s.From, to, err)
		}
	}

	for _, b := range m.Borders {
		if err := mergeBorder(f, b); err != nil {
			return err
		}
	}

	for _, c := range m.FitColumns {
		if err := fitColumn(f, c); err != nil {
			return err
		}
	}

	return nil
}

func mergeBorder(f *excelize.File, b CellBorder) error {
	fromCol, fromRow, err := excelize.CellNameToCoordinates(b.From)
	if err != nil {
		return err
	}
	toCol, toRow, err := excelize.CellNameToCoordinates(b.To)
	if err != nil {
		return err
	}

	for row := fromRow; row <= toRow; row++ {
		for col := fromCol; col <= toCol; col++ {
			cell, err := excelize.CoordinatesToCellName(col, row)
			if err != nil {
				return err
			}

			id, err := f.GetCellStyle(b.Sheet, cell)
			if err != nil {
				return fmt.Errorf("style of %s!%s: %w", b.Sheet, cell, err)
			}
			style, err := f.GetStyle(id)
			if err != nil {
				return fmt.Errorf("style %d: %w", id, err)
			}

			borders := make([]excelize.Border, 0, len(style.Border)+1)
			for _, existing := range style.Border {
				if existing.Type != b.Border.Type {
					borders = append(borders, existing)
				}
			}
			style.Border = append(borders, b.Border)

			merged, err := f.NewStyle(style)
			if err != nil {
				return fmt.Errorf("border style: %w", err)
			}
			if err := f.SetCellStyle(b.Sheet, cell, cell, merged); err != nil {
				return fmt.Errorf("border %s!%s: %w", b.Sheet, cell, err)
			}
		}
	}
	return nil
}

// fitColumn approximates autofit: excelize has no layout engine, so the width
// is derived from the longest value in characters.
func fitColumn(f *excelize.File, c FitColumn) error {
	current, err := f.GetColWidth(c.Sheet, c.Column)
	if err != nil {
		return fmt.Errorf("column width %s!%s: %w", c.Sheet, c.Column, err)
	}

	width := current
	for _, v := range c.Values {
		if w := float64(len([]rune(v))) + 2; w > width {
			width = w
		}
	}
	if width == current {
		return nil
	}

	if err := f.SetColWidth(c.Sheet, c.Column, c.Column, width); err != nil {
		return fmt.Errorf("set column width %s!%s: %w", c.Sheet, c.Column, err)
	}
	return nil
}

// ValidateSheets checks that every required worksheet exists.
func ValidateSheets(f *excelize.File) error {
	for _, name := range Sheets {
		idx, err := f.GetSheetIndex(name)
		if err != nil {
			return fmt.Errorf("worksheet %s: %w", name, err)
		}
		if idx < 0 {
			return fmt.Errorf("worksheet %s not found in template", name)
		}
	}
	return nil
}
