package template

import (
	"fmt"
	"io"

	"project_report_srv/internal/models"

	"github.com/xuri/excelize/v2"
)

// Layout of the substructure block on the SubStrukturer sheet.
const (
	SubstructureStartRow = 11
	SubstructureRowStep  = 3
	SubstructureFill     = "#FFFFCC"
)

// SubstructureColumns are the columns of the eight cost fields, in
// CostBreakdown order. The name goes to column B.
var SubstructureColumns = []string{"D", "F", "H", "J", "L", "N", "P", "R"}

// Border styles as numbered by excelize.
const (
	borderThin   = 1
	borderDotted = 4
	borderDouble = 6
)

const (
	styleEntryRow = "entry-row"
	styleName     = "name"
	styleData     = "data"
	styleTotal    = "total"
)

// XLSXFiller заполняет xlsx-шаблон отчёта данными проекта.
type XLSXFiller struct{}

// NewXLSX возвращает заполнитель XLSX.
func NewXLSX() XLSXFiller { return XLSXFiller{} }

// Fill открывает шаблон, заполняет его и возвращает сериализованную книгу.
// При любой ошибке частичный результат не возвращается.
func (x XLSXFiller) Fill(tmpl io.Reader, data models.ProjectReport) ([]byte, error) {
	f, err := excelize.OpenReader(tmpl)
	if err != nil {
		return nil, fmt.Errorf("open xlsx template: %w", err)
	}
	defer f.Close()

	if err := ValidateSheets(f); err != nil {
		return nil, err
	}

	styles, err := registerStyles(f)
	if err != nil {
		return nil, err
	}

	if err := BuildMapping(data).Apply(f, styles); err != nil {
		return nil, err
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("write xlsx: %w", err)
	}
	return buf.Bytes(), nil
}

// BuildMapping describes every cell the cost report writes.
func BuildMapping(data models.ProjectReport) Mapping {
	p := data.Project
	date := data.DateString()
	perArea := data.PerArea()

	m := Mapping{
		Values: []CellValue{
			{SheetProjectInfo, "B5", p.Name},
			{SheetProjectInfo, "B9", p.Code},
			{SheetProjectInfo, "E12", p.GrossArea},
			{SheetProjectInfo, "E14", p.Floors},
			{SheetProjectInfo, "E16", p.BuildingArea},

			{SheetTotalCost, "D5", p.Name},
			{SheetTotalCost, "L4", p.Code},
			{SheetTotalCost, "L5", date},
			{SheetTotalCost, "L6", p.GrossArea},

			{SheetSubstructures, "D5", p.Name},
			{SheetSubstructures, "O5", date},
		},
	}

	totalRows := []int{11, 13, 15, 17, 19, 21, 23, 31}
	totals := costFields(p.Cost)
	perAreaFields := costFields(perArea)
	for i, row := range totalRows {
		m.Values = append(m.Values,
			CellValue{SheetTotalCost, fmt.Sprintf("J%d", row), totals[i]},
			CellValue{SheetTotalCost, fmt.Sprintf("L%d", row), perAreaFields[i]},
		)
	}

	names := make([]string, 0, len(data.Substructures))
	row := SubstructureStartRow
	for _, s := range data.Substructures {
		names = append(names, s.Name)

		m.RowStyles = append(m.RowStyles, RowStyle{SheetSubstructures, row, styleEntryRow})

		nameCell := fmt.Sprintf("B%d", row)
		m.Values = append(m.Values, CellValue{SheetSubstructures, nameCell, s.Name})
		m.Styles = append(m.Styles, CellStyle{Sheet: SheetSubstructures, From: nameCell, Style: styleName})

		for i, value := range costFields(s.CostBreakdown) {
			cell := fmt.Sprintf("%s%d", SubstructureColumns[i], row)
			style := styleData
			if i == len(SubstructureColumns)-1 {
				style = styleTotal
			}
			m.Values = append(m.Values, CellValue{SheetSubstructures, cell, value})
			m.Styles = append(m.Styles, CellStyle{Sheet: SheetSubstructures, From: cell, Style: style})
		}

		m.Borders = append(m.Borders, CellBorder{
			Sheet:  SheetSubstructures,
			From:   fmt.Sprintf("B%d", row+1),
			To:     fmt.Sprintf("R%d", row+1),
			Border: excelize.Border{Type: "bottom", Color: "000000", Style: borderDotted},
		})

		row += SubstructureRowStep
	}

	if len(names) > 0 {
		m.FitColumns = append(m.FitColumns, FitColumn{SheetSubstructures, "B", names})
	}

	return m
}

func costFields(c models.CostBreakdown) []int64 {
	return []int64{c.Quantity, c.Unit, c.Material, c.Labor, c.Machine, c.Subcontract, c.Price, c.Total}
}

func registerStyles(f *excelize.File) (map[string]int, error) {
	boxed := func(style int) []excelize.Border {
		return []excelize.Border{
			{Type: "left", Color: "000000", Style: style},
			{Type: "top", Color: "000000", Style: style},
			{Type: "bottom", Color: "000000", Style: style},
			{Type: "right", Color: "000000", Style: style},
		}
	}
	fill := excelize.Fill{Type: "pattern", Color: []string{SubstructureFill}, Pattern: 1}
	centered := &excelize.Alignment{Horizontal: "center"}

	// Registration order fixes the style IDs written to styles.xml.
	defs := []struct {
		name  string
		style *excelize.Style
	}{
		{styleEntryRow, &excelize.Style{
			Font:      &excelize.Font{Bold: true},
			Alignment: centered,
		}},
		{styleName, &excelize.Style{
			Font:      &excelize.Font{Bold: true, Size: 12},
			Alignment: &excelize.Alignment{Horizontal: "left"},
		}},
		{styleData, &excelize.Style{
			Font:      &excelize.Font{Bold: true},
			Alignment: centered,
			Fill:      fill,
			Border:    boxed(borderThin),
		}},
		{styleTotal, &excelize.Style{
			Font:      &excelize.Font{Bold: true},
			Alignment: centered,
			Fill:      fill,
			Border:    boxed(borderDouble),
		}},
	}

	ids := make(map[string]int, len(defs))
	for _, def := range defs {
		id, err := f.NewStyle(def.style)
		if err != nil {
			return nil, fmt.Errorf("style %s: %w", def.name, err)
		}
		ids[def.name] = id
	}
	return ids, nil
}

// NewWorkbook creates an empty template with the three report worksheets and
// their captions.
func NewWorkbook() (*excelize.File, error) {
	f := excelize.NewFile()

	if err := f.SetSheetName("Sheet1", SheetProjectInfo); err != nil {
		f.Close()
		return nil, err
	}
	for _, name := range Sheets[1:] {
		if _, err := f.NewSheet(name); err != nil {
			f.Close()
			return nil, err
		}
	}

	captions := []CellValue{
		{SheetProjectInfo, "A5", "Projektnamn"},
		{SheetProjectInfo, "A9", "Projektkod"},
		{SheetProjectInfo, "D12", "Bruttoarea"},
		{SheetProjectInfo, "D14", "Antal våningar"},
		{SheetProjectInfo, "D16", "Byggnadsarea"},
		{SheetTotalCost, "C5", "Projekt"},
		{SheetTotalCost, "K4", "Projektkod"},
		{SheetTotalCost, "K5", "Datum"},
		{SheetTotalCost, "K6", "Bruttoarea"},
		{SheetTotalCost, "J9", "Totalt"},
		{SheetTotalCost, "L9", "Per m2"},
		{SheetSubstructures, "C5", "Projekt"},
		{SheetSubstructures, "N5", "Datum"},
		{SheetSubstructures, "B9", "Substruktur"},
	}
	labels := []string{"Mängd", "EnH", "Material", "Arbete", "Maskin", "UE", "Pris", "TOTAL"}
	for i, row := range []int{11, 13, 15, 17, 19, 21, 23, 31} {
		captions = append(captions, CellValue{SheetTotalCost, fmt.Sprintf("H%d", row), labels[i]})
	}
	for i, col := range SubstructureColumns {
		captions = append(captions, CellValue{SheetSubstructures, col + "9", labels[i]})
	}

	if err := (Mapping{Values: captions}).Apply(f, nil); err != nil {
		f.Close()
		return nil, err
	}
	return f, nil
}
