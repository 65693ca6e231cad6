package template

import (
	"fmt"
	"html"
	"io"
	"os"
	"strconv"
	"strings"

	"project_report_srv/internal/models"

	"github.com/valyala/fasttemplate"
)

// Placeholder delimiters, e.g. {{{projectName}}}.
const (
	TagStart = "{{{"
	TagEnd   = "}}}"
)

// RowsToken is the main template token replaced by the rendered substructure rows.
const RowsToken = "substructureRows"

// HTMLFiller fills the PDF HTML template and its per-row sub-template.
type HTMLFiller struct {
	MainPath string
	RowPath  string
}

// Fill reads both templates and returns the fully substituted HTML.
func (h HTMLFiller) Fill(data models.ProjectReport) (string, error) {
	main, err := os.ReadFile(h.MainPath)
	if err != nil {
		return "", fmt.Errorf("read html template: %w", err)
	}
	row, err := os.ReadFile(h.RowPath)
	if err != nil {
		return "", fmt.Errorf("read row template: %w", err)
	}
	return RenderHTML(string(main), string(row), data)
}

// RenderHTML substitutes the project values into main, rendering row once per
// substructure.
func RenderHTML(main, row string, data models.ProjectReport) (string, error) {
	var rows strings.Builder
	for _, s := range data.Substructures {
		rendered, err := Substitute(row, RowValues(s))
		if err != nil {
			return "", fmt.Errorf("substructure %s: %w", s.Name, err)
		}
		rows.WriteString(rendered)
	}

	values := ProjectValues(data)
	values[RowsToken] = rows.String()
	return Substitute(main, values)
}

// Substitute replaces every {{{token}}} in tmpl in a single pass. Values are
// inserted verbatim and never rescanned. An unknown token is an error.
func Substitute(tmpl string, values map[string]string) (string, error) {
	return fasttemplate.ExecuteFuncStringWithErr(tmpl, TagStart, TagEnd, func(w io.Writer, tag string) (int, error) {
		v, ok := values[tag]
		if !ok {
			return 0, fmt.Errorf("unresolved placeholder %s%s%s", TagStart, tag, TagEnd)
		}
		return w.Write([]byte(v))
	})
}

// ProjectValues maps the main template tokens to their values. Text fields
// are HTML-escaped.
func ProjectValues(data models.ProjectReport) map[string]string {
	p := data.Project
	total := p.Cost
	perArea := data.PerArea()

	return map[string]string{
		"projectName":   html.EscapeString(p.Name),
		"projectCode":   html.EscapeString(p.Code),
		"bruttoarea":    itoa(p.GrossArea),
		"antalVaningar": itoa(p.Floors),
		"byggnadsarea":  itoa(p.BuildingArea),
		"date":          data.DateString(),

		"totaltMangd":    itoa(total.Quantity),
		"totaltEnh":      itoa(total.Unit),
		"totaltMaterial": itoa(total.Material),
		"totaltArbete":   itoa(total.Labor),
		"totaltMaskin":   itoa(total.Machine),
		"totaltUe":       itoa(total.Subcontract),
		"totaltPris":     itoa(total.Price),
		"totaltTotal":    itoa(total.Total),

		"m2Mangd":    itoa(perArea.Quantity),
		"m2Enh":      itoa(perArea.Unit),
		"m2Material": itoa(perArea.Material),
		"m2Arbete":   itoa(perArea.Labor),
		"m2Maskin":   itoa(perArea.Machine),
		"m2Ue":       itoa(perArea.Subcontract),
		"m2Pris":     itoa(perArea.Price),
		"m2Total":    itoa(perArea.Total),
	}
}

// RowValues maps the row template tokens to one substructure.
func RowValues(s models.Substructure) map[string]string {
	return map[string]string{
		"substructureName":     html.EscapeString(s.Name),
		"substructureMangd":    itoa(s.Quantity),
		"substructureEnh":      itoa(s.Unit),
		"substructureMaterial": itoa(s.Material),
		"substructureArbete":   itoa(s.Labor),
		"substructureMaskin":   itoa(s.Machine),
		"substructureUe":       itoa(s.Subcontract),
		"substructurePris":     itoa(s.Price),
		"substructureTotal":    itoa(s.Total),
	}
}

func itoa(v int64) string {
	return strconv.FormatInt(v, 10)
}
