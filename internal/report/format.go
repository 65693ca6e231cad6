package report

import (
	"fmt"
	"strings"
	"time"

	"project_report_srv/internal/models"
)

// Format is the output format of a report.
type Format string

const (
	FormatXLSX Format = "xlsx"
	FormatPDF  Format = "pdf"
)

// Extension returns the file extension produced for the format.
func (f Format) Extension() string {
	return string(f)
}

// ContentType returns the MIME type of files in the format.
func (f Format) ContentType() string {
	switch f {
	case FormatXLSX:
		return "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	case FormatPDF:
		return "application/pdf"
	default:
		return "application/octet-stream"
	}
}

// DefaultNamePrefix prefixes generated report names.
const DefaultNamePrefix = "ProjektRapport-"

var (
	// ErrMissingFormat is returned when the format query parameter is absent.
	ErrMissingFormat = NewError(KindBadRequest,
		"Please specify a file format (pdf || xlsx) via the 'format' query parameter.", nil)
)

// Request is a resolved report request.
type Request struct {
	ProjectID string
	Format    Format
	BaseName  string
}

// FileName is the base name suffixed with the extension.
func (r Request) FileName() string {
	return r.BaseName + "." + r.Format.Extension()
}

// ParseFormat normalises a format value. "excel" and "xlsx" both map to xlsx.
func ParseFormat(raw string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "excel", "xlsx":
		return FormatXLSX, nil
	case "pdf":
		return FormatPDF, nil
	default:
		return "", NewError(KindBadRequest, fmt.Sprintf("Format not supported: %s", raw), nil)
	}
}

// ResolveName returns the caller's name without spaces, or the dated default.
func ResolveName(name string, now time.Time) string {
	if name == "" {
		return DefaultNamePrefix + now.Format(models.DateLayout)
	}
	return strings.ReplaceAll(name, " ", "")
}

// Resolve builds a request from the raw query values. present reports whether
// the format parameter was supplied at all.
func Resolve(projectID, format string, present bool, name string, now time.Time) (Request, error) {
	if !present {
		return Request{}, ErrMissingFormat
	}

	f, err := ParseFormat(format)
	if err != nil {
		return Request{}, err
	}

	return Request{
		ProjectID: projectID,
		Format:    f,
		BaseName:  ResolveName(name, now),
	}, nil
}
