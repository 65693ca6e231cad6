package pdf

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"time"

	"project_report_srv/internal/config"
)

// Report page size in points.
const (
	PageWidthPt  = 657.6
	PageHeightPt = 842.4
)

// PageWidthInches and PageHeightInches are the page size as Chromium expects it.
const (
	PageWidthInches  = PageWidthPt / 72
	PageHeightInches = PageHeightPt / 72
)

// Engine renders an HTML document into PDF bytes.
type Engine interface {
	Render(ctx context.Context, html string) ([]byte, error)
}

// EngineFunc adapts a function to an Engine.
type EngineFunc func(ctx context.Context, html string) ([]byte, error)

func (f EngineFunc) Render(ctx context.Context, html string) ([]byte, error) {
	if f == nil {
		return nil, errors.New("pdf engine func is nil")
	}
	return f(ctx, html)
}

// New builds the engine selected in the configuration.
func New(cfg config.PDF) (Engine, error) {
	switch cfg.Engine {
	case config.PDFEngineChromium:
		return &ChromiumEngine{
			BrowserPath: cfg.BrowserPath,
			Headless:    true,
			Timeout:     cfg.Timeout,
		}, nil
	case config.PDFEngineWKHTMLTOPDF:
		return WKHTMLTOPDFEngine{
			Command: cfg.WKHTMLTOPDFPath,
			Timeout: cfg.Timeout,
		}, nil
	default:
		return nil, fmt.Errorf("unsupported pdf engine: %s", cfg.Engine)
	}
}

// WKHTMLTOPDFEngine invokes wkhtmltopdf, piping HTML through stdin and reading
// the PDF from stdout.
type WKHTMLTOPDFEngine struct {
	Command string
	Args    []string
	Env     []string
	Timeout time.Duration
}

// PageArgs returns the page size flags for wkhtmltopdf.
func PageArgs() []string {
	return []string{
		"--page-width", fmt.Sprintf("%.2fmm", PageWidthPt*25.4/72),
		"--page-height", fmt.Sprintf("%.2fmm", PageHeightPt*25.4/72),
		"--print-media-type",
		"--quiet",
	}
}

func (e WKHTMLTOPDFEngine) Render(ctx context.Context, html string) ([]byte, error) {
	cmdPath := strings.TrimSpace(e.Command)
	if cmdPath == "" {
		cmdPath = "wkhtmltopdf"
	}
	if ctx == nil {
		ctx = context.Background()
	}
	cmdCtx := ctx
	if e.Timeout > 0 {
		var cancel context.CancelFunc
		cmdCtx, cancel = context.WithTimeout(ctx, e.Timeout)
		defer cancel()
	}

	args := append(PageArgs(), e.Args...)
	args = append(args, "-", "-")
	cmd := exec.CommandContext(cmdCtx, cmdPath, args...)
	if len(e.Env) > 0 {
		cmd.Env = append(os.Environ(), e.Env...)
	}
	cmd.Stdin = strings.NewReader(html)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		message := strings.TrimSpace(stderr.String())
		if message == "" {
			message = "wkhtmltopdf failed"
		}
		return nil, fmt.Errorf("%s: %w", message, err)
	}
	if stdout.Len() == 0 {
		return nil, errors.New("wkhtmltopdf produced no output")
	}
	return stdout.Bytes(), nil
}
