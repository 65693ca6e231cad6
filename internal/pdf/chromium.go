package pdf

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/chromedp"
)

// ChromiumEngine renders PDFs in tabs of one shared headless Chromium.
// The browser is started on first use.
type ChromiumEngine struct {
	BrowserPath string
	Headless    bool
	Timeout     time.Duration
	Args        []string

	initOnce      sync.Once
	allocCtx      context.Context
	allocCancel   context.CancelFunc
	browserCtx    context.Context
	browserCancel context.CancelFunc
}

func (e *ChromiumEngine) Render(ctx context.Context, html string) ([]byte, error) {
	if e == nil {
		return nil, errors.New("chromium engine is nil")
	}
	if ctx == nil {
		ctx = context.Background()
	}
	if err := e.ensureBrowser(); err != nil {
		return nil, fmt.Errorf("chromium engine init failed: %w", err)
	}

	tabCtx, cancel := chromedp.NewContext(e.browserCtx)
	defer cancel()

	// The tab lives under the browser context, so the request context is
	// forwarded by hand.
	execCtx, cancelReq := context.WithCancel(tabCtx)
	defer cancelReq()
	go func() {
		select {
		case <-ctx.Done():
			cancelReq()
		case <-execCtx.Done():
		}
	}()

	if e.Timeout > 0 {
		var cancelTimeout context.CancelFunc
		execCtx, cancelTimeout = context.WithTimeout(execCtx, e.Timeout)
		defer cancelTimeout()
	}

	var pdf []byte
	err := chromedp.Run(execCtx,
		chromedp.Navigate("about:blank"),
		chromedp.ActionFunc(func(ctx context.Context) error {
			tree, err := page.GetFrameTree().Do(ctx)
			if err != nil {
				return err
			}
			return page.SetDocumentContent(tree.Frame.ID, html).Do(ctx)
		}),
		chromedp.WaitReady("body", chromedp.ByQuery),
		chromedp.ActionFunc(func(ctx context.Context) error {
			var err error
			pdf, _, err = PrintParams().Do(ctx)
			return err
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("chromium pdf render failed: %w", err)
	}
	return pdf, nil
}

// PrintParams are the print settings of the report page.
func PrintParams() *page.PrintToPDFParams {
	return page.PrintToPDF().
		WithPaperWidth(PageWidthInches).
		WithPaperHeight(PageHeightInches).
		WithPrintBackground(true).
		WithScale(1.0)
}

// Close releases the browser if it was started.
func (e *ChromiumEngine) Close() error {
	if e == nil {
		return nil
	}
	if e.browserCancel != nil {
		e.browserCancel()
	}
	if e.allocCancel != nil {
		e.allocCancel()
	}
	return nil
}

func (e *ChromiumEngine) ensureBrowser() error {
	e.initOnce.Do(func() {
		options := append([]chromedp.ExecAllocatorOption{}, chromedp.DefaultExecAllocatorOptions[:]...)
		if e.BrowserPath != "" {
			options = append(options, chromedp.ExecPath(e.BrowserPath))
		}
		options = append(options, chromedp.Flag("headless", e.Headless))
		for _, arg := range e.Args {
			options = append(options, chromedp.Flag(arg, true))
		}

		e.allocCtx, e.allocCancel = chromedp.NewExecAllocator(context.Background(), options...)
		e.browserCtx, e.browserCancel = chromedp.NewContext(e.allocCtx)
	})
	if e.allocCtx == nil || e.browserCtx == nil {
		return errors.New("chromium allocator unavailable")
	}
	return nil
}
