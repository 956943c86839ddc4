package render

import (
	"context"
	"errors"

	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/chromedp"
)

// millimetres to PrintToPDF inches.
const mmToInch = 1.0 / 25.4

// ChromeEngine renders markup with a headless Chromium via the DevTools
// protocol. Each engine owns one browser context and is closed after use.
type ChromeEngine struct {
	allocCancel context.CancelFunc
	ctxCancel   context.CancelFunc
	ctx         context.Context
}

// ChromeFactory returns an EngineFactory launching the Chromium binary at
// execPath. An empty path uses chromedp's default lookup.
func ChromeFactory(execPath string) EngineFactory {
	return func(ctx context.Context) (Engine, error) {
		opts := append([]chromedp.ExecAllocatorOption{}, chromedp.DefaultExecAllocatorOptions[:]...)
		opts = append(opts,
			chromedp.NoSandbox,
			chromedp.Flag("disable-gpu", true),
			chromedp.Flag("hide-scrollbars", true),
		)
		if execPath != "" {
			opts = append(opts, chromedp.ExecPath(execPath))
		}
		allocCtx, allocCancel := chromedp.NewExecAllocator(ctx, opts...)
		browserCtx, ctxCancel := chromedp.NewContext(allocCtx)
		return &ChromeEngine{
			allocCancel: allocCancel,
			ctxCancel:   ctxCancel,
			ctx:         browserCtx,
		}, nil
	}
}

// RenderPDF loads the markup into a blank page and prints it as an A4 PDF
// with the same layout the service always produced: print background on,
// 20mm vertical and 15mm horizontal margins.
func (e *ChromeEngine) RenderPDF(ctx context.Context, html string) ([]byte, error) {
	if html == "" {
		return nil, errors.New("empty markup")
	}

	var pdf []byte
	err := chromedp.Run(e.ctx,
		chromedp.Navigate("about:blank"),
		chromedp.ActionFunc(func(ctx context.Context) error {
			tree, err := page.GetFrameTree().Do(ctx)
			if err != nil {
				return err
			}
			return page.SetDocumentContent(tree.Frame.ID, html).Do(ctx)
		}),
		chromedp.ActionFunc(func(ctx context.Context) error {
			var err error
			pdf, _, err = page.PrintToPDF().
				WithPrintBackground(true).
				WithPaperWidth(210 * mmToInch).
				WithPaperHeight(297 * mmToInch).
				WithMarginTop(20 * mmToInch).
				WithMarginBottom(20 * mmToInch).
				WithMarginLeft(15 * mmToInch).
				WithMarginRight(15 * mmToInch).
				Do(ctx)
			return err
		}),
	)
	if err != nil {
		return nil, err
	}
	return pdf, nil
}

// Close tears down the browser context and its allocator.
func (e *ChromeEngine) Close() error {
	e.ctxCancel()
	e.allocCancel()
	return nil
}
