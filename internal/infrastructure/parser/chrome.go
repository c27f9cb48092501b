package parser

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/chromedp"

	"PDFLibraryBot/internal/config"
)

const defaultRenderTimeout = 60 * time.Second

// paper sizes in inches
var paperSizes = map[string][2]float64{
	"A4":     {8.27, 11.69},
	"LETTER": {8.5, 11},
	"A5":     {5.83, 8.27},
}

// ChromeRenderer implements Renderer with a headless Chrome driven over CDP.
type ChromeRenderer struct {
	execPath string
	timeout  time.Duration
	width    float64
	height   float64
}

var _ Renderer = (*ChromeRenderer)(nil)

// NewChromeRenderer builds a renderer from configuration.
func NewChromeRenderer(cfg config.ParserConfig) *ChromeRenderer {
	size, ok := paperSizes[strings.ToUpper(strings.TrimSpace(cfg.PaperFormat))]
	if !ok {
		size = paperSizes["A4"]
	}
	timeout := cfg.RenderTimeout
	if timeout <= 0 {
		timeout = defaultRenderTimeout
	}
	return &ChromeRenderer{
		execPath: cfg.ChromePath,
		timeout:  timeout,
		width:    size[0],
		height:   size[1],
	}
}

// Render starts a fresh browser, waits for the page body and prints it.
func (r *ChromeRenderer) Render(ctx context.Context, pageURL string) ([]byte, string, error) {
	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.NoSandbox,
		chromedp.DisableGPU,
		chromedp.UserAgent(userAgent),
	)
	if r.execPath != "" {
		opts = append(opts, chromedp.ExecPath(r.execPath))
	}

	allocCtx, cancelAlloc := chromedp.NewExecAllocator(ctx, opts...)
	defer cancelAlloc()

	browserCtx, cancelBrowser := chromedp.NewContext(allocCtx)
	defer cancelBrowser()

	runCtx, cancel := context.WithTimeout(browserCtx, r.timeout)
	defer cancel()

	var (
		title string
		data  []byte
	)
	err := chromedp.Run(runCtx,
		chromedp.Navigate(pageURL),
		chromedp.WaitReady("body", chromedp.ByQuery),
		chromedp.Title(&title),
		chromedp.ActionFunc(func(ctx context.Context) error {
			buf, _, err := page.PrintToPDF().
				WithPrintBackground(true).
				WithPaperWidth(r.width).
				WithPaperHeight(r.height).
				WithMarginTop(0.4).
				WithMarginBottom(0.4).
				Do(ctx)
			if err != nil {
				return err
			}
			data = buf
			return nil
		}),
	)
	if err != nil {
		return nil, "", fmt.Errorf("chrome render %s: %w", pageURL, err)
	}
	return data, title, nil
}
