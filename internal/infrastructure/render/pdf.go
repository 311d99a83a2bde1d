package render

import (
	"context"
	"errors"
	"fmt"
	"html"
	"strings"
	"time"

	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/chromedp"
	"github.com/franchise/kpireport/internal/application/report"
	"go.uber.org/zap"
)

// Ensure PDFExporter implements report.PDFExporter
var _ report.PDFExporter = (*PDFExporter)(nil)

const (
	defaultPDFTimeout = 60 * time.Second
	defaultScale      = 1.0

	// US letter, landscape
	letterWidthMM  = 215.9
	letterHeightMM = 279.4
	pageMarginMM   = 10.0

	footerTemplate = `<div style="font-size:8px;width:100%;text-align:center;color:#666;">` +
		`Page <span class="pageNumber"></span> of <span class="totalPages"></span></div>`
)

// Error codes for PDF export failures
const (
	ErrCodeRenderTimeout = "RENDER_TIMEOUT"
	ErrCodeRenderFailed  = "RENDER_FAILED"
	ErrCodeInvalidHTML   = "INVALID_HTML"
)

// RenderError represents an error during PDF export
type RenderError struct {
	Code    string
	Message string
	Cause   error
}

func (e *RenderError) Error() string {
	if e.Cause != nil {
		return e.Message + ": " + e.Cause.Error()
	}
	return e.Message
}

func (e *RenderError) Unwrap() error {
	return e.Cause
}

// NewRenderError creates a new RenderError
func NewRenderError(code, message string, cause error) *RenderError {
	return &RenderError{
		Code:    code,
		Message: message,
		Cause:   cause,
	}
}

// ChromedpConfig contains configuration for the PDF exporter
type ChromedpConfig struct {
	// Timeout bounds one export
	Timeout time.Duration
	// RemoteURL is the DevTools websocket URL of a running Chrome (optional).
	// If empty, a headless browser is launched per exporter.
	RemoteURL string
	// NoSandbox runs Chrome without sandbox (required for Docker/root)
	NoSandbox bool
	// Scale for rendering (default: 1.0)
	Scale  float64
	Logger *zap.Logger
}

// PDFExporter prints HTML to PDF through the Chrome DevTools Protocol
type PDFExporter struct {
	config      ChromedpConfig
	logger      *zap.Logger
	allocCtx    context.Context
	allocCancel context.CancelFunc
}

// NewPDFExporter creates a chromedp-based exporter. The browser itself starts lazily
// on the first Export.
func NewPDFExporter(config ChromedpConfig) *PDFExporter {
	if config.Timeout <= 0 {
		config.Timeout = defaultPDFTimeout
	}
	if config.Scale == 0 {
		config.Scale = defaultScale
	}
	logger := config.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	e := &PDFExporter{config: config, logger: logger}
	if config.RemoteURL != "" {
		e.allocCtx, e.allocCancel = chromedp.NewRemoteAllocator(context.Background(), config.RemoteURL)
		return e
	}

	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", true),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("no-first-run", true),
		chromedp.Flag("disable-extensions", true),
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.Flag("disable-background-networking", true),
		chromedp.Flag("font-render-hinting", "none"),
	)
	if config.NoSandbox {
		opts = append(opts, chromedp.NoSandbox)
	}
	e.allocCtx, e.allocCancel = chromedp.NewExecAllocator(context.Background(), opts...)
	return e
}

// Export implements report.PDFExporter
func (e *PDFExporter) Export(ctx context.Context, htmlDoc, title string) ([]byte, error) {
	if strings.TrimSpace(htmlDoc) == "" {
		return nil, NewRenderError(ErrCodeInvalidHTML, "HTML content is empty", nil)
	}

	start := time.Now()
	ctx, cancel := context.WithTimeout(ctx, e.config.Timeout)
	defer cancel()

	browserCtx, browserCancel := chromedp.NewContext(e.allocCtx,
		chromedp.WithLogf(func(format string, args ...any) {
			e.logger.Debug(fmt.Sprintf(format, args...))
		}),
	)
	defer browserCancel()

	// Tie the browser tab to the caller's deadline
	stop := context.AfterFunc(ctx, browserCancel)
	defer stop()

	content := buildCompleteHTML(htmlDoc, title)
	params := e.buildPrintParams()

	var pdfData []byte
	err := chromedp.Run(browserCtx,
		chromedp.Navigate("about:blank"),
		chromedp.ActionFunc(func(ctx context.Context) error {
			frameTree, err := page.GetFrameTree().Do(ctx)
			if err != nil {
				return err
			}
			return page.SetDocumentContent(frameTree.Frame.ID, content).Do(ctx)
		}),
		chromedp.ActionFunc(func(ctx context.Context) error {
			data, _, err := params.Do(ctx)
			if err != nil {
				return err
			}
			pdfData = data
			return nil
		}),
	)
	if err != nil {
		switch {
		case errors.Is(ctx.Err(), context.DeadlineExceeded):
			return nil, NewRenderError(ErrCodeRenderTimeout,
				fmt.Sprintf("PDF export timed out after %v", e.config.Timeout), err)
		case errors.Is(ctx.Err(), context.Canceled):
			return nil, NewRenderError(ErrCodeRenderTimeout, "PDF export was cancelled", err)
		}
		return nil, NewRenderError(ErrCodeRenderFailed, "chromedp execution failed", err)
	}
	if len(pdfData) == 0 {
		return nil, NewRenderError(ErrCodeRenderFailed, "generated PDF is empty", nil)
	}

	e.logger.Debug("PDF exported",
		zap.Int("bytes", len(pdfData)),
		zap.Duration("duration", time.Since(start)),
	)
	return pdfData, nil
}

// buildPrintParams prints landscape letter with page numbers in the footer
func (e *PDFExporter) buildPrintParams() *page.PrintToPDFParams {
	margin := mmToInches(pageMarginMM)
	return page.PrintToPDF().
		WithPrintBackground(true).
		WithLandscape(true).
		WithPaperWidth(mmToInches(letterWidthMM)).
		WithPaperHeight(mmToInches(letterHeightMM)).
		WithMarginTop(margin).
		WithMarginRight(margin).
		WithMarginBottom(margin).
		WithMarginLeft(margin).
		WithScale(e.config.Scale).
		WithDisplayHeaderFooter(true).
		WithHeaderTemplate("<span></span>").
		WithFooterTemplate(footerTemplate)
}

// buildCompleteHTML wraps a fragment in a full document; complete documents pass through
func buildCompleteHTML(content, title string) string {
	lower := strings.ToLower(content)
	if strings.Contains(lower, "<!doctype") || strings.Contains(lower, "<html") {
		return content
	}

	var b strings.Builder
	b.WriteString(`<!DOCTYPE html><html><head><meta charset="UTF-8">`)
	if title != "" {
		b.WriteString("<title>")
		b.WriteString(html.EscapeString(title))
		b.WriteString("</title>")
	}
	b.WriteString("</head><body>")
	b.WriteString(content)
	b.WriteString("</body></html>")
	return b.String()
}

// Close shuts the browser allocator down
func (e *PDFExporter) Close() error {
	if e.allocCancel != nil {
		e.allocCancel()
	}
	return nil
}

func mmToInches(mm float64) float64 {
	return mm / 25.4
}
