package extract

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/ledongthuc/pdf"
	"github.com/poiesic/finrag/core"
)

// pageSource abstracts a paginated document; pages are numbered from 1.
type pageSource interface {
	NumPage() int
	PageText(n int) (string, error)
}

type pdfSource struct {
	reader *pdf.Reader
}

func (s *pdfSource) NumPage() int {
	return s.reader.NumPage()
}

func (s *pdfSource) PageText(n int) (string, error) {
	page := s.reader.Page(n)
	if page.V.IsNull() {
		return "", fmt.Errorf("page %d not found", n)
	}
	return page.GetPlainText(nil)
}

// Extractor recovers plain text from downloaded PDF documents page by page.
type Extractor struct {
	logger *slog.Logger
}

// Option configures an Extractor.
type Option func(*Extractor)

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(e *Extractor) {
		if logger == nil {
			logger = slog.Default()
		}
		e.logger = logger
	}
}

// NewExtractor creates a PDF text extractor.
func NewExtractor(opts ...Option) *Extractor {
	e := &Extractor{logger: slog.Default()}
	for _, opt := range opts {
		opt(e)
	}
	e.logger = e.logger.With("component", "text-extractor")
	return e
}

// Extract opens the fetched file and joins the text of every page that could
// be read, in page order, with newlines. Failing pages are logged and
// skipped. An unopenable file yields core.ErrExtractionFailed and a document
// without any text yields core.ErrEmptyText.
func (e *Extractor) Extract(ctx context.Context, file *core.FetchedFile) (*core.ExtractedText, error) {
	f, reader, err := openPDF(file.Path)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", core.ErrExtractionFailed, file.Path, err)
	}
	defer f.Close()

	text, err := e.extractPages(ctx, &pdfSource{reader: reader}, file.Document.Name)
	if err != nil {
		return nil, err
	}
	if text.IsBlank() {
		return nil, fmt.Errorf("%w: %s", core.ErrEmptyText, file.Document.Name)
	}
	return text, nil
}

type closer interface{ Close() error }

// openPDF wraps pdf.Open, which panics on some malformed trailers.
func openPDF(path string) (f closer, r *pdf.Reader, err error) {
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("malformed pdf: %v", p)
		}
	}()
	file, reader, err := pdf.Open(path)
	if err != nil {
		return nil, nil, err
	}
	return file, reader, nil
}

func (e *Extractor) extractPages(ctx context.Context, src pageSource, name string) (*core.ExtractedText, error) {
	result := &core.ExtractedText{Pages: src.NumPage()}
	texts := make([]string, 0, result.Pages)

	for n := 1; n <= result.Pages; n++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		text, err := safePageText(src, n)
		if err != nil {
			e.logger.Warn("skipping unreadable page", "document", name, "page", n, "err", err)
			result.FailedPages = append(result.FailedPages, n)
			continue
		}
		if strings.TrimSpace(text) == "" {
			continue
		}
		texts = append(texts, text)
	}

	result.Text = strings.Join(texts, "\n")
	if len(result.FailedPages) > 0 {
		e.logger.Info("partial extraction", "document", name,
			"pages", result.Pages, "failed", len(result.FailedPages))
	}
	return result, nil
}

// safePageText converts decoder panics on corrupt content streams into errors.
func safePageText(src pageSource, n int) (text string, err error) {
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("page %d: %v", n, p)
		}
	}()
	return src.PageText(n)
}
