package crawl

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"path"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/poiesic/finrag/core"
)

// pdfAttachmentSelector marks the file field rendered for PDF uploads.
const pdfAttachmentSelector = "span.file--mime-application-pdf"

// Resolver follows a filing's report-type link to its PDF attachment.
type Resolver struct {
	session *Session
	logger  *slog.Logger
}

// NewResolver creates a resolver sharing the crawler's session.
func NewResolver(session *Session) (*Resolver, error) {
	if session == nil {
		return nil, ErrSessionRequired
	}
	return &Resolver{
		session: session,
		logger:  session.logger.With("component", "report-resolver"),
	}, nil
}

// Resolve fetches the report page of record and returns the attached PDF.
// A page without an attachment yields core.ErrUnresolvableLink; a page that
// cannot be fetched yields core.ErrFetchFailed.
func (r *Resolver) Resolve(ctx context.Context, record core.FilingRecord) (*core.ResolvedDocument, error) {
	if !record.HasReportLink() {
		return nil, fmt.Errorf("%w: record has no report link", core.ErrUnresolvableLink)
	}

	doc, err := r.session.document(ctx, record.ReportTypeLink)
	if err != nil {
		return nil, err
	}

	pageURL, err := url.Parse(record.ReportTypeLink)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", core.ErrUnresolvableLink, err)
	}

	docURL, name, ok := FindAttachment(doc, pageURL)
	if !ok {
		return nil, fmt.Errorf("%w: %s", core.ErrUnresolvableLink, record.ReportTypeLink)
	}

	r.logger.Debug("resolved report", "issuer", record.Issuer, "year", record.Year, "url", docURL)
	return &core.ResolvedDocument{
		Filing: record,
		URL:    docURL,
		Name:   name,
	}, nil
}

// FindAttachment locates the first PDF attachment anchor on a report page and
// returns its absolute URL and display name. Blank anchor text falls back to
// the last segment of the URL path.
func FindAttachment(doc *goquery.Document, pageURL *url.URL) (docURL, name string, ok bool) {
	var anchor *goquery.Selection
	doc.Find(pdfAttachmentSelector).EachWithBreak(func(_ int, span *goquery.Selection) bool {
		a := span.Find("a[href]").First()
		if a.Length() == 0 {
			return true
		}
		anchor = a
		return false
	})
	if anchor == nil {
		return "", "", false
	}

	href, _ := anchor.Attr("href")
	if strings.TrimSpace(href) == "" {
		return "", "", false
	}
	docURL, err := resolve(pageURL, href)
	if err != nil {
		return "", "", false
	}

	name = strings.Join(strings.Fields(anchor.Text()), " ")
	if name == "" {
		name = nameFromURL(docURL)
	}
	if name == "" {
		return "", "", false
	}
	return docURL, name, true
}

func nameFromURL(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return ""
	}
	base := path.Base(u.Path)
	if base == "." || base == "/" {
		return ""
	}
	return base
}
