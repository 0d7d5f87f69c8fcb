package crawl

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/poiesic/finrag/core"
	"golang.org/x/time/rate"
)

// Listing table cell markers.
const (
	issuerCellSelector     = "td.views-field-field-emetteur"
	yearCellSelector       = "td.views-field-field-annee"
	reportTypeCellSelector = "td.views-field-field-type-rapp-ef-em"
)

var (
	// ErrBaseURLRequired is returned when a Crawler is created without a listing URL.
	ErrBaseURLRequired = errors.New("listing base url required")

	// ErrSessionRequired is returned when a nil Session is passed to a constructor.
	ErrSessionRequired = errors.New("session required")
)

// PageFunc receives each listing page in index order.
// Returning an error stops the walk.
type PageFunc func(ctx context.Context, page *core.ListingPage) error

// Crawler walks the paginated filings listing.
type Crawler struct {
	session *Session
	baseURL string
	pages   int
	delay   time.Duration
	robots  *RobotsPolicy
	logger  *slog.Logger
}

// CrawlerOption configures a Crawler.
type CrawlerOption func(*Crawler) error

// WithPageDelay sets the pause between the end of one page's work and the
// fetch of the next page. Zero disables the pause.
func WithPageDelay(delay time.Duration) CrawlerOption {
	return func(c *Crawler) error {
		if delay < 0 {
			return fmt.Errorf("page delay cannot be negative: %s", delay)
		}
		c.delay = delay
		return nil
	}
}

// WithRobots makes the crawler skip listing pages the policy disallows.
func WithRobots(policy *RobotsPolicy) CrawlerOption {
	return func(c *Crawler) error {
		c.robots = policy
		return nil
	}
}

// NewCrawler creates a crawler for pages [0, pages) of the listing at baseURL.
// The page index is appended verbatim to baseURL.
func NewCrawler(session *Session, baseURL string, pages int, opts ...CrawlerOption) (*Crawler, error) {
	if session == nil {
		return nil, ErrSessionRequired
	}
	if baseURL == "" {
		return nil, ErrBaseURLRequired
	}
	if pages < 1 {
		return nil, fmt.Errorf("page count must be positive: %d", pages)
	}

	c := &Crawler{
		session: session,
		baseURL: baseURL,
		pages:   pages,
		delay:   2 * time.Second,
		logger:  session.logger.With("component", "listing-crawler"),
	}
	for _, opt := range opts {
		if err := opt(c); err != nil {
			return nil, err
		}
	}
	return c, nil
}

// Pages returns the number of listing pages the crawler visits.
func (c *Crawler) Pages() int {
	return c.pages
}

// PageURL returns the listing URL for a page index.
func (c *Crawler) PageURL(index int) string {
	return c.baseURL + strconv.Itoa(index)
}

// FetchPage downloads and parses one listing page.
// Transport and status failures wrap core.ErrFetchFailed.
func (c *Crawler) FetchPage(ctx context.Context, index int) (*core.ListingPage, error) {
	pageURL := c.PageURL(index)
	if c.robots != nil && !c.robots.Allowed(pageURL) {
		return nil, fmt.Errorf("%w: %w: %s", core.ErrFetchFailed, ErrDisallowed, pageURL)
	}

	doc, err := c.session.document(ctx, pageURL)
	if err != nil {
		return nil, err
	}
	return ParseListing(doc, index, c.session.baseSite), nil
}

// Walk visits every listing page in order and hands it to fn. Pages that
// cannot be fetched are logged and passed to fn as empty pages. After fn
// returns, Walk pauses for the full page delay before fetching the next page.
// Walk returns the number of pages visited.
func (c *Crawler) Walk(ctx context.Context, fn PageFunc) (int, error) {
	visited := 0
	for index := 0; index < c.pages; index++ {
		if err := ctx.Err(); err != nil {
			return visited, err
		}
		if index > 0 {
			if err := c.pause(ctx); err != nil {
				return visited, err
			}
		}

		c.logger.Info("scraping listing page", "page", index+1, "of", c.pages)
		page, err := c.FetchPage(ctx, index)
		if err != nil {
			if !errors.Is(err, core.ErrFetchFailed) {
				return visited, err
			}
			c.logger.Warn("listing page unavailable", "page", index, "err", err)
			page = &core.ListingPage{Index: index}
		}
		c.logWarnings(page)

		visited++
		if err := fn(ctx, page); err != nil {
			return visited, err
		}
	}
	return visited, nil
}

// pause blocks for the page delay, counted from now. A fresh single-token
// limiter is drained first so Wait cannot return early on a saved token.
func (c *Crawler) pause(ctx context.Context) error {
	if c.delay <= 0 {
		return nil
	}
	limiter := rate.NewLimiter(rate.Every(c.delay), 1)
	limiter.Allow()
	if err := limiter.Wait(ctx); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		return err
	}
	return nil
}

func (c *Crawler) logWarnings(page *core.ListingPage) {
	for _, w := range page.Warnings {
		c.logger.Warn("listing row schema violation",
			"page", w.Page, "row", w.Row, "field", w.Field, "kind", w.Kind.String())
	}
}

// ParseListing extracts filing records from a listing page. Rows without
// td cells (headers) are ignored. Absent fields are set to core.NotAvailable
// and reported as FieldAbsent warnings; a page with no table at all gets a
// single PageMalformed warning.
func ParseListing(doc *goquery.Document, index int, baseSite *url.URL) *core.ListingPage {
	page := &core.ListingPage{Index: index}

	if doc.Find("table").Length() == 0 {
		page.Warnings = append(page.Warnings, core.RowWarning{
			Page: index,
			Kind: core.PageMalformed,
		})
		return page
	}

	row := 0
	doc.Find("tr").Each(func(_ int, tr *goquery.Selection) {
		if tr.Find("td").Length() == 0 {
			return
		}
		row++

		record := parseRow(tr, baseSite)
		record.Page = index
		record.Row = row

		missing, _ := core.ValidateFilingRecord(&record)
		for _, field := range missing {
			page.Warnings = append(page.Warnings, core.RowWarning{
				Page:  index,
				Row:   row,
				Field: field,
				Kind:  core.FieldAbsent,
			})
		}
		page.Records = append(page.Records, record)
	})
	return page
}

func parseRow(tr *goquery.Selection, baseSite *url.URL) core.FilingRecord {
	record := core.FilingRecord{
		Issuer:          core.NotAvailable,
		Year:            core.NotAvailable,
		ReportTypeLabel: core.NotAvailable,
		ReportTypeLink:  core.NotAvailable,
	}

	// The first anchor of the issuer cell is the logo link.
	if anchors := tr.Find(issuerCellSelector).First().Find("a"); anchors.Length() > 1 {
		record.Issuer = orNotAvailable(anchors.Eq(1).Text())
	}

	if t := tr.Find(yearCellSelector).First().Find("time"); t.Length() > 0 {
		record.Year = orNotAvailable(t.First().Text())
	}

	anchor := tr.Find(reportTypeCellSelector).First().Find("a").First()
	if href, ok := anchor.Attr("href"); ok && strings.TrimSpace(href) != "" {
		if link, err := resolve(baseSite, href); err == nil {
			record.ReportTypeLink = link
			record.ReportTypeLabel = orNotAvailable(anchor.Text())
		}
	}
	return record
}

func orNotAvailable(s string) string {
	s = strings.Join(strings.Fields(s), " ")
	if s == "" {
		return core.NotAvailable
	}
	return s
}
