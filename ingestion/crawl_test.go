package ingestion

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"

	"github.com/poiesic/finrag/core"
	"github.com/poiesic/finrag/crawl"
	"github.com/poiesic/finrag/fetch"
	"github.com/poiesic/finrag/index"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fileExtractor treats the fetched bytes as the document text.
type fileExtractor struct{}

func (fileExtractor) Extract(ctx context.Context, file *core.FetchedFile) (*core.ExtractedText, error) {
	data, err := os.ReadFile(file.Path)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", core.ErrExtractionFailed, err)
	}
	return &core.ExtractedText{Text: string(data), Pages: 1}, nil
}

const listingPage = `<table><tbody>
<tr>
  <td class="views-field-field-emetteur"><a href="/e/1"></a><a href="/e/1">Banque X</a></td>
  <td class="views-field-field-annee"><time>2023</time></td>
  <td class="views-field-field-type-rapp-ef-em"><a href="/report/banque-x">Comptes annuels</a></td>
</tr>
<tr>
  <td class="views-field-field-emetteur"><a href="/e/2"></a><a href="/e/2">Assurance Y</a></td>
  <td class="views-field-field-annee"><time>2022</time></td>
  <td class="views-field-field-type-rapp-ef-em"><a href="/report/assurance-y">Rapport semestriel</a></td>
</tr>
<tr>
  <td class="views-field-field-emetteur"><a href="/e/3"></a><a href="/e/3">Holding Z</a></td>
  <td class="views-field-field-annee"><time>2021</time></td>
  <td class="views-field-field-type-rapp-ef-em">Non publié</td>
</tr>
</tbody></table>`

func newFilingsServer(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/listing", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("page") != "0" {
			http.Error(w, "gone", http.StatusBadGateway)
			return
		}
		fmt.Fprint(w, listingPage)
	})
	mux.HandleFunc("/report/banque-x", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `<span class="file--mime-application-pdf"><a href="/files/bx.pdf">Banque X/EF 2023</a></span>`)
	})
	mux.HandleFunc("/report/assurance-y", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `<p>Document en cours de publication</p>`)
	})
	mux.HandleFunc("/files/bx.pdf", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, strings.Repeat("Actif ", 400))
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func TestRun_AgainstListingServer(t *testing.T) {
	srv := newFilingsServer(t)
	h := newHarness(t)

	session, err := crawl.NewSession(srv.URL, crawl.WithHTTPClient(srv.Client()))
	require.NoError(t, err)
	crawler, err := crawl.NewCrawler(session, srv.URL+"/listing?page=", 2, crawl.WithPageDelay(0))
	require.NoError(t, err)
	resolver, err := crawl.NewResolver(session)
	require.NoError(t, err)
	contentDir := t.TempDir()
	fetcher, err := fetch.NewFetcher(contentDir, fetch.WithHTTPClient(srv.Client()))
	require.NoError(t, err)
	ix, err := index.NewIndexer(h.embedder, h.store)
	require.NoError(t, err)

	p, err := NewPipeline(crawler, resolver, fetcher, fileExtractor{}, ix,
		WithLedgerRepository(h.ledger), WithCatalog(h.catalog), WithExportPath(h.export))
	require.NoError(t, err)

	summary, err := p.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 2, summary.Pages, "unavailable page is visited as empty")
	assert.Equal(t, 3, summary.Records)
	assert.Equal(t, 1, summary.Dropped)
	assert.Equal(t, 1, summary.Failures["unresolvable_link"])
	assert.Equal(t, 1, summary.Documents)
	assert.Equal(t, 3, summary.Chunks)

	require.Len(t, summary.Ledger, 1)
	row := summary.Ledger[0]
	assert.Equal(t, "Banque X", row.Issuer)
	assert.Equal(t, "Comptes annuels", row.ReportType)
	assert.Equal(t, srv.URL+"/files/bx.pdf", row.DocumentURL)
	assert.Equal(t, "Banque X/EF 2023", row.DocumentName)

	entry, err := h.catalog.GetDocument(context.Background(), "Banque X/EF 2023")
	require.NoError(t, err)
	assert.Equal(t, fetcher.Path("Banque X/EF 2023"), entry.Path)
	assert.FileExists(t, entry.Path)
	assert.True(t, strings.HasSuffix(entry.Path, "Banque X_EF 2023.pdf"))

	results, err := fetch.Verify(context.Background(), h.catalog, 2)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, fetch.StatusOK, results[0].Status)
}
