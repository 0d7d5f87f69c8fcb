package crawl

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/poiesic/finrag/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newReportServer(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/fr/etats-financiers/banque-x-2023", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `<div class="field--name-field-fichier">
			<span class="file file--mime-application-pdf file--application-pdf">
				<a href="/sites/default/files/2024-04/Banque%20X%20-%20EF%202023.pdf" type="application/pdf"> Banque X - EF 2023 </a>
			</span></div>`)
	})
	mux.HandleFunc("/fr/etats-financiers/no-attachment", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `<div><span class="file file--mime-application-msword"><a href="/x.doc">Word</a></span></div>`)
	})
	mux.HandleFunc("/fr/etats-financiers/blank-name", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `<span class="file--mime-application-pdf"><a href="files/rapport%20final.pdf"></a></span>`)
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func newTestResolver(t *testing.T, srv *httptest.Server) *Resolver {
	t.Helper()
	session, err := NewSession(srv.URL, WithHTTPClient(srv.Client()))
	require.NoError(t, err)
	r, err := NewResolver(session)
	require.NoError(t, err)
	return r
}

func TestResolver_Resolve(t *testing.T) {
	srv := newReportServer(t)
	r := newTestResolver(t, srv)

	record := core.FilingRecord{
		Issuer:          "Banque X",
		Year:            "2023",
		ReportTypeLabel: "Comptes annuels",
		ReportTypeLink:  srv.URL + "/fr/etats-financiers/banque-x-2023",
	}
	doc, err := r.Resolve(context.Background(), record)
	require.NoError(t, err)

	assert.Equal(t, srv.URL+"/sites/default/files/2024-04/Banque%20X%20-%20EF%202023.pdf", doc.URL)
	assert.Equal(t, "Banque X - EF 2023", doc.Name)
	assert.Equal(t, record, doc.Filing)
}

func TestResolver_Failures(t *testing.T) {
	srv := newReportServer(t)
	r := newTestResolver(t, srv)
	ctx := context.Background()

	t.Run("no attachment", func(t *testing.T) {
		_, err := r.Resolve(ctx, core.FilingRecord{ReportTypeLink: srv.URL + "/fr/etats-financiers/no-attachment"})
		assert.ErrorIs(t, err, core.ErrUnresolvableLink)
	})

	t.Run("report page missing", func(t *testing.T) {
		_, err := r.Resolve(ctx, core.FilingRecord{ReportTypeLink: srv.URL + "/fr/etats-financiers/gone"})
		assert.ErrorIs(t, err, core.ErrFetchFailed)
		assert.NotErrorIs(t, err, core.ErrUnresolvableLink)
	})

	t.Run("sentinel link is never fetched", func(t *testing.T) {
		_, err := r.Resolve(ctx, core.FilingRecord{ReportTypeLink: core.NotAvailable})
		assert.ErrorIs(t, err, core.ErrUnresolvableLink)
	})
}

func TestResolver_NameFallsBackToURL(t *testing.T) {
	srv := newReportServer(t)
	r := newTestResolver(t, srv)

	doc, err := r.Resolve(context.Background(), core.FilingRecord{ReportTypeLink: srv.URL + "/fr/etats-financiers/blank-name"})
	require.NoError(t, err)
	assert.Equal(t, srv.URL+"/fr/etats-financiers/files/rapport%20final.pdf", doc.URL)
	assert.Equal(t, "rapport final.pdf", doc.Name)
}

func TestFindAttachment_SkipsAnchorsWithoutHref(t *testing.T) {
	page, _ := url.Parse("https://www.ammc.ma/fr/x")
	doc := mustParse(t, `<span class="file--mime-application-pdf"><a>Rapport</a></span>
		<span class="file--mime-application-pdf"><a href="https://cdn.example.org/second.pdf">Second</a></span>`)

	docURL, name, ok := FindAttachment(doc, page)
	require.True(t, ok)
	assert.Equal(t, "https://cdn.example.org/second.pdf", docURL)
	assert.Equal(t, "Second", name)
}

func TestNewResolver_RequiresSession(t *testing.T) {
	_, err := NewResolver(nil)
	assert.ErrorIs(t, err, ErrSessionRequired)
}
