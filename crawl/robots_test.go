package crawl

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/poiesic/finrag/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRobotsPolicy(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/robots.txt":
			fmt.Fprint(w, "User-agent: finrag\nDisallow: /fr/liste\n\nUser-agent: *\nDisallow:\n")
		default:
			fmt.Fprint(w, listingFixture)
		}
	}))
	defer srv.Close()

	session, err := NewSession(srv.URL, WithHTTPClient(srv.Client()), WithUserAgent("finrag"))
	require.NoError(t, err)

	policy, err := LoadRobots(context.Background(), session)
	require.NoError(t, err)
	assert.False(t, policy.Allowed(srv.URL+"/fr/liste?page=0"))
	assert.True(t, policy.Allowed(srv.URL+"/fr/etats-financiers/banque-x-2023"))

	c, err := NewCrawler(session, srv.URL+"/fr/liste?page=", 2, WithPageDelay(0), WithRobots(policy))
	require.NoError(t, err)

	_, err = c.FetchPage(context.Background(), 0)
	assert.ErrorIs(t, err, ErrDisallowed)
	assert.ErrorIs(t, err, core.ErrFetchFailed)

	var records int
	visited, err := c.Walk(context.Background(), func(ctx context.Context, page *core.ListingPage) error {
		records += len(page.Records)
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 2, visited)
	assert.Zero(t, records)
}

func TestRobotsPolicy_MissingFileAllowsAll(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	defer srv.Close()

	session, err := NewSession(srv.URL, WithHTTPClient(srv.Client()))
	require.NoError(t, err)

	policy, err := LoadRobots(context.Background(), session)
	require.NoError(t, err)
	assert.True(t, policy.Allowed(srv.URL+"/fr/liste?page=3"))
}

func TestRobotsPolicy_Nil(t *testing.T) {
	var p *RobotsPolicy
	assert.True(t, p.Allowed("https://www.ammc.ma/anything"))
}
