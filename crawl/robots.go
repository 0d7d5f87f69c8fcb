package crawl

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"

	"github.com/temoto/robotstxt"
)

// ErrDisallowed indicates robots.txt forbids fetching a URL.
var ErrDisallowed = errors.New("disallowed by robots.txt")

// RobotsPolicy answers whether a URL on the listing site may be fetched.
type RobotsPolicy struct {
	group *robotstxt.Group
}

// LoadRobots fetches /robots.txt from the session's base site and selects the
// group matching the session's User-Agent. A missing robots.txt allows everything.
func LoadRobots(ctx context.Context, s *Session) (*RobotsPolicy, error) {
	robotsURL := s.baseSite.ResolveReference(&url.URL{Path: "/robots.txt"}).String()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, robotsURL, nil)
	if err != nil {
		return nil, err
	}
	if s.userAgent != "" {
		req.Header.Set("User-Agent", s.userAgent)
	}
	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetching robots.txt: %w", err)
	}
	defer resp.Body.Close()

	// FromResponse maps 4xx to allow-all and 5xx to disallow-all.
	data, err := robotstxt.FromResponse(resp)
	if err != nil {
		return nil, fmt.Errorf("parsing robots.txt: %w", err)
	}

	agent := s.userAgent
	if agent == "" {
		agent = "*"
	}
	s.logger.Debug("robots.txt loaded", "url", robotsURL, "agent", agent)
	return &RobotsPolicy{group: data.FindGroup(agent)}, nil
}

// Allowed reports whether rawURL may be fetched. Unparsable URLs are disallowed.
func (p *RobotsPolicy) Allowed(rawURL string) bool {
	if p == nil || p.group == nil {
		return true
	}
	u, err := url.Parse(rawURL)
	if err != nil {
		return false
	}
	return p.group.Test(u.RequestURI())
}
