package enrich

import (
	"context"
	"log/slog"
	"net/http"
	"regexp"
	"strings"
	"sync"
	"time"
)

// entitySuffix strips the legal boilerplate off the end of a registered
// business name before slugging it.
var entitySuffix = regexp.MustCompile(`(?i)\s+(pty\.?\s*ltd\.?|proprietary\s+limited|limited|ltd\.?|pty\.?|inc\.?|& co\.?|co\.?|group|holdings|enterprises|services|trust)\s*$`)

var nonSlugChars = regexp.MustCompile(`[^a-z0-9]+`)

// Discoverer guesses a business's website from its name by probing the
// obvious domain candidates directly, no search API involved.
type Discoverer struct {
	http   *http.Client
	logger *slog.Logger
}

func NewDiscoverer(timeout time.Duration, logger *slog.Logger) *Discoverer {
	client := newHTTPClient(timeout)
	// Probes follow redirects; the final landing page is what gets scraped.
	return &Discoverer{http: client, logger: logger}
}

// Slug reduces a business name to a domain-name candidate: suffixes
// stripped repeatedly, lowercased, non-alphanumerics removed.
func Slug(name string) string {
	s := strings.TrimSpace(name)
	for {
		stripped := entitySuffix.ReplaceAllString(s, "")
		if stripped == s {
			break
		}
		s = stripped
	}
	return nonSlugChars.ReplaceAllString(strings.ToLower(s), "")
}

// DiscoverWebsite probes the plausible domains for a business name in
// parallel and returns the first candidate, in candidate order, that
// answers with an HTML page. Returns "" when nothing answers.
func (d *Discoverer) DiscoverWebsite(ctx context.Context, businessName string) string {
	slug := Slug(businessName)
	if len(slug) < 3 {
		return ""
	}

	candidates := []string{
		"https://" + slug + ".com.au",
		"https://www." + slug + ".com.au",
		"https://" + slug + ".au",
		"https://" + slug + ".com",
	}

	results := make([]bool, len(candidates))
	var wg sync.WaitGroup
	for i, candidate := range candidates {
		wg.Add(1)
		go func(i int, url string) {
			defer wg.Done()
			results[i] = d.probeHTML(ctx, url)
		}(i, candidate)
	}
	wg.Wait()

	for i, ok := range results {
		if ok {
			d.logger.Debug("website discovered", "business", businessName, "url", candidates[i])
			return candidates[i]
		}
	}
	return ""
}

// probeHTML reports whether the URL answers 2xx with an HTML content type.
func (d *Discoverer) probeHTML(ctx context.Context, url string) bool {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return false
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Range", "bytes=0-2047")

	resp, err := d.http.Do(req)
	if err != nil {
		return false
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return false
	}
	ct := resp.Header.Get("Content-Type")
	return strings.Contains(ct, "text/html")
}

// Hostname returns the bare host of a URL for display, or the input when it
// does not parse.
func Hostname(rawURL string) string {
	trimmed := strings.TrimPrefix(strings.TrimPrefix(rawURL, "https://"), "http://")
	trimmed = strings.TrimPrefix(trimmed, "www.")
	if i := strings.IndexAny(trimmed, "/?#"); i >= 0 {
		trimmed = trimmed[:i]
	}
	if trimmed == "" {
		return rawURL
	}
	return trimmed
}
