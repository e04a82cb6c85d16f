package enrich

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/serviceseeking/onboard/internal/domain"
)

const scrapePage = `<html><head>
<meta property="og:image" content="https://cdn.example.com.au/hero.jpg">
<meta name="twitter:image" content="/social-card.jpg">
<link rel="apple-touch-icon" href="/touch-icon.png">
<link rel="icon" href="/favicon.ico">
</head><body>
<img src="/photos/deck.jpg" class="gallery">
<img data-src="/photos/lazy-bathroom.jpg">
<img src="/photos/fallback.jpg" srcset="/photos/small.jpg 200w, /photos/wide.jpg 800w">
<img src="data:image/gif;base64,AAAA">
<img src="/photos/deck.jpg">
<a href="/downloads/full-kitchen.jpeg">kitchen</a>
<div data-thumbnail="/thumbs/job.jpg"></div>
</body></html>`

func TestScrape(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(scrapePage))
	}))
	defer srv.Close()

	s := NewScraper(time.Second, testLogger())
	got, err := s.Scrape(context.Background(), srv.URL+"/")
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	wantLogos := []string{
		"https://cdn.example.com.au/hero.jpg",
		srv.URL + "/social-card.jpg",
		srv.URL + "/touch-icon.png",
	}
	if len(got.Logos) != len(wantLogos) {
		t.Fatalf("Expected %d logo candidates, got %d: %v", len(wantLogos), len(got.Logos), got.Logos)
	}
	for i, want := range wantLogos {
		if got.Logos[i] != want {
			t.Errorf("Logo %d: expected %s, got %s", i, want, got.Logos[i])
		}
	}

	wantAssets := []string{
		srv.URL + "/photos/deck.jpg",
		srv.URL + "/photos/lazy-bathroom.jpg",
		srv.URL + "/photos/fallback.jpg",
		srv.URL + "/photos/wide.jpg",
		srv.URL + "/downloads/full-kitchen.jpeg",
		srv.URL + "/thumbs/job.jpg",
	}
	if len(got.Assets) != len(wantAssets) {
		t.Fatalf("Expected %d assets, got %d: %+v", len(wantAssets), len(got.Assets), got.Assets)
	}
	for i, want := range wantAssets {
		if got.Assets[i].URL != want {
			t.Errorf("Asset %d: expected %s, got %s", i, want, got.Assets[i].URL)
		}
		if got.Assets[i].Source != domain.AssetSourcePrimarySite {
			t.Errorf("Asset %d: expected the primary site source, got %s", i, got.Assets[i].Source)
		}
	}
	// The surrounding tag travels with the asset so scoring can read classes.
	if got.Assets[0].Tag == "" {
		t.Error("Expected the img tag captured for the first asset")
	}
}

func TestScrapeFailsOnBadStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	s := NewScraper(time.Second, testLogger())
	if _, err := s.Scrape(context.Background(), srv.URL+"/missing"); err == nil {
		t.Error("Expected an error for a 404 page")
	}
}

func TestScrapeSocialSkipsUnknownHosts(t *testing.T) {
	s := NewScraper(time.Second, testLogger())
	got := s.ScrapeSocial(context.Background(), []string{
		"https://example.com.au/about",
		"https://twitter.com/dansplumbing",
	})
	if len(got.Logos) != 0 || len(got.Assets) != 0 {
		t.Errorf("Expected nothing scraped from non-supported pages, got %+v", got)
	}
}

func TestBestSrcsetEntry(t *testing.T) {
	tests := []struct {
		srcset string
		want   string
	}{
		{"small.jpg 200w, big.jpg 800w, mid.jpg 600w", "big.jpg"},
		{"a.jpg 100w, b.jpg 300w", ""},
		{"a.jpg 2x, b.jpg 640w", "b.jpg"},
		{"bare.jpg", ""},
		{"", ""},
	}
	for _, tt := range tests {
		if got := bestSrcsetEntry(tt.srcset); got != tt.want {
			t.Errorf("bestSrcsetEntry(%q) = %q, want %q", tt.srcset, got, tt.want)
		}
	}
}

func TestOGImages(t *testing.T) {
	html := `<meta property="og:image" content="https://a.example/1.jpg?w=1&amp;h=2">
<meta property="og:image" content="https://a.example/2.jpg">
<meta content="https://a.example/1.jpg?w=1&amp;h=2" property="og:image">`
	got := ogImages(html)
	if len(got) != 2 {
		t.Fatalf("Expected 2 deduplicated images, got %d: %v", len(got), got)
	}
	if got[0] != "https://a.example/1.jpg?w=1&h=2" {
		t.Errorf("Expected the entity unescaped, got %q", got[0])
	}
}

func TestAbsoluteURL(t *testing.T) {
	base, err := url.Parse("https://example.com.au/services/")
	if err != nil {
		t.Fatal(err)
	}
	tests := []struct {
		raw  string
		want string
	}{
		{"/img/a.jpg", "https://example.com.au/img/a.jpg"},
		{"b.jpg", "https://example.com.au/services/b.jpg"},
		{"https://cdn.example.com/c.jpg", "https://cdn.example.com/c.jpg"},
		{"data:image/png;base64,AAAA", ""},
		{"javascript:void(0)", ""},
		{"  ", ""},
	}
	for _, tt := range tests {
		if got := absoluteURL(base, tt.raw); got != tt.want {
			t.Errorf("absoluteURL(%q) = %q, want %q", tt.raw, got, tt.want)
		}
	}
}
