package engine

import (
	"testing"

	"github.com/serviceseeking/onboard/internal/domain"
)

func TestExtractRatingFormats(t *testing.T) {
	tests := []struct {
		text      string
		wantValue float64
		wantCount int
	}{
		{"Dans Plumbing - 4.8 stars (127 reviews)", 4.8, 127},
		{"Rated 4.5 from 1,240 reviews", 4.5, 1240},
		{"4.9 · 86 reviews · Plumber", 4.9, 86},
		{"127 Google reviews with an average of 4.8 stars", 4.8, 127},
		{"Great service, 4.7 stars", 4.7, 0},
	}
	for _, tt := range tests {
		results := []domain.SearchResult{{Title: tt.text, URL: "https://example.com.au"}}
		rating, ok := ExtractRating(results)
		if !ok {
			t.Errorf("ExtractRating(%q): expected a rating", tt.text)
			continue
		}
		if rating.Value != tt.wantValue || rating.Count != tt.wantCount {
			t.Errorf("ExtractRating(%q) = %.1f/%d, want %.1f/%d",
				tt.text, rating.Value, rating.Count, tt.wantValue, tt.wantCount)
		}
		if rating.SourceURL != "https://example.com.au" {
			t.Errorf("Expected source URL recorded, got %q", rating.SourceURL)
		}
	}
}

func TestExtractRatingRejectsOutOfRange(t *testing.T) {
	results := []domain.SearchResult{
		{Description: "0.5 stars"},
		{Description: "9.9 stars"},
	}
	if rating, ok := ExtractRating(results); ok {
		t.Errorf("Expected out-of-range ratings rejected, got %.1f", rating.Value)
	}
}

func TestExtractRatingNothingFound(t *testing.T) {
	results := []domain.SearchResult{{Description: "A plumbing business in Sydney"}}
	if _, ok := ExtractRating(results); ok {
		t.Error("Expected no rating in plain text")
	}
}

func TestExtractFacebookURL(t *testing.T) {
	results := []domain.SearchResult{
		{URL: "https://www.facebook.com/marketplace/item/123"},
		{URL: "https://www.facebook.com/groups/sydneytradies"},
		{URL: "https://www.facebook.com/watch?v=99"},
		{URL: "https://www.facebook.com/DansPlumbingSydney"},
	}
	got := ExtractFacebookURL(results)
	if got != "https://www.facebook.com/DansPlumbingSydney" {
		t.Errorf("Expected the business page, got %q", got)
	}
}

func TestExtractFacebookURLNoneSuitable(t *testing.T) {
	results := []domain.SearchResult{
		{URL: "https://www.facebook.com/profile.php?id=4"},
		{URL: "https://example.com.au/about"},
	}
	if got := ExtractFacebookURL(results); got != "" {
		t.Errorf("Expected no URL, got %q", got)
	}
}
