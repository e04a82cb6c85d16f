package engine

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/serviceseeking/onboard/internal/domain"
)

// Rating is a review rating lifted out of search result text.
type Rating struct {
	Value     float64
	Count     int
	SourceURL string
}

// ratingPatterns cover the formats review ratings show up in across search
// result snippets. Checked in order; first valid hit wins.
var ratingPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)(\d\.\d)\s*(?:stars?|/\s*5|out of 5)[^\d]*\(?(\d[\d,]*)\)?\s*(?:reviews?|ratings?)?`),
	regexp.MustCompile(`(?i)rat(?:ed|ing)[:\s]*(\d\.\d)[^\d]*(\d[\d,]*)\s*(?:reviews?|ratings?)`),
	regexp.MustCompile(`(?i)(\d\.\d)\s*·\s*(\d[\d,]*)\s*(?:reviews?|ratings?)`),
	regexp.MustCompile(`(?i)(\d[\d,]*)\s*(?:google\s*)?reviews?[^\d]*(\d\.\d)\s*(?:stars?)?`),
	regexp.MustCompile(`(?i)(\d\.\d)\s*stars?`),
}

// ExtractRating scans search result text for a review rating and count.
// Ratings outside 1.0-5.0 are rejected. Returns ok=false when nothing
// plausible is found.
func ExtractRating(results []domain.SearchResult) (Rating, bool) {
	for _, r := range results {
		text := r.Title + " " + r.Description
		for i, pat := range ratingPatterns {
			m := pat.FindStringSubmatch(text)
			if m == nil {
				continue
			}

			var ratingStr, countStr string
			switch {
			case i == 3:
				// Count-first form: "127 Google reviews ... 4.8".
				countStr, ratingStr = m[1], m[2]
			case len(m) >= 3:
				ratingStr, countStr = m[1], m[2]
			default:
				ratingStr = m[1]
			}

			rating, err := strconv.ParseFloat(ratingStr, 64)
			if err != nil || rating < 1.0 || rating > 5.0 {
				continue
			}
			count := 0
			if countStr != "" {
				count, _ = strconv.Atoi(strings.ReplaceAll(countStr, ",", ""))
			}
			return Rating{Value: rating, Count: count, SourceURL: r.URL}, true
		}
	}
	return Rating{}, false
}

// facebookSkipPaths are facebook.com paths that are never a business page.
var facebookSkipPaths = []string{
	"/marketplace", "/events", "/groups", "/profile.php",
	"/watch", "/reel", "/stories", "/login",
}

// ExtractFacebookURL returns the first facebook.com result URL that looks
// like a business page rather than a marketplace listing, group, or video.
func ExtractFacebookURL(results []domain.SearchResult) string {
	for _, r := range results {
		lower := strings.ToLower(r.URL)
		if !strings.Contains(lower, "facebook.com/") {
			continue
		}
		skip := false
		for _, p := range facebookSkipPaths {
			if strings.Contains(lower, "facebook.com"+p) {
				skip = true
				break
			}
		}
		if !skip {
			return r.URL
		}
	}
	return ""
}
