package engine

import (
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/serviceseeking/onboard/internal/config"
	"github.com/serviceseeking/onboard/internal/domain"
)

// RawAsset is an unscored image candidate: its URL plus the markup context
// it was found in.
type RawAsset struct {
	URL    string
	Tag    string
	Source domain.AssetSource
}

// Download carries the bytes-level facts about a fetched candidate, used by
// the fallback policy.
type Download struct {
	URL       string
	MediaType string
	Size      int
}

var (
	junkPattern = regexp.MustCompile(`(?i)pixel|tracker|badge|icon-\d|sprite|spacer|gravatar|avatar` +
		`|facebook|twitter|linkedin|instagram|youtube|google|yelp` +
		`|\.svg$|1x1|blank\.|widget|button|arrow|caret|loading|spinner`)
	photoExtension = regexp.MustCompile(`(?i)\.(jpe?g|png|webp)(\?|$)`)
	jpegExtension  = regexp.MustCompile(`(?i)\.jpe?g(\?|$)`)
	dimensionToken = regexp.MustCompile(`(\d{3,4})x(\d{3,4})`)
	widthAttr      = regexp.MustCompile(`(?i)width=["']?(\d+)`)
	heightAttr     = regexp.MustCompile(`(?i)height=["']?(\d+)`)
	galleryPath    = regexp.MustCompile(`(?i)gallery|portfolio|project|work|photo|slider|slide`)
	galleryTag     = regexp.MustCompile(`(?i)gallery|portfolio|project|work`)
)

// RankAssets filters and scores image candidates, returning them ordered
// best-first and capped at h.CandidateCap. Ranking is deterministic:
// identical input always produces identical order.
func RankAssets(raw []RawAsset, selectedLogo string, h config.Heuristics) []domain.AssetCandidate {
	seen := make(map[string]bool, len(raw))
	var out []domain.AssetCandidate

	for _, a := range raw {
		if a.URL == "" || strings.HasPrefix(a.URL, "data:") {
			continue
		}
		// Junk patterns are checked on the URL only; tags carry attrs like
		// loading="lazy" that false-match.
		if junkPattern.MatchString(a.URL) {
			continue
		}
		if !photoExtension.MatchString(a.URL) {
			continue
		}
		if selectedLogo != "" && (a.URL == selectedLogo || strings.Contains(selectedLogo, a.URL)) {
			continue
		}
		if w, ok := attrValue(widthAttr, a.Tag); ok && w < 100 {
			continue
		}
		if hgt, ok := attrValue(heightAttr, a.Tag); ok && hgt < 100 {
			continue
		}
		if seen[a.URL] {
			continue
		}
		seen[a.URL] = true

		out = append(out, domain.AssetCandidate{
			URL:    a.URL,
			Score:  scoreAsset(a, h),
			Source: a.Source,
		})
	}

	sort.SliceStable(out, func(i, j int) bool { return out[i].Score > out[j].Score })
	if len(out) > h.CandidateCap {
		out = out[:h.CandidateCap]
	}
	return out
}

func scoreAsset(a RawAsset, h config.Heuristics) int {
	urlLower := strings.ToLower(a.URL)
	score := 0

	// JPEGs are almost always real photos; PNGs are often icons/graphics.
	if jpegExtension.MatchString(a.URL) {
		score += h.ScoreJPEG
	}
	if m := dimensionToken.FindStringSubmatch(a.URL); m != nil {
		w, _ := strconv.Atoi(m[1])
		ht, _ := strconv.Atoi(m[2])
		if w >= h.MinDimensionPx || ht >= h.MinDimensionPx {
			score += h.ScoreDimensions
		}
	}
	if strings.Contains(urlLower, "scaled") {
		score += h.ScoreScaled
	}
	if w, ok := attrValue(widthAttr, a.Tag); ok && w >= h.MinWidthAttr {
		score += h.ScoreWidthAttr
	}
	if galleryPath.MatchString(urlLower) {
		score += h.ScoreGalleryPath
	}
	if galleryTag.MatchString(strings.ToLower(a.Tag)) {
		score += h.ScoreGalleryTag
	}
	return score
}

func attrValue(re *regexp.Regexp, tag string) (int, bool) {
	m := re.FindStringSubmatch(tag)
	if m == nil {
		return 0, false
	}
	v, err := strconv.Atoi(m[1])
	if err != nil {
		return 0, false
	}
	return v, true
}

// FilterAssets keeps the candidates the vision classifier labelled genuine
// work photos. If the classifier rejects everything, it falls back to the
// largest JPEG-family downloads above the minimum byte-size threshold so
// the result is non-empty whenever plausible large images exist.
func FilterAssets(ranked []domain.AssetCandidate, workVerdicts map[string]bool, downloads []Download, h config.Heuristics) []string {
	var kept []string
	for _, c := range ranked {
		if workVerdicts[c.URL] {
			kept = append(kept, c.URL)
		}
	}
	if len(kept) > 0 {
		return kept
	}

	fallback := make([]Download, 0, len(downloads))
	for _, d := range downloads {
		if d.MediaType == "image/jpeg" && d.Size >= h.MinPhotoBytes {
			fallback = append(fallback, d)
		}
	}
	sort.SliceStable(fallback, func(i, j int) bool { return fallback[i].Size > fallback[j].Size })
	if len(fallback) > h.FallbackCap {
		fallback = fallback[:h.FallbackCap]
	}
	for _, d := range fallback {
		kept = append(kept, d.URL)
	}
	return kept
}
