package enrich

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/serviceseeking/onboard/internal/domain"
	"github.com/serviceseeking/onboard/internal/engine"
)

const (
	maxPageBytes     = 2 << 20 // HTML beyond this is never useful
	maxSiteAssets    = 30
	srcsetMinWidth   = 400
	maxSocialPages   = 4
	logoCandidateCap = 3
)

// Scraped is the result of scraping one site: logo candidates in priority
// order and raw image candidates for scoring.
type Scraped struct {
	Logos  []string
	Assets []engine.RawAsset
}

// Scraper pulls logo and photo candidates out of public web pages with
// pattern matching, the same way a crawler that must survive broken markup
// does. It never executes scripts or follows links beyond the given page.
type Scraper struct {
	http   *http.Client
	logger *slog.Logger
}

func NewScraper(timeout time.Duration, logger *slog.Logger) *Scraper {
	return &Scraper{http: newHTTPClient(timeout), logger: logger}
}

var (
	metaOGImage    = regexp.MustCompile(`(?is)<meta[^>]+property=["']og:image["'][^>]+content=["']([^"']+)["']`)
	metaOGImageRev = regexp.MustCompile(`(?is)<meta[^>]+content=["']([^"']+)["'][^>]+property=["']og:image["']`)
	metaTwitterImg = regexp.MustCompile(`(?is)<meta[^>]+name=["']twitter:image["'][^>]+content=["']([^"']+)["']`)
	appleTouchIcon = regexp.MustCompile(`(?is)<link[^>]+rel=["']apple-touch-icon[^"']*["'][^>]+href=["']([^"']+)["']`)
	linkIcon       = regexp.MustCompile(`(?is)<link[^>]+rel=["'](?:shortcut )?icon["'][^>]+href=["']([^"']+)["']`)

	imgTag        = regexp.MustCompile(`(?is)<img[^>]*>`)
	srcAttr       = regexp.MustCompile(`(?i)\bsrc=["']([^"']+)["']`)
	lazySrcAttrs  = regexp.MustCompile(`(?i)\bdata-(?:src|lazy-src|original)=["']([^"']+)["']`)
	srcsetAttr    = regexp.MustCompile(`(?i)\bsrcset=["']([^"']+)["']`)
	anchorTag     = regexp.MustCompile(`(?is)<a[^>]+href=["']([^"']+\.(?:jpe?g|png|webp))["'][^>]*>`)
	dataThumbnail = regexp.MustCompile(`(?i)\bdata-thumbnail=["']([^"']+)["']`)
)

// Scrape fetches one page and extracts logo candidates (og:image first,
// then twitter:image, apple-touch-icon, favicon) and photo candidates from
// img tags, lazy-load attributes, srcset entries, and direct image links.
func (s *Scraper) Scrape(ctx context.Context, pageURL string) (*Scraped, error) {
	html, err := s.fetchPage(ctx, pageURL)
	if err != nil {
		return nil, err
	}

	base, err := url.Parse(pageURL)
	if err != nil {
		return nil, fmt.Errorf("invalid page url: %w", err)
	}

	result := &Scraped{}
	seenLogo := make(map[string]bool)
	addLogo := func(raw string) {
		abs := absoluteURL(base, raw)
		if abs == "" || seenLogo[abs] || len(result.Logos) >= logoCandidateCap {
			return
		}
		seenLogo[abs] = true
		result.Logos = append(result.Logos, abs)
	}
	for _, re := range []*regexp.Regexp{metaOGImage, metaOGImageRev, metaTwitterImg, appleTouchIcon, linkIcon} {
		if m := re.FindStringSubmatch(html); m != nil {
			addLogo(m[1])
		}
	}

	seen := make(map[string]bool)
	add := func(raw, tag string) {
		if len(result.Assets) >= maxSiteAssets {
			return
		}
		abs := absoluteURL(base, raw)
		if abs == "" || seen[abs] {
			return
		}
		seen[abs] = true
		result.Assets = append(result.Assets, engine.RawAsset{
			URL:    abs,
			Tag:    tag,
			Source: domain.AssetSourcePrimarySite,
		})
	}

	for _, tag := range imgTag.FindAllString(html, -1) {
		if m := srcAttr.FindStringSubmatch(tag); m != nil {
			add(m[1], tag)
		}
		for _, m := range lazySrcAttrs.FindAllStringSubmatch(tag, -1) {
			add(m[1], tag)
		}
		if m := srcsetAttr.FindStringSubmatch(tag); m != nil {
			if best := bestSrcsetEntry(m[1]); best != "" {
				add(best, tag)
			}
		}
	}
	for _, m := range anchorTag.FindAllStringSubmatch(html, -1) {
		add(m[1], m[0])
	}
	for _, m := range dataThumbnail.FindAllStringSubmatch(html, -1) {
		add(m[1], "")
	}

	s.logger.Debug("site scraped", "url", pageURL,
		"logos", len(result.Logos), "assets", len(result.Assets))
	return result, nil
}

// ScrapeSocial extracts og:image URLs from up to maxSocialPages social
// profile pages. The first image of a facebook page is a logo candidate;
// on instagram the first image is a logo candidate and the rest are photos.
func (s *Scraper) ScrapeSocial(ctx context.Context, pageURLs []string) *Scraped {
	result := &Scraped{}
	pages := 0
	for _, pageURL := range pageURLs {
		if pages >= maxSocialPages {
			break
		}
		lower := strings.ToLower(pageURL)
		isFacebook := strings.Contains(lower, "facebook.com")
		isInstagram := strings.Contains(lower, "instagram.com")
		if !isFacebook && !isInstagram {
			continue
		}
		pages++

		html, err := s.fetchPage(ctx, pageURL)
		if err != nil {
			s.logger.Debug("social page fetch failed", "url", pageURL, "error", err)
			continue
		}

		images := ogImages(html)
		for i, img := range images {
			if i == 0 {
				result.Logos = append(result.Logos, img)
				if isFacebook {
					break
				}
				continue
			}
			result.Assets = append(result.Assets, engine.RawAsset{
				URL:    img,
				Source: domain.AssetSourceSocial,
			})
		}
	}
	return result
}

func ogImages(html string) []string {
	var images []string
	seen := make(map[string]bool)
	for _, re := range []*regexp.Regexp{metaOGImage, metaOGImageRev} {
		for _, m := range re.FindAllStringSubmatch(html, -1) {
			u := strings.ReplaceAll(m[1], "&amp;", "&")
			if !seen[u] {
				seen[u] = true
				images = append(images, u)
			}
		}
	}
	return images
}

// bestSrcsetEntry returns the widest srcset entry at or above the minimum
// width, or "" when none qualifies.
func bestSrcsetEntry(srcset string) string {
	best, bestWidth := "", 0
	for _, entry := range strings.Split(srcset, ",") {
		fields := strings.Fields(strings.TrimSpace(entry))
		if len(fields) < 2 {
			continue
		}
		w, err := strconv.Atoi(strings.TrimSuffix(fields[1], "w"))
		if err != nil || w < srcsetMinWidth {
			continue
		}
		if w > bestWidth {
			best, bestWidth = fields[0], w
		}
	}
	return best
}

func absoluteURL(base *url.URL, raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" || strings.HasPrefix(raw, "data:") {
		return ""
	}
	ref, err := url.Parse(raw)
	if err != nil {
		return ""
	}
	abs := base.ResolveReference(ref)
	if abs.Scheme != "http" && abs.Scheme != "https" {
		return ""
	}
	return abs.String()
}

func (s *Scraper) fetchPage(ctx context.Context, pageURL string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := s.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("page fetch failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("page returned status %d", resp.StatusCode)
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, maxPageBytes))
	if err != nil {
		return "", fmt.Errorf("failed to read page: %w", err)
	}
	return string(body), nil
}
