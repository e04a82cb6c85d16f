package enrich

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/serviceseeking/onboard/internal/domain"
)

const searchBaseURL = "https://api.search.brave.com/res/v1/web/search"

// SearchClient performs web searches against the Brave search API.
type SearchClient struct {
	apiKey string
	http   *http.Client
	logger *slog.Logger
}

func NewSearchClient(apiKey string, timeout time.Duration, logger *slog.Logger) *SearchClient {
	return &SearchClient{
		apiKey: apiKey,
		http:   newHTTPClient(timeout),
		logger: logger,
	}
}

type braveResponse struct {
	Web struct {
		Results []struct {
			Title       string `json:"title"`
			URL         string `json:"url"`
			Description string `json:"description"`
			Thumbnail   struct {
				Src string `json:"src"`
			} `json:"thumbnail"`
		} `json:"results"`
	} `json:"web"`
}

// Search runs a single web search, retrying once on rate limiting. The free
// tier allows one request per second, so a 429 usually clears after a short
// wait.
func (c *SearchClient) Search(ctx context.Context, query string, count int) ([]domain.SearchResult, error) {
	if c.apiKey == "" {
		return nil, fmt.Errorf("search API key not configured")
	}

	u := fmt.Sprintf("%s?q=%s&country=AU&count=%d", searchBaseURL, url.QueryEscape(query), count)
	headers := map[string]string{"X-Subscription-Token": c.apiKey}

	var result braveResponse
	err := getJSON(ctx, c.http, u, headers, &result)
	if err != nil && isRateLimited(err) {
		select {
		case <-time.After(1100 * time.Millisecond):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
		err = getJSON(ctx, c.http, u, headers, &result)
	}
	if err != nil {
		return nil, fmt.Errorf("web search failed: %w", err)
	}

	var results []domain.SearchResult
	for _, r := range result.Web.Results {
		results = append(results, domain.SearchResult{
			Title:       r.Title,
			URL:         r.URL,
			Description: r.Description,
			Thumbnail:   r.Thumbnail.Src,
		})
	}
	c.logger.Debug("web search", "query", query, "results", len(results))
	return results, nil
}

func isRateLimited(err error) bool {
	return err != nil && strings.Contains(err.Error(), "status 429")
}
