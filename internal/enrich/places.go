package enrich

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/serviceseeking/onboard/internal/domain"
)

const placesBaseURL = "https://places.googleapis.com/v1/places:searchText"

const placesFieldMask = "places.displayName,places.rating,places.userRatingCount," +
	"places.websiteUri,places.googleMapsUri,places.formattedAddress," +
	"places.reviews,places.primaryTypeDisplayName"

// PlacesClient looks up business profiles via Google Places text search.
type PlacesClient struct {
	apiKey string
	http   *http.Client
	logger *slog.Logger
}

func NewPlacesClient(apiKey string, timeout time.Duration, logger *slog.Logger) *PlacesClient {
	return &PlacesClient{
		apiKey: apiKey,
		http:   newHTTPClient(timeout),
		logger: logger,
	}
}

type placesResponse struct {
	Places []struct {
		DisplayName struct {
			Text string `json:"text"`
		} `json:"displayName"`
		Rating           float64 `json:"rating"`
		UserRatingCount  int     `json:"userRatingCount"`
		WebsiteURI       string  `json:"websiteUri"`
		GoogleMapsURI    string  `json:"googleMapsUri"`
		FormattedAddress string  `json:"formattedAddress"`
		Reviews          []struct {
			Rating int `json:"rating"`
			Text   struct {
				Text string `json:"text"`
			} `json:"text"`
		} `json:"reviews"`
		PrimaryTypeDisplayName struct {
			Text string `json:"text"`
		} `json:"primaryTypeDisplayName"`
	} `json:"places"`
}

// Lookup returns the top place profile for a business name plus location
// hint, or nil when nothing matches.
func (c *PlacesClient) Lookup(ctx context.Context, query string) (*domain.PlaceProfile, error) {
	if c.apiKey == "" {
		return nil, fmt.Errorf("places API key not configured")
	}

	payload, err := json.Marshal(map[string]string{"textQuery": query})
	if err != nil {
		return nil, fmt.Errorf("failed to encode place query: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, placesBaseURL, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Goog-Api-Key", c.apiKey)
	req.Header.Set("X-Goog-FieldMask", placesFieldMask)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("place lookup failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("place lookup returned %d: %s", resp.StatusCode, string(body))
	}

	var result placesResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("failed to decode place response: %w", err)
	}
	if len(result.Places) == 0 {
		return nil, nil
	}

	p := result.Places[0]
	profile := &domain.PlaceProfile{
		Name:        p.DisplayName.Text,
		Rating:      p.Rating,
		ReviewCount: p.UserRatingCount,
		Website:     p.WebsiteURI,
		MapsURL:     p.GoogleMapsURI,
		Address:     p.FormattedAddress,
		PrimaryType: p.PrimaryTypeDisplayName.Text,
	}
	for _, r := range p.Reviews {
		if r.Text.Text == "" {
			continue
		}
		profile.Reviews = append(profile.Reviews, domain.Review{
			Text:   r.Text.Text,
			Rating: float64(r.Rating),
		})
	}
	c.logger.Debug("place lookup", "query", query, "name", profile.Name, "rating", profile.Rating)
	return profile, nil
}
