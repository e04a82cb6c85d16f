package enrich

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/serviceseeking/onboard/internal/domain"
)

const tradesBaseURL = "https://api.onegov.nsw.gov.au"

// tokenCache caches the OAuth access token for the licence register.
// Fetches are single-flight: the mutex is held across the token request,
// so concurrent callers wait and then reuse the fresh token instead of
// issuing their own.
type tokenCache struct {
	mu     sync.Mutex
	token  string
	expiry time.Time
}

// expiryBuffer refreshes the token a little early so in-flight requests
// never carry one that expires mid-call.
const expiryBuffer = 60 * time.Second

// TradesClient queries the state trade licence register.
type TradesClient struct {
	apiKey string
	auth   string
	http   *http.Client
	logger *slog.Logger
	cache  tokenCache
}

func NewTradesClient(apiKey, auth string, timeout time.Duration, logger *slog.Logger) *TradesClient {
	return &TradesClient{
		apiKey: apiKey,
		auth:   auth,
		http:   newHTTPClient(timeout),
		logger: logger,
	}
}

// Token returns a valid access token, fetching a new one only when the
// cached token is missing or within the expiry buffer.
func (c *TradesClient) Token(ctx context.Context) (string, error) {
	c.cache.mu.Lock()
	defer c.cache.mu.Unlock()

	if c.cache.token != "" && time.Now().Before(c.cache.expiry.Add(-expiryBuffer)) {
		return c.cache.token, nil
	}

	u := tradesBaseURL + "/oauth/client_credential/accesstoken?grant_type=client_credentials"
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return "", fmt.Errorf("failed to create token request: %w", err)
	}
	req.Header.Set("Authorization", "Basic "+c.auth)

	resp, err := c.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("token request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return "", fmt.Errorf("token request returned %d: %s", resp.StatusCode, string(body))
	}

	var result struct {
		AccessToken string `json:"access_token"`
		ExpiresIn   string `json:"expires_in"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return "", fmt.Errorf("failed to decode token response: %w", err)
	}
	if result.AccessToken == "" {
		return "", fmt.Errorf("token response carried no access token")
	}

	ttl := 1800 * time.Second
	if secs, err := time.ParseDuration(result.ExpiresIn + "s"); err == nil && secs > 0 {
		ttl = secs
	}
	c.cache.token = result.AccessToken
	c.cache.expiry = time.Now().Add(ttl)
	c.logger.Debug("licence register token refreshed", "ttl", ttl)
	return c.cache.token, nil
}

func (c *TradesClient) authedGet(ctx context.Context, u string, out any) error {
	token, err := c.Token(ctx)
	if err != nil {
		return err
	}
	return getJSON(ctx, c.http, u, map[string]string{
		"Authorization": "Bearer " + token,
		"apikey":        c.apiKey,
	}, out)
}

type tradesBrowseResult struct {
	Results []struct {
		LicenceID     string `json:"licenceID"`
		Licensee      string `json:"licensee"`
		LicenceNumber string `json:"licenceNumber"`
		LicenceType   string `json:"licenceType"`
		Status        string `json:"status"`
		Suburb        string `json:"suburb"`
		Postcode      string `json:"postcode"`
		ExpiryDate    string `json:"expiryDate"`
	} `json:"results"`
}

// Browse searches the licence register by licensee name or licence number,
// returning at most max candidates.
func (c *TradesClient) Browse(ctx context.Context, search string, max int) ([]domain.LicenceCandidate, error) {
	if c.apiKey == "" || c.auth == "" {
		return nil, fmt.Errorf("licence register not configured")
	}

	u := fmt.Sprintf("%s/tradesregister/v1/licences?searchText=%s&pageSize=%d",
		tradesBaseURL, url.QueryEscape(search), max)

	var result tradesBrowseResult
	if err := c.authedGet(ctx, u, &result); err != nil {
		return nil, fmt.Errorf("licence browse failed: %w", err)
	}

	var candidates []domain.LicenceCandidate
	for _, r := range result.Results {
		candidates = append(candidates, domain.LicenceCandidate{
			LicenceID:     r.LicenceID,
			Licensee:      r.Licensee,
			LicenceNumber: r.LicenceNumber,
			LicenceType:   r.LicenceType,
			Status:        r.Status,
			Suburb:        r.Suburb,
			Postcode:      r.Postcode,
			ExpiryDate:    r.ExpiryDate,
		})
		if len(candidates) >= max {
			break
		}
	}
	c.logger.Debug("licence browse", "search", search, "matches", len(candidates))
	return candidates, nil
}

type tradesDetailsResult struct {
	Licensee      string `json:"licensee"`
	LicenceNumber string `json:"licenceNumber"`
	LicenceType   string `json:"licenceType"`
	Status        string `json:"status"`
	StartDate     string `json:"startDate"`
	ExpiryDate    string `json:"expiryDate"`
	Classes       []struct {
		ClassName string `json:"className"`
		IsActive  string `json:"isActive"`
	} `json:"classes"`
	Compliances []struct {
		Action string `json:"action"`
	} `json:"compliances"`
	AssociatedParties []struct {
		Name      string `json:"name"`
		Role      string `json:"role"`
		PartyType string `json:"partyType"`
	} `json:"associatedParties"`
}

// Details fetches the full record for one licence: trade classes,
// compliance history, and the associated parties.
func (c *TradesClient) Details(ctx context.Context, licenceID string) (*domain.LicenceRecord, error) {
	u := fmt.Sprintf("%s/tradesregister/v1/licences/%s", tradesBaseURL, url.PathEscape(licenceID))

	var result tradesDetailsResult
	if err := c.authedGet(ctx, u, &result); err != nil {
		return nil, fmt.Errorf("licence details failed: %w", err)
	}

	rec := &domain.LicenceRecord{
		Licensee:        result.Licensee,
		LicenceNumber:   result.LicenceNumber,
		LicenceType:     result.LicenceType,
		Status:          result.Status,
		StartDate:       result.StartDate,
		ExpiryDate:      result.ExpiryDate,
		ComplianceClean: len(result.Compliances) == 0,
	}
	for _, cls := range result.Classes {
		rec.Classes = append(rec.Classes, domain.LicenceClass{
			Name:   cls.ClassName,
			Active: strings.EqualFold(cls.IsActive, "True"),
		})
	}
	for _, p := range result.AssociatedParties {
		rec.Parties = append(rec.Parties, domain.Party{
			Name:      p.Name,
			Role:      p.Role,
			PartyType: p.PartyType,
		})
	}
	return rec, nil
}
