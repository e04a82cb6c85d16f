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
	"time"

	"github.com/serviceseeking/onboard/internal/domain"
)

const abrBaseURL = "https://abr.business.gov.au/json"

// RegistryClient queries the Australian Business Register. The register
// serves JSONP: responses are wrapped in a callback call that has to be
// stripped before decoding.
type RegistryClient struct {
	guid   string
	http   *http.Client
	logger *slog.Logger
}

func NewRegistryClient(guid string, timeout time.Duration, logger *slog.Logger) *RegistryClient {
	return &RegistryClient{
		guid:   guid,
		http:   newHTTPClient(timeout),
		logger: logger,
	}
}

type abrNameResult struct {
	Names []struct {
		ABN      string `json:"Abn"`
		Name     string `json:"Name"`
		NameType string `json:"NameType"`
		State    string `json:"State"`
		Postcode string `json:"Postcode"`
	} `json:"Names"`
}

type abrDetailsResult struct {
	ABN                    string   `json:"Abn"`
	ABNStatus              string   `json:"AbnStatus"`
	ABNStatusEffectiveFrom string   `json:"AbnStatusEffectiveFrom"`
	EntityName             string   `json:"EntityName"`
	EntityTypeName         string   `json:"EntityTypeName"`
	GST                    string   `json:"Gst"`
	AddressState           string   `json:"AddressState"`
	AddressPostcode        string   `json:"AddressPostcode"`
	BusinessNames          []string `json:"BusinessName"`
	Message                string   `json:"Message"`
}

// SearchByName searches the register by business name, returning at most
// maxResults matches deduplicated by ABN. When an ABN appears under several
// name types the business/trading name entry wins over the legal entity name.
func (c *RegistryClient) SearchByName(ctx context.Context, name string, maxResults int) ([]domain.RegistryRecord, error) {
	if c.guid == "" {
		return nil, fmt.Errorf("register GUID not configured")
	}

	u := fmt.Sprintf("%s/MatchingNames.aspx?name=%s&maxResults=%d&guid=%s",
		abrBaseURL, url.QueryEscape(name), maxResults*3, url.QueryEscape(c.guid))

	var result abrNameResult
	if err := c.getJSONP(ctx, u, &result); err != nil {
		return nil, fmt.Errorf("register name search failed: %w", err)
	}

	byABN := make(map[string]int) // ABN -> index into records
	nameTypes := make(map[string]string)
	var records []domain.RegistryRecord
	for _, n := range result.Names {
		if n.ABN == "" {
			continue
		}
		rec := domain.RegistryRecord{
			ID:       n.ABN,
			Name:     n.Name,
			State:    n.State,
			Postcode: n.Postcode,
			Status:   "Active",
		}
		if idx, seen := byABN[n.ABN]; seen {
			// Trading names read better than legal entity names.
			if isTradingName(n.NameType) && !isTradingName(nameTypes[n.ABN]) {
				records[idx] = rec
				nameTypes[n.ABN] = n.NameType
			}
			continue
		}
		byABN[n.ABN] = len(records)
		nameTypes[n.ABN] = n.NameType
		records = append(records, rec)
		if len(records) >= maxResults {
			break
		}
	}
	c.logger.Debug("register name search", "query", name, "matches", len(records))
	return records, nil
}

func isTradingName(nameType string) bool {
	return strings.Contains(nameType, "Business") || strings.Contains(nameType, "Trading")
}

// LookupID fetches the register details for a single business number.
func (c *RegistryClient) LookupID(ctx context.Context, id string) (*domain.RegistryRecord, error) {
	if c.guid == "" {
		return nil, fmt.Errorf("register GUID not configured")
	}

	u := fmt.Sprintf("%s/AbnDetails.aspx?abn=%s&guid=%s",
		abrBaseURL, url.QueryEscape(id), url.QueryEscape(c.guid))

	var result abrDetailsResult
	if err := c.getJSONP(ctx, u, &result); err != nil {
		return nil, fmt.Errorf("register lookup failed: %w", err)
	}
	if result.ABN == "" || result.Message != "" {
		return nil, fmt.Errorf("no register record for %q", id)
	}

	name := result.EntityName
	if len(result.BusinessNames) > 0 && result.BusinessNames[0] != "" {
		name = result.BusinessNames[0]
	}
	return &domain.RegistryRecord{
		ID:            result.ABN,
		Name:          name,
		EntityType:    result.EntityTypeName,
		TaxRegistered: result.GST != "",
		State:         result.AddressState,
		Postcode:      result.AddressPostcode,
		Status:        result.ABNStatus,
		StartDate:     result.ABNStatusEffectiveFrom,
	}, nil
}

// getJSONP fetches a JSONP endpoint and decodes the payload inside the
// callback wrapper, e.g. `callback({...})`.
func (c *RegistryClient) getJSONP(ctx context.Context, u string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected status %d", resp.StatusCode)
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}

	payload := string(body)
	if open := strings.Index(payload, "("); open >= 0 {
		if close := strings.LastIndex(payload, ")"); close > open {
			payload = payload[open+1 : close]
		}
	}
	if err := json.Unmarshal([]byte(payload), out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}
