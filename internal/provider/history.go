package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/profitscan/profitscan/internal/domain"
)

// ErrHistoryUnavailable indicates the history provider is unreachable.
var ErrHistoryUnavailable = errors.New("history provider unavailable")

// HistoryClient is an HTTP client for the sales history provider.
type HistoryClient struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

// NewHistoryClient creates a new history provider client.
func NewHistoryClient(baseURL, apiKey string) *HistoryClient {
	return &HistoryClient{
		baseURL: baseURL,
		apiKey:  apiKey,
		httpClient: &http.Client{
			Timeout: defaultTimeout,
		},
	}
}

type historyRequest struct {
	CatalogCodes []string `json:"catalog_codes"`
}

type historyEntry struct {
	CatalogCode        string  `json:"catalog_code"`
	SalesRank          int     `json:"sales_rank"`
	RankPercentile     float64 `json:"rank_percentile"`
	MonthlyVelocity    float64 `json:"monthly_velocity"`
	Hazmat             bool    `json:"hazmat"`
	ManufacturerSeller bool    `json:"manufacturer_is_seller"`
}

type historyResponse struct {
	Results []historyEntry `json:"results"`
}

// FetchBatch returns sales history signals for the given catalog codes.
// Codes without history data are absent from the result.
func (c *HistoryClient) FetchBatch(ctx context.Context, codes []string) (map[string]*domain.HistorySignals, error) {
	reqBody, err := json.Marshal(historyRequest{CatalogCodes: codes})
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/history/batch", bytes.NewReader(reqBody))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrHistoryUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("history provider returned status %d", resp.StatusCode)
	}

	var parsed historyResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}

	out := make(map[string]*domain.HistorySignals, len(parsed.Results))
	for _, entry := range parsed.Results {
		out[entry.CatalogCode] = &domain.HistorySignals{
			CatalogCode:          entry.CatalogCode,
			SalesRank:            entry.SalesRank,
			RankPercentile:       entry.RankPercentile,
			MonthlyVelocity:      entry.MonthlyVelocity,
			Hazmat:               entry.Hazmat,
			ManufacturerIsSeller: entry.ManufacturerSeller,
		}
	}

	return out, nil
}

// Health checks if the history provider is reachable.
func (c *HistoryClient) Health(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/health", http.NoBody)
	if err != nil {
		return err
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrHistoryUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("history provider unhealthy: %d", resp.StatusCode)
	}

	return nil
}
