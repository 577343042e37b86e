// Package provider holds the HTTP clients for the two external batch
// APIs: the pricing provider (identifier resolution + current offer data)
// and the history provider (sales history data).
package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/profitscan/profitscan/internal/domain"
)

const defaultTimeout = 15 * time.Second

// ErrPricingUnavailable indicates the pricing provider is unreachable.
var ErrPricingUnavailable = errors.New("pricing provider unavailable")

// PricingClient is an HTTP client for the pricing provider. The provider
// exposes two batch endpoints: identifier resolution and offer lookup.
type PricingClient struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

// NewPricingClient creates a new pricing provider client.
func NewPricingClient(baseURL, apiKey string) *PricingClient {
	return &PricingClient{
		baseURL: baseURL,
		apiKey:  apiKey,
		httpClient: &http.Client{
			Timeout: defaultTimeout,
		},
	}
}

type resolveRequest struct {
	Codes []string `json:"codes"`
}

type resolveEntry struct {
	InputCode    string   `json:"input_code"`
	CatalogCodes []string `json:"catalog_codes"`
}

type resolveResponse struct {
	Results []resolveEntry `json:"results"`
}

// ResolveBatch resolves universal product codes to catalog codes. The
// returned map holds one entry per code the provider knows; absent codes
// resolved to nothing. A code may map to several catalog codes.
func (c *PricingClient) ResolveBatch(ctx context.Context, codes []string) (map[string][]string, error) {
	var resp resolveResponse
	if err := c.post(ctx, "/v1/catalog/resolve", resolveRequest{Codes: codes}, &resp); err != nil {
		return nil, err
	}

	out := make(map[string][]string, len(resp.Results))
	for _, entry := range resp.Results {
		if len(entry.CatalogCodes) == 0 {
			continue
		}
		out[entry.InputCode] = entry.CatalogCodes
	}

	return out, nil
}

type offersRequest struct {
	CatalogCodes []string `json:"catalog_codes"`
}

type offerEntry struct {
	CatalogCode         string  `json:"catalog_code"`
	SellPrice           float64 `json:"sell_price"`
	EstimatedFees       float64 `json:"estimated_fees"`
	SellerCount         int     `json:"seller_count"`
	MarketplaceIsSeller bool    `json:"marketplace_is_seller"`
	MarketplaceQuantity int     `json:"marketplace_quantity"`
}

type offersResponse struct {
	Results []offerEntry `json:"results"`
}

// FetchBatch returns current offer signals for the given catalog codes.
// Codes the provider has no listing for are absent from the result.
func (c *PricingClient) FetchBatch(ctx context.Context, codes []string) (map[string]*domain.PricingSignals, error) {
	var resp offersResponse
	if err := c.post(ctx, "/v1/offers/batch", offersRequest{CatalogCodes: codes}, &resp); err != nil {
		return nil, err
	}

	out := make(map[string]*domain.PricingSignals, len(resp.Results))
	for _, entry := range resp.Results {
		out[entry.CatalogCode] = &domain.PricingSignals{
			CatalogCode:         entry.CatalogCode,
			SellPrice:           entry.SellPrice,
			EstimatedFees:       entry.EstimatedFees,
			SellerCount:         entry.SellerCount,
			MarketplaceIsSeller: entry.MarketplaceIsSeller,
			MarketplaceQuantity: entry.MarketplaceQuantity,
		}
	}

	return out, nil
}

// Health checks if the pricing provider is reachable.
func (c *PricingClient) Health(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/health", http.NoBody)
	if err != nil {
		return err
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrPricingUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("pricing provider unhealthy: %d", resp.StatusCode)
	}

	return nil
}

func (c *PricingClient) post(ctx context.Context, path string, body, out any) error {
	reqBody, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(reqBody))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrPricingUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("pricing provider returned status %d", resp.StatusCode)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}

	return nil
}
