package ingest

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/contaixt/contaixt/pkg/log"
)

const recordPageSize = 100

// GatewayConfig holds OAuth gateway client settings.
type GatewayConfig struct {
	BaseURL   string
	SecretKey string
}

// Gateway fetches synced provider records from the OAuth gateway. The
// gateway holds the provider credentials; we authenticate with our secret
// key and address a connection by its external id.
type Gateway struct {
	baseURL   string
	secretKey string
	client    *http.Client
}

// NewGateway creates a gateway client.
func NewGateway(cfg GatewayConfig) *Gateway {
	return &Gateway{
		baseURL:   cfg.BaseURL,
		secretKey: cfg.SecretKey,
		client:    &http.Client{Timeout: 30 * time.Second},
	}
}

// ListRecords fetches every synced record for a connection and model,
// following the cursor until the last page. modifiedAfter narrows the
// fetch to records changed since that timestamp when non-empty.
func (g *Gateway) ListRecords(ctx context.Context, connectionID, providerConfigKey, model, modifiedAfter string) ([]Record, error) {
	var all []Record
	cursor := ""

	for {
		params := url.Values{}
		params.Set("model", model)
		params.Set("limit", strconv.Itoa(recordPageSize))
		if modifiedAfter != "" {
			params.Set("modified_after", modifiedAfter)
		}
		if cursor != "" {
			params.Set("cursor", cursor)
		}

		var page struct {
			Records    []Record `json:"records"`
			NextCursor string   `json:"next_cursor"`
		}
		if err := g.get(ctx, connectionID, providerConfigKey, "/records", params, &page); err != nil {
			return nil, err
		}

		all = append(all, page.Records...)
		logger := log.WithComponent("gateway")
		logger.Debug().
			Str("provider", providerConfigKey).
			Int("page", len(page.Records)).
			Int("total", len(all)).
			Msg("fetched records")

		if page.NextCursor == "" || len(page.Records) < recordPageSize {
			return all, nil
		}
		cursor = page.NextCursor
	}
}

func (g *Gateway) get(ctx context.Context, connectionID, providerConfigKey, path string, params url.Values, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, g.baseURL+path+"?"+params.Encode(), nil)
	if err != nil {
		return fmt.Errorf("failed to build gateway request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+g.secretKey)
	req.Header.Set("Connection-Id", connectionID)
	req.Header.Set("Provider-Config-Key", providerConfigKey)

	resp, err := g.client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to call gateway: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("gateway returned %d: %s", resp.StatusCode, body)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode gateway response: %w", err)
	}
	return nil
}
