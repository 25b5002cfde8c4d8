package datasource

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/hashicorp/go-retryablehttp"
	"github.com/sirupsen/logrus"

	"github.com/yourorg/affiliate-performance/internal/model"
)

// HTTPSource loads affiliate records from a remote affiliate-network API.
type HTTPSource struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

// NewHTTPSource creates a remote source with retrying transport.
func NewHTTPSource(baseURL, apiKey string) *HTTPSource {
	retryClient := retryablehttp.NewClient()
	retryClient.RetryMax = 3
	retryClient.RetryWaitMin = 500 * time.Millisecond
	retryClient.RetryWaitMax = 3 * time.Second
	retryClient.Logger = nil

	return &HTTPSource{
		baseURL:    baseURL,
		apiKey:     apiKey,
		httpClient: retryClient.StandardClient(),
	}
}

// Load retrieves affiliate records from the remote API.
func (s *HTTPSource) Load(ctx context.Context) ([]model.AffiliateRecord, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.baseURL+"/v1/affiliates", nil)
	if err != nil {
		return nil, &DataSourceError{Source: s.baseURL, Err: fmt.Errorf("error creating request: %w", err)}
	}

	req.Header.Set("Authorization", "Bearer "+s.apiKey)
	req.Header.Set("Content-Type", "application/json")

	logrus.Debugf("Fetching affiliate records from %s", s.baseURL)
	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, &DataSourceError{Source: s.baseURL, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, &DataSourceError{
			Source: s.baseURL,
			Err:    fmt.Errorf("affiliate API error: status %d, body: %s", resp.StatusCode, string(body)),
		}
	}

	// Structure matching the affiliate network API response
	var response struct {
		Data []struct {
			AffiliateID   string  `json:"affiliate_id"`
			Name          string  `json:"name"`
			Conversions   int     `json:"conversions"`
			Revenue       float64 `json:"revenue"`
			AvgOrderValue float64 `json:"avg_order_value"`
		} `json:"data"`
	}

	if err := json.NewDecoder(resp.Body).Decode(&response); err != nil {
		return nil, &DataSourceError{Source: s.baseURL, Err: fmt.Errorf("error decoding response: %w", err)}
	}

	records := make([]model.AffiliateRecord, 0, len(response.Data))
	for _, d := range response.Data {
		records = append(records, model.AffiliateRecord{
			AffiliateID:   d.AffiliateID,
			Name:          d.Name,
			Conversions:   d.Conversions,
			Revenue:       d.Revenue,
			AvgOrderValue: d.AvgOrderValue,
		})
	}

	logrus.Debugf("Received %d affiliate records from remote API", len(records))
	return records, nil
}
