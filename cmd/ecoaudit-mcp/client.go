package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// breakdown mirrors the per-category byte totals of a scan.
type breakdown struct {
	Image      int64 `json:"image"`
	Script     int64 `json:"script"`
	Stylesheet int64 `json:"stylesheet"`
	Other      int64 `json:"other"`
}

type apiError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// scanResponse mirrors the EcoAudit scan response.
type scanResponse struct {
	Success         bool      `json:"success"`
	URL             string    `json:"url"`
	TotalBytes      int64     `json:"total_bytes"`
	Resources       breakdown `json:"resources"`
	ResourceCount   int       `json:"resource_count"`
	UnresolvedCount int       `json:"unresolved_count"`
	Settled         bool      `json:"settled"`
	Error           *apiError `json:"error"`
}

type batchResponse struct {
	ID     string `json:"id"`
	Status string `json:"status"`
	Total  int    `json:"total"`
}

type batchStatusResponse struct {
	ID        string          `json:"id"`
	Status    string          `json:"status"`
	Completed int             `json:"completed"`
	Total     int             `json:"total"`
	Results   []*scanResponse `json:"results"`
}

// apiClient talks to a running EcoAudit server.
type apiClient struct {
	baseURL      string
	apiKey       string
	client       *http.Client
	pollInterval time.Duration
}

func newAPIClient(baseURL, apiKey string) *apiClient {
	return &apiClient{
		baseURL:      baseURL,
		apiKey:       apiKey,
		client:       &http.Client{Timeout: 150 * time.Second},
		pollInterval: 2 * time.Second,
	}
}

func (a *apiClient) do(ctx context.Context, method, path string, payload, out any) error {
	var body io.Reader
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		body = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, a.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if a.apiKey != "" {
		req.Header.Set("X-API-Key", a.apiKey)
	}

	resp, err := a.client.Do(req)
	if err != nil {
		return fmt.Errorf("API request failed: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("parse response (status %d): %w", resp.StatusCode, err)
	}
	return nil
}

func (a *apiClient) scan(ctx context.Context, url string, timeout int) (*scanResponse, error) {
	payload := map[string]any{"url": url}
	if timeout > 0 {
		payload["timeout"] = timeout
	}
	var out scanResponse
	if err := a.do(ctx, http.MethodPost, "/api/v1/scan", payload, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// batch submits urls and polls until the job leaves the processing state.
func (a *apiClient) batch(ctx context.Context, urls []string) (*batchStatusResponse, error) {
	var created batchResponse
	if err := a.do(ctx, http.MethodPost, "/api/v1/batch/scan", map[string]any{"urls": urls}, &created); err != nil {
		return nil, err
	}
	if created.ID == "" {
		return nil, fmt.Errorf("batch job creation failed")
	}

	ticker := time.NewTicker(a.pollInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-ticker.C:
			var status batchStatusResponse
			if err := a.do(ctx, http.MethodGet, "/api/v1/batch/"+created.ID, nil, &status); err != nil {
				return nil, fmt.Errorf("poll batch: %w", err)
			}
			if status.Status != "processing" {
				return &status, nil
			}
		}
	}
}
