package main

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func callTool(t *testing.T, h func(context.Context, mcp.CallToolRequest) (*mcp.CallToolResult, error), args map[string]any) *mcp.CallToolResult {
	t.Helper()
	var req mcp.CallToolRequest
	req.Params.Arguments = args
	res, err := h(context.Background(), req)
	require.NoError(t, err)
	return res
}

func resultText(t *testing.T, res *mcp.CallToolResult) string {
	t.Helper()
	require.NotEmpty(t, res.Content)
	text, ok := res.Content[0].(mcp.TextContent)
	require.True(t, ok)
	return text.Text
}

func TestScanURL(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v1/scan", r.URL.Path)
		assert.Equal(t, "k", r.Header.Get("X-API-Key"))
		var body map[string]any
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.EqualValues(t, 10, body["timeout"])
		_, _ = w.Write([]byte(`{"success":true,"url":"https://example.com","total_bytes":2848,
			"resources":{"image":2048,"script":500,"stylesheet":0,"other":300},"resource_count":3,"settled":true}`))
	}))
	defer srv.Close()

	res := callTool(t, handleScanURL(newAPIClient(srv.URL, "k")), map[string]any{"url": "https://example.com", "timeout": 10.0})
	assert.False(t, res.IsError)
	text := resultText(t, res)
	assert.Contains(t, text, "Total: 2848 bytes across 3 resources")
	assert.Contains(t, text, "image:      2048")
}

func TestScanURL_Errors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		_, _ = w.Write([]byte(`{"success":false,"error":{"code":"NAVIGATION_FAILED","message":"dns"}}`))
	}))
	defer srv.Close()
	h := handleScanURL(newAPIClient(srv.URL, ""))

	res := callTool(t, h, map[string]any{})
	assert.True(t, res.IsError)

	res = callTool(t, h, map[string]any{"url": "https://example.com"})
	assert.True(t, res.IsError)
	assert.Contains(t, resultText(t, res), "[NAVIGATION_FAILED] dns")
}

func TestBatchScan_Polls(t *testing.T) {
	var polls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.Method == http.MethodPost:
			_, _ = w.Write([]byte(`{"id":"batch-1","status":"processing","total":2}`))
		case polls.Add(1) < 2:
			_, _ = w.Write([]byte(`{"id":"batch-1","status":"processing","completed":1,"total":2}`))
		default:
			_, _ = w.Write([]byte(`{"id":"batch-1","status":"partial","completed":2,"total":2,"results":[
				{"success":true,"url":"https://a.example","total_bytes":10,"resources":{"image":10,"script":0,"stylesheet":0,"other":0},"settled":true},
				{"success":false,"error":{"code":"SCAN_TIMEOUT","message":"slow"}}]}`))
		}
	}))
	defer srv.Close()

	api := newAPIClient(srv.URL, "")
	api.pollInterval = 5 * time.Millisecond

	res := callTool(t, handleBatchScan(api), map[string]any{"urls": []any{"https://a.example", "https://b.example"}})
	require.False(t, res.IsError)
	text := resultText(t, res)
	assert.Contains(t, text, "Batch batch-1: partial (2/2 completed)")
	assert.Contains(t, text, "Total: 10 bytes")
	assert.Contains(t, text, "FAILED: [SCAN_TIMEOUT] slow")
	assert.EqualValues(t, 2, polls.Load())
}
