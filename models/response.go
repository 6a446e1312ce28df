package models

import "github.com/ecoaudit/scanner/interceptor"

// ScanResponse is the response for POST /api/v1/scan.
type ScanResponse struct {
	// Success indicates whether the scan completed. A scan where some
	// resources could not be sized is still a success.
	Success bool `json:"success"`

	// ID identifies the stored history record, when history is enabled.
	ID string `json:"id,omitempty"`

	// Result is the byte-accounting snapshot, inlined into the response.
	*interceptor.Result

	// Timing provides duration breakdowns for the operation.
	Timing TimingInfo `json:"timing"`

	// CacheStatus indicates whether the response was served from cache.
	// Values: "hit", "miss", or empty (caching not requested).
	CacheStatus string `json:"cache_status,omitempty"`

	// Error is populated only when Success is false.
	Error *ErrorDetail `json:"error,omitempty"`

	// Partial carries whatever was measured before a failed scan aborted.
	Partial *interceptor.Result `json:"partial,omitempty"`
}

// TimingInfo breaks down the time spent in each phase.
type TimingInfo struct {
	// TotalMs is the end-to-end duration in milliseconds.
	TotalMs int64 `json:"total_ms"`

	// ScanMs is the time spent loading the page and settling.
	ScanMs int64 `json:"scan_ms"`
}

// HealthResponse is the response for GET /api/v1/health.
type HealthResponse struct {
	Status    string    `json:"status"` // "healthy" or "degraded"
	Uptime    string    `json:"uptime"`
	PoolStats PoolStats `json:"pool_stats"`
	History   bool      `json:"history"`
	Version   string    `json:"version"`
}

// PoolStats reports the state of the browser page pool.
type PoolStats struct {
	MaxPages    int `json:"max_pages"`
	ActivePages int `json:"active_pages"`
}

// HistoryEntry is one stored scan in GET /api/v1/scans responses.
type HistoryEntry struct {
	ID        string `json:"id"`
	CreatedAt int64  `json:"created_at"` // unix timestamp
	interceptor.Result
}

// HistoryResponse is the response for GET /api/v1/scans.
type HistoryResponse struct {
	Scans []HistoryEntry `json:"scans"`
	Total int            `json:"total"`
}
