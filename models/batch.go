package models

// BatchRequest is the payload for POST /api/v1/batch/scan.
type BatchRequest struct {
	// URLs is the list of target pages to audit. Required.
	URLs []string `json:"urls" binding:"required,min=1,max=100,dive,url"`

	// Options contains shared scan options applied to all URLs.
	Options BatchOptions `json:"options"`

	// WebhookURL receives a "batch.completed" event when the job ends.
	WebhookURL string `json:"webhook_url,omitempty" binding:"omitempty,url"`

	// WebhookSecret signs the webhook payload with HMAC-SHA256.
	WebhookSecret string `json:"webhook_secret,omitempty"`
}

// BatchOptions are the shared scan settings applied to every URL in a batch.
type BatchOptions struct {
	Timeout int               `json:"timeout,omitempty" binding:"omitempty,min=1,max=120"`
	Stealth bool              `json:"stealth,omitempty"`
	Headers map[string]string `json:"headers,omitempty"`
}

// BatchResponse is the immediate response for POST /api/v1/batch/scan.
type BatchResponse struct {
	ID     string `json:"id"`
	Status string `json:"status"`
	Total  int    `json:"total"`
}

// BatchStatusResponse is the response for GET /api/v1/batch/:id.
type BatchStatusResponse struct {
	ID        string          `json:"id"`
	Status    string          `json:"status"`
	Completed int             `json:"completed"`
	Total     int             `json:"total"`
	Results   []*ScanResponse `json:"results,omitempty"`
}

// Batch job statuses.
const (
	BatchProcessing = "processing"
	BatchCompleted  = "completed"
	BatchPartial    = "partial"
	BatchFailed     = "failed"
)
