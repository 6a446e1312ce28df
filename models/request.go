package models

// ScanRequest is the payload for POST /api/v1/scan.
type ScanRequest struct {
	// URL is the target page to audit. Required.
	URL string `json:"url" binding:"required,url"`

	// Timeout is the hard ceiling in seconds for the whole scan
	// (navigation + settle). Default: 30. Max: 120.
	Timeout int `json:"timeout,omitempty" binding:"omitempty,min=1,max=120"`

	// Stealth enables anti-bot-detection evasions (e.g. navigator.webdriver masking).
	Stealth bool `json:"stealth,omitempty"`

	// Headers are extra HTTP headers sent with every request of the page load.
	Headers map[string]string `json:"headers,omitempty"`

	// Actions run after the page settles, e.g. scrolling to trigger lazy
	// loaded images. The page is allowed to settle again afterwards.
	Actions []Action `json:"actions,omitempty" binding:"omitempty,max=20,dive"`

	// MaxAge allows serving a cached result younger than this many
	// milliseconds. 0 disables the cache for this request.
	MaxAge int `json:"max_age,omitempty" binding:"omitempty,min=0"`
}

// Action is a single browser interaction performed before the scan is finalized.
type Action struct {
	// Type is one of "wait", "scroll", "click".
	Type string `json:"type" binding:"required,oneof=wait scroll click"`

	// Selector targets an element for "click", or is awaited by "wait".
	Selector string `json:"selector,omitempty"`

	// Milliseconds is the sleep duration for "wait" without a selector.
	Milliseconds int `json:"milliseconds,omitempty" binding:"omitempty,min=0,max=30000"`

	// Direction is "up", "down" (default) or "bottom" for "scroll". "bottom"
	// keeps scrolling until the end of the page so every lazy image loads.
	Direction string `json:"direction,omitempty" binding:"omitempty,oneof=up down bottom"`

	// Amount is the number of viewports to scroll. Default: 1, or up to 50
	// for "bottom".
	Amount int `json:"amount,omitempty" binding:"omitempty,min=0,max=50"`
}

// Defaults applies default values to unset fields.
func (r *ScanRequest) Defaults() {
	if r.Timeout == 0 {
		r.Timeout = 30
	}
}
