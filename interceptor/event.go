package interceptor

import (
	"context"
	"net/http"
)

// BodyReader lazily materialises a response body. It is expensive and may
// fail, e.g. for redirects or aborted loads.
type BodyReader func(ctx context.Context) ([]byte, error)

// ResponseEvent is one HTTP response observed during a page load.
type ResponseEvent struct {
	// RequestID and URL are diagnostic only; they never affect accounting.
	RequestID string
	URL       string

	// ResourceType is the raw classification supplied by the browser.
	ResourceType string

	// Headers holds the response headers. Use Headers.Get for
	// case-insensitive lookup.
	Headers http.Header

	// Body reads the full response body on demand. May be nil.
	Body BodyReader

	// Redirect marks a 3xx hop. Redirect hops carry no body.
	Redirect bool
}

// Source is a page-load session that can stream its responses.
//
// Subscribe must deliver every response observed after it returns. The
// returned stop function detaches the subscription; no callback may start
// after stop returns.
type Source interface {
	Subscribe(fn func(ResponseEvent)) (stop func())
}
