package interceptor

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
)

// SizeSource records where a resolved size came from.
type SizeSource string

const (
	SourceHeader     SizeSource = "header"
	SourceBody       SizeSource = "body"
	SourceUnresolved SizeSource = "unresolved"
)

// ErrNoBody is returned for events that have no body reader at all.
var ErrNoBody = errors.New("interceptor: response has no readable body")

// Resolution is the outcome of resolving one event's byte size.
type Resolution struct {
	Source SizeSource
	Bytes  int64
	Err    error // set only when Source is SourceUnresolved
}

// Resolved reports whether the size is known.
func (r Resolution) Resolved() bool { return r.Source != SourceUnresolved }

// ResolveSize determines the byte size of ev.
//
// A valid content-length header wins, regardless of the real body length.
// Otherwise the body is read and measured. If that fails the event is
// unresolved and contributes zero bytes.
func ResolveSize(ctx context.Context, ev ResponseEvent) Resolution {
	if n, ok := parseContentLength(headerValue(ev.Headers, "Content-Length")); ok {
		return Resolution{Source: SourceHeader, Bytes: n}
	}

	if ev.Body == nil {
		return Resolution{Source: SourceUnresolved, Err: ErrNoBody}
	}
	body, err := readBody(ctx, ev.Body)
	if err != nil {
		return Resolution{Source: SourceUnresolved, Err: err}
	}
	return Resolution{Source: SourceBody, Bytes: int64(len(body))}
}

// headerValue looks name up case-insensitively, including keys that were
// stored without canonicalisation.
func headerValue(h http.Header, name string) string {
	if v := h.Get(name); v != "" {
		return v
	}
	for k, vs := range h {
		if strings.EqualFold(k, name) && len(vs) > 0 {
			return vs[0]
		}
	}
	return ""
}

// parseContentLength accepts a base-10, non-negative integer.
func parseContentLength(v string) (int64, bool) {
	v = strings.TrimSpace(v)
	if v == "" {
		return 0, false
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil || n < 0 {
		return 0, false
	}
	return n, true
}

// readBody calls read and converts a panic into an error.
func readBody(ctx context.Context, read BodyReader) (body []byte, err error) {
	defer func() {
		if r := recover(); r != nil {
			body, err = nil, fmt.Errorf("interceptor: body reader panicked: %v", r)
		}
	}()
	return read(ctx)
}
