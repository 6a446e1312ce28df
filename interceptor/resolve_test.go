package interceptor

import (
	"context"
	"errors"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func bodyOf(n int) BodyReader {
	return func(context.Context) ([]byte, error) {
		return make([]byte, n), nil
	}
}

func failingBody(err error) BodyReader {
	return func(context.Context) ([]byte, error) {
		return nil, err
	}
}

func headers(kv ...string) http.Header {
	h := http.Header{}
	for i := 0; i+1 < len(kv); i += 2 {
		h.Add(kv[i], kv[i+1])
	}
	return h
}

func TestResolveSize(t *testing.T) {
	errRedirect := errors.New("no resource with given identifier")

	tests := []struct {
		name       string
		ev         ResponseEvent
		wantSource SizeSource
		wantBytes  int64
	}{
		{
			name:       "header wins over mismatched body",
			ev:         ResponseEvent{Headers: headers("content-length", "500"), Body: bodyOf(12)},
			wantSource: SourceHeader,
			wantBytes:  500,
		},
		{
			name:       "header zero",
			ev:         ResponseEvent{Headers: headers("Content-Length", "0"), Body: bodyOf(99)},
			wantSource: SourceHeader,
			wantBytes:  0,
		},
		{
			name:       "header with surrounding spaces",
			ev:         ResponseEvent{Headers: headers("CONTENT-LENGTH", " 42 ")},
			wantSource: SourceHeader,
			wantBytes:  42,
		},
		{
			name:       "non-canonical header key",
			ev:         ResponseEvent{Headers: http.Header{"content-length": {"77"}}},
			wantSource: SourceHeader,
			wantBytes:  77,
		},
		{
			name:       "missing header falls back to body",
			ev:         ResponseEvent{Headers: headers(), Body: bodyOf(2048)},
			wantSource: SourceBody,
			wantBytes:  2048,
		},
		{
			name:       "nil headers falls back to body",
			ev:         ResponseEvent{Body: bodyOf(10)},
			wantSource: SourceBody,
			wantBytes:  10,
		},
		{
			name:       "negative header falls back to body",
			ev:         ResponseEvent{Headers: headers("Content-Length", "-5"), Body: bodyOf(3)},
			wantSource: SourceBody,
			wantBytes:  3,
		},
		{
			name:       "garbage header falls back to body",
			ev:         ResponseEvent{Headers: headers("Content-Length", "12kb"), Body: bodyOf(7)},
			wantSource: SourceBody,
			wantBytes:  7,
		},
		{
			name:       "body read failure",
			ev:         ResponseEvent{Redirect: true, Body: failingBody(errRedirect)},
			wantSource: SourceUnresolved,
			wantBytes:  0,
		},
		{
			name:       "no body reader",
			ev:         ResponseEvent{},
			wantSource: SourceUnresolved,
			wantBytes:  0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ResolveSize(context.Background(), tt.ev)
			assert.Equal(t, tt.wantSource, got.Source)
			assert.Equal(t, tt.wantBytes, got.Bytes)
			if tt.wantSource == SourceUnresolved {
				assert.Error(t, got.Err)
			} else {
				assert.NoError(t, got.Err)
			}
		})
	}
}

func TestResolveSize_HeaderSkipsBodyRead(t *testing.T) {
	read := false
	ev := ResponseEvent{
		Headers: headers("Content-Length", "10"),
		Body: func(context.Context) ([]byte, error) {
			read = true
			return nil, nil
		},
	}

	ResolveSize(context.Background(), ev)
	assert.False(t, read, "body must not be read when content-length is valid")
}

func TestResolveSize_PanickingReader(t *testing.T) {
	ev := ResponseEvent{Body: func(context.Context) ([]byte, error) {
		panic("connection reset")
	}}

	got := ResolveSize(context.Background(), ev)
	assert.Equal(t, SourceUnresolved, got.Source)
	assert.ErrorContains(t, got.Err, "connection reset")
}

func TestResolveSize_NoBodyError(t *testing.T) {
	got := ResolveSize(context.Background(), ResponseEvent{})
	assert.ErrorIs(t, got.Err, ErrNoBody)
}
