package scraper

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"net/http"
	"sync"

	"github.com/ecoaudit/scanner/interceptor"
	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/proto"
)

var (
	errRedirectNoBody = errors.New("redirect response has no body")
	errSourceStopped  = errors.New("page source stopped before the response finished loading")
)

// loadState tracks whether a response body has finished loading. done is
// closed exactly once; err is set before that when loading failed.
type loadState struct {
	done chan struct{}
	err  error
}

// pageSource streams the responses of one rod page as interceptor events.
//
// Bodies are only readable once Chrome reports Network.loadingFinished, so
// every body reader first waits for that signal (or loadingFailed).
//
// The page must not run a hijack router at the same time: with Fetch
// interception active, recent Chromium fails these requests with
// ERR_BLOCKED_BY_CLIENT.
type pageSource struct {
	page *rod.Page

	mu      sync.Mutex
	loads   map[proto.NetworkRequestID]*loadState
	stopped bool
}

func newPageSource(page *rod.Page) *pageSource {
	return &pageSource{
		page:  page,
		loads: make(map[proto.NetworkRequestID]*loadState),
	}
}

// Subscribe attaches CDP network listeners to the page. The listeners live
// until stop is called or the page's context ends.
func (s *pageSource) Subscribe(fn func(interceptor.ResponseEvent)) (stop func()) {
	ctx, cancel := context.WithCancel(s.page.GetContext())
	p := s.page.Context(ctx)

	wait := p.EachEvent(
		func(e *proto.NetworkRequestWillBeSent) {
			if e.RedirectResponse == nil {
				return
			}
			fn(interceptor.ResponseEvent{
				RequestID:    string(e.RequestID),
				URL:          e.RedirectResponse.URL,
				ResourceType: string(e.Type),
				Headers:      toHTTPHeader(e.RedirectResponse.Headers),
				Body: func(context.Context) ([]byte, error) {
					return nil, errRedirectNoBody
				},
				Redirect: true,
			})
		},
		func(e *proto.NetworkResponseReceived) {
			s.track(e.RequestID)
			fn(interceptor.ResponseEvent{
				RequestID:    string(e.RequestID),
				URL:          e.Response.URL,
				ResourceType: string(e.Type),
				Headers:      toHTTPHeader(e.Response.Headers),
				Body:         s.bodyReader(e.RequestID),
			})
		},
		func(e *proto.NetworkLoadingFinished) {
			s.finish(e.RequestID, nil)
		},
		func(e *proto.NetworkLoadingFailed) {
			s.finish(e.RequestID, fmt.Errorf("loading failed: %s", e.ErrorText))
		},
	)

	done := make(chan struct{})
	go func() {
		defer close(done)
		wait()
	}()

	var once sync.Once
	return func() {
		once.Do(func() {
			cancel()
			<-done
			s.shutdown()
		})
	}
}

func (s *pageSource) track(id proto.NetworkRequestID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.loads[id]; !ok {
		s.loads[id] = &loadState{done: make(chan struct{})}
	}
}

func (s *pageSource) finish(id proto.NetworkRequestID, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	st, ok := s.loads[id]
	if !ok {
		// Failed before any response arrived; nothing is waiting on it.
		return
	}
	select {
	case <-st.done:
	default:
		st.err = err
		close(st.done)
	}
}

// shutdown releases readers still waiting for a loading signal.
func (s *pageSource) shutdown() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stopped = true
	for _, st := range s.loads {
		select {
		case <-st.done:
		default:
			st.err = errSourceStopped
			close(st.done)
		}
	}
}

func (s *pageSource) state(id proto.NetworkRequestID) (*loadState, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	st, ok := s.loads[id]
	return st, ok
}

func (s *pageSource) forget(id proto.NetworkRequestID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.stopped {
		delete(s.loads, id)
	}
}

// bodyReader waits until the response has finished loading and then pulls
// its body through Network.getResponseBody.
func (s *pageSource) bodyReader(id proto.NetworkRequestID) interceptor.BodyReader {
	return func(ctx context.Context) ([]byte, error) {
		defer s.forget(id)

		st, ok := s.state(id)
		if !ok {
			return nil, errSourceStopped
		}
		select {
		case <-st.done:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
		if st.err != nil {
			return nil, st.err
		}

		res, err := proto.NetworkGetResponseBody{RequestID: id}.Call(s.page.Context(ctx))
		if err != nil {
			return nil, fmt.Errorf("get response body: %w", err)
		}
		if !res.Base64Encoded {
			return []byte(res.Body), nil
		}
		body, err := base64.StdEncoding.DecodeString(res.Body)
		if err != nil {
			return nil, fmt.Errorf("decode response body: %w", err)
		}
		return body, nil
	}
}

// toHTTPHeader converts CDP headers into a canonicalised http.Header.
func toHTTPHeader(h proto.NetworkHeaders) http.Header {
	out := make(http.Header, len(h))
	for k, v := range h {
		out.Add(k, v.Str())
	}
	return out
}
