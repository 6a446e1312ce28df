package webhook

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fastNotifier() *Notifier {
	n := NewNotifier()
	n.delays = []time.Duration{0, time.Millisecond, time.Millisecond}
	n.client.Timeout = time.Second
	return n
}

func TestDeliver_SignsBody(t *testing.T) {
	var (
		gotBody []byte
		gotSig  string
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotBody, _ = io.ReadAll(r.Body)
		gotSig = r.Header.Get(SignatureHeader)
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	ev := NewEvent(EventBatchCompleted, "job-1", map[string]int{"total": 2})
	require.NoError(t, fastNotifier().Deliver(context.Background(), srv.URL, "s3cret", ev))

	assert.True(t, Verify("s3cret", gotBody, gotSig))
	assert.False(t, Verify("other", gotBody, gotSig))

	var decoded Event
	require.NoError(t, json.Unmarshal(gotBody, &decoded))
	assert.Equal(t, EventBatchCompleted, decoded.Type)
	assert.Equal(t, "job-1", decoded.JobID)
}

func TestDeliver_NoSecretNoSignature(t *testing.T) {
	var hasSig atomic.Bool
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hasSig.Store(r.Header.Get(SignatureHeader) != "")
	}))
	defer srv.Close()

	require.NoError(t, fastNotifier().Deliver(context.Background(), srv.URL, "", NewEvent("x", "j", nil)))
	assert.False(t, hasSig.Load())
}

func TestDeliver_ErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	err := fastNotifier().Deliver(context.Background(), srv.URL, "", NewEvent("x", "j", nil))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "502")
}

func TestDeliverAsync_RetriesUntilSuccess(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	n := fastNotifier()
	n.DeliverAsync(context.Background(), srv.URL, "", NewEvent(EventBatchCompleted, "job-2", nil))
	n.Wait()

	assert.EqualValues(t, 3, calls.Load())
}

func TestDeliverAsync_GivesUp(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	n := fastNotifier()
	n.DeliverAsync(context.Background(), srv.URL, "", NewEvent(EventBatchCompleted, "job-3", nil))
	n.Wait()

	assert.EqualValues(t, len(n.delays), calls.Load())
}

func TestDeliverAsync_StopsRetryingOnCancel(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	n := fastNotifier()
	n.delays = []time.Duration{0, time.Hour, time.Hour}

	ctx, cancel := context.WithCancel(context.Background())
	n.DeliverAsync(ctx, srv.URL, "", NewEvent(EventBatchCompleted, "job-4", nil))
	require.Eventually(t, func() bool { return calls.Load() == 1 }, 5*time.Second, 5*time.Millisecond)
	cancel()

	done := make(chan struct{})
	go func() {
		n.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("Wait blocked on a retry delay after cancel")
	}
	assert.EqualValues(t, 1, calls.Load())
}

func TestDeliverAsync_FirstAttemptRunsAfterCancel(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	n := fastNotifier()
	n.DeliverAsync(ctx, srv.URL, "", NewEvent(EventBatchCompleted, "job-5", nil))
	n.Wait()
	assert.EqualValues(t, 1, calls.Load())
}
