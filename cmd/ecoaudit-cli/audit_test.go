package main

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const okBody = `{"success":true,"url":"https://example.com","total_bytes":2848,
"resources":{"image":2048,"script":500,"stylesheet":0,"other":300},
"resource_count":3,"unresolved_count":1,"settled":true}`

func fakeAPI(t *testing.T, status int, body string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v1/scan", r.URL.Path)
		assert.Equal(t, http.MethodPost, r.Method)
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func runCLI(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestAudit_WithinBudget(t *testing.T) {
	srv := fakeAPI(t, http.StatusOK, okBody)

	out, err := runCLI(t, "audit", "--api-url", srv.URL, "--url", "https://example.com", "--max-bytes", "3000")
	require.NoError(t, err)
	assert.Contains(t, out, "2848 bytes, 3 resources")
	assert.Contains(t, out, "image:")
	assert.Contains(t, out, "Unsized:    1")
	assert.Contains(t, out, "PASS")
}

func TestAudit_OverBudget(t *testing.T) {
	srv := fakeAPI(t, http.StatusOK, okBody)

	out, err := runCLI(t, "audit", "--api-url", srv.URL, "--url", "https://example.com", "--max-bytes", "1000")
	assert.ErrorIs(t, err, errBudgetExceeded)
	assert.Contains(t, out, "FAIL: 2848 bytes exceeds budget of 1000")
}

func TestAudit_ScanFailure(t *testing.T) {
	srv := fakeAPI(t, http.StatusBadGateway, `{"success":false,"error":{"code":"NAVIGATION_FAILED","message":"dns"}}`)

	_, err := runCLI(t, "audit", "--api-url", srv.URL, "--url", "https://example.com")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "NAVIGATION_FAILED")
}

func TestAudit_EnvOverride(t *testing.T) {
	srv := fakeAPI(t, http.StatusOK, okBody)
	t.Setenv("ECOAUDIT_API_URL", srv.URL)

	out, err := runCLI(t, "audit", "--url", "https://example.com")
	require.NoError(t, err)
	assert.NotContains(t, out, "PASS", "no budget, no gate")
}

func TestAudit_RequiresURL(t *testing.T) {
	_, err := runCLI(t, "audit")
	assert.Error(t, err)
}

func TestHumanBytes(t *testing.T) {
	assert.Equal(t, "512 B", humanBytes(512))
	assert.Equal(t, "2.0 KiB", humanBytes(2048))
	assert.Equal(t, "1.5 MiB", humanBytes(1536*1024))
}
