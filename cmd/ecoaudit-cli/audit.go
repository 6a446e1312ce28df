package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"github.com/tidwall/gjson"
)

var errBudgetExceeded = errors.New("page exceeds byte budget")

type auditOptions struct {
	apiURL   string
	apiKey   string
	url      string
	maxBytes int64
	timeout  int
}

func newAuditCmd(v *viper.Viper) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "audit",
		Short: "Scan a URL and fail when it downloads more than --max-bytes.",
		RunE: func(cmd *cobra.Command, args []string) error {
			opts := auditOptions{
				apiURL:   strings.TrimRight(v.GetString("api-url"), "/"),
				apiKey:   v.GetString("api-key"),
				url:      v.GetString("url"),
				maxBytes: v.GetInt64("max-bytes"),
				timeout:  v.GetInt("timeout"),
			}
			if opts.url == "" {
				return errors.New("--url is required")
			}
			return runAudit(cmd.Context(), cmd.OutOrStdout(), opts)
		},
	}

	cmd.Flags().String("url", "", "page to audit")
	cmd.Flags().Int64("max-bytes", 0, "fail when total bytes exceed this budget (0 disables the gate)")
	cmd.Flags().Int("timeout", 0, "scan timeout in seconds (server default when 0)")
	for _, name := range []string{"url", "max-bytes", "timeout"} {
		_ = v.BindPFlag(name, cmd.Flags().Lookup(name))
	}
	return cmd
}

func runAudit(ctx context.Context, out io.Writer, opts auditOptions) error {
	body, err := postScan(ctx, opts)
	if err != nil {
		return err
	}

	doc := gjson.ParseBytes(body)
	if !doc.Get("success").Bool() {
		return fmt.Errorf("scan failed: [%s] %s",
			doc.Get("error.code").String(), doc.Get("error.message").String())
	}

	total := doc.Get("total_bytes").Int()
	fmt.Fprintf(out, "URL:        %s\n", doc.Get("url").String())
	fmt.Fprintf(out, "Total:      %s (%d bytes, %d resources)\n",
		humanBytes(total), total, doc.Get("resource_count").Int())
	for _, cat := range []string{"image", "script", "stylesheet", "other"} {
		fmt.Fprintf(out, "  %-10s %d\n", cat+":", doc.Get("resources."+cat).Int())
	}
	if n := doc.Get("unresolved_count").Int(); n > 0 {
		fmt.Fprintf(out, "Unsized:    %d resources counted as 0 bytes\n", n)
	}
	if !doc.Get("settled").Bool() {
		fmt.Fprintln(out, "Warning:    page did not go idle before the timeout")
	}

	if opts.maxBytes > 0 {
		if total > opts.maxBytes {
			fmt.Fprintf(out, "FAIL: %d bytes exceeds budget of %d\n", total, opts.maxBytes)
			return errBudgetExceeded
		}
		fmt.Fprintf(out, "PASS: within budget of %d bytes\n", opts.maxBytes)
	}
	return nil
}

func postScan(ctx context.Context, opts auditOptions) ([]byte, error) {
	payload := map[string]any{"url": opts.url}
	if opts.timeout > 0 {
		payload["timeout"] = opts.timeout
	}
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, opts.apiURL+"/api/v1/scan", bytes.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if opts.apiKey != "" {
		req.Header.Set("X-API-Key", opts.apiKey)
	}

	client := &http.Client{Timeout: 150 * time.Second}
	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("API request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	if !gjson.ValidBytes(body) {
		return nil, fmt.Errorf("unexpected response (status %d)", resp.StatusCode)
	}
	return body, nil
}

func humanBytes(n int64) string {
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%d B", n)
	}
	div, exp := int64(unit), 0
	for m := n / unit; m >= unit; m /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %ciB", float64(n)/float64(div), "KMGTPE"[exp])
}
