package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
)

func handleScanURL(api *apiClient) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		url, err := request.RequireString("url")
		if err != nil {
			return mcp.NewToolResultError("url is required"), nil
		}
		timeout := int(request.GetFloat("timeout", 0))

		resp, err := api.scan(ctx, url, timeout)
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		if !resp.Success {
			return mcp.NewToolResultError(errorText(resp)), nil
		}
		return mcp.NewToolResultText(formatScan(resp)), nil
	}
}

func handleBatchScan(api *apiClient) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		urls, err := request.RequireStringSlice("urls")
		if err != nil {
			return mcp.NewToolResultError("urls is required and must be an array of strings"), nil
		}

		status, err := api.batch(ctx, urls)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("batch scan failed: %v", err)), nil
		}

		var sb strings.Builder
		fmt.Fprintf(&sb, "Batch %s: %s (%d/%d completed)\n\n", status.ID, status.Status, status.Completed, status.Total)
		for i, r := range status.Results {
			switch {
			case r == nil:
				fmt.Fprintf(&sb, "--- [%d] pending ---\n\n", i+1)
			case r.Success:
				fmt.Fprintf(&sb, "--- [%d] ---\n%s\n\n", i+1, formatScan(r))
			default:
				fmt.Fprintf(&sb, "--- [%d] FAILED: %s ---\n\n", i+1, errorText(r))
			}
		}
		return mcp.NewToolResultText(sb.String()), nil
	}
}

func formatScan(r *scanResponse) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "URL: %s\n", r.URL)
	fmt.Fprintf(&sb, "Total: %d bytes across %d resources\n", r.TotalBytes, r.ResourceCount)
	fmt.Fprintf(&sb, "  image:      %d\n", r.Resources.Image)
	fmt.Fprintf(&sb, "  script:     %d\n", r.Resources.Script)
	fmt.Fprintf(&sb, "  stylesheet: %d\n", r.Resources.Stylesheet)
	fmt.Fprintf(&sb, "  other:      %d\n", r.Resources.Other)
	if r.UnresolvedCount > 0 {
		fmt.Fprintf(&sb, "Unsized resources: %d\n", r.UnresolvedCount)
	}
	if !r.Settled {
		sb.WriteString("Note: the page did not go idle before the timeout\n")
	}
	return sb.String()
}

func errorText(r *scanResponse) string {
	if r.Error == nil {
		return "scan failed"
	}
	return fmt.Sprintf("[%s] %s", r.Error.Code, r.Error.Message)
}
