package main

import (
	"fmt"
	"os"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
)

func main() {
	apiURL := os.Getenv("ECOAUDIT_API_URL")
	if apiURL == "" {
		apiURL = "http://127.0.0.1:3000"
	}
	apiKey := os.Getenv("ECOAUDIT_API_KEY")

	if err := server.ServeStdio(newServer(newAPIClient(apiURL, apiKey))); err != nil {
		fmt.Fprintf(os.Stderr, "server error: %v\n", err)
		os.Exit(1)
	}
}

func newServer(api *apiClient) *server.MCPServer {
	s := server.NewMCPServer(
		"ecoaudit",
		"1.0.0",
		server.WithToolCapabilities(false),
	)

	scanURLTool := mcp.NewTool("scan_url",
		mcp.WithDescription("Load a web page in a headless browser and report how many bytes it downloads, broken down into images, scripts, stylesheets and other resources."),
		mcp.WithString("url",
			mcp.Required(),
			mcp.Description("The URL of the web page to audit"),
		),
		mcp.WithNumber("timeout",
			mcp.Description("Hard ceiling for the page load in seconds (default: 30, max: 120)"),
		),
	)
	s.AddTool(scanURLTool, handleScanURL(api))

	batchScanTool := mcp.NewTool("batch_scan",
		mcp.WithDescription("Audit the network footprint of several URLs in parallel and report the byte totals for each."),
		mcp.WithArray("urls",
			mcp.Required(),
			mcp.Description("List of URLs to audit"),
		),
	)
	s.AddTool(batchScanTool, handleBatchScan(api))

	return s
}
