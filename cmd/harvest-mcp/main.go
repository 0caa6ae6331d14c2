// Command harvest-mcp exposes the harvest API as MCP tools over stdio.
package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/use-agent/harvest/models"
)

func main() {
	_ = godotenv.Load()

	apiURL := os.Getenv("HARVEST_API_URL")
	if apiURL == "" {
		apiURL = "http://127.0.0.1:8080"
	}
	apiKey := os.Getenv("HARVEST_API_KEY")
	if apiKey == "" {
		fmt.Fprintln(os.Stderr, "HARVEST_API_KEY is required")
		os.Exit(1)
	}

	s := server.NewMCPServer(
		"harvest",
		"1.0.0",
		server.WithToolCapabilities(false),
	)

	harvestTool := mcp.NewTool("harvest_listings",
		mcp.WithDescription("Collect every business listing a maps search returns for one location and one search term. Scrolls the infinite results panel to the end and returns name, address, website, category, phone, rating and review count for each listing."),
		mcp.WithString("location",
			mcp.Required(),
			mcp.Description("Area to search in, e.g. 'Domlur' or 'Austin Town'"),
		),
		mcp.WithString("term",
			mcp.Required(),
			mcp.Description("What to search for, e.g. 'drill machine'"),
		),
		mcp.WithNumber("max_age",
			mcp.Description("Serve a cached result younger than this many milliseconds (default: 0, no cache)"),
		),
	)
	s.AddTool(harvestTool, handleHarvest(apiURL, apiKey))

	runTool := mcp.NewTool("start_run",
		mcp.WithDescription("Harvest every location crossed with every term, one query at a time, and wait for the run to finish. Returns a per-query summary with record counts and dataset paths."),
		mcp.WithArray("locations",
			mcp.Required(),
			mcp.Description("Areas to search in"),
		),
		mcp.WithArray("terms",
			mcp.Required(),
			mcp.Description("Search terms"),
		),
	)
	s.AddTool(runTool, handleRun(apiURL, apiKey))

	if err := server.ServeStdio(s); err != nil {
		fmt.Fprintf(os.Stderr, "server error: %v\n", err)
		os.Exit(1)
	}
}

// apiPost sends a POST request to the harvest API and returns the response body.
func apiPost(ctx context.Context, client *http.Client, apiURL, apiKey, path string, payload any) ([]byte, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, apiURL+path, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-API-Key", apiKey)

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("API request failed: %w", err)
	}
	defer resp.Body.Close()

	return io.ReadAll(resp.Body)
}

// pollRun polls a run until it leaves "processing" or ctx is done.
func pollRun(ctx context.Context, client *http.Client, apiURL, apiKey, id string) (*models.RunStatusResponse, error) {
	ticker := time.NewTicker(5 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-ticker.C:
			req, err := http.NewRequestWithContext(ctx, http.MethodGet, apiURL+"/api/v1/runs/"+id, nil)
			if err != nil {
				return nil, fmt.Errorf("create poll request: %w", err)
			}
			req.Header.Set("X-API-Key", apiKey)

			resp, err := client.Do(req)
			if err != nil {
				return nil, fmt.Errorf("poll request failed: %w", err)
			}
			body, err := io.ReadAll(resp.Body)
			resp.Body.Close()
			if err != nil {
				return nil, fmt.Errorf("read poll response: %w", err)
			}

			var st models.RunStatusResponse
			if err := json.Unmarshal(body, &st); err != nil {
				return nil, fmt.Errorf("parse poll status: %w", err)
			}
			if st.Status != "processing" {
				return &st, nil
			}
		}
	}
}

func handleHarvest(apiURL, apiKey string) server.ToolHandlerFunc {
	client := &http.Client{Timeout: 30 * time.Minute}

	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		location, err := request.RequireString("location")
		if err != nil {
			return mcp.NewToolResultError("location is required"), nil
		}
		term, err := request.RequireString("term")
		if err != nil {
			return mcp.NewToolResultError("term is required"), nil
		}

		payload := models.HarvestRequest{
			Location: location,
			Term:     term,
			MaxAge:   int(request.GetFloat("max_age", 0)),
		}

		respBody, err := apiPost(ctx, client, apiURL, apiKey, "/api/v1/harvest", payload)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("harvest request failed: %v", err)), nil
		}

		var resp models.HarvestResponse
		if err := json.Unmarshal(respBody, &resp); err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("failed to parse response: %v", err)), nil
		}

		if !resp.Success && len(resp.Records) == 0 {
			errMsg := "harvest failed"
			if resp.Error != nil {
				errMsg = fmt.Sprintf("[%s] %s", resp.Error.Code, resp.Error.Message)
			}
			return mcp.NewToolResultError(errMsg), nil
		}

		return mcp.NewToolResultText(formatHarvest(&resp)), nil
	}
}

func handleRun(apiURL, apiKey string) server.ToolHandlerFunc {
	client := &http.Client{Timeout: 60 * time.Second}

	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		locations, err := request.RequireStringSlice("locations")
		if err != nil {
			return mcp.NewToolResultError("locations is required and must be an array of strings"), nil
		}
		terms, err := request.RequireStringSlice("terms")
		if err != nil {
			return mcp.NewToolResultError("terms is required and must be an array of strings"), nil
		}

		respBody, err := apiPost(ctx, client, apiURL, apiKey, "/api/v1/runs", models.RunRequest{
			Locations: locations,
			Terms:     terms,
		})
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("run request failed: %v", err)), nil
		}

		var created models.RunResponse
		if err := json.Unmarshal(respBody, &created); err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("failed to parse run response: %v", err)), nil
		}
		if created.ID == "" {
			return mcp.NewToolResultError("run creation failed: " + string(respBody)), nil
		}

		st, err := pollRun(ctx, client, apiURL, apiKey, created.ID)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("polling run %s failed: %v", created.ID, err)), nil
		}

		return mcp.NewToolResultText(formatRun(st)), nil
	}
}

func formatHarvest(resp *models.HarvestResponse) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "%d listings for %q (stop: %s)", resp.Count, resp.Query.String(), resp.StopReason)
	if resp.Dataset != "" {
		fmt.Fprintf(&sb, ", saved to %s", resp.Dataset)
	}
	if resp.Error != nil {
		fmt.Fprintf(&sb, "\nPartial result: [%s] %s", resp.Error.Code, resp.Error.Message)
	}
	sb.WriteString("\n\n")

	for i, r := range resp.Records {
		fmt.Fprintf(&sb, "%d. %s", i+1, r.Title)
		if r.Rating != "" {
			fmt.Fprintf(&sb, " (%s★, %s reviews)", r.Rating, r.Reviews)
		}
		sb.WriteString("\n")
		for _, f := range []struct{ label, value string }{
			{"Category", r.Category},
			{"Address", r.Address},
			{"Phone", r.Phone},
			{"Website", r.Website},
		} {
			if f.value != "" {
				fmt.Fprintf(&sb, "   %s: %s\n", f.label, f.value)
			}
		}
	}
	return sb.String()
}

func formatRun(st *models.RunStatusResponse) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Run %s: %s (%d completed, %d failed of %d; %d records)\n\n",
		st.ID, st.Status, st.Completed, st.Failed, st.Total, st.Records)

	for _, q := range st.Queries {
		if q.Error != nil {
			fmt.Fprintf(&sb, "- %s: FAILED [%s] %s", q.Query.String(), q.Error.Code, q.Error.Message)
			if q.Records > 0 {
				fmt.Fprintf(&sb, " (%d partial records in %s)", q.Records, q.Dataset)
			}
			sb.WriteString("\n")
			continue
		}
		fmt.Fprintf(&sb, "- %s: %d records → %s\n", q.Query.String(), q.Records, q.Dataset)
	}
	return sb.String()
}
