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

	"github.com/LedMarketing/OpenManus/config"
	"github.com/LedMarketing/OpenManus/models"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"github.com/spf13/cobra"
)

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Expose the running server's API as MCP tools over stdio",
	Long: `Starts a Model Context Protocol server on stdin/stdout. Every tool call
is proxied to the HTTP API at OPENMANUS_API_URL (default http://127.0.0.1:3000),
so the server's rate limit and history apply.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		cfg := config.Load()
		initLogger(cfg.Log, os.Stderr)

		apiURL := os.Getenv("OPENMANUS_API_URL")
		if apiURL == "" {
			apiURL = fmt.Sprintf("http://127.0.0.1:%d", cfg.Server.Port)
		}
		return server.ServeStdio(newMCPServer(newAPIClient(apiURL)))
	},
}

// apiClient posts JSON to the OpenManus HTTP API.
type apiClient struct {
	http    *http.Client
	baseURL string
}

func newAPIClient(baseURL string) *apiClient {
	return &apiClient{
		http:    &http.Client{Timeout: 120 * time.Second},
		baseURL: strings.TrimRight(baseURL, "/"),
	}
}

// post sends payload to path and decodes a successful response into out.
// Error envelopes come back as a Go error carrying the server's message.
func (a *apiClient) post(ctx context.Context, path string, payload, out any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := a.http.Do(req)
	if err != nil {
		return fmt.Errorf("API request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode >= http.StatusBadRequest {
		var apiErr models.ErrorResponse
		if err := json.Unmarshal(respBody, &apiErr); err != nil || apiErr.Error == "" {
			return fmt.Errorf("API returned HTTP %d", resp.StatusCode)
		}
		if apiErr.RetryAfter > 0 {
			return fmt.Errorf("%s (retry after %ds)", apiErr.Error, apiErr.RetryAfter)
		}
		return fmt.Errorf("%s", apiErr.Error)
	}

	if err := json.Unmarshal(respBody, out); err != nil {
		return fmt.Errorf("parse response: %w", err)
	}
	return nil
}

func newMCPServer(api *apiClient) *server.MCPServer {
	s := server.NewMCPServer(
		"openmanus",
		"1.0.0",
		server.WithToolCapabilities(false),
	)

	chatTool := mcp.NewTool("chat",
		mcp.WithDescription("Send a message to the OpenManus assistant and return its reply. Pass session_id to continue a conversation."),
		mcp.WithString("message",
			mcp.Required(),
			mcp.Description("The user message"),
		),
		mcp.WithString("session_id",
			mcp.Description("Conversation id returned by a previous chat call"),
		),
	)
	s.AddTool(chatTool, handleChat(api))

	generateCodeTool := mcp.NewTool("generate_code",
		mcp.WithDescription("Generate source code for a task description."),
		mcp.WithString("prompt",
			mcp.Required(),
			mcp.Description("What the code should do"),
		),
		mcp.WithString("language",
			mcp.Description("Target language (default: javascript)"),
		),
		mcp.WithString("requirements",
			mcp.Description("Extra constraints appended to the prompt"),
		),
	)
	s.AddTool(generateCodeTool, handleGenerateCode(api))

	scrapeBasicTool := mcp.NewTool("scrape_basic",
		mcp.WithDescription("Fetch a page without JavaScript and return its title, description, keywords, headings, links and images as JSON."),
		mcp.WithString("url",
			mcp.Required(),
			mcp.Description("Absolute http(s) URL"),
		),
		mcp.WithBoolean("include_content",
			mcp.Description("Also return the main article content as markdown"),
		),
	)
	s.AddTool(scrapeBasicTool, handleScrapeBasic(api))

	scrapeAdvancedTool := mcp.NewTool("scrape_advanced",
		mcp.WithDescription("Render a page in a headless browser. With selectors, returns matching elements per name; without, returns title, url and visible text."),
		mcp.WithString("url",
			mcp.Required(),
			mcp.Description("Absolute http(s) URL"),
		),
		mcp.WithObject("selectors",
			mcp.Description("Map of field name to CSS selector"),
		),
	)
	s.AddTool(scrapeAdvancedTool, handleScrapeAdvanced(api))

	generateScraperTool := mcp.NewTool("generate_scraper",
		mcp.WithDescription("Ask the assistant to write a Node.js scraper script for a URL."),
		mcp.WithString("url",
			mcp.Required(),
			mcp.Description("The page the script should target"),
		),
		mcp.WithString("requirements",
			mcp.Description("What data the script should extract"),
		),
	)
	s.AddTool(generateScraperTool, handleGenerateScraper(api))

	return s
}

func handleChat(api *apiClient) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		message, err := request.RequireString("message")
		if err != nil {
			return mcp.NewToolResultError("message is required"), nil
		}

		var resp models.ChatResponse
		err = api.post(ctx, "/api/chat", models.ChatRequest{
			Message:   message,
			SessionID: request.GetString("session_id", ""),
		}, &resp)
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}

		result := resp.Response
		if resp.SessionID != "" {
			result += "\n\n---\nsession_id: " + resp.SessionID
		}
		return mcp.NewToolResultText(result), nil
	}
}

func handleGenerateCode(api *apiClient) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		prompt, err := request.RequireString("prompt")
		if err != nil {
			return mcp.NewToolResultError("prompt is required"), nil
		}

		var resp models.GenerateCodeResponse
		err = api.post(ctx, "/api/generate-code", models.GenerateCodeRequest{
			Prompt:       prompt,
			Language:     request.GetString("language", ""),
			Requirements: request.GetString("requirements", ""),
		}, &resp)
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		return mcp.NewToolResultText(resp.Code), nil
	}
}

func handleScrapeBasic(api *apiClient) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		url, err := request.RequireString("url")
		if err != nil {
			return mcp.NewToolResultError("url is required"), nil
		}

		var resp models.ScrapeBasicResponse
		err = api.post(ctx, "/api/scrape-basic", models.ScrapeBasicRequest{
			URL:            url,
			IncludeContent: request.GetBool("include_content", false),
		}, &resp)
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		return jsonResult(resp.Data)
	}
}

func handleScrapeAdvanced(api *apiClient) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		url, err := request.RequireString("url")
		if err != nil {
			return mcp.NewToolResultError("url is required"), nil
		}

		selectors, err := selectorArgs(request.GetArguments()["selectors"])
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}

		// Data is either a fallback summary or a field map; pass it through as-is.
		var resp struct {
			Data json.RawMessage `json:"data"`
		}
		err = api.post(ctx, "/api/scrape-advanced", models.ScrapeAdvancedRequest{
			URL:       url,
			Selectors: selectors,
		}, &resp)
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		var out bytes.Buffer
		if err := json.Indent(&out, resp.Data, "", "  "); err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("failed to parse result: %v", err)), nil
		}
		return mcp.NewToolResultText(out.String()), nil
	}
}

func handleGenerateScraper(api *apiClient) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		url, err := request.RequireString("url")
		if err != nil {
			return mcp.NewToolResultError("url is required"), nil
		}

		var resp models.GenerateScraperResponse
		err = api.post(ctx, "/api/generate-scraper", models.GenerateScraperRequest{
			URL:          url,
			Requirements: request.GetString("requirements", ""),
		}, &resp)
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}

		result := resp.Script
		if !resp.Syntax.Valid && resp.Syntax.Error != "" {
			result += "\n\n---\nsyntax check: " + resp.Syntax.Error
		}
		return mcp.NewToolResultText(result), nil
	}
}

// selectorArgs converts the loosely typed MCP object argument into a
// name -> selector map.
func selectorArgs(raw any) (map[string]string, error) {
	if raw == nil {
		return nil, nil
	}
	obj, ok := raw.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("selectors must be an object of name to CSS selector")
	}

	out := make(map[string]string, len(obj))
	for name, v := range obj {
		sel, ok := v.(string)
		if !ok {
			return nil, fmt.Errorf("selector %q must be a string", name)
		}
		out[name] = sel
	}
	return out, nil
}

func jsonResult(v any) (*mcp.CallToolResult, error) {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to encode result: %v", err)), nil
	}
	return mcp.NewToolResultText(string(b)), nil
}
