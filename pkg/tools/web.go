package tools

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	readability "github.com/go-shiori/go-readability"
)

// WebSearchTool searches the web through the Brave Search API.
type WebSearchTool struct {
	APIKey     string
	MaxResults int
	Endpoint   string

	client *http.Client
}

// NewWebSearchTool creates a WebSearchTool.
func NewWebSearchTool(apiKey string, maxResults int) *WebSearchTool {
	if maxResults <= 0 {
		maxResults = 5
	}
	return &WebSearchTool{
		APIKey:     apiKey,
		MaxResults: maxResults,
		Endpoint:   "https://api.search.brave.com/res/v1/web/search",
		client:     &http.Client{Timeout: 10 * time.Second},
	}
}

func (t *WebSearchTool) Name() string        { return "web_search" }
func (t *WebSearchTool) Description() string { return "Search the web. Returns titles, URLs, and snippets." }

func (t *WebSearchTool) Parameters() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"query": map[string]any{"type": "string", "description": "Search query"},
			"count": map[string]any{"type": "integer", "description": "Number of results (1-10)", "minimum": 1, "maximum": 10},
		},
		"required": []string{"query"},
	}
}

func (t *WebSearchTool) Execute(args map[string]any) (string, error) {
	if t.APIKey == "" {
		return "Error: web search is not configured (missing Brave API key)", nil
	}
	query, err := strArg(args, "query")
	if err != nil {
		return "", err
	}

	count := t.MaxResults
	if c, ok := args["count"].(float64); ok {
		count = int(c)
	}
	count = min(max(count, 1), 10)

	reqURL := fmt.Sprintf("%s?q=%s&count=%d", t.Endpoint, url.QueryEscape(query), count)
	req, err := http.NewRequest(http.MethodGet, reqURL, nil)
	if err != nil {
		return "", err
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Subscription-Token", t.APIKey)

	resp, err := t.client.Do(req)
	if err != nil {
		return fmt.Sprintf("Error: search request failed: %v", err), nil
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Sprintf("Error: search API returned status %d", resp.StatusCode), nil
	}

	var result struct {
		Web struct {
			Results []struct {
				Title       string `json:"title"`
				URL         string `json:"url"`
				Description string `json:"description"`
			} `json:"results"`
		} `json:"web"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return fmt.Sprintf("Error: failed to parse search response: %v", err), nil
	}
	if len(result.Web.Results) == 0 {
		return fmt.Sprintf("No results for: %s", query), nil
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "Results for: %s\n", query)
	for i, item := range result.Web.Results {
		fmt.Fprintf(&sb, "%d. %s\n   %s\n", i+1, item.Title, item.URL)
		if item.Description != "" {
			fmt.Fprintf(&sb, "   %s\n", item.Description)
		}
	}
	return sb.String(), nil
}

// WebFetchTool fetches a URL and extracts its readable text content.
type WebFetchTool struct {
	MaxChars int

	client *http.Client
}

// NewWebFetchTool creates a WebFetchTool.
func NewWebFetchTool(maxChars int) *WebFetchTool {
	if maxChars <= 0 {
		maxChars = 50000
	}
	return &WebFetchTool{
		MaxChars: maxChars,
		client:   &http.Client{Timeout: 15 * time.Second},
	}
}

func (t *WebFetchTool) Name() string { return "web_fetch" }
func (t *WebFetchTool) Description() string {
	return "Fetch a URL and extract its readable text content. Use for reading web pages, articles, documentation."
}

func (t *WebFetchTool) Parameters() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"url": map[string]any{"type": "string", "description": "URL to fetch"},
		},
		"required": []string{"url"},
	}
}

func (t *WebFetchTool) Execute(args map[string]any) (string, error) {
	rawURL, err := strArg(args, "url")
	if err != nil {
		return "", err
	}
	parsed, err := url.Parse(rawURL)
	if err != nil || (parsed.Scheme != "http" && parsed.Scheme != "https") {
		return fmt.Sprintf("Error: invalid URL: %s", rawURL), nil
	}

	req, err := http.NewRequest(http.MethodGet, rawURL, nil)
	if err != nil {
		return "", err
	}
	req.Header.Set("User-Agent", "Mozilla/5.0 (compatible; wren/1.0)")

	resp, err := t.client.Do(req)
	if err != nil {
		return fmt.Sprintf("Error: fetch failed: %v", err), nil
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return fmt.Sprintf("Error: HTTP %d from %s", resp.StatusCode, rawURL), nil
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return fmt.Sprintf("Error: read failed: %v", err), nil
	}

	content := string(body)
	if strings.Contains(resp.Header.Get("Content-Type"), "text/html") {
		article, rerr := readability.FromReader(strings.NewReader(content), parsed)
		if rerr == nil && strings.TrimSpace(article.TextContent) != "" {
			content = strings.TrimSpace(article.TextContent)
			if article.Title != "" {
				content = article.Title + "\n\n" + content
			}
		}
	}

	if len(content) > t.MaxChars {
		content = content[:t.MaxChars] + "\n... (truncated)"
	}
	return content, nil
}
