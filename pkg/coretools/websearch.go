package coretools

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/riven-labs/steward/pkg/tool"
)

const (
	defaultSearchURL = "https://html.duckduckgo.com/html/"
	maxSnippetChars  = 280
)

// searchResult is one hit: title, snippet and resolved URL.
type searchResult struct {
	Title   string
	Snippet string
	URL     string
}

func webSearchTool(opts Options) *tool.Descriptor {
	endpoint := opts.SearchURL
	if endpoint == "" {
		endpoint = defaultSearchURL
	}

	client := &http.Client{Timeout: 30 * time.Second}

	return &tool.Descriptor{
		Name:        "web_search",
		DisplayName: "Web Search",
		Description: "Search the web and return result titles, snippets and URLs.",
		Kind:        tool.KindNetwork,
		Schema: tool.ObjectSchema(map[string]interface{}{
			"query": tool.StringProperty("Search query"),
			"max_results": map[string]interface{}{
				"type":        "integer",
				"description": "Maximum number of results (default 5)",
			},
		}, "query"),
		Describe: func(args map[string]interface{}) string {
			return fmt.Sprintf("search: %s", argString(args, "query"))
		},
		Handler: func(ctx context.Context, args map[string]interface{}) tool.Result {
			query := strings.TrimSpace(argString(args, "query"))
			if query == "" {
				return tool.ErrorResult(tool.NewFault(tool.FaultExecutionFailed, "query is required"))
			}

			maxResults := 5
			if raw, ok := args["max_results"].(float64); ok && raw > 0 {
				maxResults = int(raw)
			}
			if maxResults > 10 {
				maxResults = 10
			}

			params := url.Values{}
			params.Set("q", query)

			req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint+"?"+params.Encode(), nil)
			if err != nil {
				return tool.ErrorResult(tool.NewFault(tool.FaultExecutionFailed, "invalid request: %v", err))
			}
			// The HTML endpoint rejects requests without a browser-ish UA.
			req.Header.Set("User-Agent", "Mozilla/5.0 (compatible; steward/0.1)")

			resp, err := client.Do(req)
			if err != nil {
				if ctx.Err() != nil {
					return tool.ErrorResult(tool.NewFault(tool.FaultCancelled, "search cancelled"))
				}
				return tool.ErrorResult(tool.NewFault(tool.FaultExecutionFailed, "search failed: %v", err))
			}
			defer resp.Body.Close()

			if resp.StatusCode < 200 || resp.StatusCode >= 300 {
				return tool.ErrorResult(tool.NewFault(tool.FaultExecutionFailed, "search returned %s", resp.Status))
			}

			results, err := parseSearchResults(resp, maxResults)
			if err != nil {
				return tool.ErrorResult(tool.NewFault(tool.FaultExecutionFailed, "%v", err))
			}

			if len(results) == 0 {
				return tool.Result{
					LLMContent:     fmt.Sprintf("No results for %q.", query),
					DisplayContent: fmt.Sprintf("No results for %q", query),
				}
			}

			return tool.Result{
				LLMContent:     renderSearchResults(results),
				DisplayContent: fmt.Sprintf("Found %d results for %q", len(results), query),
			}
		},
	}
}

func parseSearchResults(resp *http.Response, maxResults int) ([]searchResult, error) {
	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to parse results page: %w", err)
	}

	var results []searchResult
	doc.Find(".result").EachWithBreak(func(_ int, sel *goquery.Selection) bool {
		link := sel.Find(".result__a").First()
		title := cleanText(link.Text())
		snippet := cleanText(sel.Find(".result__snippet").First().Text())
		href, _ := link.Attr("href")
		resultURL := resolveResultURL(href)

		if title == "" && snippet == "" && resultURL == "" {
			return true
		}

		if len(snippet) > maxSnippetChars {
			snippet = snippet[:maxSnippetChars-3] + "..."
		}
		results = append(results, searchResult{Title: title, Snippet: snippet, URL: resultURL})
		return len(results) < maxResults
	})
	return results, nil
}

// resolveResultURL unwraps the redirect links the results page uses, which
// carry the destination in a uddg query parameter.
func resolveResultURL(href string) string {
	if href == "" {
		return ""
	}
	if strings.HasPrefix(href, "//") {
		href = "https:" + href
	}
	u, err := url.Parse(href)
	if err != nil {
		return href
	}
	if target := u.Query().Get("uddg"); target != "" {
		return target
	}
	return href
}

func renderSearchResults(results []searchResult) string {
	lines := make([]string, 0, len(results)*3)
	for i, r := range results {
		title := r.Title
		if title == "" {
			title = fmt.Sprintf("Result %d", i+1)
		}
		lines = append(lines, fmt.Sprintf("[%d] %s", i+1, title))
		if r.Snippet != "" {
			lines = append(lines, r.Snippet)
		}
		if r.URL != "" {
			lines = append(lines, fmt.Sprintf("Source: %s", r.URL))
		}
	}
	return strings.Join(lines, "\n")
}

func cleanText(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
