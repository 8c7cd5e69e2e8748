package coretools

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/riven-labs/steward/pkg/tool"
)

func searchPage(results ...searchResult) string {
	var b strings.Builder
	b.WriteString("<html><body>")
	for _, r := range results {
		href := "//duckduckgo.com/l/?uddg=" + url.QueryEscape(r.URL)
		fmt.Fprintf(&b, `<div class="result">
<a class="result__a" href=%q>%s</a>
<a class="result__snippet">%s</a>
</div>`, href, r.Title, r.Snippet)
	}
	b.WriteString("</body></html>")
	return b.String()
}

func searchRegistry(t *testing.T, page string) *tool.Registry {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.NotEmpty(t, r.URL.Query().Get("q"))
		w.Write([]byte(page))
	}))
	t.Cleanup(server.Close)

	registry := tool.NewRegistry()
	require.NoError(t, Register(registry, Options{WorkspaceRoot: t.TempDir(), SearchURL: server.URL}))
	return registry
}

// TestWebSearch_Results tests that titles, snippets and unwrapped URLs
// come back in result order
func TestWebSearch_Results(t *testing.T) {
	registry := searchRegistry(t, searchPage(
		searchResult{Title: "Go  docs", Snippet: "The Go   programming language.", URL: "https://go.dev"},
		searchResult{Title: "Go wiki", Snippet: "Community wiki.", URL: "https://go.dev/wiki"},
	))

	res := runHandler(t, registry, "web_search", map[string]interface{}{"query": "golang"})
	require.Nil(t, res.Err)
	assert.Contains(t, res.LLMContent, "[1] Go docs")
	assert.Contains(t, res.LLMContent, "The Go programming language.")
	assert.Contains(t, res.LLMContent, "Source: https://go.dev")
	assert.Contains(t, res.LLMContent, "[2] Go wiki")
	assert.Contains(t, res.DisplayContent, "Found 2 results")
}

// TestWebSearch_MaxResults tests the result cap
func TestWebSearch_MaxResults(t *testing.T) {
	var many []searchResult
	for i := 0; i < 8; i++ {
		many = append(many, searchResult{
			Title: fmt.Sprintf("Result %d", i),
			URL:   fmt.Sprintf("https://example.com/%d", i),
		})
	}
	registry := searchRegistry(t, searchPage(many...))

	res := runHandler(t, registry, "web_search", map[string]interface{}{
		"query": "golang", "max_results": float64(2),
	})
	require.Nil(t, res.Err)
	assert.Contains(t, res.LLMContent, "[2]")
	assert.NotContains(t, res.LLMContent, "[3]")
}

// TestWebSearch_SnippetTruncation tests that long snippets are cut with an
// ellipsis
func TestWebSearch_SnippetTruncation(t *testing.T) {
	long := strings.Repeat("word ", 100)
	registry := searchRegistry(t, searchPage(
		searchResult{Title: "Long", Snippet: long, URL: "https://example.com"},
	))

	res := runHandler(t, registry, "web_search", map[string]interface{}{"query": "golang"})
	require.Nil(t, res.Err)

	for _, line := range strings.Split(res.LLMContent, "\n") {
		if strings.HasPrefix(line, "word") {
			assert.Len(t, line, maxSnippetChars)
			assert.True(t, strings.HasSuffix(line, "..."))
			return
		}
	}
	t.Fatal("snippet line not found")
}

// TestWebSearch_NoResults tests the empty results page
func TestWebSearch_NoResults(t *testing.T) {
	registry := searchRegistry(t, searchPage())

	res := runHandler(t, registry, "web_search", map[string]interface{}{"query": "golang"})
	require.Nil(t, res.Err)
	assert.Contains(t, res.LLMContent, "No results")
}

// TestWebSearch_EmptyQuery tests the missing-query fault
func TestWebSearch_EmptyQuery(t *testing.T) {
	registry := searchRegistry(t, searchPage())

	res := runHandler(t, registry, "web_search", map[string]interface{}{"query": "  "})
	require.NotNil(t, res.Err)
	assert.Equal(t, tool.FaultExecutionFailed, res.Err.Kind)
}
