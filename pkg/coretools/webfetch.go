package coretools

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	md "github.com/JohannesKaufmann/html-to-markdown"
	"github.com/PuerkitoBio/goquery"

	"github.com/riven-labs/steward/pkg/tool"
)

func webFetchTool(opts Options) *tool.Descriptor {
	maxBody := opts.MaxFetchBytes
	if maxBody <= 0 {
		maxBody = 5 * 1024 * 1024
	}

	client := &http.Client{Timeout: 30 * time.Second}

	return &tool.Descriptor{
		Name:        "web_fetch",
		DisplayName: "Web Fetch",
		Description: "Fetch a URL and return its content as plain text, markdown or raw HTML.",
		Kind:        tool.KindNetwork,
		Schema: tool.ObjectSchema(map[string]interface{}{
			"url": tool.StringProperty("URL to fetch (http or https)"),
			"format": map[string]interface{}{
				"type":        "string",
				"description": "Output format",
				"enum":        []string{"text", "markdown", "html"},
			},
		}, "url"),
		Describe: func(args map[string]interface{}) string {
			return fmt.Sprintf("fetch %s", argString(args, "url"))
		},
		Handler: func(ctx context.Context, args map[string]interface{}) tool.Result {
			url := argString(args, "url")
			if !strings.HasPrefix(url, "http://") && !strings.HasPrefix(url, "https://") {
				return tool.ErrorResult(tool.NewFault(tool.FaultExecutionFailed, "url must start with http:// or https://"))
			}

			format := argString(args, "format")
			if format == "" {
				format = "markdown"
			}

			req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
			if err != nil {
				return tool.ErrorResult(tool.NewFault(tool.FaultExecutionFailed, "invalid request: %v", err))
			}

			resp, err := client.Do(req)
			if err != nil {
				if ctx.Err() != nil {
					return tool.ErrorResult(tool.NewFault(tool.FaultCancelled, "fetch cancelled"))
				}
				return tool.ErrorResult(tool.NewFault(tool.FaultExecutionFailed, "fetch failed: %v", err))
			}
			defer resp.Body.Close()

			if resp.StatusCode < 200 || resp.StatusCode >= 300 {
				return tool.ErrorResult(tool.NewFault(tool.FaultExecutionFailed, "fetch returned %s", resp.Status))
			}

			body, err := io.ReadAll(io.LimitReader(resp.Body, maxBody))
			if err != nil {
				return tool.ErrorResult(tool.NewFault(tool.FaultExecutionFailed, "failed to read body: %v", err))
			}

			content, err := convertBody(string(body), format)
			if err != nil {
				return tool.ErrorResult(tool.NewFault(tool.FaultExecutionFailed, "%v", err))
			}

			return tool.Result{
				LLMContent:     content,
				DisplayContent: fmt.Sprintf("Fetched %s (%d bytes, %s)", url, len(body), format),
			}
		},
	}
}

func convertBody(html string, format string) (string, error) {
	switch format {
	case "html":
		return html, nil

	case "text":
		doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
		if err != nil {
			return "", fmt.Errorf("failed to parse HTML: %w", err)
		}
		doc.Find("script, style, noscript").Remove()
		return strings.TrimSpace(doc.Text()), nil

	case "markdown":
		converter := md.NewConverter("", true, nil)
		markdown, err := converter.ConvertString(html)
		if err != nil {
			return "", fmt.Errorf("failed to convert HTML: %w", err)
		}
		return markdown, nil

	default:
		return "", fmt.Errorf("unknown format: %s", format)
	}
}
