package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/go-shiori/go-readability"
	"github.com/microcosm-cc/bluemonday"
)

const defaultReadLimit = 20000

// ReadPageTool fetches a link the user shared, or one found by search, and
// returns its main text.
type ReadPageTool struct {
	Client    *http.Client
	UserAgent string
	MaxChars  int
}

func NewReadPageTool() *ReadPageTool {
	return &ReadPageTool{
		Client:    &http.Client{Timeout: 30 * time.Second},
		UserAgent: "Mozilla/5.0 (compatible; GlideBot/1.0; +https://github.com/rahul/glide)",
		MaxChars:  defaultReadLimit,
	}
}

func (s *ReadPageTool) Name() string {
	return "read_page"
}

func (s *ReadPageTool) Description() string {
	return "Fetch a web page and return its main content as plain text, e.g. to summarise instructions for a step."
}

func (s *ReadPageTool) Parameters() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"url": map[string]any{
				"type":        "string",
				"description": "The full http(s) URL of the page (e.g., https://example.com/guide)",
			},
		},
		"required": []string{"url"},
	}
}

func (s *ReadPageTool) Execute(ctx context.Context, input string) (string, error) {
	var args struct {
		URL string `json:"url"`
	}
	if err := json.Unmarshal([]byte(input), &args); err != nil {
		return "", fmt.Errorf("invalid input: %v", err)
	}

	parsedURL, err := url.Parse(strings.TrimSpace(args.URL))
	if err != nil {
		return "", fmt.Errorf("failed to parse URL: %v", err)
	}
	if parsedURL.Scheme != "http" && parsedURL.Scheme != "https" {
		return "", fmt.Errorf("only http and https URLs can be read")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, parsedURL.String(), nil)
	if err != nil {
		return "", fmt.Errorf("failed to create request: %v", err)
	}
	req.Header.Set("User-Agent", s.UserAgent)

	resp, err := s.Client.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to fetch URL: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("failed to fetch URL: status code %d", resp.StatusCode)
	}

	return s.extract(resp.Body, parsedURL)
}

func (s *ReadPageTool) extract(body io.Reader, pageURL *url.URL) (string, error) {
	article, err := readability.FromReader(body, pageURL)
	if err != nil {
		return "", fmt.Errorf("failed to parse article: %v", err)
	}

	// Strip anything readability left behind.
	p := bluemonday.StrictPolicy()
	content := strings.TrimSpace(p.Sanitize(article.TextContent))

	var b strings.Builder
	fmt.Fprintf(&b, "TITLE: %s\n", article.Title)
	if article.Excerpt != "" {
		fmt.Fprintf(&b, "EXCERPT: %s\n", article.Excerpt)
	}
	b.WriteString("\n-- CONTENT --\n")

	limit := s.MaxChars
	if limit <= 0 {
		limit = defaultReadLimit
	}
	if len(content) > limit {
		content = content[:limit] + "\n... (content truncated) ..."
	}
	b.WriteString(content)
	return b.String(), nil
}
