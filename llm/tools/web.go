package tools

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	readability "github.com/go-shiori/go-readability"
	"go.uber.org/zap"
	"golang.org/x/net/html"

	"github.com/vivekverma239/superfast-ai/internal/tlsutil"
)

// WebSearcher is the web-search capability consumed by the web tools.
type WebSearcher interface {
	// Search performs a web search and returns ranked results.
	Search(ctx context.Context, query string) ([]WebSearchResult, error)
	// FetchContent retrieves a page and returns its readable text.
	FetchContent(ctx context.Context, pageURL string) (string, error)
}

// WebSearchResult represents a single search result.
type WebSearchResult struct {
	Title   string  `json:"title"`
	URL     string  `json:"url"`
	Snippet string  `json:"snippet"`
	Score   float64 `json:"score,omitempty"`
}

// HTTPWebClientConfig configures HTTPWebClient.
type HTTPWebClientConfig struct {
	// SearchEndpoint is a SearXNG-compatible JSON search URL, e.g. https://searx.example/search
	SearchEndpoint  string
	MaxResults      int
	MaxContentChars int
	Timeout         time.Duration
	// Readability 先用 readability 提取正文，失败时退回全文提取
	Readability bool
}

// HTTPWebClient implements WebSearcher over plain HTTP.
type HTTPWebClient struct {
	cfg    HTTPWebClientConfig
	client *http.Client
	logger *zap.Logger
}

// NewHTTPWebClient creates a web client with defaults applied.
func NewHTTPWebClient(cfg HTTPWebClientConfig, logger *zap.Logger) *HTTPWebClient {
	if cfg.MaxResults <= 0 {
		cfg.MaxResults = 8
	}
	if cfg.MaxContentChars <= 0 {
		cfg.MaxContentChars = 20000
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 15 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &HTTPWebClient{
		cfg:    cfg,
		client: tlsutil.NewHTTPClient(tlsutil.ClientOptions{Timeout: cfg.Timeout, UserAgent: "superfast-ai/1.0"}),
		logger: logger.With(zap.String("component", "web_client")),
	}
}

type searxResponse struct {
	Results []struct {
		Title   string  `json:"title"`
		URL     string  `json:"url"`
		Content string  `json:"content"`
		Score   float64 `json:"score"`
	} `json:"results"`
}

// Search queries the configured endpoint.
func (c *HTTPWebClient) Search(ctx context.Context, query string) ([]WebSearchResult, error) {
	if c.cfg.SearchEndpoint == "" {
		return nil, fmt.Errorf("web search endpoint not configured")
	}
	u, err := url.Parse(c.cfg.SearchEndpoint)
	if err != nil {
		return nil, fmt.Errorf("invalid search endpoint: %w", err)
	}
	q := u.Query()
	q.Set("q", query)
	q.Set("format", "json")
	u.RawQuery = q.Encode()

	body, err := c.get(ctx, u.String())
	if err != nil {
		return nil, err
	}
	defer body.Close()

	var resp searxResponse
	if err := json.NewDecoder(body).Decode(&resp); err != nil {
		return nil, fmt.Errorf("decode search response: %w", err)
	}

	results := make([]WebSearchResult, 0, len(resp.Results))
	for _, r := range resp.Results {
		if len(results) >= c.cfg.MaxResults {
			break
		}
		results = append(results, WebSearchResult{Title: r.Title, URL: r.URL, Snippet: r.Content, Score: r.Score})
	}
	c.logger.Debug("web search", zap.String("query", query), zap.Int("results", len(results)))
	return results, nil
}

// FetchContent downloads pageURL and extracts visible text from HTML.
func (c *HTTPWebClient) FetchContent(ctx context.Context, pageURL string) (string, error) {
	u, err := url.Parse(pageURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") {
		return "", fmt.Errorf("invalid url: %s", pageURL)
	}
	body, err := c.get(ctx, u.String())
	if err != nil {
		return "", err
	}
	defer body.Close()

	raw, err := io.ReadAll(io.LimitReader(body, 4<<20))
	if err != nil {
		return "", fmt.Errorf("network read failed: %w", err)
	}

	text := ""
	if c.cfg.Readability {
		text = c.readable(raw, u)
	}
	if text == "" {
		text, err = ExtractText(bytes.NewReader(raw))
		if err != nil {
			return "", fmt.Errorf("parse page: %w", err)
		}
	}
	if r := []rune(text); len(r) > c.cfg.MaxContentChars {
		text = string(r[:c.cfg.MaxContentChars])
	}
	return text, nil
}

// readable 返回 readability 提取的正文；无法识别正文时返回空串
func (c *HTTPWebClient) readable(raw []byte, u *url.URL) string {
	article, err := readability.FromReader(bytes.NewReader(raw), u)
	if err != nil || strings.TrimSpace(article.Content) == "" {
		c.logger.Debug("readability extraction skipped", zap.String("url", u.String()), zap.Error(err))
		return ""
	}
	text, err := ExtractText(strings.NewReader(article.Content))
	if err != nil || text == "" {
		return ""
	}
	if article.Title != "" {
		text = article.Title + "\n" + text
	}
	return text
}

func (c *HTTPWebClient) get(ctx context.Context, target string) (io.ReadCloser, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, err
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("network request failed: %w", err)
	}
	if resp.StatusCode == http.StatusTooManyRequests {
		resp.Body.Close()
		return nil, fmt.Errorf("rate limit: %s", resp.Status)
	}
	if resp.StatusCode >= 400 {
		resp.Body.Close()
		return nil, fmt.Errorf("fetch %s failed: %s", target, resp.Status)
	}
	return resp.Body, nil
}

var skipElements = map[string]bool{
	"script": true, "style": true, "noscript": true, "head": true,
	"svg": true, "nav": true, "footer": true, "iframe": true,
}

var blockElements = map[string]bool{
	"p": true, "div": true, "br": true, "li": true, "tr": true, "section": true,
	"article": true, "h1": true, "h2": true, "h3": true, "h4": true, "h5": true, "h6": true,
}

// ExtractText returns the visible text of an HTML document, one block per line.
func ExtractText(r io.Reader) (string, error) {
	doc, err := html.Parse(r)
	if err != nil {
		return "", err
	}

	var b strings.Builder
	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode && skipElements[n.Data] {
			return
		}
		if n.Type == html.TextNode {
			if t := strings.Join(strings.Fields(n.Data), " "); t != "" {
				if b.Len() > 0 && !strings.HasSuffix(b.String(), "\n") {
					b.WriteByte(' ')
				}
				b.WriteString(t)
			}
		}
		for child := n.FirstChild; child != nil; child = child.NextSibling {
			walk(child)
		}
		if n.Type == html.ElementNode && blockElements[n.Data] && b.Len() > 0 && !strings.HasSuffix(b.String(), "\n") {
			b.WriteByte('\n')
		}
	}
	walk(doc)
	return strings.TrimSpace(b.String()), nil
}
