package extract

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"time"

	"daily-digest/internal/model"
	"daily-digest/internal/retry"
)

// Cloudflare extracts pages through the Browser Rendering markdown endpoint.
// See: https://developers.cloudflare.com/browser-rendering/rest-api/
type Cloudflare struct {
	baseURL string
	token   string
	http    *http.Client
}

type markdownRequest struct {
	URL                  string   `json:"url"`
	RejectRequestPattern []string `json:"rejectRequestPattern,omitempty"`
}

type markdownResponse struct {
	Success bool   `json:"success"`
	Result  string `json:"result"`
	Errors  any    `json:"errors"`
}

// NewCloudflare creates a client for accountID.
// Endpoint: https://api.cloudflare.com/client/v4/accounts/<ACCOUNT_ID>/browser-rendering/markdown
func NewCloudflare(accountID, token string, timeout time.Duration) *Cloudflare {
	if timeout <= 0 {
		timeout = 20 * time.Second
	}
	return &Cloudflare{
		baseURL: fmt.Sprintf("https://api.cloudflare.com/client/v4/accounts/%s/browser-rendering/markdown", strings.TrimSpace(accountID)),
		token:   token,
		http:    &http.Client{Timeout: timeout},
	}
}

// Extract renders u remotely and returns its markdown as the text content.
func (c *Cloudflare) Extract(ctx context.Context, u string) (*Article, error) {
	if _, err := url.ParseRequestURI(u); err != nil {
		return nil, fmt.Errorf("%w: invalid url: %v", model.ErrConfiguration, err)
	}
	body, _ := json.Marshal(markdownRequest{
		URL:                  u,
		RejectRequestPattern: []string{"/^.*\\.(css)/"},
	})
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", model.ErrFetch, err)
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("Content-Type", "application/json")
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: cloudflare: %w", model.ErrFetch, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return nil, fmt.Errorf("%w: cloudflare: %w", model.ErrFetch, &retry.StatusError{Code: resp.StatusCode, Body: string(b)})
	}
	var envelope markdownResponse
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		return nil, fmt.Errorf("%w: cloudflare: %v", model.ErrParse, err)
	}
	content := strings.TrimSpace(envelope.Result)
	if !envelope.Success || content == "" {
		return nil, fmt.Errorf("%w: cloudflare returned no content", model.ErrParse)
	}
	return &Article{
		Title:       markdownTitle(content),
		TextContent: content,
		Excerpt:     truncate(collapse(content), excerptLen),
	}, nil
}

// markdownTitle picks the shallowest heading, so `# Title` wins over `## Title`.
func markdownTitle(content string) string {
	var headings []string
	for _, line := range strings.Split(content, "\n") {
		line = strings.TrimSpace(line)
		if strings.HasPrefix(line, "#") {
			headings = append(headings, line)
		}
	}
	if len(headings) == 0 {
		return ""
	}
	sort.SliceStable(headings, func(i, j int) bool {
		return depth(headings[i]) < depth(headings[j])
	})
	return strings.TrimSpace(strings.TrimLeft(headings[0], "#"))
}

func depth(h string) int {
	return len(h) - len(strings.TrimLeft(h, "#"))
}

type fallback struct {
	primary, secondary Extractor
}

// WithFallback tries primary first and secondary when primary fails with a
// fetch or parse error.
func WithFallback(primary, secondary Extractor) Extractor {
	if secondary == nil {
		return primary
	}
	return fallback{primary: primary, secondary: secondary}
}

func (f fallback) Extract(ctx context.Context, u string) (*Article, error) {
	a, err := f.primary.Extract(ctx, u)
	if err == nil {
		return a, nil
	}
	if !errors.Is(err, model.ErrFetch) && !errors.Is(err, model.ErrParse) {
		return nil, err
	}
	slog.Debug("extract: primary failed, trying fallback", "url", u, "err", err)
	b, err2 := f.secondary.Extract(ctx, u)
	if err2 != nil {
		return nil, errors.Join(err, err2)
	}
	return b, nil
}
