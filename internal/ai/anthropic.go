package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"daily-digest/internal/model"
	"daily-digest/internal/retry"
)

const anthropicVersion = "2023-06-01"

// AnthropicClient implements Provider with the Messages API.
type AnthropicClient struct {
	meter
	baseURL string
	apiKey  string
	model   string
	http    *http.Client
	retry   retry.Config
	timeout time.Duration
}

func NewAnthropic(ep Endpoint) *AnthropicClient {
	base := strings.TrimRight(ep.BaseURL, "/")
	if base == "" {
		base = "https://api.anthropic.com/v1"
	}
	m := ep.Model
	if m == "" {
		m = "claude-3-sonnet-20240229"
	}
	return &AnthropicClient{
		baseURL: base,
		apiKey:  ep.APIKey,
		model:   m,
		http:    &http.Client{Timeout: 120 * time.Second},
		retry:   retry.DefaultConfig(),
		timeout: ep.Timeout,
	}
}

type anthropicRequest struct {
	Model       string             `json:"model"`
	MaxTokens   int                `json:"max_tokens"`
	Temperature float32            `json:"temperature"`
	System      string             `json:"system,omitempty"`
	Messages    []anthropicMessage `json:"messages"`
}

type anthropicMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type anthropicResponse struct {
	Content []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"content"`
	Usage struct {
		InputTokens  int `json:"input_tokens"`
		OutputTokens int `json:"output_tokens"`
	} `json:"usage"`
	Error *struct {
		Type    string `json:"type"`
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

func (a *AnthropicClient) Name() string { return "anthropic" }

func (a *AnthropicClient) Summarize(ctx context.Context, text string, maxWords int) (string, error) {
	out, err := a.call(ctx, request{
		system:      summarySystem(maxWords),
		user:        summaryUser(text),
		temperature: summaryTemperature,
		maxTokens:   summaryMaxTokens,
	})
	if err != nil {
		slog.Error("anthropic: summarize error", "err", err)
		return "", err
	}
	return strings.TrimSpace(out), nil
}

func (a *AnthropicClient) ExtractKeyPoints(ctx context.Context, text string) ([]string, error) {
	out, err := a.call(ctx, request{
		system:      keyPointsSystem + " Respond ONLY with valid JSON, no markdown fences or additional text.",
		user:        clip(text),
		temperature: keyPointsTemperature,
		maxTokens:   keyPointsMaxTokens,
	})
	if err != nil {
		slog.Error("anthropic: key points error", "err", err)
		return []string{}, err
	}
	return ParseKeyPoints(out), nil
}

func (a *AnthropicClient) GenerateDigestText(ctx context.Context, s model.DigestSections) (string, error) {
	out, err := a.call(ctx, request{
		system:      digestSystem,
		user:        digestUser(s),
		temperature: digestTemperature,
		maxTokens:   digestMaxTokens,
	})
	if err != nil {
		slog.Error("anthropic: digest text error", "err", err)
		return "", err
	}
	return strings.TrimSpace(out), nil
}

func (a *AnthropicClient) call(ctx context.Context, r request) (string, error) {
	ctx, cancel := withDefaultTimeout(ctx, a.timeout)
	defer cancel()
	payload, err := json.Marshal(anthropicRequest{
		Model:       a.model,
		MaxTokens:   r.maxTokens,
		Temperature: r.temperature,
		System:      r.system,
		Messages:    []anthropicMessage{{Role: "user", Content: r.user}},
	})
	if err != nil {
		return "", fmt.Errorf("anthropic: marshal request: %w", err)
	}

	var text string
	err = retry.Do(ctx, a.retry, func(ctx context.Context) error {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.baseURL+"/messages", bytes.NewReader(payload))
		if err != nil {
			return retry.Permanent(err)
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("x-api-key", a.apiKey)
		req.Header.Set("anthropic-version", anthropicVersion)

		resp, err := a.http.Do(req)
		if err != nil {
			return fmt.Errorf("anthropic: request failed: %w", err)
		}
		defer resp.Body.Close()
		body, err := io.ReadAll(resp.Body)
		if err != nil {
			return fmt.Errorf("anthropic: read response: %w", err)
		}
		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			return fmt.Errorf("anthropic: %w", &retry.StatusError{Code: resp.StatusCode, Body: truncateBody(body)})
		}
		var out anthropicResponse
		if err := json.Unmarshal(body, &out); err != nil {
			return retry.Permanent(fmt.Errorf("anthropic: parse response: %w", err))
		}
		if out.Error != nil {
			return retry.Permanent(fmt.Errorf("anthropic: API error: %s - %s", out.Error.Type, out.Error.Message))
		}
		a.add(out.Usage.InputTokens, out.Usage.OutputTokens)
		var b strings.Builder
		for _, c := range out.Content {
			if c.Type == "text" {
				b.WriteString(c.Text)
			}
		}
		text = b.String()
		return nil
	})
	return text, err
}

func truncateBody(b []byte) string {
	if len(b) > 512 {
		b = b[:512]
	}
	return string(b)
}
