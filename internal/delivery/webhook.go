package delivery

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"daily-digest/internal/model"
	"daily-digest/internal/retry"
)

// Webhook posts the digest as JSON to a configured endpoint.
type Webhook struct {
	url    string
	secret string
	http   *http.Client
	retry  retry.Config
}

func NewWebhook(url, secret string, timeout time.Duration) *Webhook {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Webhook{
		url:    strings.TrimSpace(url),
		secret: secret,
		http:   &http.Client{Timeout: timeout},
		retry:  retry.DefaultConfig(),
	}
}

func (w *Webhook) Name() string { return "webhook" }

type webhookPayload struct {
	To     string       `json:"to"`
	Digest model.Digest `json:"digest"`
}

func (w *Webhook) Send(ctx context.Context, to string, d model.Digest) error {
	body, err := json.Marshal(webhookPayload{To: to, Digest: d})
	if err != nil {
		return err
	}
	return retry.Do(ctx, w.retry, func(ctx context.Context) error {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.url, bytes.NewReader(body))
		if err != nil {
			return retry.Permanent(err)
		}
		req.Header.Set("Content-Type", "application/json")
		if w.secret != "" {
			req.Header.Set("Authorization", "Bearer "+w.secret)
		}
		resp, err := w.http.Do(req)
		if err != nil {
			return err
		}
		defer resp.Body.Close()
		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			b, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
			return fmt.Errorf("webhook: %w", &retry.StatusError{Code: resp.StatusCode, Body: string(b)})
		}
		return nil
	})
}
