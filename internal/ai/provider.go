// Package ai wraps the LLM providers used to summarize items and write the
// digest overview.
package ai

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	"daily-digest/internal/model"
)

// MaxInputRunes bounds the text sent to a provider per call.
const MaxInputRunes = 4000

// ErrUnsupportedProvider is returned for unknown provider ids.
var ErrUnsupportedProvider = errors.New("unsupported LLM provider")

// Provider is the LLM capability the pipeline depends on.
type Provider interface {
	// Summarize condenses text to at most maxWords words.
	Summarize(ctx context.Context, text string, maxWords int) (string, error)
	// ExtractKeyPoints returns up to five key points. Malformed model output
	// yields an empty slice, not an error.
	ExtractKeyPoints(ctx context.Context, text string) ([]string, error)
	// GenerateDigestText writes a short markdown overview of the sections.
	GenerateDigestText(ctx context.Context, s model.DigestSections) (string, error)
	// Name is the provider id, e.g. "openai".
	Name() string
	// Usage reports tokens consumed since the provider was created.
	Usage() Usage
}

// Usage counts tokens consumed by a provider.
type Usage struct {
	PromptTokens     int
	CompletionTokens int
}

// Total is prompt plus completion tokens.
func (u Usage) Total() int { return u.PromptTokens + u.CompletionTokens }

type meter struct {
	prompt, completion atomic.Int64
}

func (m *meter) add(prompt, completion int) {
	m.prompt.Add(int64(prompt))
	m.completion.Add(int64(completion))
}

func (m *meter) Usage() Usage {
	return Usage{PromptTokens: int(m.prompt.Load()), CompletionTokens: int(m.completion.Load())}
}

// Endpoint configures where and how a provider is reached. APIKey is the
// user's credential.
type Endpoint struct {
	APIKey  string
	BaseURL string
	Model   string
	Timeout time.Duration
}

type constructor func(Endpoint) Provider

var providers = map[string]constructor{
	"openai":    func(ep Endpoint) Provider { return NewOpenAI("openai", ep, true) },
	"groq":      func(ep Endpoint) Provider { return NewOpenAI("groq", ep, true) },
	"google":    func(ep Endpoint) Provider { return NewOpenAI("google", ep, false) },
	"anthropic": func(ep Endpoint) Provider { return NewAnthropic(ep) },
}

// New builds the provider registered under id.
func New(id string, ep Endpoint) (Provider, error) {
	id = strings.ToLower(strings.TrimSpace(id))
	c, ok := providers[id]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedProvider, id)
	}
	if strings.TrimSpace(ep.APIKey) == "" {
		return nil, fmt.Errorf("%w for provider %s", model.ErrNoCredential, id)
	}
	return c(ep), nil
}

// Supported reports whether id names a known provider.
func Supported(id string) bool {
	_, ok := providers[strings.ToLower(strings.TrimSpace(id))]
	return ok
}

// clip bounds text to MaxInputRunes.
func clip(text string) string {
	text = strings.TrimSpace(text)
	r := []rune(text)
	if len(r) > MaxInputRunes {
		return string(r[:MaxInputRunes])
	}
	return text
}

func withDefaultTimeout(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if _, ok := ctx.Deadline(); ok {
		return ctx, func() {}
	}
	if d <= 0 {
		d = 60 * time.Second
	}
	return context.WithTimeout(ctx, d)
}
