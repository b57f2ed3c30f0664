package ai

import (
	"context"
	"log/slog"
	"strings"

	"daily-digest/internal/model"

	openai "github.com/sashabaranov/go-openai"
)

// OpenAIClient implements Provider with the Chat Completions API. It also
// serves OpenAI-compatible endpoints such as Groq and Google.
type OpenAIClient struct {
	meter
	name     string
	client   *openai.Client
	model    string
	ep       Endpoint
	jsonMode bool
}

// NewOpenAI creates a client. jsonMode requests a JSON object response for
// key point extraction when the endpoint supports it.
func NewOpenAI(name string, ep Endpoint, jsonMode bool) *OpenAIClient {
	cc := openai.DefaultConfig(ep.APIKey)
	if ep.BaseURL != "" {
		cc.BaseURL = strings.TrimRight(ep.BaseURL, "/")
	}
	m := ep.Model
	if m == "" {
		m = "gpt-4-turbo-preview"
	}
	return &OpenAIClient{
		name:     name,
		client:   openai.NewClientWithConfig(cc),
		model:    m,
		ep:       ep,
		jsonMode: jsonMode,
	}
}

func (o *OpenAIClient) Name() string { return o.name }

func (o *OpenAIClient) Summarize(ctx context.Context, text string, maxWords int) (string, error) {
	out, err := o.create(ctx, request{
		system:      summarySystem(maxWords),
		user:        summaryUser(text),
		temperature: summaryTemperature,
		maxTokens:   summaryMaxTokens,
	})
	if err != nil {
		slog.Error("openai: summarize error", "provider", o.name, "err", err)
		return "", err
	}
	return strings.TrimSpace(out), nil
}

func (o *OpenAIClient) ExtractKeyPoints(ctx context.Context, text string) ([]string, error) {
	out, err := o.create(ctx, request{
		system:      keyPointsSystem,
		user:        clip(text),
		temperature: keyPointsTemperature,
		maxTokens:   keyPointsMaxTokens,
		json:        o.jsonMode,
	})
	if err != nil {
		slog.Error("openai: key points error", "provider", o.name, "err", err)
		return []string{}, err
	}
	return ParseKeyPoints(out), nil
}

func (o *OpenAIClient) GenerateDigestText(ctx context.Context, s model.DigestSections) (string, error) {
	out, err := o.create(ctx, request{
		system:      digestSystem,
		user:        digestUser(s),
		temperature: digestTemperature,
		maxTokens:   digestMaxTokens,
	})
	if err != nil {
		slog.Error("openai: digest text error", "provider", o.name, "err", err)
		return "", err
	}
	return strings.TrimSpace(out), nil
}

type request struct {
	system, user string
	temperature  float32
	maxTokens    int
	json         bool
}

func (o *OpenAIClient) create(ctx context.Context, r request) (string, error) {
	ctx, cancel := withDefaultTimeout(ctx, o.ep.Timeout)
	defer cancel()
	req := openai.ChatCompletionRequest{
		Model: o.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: r.system},
			{Role: openai.ChatMessageRoleUser, Content: r.user},
		},
		Temperature: r.temperature,
		MaxTokens:   r.maxTokens,
	}
	if r.json {
		req.ResponseFormat = &openai.ChatCompletionResponseFormat{Type: openai.ChatCompletionResponseFormatTypeJSONObject}
	}
	resp, err := o.client.CreateChatCompletion(ctx, req)
	if err != nil {
		return "", err
	}
	o.add(resp.Usage.PromptTokens, resp.Usage.CompletionTokens)
	if len(resp.Choices) == 0 {
		return "", nil
	}
	return resp.Choices[0].Message.Content, nil
}
