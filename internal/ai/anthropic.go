package ai

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/bytedance/sonic"
)

const defaultAnthropicEndpoint = "https://api.anthropic.com/v1/messages"

// AnthropicGenerator talks to an anthropic-style messages endpoint.
type AnthropicGenerator struct {
	client   *http.Client
	endpoint string
	apiKey   string
	model    string
}

func NewAnthropicGenerator(apiKey, model, endpoint string) *AnthropicGenerator {
	if endpoint == "" {
		endpoint = defaultAnthropicEndpoint
	}
	return &AnthropicGenerator{
		client:   &http.Client{Timeout: 60 * time.Second},
		endpoint: endpoint,
		apiKey:   apiKey,
		model:    model,
	}
}

type anthropicRequest struct {
	Model       string             `json:"model"`
	MaxTokens   int                `json:"max_tokens"`
	System      string             `json:"system,omitempty"`
	Temperature float64            `json:"temperature,omitempty"`
	Messages    []anthropicMessage `json:"messages"`
}

type anthropicMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type anthropicResponse struct {
	Content []struct {
		Text string `json:"text"`
	} `json:"content"`
}

func (g *AnthropicGenerator) Generate(ctx context.Context, systemTone, prompt string, opts Options) (string, error) {
	maxTokens := opts.MaxTokens
	if maxTokens == 0 {
		maxTokens = 2048
	}
	body, err := sonic.Marshal(anthropicRequest{
		Model:       g.model,
		MaxTokens:   maxTokens,
		System:      systemTone,
		Temperature: opts.Temperature,
		Messages: []anthropicMessage{
			{Role: "user", Content: prompt},
		},
	})
	if err != nil {
		return "", errors.New("encoding generator request error: " + err.Error())
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.endpoint, bytes.NewReader(body))
	if err != nil {
		return "", errors.New("building generator request error: " + err.Error())
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-api-key", g.apiKey)
	req.Header.Set("anthropic-version", "2023-06-01")

	resp, err := g.client.Do(req)
	if err != nil {
		return "", errors.Join(ErrTransport, err)
	}
	defer resp.Body.Close()
	if err := classifyStatus(resp.StatusCode); err != nil {
		return "", err
	}
	var parsed anthropicResponse
	if err := sonic.ConfigDefault.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return "", errors.Join(ErrBadOutput, err)
	}
	if len(parsed.Content) == 0 {
		return "", ErrBadOutput
	}
	return parsed.Content[0].Text, nil
}

func classifyStatus(code int) error {
	switch {
	case code == http.StatusOK:
		return nil
	case code == http.StatusTooManyRequests:
		return ErrRateLimited
	case code >= 500:
		return ErrServer
	default:
		return ErrBadOutput
	}
}
