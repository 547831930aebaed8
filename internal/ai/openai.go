package ai

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/bytedance/sonic"
)

const defaultOpenAIEndpoint = "https://api.openai.com/v1/chat/completions"

// OpenAIGenerator talks to an openai-style chat completions endpoint.
// Kept as the rollback backend behind the same Generator boundary.
type OpenAIGenerator struct {
	client   *http.Client
	endpoint string
	apiKey   string
	model    string
}

func NewOpenAIGenerator(apiKey, model, endpoint string) *OpenAIGenerator {
	if endpoint == "" {
		endpoint = defaultOpenAIEndpoint
	}
	return &OpenAIGenerator{
		client:   &http.Client{Timeout: 60 * time.Second},
		endpoint: endpoint,
		apiKey:   apiKey,
		model:    model,
	}
}

type openAIRequest struct {
	Model       string          `json:"model"`
	Temperature float64         `json:"temperature,omitempty"`
	MaxTokens   int             `json:"max_tokens,omitempty"`
	Messages    []openAIMessage `json:"messages"`
}

type openAIMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type openAIResponse struct {
	Choices []struct {
		Message openAIMessage `json:"message"`
	} `json:"choices"`
}

func (g *OpenAIGenerator) Generate(ctx context.Context, systemTone, prompt string, opts Options) (string, error) {
	body, err := sonic.Marshal(openAIRequest{
		Model:       g.model,
		Temperature: opts.Temperature,
		MaxTokens:   opts.MaxTokens,
		Messages: []openAIMessage{
			{Role: "system", Content: systemTone},
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
	req.Header.Set("Authorization", "Bearer "+g.apiKey)

	resp, err := g.client.Do(req)
	if err != nil {
		return "", errors.Join(ErrTransport, err)
	}
	defer resp.Body.Close()
	if err := classifyStatus(resp.StatusCode); err != nil {
		return "", err
	}
	var parsed openAIResponse
	if err := sonic.ConfigDefault.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return "", errors.Join(ErrBadOutput, err)
	}
	if len(parsed.Choices) == 0 {
		return "", ErrBadOutput
	}
	return parsed.Choices[0].Message.Content, nil
}
