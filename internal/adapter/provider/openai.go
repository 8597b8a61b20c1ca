package provider

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"

	"academybot/config"
	"academybot/internal/port"
)

// OpenAIProvider completes prompts through any OpenAI-compatible chat
// endpoint. With a Groq base URL it serves Groq models unchanged.
type OpenAIProvider struct {
	client      *openai.Client
	name        string
	model       string
	maxTokens   int
	temperature float32
}

// NewOpenAIProvider builds a provider from config. The API key is read once
// from the environment variable named in cfg.APIKeyEnv.
func NewOpenAIProvider(cfg config.ProviderConfig) (*OpenAIProvider, error) {
	apiKey := os.Getenv(cfg.APIKeyEnv)
	if apiKey == "" {
		return nil, fmt.Errorf("API key not found in environment variable: %s", cfg.APIKeyEnv)
	}

	clientCfg := openai.DefaultConfig(apiKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = cfg.BaseURL
	}

	return &OpenAIProvider{
		client:      openai.NewClientWithConfig(clientCfg),
		name:        cfg.Name,
		model:       cfg.Model,
		maxTokens:   cfg.MaxTokens,
		temperature: cfg.Temperature,
	}, nil
}

// Complete generates text for the prompt.
func (p *OpenAIProvider) Complete(ctx context.Context, systemPrompt, userPrompt string, params port.CompletionParams) (string, error) {
	maxTokens := p.maxTokens
	if params.MaxTokens > 0 {
		maxTokens = params.MaxTokens
	}
	temperature := p.temperature
	if params.Temperature > 0 {
		temperature = params.Temperature
	}

	var messages []openai.ChatCompletionMessage
	if systemPrompt != "" {
		messages = append(messages, openai.ChatCompletionMessage{
			Role:    openai.ChatMessageRoleSystem,
			Content: systemPrompt,
		})
	}
	messages = append(messages, openai.ChatCompletionMessage{
		Role:    openai.ChatMessageRoleUser,
		Content: userPrompt,
	})

	resp, err := p.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       p.model,
		Messages:    messages,
		MaxTokens:   maxTokens,
		Temperature: temperature,
	})
	if err != nil {
		return "", p.classify(err)
	}

	if len(resp.Choices) == 0 {
		return "", &CallError{
			Provider: p.name,
			Kind:     FailBadResponse,
			Err:      fmt.Errorf("response contained no choices"),
		}
	}

	text := strings.TrimSpace(resp.Choices[0].Message.Content)
	if text == "" {
		return "", &CallError{
			Provider: p.name,
			Kind:     FailBadResponse,
			Err:      fmt.Errorf("response contained empty text"),
		}
	}

	return text, nil
}

// Name returns the configured provider name.
func (p *OpenAIProvider) Name() string {
	return p.name
}

func (p *OpenAIProvider) classify(err error) *CallError {
	kind := FailServerError
	var retryAfter time.Duration

	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		kind = FailTimeout
	} else {
		var apiErr *openai.APIError
		if errors.As(err, &apiErr) {
			kind = classifyStatus(apiErr.HTTPStatusCode)
			if kind == FailRateLimit {
				retryAfter = 5 * time.Second
			}
		}
	}

	return &CallError{
		Provider:   p.name,
		Kind:       kind,
		RetryAfter: retryAfter,
		Err:        err,
	}
}
