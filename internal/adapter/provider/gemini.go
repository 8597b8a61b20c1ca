package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strconv"
	"time"

	"academybot/config"
	"academybot/internal/port"
)

const geminiBaseURL = "https://generativelanguage.googleapis.com/v1beta"

// GeminiProvider completes prompts through the Google Generative Language
// API.
type GeminiProvider struct {
	apiKey      string
	name        string
	model       string
	baseURL     string
	maxTokens   int
	temperature float32
	client      *http.Client
}

type geminiRequest struct {
	SystemInstruction *geminiContent  `json:"systemInstruction,omitempty"`
	Contents          []geminiContent `json:"contents"`
	GenerationConfig  geminiGenConfig `json:"generationConfig"`
}

type geminiContent struct {
	Role  string       `json:"role,omitempty"`
	Parts []geminiPart `json:"parts"`
}

type geminiPart struct {
	Text string `json:"text"`
}

type geminiGenConfig struct {
	MaxOutputTokens int     `json:"maxOutputTokens,omitempty"`
	Temperature     float32 `json:"temperature,omitempty"`
}

type geminiResponse struct {
	Candidates []struct {
		Content geminiContent `json:"content"`
	} `json:"candidates"`
	Error *struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

// NewGeminiProvider builds a provider from config.
func NewGeminiProvider(cfg config.ProviderConfig) (*GeminiProvider, error) {
	apiKey := os.Getenv(cfg.APIKeyEnv)
	if apiKey == "" {
		return nil, fmt.Errorf("API key not found in environment variable: %s", cfg.APIKeyEnv)
	}

	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = geminiBaseURL
	}

	return &GeminiProvider{
		apiKey:      apiKey,
		name:        cfg.Name,
		model:       cfg.Model,
		baseURL:     baseURL,
		maxTokens:   cfg.MaxTokens,
		temperature: cfg.Temperature,
		client:      &http.Client{},
	}, nil
}

// Complete generates text for the prompt.
func (p *GeminiProvider) Complete(ctx context.Context, systemPrompt, userPrompt string, params port.CompletionParams) (string, error) {
	maxTokens := p.maxTokens
	if params.MaxTokens > 0 {
		maxTokens = params.MaxTokens
	}
	temperature := p.temperature
	if params.Temperature > 0 {
		temperature = params.Temperature
	}

	reqBody := geminiRequest{
		Contents: []geminiContent{
			{Role: "user", Parts: []geminiPart{{Text: userPrompt}}},
		},
		GenerationConfig: geminiGenConfig{
			MaxOutputTokens: maxTokens,
			Temperature:     temperature,
		},
	}
	if systemPrompt != "" {
		reqBody.SystemInstruction = &geminiContent{Parts: []geminiPart{{Text: systemPrompt}}}
	}

	jsonData, err := json.Marshal(reqBody)
	if err != nil {
		return "", &CallError{Provider: p.name, Kind: FailBadResponse, Err: err}
	}

	// The key travels in a header, never in the URL: transport errors quote
	// the full URL and those errors end up in logs.
	url := fmt.Sprintf("%s/models/%s:generateContent", p.baseURL, p.model)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewBuffer(jsonData))
	if err != nil {
		return "", &CallError{Provider: p.name, Kind: FailBadResponse, Err: err}
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-goog-api-key", p.apiKey)

	resp, err := p.client.Do(req)
	if err != nil {
		kind := FailServerError
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
			kind = FailTimeout
		}
		return "", &CallError{Provider: p.name, Kind: kind, Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", &CallError{Provider: p.name, Kind: FailBadResponse, Err: err}
	}

	if resp.StatusCode != http.StatusOK {
		kind := classifyStatus(resp.StatusCode)
		callErr := &CallError{
			Provider: p.name,
			Kind:     kind,
			Err:      fmt.Errorf("API returned status %d", resp.StatusCode),
		}
		if kind == FailRateLimit {
			callErr.RetryAfter = parseRetryAfter(resp.Header.Get("Retry-After"))
		}
		return "", callErr
	}

	var genResp geminiResponse
	if err := json.Unmarshal(body, &genResp); err != nil {
		return "", &CallError{Provider: p.name, Kind: FailBadResponse, Err: err}
	}
	if genResp.Error != nil {
		return "", &CallError{
			Provider: p.name,
			Kind:     classifyStatus(genResp.Error.Code),
			Err:      fmt.Errorf("API error: %s", genResp.Error.Message),
		}
	}
	if len(genResp.Candidates) == 0 || len(genResp.Candidates[0].Content.Parts) == 0 {
		return "", &CallError{
			Provider: p.name,
			Kind:     FailBadResponse,
			Err:      fmt.Errorf("response contained no candidates"),
		}
	}

	return genResp.Candidates[0].Content.Parts[0].Text, nil
}

// Name returns the configured provider name.
func (p *GeminiProvider) Name() string {
	return p.name
}

// parseRetryAfter reads a Retry-After header value in seconds.
func parseRetryAfter(value string) time.Duration {
	if value == "" {
		return 5 * time.Second
	}
	secs, err := strconv.Atoi(value)
	if err != nil || secs <= 0 {
		return 5 * time.Second
	}
	return time.Duration(secs) * time.Second
}
