// Copyright 2025 Slidesmith
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package openai adapts OpenAI's Chat Completions API to the engine's
// provider contract.
package openai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"slidesmith/platform/engine/provider"
)

const (
	// DefaultBaseURL is the default OpenAI API endpoint
	DefaultBaseURL = "https://api.openai.com"

	// DefaultTimeout is the default HTTP timeout
	DefaultTimeout = 120 * time.Second

	// DefaultMaxTokens is the default max tokens for completions
	DefaultMaxTokens = 4096

	// DefaultModel is used when a request does not name a model
	DefaultModel = "gpt-4o"
)

// Provider implements the adapter contract for OpenAI.
type Provider struct {
	baseURL string
	model   string
	client  provider.HTTPClient
}

// Config contains configuration for the OpenAI adapter.
type Config struct {
	BaseURL string              // Optional: API base URL (default: https://api.openai.com)
	Model   string              // Optional: default model
	Timeout time.Duration       // Optional: HTTP timeout (default: 120s)
	Client  provider.HTTPClient // Optional: custom HTTP client for testing
}

// NewProvider creates a new OpenAI adapter. Credentials are supplied
// per call, never held by the adapter.
func NewProvider(cfg Config) *Provider {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.Client == nil {
		cfg.Client = &http.Client{Timeout: cfg.Timeout}
	}

	return &Provider{
		baseURL: cfg.BaseURL,
		model:   cfg.Model,
		client:  cfg.Client,
	}
}

// Name returns the provider name
func (p *Provider) Name() string {
	return "openai"
}

// Generate performs one completion call against the Chat Completions API.
func (p *Provider) Generate(ctx context.Context, req provider.GenerateRequest) (*provider.Completion, error) {
	start := time.Now()

	if req.APIKey == "" {
		return nil, &provider.Error{
			Provider: p.Name(),
			Code:     provider.CodeAuth,
			Message:  "missing API key",
		}
	}

	model := req.Model
	if model == "" {
		model = p.model
	}

	maxTokens := req.MaxTokens
	if maxTokens <= 0 {
		maxTokens = DefaultMaxTokens
	}

	var messages []chatMessage
	if req.SystemPrompt != "" {
		messages = append(messages, chatMessage{Role: "system", Content: req.SystemPrompt})
	}
	messages = append(messages, chatMessage{Role: "user", Content: req.Prompt})

	apiReq := chatRequest{
		Model:               model,
		Messages:            messages,
		MaxCompletionTokens: maxTokens,
	}
	if req.Temperature >= 0 {
		apiReq.Temperature = &req.Temperature
	}

	reqBody, err := json.Marshal(apiReq)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, "POST", p.baseURL+"/v1/chat/completions", bytes.NewBuffer(reqBody))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+req.APIKey)

	resp, err := p.client.Do(httpReq)
	if err != nil {
		return nil, provider.WrapTransport(p.Name(), err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, p.parseAPIError(resp.StatusCode, body)
	}

	var apiResp chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&apiResp); err != nil {
		return nil, &provider.Error{
			Provider: p.Name(),
			Code:     provider.CodeTransient,
			Message:  "failed to decode response",
			Cause:    err,
		}
	}

	if len(apiResp.Choices) == 0 {
		return nil, &provider.Error{
			Provider: p.Name(),
			Code:     provider.CodeTransient,
			Message:  "response contained no choices",
		}
	}

	return &provider.Completion{
		Text:             apiResp.Choices[0].Message.Content,
		Provider:         p.Name(),
		Model:            apiResp.Model,
		PromptTokens:     apiResp.Usage.PromptTokens,
		CompletionTokens: apiResp.Usage.CompletionTokens,
		Latency:          time.Since(start),
	}, nil
}

// parseAPIError classifies a non-200 response into the error taxonomy.
func (p *Provider) parseAPIError(statusCode int, body []byte) error {
	var errResp struct {
		Error struct {
			Message string `json:"message"`
			Type    string `json:"type"`
			Code    string `json:"code"`
		} `json:"error"`
	}

	code := provider.ClassifyStatus(statusCode)
	message := string(body)

	if err := json.Unmarshal(body, &errResp); err == nil && errResp.Error.Message != "" {
		message = errResp.Error.Message
		switch errResp.Error.Type {
		case "invalid_request_error":
			// 401s also arrive with this type; status classification
			// already separated auth from validation.
			if code != provider.CodeAuth {
				code = provider.CodeInvalidRequest
			}
		case "insufficient_quota", "rate_limit_error":
			code = provider.CodeRateLimited
		case "server_error":
			code = provider.CodeTransient
		}
		if errResp.Error.Code == "invalid_api_key" {
			code = provider.CodeAuth
		}
	}

	return &provider.Error{
		Provider:   p.Name(),
		Code:       code,
		Message:    message,
		StatusCode: statusCode,
	}
}

// Internal API types

type chatRequest struct {
	Model               string        `json:"model"`
	Messages            []chatMessage `json:"messages"`
	MaxCompletionTokens int           `json:"max_completion_tokens,omitempty"`
	Temperature         *float64      `json:"temperature,omitempty"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatResponse struct {
	ID      string `json:"id"`
	Model   string `json:"model"`
	Choices []struct {
		Index   int `json:"index"`
		Message struct {
			Role    string `json:"role"`
			Content string `json:"content"`
		} `json:"message"`
		FinishReason string `json:"finish_reason"`
	} `json:"choices"`
	Usage struct {
		PromptTokens     int `json:"prompt_tokens"`
		CompletionTokens int `json:"completion_tokens"`
		TotalTokens      int `json:"total_tokens"`
	} `json:"usage"`
}
