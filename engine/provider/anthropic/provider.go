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

// Package anthropic adapts Anthropic's Messages API to the engine's
// provider contract.
package anthropic

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"slidesmith/platform/engine/provider"
)

const (
	// DefaultBaseURL is the default Anthropic API endpoint
	DefaultBaseURL = "https://api.anthropic.com"

	// DefaultAPIVersion is the Anthropic API version
	DefaultAPIVersion = "2023-06-01"

	// DefaultTimeout is the default HTTP timeout
	DefaultTimeout = 120 * time.Second

	// DefaultMaxTokens is the default max tokens for completions
	DefaultMaxTokens = 4096

	// DefaultModel is used when a request does not name a model
	DefaultModel = "claude-sonnet-4-20250514"
)

// Provider implements the adapter contract for Anthropic Claude.
type Provider struct {
	baseURL    string
	apiVersion string
	model      string
	client     provider.HTTPClient
}

// Config contains configuration for the Anthropic adapter.
type Config struct {
	BaseURL    string              // Optional: API base URL (default: https://api.anthropic.com)
	APIVersion string              // Optional: API version (default: 2023-06-01)
	Model      string              // Optional: default model
	Timeout    time.Duration       // Optional: HTTP timeout (default: 120s)
	Client     provider.HTTPClient // Optional: custom HTTP client for testing
}

// NewProvider creates a new Anthropic adapter. Credentials are supplied
// per call, never held by the adapter.
func NewProvider(cfg Config) *Provider {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.APIVersion == "" {
		cfg.APIVersion = DefaultAPIVersion
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
		baseURL:    cfg.BaseURL,
		apiVersion: cfg.APIVersion,
		model:      cfg.Model,
		client:     cfg.Client,
	}
}

// Name returns the provider name
func (p *Provider) Name() string {
	return "anthropic"
}

// Generate performs one completion call against the Messages API.
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

	apiReq := anthropicRequest{
		Model:     model,
		MaxTokens: maxTokens,
		Messages: []anthropicMessage{
			{Role: "user", Content: req.Prompt},
		},
	}

	// Temperature 0.0 is valid (deterministic); negative means unset.
	if req.Temperature >= 0 {
		apiReq.Temperature = &req.Temperature
	}

	if req.SystemPrompt != "" {
		apiReq.System = req.SystemPrompt
	}

	reqBody, err := json.Marshal(apiReq)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, "POST", p.baseURL+"/v1/messages", bytes.NewBuffer(reqBody))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("x-api-key", req.APIKey)
	httpReq.Header.Set("anthropic-version", p.apiVersion)

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

	var apiResp anthropicResponse
	if err := json.NewDecoder(resp.Body).Decode(&apiResp); err != nil {
		return nil, &provider.Error{
			Provider: p.Name(),
			Code:     provider.CodeTransient,
			Message:  "failed to decode response",
			Cause:    err,
		}
	}

	var contentBuilder strings.Builder
	for _, block := range apiResp.Content {
		if block.Type == "text" {
			contentBuilder.WriteString(block.Text)
		}
	}

	return &provider.Completion{
		Text:             contentBuilder.String(),
		Provider:         p.Name(),
		Model:            apiResp.Model,
		PromptTokens:     apiResp.Usage.InputTokens,
		CompletionTokens: apiResp.Usage.OutputTokens,
		Latency:          time.Since(start),
	}, nil
}

// parseAPIError classifies a non-200 response into the error taxonomy.
func (p *Provider) parseAPIError(statusCode int, body []byte) error {
	var errResp struct {
		Type  string `json:"type"`
		Error struct {
			Type    string `json:"type"`
			Message string `json:"message"`
		} `json:"error"`
	}

	code := provider.ClassifyStatus(statusCode)
	message := string(body)

	if err := json.Unmarshal(body, &errResp); err == nil && errResp.Error.Message != "" {
		message = errResp.Error.Message
		switch errResp.Error.Type {
		case "authentication_error", "permission_error":
			code = provider.CodeAuth
		case "rate_limit_error":
			code = provider.CodeRateLimited
		case "overloaded_error", "api_error":
			code = provider.CodeTransient
		case "invalid_request_error", "not_found_error":
			code = provider.CodeInvalidRequest
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

type anthropicRequest struct {
	Model       string             `json:"model"`
	Messages    []anthropicMessage `json:"messages"`
	MaxTokens   int                `json:"max_tokens"`
	System      string             `json:"system,omitempty"`
	Temperature *float64           `json:"temperature,omitempty"`
}

type anthropicMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type anthropicResponse struct {
	ID         string `json:"id"`
	Type       string `json:"type"`
	Role       string `json:"role"`
	Model      string `json:"model"`
	StopReason string `json:"stop_reason"`
	Content    []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"content"`
	Usage struct {
		InputTokens  int `json:"input_tokens"`
		OutputTokens int `json:"output_tokens"`
	} `json:"usage"`
}
