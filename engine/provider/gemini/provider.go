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

// Package gemini adapts Google's Gemini generateContent API to the
// engine's provider contract.
package gemini

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
	// DefaultBaseURL is the default Gemini API endpoint
	DefaultBaseURL = "https://generativelanguage.googleapis.com"

	// DefaultTimeout is the default HTTP timeout
	DefaultTimeout = 120 * time.Second

	// DefaultMaxTokens is the default max tokens for completions
	DefaultMaxTokens = 4096

	// DefaultModel is used when a request does not name a model
	DefaultModel = "gemini-2.0-flash"
)

// Provider implements the adapter contract for Google Gemini.
type Provider struct {
	baseURL string
	model   string
	client  provider.HTTPClient
}

// Config contains configuration for the Gemini adapter.
type Config struct {
	BaseURL string              // Optional: API base URL
	Model   string              // Optional: default model
	Timeout time.Duration       // Optional: HTTP timeout (default: 120s)
	Client  provider.HTTPClient // Optional: custom HTTP client for testing
}

// NewProvider creates a new Gemini adapter. Credentials are supplied
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
	return "gemini"
}

// Generate performs one completion call against the generateContent API.
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

	apiReq := generateRequest{
		Contents: []content{
			{Role: "user", Parts: []part{{Text: req.Prompt}}},
		},
		GenerationConfig: &generationConfig{
			MaxOutputTokens: maxTokens,
		},
	}
	if req.Temperature >= 0 {
		apiReq.GenerationConfig.Temperature = &req.Temperature
	}
	if req.SystemPrompt != "" {
		apiReq.SystemInstruction = &content{Parts: []part{{Text: req.SystemPrompt}}}
	}

	reqBody, err := json.Marshal(apiReq)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	url := fmt.Sprintf("%s/v1beta/models/%s:generateContent", p.baseURL, model)
	httpReq, err := http.NewRequestWithContext(ctx, "POST", url, bytes.NewBuffer(reqBody))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("x-goog-api-key", req.APIKey)

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

	var apiResp generateResponse
	if err := json.NewDecoder(resp.Body).Decode(&apiResp); err != nil {
		return nil, &provider.Error{
			Provider: p.Name(),
			Code:     provider.CodeTransient,
			Message:  "failed to decode response",
			Cause:    err,
		}
	}

	if len(apiResp.Candidates) == 0 {
		return nil, &provider.Error{
			Provider: p.Name(),
			Code:     provider.CodeTransient,
			Message:  "response contained no candidates",
		}
	}

	var textBuilder strings.Builder
	for _, pt := range apiResp.Candidates[0].Content.Parts {
		textBuilder.WriteString(pt.Text)
	}

	return &provider.Completion{
		Text:             textBuilder.String(),
		Provider:         p.Name(),
		Model:            model,
		PromptTokens:     apiResp.UsageMetadata.PromptTokenCount,
		CompletionTokens: apiResp.UsageMetadata.CandidatesTokenCount,
		Latency:          time.Since(start),
	}, nil
}

// parseAPIError classifies a non-200 response into the error taxonomy.
// Gemini reports errors with gRPC-style status strings.
func (p *Provider) parseAPIError(statusCode int, body []byte) error {
	var errResp struct {
		Error struct {
			Code    int    `json:"code"`
			Message string `json:"message"`
			Status  string `json:"status"`
		} `json:"error"`
	}

	code := provider.ClassifyStatus(statusCode)
	message := string(body)

	if err := json.Unmarshal(body, &errResp); err == nil && errResp.Error.Message != "" {
		message = errResp.Error.Message
		switch errResp.Error.Status {
		case "UNAUTHENTICATED", "PERMISSION_DENIED":
			code = provider.CodeAuth
		case "RESOURCE_EXHAUSTED":
			code = provider.CodeRateLimited
		case "UNAVAILABLE", "INTERNAL":
			code = provider.CodeTransient
		case "DEADLINE_EXCEEDED":
			code = provider.CodeTimeout
		case "INVALID_ARGUMENT", "NOT_FOUND", "FAILED_PRECONDITION":
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

type generateRequest struct {
	Contents          []content         `json:"contents"`
	SystemInstruction *content          `json:"systemInstruction,omitempty"`
	GenerationConfig  *generationConfig `json:"generationConfig,omitempty"`
}

type content struct {
	Role  string `json:"role,omitempty"`
	Parts []part `json:"parts"`
}

type part struct {
	Text string `json:"text"`
}

type generationConfig struct {
	MaxOutputTokens int      `json:"maxOutputTokens,omitempty"`
	Temperature     *float64 `json:"temperature,omitempty"`
}

type generateResponse struct {
	Candidates []struct {
		Content      content `json:"content"`
		FinishReason string  `json:"finishReason"`
	} `json:"candidates"`
	UsageMetadata struct {
		PromptTokenCount     int `json:"promptTokenCount"`
		CandidatesTokenCount int `json:"candidatesTokenCount"`
		TotalTokenCount      int `json:"totalTokenCount"`
	} `json:"usageMetadata"`
}
