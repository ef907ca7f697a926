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

// Package provider defines the uniform adapter contract over the LLM
// vendor APIs the engine generates slide content with. Each adapter
// translates one vendor's request shape, response shape, and error
// taxonomy into the types here, so the orchestration layer never sees
// vendor-specific details.
package provider

import (
	"context"
	"net/http"
	"time"
)

// HTTPClient is an interface for HTTP client operations (enables testing)
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// GenerateRequest is the provider-neutral completion request. The API
// key is supplied per call by the caller, decrypted just before use;
// adapters must not retain it.
type GenerateRequest struct {
	Prompt       string  // The prompt/user message
	SystemPrompt string  // Optional system prompt
	Model        string  // Model identifier, adapter default when empty
	MaxTokens    int     // Maximum tokens to generate
	Temperature  float64 // Temperature (negative means adapter default)
	APIKey       string  // Credential for this call only
}

// Completion is the provider-neutral result of a generation call.
// Token counts come from the vendor response and feed cost accounting.
type Completion struct {
	Text             string
	Provider         string
	Model            string
	PromptTokens     int
	CompletionTokens int
	Latency          time.Duration
}

// Provider is the adapter contract every vendor integration implements.
type Provider interface {
	// Name returns the stable provider identifier ("anthropic",
	// "openai", "gemini", "bedrock").
	Name() string

	// Generate performs one completion call. Failures are returned as
	// *Error with a classified code; ctx cancellation and deadlines
	// abort the underlying request.
	Generate(ctx context.Context, req GenerateRequest) (*Completion, error)
}
