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

// Package engine orchestrates slide generation across LLM providers:
// it drives retries and provider fallback, prices every completion
// against the pricing table, and records each outcome exactly once.
package engine

import (
	"time"

	"slidesmith/platform/engine/cost"
)

// Outcome is the terminal state of a generation request.
type Outcome string

const (
	// OutcomeSucceeded means a provider returned a completion and it
	// was priced and persisted.
	OutcomeSucceeded Outcome = "succeeded"

	// OutcomeFailedAllProviders means every eligible provider was
	// exhausted without a usable completion.
	OutcomeFailedAllProviders Outcome = "failed_all_providers"

	// OutcomeCancelled means the caller cancelled the request before a
	// provider succeeded.
	OutcomeCancelled Outcome = "cancelled"
)

// GenerationRequest describes one unit of slide-generation work.
type GenerationRequest struct {
	// ID is the idempotency key. A generated UUID is assigned when the
	// caller leaves it empty.
	ID string `json:"id"`

	// Prompt is the user content sent to the provider.
	Prompt string `json:"prompt"`

	// SystemPrompt optionally steers the provider's voice.
	SystemPrompt string `json:"system_prompt,omitempty"`

	// Provider optionally names the preferred provider; fallback
	// continues with the configured order.
	Provider string `json:"provider,omitempty"`

	// Model optionally overrides the provider's default model.
	Model string `json:"model,omitempty"`

	// Operation labels what the deck generator asked for, e.g.
	// "generate_outline" or "generate_slide".
	Operation string `json:"operation,omitempty"`

	// Deck identifies the presentation the request belongs to.
	Deck string `json:"deck,omitempty"`

	// MaxTokens caps the completion length; 0 uses adapter defaults.
	MaxTokens int `json:"max_tokens,omitempty"`

	// Temperature, when set, is passed through to the provider; nil
	// (an omitted JSON field) means adapter default. A pointer keeps an
	// explicit 0.0 distinguishable from absence.
	Temperature *float64 `json:"temperature,omitempty"`
}

// GenerationResult is the terminal record of a request, returned to
// the caller and persisted to the stats repository.
type GenerationResult struct {
	RequestID        string        `json:"request_id"`
	Outcome          Outcome       `json:"outcome"`
	Provider         string        `json:"provider,omitempty"`
	Model            string        `json:"model,omitempty"`
	Operation        string        `json:"operation,omitempty"`
	Deck             string        `json:"deck,omitempty"`
	Attempts         int           `json:"attempts"`
	Content          string        `json:"content,omitempty"`
	PromptTokens     int           `json:"prompt_tokens"`
	CompletionTokens int           `json:"completion_tokens"`
	Cost             cost.Quote    `json:"cost"`
	Latency          time.Duration `json:"-"`
	LatencyMS        int64         `json:"latency_ms"`
	StartedAt        time.Time     `json:"started_at"`
	FinishedAt       time.Time     `json:"finished_at"`

	// FailureReason carries the last provider error for failed
	// outcomes.
	FailureReason string `json:"failure_reason,omitempty"`
}
