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

package engine

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"slidesmith/platform/engine/cost"
	"slidesmith/platform/engine/credential"
	"slidesmith/platform/engine/provider"
	"slidesmith/platform/engine/stats"
	"slidesmith/platform/shared/logger"
)

// keyless providers authenticate through ambient credentials (IAM)
// instead of a stored API key.
var keylessProviders = map[string]bool{
	"bedrock": true,
}

// Orchestrator drives a generation request through retries, provider
// fallback, pricing, and persistence. Each request reaches exactly one
// terminal outcome and is recorded exactly once.
type Orchestrator struct {
	registry    *provider.Registry
	credentials *credential.Store
	calculator  *cost.Calculator
	repository  *stats.Repository
	log         *logger.Logger

	backoff     provider.Backoff
	maxAttempts int

	mu       sync.Mutex
	inflight map[string]context.CancelFunc
}

// OrchestratorOptions configures a new orchestrator.
type OrchestratorOptions struct {
	Registry    *provider.Registry
	Credentials *credential.Store
	Calculator  *cost.Calculator
	Repository  *stats.Repository
	Logger      *logger.Logger

	// Backoff overrides the default retry schedule (used by tests).
	Backoff *provider.Backoff

	// MaxAttemptsPerProvider is the retry budget per provider; 0 means 3.
	MaxAttemptsPerProvider int
}

// NewOrchestrator wires the orchestrator from its collaborators.
func NewOrchestrator(opts OrchestratorOptions) *Orchestrator {
	backoff := provider.DefaultBackoff()
	if opts.Backoff != nil {
		backoff = *opts.Backoff
	}
	maxAttempts := opts.MaxAttemptsPerProvider
	if maxAttempts <= 0 {
		maxAttempts = 3
	}
	log := opts.Logger
	if log == nil {
		log = logger.New("orchestrator")
	}

	return &Orchestrator{
		registry:    opts.Registry,
		credentials: opts.Credentials,
		calculator:  opts.Calculator,
		repository:  opts.Repository,
		log:         log,
		backoff:     backoff,
		maxAttempts: maxAttempts,
		inflight:    make(map[string]context.CancelFunc),
	}
}

// Cancel aborts an in-flight request. The request reaches the
// cancelled outcome and is persisted like any other terminal state.
func (o *Orchestrator) Cancel(requestID string) error {
	o.mu.Lock()
	cancel, ok := o.inflight[requestID]
	o.mu.Unlock()

	if !ok {
		return ErrUnknownRequest
	}
	cancel()
	return nil
}

func (o *Orchestrator) track(requestID string, cancel context.CancelFunc) {
	o.mu.Lock()
	o.inflight[requestID] = cancel
	o.mu.Unlock()
}

func (o *Orchestrator) untrack(requestID string) {
	o.mu.Lock()
	delete(o.inflight, requestID)
	o.mu.Unlock()
}

// Generate runs one request to a terminal outcome. The returned error
// is non-nil only when no outcome could be reached: validation
// failures, pricing gaps, and persistence failures. Provider
// exhaustion is not an error; it is the failed_all_providers outcome.
func (o *Orchestrator) Generate(ctx context.Context, req GenerationRequest) (*GenerationResult, error) {
	if strings.TrimSpace(req.Prompt) == "" {
		return nil, fmt.Errorf("%w: prompt is required", ErrInvalidRequest)
	}
	if req.ID == "" {
		req.ID = uuid.New().String()
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	o.track(req.ID, cancel)
	defer o.untrack(req.ID)

	started := time.Now().UTC()

	chain := o.registry.Chain(strings.ToLower(req.Provider))
	if len(chain) == 0 {
		return nil, ErrNoProviders
	}

	attempts := 0
	eligible := 0
	var lastErr error

	for _, p := range chain {
		apiKey, ok, err := o.credentialFor(ctx, p.Name())
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrStorage, err)
		}
		if !ok {
			// Uncredentialed providers are skipped without consuming
			// the retry budget.
			o.log.Debug(req.ID, "skipping uncredentialed provider", map[string]interface{}{
				"provider": p.Name(),
			})
			continue
		}
		eligible++

		completion, attemptCount, err := o.tryProvider(ctx, p, req, apiKey)
		attempts += attemptCount

		if err == nil {
			return o.finishSuccess(ctx, req, completion, attempts, started)
		}
		if ctx.Err() != nil && errors.Is(ctx.Err(), context.Canceled) {
			return o.finishTerminal(req, OutcomeCancelled, attempts, started, err)
		}
		lastErr = err

		o.log.Warn(req.ID, "provider exhausted, falling back", map[string]interface{}{
			"provider": p.Name(),
			"error":    err.Error(),
		})
	}

	if eligible == 0 {
		return nil, ErrNoProviders
	}
	return o.finishTerminal(req, OutcomeFailedAllProviders, attempts, started, lastErr)
}

// credentialFor resolves the API key for a provider. Keyless providers
// are always eligible with an empty key.
func (o *Orchestrator) credentialFor(ctx context.Context, name string) (string, bool, error) {
	if keylessProviders[name] {
		return "", true, nil
	}
	secret, err := o.credentials.Get(ctx, name)
	if errors.Is(err, credential.ErrNotFound) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return secret, true, nil
}

// tryProvider runs the per-provider retry loop. It returns the number
// of attempts consumed and the last error when the provider is
// abandoned.
func (o *Orchestrator) tryProvider(ctx context.Context, p provider.Provider, req GenerationRequest, apiKey string) (*provider.Completion, int, error) {
	// Adapters treat a negative temperature as "use your default".
	temperature := -1.0
	if req.Temperature != nil {
		temperature = *req.Temperature
	}

	genReq := provider.GenerateRequest{
		Prompt:       req.Prompt,
		SystemPrompt: req.SystemPrompt,
		Model:        req.Model,
		MaxTokens:    req.MaxTokens,
		Temperature:  temperature,
		APIKey:       apiKey,
	}

	var lastErr error
	for attempt := 0; attempt < o.maxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			if lastErr == nil {
				lastErr = err
			}
			return nil, attempt, lastErr
		}

		completion, err := p.Generate(ctx, genReq)
		if err == nil {
			promProviderCalls.WithLabelValues(p.Name(), "success").Inc()
			return completion, attempt + 1, nil
		}

		promProviderCalls.WithLabelValues(p.Name(), "error").Inc()
		lastErr = err

		if !provider.IsRetryable(err) {
			// Auth and validation failures cannot heal on retry.
			return nil, attempt + 1, err
		}
		if attempt == o.maxAttempts-1 {
			break
		}
		if err := o.backoff.Wait(ctx, attempt); err != nil {
			return nil, attempt + 1, lastErr
		}
	}
	return nil, o.maxAttempts, lastErr
}

// finishSuccess prices the completion, persists the result, and
// returns it. A pricing gap fails the whole request: the engine never
// books an unpriced completion.
func (o *Orchestrator) finishSuccess(ctx context.Context, req GenerationRequest, completion *provider.Completion, attempts int, started time.Time) (*GenerationResult, error) {
	finished := time.Now().UTC()

	quote, err := o.calculator.Cost(
		completion.Provider, completion.Model,
		completion.PromptTokens, completion.CompletionTokens,
		finished,
	)
	if err != nil {
		o.log.ErrorWithErr(req.ID, "pricing unavailable for completed generation", err, nil)
		return nil, err
	}

	result := &GenerationResult{
		RequestID:        req.ID,
		Outcome:          OutcomeSucceeded,
		Provider:         completion.Provider,
		Model:            completion.Model,
		Operation:        req.Operation,
		Deck:             req.Deck,
		Attempts:         attempts,
		Content:          completion.Text,
		PromptTokens:     completion.PromptTokens,
		CompletionTokens: completion.CompletionTokens,
		Cost:             quote,
		Latency:          finished.Sub(started),
		LatencyMS:        finished.Sub(started).Milliseconds(),
		StartedAt:        started,
		FinishedAt:       finished,
	}

	if err := o.persist(result); err != nil {
		return nil, err
	}

	promGenerationsTotal.WithLabelValues(string(OutcomeSucceeded)).Inc()
	promGenerationDuration.WithLabelValues(result.Provider).Observe(float64(result.LatencyMS))
	promCostMicroUSD.WithLabelValues(result.Provider, result.Model).Add(float64(quote.Amount))
	promTokensTotal.WithLabelValues(result.Provider, "prompt").Add(float64(result.PromptTokens))
	promTokensTotal.WithLabelValues(result.Provider, "completion").Add(float64(result.CompletionTokens))

	o.log.InfoWithDuration(req.ID, "generation succeeded", float64(result.LatencyMS), map[string]interface{}{
		"provider":       result.Provider,
		"model":          result.Model,
		"attempts":       attempts,
		"cost_micro_usd": int64(quote.Amount),
	})
	return result, nil
}

// finishTerminal persists a failed or cancelled outcome.
func (o *Orchestrator) finishTerminal(req GenerationRequest, outcome Outcome, attempts int, started time.Time, cause error) (*GenerationResult, error) {
	finished := time.Now().UTC()

	result := &GenerationResult{
		RequestID:  req.ID,
		Outcome:    outcome,
		Operation:  req.Operation,
		Deck:       req.Deck,
		Attempts:   attempts,
		Cost:       cost.Quote{Currency: cost.Currency},
		Latency:    finished.Sub(started),
		LatencyMS:  finished.Sub(started).Milliseconds(),
		StartedAt:  started,
		FinishedAt: finished,
	}
	if cause != nil {
		result.FailureReason = cause.Error()
	}

	if err := o.persist(result); err != nil {
		return nil, err
	}

	promGenerationsTotal.WithLabelValues(string(outcome)).Inc()

	o.log.Info(req.ID, "generation finished without completion", map[string]interface{}{
		"outcome":  string(outcome),
		"attempts": attempts,
	})
	return result, nil
}

// persist writes the result through the stats repository. Persistence
// uses a background-derived context so a caller cancellation cannot
// stop the terminal record from being written.
func (o *Orchestrator) persist(result *GenerationResult) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	err := o.repository.Record(ctx, stats.Result{
		RequestID:        result.RequestID,
		Provider:         result.Provider,
		Model:            result.Model,
		Operation:        result.Operation,
		Deck:             result.Deck,
		Attempts:         result.Attempts,
		Outcome:          string(result.Outcome),
		Content:          result.Content,
		PromptTokens:     result.PromptTokens,
		CompletionTokens: result.CompletionTokens,
		CostMicroUSD:     int64(result.Cost.Amount),
		Currency:         result.Cost.Currency,
		PricingVersion:   result.Cost.PricingVersion,
		LatencyMS:        result.LatencyMS,
		StartedAt:        result.StartedAt,
		FinishedAt:       result.FinishedAt,
	})
	if err != nil {
		o.log.ErrorWithErr(result.RequestID, "failed to persist generation result", err, nil)
		return fmt.Errorf("%w: %v", ErrStorage, err)
	}
	return nil
}
