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

// Package stats persists generation results and serves usage and cost
// aggregates. Recording is keyed by request id: re-recording an id
// overwrites the row instead of inserting a second one, so a retried
// persistence call can never double count. Rows are never deleted, and
// every aggregate is computed from committed rows at query time.
package stats

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// Result is one persisted generation outcome, the accounting record of
// a single request.
type Result struct {
	RequestID        string    `json:"request_id"`
	Provider         string    `json:"provider"`
	Model            string    `json:"model"`
	Operation        string    `json:"operation"`
	Deck             string    `json:"deck"`
	Attempts         int       `json:"attempts"`
	Outcome          string    `json:"outcome"`
	Content          string    `json:"content,omitempty"`
	PromptTokens     int       `json:"prompt_tokens"`
	CompletionTokens int       `json:"completion_tokens"`
	CostMicroUSD     int64     `json:"cost_micro_usd"`
	Currency         string    `json:"currency"`
	PricingVersion   string    `json:"pricing_version"`
	LatencyMS        int64     `json:"latency_ms"`
	StartedAt        time.Time `json:"started_at"`
	FinishedAt       time.Time `json:"finished_at"`
}

// Bucket is a per-dimension aggregate slice.
type Bucket struct {
	Count        int64 `json:"count"`
	CostMicroUSD int64 `json:"cost_micro_usd"`
}

// Summary is the aggregate view over a filtered set of results.
type Summary struct {
	Count        int64             `json:"count"`
	CostMicroUSD int64             `json:"cost_micro_usd"`
	ByProvider   map[string]Bucket `json:"by_provider"`
	ByModel      map[string]Bucket `json:"by_model"`
	ByOutcome    map[string]int64  `json:"by_outcome"`
}

// Filter narrows an aggregation. Zero values mean "no constraint".
type Filter struct {
	Provider string
	From     time.Time
	To       time.Time
}

// Repository reads and writes the generation_results table.
type Repository struct {
	db *sql.DB
}

// NewRepository creates a repository over an open database.
func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

// Record persists a result. Recording the same request id again
// overwrites the existing row rather than inserting a duplicate, so a
// retried persistence call after a crash mid-write cannot double
// count.
func (r *Repository) Record(ctx context.Context, result Result) error {
	if result.RequestID == "" {
		return fmt.Errorf("request id is required")
	}

	_, err := r.db.ExecContext(ctx, `
		INSERT INTO generation_results (
			request_id, provider, model, operation, deck, attempts, outcome,
			content, prompt_tokens, completion_tokens, cost_micro_usd,
			currency, pricing_version, latency_ms, started_at, finished_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (request_id) DO UPDATE SET
			provider = excluded.provider,
			model = excluded.model,
			operation = excluded.operation,
			deck = excluded.deck,
			attempts = excluded.attempts,
			outcome = excluded.outcome,
			content = excluded.content,
			prompt_tokens = excluded.prompt_tokens,
			completion_tokens = excluded.completion_tokens,
			cost_micro_usd = excluded.cost_micro_usd,
			currency = excluded.currency,
			pricing_version = excluded.pricing_version,
			latency_ms = excluded.latency_ms,
			started_at = excluded.started_at,
			finished_at = excluded.finished_at
	`,
		result.RequestID, result.Provider, result.Model, result.Operation,
		result.Deck, result.Attempts, result.Outcome, result.Content,
		result.PromptTokens, result.CompletionTokens, result.CostMicroUSD,
		result.Currency, result.PricingVersion, result.LatencyMS,
		result.StartedAt.UTC(), result.FinishedAt.UTC(),
	)
	if err != nil {
		return fmt.Errorf("failed to record generation result: %w", err)
	}
	return nil
}

// Get returns one result by request id.
func (r *Repository) Get(ctx context.Context, requestID string) (*Result, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT request_id, provider, model, operation, deck, attempts, outcome,
			content, prompt_tokens, completion_tokens, cost_micro_usd,
			currency, pricing_version, latency_ms, started_at, finished_at
		FROM generation_results WHERE request_id = ?
	`, requestID)

	var result Result
	err := row.Scan(
		&result.RequestID, &result.Provider, &result.Model, &result.Operation,
		&result.Deck, &result.Attempts, &result.Outcome, &result.Content,
		&result.PromptTokens, &result.CompletionTokens, &result.CostMicroUSD,
		&result.Currency, &result.PricingVersion, &result.LatencyMS,
		&result.StartedAt, &result.FinishedAt,
	)
	if err == sql.ErrNoRows {
		return nil, sql.ErrNoRows
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read generation result: %w", err)
	}
	return &result, nil
}

// filterClause builds the WHERE fragment and args for a filter.
func filterClause(filter Filter) (string, []interface{}) {
	clause := "WHERE 1=1"
	var args []interface{}

	if filter.Provider != "" {
		clause += " AND provider = ?"
		args = append(args, filter.Provider)
	}
	if !filter.From.IsZero() {
		clause += " AND started_at >= ?"
		args = append(args, filter.From.UTC())
	}
	if !filter.To.IsZero() {
		clause += " AND started_at < ?"
		args = append(args, filter.To.UTC())
	}
	return clause, args
}

// Aggregate computes the summary over committed rows matching the
// filter. Nothing is cached; repeated calls over unchanged data return
// identical summaries.
func (r *Repository) Aggregate(ctx context.Context, filter Filter) (*Summary, error) {
	clause, args := filterClause(filter)

	summary := &Summary{
		ByProvider: make(map[string]Bucket),
		ByModel:    make(map[string]Bucket),
		ByOutcome:  make(map[string]int64),
	}

	err := r.db.QueryRowContext(ctx,
		"SELECT COUNT(*), COALESCE(SUM(cost_micro_usd), 0) FROM generation_results "+clause,
		args...,
	).Scan(&summary.Count, &summary.CostMicroUSD)
	if err != nil {
		return nil, fmt.Errorf("failed to aggregate totals: %w", err)
	}

	rows, err := r.db.QueryContext(ctx,
		"SELECT provider, COUNT(*), COALESCE(SUM(cost_micro_usd), 0) FROM generation_results "+
			clause+" GROUP BY provider", args...)
	if err != nil {
		return nil, fmt.Errorf("failed to aggregate by provider: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var name string
		var bucket Bucket
		if err := rows.Scan(&name, &bucket.Count, &bucket.CostMicroUSD); err != nil {
			return nil, fmt.Errorf("failed to scan provider bucket: %w", err)
		}
		summary.ByProvider[name] = bucket
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating provider buckets: %w", err)
	}

	modelRows, err := r.db.QueryContext(ctx,
		"SELECT model, COUNT(*), COALESCE(SUM(cost_micro_usd), 0) FROM generation_results "+
			clause+" GROUP BY model", args...)
	if err != nil {
		return nil, fmt.Errorf("failed to aggregate by model: %w", err)
	}
	defer modelRows.Close()
	for modelRows.Next() {
		var name string
		var bucket Bucket
		if err := modelRows.Scan(&name, &bucket.Count, &bucket.CostMicroUSD); err != nil {
			return nil, fmt.Errorf("failed to scan model bucket: %w", err)
		}
		summary.ByModel[name] = bucket
	}
	if err := modelRows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating model buckets: %w", err)
	}

	outcomeRows, err := r.db.QueryContext(ctx,
		"SELECT outcome, COUNT(*) FROM generation_results "+clause+" GROUP BY outcome", args...)
	if err != nil {
		return nil, fmt.Errorf("failed to aggregate by outcome: %w", err)
	}
	defer outcomeRows.Close()
	for outcomeRows.Next() {
		var name string
		var count int64
		if err := outcomeRows.Scan(&name, &count); err != nil {
			return nil, fmt.Errorf("failed to scan outcome bucket: %w", err)
		}
		summary.ByOutcome[name] = count
	}
	if err := outcomeRows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating outcome buckets: %w", err)
	}

	return summary, nil
}

// ListRecent returns the most recent results, newest first. Content is
// omitted to keep responses small.
func (r *Repository) ListRecent(ctx context.Context, limit int) ([]Result, error) {
	if limit <= 0 {
		limit = 20
	}

	rows, err := r.db.QueryContext(ctx, `
		SELECT request_id, provider, model, operation, deck, attempts, outcome,
			prompt_tokens, completion_tokens, cost_micro_usd,
			currency, pricing_version, latency_ms, started_at, finished_at
		FROM generation_results
		ORDER BY started_at DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list recent results: %w", err)
	}
	defer rows.Close()

	var results []Result
	for rows.Next() {
		var result Result
		if err := rows.Scan(
			&result.RequestID, &result.Provider, &result.Model, &result.Operation,
			&result.Deck, &result.Attempts, &result.Outcome,
			&result.PromptTokens, &result.CompletionTokens, &result.CostMicroUSD,
			&result.Currency, &result.PricingVersion, &result.LatencyMS,
			&result.StartedAt, &result.FinishedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan result row: %w", err)
		}
		results = append(results, result)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating results: %w", err)
	}
	return results, nil
}
