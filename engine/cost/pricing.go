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

package cost

import (
	"fmt"
	"os"
	"sort"
	"strings"
	"sync"
	"time"

	"gopkg.in/yaml.v3"
)

// PricingEntry is one row of the versioned pricing table: the per-1000-token
// prices for a provider/model pair from a given effective date. Multiple
// entries per pair form the pricing history.
type PricingEntry struct {
	Provider        string
	Model           string
	PromptPer1K     Amount
	CompletionPer1K Amount
	EffectiveFrom   time.Time
	Version         string
}

// Table holds pricing entries and answers point-in-time lookups. The
// engine only reads the table; operators append entries via the pricing
// file.
type Table struct {
	mu      sync.RWMutex
	entries map[string][]PricingEntry // key: provider "/" model, sorted by EffectiveFrom asc
}

// pricingFile is the YAML shape of an operator-maintained pricing file.
type pricingFile struct {
	Version string `yaml:"version"`
	Entries []struct {
		Provider        string `yaml:"provider"`
		Model           string `yaml:"model"`
		PromptPer1K     string `yaml:"prompt_per_1k"`
		CompletionPer1K string `yaml:"completion_per_1k"`
		EffectiveFrom   string `yaml:"effective_from"`
	} `yaml:"entries"`
}

func pairKey(provider, model string) string {
	return strings.ToLower(provider) + "/" + model
}

// NewTable creates a pricing table seeded with the compiled-in defaults.
func NewTable() *Table {
	t := &Table{entries: make(map[string][]PricingEntry)}
	for _, e := range defaultEntries {
		t.append(e)
	}
	return t
}

// NewEmptyTable creates a pricing table with no entries. Used by tests
// that need full control over the history.
func NewEmptyTable() *Table {
	return &Table{entries: make(map[string][]PricingEntry)}
}

// LoadFile merges entries from an operator pricing file over the current
// table contents. Entries with the same provider/model/effective-from as
// an existing entry replace it.
func (t *Table) LoadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read pricing file: %w", err)
	}
	return t.loadYAML(data)
}

func (t *Table) loadYAML(data []byte) error {
	var file pricingFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return fmt.Errorf("failed to parse pricing file: %w", err)
	}
	if file.Version == "" {
		return fmt.Errorf("%w: pricing file missing version", ErrInvalidEntry)
	}

	for i, raw := range file.Entries {
		if raw.Provider == "" || raw.Model == "" {
			return fmt.Errorf("%w: entry %d missing provider or model", ErrInvalidEntry, i)
		}
		prompt, err := ParseAmount(raw.PromptPer1K)
		if err != nil {
			return fmt.Errorf("%w: entry %d prompt_per_1k: %v", ErrInvalidEntry, i, err)
		}
		completion, err := ParseAmount(raw.CompletionPer1K)
		if err != nil {
			return fmt.Errorf("%w: entry %d completion_per_1k: %v", ErrInvalidEntry, i, err)
		}
		effective, err := time.Parse("2006-01-02", raw.EffectiveFrom)
		if err != nil {
			return fmt.Errorf("%w: entry %d effective_from: %v", ErrInvalidEntry, i, err)
		}

		t.Add(PricingEntry{
			Provider:        strings.ToLower(raw.Provider),
			Model:           raw.Model,
			PromptPer1K:     prompt,
			CompletionPer1K: completion,
			EffectiveFrom:   effective,
			Version:         file.Version,
		})
	}
	return nil
}

// Add inserts an entry, replacing any existing entry for the same
// provider/model/effective-from.
func (t *Table) Add(e PricingEntry) {
	t.mu.Lock()
	defer t.mu.Unlock()

	key := pairKey(e.Provider, e.Model)
	history := t.entries[key]
	for i, existing := range history {
		if existing.EffectiveFrom.Equal(e.EffectiveFrom) {
			history[i] = e
			t.entries[key] = history
			return
		}
	}
	t.entries[key] = append(history, e)
	sort.Slice(t.entries[key], func(i, j int) bool {
		return t.entries[key][i].EffectiveFrom.Before(t.entries[key][j].EffectiveFrom)
	})
}

// append is Add without locking, for construction time.
func (t *Table) append(e PricingEntry) {
	key := pairKey(e.Provider, e.Model)
	t.entries[key] = append(t.entries[key], e)
	sort.Slice(t.entries[key], func(i, j int) bool {
		return t.entries[key][i].EffectiveFrom.Before(t.entries[key][j].EffectiveFrom)
	})
}

// PriceFor returns the entry with the latest effective-from date not
// after at. Returns ErrPricingUnavailable when the pair has no entry in
// effect — the caller must fail the request rather than assume free.
func (t *Table) PriceFor(provider, model string, at time.Time) (PricingEntry, error) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	history := t.entries[pairKey(provider, model)]
	for i := len(history) - 1; i >= 0; i-- {
		if !history[i].EffectiveFrom.After(at) {
			return history[i], nil
		}
	}
	return PricingEntry{}, fmt.Errorf("%w: %s/%s at %s",
		ErrPricingUnavailable, provider, model, at.UTC().Format(time.RFC3339))
}

// Providers returns the distinct provider identifiers present in the table.
func (t *Table) Providers() []string {
	t.mu.RLock()
	defer t.mu.RUnlock()

	seen := make(map[string]bool)
	for key := range t.entries {
		provider := strings.SplitN(key, "/", 2)[0]
		seen[provider] = true
	}
	providers := make([]string, 0, len(seen))
	for p := range seen {
		providers = append(providers, p)
	}
	sort.Strings(providers)
	return providers
}

// builtinEffective is the effective date of the compiled-in defaults.
var builtinEffective = time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)

const builtinVersion = "builtin-2025.01"

func builtin(provider, model, promptPer1K, completionPer1K string) PricingEntry {
	return PricingEntry{
		Provider:        provider,
		Model:           model,
		PromptPer1K:     MustAmount(promptPer1K),
		CompletionPer1K: MustAmount(completionPer1K),
		EffectiveFrom:   builtinEffective,
		Version:         builtinVersion,
	}
}

// defaultEntries covers the models the engine routes to out of the box.
// Per-1K-token USD prices as of January 2025.
var defaultEntries = []PricingEntry{
	// Anthropic
	builtin("anthropic", "claude-opus-4-20250514", "0.015", "0.075"),
	builtin("anthropic", "claude-sonnet-4-20250514", "0.003", "0.015"),
	builtin("anthropic", "claude-3-5-sonnet-20241022", "0.003", "0.015"),
	builtin("anthropic", "claude-3-5-haiku-20241022", "0.0008", "0.004"),
	// OpenAI
	builtin("openai", "gpt-4o", "0.0025", "0.01"),
	builtin("openai", "gpt-4o-mini", "0.00015", "0.0006"),
	builtin("openai", "gpt-4-turbo", "0.01", "0.03"),
	// Google
	builtin("gemini", "gemini-2.0-flash", "0.0001", "0.0004"),
	builtin("gemini", "gemini-1.5-pro", "0.00125", "0.005"),
	builtin("gemini", "gemini-1.5-flash", "0.000075", "0.0003"),
	// AWS Bedrock
	builtin("bedrock", "anthropic.claude-3-5-sonnet-20241022-v2:0", "0.003", "0.015"),
	builtin("bedrock", "anthropic.claude-3-haiku-20240307-v1:0", "0.00025", "0.00125"),
	builtin("bedrock", "amazon.titan-text-express-v1", "0.0002", "0.0006"),
}
