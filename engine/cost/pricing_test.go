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
	"errors"
	"testing"
	"time"
)

func TestNewTableHasDefaults(t *testing.T) {
	table := NewTable()

	if len(table.Providers()) == 0 {
		t.Fatal("expected default providers to be populated")
	}

	_, err := table.PriceFor("anthropic", "claude-sonnet-4-20250514", time.Now())
	if err != nil {
		t.Fatalf("expected default anthropic pricing, got %v", err)
	}
}

func TestPriceForSelectsEffectiveEntry(t *testing.T) {
	table := NewEmptyTable()

	jan := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	jun := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)

	table.Add(PricingEntry{
		Provider: "anthropic", Model: "claude-sonnet-4-20250514",
		PromptPer1K: 3000, CompletionPer1K: 15000,
		EffectiveFrom: jan, Version: "v1",
	})
	table.Add(PricingEntry{
		Provider: "anthropic", Model: "claude-sonnet-4-20250514",
		PromptPer1K: 2000, CompletionPer1K: 10000,
		EffectiveFrom: jun, Version: "v2",
	})

	tests := []struct {
		name        string
		at          time.Time
		wantVersion string
		wantPrompt  Amount
		wantErr     bool
	}{
		{"before any entry", jan.AddDate(0, -1, 0), "", 0, true},
		{"first entry in effect", jan.AddDate(0, 2, 0), "v1", 3000, false},
		{"exactly at second entry", jun, "v2", 2000, false},
		{"after second entry", jun.AddDate(0, 3, 0), "v2", 2000, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			entry, err := table.PriceFor("anthropic", "claude-sonnet-4-20250514", tt.at)
			if tt.wantErr {
				if !errors.Is(err, ErrPricingUnavailable) {
					t.Fatalf("expected ErrPricingUnavailable, got %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("PriceFor error: %v", err)
			}
			if entry.Version != tt.wantVersion {
				t.Errorf("Version = %q, want %q", entry.Version, tt.wantVersion)
			}
			if entry.PromptPer1K != tt.wantPrompt {
				t.Errorf("PromptPer1K = %d, want %d", entry.PromptPer1K, tt.wantPrompt)
			}
		})
	}
}

func TestPriceForUnknownPair(t *testing.T) {
	table := NewTable()

	_, err := table.PriceFor("anthropic", "claude-nonexistent", time.Now())
	if !errors.Is(err, ErrPricingUnavailable) {
		t.Fatalf("expected ErrPricingUnavailable, got %v", err)
	}
}

func TestLoadYAMLMergesOverDefaults(t *testing.T) {
	table := NewTable()

	data := []byte(`
version: "ops-2025.07"
entries:
  - provider: anthropic
    model: claude-sonnet-4-20250514
    prompt_per_1k: "0.004"
    completion_per_1k: "0.020"
    effective_from: "2025-07-01"
  - provider: internal
    model: test-model
    prompt_per_1k: "0.01"
    completion_per_1k: "0.02"
    effective_from: "2025-01-01"
`)
	if err := table.loadYAML(data); err != nil {
		t.Fatalf("loadYAML error: %v", err)
	}

	// Before the operator entry takes effect, the builtin applies.
	entry, err := table.PriceFor("anthropic", "claude-sonnet-4-20250514",
		time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC))
	if err != nil {
		t.Fatalf("PriceFor error: %v", err)
	}
	if entry.Version != builtinVersion {
		t.Errorf("Version = %q, want builtin", entry.Version)
	}

	// After, the operator entry wins.
	entry, err = table.PriceFor("anthropic", "claude-sonnet-4-20250514",
		time.Date(2025, 8, 1, 0, 0, 0, 0, time.UTC))
	if err != nil {
		t.Fatalf("PriceFor error: %v", err)
	}
	if entry.Version != "ops-2025.07" {
		t.Errorf("Version = %q, want ops-2025.07", entry.Version)
	}
	if entry.PromptPer1K != 4000 {
		t.Errorf("PromptPer1K = %d, want 4000", entry.PromptPer1K)
	}

	// New providers can be introduced by the file.
	if _, err := table.PriceFor("internal", "test-model", time.Now()); err != nil {
		t.Errorf("expected internal/test-model pricing, got %v", err)
	}
}

func TestLoadYAMLRejectsBadEntries(t *testing.T) {
	tests := []struct {
		name string
		data string
	}{
		{"missing version", `entries: []`},
		{"missing model", `{version: v1, entries: [{provider: a, prompt_per_1k: "0.1", completion_per_1k: "0.1", effective_from: "2025-01-01"}]}`},
		{"bad amount", `{version: v1, entries: [{provider: a, model: m, prompt_per_1k: "x", completion_per_1k: "0.1", effective_from: "2025-01-01"}]}`},
		{"bad date", `{version: v1, entries: [{provider: a, model: m, prompt_per_1k: "0.1", completion_per_1k: "0.1", effective_from: "July"}]}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			table := NewEmptyTable()
			if err := table.loadYAML([]byte(tt.data)); err == nil {
				t.Fatal("expected error")
			}
		})
	}
}

func TestCalculatorCost(t *testing.T) {
	table := NewEmptyTable()
	table.Add(PricingEntry{
		Provider: "providera", Model: "model-x",
		PromptPer1K:     MustAmount("0.01"), // $0.01 per 1K prompt tokens
		CompletionPer1K: MustAmount("0.02"), // $0.02 per 1K completion tokens
		EffectiveFrom:   time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC),
		Version:         "v1",
	})
	calc := NewCalculator(table)

	// 100 prompt + 50 completion tokens:
	// 100/1000*$0.01 + 50/1000*$0.02 = $0.001 + $0.001 = $0.002
	quote, err := calc.Cost("providera", "model-x", 100, 50, time.Date(2025, 2, 1, 0, 0, 0, 0, time.UTC))
	if err != nil {
		t.Fatalf("Cost error: %v", err)
	}
	if quote.Amount != 2000 {
		t.Errorf("Amount = %d micro-USD, want 2000", quote.Amount)
	}
	if quote.Currency != "USD" {
		t.Errorf("Currency = %q, want USD", quote.Currency)
	}
	if quote.PricingVersion != "v1" {
		t.Errorf("PricingVersion = %q, want v1", quote.PricingVersion)
	}
}

func TestCalculatorCostDeterministic(t *testing.T) {
	calc := NewCalculator(NewTable())
	at := time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)

	first, err := calc.Cost("anthropic", "claude-sonnet-4-20250514", 1234, 567, at)
	if err != nil {
		t.Fatalf("Cost error: %v", err)
	}
	for i := 0; i < 100; i++ {
		again, err := calc.Cost("anthropic", "claude-sonnet-4-20250514", 1234, 567, at)
		if err != nil {
			t.Fatalf("Cost error: %v", err)
		}
		if again != first {
			t.Fatalf("quote differs between runs: %+v vs %+v", again, first)
		}
	}
}

func TestCalculatorPropagatesPricingUnavailable(t *testing.T) {
	calc := NewCalculator(NewEmptyTable())

	_, err := calc.Cost("nobody", "nothing", 10, 10, time.Now())
	if !errors.Is(err, ErrPricingUnavailable) {
		t.Fatalf("expected ErrPricingUnavailable, got %v", err)
	}
}
