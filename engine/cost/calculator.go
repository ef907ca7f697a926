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

import "time"

// Quote is the computed monetary cost of one completion. It is derived
// from token counts and a pricing entry, and is only ever persisted as
// part of a generation result.
type Quote struct {
	Amount         Amount `json:"amount_micro_usd"`
	Currency       string `json:"currency"`
	PricingVersion string `json:"pricing_version"`
}

// Calculator computes quotes against a pricing table. Cost is a pure
// function of its inputs: identical tokens, pair, and table state yield
// an identical quote.
type Calculator struct {
	table *Table
}

// NewCalculator creates a calculator backed by the given table.
func NewCalculator(table *Table) *Calculator {
	return &Calculator{table: table}
}

// Cost computes the quote for a completion generated at the given time.
// The entry in effect at that moment is used, so pricing updates never
// retroactively change past accounting. Propagates ErrPricingUnavailable.
func (c *Calculator) Cost(provider, model string, promptTokens, completionTokens int, at time.Time) (Quote, error) {
	entry, err := c.table.PriceFor(provider, model, at)
	if err != nil {
		return Quote{}, err
	}

	amount := perTokens(entry.PromptPer1K, promptTokens) +
		perTokens(entry.CompletionPer1K, completionTokens)

	return Quote{
		Amount:         amount,
		Currency:       Currency,
		PricingVersion: entry.Version,
	}, nil
}
