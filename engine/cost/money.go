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

// Package cost provides the versioned pricing table and the fixed-point
// cost calculator for generation accounting. All monetary arithmetic is
// integer-only so repeated aggregation never drifts.
package cost

import (
	"fmt"
	"strconv"
	"strings"
)

// Amount is a monetary value in micro-USD (1e-6 dollars). Using an
// integer minor unit keeps cost computation reproducible byte-for-byte.
type Amount int64

// MicroPerDollar is the number of Amount units in one dollar.
const MicroPerDollar = 1_000_000

// Currency is the only currency the engine accounts in.
const Currency = "USD"

// ParseAmount parses a decimal dollar string ("0.003", "15", "0.000075")
// into an Amount. At most six fractional digits are supported; more
// precision than a micro-dollar would be unrepresentable.
func ParseAmount(s string) (Amount, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, fmt.Errorf("empty amount")
	}

	neg := false
	if strings.HasPrefix(s, "-") {
		neg = true
		s = s[1:]
	}

	whole, frac := s, ""
	if i := strings.IndexByte(s, '.'); i >= 0 {
		whole, frac = s[:i], s[i+1:]
	}
	if whole == "" {
		whole = "0"
	}
	if len(frac) > 6 {
		return 0, fmt.Errorf("amount %q has more than 6 fractional digits", s)
	}
	// Right-pad the fraction to micro-dollar precision.
	frac += strings.Repeat("0", 6-len(frac))

	w, err := strconv.ParseInt(whole, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid amount %q: %w", s, err)
	}
	var f int64
	if frac != "000000" {
		f, err = strconv.ParseInt(frac, 10, 64)
		if err != nil {
			return 0, fmt.Errorf("invalid amount %q: %w", s, err)
		}
	}

	a := Amount(w*MicroPerDollar + f)
	if neg {
		a = -a
	}
	return a, nil
}

// MustAmount parses a decimal dollar string, panicking on error. It is
// intended for compiled-in pricing defaults.
func MustAmount(s string) Amount {
	a, err := ParseAmount(s)
	if err != nil {
		panic(err)
	}
	return a
}

// String renders the amount as a decimal dollar string, e.g. "0.002000".
func (a Amount) String() string {
	neg := a < 0
	if neg {
		a = -a
	}
	s := fmt.Sprintf("%d.%06d", int64(a)/MicroPerDollar, int64(a)%MicroPerDollar)
	if neg {
		return "-" + s
	}
	return s
}

// MicroUSD returns the raw integer micro-dollar value.
func (a Amount) MicroUSD() int64 {
	return int64(a)
}

// perTokens scales a per-1000-token price to a token count, rounding
// half up. Integer throughout.
func perTokens(per1K Amount, tokens int) Amount {
	if tokens <= 0 || per1K <= 0 {
		return 0
	}
	return Amount((int64(per1K)*int64(tokens) + 500) / 1000)
}
