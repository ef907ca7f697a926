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

package provider

import (
	"context"
	"math/rand"
	"time"
)

// Backoff computes jittered exponential wait times between retry
// attempts against the same provider.
type Backoff struct {
	// Initial is the wait before the first retry.
	Initial time.Duration

	// Max caps the wait regardless of attempt number.
	Max time.Duration

	// Factor is the multiplier applied per attempt.
	Factor float64

	// Jitter adds randomness to avoid thundering herd (0.0-1.0).
	Jitter float64
}

// DefaultBackoff returns the retry schedule the orchestrator uses
// between attempts: 500ms, 1s, 2s, ... capped at 8s, with 10% jitter.
func DefaultBackoff() Backoff {
	return Backoff{
		Initial: 500 * time.Millisecond,
		Max:     8 * time.Second,
		Factor:  2.0,
		Jitter:  0.1,
	}
}

// Delay returns the wait before retry number attempt (0-based).
func (b Backoff) Delay(attempt int) time.Duration {
	d := float64(b.Initial)
	for i := 0; i < attempt; i++ {
		d *= b.Factor
		if d >= float64(b.Max) {
			d = float64(b.Max)
			break
		}
	}
	if d > float64(b.Max) {
		d = float64(b.Max)
	}

	if b.Jitter > 0 {
		delta := d * b.Jitter
		d = d - delta + rand.Float64()*2*delta
	}
	return time.Duration(d)
}

// Wait sleeps for the attempt's delay, returning early with ctx.Err()
// when the context is cancelled.
func (b Backoff) Wait(ctx context.Context, attempt int) error {
	timer := time.NewTimer(b.Delay(attempt))
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
