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

import "github.com/prometheus/client_golang/prometheus"

// Prometheus metrics
var (
	promGenerationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "slidesmith_engine_generations_total",
			Help: "Total number of generation requests by terminal outcome",
		},
		[]string{"outcome"},
	)
	promGenerationDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "slidesmith_engine_generation_duration_milliseconds",
			Help:    "End-to-end generation duration in milliseconds",
			Buckets: []float64{50, 100, 250, 500, 1000, 2500, 5000, 10000, 30000, 60000},
		},
		[]string{"provider"},
	)
	promProviderCalls = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "slidesmith_engine_provider_calls_total",
			Help: "Total number of provider API attempts",
		},
		[]string{"provider", "status"},
	)
	promCostMicroUSD = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "slidesmith_engine_cost_micro_usd_total",
			Help: "Accumulated generation cost in micro-USD",
		},
		[]string{"provider", "model"},
	)
	promTokensTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "slidesmith_engine_tokens_total",
			Help: "Total tokens consumed",
		},
		[]string{"provider", "direction"},
	)
)

func init() {
	// Register Prometheus metrics
	prometheus.MustRegister(promGenerationsTotal)
	prometheus.MustRegister(promGenerationDuration)
	prometheus.MustRegister(promProviderCalls)
	prometheus.MustRegister(promCostMicroUSD)
	prometheus.MustRegister(promTokensTotal)
}
