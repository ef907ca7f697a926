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

// Package main is the entry point for the Slidesmith generation engine.
//
// The engine is the service behind the slide-deck generator that:
// - Routes generation requests across LLM providers (Anthropic, OpenAI, Gemini, Bedrock)
// - Retries transient failures and falls back between providers
// - Prices every completion against a versioned pricing table
// - Records each request's terminal outcome for usage and cost reporting
// - Stores provider credentials encrypted at rest
//
// Usage:
//
//	./engine
//
// Environment Variables:
//
//	PORT - HTTP server port (default: 8090)
//	ENGINE_DB_PATH - embedded database file (default: slidesmith.db)
//	ENGINE_ENCRYPTION_KEY - credential encryption passphrase (required)
//	ENGINE_PROVIDER_ORDER - failover chain (default: anthropic,openai,gemini)
//	ENGINE_PRICING_FILE - operator pricing file (optional)
package main

import (
	"slidesmith/platform/engine"
)

func main() {
	engine.Run()
}
