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
	"log"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/cors"

	"slidesmith/platform/engine/cost"
	"slidesmith/platform/engine/credential"
	"slidesmith/platform/engine/provider"
	"slidesmith/platform/engine/provider/anthropic"
	"slidesmith/platform/engine/provider/bedrock"
	"slidesmith/platform/engine/provider/gemini"
	"slidesmith/platform/engine/provider/openai"
	"slidesmith/platform/engine/stats"
	"slidesmith/platform/engine/storage"
)

// Routes registers the engine's endpoints on a router.
func (s *Server) Routes(r *mux.Router) {
	r.HandleFunc("/health", s.healthHandler).Methods("GET")
	r.Handle("/metrics", promhttp.Handler()).Methods("GET")

	r.HandleFunc("/api/v1/generate", s.generateHandler).Methods("POST")
	r.HandleFunc("/api/v1/generate/{id}/cancel", s.cancelHandler).Methods("POST")
	r.HandleFunc("/api/v1/generate/{id}", s.resultHandler).Methods("GET")

	r.HandleFunc("/api/v1/stats", s.statsHandler).Methods("GET")
	r.HandleFunc("/api/v1/stats/recent", s.recentHandler).Methods("GET")

	r.HandleFunc("/api/v1/credentials", s.listCredentialsHandler).Methods("GET")
	r.HandleFunc("/api/v1/credentials/{provider}", s.setCredentialHandler).Methods("PUT")
	r.HandleFunc("/api/v1/credentials/{provider}/rotate", s.rotateCredentialHandler).Methods("POST")
}

// buildRegistry registers adapters in the configured failover order.
func buildRegistry(ctx context.Context, cfg *Config) (*provider.Registry, error) {
	registry := provider.NewRegistry()

	for _, name := range cfg.ProviderOrder {
		switch name {
		case "anthropic":
			if err := registry.Register(anthropic.NewProvider(anthropic.Config{Timeout: cfg.ProviderTimeout})); err != nil {
				return nil, err
			}
		case "openai":
			if err := registry.Register(openai.NewProvider(openai.Config{Timeout: cfg.ProviderTimeout})); err != nil {
				return nil, err
			}
		case "gemini":
			if err := registry.Register(gemini.NewProvider(gemini.Config{Timeout: cfg.ProviderTimeout})); err != nil {
				return nil, err
			}
		case "bedrock":
			if !cfg.EnableBedrock {
				log.Printf("bedrock listed in provider order but disabled; skipping")
				continue
			}
			p, err := bedrock.NewProvider(ctx, bedrock.Config{Region: cfg.BedrockRegion, Timeout: cfg.ProviderTimeout})
			if err != nil {
				return nil, err
			}
			if err := registry.Register(p); err != nil {
				return nil, err
			}
		default:
			log.Printf("unknown provider %q in provider order; skipping", name)
		}
	}
	return registry, nil
}

// Run is the exported entry point for the engine service.
//
// It opens the database, wires the credential store, pricing table,
// provider adapters, and orchestrator, sets up HTTP routes, and starts
// the server. The function blocks until the server is shut down.
//
// Environment variables used:
//   - PORT: HTTP server port (default: 8090)
//   - ENGINE_DB_PATH: embedded database file (default: slidesmith.db)
//   - ENGINE_ENCRYPTION_KEY: credential encryption passphrase (required)
//   - ENGINE_PROVIDER_ORDER: failover chain (default: anthropic,openai,gemini)
//   - ENGINE_PRICING_FILE: operator pricing file (optional)
//   - ENGINE_MAX_ATTEMPTS: retry budget per provider (default: 3)
//   - ENGINE_ENABLE_BEDROCK: register the Bedrock adapter (default: false)
func Run() {
	log.Println("Starting Slidesmith generation engine...")

	cfg, err := LoadConfig()
	if err != nil {
		log.Fatalf("configuration error: %v", err)
	}

	store, err := storage.Open(cfg.DBPath)
	if err != nil {
		log.Fatalf("failed to open database: %v", err)
	}
	defer store.Close()

	credentials, err := credential.NewStore(store.DB(), cfg.EncryptionKey)
	if err != nil {
		log.Fatalf("failed to init credential store: %v", err)
	}

	table := cost.NewTable()
	if cfg.PricingFile != "" {
		if err := table.LoadFile(cfg.PricingFile); err != nil {
			log.Fatalf("failed to load pricing file: %v", err)
		}
		log.Printf("merged pricing file %s", cfg.PricingFile)
	}

	ctx := context.Background()
	registry, err := buildRegistry(ctx, cfg)
	if err != nil {
		log.Fatalf("failed to build provider registry: %v", err)
	}

	repository := stats.NewRepository(store.DB())

	orchestrator := NewOrchestrator(OrchestratorOptions{
		Registry:               registry,
		Credentials:            credentials,
		Calculator:             cost.NewCalculator(table),
		Repository:             repository,
		MaxAttemptsPerProvider: cfg.MaxAttemptsPerProvider,
	})

	server := NewServer(orchestrator, repository, credentials)

	r := mux.NewRouter()
	server.Routes(r)

	// CORS middleware
	c := cors.New(cors.Options{
		AllowedOrigins:   []string{"*"}, // Configure for production
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"*"},
		AllowCredentials: true,
	})

	handler := c.Handler(r)
	log.Printf("Slidesmith engine listening on port %s", cfg.Port)
	log.Fatal(http.ListenAndServe(":"+cfg.Port, handler))
}
