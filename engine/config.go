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
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds the engine's runtime configuration, read from the
// environment.
type Config struct {
	// Port is the HTTP listen port.
	Port string

	// DBPath is the path of the embedded database file.
	DBPath string

	// EncryptionKey is the passphrase protecting stored credentials.
	// Required; the engine refuses to start without it.
	EncryptionKey string

	// ProviderOrder is the default failover chain.
	ProviderOrder []string

	// PricingFile optionally points at an operator pricing file merged
	// over the compiled-in table.
	PricingFile string

	// MaxAttemptsPerProvider is the retry budget per provider per
	// request.
	MaxAttemptsPerProvider int

	// ProviderTimeout caps a single provider API call.
	ProviderTimeout time.Duration

	// BedrockRegion is the AWS region for the Bedrock adapter.
	BedrockRegion string

	// EnableBedrock controls whether the Bedrock adapter is registered.
	// It is off by default since it needs AWS credentials to be useful.
	EnableBedrock bool
}

// LoadConfig reads configuration from the environment.
func LoadConfig() (*Config, error) {
	cfg := &Config{
		Port:                   getEnv("PORT", "8090"),
		DBPath:                 getEnv("ENGINE_DB_PATH", "slidesmith.db"),
		EncryptionKey:          os.Getenv("ENGINE_ENCRYPTION_KEY"),
		PricingFile:            os.Getenv("ENGINE_PRICING_FILE"),
		MaxAttemptsPerProvider: getEnvInt("ENGINE_MAX_ATTEMPTS", 3),
		ProviderTimeout:        time.Duration(getEnvInt("ENGINE_PROVIDER_TIMEOUT_SECONDS", 120)) * time.Second,
		BedrockRegion:          getEnv("AWS_REGION", "us-east-1"),
		EnableBedrock:          getEnvBool("ENGINE_ENABLE_BEDROCK", false),
	}

	order := getEnv("ENGINE_PROVIDER_ORDER", "anthropic,openai,gemini")
	for _, name := range strings.Split(order, ",") {
		name = strings.TrimSpace(strings.ToLower(name))
		if name != "" {
			cfg.ProviderOrder = append(cfg.ProviderOrder, name)
		}
	}

	if cfg.EncryptionKey == "" {
		return nil, fmt.Errorf("ENGINE_ENCRYPTION_KEY is required")
	}
	if len(cfg.ProviderOrder) == 0 {
		return nil, fmt.Errorf("ENGINE_PROVIDER_ORDER must name at least one provider")
	}
	if cfg.MaxAttemptsPerProvider < 1 {
		return nil, fmt.Errorf("ENGINE_MAX_ATTEMPTS must be at least 1")
	}
	if cfg.ProviderTimeout < time.Second {
		return nil, fmt.Errorf("ENGINE_PROVIDER_TIMEOUT_SECONDS must be at least 1")
	}

	return cfg, nil
}

func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		}
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.ParseBool(value); err == nil {
			return parsed
		}
	}
	return fallback
}
