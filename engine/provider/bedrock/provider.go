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

// Package bedrock adapts AWS Bedrock's InvokeModel API to the engine's
// provider contract. Authentication uses AWS Signature V4 via the SDK
// credential chain rather than a stored API key, so requests work with
// IAM roles out of the box.
package bedrock

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	"github.com/aws/smithy-go"

	"slidesmith/platform/engine/provider"
)

const (
	// DefaultRegion is used when no region is configured
	DefaultRegion = "us-east-1"

	// DefaultMaxTokens is the default max tokens for completions
	DefaultMaxTokens = 4096

	// DefaultTimeout caps a single InvokeModel call
	DefaultTimeout = 120 * time.Second

	// DefaultModel is used when a request does not name a model
	DefaultModel = "anthropic.claude-3-5-sonnet-20241022-v2:0"
)

// InvokeClient is the subset of the Bedrock runtime client the adapter
// uses (enables testing).
type InvokeClient interface {
	InvokeModel(ctx context.Context, params *bedrockruntime.InvokeModelInput, optFns ...func(*bedrockruntime.Options)) (*bedrockruntime.InvokeModelOutput, error)
}

// Provider implements the adapter contract for AWS Bedrock.
type Provider struct {
	client  InvokeClient
	region  string
	model   string
	timeout time.Duration
}

// Config contains configuration for the Bedrock adapter.
type Config struct {
	Region  string        // Optional: AWS region (default: us-east-1)
	Model   string        // Optional: default model
	Timeout time.Duration // Optional: per-call timeout (default: 120s)
	Client  InvokeClient  // Optional: custom client for testing
}

// NewProvider creates a new Bedrock adapter. When no client is given
// the AWS SDK default credential chain is used.
func NewProvider(ctx context.Context, cfg Config) (*Provider, error) {
	if cfg.Region == "" {
		cfg.Region = DefaultRegion
	}
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = DefaultTimeout
	}

	if cfg.Client == nil {
		awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(cfg.Region))
		if err != nil {
			return nil, fmt.Errorf("failed to load AWS config: %w", err)
		}
		cfg.Client = bedrockruntime.NewFromConfig(awsCfg)
	}

	return &Provider{
		client:  cfg.Client,
		region:  cfg.Region,
		model:   cfg.Model,
		timeout: cfg.Timeout,
	}, nil
}

// Name returns the provider name
func (p *Provider) Name() string {
	return "bedrock"
}

// Generate performs one completion call via InvokeModel. The request
// body shape depends on the model family.
func (p *Provider) Generate(ctx context.Context, req provider.GenerateRequest) (*provider.Completion, error) {
	start := time.Now()

	model := req.Model
	if model == "" {
		model = p.model
	}

	maxTokens := req.MaxTokens
	if maxTokens <= 0 {
		maxTokens = DefaultMaxTokens
	}

	requestBody, err := buildRequestBody(req, model, maxTokens)
	if err != nil {
		return nil, &provider.Error{
			Provider: p.Name(),
			Code:     provider.CodeInvalidRequest,
			Message:  err.Error(),
		}
	}

	requestJSON, err := json.Marshal(requestBody)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	// The SDK's default HTTP client has no overall request timeout, so
	// the deadline is enforced here.
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	output, err := p.client.InvokeModel(ctx, &bedrockruntime.InvokeModelInput{
		ModelId:     aws.String(model),
		Body:        requestJSON,
		ContentType: aws.String("application/json"),
		Accept:      aws.String("application/json"),
	})
	if err != nil {
		return nil, p.classifyInvokeError(err)
	}

	text, promptTokens, completionTokens, err := parseResponseBody(output.Body, model)
	if err != nil {
		return nil, &provider.Error{
			Provider: p.Name(),
			Code:     provider.CodeTransient,
			Message:  "failed to parse response",
			Cause:    err,
		}
	}

	return &provider.Completion{
		Text:             text,
		Provider:         p.Name(),
		Model:            model,
		PromptTokens:     promptTokens,
		CompletionTokens: completionTokens,
		Latency:          time.Since(start),
	}, nil
}

// classifyInvokeError maps SDK errors into the error taxonomy using
// the smithy error code.
func (p *Provider) classifyInvokeError(err error) error {
	code := provider.CodeTransient

	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.ErrorCode() {
		case "AccessDeniedException", "UnrecognizedClientException", "ExpiredTokenException":
			code = provider.CodeAuth
		case "ThrottlingException", "TooManyRequestsException", "ServiceQuotaExceededException":
			code = provider.CodeRateLimited
		case "ValidationException", "ResourceNotFoundException":
			code = provider.CodeInvalidRequest
		case "ModelTimeoutException":
			code = provider.CodeTimeout
		case "ModelNotReadyException", "ServiceUnavailableException", "InternalServerException":
			code = provider.CodeTransient
		}
		return &provider.Error{
			Provider: p.Name(),
			Code:     code,
			Message:  apiErr.ErrorMessage(),
			Cause:    err,
		}
	}

	return provider.WrapTransport(p.Name(), err)
}

// modelFamily extracts the vendor prefix from a Bedrock model id,
// e.g. "anthropic.claude-3-haiku-..." -> "anthropic".
func modelFamily(model string) string {
	if i := strings.Index(model, "."); i > 0 {
		return model[:i]
	}
	return model
}

// buildRequestBody builds the request body based on model family.
func buildRequestBody(req provider.GenerateRequest, model string, maxTokens int) (map[string]interface{}, error) {
	temperature := req.Temperature
	if temperature < 0 {
		temperature = 0.7
	}

	switch modelFamily(model) {
	case "anthropic":
		body := map[string]interface{}{
			"anthropic_version": "bedrock-2023-05-31",
			"max_tokens":        maxTokens,
			"temperature":       temperature,
			"messages": []map[string]string{
				{"role": "user", "content": req.Prompt},
			},
		}
		if req.SystemPrompt != "" {
			body["system"] = req.SystemPrompt
		}
		return body, nil
	case "amazon":
		prompt := req.Prompt
		if req.SystemPrompt != "" {
			prompt = req.SystemPrompt + "\n\n" + prompt
		}
		return map[string]interface{}{
			"inputText": prompt,
			"textGenerationConfig": map[string]interface{}{
				"maxTokenCount": maxTokens,
				"temperature":   temperature,
				"topP":          0.9,
			},
		}, nil
	case "meta":
		prompt := req.Prompt
		if req.SystemPrompt != "" {
			prompt = req.SystemPrompt + "\n\n" + prompt
		}
		return map[string]interface{}{
			"prompt":      prompt,
			"max_gen_len": maxTokens,
			"temperature": temperature,
			"top_p":       0.9,
		}, nil
	default:
		return nil, fmt.Errorf("unsupported model family: %s", modelFamily(model))
	}
}

// parseResponseBody parses the response body based on model family.
func parseResponseBody(body []byte, model string) (text string, promptTokens, completionTokens int, err error) {
	switch modelFamily(model) {
	case "anthropic":
		var resp struct {
			Content []struct {
				Text string `json:"text"`
			} `json:"content"`
			Usage struct {
				InputTokens  int `json:"input_tokens"`
				OutputTokens int `json:"output_tokens"`
			} `json:"usage"`
		}
		if err := json.Unmarshal(body, &resp); err != nil {
			return "", 0, 0, err
		}
		var b strings.Builder
		for _, c := range resp.Content {
			b.WriteString(c.Text)
		}
		return b.String(), resp.Usage.InputTokens, resp.Usage.OutputTokens, nil

	case "amazon":
		var resp struct {
			Results []struct {
				OutputText string `json:"outputText"`
				TokenCount int    `json:"tokenCount"`
			} `json:"results"`
			InputTextTokenCount int `json:"inputTextTokenCount"`
		}
		if err := json.Unmarshal(body, &resp); err != nil {
			return "", 0, 0, err
		}
		if len(resp.Results) == 0 {
			return "", resp.InputTextTokenCount, 0, nil
		}
		return resp.Results[0].OutputText, resp.InputTextTokenCount, resp.Results[0].TokenCount, nil

	case "meta":
		var resp struct {
			Generation       string `json:"generation"`
			PromptTokenCount int    `json:"prompt_token_count"`
			GenTokenCount    int    `json:"generation_token_count"`
		}
		if err := json.Unmarshal(body, &resp); err != nil {
			return "", 0, 0, err
		}
		return resp.Generation, resp.PromptTokenCount, resp.GenTokenCount, nil

	default:
		return "", 0, 0, fmt.Errorf("unsupported model family: %s", modelFamily(model))
	}
}
