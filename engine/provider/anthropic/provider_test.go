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

package anthropic

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"slidesmith/platform/engine/provider"
)

// MockHTTPClient is a mock implementation of provider.HTTPClient
type MockHTTPClient struct {
	mock.Mock
}

func (m *MockHTTPClient) Do(req *http.Request) (*http.Response, error) {
	args := m.Called(req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*http.Response), args.Error(1)
}

func jsonResponse(status int, body string) *http.Response {
	return &http.Response{
		StatusCode: status,
		Body:       io.NopCloser(bytes.NewBufferString(body)),
		Header:     http.Header{"Content-Type": []string{"application/json"}},
	}
}

const successBody = `{
	"id": "msg_01",
	"type": "message",
	"role": "assistant",
	"model": "claude-sonnet-4-20250514",
	"stop_reason": "end_turn",
	"content": [{"type": "text", "text": "Slide one: introduction."}],
	"usage": {"input_tokens": 120, "output_tokens": 48}
}`

func TestNewProviderDefaults(t *testing.T) {
	p := NewProvider(Config{})

	assert.Equal(t, "anthropic", p.Name())
	assert.Equal(t, DefaultBaseURL, p.baseURL)
	assert.Equal(t, DefaultAPIVersion, p.apiVersion)
	assert.Equal(t, DefaultModel, p.model)
}

func TestGenerateSuccess(t *testing.T) {
	client := new(MockHTTPClient)
	client.On("Do", mock.Anything).Return(jsonResponse(http.StatusOK, successBody), nil)

	p := NewProvider(Config{Client: client})
	completion, err := p.Generate(context.Background(), provider.GenerateRequest{
		Prompt:      "Write the opening slide",
		APIKey:      "sk-ant-test",
		Temperature: 0.7,
	})

	require.NoError(t, err)
	assert.Equal(t, "Slide one: introduction.", completion.Text)
	assert.Equal(t, "anthropic", completion.Provider)
	assert.Equal(t, "claude-sonnet-4-20250514", completion.Model)
	assert.Equal(t, 120, completion.PromptTokens)
	assert.Equal(t, 48, completion.CompletionTokens)
}

func TestGenerateSetsHeaders(t *testing.T) {
	client := new(MockHTTPClient)
	client.On("Do", mock.MatchedBy(func(req *http.Request) bool {
		return req.Header.Get("x-api-key") == "sk-ant-test" &&
			req.Header.Get("anthropic-version") == DefaultAPIVersion &&
			req.Header.Get("Content-Type") == "application/json"
	})).Return(jsonResponse(http.StatusOK, successBody), nil)

	p := NewProvider(Config{Client: client})
	_, err := p.Generate(context.Background(), provider.GenerateRequest{
		Prompt: "hello",
		APIKey: "sk-ant-test",
	})

	require.NoError(t, err)
	client.AssertExpectations(t)
}

func TestGenerateMissingAPIKey(t *testing.T) {
	p := NewProvider(Config{Client: new(MockHTTPClient)})

	_, err := p.Generate(context.Background(), provider.GenerateRequest{Prompt: "hello"})

	var pErr *provider.Error
	require.ErrorAs(t, err, &pErr)
	assert.Equal(t, provider.CodeAuth, pErr.Code)
}

func TestGenerateErrorClassification(t *testing.T) {
	tests := []struct {
		name     string
		status   int
		body     string
		wantCode provider.Code
	}{
		{
			name:     "authentication error",
			status:   http.StatusUnauthorized,
			body:     `{"type":"error","error":{"type":"authentication_error","message":"invalid x-api-key"}}`,
			wantCode: provider.CodeAuth,
		},
		{
			name:     "rate limited",
			status:   http.StatusTooManyRequests,
			body:     `{"type":"error","error":{"type":"rate_limit_error","message":"rate limit exceeded"}}`,
			wantCode: provider.CodeRateLimited,
		},
		{
			name:     "overloaded",
			status:   http.StatusServiceUnavailable,
			body:     `{"type":"error","error":{"type":"overloaded_error","message":"overloaded"}}`,
			wantCode: provider.CodeTransient,
		},
		{
			name:     "invalid request",
			status:   http.StatusBadRequest,
			body:     `{"type":"error","error":{"type":"invalid_request_error","message":"max_tokens required"}}`,
			wantCode: provider.CodeInvalidRequest,
		},
		{
			name:     "unparseable body falls back to status",
			status:   http.StatusInternalServerError,
			body:     `upstream blew up`,
			wantCode: provider.CodeTransient,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := new(MockHTTPClient)
			client.On("Do", mock.Anything).Return(jsonResponse(tt.status, tt.body), nil)

			p := NewProvider(Config{Client: client})
			_, err := p.Generate(context.Background(), provider.GenerateRequest{
				Prompt: "hello",
				APIKey: "sk-ant-test",
			})

			var pErr *provider.Error
			require.ErrorAs(t, err, &pErr)
			assert.Equal(t, tt.wantCode, pErr.Code)
			assert.Equal(t, tt.status, pErr.StatusCode)
		})
	}
}

func TestGenerateTransportFailure(t *testing.T) {
	client := new(MockHTTPClient)
	client.On("Do", mock.Anything).Return(nil, errors.New("connection refused"))

	p := NewProvider(Config{Client: client})
	_, err := p.Generate(context.Background(), provider.GenerateRequest{
		Prompt: "hello",
		APIKey: "sk-ant-test",
	})

	var pErr *provider.Error
	require.ErrorAs(t, err, &pErr)
	assert.Equal(t, provider.CodeTransient, pErr.Code)
}
