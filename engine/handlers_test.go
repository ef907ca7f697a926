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
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"slidesmith/platform/engine/credential"
	"slidesmith/platform/engine/provider"
	"slidesmith/platform/engine/stats"
)

func newTestServer(t *testing.T, providers ...provider.Provider) (*httptest.Server, *testHarness) {
	t.Helper()

	h := newHarness(t, providers...)
	server := NewServer(h.orch, h.repo, h.creds)

	r := mux.NewRouter()
	server.Routes(r)

	ts := httptest.NewServer(r)
	t.Cleanup(ts.Close)
	return ts, h
}

func postJSON(t *testing.T, url string, payload interface{}) *http.Response {
	t.Helper()

	body, err := json.Marshal(payload)
	require.NoError(t, err)

	resp, err := http.Post(url, "application/json", bytes.NewReader(body))
	require.NoError(t, err)
	return resp
}

func decodeBody(t *testing.T, resp *http.Response, target interface{}) {
	t.Helper()
	defer resp.Body.Close()
	require.NoError(t, json.NewDecoder(resp.Body).Decode(target))
}

func TestGenerateEndpoint(t *testing.T) {
	ts, h := newTestServer(t, &scriptedProvider{name: "alpha"})
	h.credential(t, "alpha")

	resp := postJSON(t, ts.URL+"/api/v1/generate", GenerationRequest{
		ID:     "req-1",
		Prompt: "Write the intro slide",
	})

	require.Equal(t, http.StatusOK, resp.StatusCode)

	var result GenerationResult
	decodeBody(t, resp, &result)
	assert.Equal(t, OutcomeSucceeded, result.Outcome)
	assert.Equal(t, "req-1", result.RequestID)
	assert.Equal(t, int64(2000), int64(result.Cost.Amount))
}

func TestGenerateEndpointValidation(t *testing.T) {
	ts, _ := newTestServer(t, &scriptedProvider{name: "alpha"})

	resp := postJSON(t, ts.URL+"/api/v1/generate", GenerationRequest{ID: "req-1"})
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)

	var errResp errorResponse
	decodeBody(t, resp, &errResp)
	assert.Equal(t, "invalid_request", errResp.Code)
}

func TestGenerateEndpointNoProviders(t *testing.T) {
	ts, _ := newTestServer(t, &scriptedProvider{name: "alpha"})

	resp := postJSON(t, ts.URL+"/api/v1/generate", GenerationRequest{
		ID:     "req-1",
		Prompt: "Write a slide",
	})
	require.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
}

func TestResultEndpoint(t *testing.T) {
	ts, h := newTestServer(t, &scriptedProvider{name: "alpha"})
	h.credential(t, "alpha")

	resp := postJSON(t, ts.URL+"/api/v1/generate", GenerationRequest{
		ID:     "req-1",
		Prompt: "Write a slide",
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	resp.Body.Close()

	getResp, err := http.Get(ts.URL + "/api/v1/generate/req-1")
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, getResp.StatusCode)

	var stored stats.Result
	decodeBody(t, getResp, &stored)
	assert.Equal(t, "succeeded", stored.Outcome)

	missing, err := http.Get(ts.URL + "/api/v1/generate/unknown")
	require.NoError(t, err)
	missing.Body.Close()
	assert.Equal(t, http.StatusNotFound, missing.StatusCode)
}

func TestCancelEndpointUnknown(t *testing.T) {
	ts, _ := newTestServer(t, &scriptedProvider{name: "alpha"})

	resp, err := http.Post(ts.URL+"/api/v1/generate/unknown/cancel", "application/json", nil)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestStatsEndpoint(t *testing.T) {
	ts, h := newTestServer(t, &scriptedProvider{name: "alpha"})
	h.credential(t, "alpha")

	for _, id := range []string{"req-1", "req-2"} {
		resp := postJSON(t, ts.URL+"/api/v1/generate", GenerationRequest{
			ID:     id,
			Prompt: "Write a slide",
		})
		require.Equal(t, http.StatusOK, resp.StatusCode)
		resp.Body.Close()
	}

	resp, err := http.Get(ts.URL + "/api/v1/stats")
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var summary stats.Summary
	decodeBody(t, resp, &summary)
	assert.Equal(t, int64(2), summary.Count)
	assert.Equal(t, int64(4000), summary.CostMicroUSD)
	assert.Equal(t, int64(2), summary.ByOutcome["succeeded"])

	badFrom, err := http.Get(ts.URL + "/api/v1/stats?from=yesterday")
	require.NoError(t, err)
	badFrom.Body.Close()
	assert.Equal(t, http.StatusBadRequest, badFrom.StatusCode)
}

func TestRecentEndpoint(t *testing.T) {
	ts, h := newTestServer(t, &scriptedProvider{name: "alpha"})
	h.credential(t, "alpha")

	resp := postJSON(t, ts.URL+"/api/v1/generate", GenerationRequest{
		ID:     "req-1",
		Prompt: "Write a slide",
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	resp.Body.Close()

	recent, err := http.Get(ts.URL + "/api/v1/stats/recent?limit=5")
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, recent.StatusCode)

	var results []stats.Result
	decodeBody(t, recent, &results)
	require.Len(t, results, 1)
	assert.Equal(t, "req-1", results[0].RequestID)

	badLimit, err := http.Get(ts.URL + "/api/v1/stats/recent?limit=0")
	require.NoError(t, err)
	badLimit.Body.Close()
	assert.Equal(t, http.StatusBadRequest, badLimit.StatusCode)
}

func TestCredentialEndpoints(t *testing.T) {
	ts, _ := newTestServer(t, &scriptedProvider{name: "alpha"})

	// Store.
	req, err := http.NewRequest(http.MethodPut, ts.URL+"/api/v1/credentials/anthropic",
		bytes.NewBufferString(`{"secret":"sk-ant-test"}`))
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	// List never exposes secrets.
	listResp, err := http.Get(ts.URL + "/api/v1/credentials")
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, listResp.StatusCode)

	var infos []credential.Info
	decodeBody(t, listResp, &infos)
	require.Len(t, infos, 1)
	assert.Equal(t, "anthropic", infos[0].Provider)

	raw, err := json.Marshal(infos)
	require.NoError(t, err)
	assert.NotContains(t, string(raw), "sk-ant-test")

	// Rotate existing.
	rotateResp := postJSON(t, ts.URL+"/api/v1/credentials/anthropic/rotate",
		credentialRequest{Secret: "sk-ant-new"})
	rotateResp.Body.Close()
	assert.Equal(t, http.StatusOK, rotateResp.StatusCode)

	// Rotate missing.
	missingResp := postJSON(t, ts.URL+"/api/v1/credentials/openai/rotate",
		credentialRequest{Secret: "sk-new"})
	missingResp.Body.Close()
	assert.Equal(t, http.StatusNotFound, missingResp.StatusCode)
}

func TestHealthEndpoint(t *testing.T) {
	ts, _ := newTestServer(t, &scriptedProvider{name: "alpha"})

	resp, err := http.Get(ts.URL + "/health")
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var body map[string]string
	decodeBody(t, resp, &body)
	assert.Equal(t, "healthy", body["status"])
}

// Guard against the context plumbing regressing: a client that
// disconnects mid-request must not leave the request tracked.
func TestGenerateUntracksOnCompletion(t *testing.T) {
	_, h := newTestServer(t, &scriptedProvider{name: "alpha"})
	h.credential(t, "alpha")

	_, err := h.orch.Generate(context.Background(), GenerationRequest{
		ID:     "req-done",
		Prompt: "Write a slide",
	})
	require.NoError(t, err)

	require.ErrorIs(t, h.orch.Cancel("req-done"), ErrUnknownRequest)
}
