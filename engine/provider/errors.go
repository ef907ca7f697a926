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
	"errors"
	"fmt"
	"net"
	"net/http"
)

// Code classifies a provider failure into the engine's error taxonomy.
// The orchestrator decides retry-vs-abandon from the code alone.
type Code string

const (
	// CodeAuth means the credential was rejected. Never retried.
	CodeAuth Code = "authentication_error"

	// CodeRateLimited means the vendor throttled the request.
	CodeRateLimited Code = "rate_limited"

	// CodeTransient covers vendor 5xx responses, overload signals, and
	// network failures.
	CodeTransient Code = "transient_error"

	// CodeTimeout means the call exceeded its deadline.
	CodeTimeout Code = "timeout"

	// CodeInvalidRequest means the vendor rejected the request shape.
	// Retrying the same request cannot succeed.
	CodeInvalidRequest Code = "invalid_request"
)

// Error is the uniform provider failure. Every adapter wraps vendor
// errors into this type so callers can switch on Code without knowing
// which vendor produced it.
type Error struct {
	Provider   string
	Code       Code
	Message    string
	StatusCode int   // HTTP status when the failure came from a response
	Cause      error // underlying transport error, if any
}

func (e *Error) Error() string {
	if e.StatusCode > 0 {
		return fmt.Sprintf("%s: %s (status %d): %s", e.Provider, e.Code, e.StatusCode, e.Message)
	}
	return fmt.Sprintf("%s: %s: %s", e.Provider, e.Code, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// Retryable reports whether another attempt against the same provider
// could plausibly succeed.
func (e *Error) Retryable() bool {
	switch e.Code {
	case CodeRateLimited, CodeTransient, CodeTimeout:
		return true
	}
	return false
}

// ClassifyStatus maps an HTTP response status to an error code.
// Adapters refine the result with vendor-specific error types where
// the body carries one.
func ClassifyStatus(status int) Code {
	switch {
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return CodeAuth
	case status == http.StatusTooManyRequests:
		return CodeRateLimited
	case status == http.StatusRequestTimeout || status == http.StatusGatewayTimeout:
		return CodeTimeout
	case status >= 500:
		return CodeTransient
	default:
		return CodeInvalidRequest
	}
}

// WrapTransport converts a transport-level failure (connection refused,
// DNS, context expiry) into a classified *Error.
func WrapTransport(providerName string, err error) *Error {
	code := CodeTransient
	if errors.Is(err, context.DeadlineExceeded) {
		code = CodeTimeout
	} else {
		var netErr net.Error
		if errors.As(err, &netErr) && netErr.Timeout() {
			code = CodeTimeout
		}
	}
	return &Error{
		Provider: providerName,
		Code:     code,
		Message:  err.Error(),
		Cause:    err,
	}
}

// IsRetryable reports whether err is a retryable provider error.
func IsRetryable(err error) bool {
	var pErr *Error
	if errors.As(err, &pErr) {
		return pErr.Retryable()
	}
	return false
}
