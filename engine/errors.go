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

import "errors"

var (
	// ErrInvalidRequest means the request failed validation before any
	// provider was contacted.
	ErrInvalidRequest = errors.New("invalid generation request")

	// ErrNoProviders means no configured provider holds a credential,
	// so the request cannot be attempted at all.
	ErrNoProviders = errors.New("no credentialed providers available")

	// ErrUnknownRequest means a cancel or lookup referenced a request
	// id the engine does not know.
	ErrUnknownRequest = errors.New("unknown request")

	// ErrStorage wraps database failures surfaced to callers.
	ErrStorage = errors.New("storage error")
)
