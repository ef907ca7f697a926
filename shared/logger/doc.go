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

/*
Package logger provides structured JSON logging for Slidesmith engine
components.

Log entries are written to stdout as single-line JSON so they can be
consumed directly by log aggregation systems. Each entry carries a
timestamp, level, component name, optional request ID for correlation,
and free-form fields.

Create a logger per component:

	log := logger.New("engine")

and log with request context:

	log.Info(requestID, "generation complete", map[string]interface{}{
	    "provider": "anthropic",
	    "attempts": 3,
	})

Logger instances are safe for concurrent use from multiple goroutines.
API credentials must never be passed as log fields; callers log provider
identifiers and error codes only.
*/
package logger
