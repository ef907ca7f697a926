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

package cost

import "errors"

var (
	// ErrPricingUnavailable indicates no pricing entry exists for a
	// provider/model pair at the requested time. Cost is never assumed
	// zero; callers must treat this as a hard failure.
	ErrPricingUnavailable = errors.New("pricing unavailable for provider/model")

	// ErrInvalidEntry indicates a pricing entry failed validation while
	// loading the pricing file.
	ErrInvalidEntry = errors.New("invalid pricing entry")
)
