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
	"fmt"
	"sync"
)

// Registry holds the configured adapters in fallback order. The order
// given at registration time is the default failover chain; lookups by
// name serve explicit provider requests.
type Registry struct {
	mu        sync.RWMutex
	providers map[string]Provider
	order     []string
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{providers: make(map[string]Provider)}
}

// Register adds an adapter at the end of the fallback order. Duplicate
// names are rejected.
func (r *Registry) Register(p Provider) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	name := p.Name()
	if _, exists := r.providers[name]; exists {
		return fmt.Errorf("provider %q already registered", name)
	}
	r.providers[name] = p
	r.order = append(r.order, name)
	return nil
}

// Get returns the adapter with the given name.
func (r *Registry) Get(name string) (Provider, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	p, ok := r.providers[name]
	return p, ok
}

// Names returns the provider names in fallback order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, len(r.order))
	copy(names, r.order)
	return names
}

// Chain returns the failover order starting from preferred when it is
// registered, followed by the remaining providers in registration
// order. An empty or unknown preferred name yields the default order.
func (r *Registry) Chain(preferred string) []Provider {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var chain []Provider
	if p, ok := r.providers[preferred]; ok {
		chain = append(chain, p)
	}
	for _, name := range r.order {
		if name == preferred {
			continue
		}
		chain = append(chain, r.providers[name])
	}
	return chain
}
