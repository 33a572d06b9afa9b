// Copyright 2025 The Sigstore Authors.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//	http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package hashengines

import (
	"errors"
	"fmt"
	"maps"
	"slices"
	"sync"
)

// HashEngineFactory creates a fresh engine with empty state.
type HashEngineFactory func() (StreamingHashEngine, error)

// Registry maps case-sensitive algorithm names to engine factories.
type Registry struct {
	mu        sync.RWMutex
	factories map[string]HashEngineFactory
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{factories: map[string]HashEngineFactory{}}
}

// Add registers factory under name. Names may be added once.
func (r *Registry) Add(name string, factory HashEngineFactory) error {
	switch {
	case name == "":
		return errors.New("algorithm name cannot be empty")
	case factory == nil:
		return fmt.Errorf("algorithm %q: factory cannot be nil", name)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.factories[name]; ok {
		return fmt.Errorf("hash algorithm %q already registered", name)
	}
	r.factories[name] = factory
	return nil
}

// Remove drops name from the registry.
func (r *Registry) Remove(name string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.factories[name]; !ok {
		return fmt.Errorf("hash algorithm %q not registered", name)
	}
	delete(r.factories, name)
	return nil
}

// New builds an engine for name.
func (r *Registry) New(name string) (StreamingHashEngine, error) {
	r.mu.RLock()
	factory := r.factories[name]
	r.mu.RUnlock()

	if factory == nil {
		return nil, fmt.Errorf("unsupported hash algorithm %q (supported: %v)", name, r.Names())
	}
	engine, err := factory()
	if err != nil {
		return nil, fmt.Errorf("hash algorithm %q: %w", name, err)
	}
	return engine, nil
}

// Has reports whether name is registered.
func (r *Registry) Has(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.factories[name]
	return ok
}

// Names returns the registered names in sorted order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return slices.Sorted(maps.Keys(r.factories))
}

// Default holds the built-in engines registered by the memory package.
var Default = NewRegistry()

// Register adds factory to Default.
func Register(algorithm string, factory HashEngineFactory) error {
	return Default.Add(algorithm, factory)
}

// MustRegister is Register for init functions; it panics on error.
func MustRegister(algorithm string, factory HashEngineFactory) {
	if err := Default.Add(algorithm, factory); err != nil {
		panic(err)
	}
}

// Create returns a new engine from Default.
func Create(algorithm string) (StreamingHashEngine, error) {
	return Default.New(algorithm)
}

// SupportedAlgorithms lists the names in Default.
func SupportedAlgorithms() []string {
	return Default.Names()
}

// IsSupported reports whether Default knows algorithm.
func IsSupported(algorithm string) bool {
	return Default.Has(algorithm)
}

// Unregister removes algorithm from Default.
func Unregister(algorithm string) error {
	return Default.Remove(algorithm)
}
