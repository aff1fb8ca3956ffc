package engine

import (
	"errors"
	"fmt"
	"slices"
	"sync"
)

// Well-known engine names.
const (
	NameWGPU     = "wgpu"
	NameSoftware = "software"
)

// Factory creates a new engine instance. A factory may return nil when the
// engine is compiled out.
type Factory func() Engine

var (
	registryMu sync.RWMutex
	engines    = make(map[string]Factory)
	// Priority order for OpenDefault (first device that opens wins).
	priority = []string{NameWGPU, NameSoftware}
)

// Register registers an engine factory with the given name.
// If an engine with the same name is already registered, it is replaced.
func Register(name string, factory Factory) {
	registryMu.Lock()
	defer registryMu.Unlock()
	engines[name] = factory
}

// Unregister removes an engine from the registry.
func Unregister(name string) {
	registryMu.Lock()
	defer registryMu.Unlock()
	delete(engines, name)
}

// Available returns the sorted names of registered engines.
func Available() []string {
	registryMu.RLock()
	defer registryMu.RUnlock()

	names := make([]string, 0, len(engines))
	for name := range engines {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// Get returns an engine instance by name, or nil if none is registered.
func Get(name string) Engine {
	registryMu.RLock()
	factory, ok := engines[name]
	registryMu.RUnlock()
	if !ok {
		return nil
	}
	return factory()
}

// OpenDefault opens the device at ordinal on the best available engine.
// Engines are tried in priority order, then the rest by name; the first
// device that opens is returned with its engine. If every engine fails the
// returned error joins the individual failures.
func OpenDefault(ordinal int) (Engine, Device, error) {
	names := Available()
	order := make([]string, 0, len(names))
	for _, name := range priority {
		if slices.Contains(names, name) {
			order = append(order, name)
		}
	}
	for _, name := range names {
		if !slices.Contains(order, name) {
			order = append(order, name)
		}
	}

	var errs []error
	for _, name := range order {
		e := Get(name)
		if e == nil {
			continue
		}
		dev, err := e.OpenDevice(ordinal)
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", name, err))
			continue
		}
		return e, dev, nil
	}
	if len(errs) == 0 {
		return nil, nil, ErrNotAvailable
	}
	return nil, nil, errors.Join(append([]error{ErrNotAvailable}, errs...)...)
}
