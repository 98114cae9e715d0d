// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

package allocator

import (
	"cmp"
	"errors"
	"fmt"
	"slices"
	"sync"

	"github.com/gogpu/dmabuf"
)

// Allocator is an allocator producing dmabuf handles.
type Allocator = dmabuf.Allocator[*dmabuf.Dmabuf]

// Factory opens a backend. It fails when the device node or driver the
// backend needs is missing.
type Factory func() (Allocator, error)

// ProbeSize is the edge length of the buffer Probe allocates.
const ProbeSize = 16

// Entry is one registered backend.
type Entry struct {
	// Name identifies the backend, e.g. "gbm" or "memfd".
	Name string

	// Priority orders backends; higher wins. Hardware backends should
	// outrank software ones.
	Priority int

	// Factory opens the backend.
	Factory Factory

	// Available reports whether the backend can allocate on this machine.
	Available func() bool
}

var globalRegistry = &Registry{}

// Registry holds allocator backends by name.
// It is safe for concurrent use.
type Registry struct {
	mu      sync.RWMutex
	entries map[string]*Entry
}

// NewRegistry returns an empty registry. Backends register themselves in
// the package-level registry from init; separate registries are for tests.
func NewRegistry() *Registry {
	return &Registry{
		entries: make(map[string]*Entry),
	}
}

// Register adds a backend to the package-level registry.
// A nil available means the backend can always allocate; use
// ProbeAvailable to check by allocating a buffer instead.
func Register(name string, priority int, factory Factory, available func() bool) {
	globalRegistry.Register(name, priority, factory, available)
}

// Unregister removes a backend from the package-level registry.
func Unregister(name string) {
	globalRegistry.Unregister(name)
}

// List returns every registered backend, best first.
func List() []string {
	return globalRegistry.List()
}

// Available returns the backends that can allocate, best first.
func Available() []string {
	return globalRegistry.Available()
}

// Get returns the entry registered under name.
func Get(name string) (*Entry, bool) {
	return globalRegistry.Get(name)
}

// New opens the best backend that can allocate.
func New() (Allocator, error) {
	return globalRegistry.New()
}

// NewByName opens the named backend.
func NewByName(name string) (Allocator, error) {
	return globalRegistry.NewByName(name)
}

// NewFor opens the best backend that can allocate format with one of
// modifiers.
func NewFor(format dmabuf.Fourcc, modifiers []dmabuf.Modifier) (Allocator, error) {
	return globalRegistry.NewFor(format, modifiers)
}

// Probe allocates and releases a ProbeSize x ProbeSize buffer of format.
func Probe(a Allocator, format dmabuf.Fourcc, modifiers []dmabuf.Modifier) error {
	buf, err := a.CreateBuffer(ProbeSize, ProbeSize, format, modifiers)
	if err != nil {
		return err
	}
	buf.Release()
	return nil
}

// ProbeAvailable returns an availability check that opens the backend and
// allocates a probe buffer of format. The result is computed on first use
// and then remembered.
func ProbeAvailable(name string, factory Factory, format dmabuf.Fourcc) func() bool {
	return sync.OnceValue(func() bool {
		a, err := factory()
		if err == nil {
			err = Probe(a, format, nil)
		}
		if err != nil {
			dmabuf.Logger().Debug("allocator: probe failed", "name", name, "format", format.String(), "err", err)
			return false
		}
		return true
	})
}

// Register adds a backend, replacing any backend of the same name.
func (r *Registry) Register(name string, priority int, factory Factory, available func() bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.entries == nil {
		r.entries = make(map[string]*Entry)
	}
	if available == nil {
		available = func() bool { return true }
	}

	r.entries[name] = &Entry{
		Name:      name,
		Priority:  priority,
		Factory:   factory,
		Available: available,
	}
}

// Unregister removes a backend.
func (r *Registry) Unregister(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	delete(r.entries, name)
}

// List returns every registered backend, best first.
func (r *Registry) List() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return r.sortedNames(false)
}

// Available returns the backends that can allocate, best first.
func (r *Registry) Available() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return r.sortedNames(true)
}

// Get returns the entry registered under name. Changing the returned
// entry does not change the registry.
func (r *Registry) Get(name string) (*Entry, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	entry, ok := r.entries[name]
	if !ok {
		return nil, false
	}
	e := *entry
	return &e, true
}

// New opens the best backend that can allocate. When a factory fails the
// next backend is tried; the last failure is returned if all do.
func (r *Registry) New() (Allocator, error) {
	return r.first(func(string, Allocator) error { return nil })
}

// NewFor opens the best backend whose Probe of format and modifiers
// succeeds. A hardware backend that cannot allocate, say, NV12 is skipped
// in favor of one that can.
func (r *Registry) NewFor(format dmabuf.Fourcc, modifiers []dmabuf.Modifier) (Allocator, error) {
	a, err := r.first(func(_ string, a Allocator) error {
		return Probe(a, format, modifiers)
	})
	if err != nil && !errors.Is(err, ErrNoBackendAvailable) {
		return nil, fmt.Errorf("%w for %v: %w", ErrNoBackendAvailable, format, err)
	}
	return a, err
}

// first opens available backends best first and returns the first one
// that check accepts.
func (r *Registry) first(check func(name string, a Allocator) error) (Allocator, error) {
	r.mu.RLock()
	names := r.sortedNames(true)
	r.mu.RUnlock()

	if len(names) == 0 {
		return nil, ErrNoBackendAvailable
	}

	var lastErr error
	for _, name := range names {
		a, err := r.NewByName(name)
		if err == nil {
			err = check(name, a)
		}
		if err == nil {
			dmabuf.Logger().Debug("allocator: selected backend", "name", name)
			return a, nil
		}
		dmabuf.Logger().Debug("allocator: skipped backend", "name", name, "err", err)
		lastErr = err
	}
	return nil, lastErr
}

// NewByName opens the named backend.
func (r *Registry) NewByName(name string) (Allocator, error) {
	r.mu.RLock()
	entry, ok := r.entries[name]
	r.mu.RUnlock()

	if !ok {
		return nil, &BackendNotFoundError{Name: name}
	}
	if !entry.Available() {
		return nil, &BackendUnavailableError{Name: name}
	}
	return entry.Factory()
}

// sortedNames orders backends by descending priority, then by name.
// Caller must hold r.mu.
func (r *Registry) sortedNames(onlyAvailable bool) []string {
	if len(r.entries) == 0 {
		return nil
	}

	entries := make([]*Entry, 0, len(r.entries))
	for _, e := range r.entries {
		if onlyAvailable && !e.Available() {
			continue
		}
		entries = append(entries, e)
	}

	slices.SortFunc(entries, func(a, b *Entry) int {
		if c := cmp.Compare(b.Priority, a.Priority); c != 0 {
			return c
		}
		return cmp.Compare(a.Name, b.Name)
	})

	names := make([]string, len(entries))
	for i, e := range entries {
		names[i] = e.Name
	}
	return names
}

// ErrNoBackendAvailable is returned when no registered backend can allocate.
var ErrNoBackendAvailable = errors.New("allocator: no backend available")

// BackendNotFoundError is returned for a name nobody registered.
type BackendNotFoundError struct {
	Name string
}

func (e *BackendNotFoundError) Error() string {
	return "allocator: backend not found: " + e.Name
}

// BackendUnavailableError is returned for a registered backend that cannot
// allocate on this machine.
type BackendUnavailableError struct {
	Name string
}

func (e *BackendUnavailableError) Error() string {
	return "allocator: backend unavailable: " + e.Name
}
