package providers

import (
	"context"
	"fmt"
	"sort"
	"sync"
)

// Provider is a source of raw lyrics payloads
type Provider interface {
	// Name returns the provider's identifier, e.g. "lrclib"
	Name() string

	// FetchLyrics looks up lyrics for a track. durationMs may be 0 when unknown.
	// A track without lyrics yields an error wrapping ErrNotFound.
	FetchLyrics(ctx context.Context, song, artist, album string, durationMs int) (*LyricsResult, error)

	// CacheKeyPrefix namespaces this provider's entries in the cache
	CacheKeyPrefix() string
}

// Registry holds providers by name
type Registry struct {
	mu        sync.RWMutex
	providers map[string]Provider
}

var (
	globalRegistry *Registry
	registryOnce   sync.Once
)

// NewRegistry creates an empty registry
func NewRegistry() *Registry {
	return &Registry{providers: make(map[string]Provider)}
}

// GetRegistry returns the registry providers add themselves to at init
func GetRegistry() *Registry {
	registryOnce.Do(func() {
		globalRegistry = NewRegistry()
	})
	return globalRegistry
}

// Register adds p, replacing any provider with the same name
func (r *Registry) Register(p Provider) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.providers[p.Name()] = p
}

// Get retrieves a provider by name
func (r *Registry) Get(name string) (Provider, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	p, ok := r.providers[name]
	if !ok {
		return nil, fmt.Errorf("provider not found: %s", name)
	}
	return p, nil
}

// List returns the registered names in alphabetical order
func (r *Registry) List() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.providers))
	for name := range r.providers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Has checks if a provider is registered
func (r *Registry) Has(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.providers[name]
	return ok
}

// Resolve returns the named providers in the given order.
// It fails on the first unknown name so a typo in configuration is caught at startup.
func (r *Registry) Resolve(names []string) ([]Provider, error) {
	resolved := make([]Provider, 0, len(names))
	for _, name := range names {
		p, err := r.Get(name)
		if err != nil {
			return nil, err
		}
		resolved = append(resolved, p)
	}
	return resolved, nil
}

// Register adds p to the global registry
func Register(p Provider) {
	GetRegistry().Register(p)
}

// Get looks a provider up in the global registry
func Get(name string) (Provider, error) {
	return GetRegistry().Get(name)
}

// List lists the global registry
func List() []string {
	return GetRegistry().List()
}

// Has checks the global registry
func Has(name string) bool {
	return GetRegistry().Has(name)
}
