// Package feed collects market metadata from every configured source and
// keeps one ingestion task per source writing into its quote table.
package feed

import (
	"fmt"
	"sort"
	"sync"

	"github.com/alanyoungcy/triarb/internal/domain"
)

// Registry holds the configured quote sources by id.
type Registry struct {
	sources map[domain.SourceID]domain.Source
	mu      sync.RWMutex
}

// NewRegistry returns an empty registry. Call Register to add sources.
func NewRegistry() *Registry {
	return &Registry{sources: make(map[domain.SourceID]domain.Source)}
}

// Register adds s under its own id, replacing any previous source with the
// same id.
func (r *Registry) Register(s domain.Source) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sources[s.ID()] = s
}

// Get returns the source by id.
func (r *Registry) Get(id domain.SourceID) (domain.Source, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.sources[id]
	if !ok {
		return nil, fmt.Errorf("feed: source %q: %w", id, domain.ErrUnknownSource)
	}
	return s, nil
}

// List returns all registered source ids, sorted.
func (r *Registry) List() []domain.SourceID {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ids := make([]domain.SourceID, 0, len(r.sources))
	for id := range r.sources {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// Ordered resolves ids in the given order. Unknown ids fail the whole call.
func (r *Registry) Ordered(ids []domain.SourceID) ([]domain.Source, error) {
	out := make([]domain.Source, 0, len(ids))
	for _, id := range ids {
		s, err := r.Get(id)
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, nil
}
