// Package artifact stores the outputs that finished runs leave behind.
//
// Artifacts are keyed by run id and artifact id. The Store interface is
// deliberately small so that storage backends (in-memory, object stores,
// databases) can be swapped without touching calling code.
package artifact

import (
	"fmt"
	"sort"
	"sync"
)

var (
	// ErrNotFound is returned when an artifact for the given run / id pair
	// does not exist in the underlying store.
	ErrNotFound = fmt.Errorf("artifact not found")
)

// Store persists artifacts produced during runs.
type Store interface {
	// Save stores (or overwrites) the artifact bytes for the given run and id.
	Save(runID, artifactID string, data []byte) error

	// Get returns the stored artifact bytes or ErrNotFound.
	Get(runID, artifactID string) ([]byte, error)

	// List returns the artifact ids stored for the run.
	List(runID string) ([]string, error)

	// Delete removes the artifact if present or returns ErrNotFound.
	Delete(runID, artifactID string) error
}

// InMemoryStore is an in-process Store implementation useful for tests,
// examples and single-process prototypes. It keeps all artifacts in a
// nested map guarded by an RWMutex. Data is copied on save and retrieval
// to avoid accidental external mutation of internal buffers.
//
// Layout: runID -> artifactID -> raw bytes
type InMemoryStore struct {
	mu        sync.RWMutex
	artifacts map[string]map[string][]byte
}

// NewInMemoryStore returns an empty in-memory artifact store.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{artifacts: make(map[string]map[string][]byte)}
}

// Save implements Store. The input slice is copied before storage.
func (s *InMemoryStore) Save(runID, artifactID string, data []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.artifacts[runID]; !exists {
		s.artifacts[runID] = make(map[string][]byte)
	}
	cp := make([]byte, len(data))
	copy(cp, data)
	s.artifacts[runID][artifactID] = cp
	return nil
}

// Get implements Store, returning a copy of the stored bytes.
func (s *InMemoryStore) Get(runID, artifactID string) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	m, ok := s.artifacts[runID]
	if !ok {
		return nil, ErrNotFound
	}
	data, ok := m[artifactID]
	if !ok {
		return nil, ErrNotFound
	}
	cp := make([]byte, len(data))
	copy(cp, data)
	return cp, nil
}

// List implements Store. The returned slice is a sorted snapshot and safe
// for caller mutation.
func (s *InMemoryStore) List(runID string) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	m, ok := s.artifacts[runID]
	if !ok {
		return []string{}, nil
	}
	ids := make([]string, 0, len(m))
	for id := range m {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids, nil
}

// Delete implements Store.
func (s *InMemoryStore) Delete(runID, artifactID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.artifacts[runID]
	if !ok {
		return ErrNotFound
	}
	if _, ok := m[artifactID]; !ok {
		return ErrNotFound
	}
	delete(m, artifactID)
	return nil
}
