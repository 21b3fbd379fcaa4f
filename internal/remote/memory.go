package remote

import (
	"context"
	"sync"
)

// MemoryStore is an in-memory Store used in tests and for fully offline
// deployments. It can simulate an outage via SetOnline(false).
type MemoryStore struct {
	mu     sync.RWMutex
	data   map[string]map[string]map[string]any // collection -> docID -> fields
	online bool
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		data:   make(map[string]map[string]map[string]any),
		online: true,
	}
}

// SetOnline toggles simulated reachability. While offline, every call
// returns ErrUnavailable.
func (m *MemoryStore) SetOnline(online bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.online = online
}

func (m *MemoryStore) Set(ctx context.Context, collection, docID string, fields map[string]any, merge bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.online {
		return ErrUnavailable
	}

	coll, ok := m.data[collection]
	if !ok {
		coll = make(map[string]map[string]any)
		m.data[collection] = coll
	}

	if existing, ok := coll[docID]; ok && merge {
		for k, v := range fields {
			existing[k] = v
		}
		return nil
	}

	doc := make(map[string]any, len(fields))
	for k, v := range fields {
		doc[k] = v
	}
	coll[docID] = doc
	return nil
}

func (m *MemoryStore) Get(ctx context.Context, collection, docID string) (map[string]any, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if !m.online {
		return nil, ErrUnavailable
	}

	doc, ok := m.data[collection][docID]
	if !ok {
		return nil, ErrDocNotFound
	}
	return copyDoc(doc), nil
}

func (m *MemoryStore) Query(ctx context.Context, collection string, filters ...Filter) ([]map[string]any, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if !m.online {
		return nil, ErrUnavailable
	}

	var out []map[string]any
	for _, doc := range m.data[collection] {
		if matches(doc, filters) {
			out = append(out, copyDoc(doc))
		}
	}
	return out, nil
}

func (m *MemoryStore) Delete(ctx context.Context, collection, docID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.online {
		return ErrUnavailable
	}
	delete(m.data[collection], docID)
	return nil
}

func (m *MemoryStore) Ping(ctx context.Context) error {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if !m.online {
		return ErrUnavailable
	}
	return nil
}

// Len reports the number of documents in a collection (test helper).
func (m *MemoryStore) Len(collection string) int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.data[collection])
}

func matches(doc map[string]any, filters []Filter) bool {
	for _, f := range filters {
		if doc[f.Field] != f.Value {
			return false
		}
	}
	return true
}

func copyDoc(doc map[string]any) map[string]any {
	out := make(map[string]any, len(doc))
	for k, v := range doc {
		out[k] = v
	}
	return out
}
