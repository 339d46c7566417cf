package params

import "sync"

// Memory keeps the last query of each resource so a list remounted without
// location parameters restores its previous state.
type Memory struct {
	mu      sync.Mutex
	queries map[string]Query
}

func NewMemory() *Memory {
	return &Memory{queries: make(map[string]Query)}
}

// Load returns the query saved for key.
func (m *Memory) Load(key string) (Query, bool) {
	if m == nil {
		return Query{}, false
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	q, ok := m.queries[key]
	if !ok {
		return Query{}, false
	}
	return q.Clone(), true
}

// Save stores q under key.
func (m *Memory) Save(key string, q Query) {
	if m == nil {
		return
	}
	m.mu.Lock()
	m.queries[key] = q.Clone()
	m.mu.Unlock()
}

// Forget drops the query saved for key.
func (m *Memory) Forget(key string) {
	if m == nil {
		return
	}
	m.mu.Lock()
	delete(m.queries, key)
	m.mu.Unlock()
}
