package selection

import (
	"context"
	"sync"

	"backoffice/internal/core"
)

// Store keeps the selected record ids of each resource.
type Store interface {
	Get(ctx context.Context, resource string) ([]core.Identifier, error)
	// Select replaces the selection.
	Select(ctx context.Context, resource string, ids []core.Identifier) error
	// Toggle adds id when absent and removes it when present.
	Toggle(ctx context.Context, resource string, id core.Identifier) error
	Clear(ctx context.Context, resource string) error
	// Unselect removes ids from the selection.
	Unselect(ctx context.Context, resource string, ids []core.Identifier) error
}

// Memory is a process-wide Store. Selection order is insertion order.
type Memory struct {
	mu         sync.RWMutex
	selections map[string][]core.Identifier
}

func NewMemory() *Memory {
	return &Memory{selections: make(map[string][]core.Identifier)}
}

func (m *Memory) Get(_ context.Context, resource string) ([]core.Identifier, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	ids := m.selections[resource]
	out := make([]core.Identifier, len(ids))
	copy(out, ids)
	return out, nil
}

func (m *Memory) Select(_ context.Context, resource string, ids []core.Identifier) error {
	m.mu.Lock()
	m.selections[resource] = dedupe(ids)
	m.mu.Unlock()
	return nil
}

func (m *Memory) Toggle(_ context.Context, resource string, id core.Identifier) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	ids := m.selections[resource]
	for i, existing := range ids {
		if existing == id {
			m.selections[resource] = append(ids[:i:i], ids[i+1:]...)
			return nil
		}
	}
	m.selections[resource] = append(ids, id)
	return nil
}

func (m *Memory) Clear(_ context.Context, resource string) error {
	m.mu.Lock()
	delete(m.selections, resource)
	m.mu.Unlock()
	return nil
}

func (m *Memory) Unselect(_ context.Context, resource string, ids []core.Identifier) error {
	m.mu.Lock()
	m.selections[resource] = Subtract(m.selections[resource], ids)
	m.mu.Unlock()
	return nil
}

// Subtract returns selected without any of ids, keeping order.
func Subtract(selected, ids []core.Identifier) []core.Identifier {
	drop := make(map[core.Identifier]struct{}, len(ids))
	for _, id := range ids {
		drop[id] = struct{}{}
	}
	out := make([]core.Identifier, 0, len(selected))
	for _, id := range selected {
		if _, ok := drop[id]; !ok {
			out = append(out, id)
		}
	}
	return out
}

func dedupe(ids []core.Identifier) []core.Identifier {
	seen := make(map[core.Identifier]struct{}, len(ids))
	out := make([]core.Identifier, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
