package resource

import (
	"reflect"
	"sort"
	"sync"

	"github.com/google/go-cmp/cmp"
	"github.com/rs/zerolog/log"
)

// Registry holds the definition of every mounted resource.
type Registry struct {
	mu          sync.RWMutex
	definitions map[string]Definition
	subscribers map[int]func(map[string]Definition)
	nextSub     int
}

// NewRegistry creates a registry seeded with the given definitions.
func NewRegistry(defaults ...Definition) *Registry {
	r := &Registry{
		definitions: make(map[string]Definition, len(defaults)),
		subscribers: make(map[int]func(map[string]Definition)),
	}
	for _, d := range defaults {
		r.definitions[d.Name] = d
	}
	return r
}

// Register upserts a definition by name. Registering a definition equal to the
// stored one changes nothing and notifies nobody; it reports whether the
// registry changed.
func (r *Registry) Register(def Definition) bool {
	r.mu.Lock()
	if prev, ok := r.definitions[def.Name]; ok && sameDefinition(prev, def) {
		r.mu.Unlock()
		return false
	}
	next := r.copyLocked()
	next[def.Name] = def
	r.definitions = next
	subs := r.subscribersLocked()
	r.mu.Unlock()

	log.Debug().
		Str("resource", def.Name).
		Bool("has_list", def.HasList).
		Bool("has_create", def.HasCreate).
		Bool("has_edit", def.HasEdit).
		Bool("has_show", def.HasShow).
		Msg("registered resource")

	r.publish(subs, next)
	return true
}

// sameDefinition compares definitions deeply, unexported option fields
// included. Values cmp cannot compare count as different.
func sameDefinition(a, b Definition) (equal bool) {
	defer func() {
		if recover() != nil {
			equal = false
		}
	}()
	return cmp.Equal(a, b, cmp.Exporter(func(reflect.Type) bool { return true }))
}

// Unregister removes the definition with the same name.
func (r *Registry) Unregister(def Definition) {
	r.mu.Lock()
	next := r.copyLocked()
	delete(next, def.Name)
	r.definitions = next
	subs := r.subscribersLocked()
	r.mu.Unlock()

	log.Debug().Str("resource", def.Name).Msg("unregistered resource")
	r.publish(subs, next)
}

// Definition returns the definition registered under name.
func (r *Registry) Definition(name string) (Definition, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	d, ok := r.definitions[name]
	return d, ok
}

// Definitions returns a snapshot of every definition.
func (r *Registry) Definitions() map[string]Definition {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.copyLocked()
}

// Names returns the registered resource names in lexical order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.definitions))
	for n := range r.definitions {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Subscribe calls fn with the new snapshot after every change.
func (r *Registry) Subscribe(fn func(map[string]Definition)) (unsubscribe func()) {
	r.mu.Lock()
	id := r.nextSub
	r.nextSub++
	r.subscribers[id] = fn
	r.mu.Unlock()
	return func() {
		r.mu.Lock()
		delete(r.subscribers, id)
		r.mu.Unlock()
	}
}

// Overrides are capability flags supplied by a caller. Nil fields defer to
// the registered definition.
type Overrides struct {
	HasList   *bool
	HasCreate *bool
	HasEdit   *bool
	HasShow   *bool
}

// Resolve returns the definition of name with overrides applied on top.
// Unknown resources resolve to a definition holding only the name and overrides.
func (r *Registry) Resolve(name string, o Overrides) Definition {
	d, ok := r.Definition(name)
	if !ok {
		d = Definition{Name: name}
	}
	if o.HasList != nil {
		d.HasList = *o.HasList
	}
	if o.HasCreate != nil {
		d.HasCreate = *o.HasCreate
	}
	if o.HasEdit != nil {
		d.HasEdit = *o.HasEdit
	}
	if o.HasShow != nil {
		d.HasShow = *o.HasShow
	}
	return d
}

func (r *Registry) copyLocked() map[string]Definition {
	out := make(map[string]Definition, len(r.definitions))
	for k, v := range r.definitions {
		out[k] = v
	}
	return out
}

func (r *Registry) subscribersLocked() []func(map[string]Definition) {
	out := make([]func(map[string]Definition), 0, len(r.subscribers))
	for _, fn := range r.subscribers {
		out = append(out, fn)
	}
	return out
}

func (r *Registry) publish(subs []func(map[string]Definition), snapshot map[string]Definition) {
	for _, fn := range subs {
		fn(snapshot)
	}
}
