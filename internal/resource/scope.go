package resource

import (
	"context"
	"errors"

	"backoffice/internal/core"
)

// ErrMissingResource is returned when a controller needs a resource name and
// neither the caller nor the ambient scope supplies one.
var ErrMissingResource = errors.New("resource is required: pass it explicitly or bind it to the context with resource.WithScope")

// Scope is the ambient binding of a view: the current resource and, inside a
// record view, the current record.
type Scope struct {
	Resource string
	Record   core.Record
}

type ctxKey string

const ctxScope ctxKey = "resource_scope"

// WithScope binds s to ctx. Empty fields inherit from the enclosing scope.
func WithScope(ctx context.Context, s Scope) context.Context {
	parent := ScopeFrom(ctx)
	if s.Resource == "" {
		s.Resource = parent.Resource
	}
	if s.Record == nil {
		s.Record = parent.Record
	}
	return context.WithValue(ctx, ctxScope, s)
}

// WithResource binds a resource name and clears any inherited record.
func WithResource(ctx context.Context, name string) context.Context {
	return context.WithValue(ctx, ctxScope, Scope{Resource: name})
}

// ScopeFrom returns the scope bound to ctx, or the zero Scope.
func ScopeFrom(ctx context.Context) Scope {
	s, _ := ctx.Value(ctxScope).(Scope)
	return s
}

// ResolveName returns override when set, else the ambient resource name.
func ResolveName(ctx context.Context, override string) (string, error) {
	if override != "" {
		return override, nil
	}
	if s := ScopeFrom(ctx); s.Resource != "" {
		return s.Resource, nil
	}
	return "", ErrMissingResource
}

// ResolveRecord returns override when non-nil, else the ambient record.
func ResolveRecord(ctx context.Context, override core.Record) core.Record {
	if override != nil {
		return override
	}
	return ScopeFrom(ctx).Record
}
