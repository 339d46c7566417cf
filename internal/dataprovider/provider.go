package dataprovider

import (
	"context"
	"errors"

	"backoffice/internal/core"
)

// ErrNotFound is returned when the requested record does not exist.
var ErrNotFound = errors.New("record not found")

type GetListParams struct {
	Pagination core.Pagination
	Sort       core.Sort
	Filter     core.Filter
}

type GetOneParams struct {
	ID core.Identifier
}

type GetManyParams struct {
	IDs []core.Identifier
}

// GetManyReferenceParams lists the records of a resource whose Target field
// equals ID.
type GetManyReferenceParams struct {
	Target     string
	ID         core.Identifier
	Pagination core.Pagination
	Sort       core.Sort
	Filter     core.Filter
}

type CreateParams struct {
	Data core.Record
}

type UpdateParams struct {
	ID           core.Identifier
	Data         core.Record
	PreviousData core.Record
}

type DeleteParams struct {
	ID           core.Identifier
	PreviousData core.Record
}

// Provider is the data layer behind the controllers.
type Provider interface {
	GetList(ctx context.Context, resource string, params GetListParams) (core.Page, error)
	GetOne(ctx context.Context, resource string, params GetOneParams) (core.Record, error)
	GetMany(ctx context.Context, resource string, params GetManyParams) ([]core.Record, error)
	GetManyReference(ctx context.Context, resource string, params GetManyReferenceParams) (core.Page, error)
	Create(ctx context.Context, resource string, params CreateParams) (core.Record, error)
	Update(ctx context.Context, resource string, params UpdateParams) (core.Record, error)
	Delete(ctx context.Context, resource string, params DeleteParams) (core.Record, error)
}

// Error wraps a provider failure with the operation and resource.
type Error struct {
	Op       string
	Resource string
	Err      error
}

func (e *Error) Error() string {
	return "data provider " + e.Op + " " + e.Resource + ": " + e.Err.Error()
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Wrap returns nil for a nil err, else an *Error.
func Wrap(op, resource string, err error) error {
	if err == nil {
		return nil
	}
	return &Error{Op: op, Resource: resource, Err: err}
}
