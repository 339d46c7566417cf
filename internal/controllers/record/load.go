package record

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"sync"

	"github.com/rs/zerolog/log"

	"backoffice/internal/auth"
	"backoffice/internal/core"
	dp "backoffice/internal/dataprovider"
	"backoffice/internal/navigation"
	"backoffice/internal/notify"
	"backoffice/internal/resource"
)

var (
	// ErrIDMismatch is returned when the provider answers with another record
	// than the one requested.
	ErrIDMismatch = errors.New("fetched record id does not match the requested id")
	ErrMissingID  = errors.New("record id is required: pass it or navigate to the record")
)

// Deps are the collaborators of the record controllers. Nil fields get
// defaults where one exists.
type Deps struct {
	Data     dp.Provider
	Mutator  *dp.Mutator
	Notifier notify.Notifier
	Router   navigation.Router
	Auth     auth.Checker
	Registry *resource.Registry
}

func (d Deps) withDefaults() Deps {
	if d.Data == nil && d.Mutator != nil {
		d.Data = d.Mutator.Provider()
	}
	if d.Notifier == nil {
		d.Notifier = notify.Log{}
	}
	if d.Registry == nil {
		d.Registry = resource.NewRegistry()
	}
	return d
}

// Result is what a show or edit view reads.
type Result struct {
	Resource     string              `json:"resource"`
	ID           core.Identifier     `json:"id"`
	Record       core.Record         `json:"record"`
	Error        error               `json:"-"`
	ErrorMessage string              `json:"error,omitempty"`
	IsLoading    bool                `json:"isLoading"`
	IsFetching   bool                `json:"isFetching"`
	MutationMode dp.Mode             `json:"mutationMode,omitempty"`
	Redirect     navigation.Redirect `json:"redirect,omitempty"`
	Saving       bool                `json:"saving,omitempty"`
}

// loader fetches one record for the show and edit views.
type loader struct {
	resource string
	id       core.Identifier
	deps     Deps

	mu       sync.Mutex
	record   core.Record
	err      error
	loaded   bool
	fetching bool
}

func newLoader(ctx context.Context, res string, id core.Identifier, disableAuth bool, deps Deps) (*loader, error) {
	name, err := resource.ResolveName(ctx, res)
	if err != nil {
		return nil, err
	}
	deps = deps.withDefaults()
	if deps.Data == nil {
		return nil, fmt.Errorf("record %s: data provider is required", name)
	}
	if err := auth.Guard(ctx, deps.Auth, disableAuth); err != nil {
		return nil, err
	}
	if id == "" {
		id = idFromScope(ctx, deps.Router, name)
	}
	if id == "" {
		return nil, ErrMissingID
	}
	return &loader{resource: name, id: id, deps: deps}, nil
}

// idFromScope reads the id of the ambient record, then the id segment of
// the current location ("/posts/12" or "/posts/12/show").
func idFromScope(ctx context.Context, router navigation.Router, name string) core.Identifier {
	if rec := resource.ScopeFrom(ctx).Record; rec != nil && rec.ID() != "" {
		return rec.ID()
	}
	if router == nil {
		return ""
	}
	parts := strings.Split(strings.Trim(router.Location().Pathname, "/"), "/")
	if len(parts) < 2 || parts[0] != url.PathEscape(name) || parts[1] == "create" {
		return ""
	}
	id, err := url.PathUnescape(parts[1])
	if err != nil {
		log.Debug().Err(err).Str("path", router.Location().Pathname).Msg("record: malformed id in location")
		return ""
	}
	return core.Identifier(id)
}

// load fetches the record once, without retry. A failed fetch notifies,
// redirects to the list and refreshes; only an id mismatch is returned.
func (l *loader) load(ctx context.Context) error {
	l.mu.Lock()
	l.fetching = true
	l.mu.Unlock()

	rec, err := l.deps.Data.GetOne(ctx, l.resource, dp.GetOneParams{ID: l.id})

	l.mu.Lock()
	l.fetching = false
	l.err = err
	if err == nil {
		l.record, l.loaded = rec, true
	}
	l.mu.Unlock()

	if err != nil {
		log.Warn().Err(err).Str("resource", l.resource).Str("id", string(l.id)).Msg("record: fetch failed")
		l.deps.Notifier.Notify(notify.Notification{Message: notify.MsgItemDoesntExist, Type: notify.TypeWarning})
		navigation.Go(l.deps.Router, navigation.RedirectList, l.resource, "", nil)
		if l.deps.Router != nil {
			l.deps.Router.Refresh()
		}
		return nil
	}
	if got := rec.ID(); got != "" && got != l.id {
		return fmt.Errorf("%w: fetched %q, requested %q", ErrIDMismatch, got, l.id)
	}
	return nil
}

func (l *loader) previous() core.Record {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.record
}

func (l *loader) result() Result {
	l.mu.Lock()
	defer l.mu.Unlock()
	return Result{
		Resource:     l.resource,
		ID:           l.id,
		Record:       l.record,
		Error:        l.err,
		ErrorMessage: notify.ErrorMessage(l.err),
		IsLoading:    l.fetching && !l.loaded,
		IsFetching:   l.fetching,
	}
}

// Show loads a record for display.
type Show struct {
	*loader
}

type ShowOptions struct {
	Resource string
	// ID defaults to the ambient record, then the current location.
	ID                    core.Identifier
	DisableAuthentication bool
}

func NewShow(ctx context.Context, opts ShowOptions, deps Deps) (*Show, error) {
	l, err := newLoader(ctx, opts.Resource, opts.ID, opts.DisableAuthentication, deps)
	if err != nil {
		return nil, err
	}
	return &Show{loader: l}, nil
}

func (s *Show) Resource() string    { return s.resource }
func (s *Show) ID() core.Identifier { return s.id }

// Load fetches the record. The error is non-nil only for ErrIDMismatch.
func (s *Show) Load(ctx context.Context) (Result, error) {
	err := s.load(ctx)
	return s.result(), err
}

// Result returns the current state without fetching.
func (s *Show) Result() Result { return s.result() }
