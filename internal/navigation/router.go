package navigation

import (
	"net/url"
	"strings"
	"sync"

	"backoffice/internal/core"
)

// Location is the current position of the router.
type Location struct {
	Pathname string
	Search   string
	State    map[string]any
}

// Query parses the search part of the location.
func (l Location) Query() url.Values {
	v, err := url.ParseQuery(strings.TrimPrefix(l.Search, "?"))
	if err != nil {
		return url.Values{}
	}
	return v
}

// String renders pathname and search.
func (l Location) String() string {
	if l.Search == "" || l.Search == "?" {
		return l.Pathname
	}
	if strings.HasPrefix(l.Search, "?") {
		return l.Pathname + l.Search
	}
	return l.Pathname + "?" + l.Search
}

// ParseLocation splits a path with optional query string into a Location.
func ParseLocation(to string) Location {
	path, search, _ := strings.Cut(to, "?")
	loc := Location{Pathname: path}
	if search != "" {
		loc.Search = "?" + search
	}
	return loc
}

// Router is the routing collaborator used by the controllers.
type Router interface {
	Location() Location
	Navigate(to string, state map[string]any)
	// Refresh asks the view layer to drop cached data and re-render.
	Refresh()
}

// MemoryRouter is a Router that keeps its history in memory.
type MemoryRouter struct {
	mu        sync.Mutex
	history   []Location
	refreshes int
}

// NewMemoryRouter starts a router at the given location.
func NewMemoryRouter(initial Location) *MemoryRouter {
	return &MemoryRouter{history: []Location{initial}}
}

func (r *MemoryRouter) Location() Location {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.history[len(r.history)-1]
}

func (r *MemoryRouter) Navigate(to string, state map[string]any) {
	loc := ParseLocation(to)
	loc.State = state
	r.mu.Lock()
	defer r.mu.Unlock()
	if loc.Pathname == "" {
		loc.Pathname = r.history[len(r.history)-1].Pathname
	}
	r.history = append(r.history, loc)
}

func (r *MemoryRouter) Refresh() {
	r.mu.Lock()
	r.refreshes++
	r.mu.Unlock()
}

// History returns every location visited, oldest first.
func (r *MemoryRouter) History() []Location {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Location, len(r.history))
	copy(out, r.history)
	return out
}

// Moved reports whether the router left its initial location.
func (r *MemoryRouter) Moved() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.history) > 1 && r.history[0].String() != r.history[len(r.history)-1].String()
}

// Refreshes returns how many times Refresh was called.
func (r *MemoryRouter) Refreshes() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.refreshes
}

// Redirect names where to go after a successful action.
// Besides the named views, any value starting with "/" is a literal path.
type Redirect string

const (
	RedirectDefault Redirect = ""
	RedirectList    Redirect = "list"
	RedirectEdit    Redirect = "edit"
	RedirectShow    Redirect = "show"
	RedirectCreate  Redirect = "create"
	RedirectNone    Redirect = "none"
)

// Or returns r, or fallback when r is the default.
func (r Redirect) Or(fallback Redirect) Redirect {
	if r == RedirectDefault {
		return fallback
	}
	return r
}

// Path builds the target path. ok is false when no navigation should happen.
func (r Redirect) Path(resource string, id core.Identifier) (string, bool) {
	base := "/" + url.PathEscape(resource)
	switch r {
	case RedirectNone, RedirectDefault:
		return "", false
	case RedirectList:
		return base, true
	case RedirectCreate:
		return base + "/create", true
	case RedirectEdit:
		return base + "/" + url.PathEscape(string(id)), true
	case RedirectShow:
		return base + "/" + url.PathEscape(string(id)) + "/show", true
	default:
		if strings.HasPrefix(string(r), "/") {
			return string(r), true
		}
		return "", false
	}
}

// Go performs the redirect on the router. The record, when given, travels
// as navigation state.
func Go(router Router, r Redirect, resource string, id core.Identifier, record core.Record) {
	if router == nil {
		return
	}
	path, ok := r.Path(resource, id)
	if !ok {
		return
	}
	var state map[string]any
	if record != nil {
		state = map[string]any{"record": map[string]any(record)}
	}
	router.Navigate(path, state)
}
