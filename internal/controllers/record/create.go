package record

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/rs/zerolog/log"

	"backoffice/internal/auth"
	"backoffice/internal/core"
	dp "backoffice/internal/dataprovider"
	"backoffice/internal/navigation"
	"backoffice/internal/notify"
	"backoffice/internal/resource"
)

type CreateOptions struct {
	Resource string
	// Record prefills the form. It defaults to the location.
	Record core.Record
	// Redirect defaults to edit, then show, then list, depending on the
	// views of the resource.
	Redirect              navigation.Redirect
	HasEdit               *bool
	HasShow               *bool
	Mode                  dp.Mode
	Transform             Transform
	OnSuccess             func(core.Record)
	OnError               func(error)
	DisableAuthentication bool
}

// Create saves new records.
type Create struct {
	middlewares
	resource string
	record   core.Record
	redirect navigation.Redirect
	opts     CreateOptions
	deps     Deps

	mu     sync.Mutex
	saving bool
}

func NewCreate(ctx context.Context, opts CreateOptions, deps Deps) (*Create, error) {
	name, err := resource.ResolveName(ctx, opts.Resource)
	if err != nil {
		return nil, err
	}
	deps = deps.withDefaults()
	if deps.Mutator == nil {
		return nil, fmt.Errorf("create %s: mutator is required", name)
	}
	if err := auth.Guard(ctx, deps.Auth, opts.DisableAuthentication); err != nil {
		return nil, err
	}
	if opts.Mode == "" {
		opts.Mode = dp.ModePessimistic
	}
	def := deps.Registry.Resolve(name, resource.Overrides{HasEdit: opts.HasEdit, HasShow: opts.HasShow})
	rec := opts.Record
	if rec == nil && deps.Router != nil {
		rec = RecordFromLocation(deps.Router.Location())
	}
	return &Create{
		resource: name,
		record:   rec,
		redirect: opts.Redirect.Or(DefaultRedirect(def.HasShow, def.HasEdit)),
		opts:     opts,
		deps:     deps,
	}, nil
}

// DefaultRedirect picks the view to open after a create.
func DefaultRedirect(hasShow, hasEdit bool) navigation.Redirect {
	switch {
	case hasEdit:
		return navigation.RedirectEdit
	case hasShow:
		return navigation.RedirectShow
	default:
		return navigation.RedirectList
	}
}

// RecordFromLocation reads a prefill record from the navigation state, or
// from a JSON "source" query parameter. Anything malformed yields nil.
func RecordFromLocation(loc navigation.Location) core.Record {
	switch rec := loc.State["record"].(type) {
	case core.Record:
		return rec
	case map[string]any:
		return core.Record(rec)
	}
	sources := loc.Query()["source"]
	switch len(sources) {
	case 0:
		return nil
	case 1:
	default:
		log.Error().Str("search", loc.Search).Msg(`create: repeated source parameter, pass a single stringified record (e.g. ?source={"title":"foo"})`)
		return nil
	}
	var rec core.Record
	if err := json.Unmarshal([]byte(sources[0]), &rec); err != nil {
		log.Error().Err(err).Str("search", loc.Search).Msg(`create: malformed source parameter, pass a stringified record (e.g. ?source={"title":"foo"})`)
		return nil
	}
	return rec
}

func (c *Create) Resource() string { return c.resource }

// Record returns the prefill record, or nil.
func (c *Create) Record() core.Record { return c.record }

func (c *Create) Redirect() navigation.Redirect { return c.redirect }

func (c *Create) Result() Result {
	c.mu.Lock()
	defer c.mu.Unlock()
	return Result{
		Resource:     c.resource,
		Record:       c.record,
		MutationMode: c.opts.Mode,
		Redirect:     c.redirect,
		Saving:       c.saving,
	}
}

func (c *Create) setSaving(v bool) {
	c.mu.Lock()
	c.saving = v
	c.mu.Unlock()
}

// Save creates a record from data. It returns an error only when the
// transform fails.
func (c *Create) Save(ctx context.Context, data core.Record, so SaveOptions) (string, error) {
	if t := pickTransform(so.Transform, c.opts.Transform); t != nil {
		out, err := t(data.Clone(), nil)
		if err != nil {
			log.Warn().Err(err).Str("resource", c.resource).Msg("create: transform failed")
			return "", err
		}
		data = out
	}

	success, failure := pickCallbacks(so, c.opts.OnSuccess, c.opts.OnError,
		func(rec core.Record) {
			c.deps.Notifier.Notify(notify.Notification{
				Message:     notify.MsgCreated,
				Type:        notify.TypeInfo,
				MessageArgs: map[string]any{"smart_count": 1},
			})
			navigation.Go(c.deps.Router, c.redirect, c.resource, rec.ID(), rec)
		},
		notifyFailure(c.deps.Notifier, c.resource, "create"),
	)

	save := c.wrap(func(ctx context.Context, data core.Record, mo dp.MutateOptions) string {
		return c.deps.Mutator.Create(ctx, c.resource, dp.CreateParams{Data: data}, mo)
	})
	c.setSaving(true)
	return save(ctx, data, dp.MutateOptions{
		Mode: c.opts.Mode,
		OnSuccess: func(rec core.Record) {
			c.setSaving(false)
			success(rec)
		},
		OnError: func(err error) {
			c.setSaving(false)
			failure(err)
		},
	}), nil
}
