package memory

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"backoffice/internal/core"
	dp "backoffice/internal/dataprovider"
)

// Provider keeps every resource in process memory. Records are copied on the
// way in and out.
type Provider struct {
	mu        sync.RWMutex
	resources map[string][]core.Record
	version   uint64
}

// New creates a provider seeded with data, keyed by resource name.
func New(data map[string][]core.Record) *Provider {
	p := &Provider{resources: make(map[string][]core.Record)}
	p.Restore(data)
	return p
}

func (p *Provider) GetList(_ context.Context, resource string, params dp.GetListParams) (core.Page, error) {
	p.mu.RLock()
	recs := cloneAll(p.resources[resource])
	p.mu.RUnlock()
	return dp.ApplyList(recs, params), nil
}

func (p *Provider) GetOne(_ context.Context, resource string, params dp.GetOneParams) (core.Record, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if i := p.indexLocked(resource, params.ID); i >= 0 {
		return p.resources[resource][i].Clone(), nil
	}
	return nil, dp.Wrap("get_one", resource, dp.ErrNotFound)
}

// GetMany returns the records found in the order of params.IDs. Unknown ids
// are skipped.
func (p *Provider) GetMany(_ context.Context, resource string, params dp.GetManyParams) ([]core.Record, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	out := make([]core.Record, 0, len(params.IDs))
	for _, id := range params.IDs {
		if i := p.indexLocked(resource, id); i >= 0 {
			out = append(out, p.resources[resource][i].Clone())
		}
	}
	return out, nil
}

func (p *Provider) GetManyReference(ctx context.Context, resource string, params dp.GetManyReferenceParams) (core.Page, error) {
	filter := params.Filter.Merge(core.Filter{params.Target: string(params.ID)})
	return p.GetList(ctx, resource, dp.GetListParams{
		Pagination: params.Pagination,
		Sort:       params.Sort,
		Filter:     filter,
	})
}

// Create stores a copy of params.Data. A missing id is replaced by a UUID.
func (p *Provider) Create(_ context.Context, resource string, params dp.CreateParams) (core.Record, error) {
	rec := params.Data.Clone()
	if rec == nil {
		rec = core.Record{}
	}
	if rec.ID() == "" {
		rec["id"] = uuid.NewString()
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.indexLocked(resource, rec.ID()) >= 0 {
		return nil, dp.Wrap("create", resource, errDuplicate(rec.ID()))
	}
	p.resources[resource] = append(p.resources[resource], rec)
	p.version++
	return rec.Clone(), nil
}

// Update merges params.Data into the stored record.
func (p *Provider) Update(_ context.Context, resource string, params dp.UpdateParams) (core.Record, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	i := p.indexLocked(resource, params.ID)
	if i < 0 {
		return nil, dp.Wrap("update", resource, dp.ErrNotFound)
	}
	rec := p.resources[resource][i].Clone()
	for k, v := range params.Data {
		if k == "id" {
			continue
		}
		rec[k] = v
	}
	p.resources[resource][i] = rec
	p.version++
	return rec.Clone(), nil
}

func (p *Provider) Delete(_ context.Context, resource string, params dp.DeleteParams) (core.Record, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	i := p.indexLocked(resource, params.ID)
	if i < 0 {
		return nil, dp.Wrap("delete", resource, dp.ErrNotFound)
	}
	recs := p.resources[resource]
	removed := recs[i]
	p.resources[resource] = append(recs[:i:i], recs[i+1:]...)
	p.version++
	return removed, nil
}

// Snapshot returns a deep copy of every resource and the version it was
// taken at.
func (p *Provider) Snapshot() (map[string][]core.Record, uint64) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	out := make(map[string][]core.Record, len(p.resources))
	for name, recs := range p.resources {
		out[name] = cloneAll(recs)
	}
	return out, p.version
}

// Version increases with every write.
func (p *Provider) Version() uint64 {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.version
}

// Restore replaces the content of the provider.
func (p *Provider) Restore(data map[string][]core.Record) {
	next := make(map[string][]core.Record, len(data))
	for name, recs := range data {
		next[name] = cloneAll(recs)
	}
	p.mu.Lock()
	p.resources = next
	p.mu.Unlock()
}

func (p *Provider) indexLocked(resource string, id core.Identifier) int {
	for i, r := range p.resources[resource] {
		if r.ID() == id {
			return i
		}
	}
	return -1
}

func cloneAll(recs []core.Record) []core.Record {
	out := make([]core.Record, len(recs))
	for i, r := range recs {
		out[i] = r.Clone()
	}
	return out
}

type errDuplicate core.Identifier

func (e errDuplicate) Error() string {
	return "record " + string(e) + " already exists"
}
