// Package rest talks to a json-server style REST backend: list endpoints
// accept _sort, _order, _start and _end and report the total in the
// X-Total-Count header.
package rest

import (
	"context"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"

	"backoffice/internal/core"
	dp "backoffice/internal/dataprovider"
)

const TotalHeader = "X-Total-Count"

type Provider struct {
	client *HTTPClient
}

func NewProvider(client *HTTPClient) *Provider { return &Provider{client: client} }

func (p *Provider) GetList(ctx context.Context, resource string, params dp.GetListParams) (core.Page, error) {
	page, err := p.list(ctx, resource, params.Filter, params.Sort, params.Pagination)
	return page, dp.Wrap("get_list", resource, err)
}

func (p *Provider) list(ctx context.Context, resource string, filter core.Filter, s core.Sort, pg core.Pagination) (core.Page, error) {
	q := url.Values{}
	flatten(q, "", filter)
	if s.Field != "" {
		q.Set("_sort", s.Field)
		q.Set("_order", strings.ToLower(string(s.Order)))
	}
	if pg.PerPage > 0 {
		q.Set("_start", strconv.Itoa(pg.Offset()))
		q.Set("_end", strconv.Itoa(pg.Offset()+pg.PerPage))
	}
	resp, err := p.client.Do(ctx, http.MethodGet, "/"+url.PathEscape(resource), q, nil)
	if err != nil {
		return core.Page{}, err
	}
	if !resp.IsSuccess() {
		return core.Page{}, statusError(resp)
	}
	var data []core.Record
	if err := resp.UnmarshalJSON(&data); err != nil {
		return core.Page{}, err
	}
	if data == nil {
		data = []core.Record{}
	}
	page := core.Page{Data: data}
	if h := resp.Headers.Get(TotalHeader); h != "" {
		if n, err := strconv.Atoi(h); err == nil {
			page.Total = core.IntPtr(n)
		}
	}
	return page, nil
}

func (p *Provider) GetOne(ctx context.Context, resource string, params dp.GetOneParams) (core.Record, error) {
	rec, err := p.record(ctx, http.MethodGet, resource, params.ID, nil)
	return rec, dp.Wrap("get_one", resource, err)
}

func (p *Provider) GetMany(ctx context.Context, resource string, params dp.GetManyParams) ([]core.Record, error) {
	ids := make([]any, len(params.IDs))
	for i, id := range params.IDs {
		ids[i] = string(id)
	}
	page, err := p.list(ctx, resource, core.Filter{"id": ids}, core.Sort{}, core.Pagination{})
	if err != nil {
		return nil, dp.Wrap("get_many", resource, err)
	}
	return page.Data, nil
}

func (p *Provider) GetManyReference(ctx context.Context, resource string, params dp.GetManyReferenceParams) (core.Page, error) {
	filter := params.Filter.Merge(core.Filter{params.Target: string(params.ID)})
	page, err := p.list(ctx, resource, filter, params.Sort, params.Pagination)
	return page, dp.Wrap("get_many_reference", resource, err)
}

func (p *Provider) Create(ctx context.Context, resource string, params dp.CreateParams) (core.Record, error) {
	resp, err := p.client.Do(ctx, http.MethodPost, "/"+url.PathEscape(resource), nil, params.Data)
	if err != nil {
		return nil, dp.Wrap("create", resource, err)
	}
	rec, err := decodeRecord(resp)
	if err != nil {
		return nil, dp.Wrap("create", resource, err)
	}
	if rec.ID() == "" {
		// Some backends answer 201 with an empty body.
		rec = params.Data.Clone()
	}
	return rec, nil
}

func (p *Provider) Update(ctx context.Context, resource string, params dp.UpdateParams) (core.Record, error) {
	rec, err := p.record(ctx, http.MethodPut, resource, params.ID, params.Data)
	return rec, dp.Wrap("update", resource, err)
}

func (p *Provider) Delete(ctx context.Context, resource string, params dp.DeleteParams) (core.Record, error) {
	rec, err := p.record(ctx, http.MethodDelete, resource, params.ID, nil)
	if err != nil {
		return nil, dp.Wrap("delete", resource, err)
	}
	if rec.ID() == "" && params.PreviousData != nil {
		rec = params.PreviousData
	}
	return rec, nil
}

func (p *Provider) record(ctx context.Context, method, resource string, id core.Identifier, payload any) (core.Record, error) {
	endpoint := "/" + url.PathEscape(resource) + "/" + url.PathEscape(string(id))
	resp, err := p.client.Do(ctx, method, endpoint, nil, payload)
	if err != nil {
		return nil, err
	}
	return decodeRecord(resp)
}

func decodeRecord(resp *Response) (core.Record, error) {
	if resp.StatusCode == http.StatusNotFound {
		return nil, dp.ErrNotFound
	}
	if !resp.IsSuccess() {
		return nil, statusError(resp)
	}
	rec := core.Record{}
	if len(resp.Body) == 0 {
		return rec, nil
	}
	if err := resp.UnmarshalJSON(&rec); err != nil {
		return nil, err
	}
	return rec, nil
}

// flatten writes filter as query parameters. Nested maps use dotted keys and
// slices repeat the key.
func flatten(q url.Values, prefix string, filter map[string]any) {
	keys := make([]string, 0, len(filter))
	for k := range filter {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		key := k
		if prefix != "" {
			key = prefix + "." + k
		}
		switch v := filter[k].(type) {
		case nil:
		case map[string]any:
			flatten(q, key, v)
		case core.Filter:
			flatten(q, key, v)
		case []any:
			for _, item := range v {
				q.Add(key, string(core.IDOf(item)))
			}
		case []string:
			for _, item := range v {
				q.Add(key, item)
			}
		default:
			q.Set(key, string(core.IDOf(v)))
		}
	}
}
