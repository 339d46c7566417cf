package postgres

import (
	"context"
	"errors"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"backoffice/internal/core"
	dp "backoffice/internal/dataprovider"
	"backoffice/internal/store/sqlfilter"
)

var dialect = sqlfilter.Dialect{
	Placeholder: func(n int) string { return "$" + strconv.Itoa(n) },
	Text: func(b *sqlfilter.Builder, path []string) string {
		return "(data #>> " + b.Arg(path) + "::text[])"
	},
	Value: func(b *sqlfilter.Builder, path []string) string {
		return "(data #> " + b.Arg(path) + "::text[])"
	},
	Search: func(b *sqlfilter.Builder, needle string) string {
		return "data::text ILIKE " + b.Arg("%"+escapeLike(needle)+"%")
	},
	NullsFirst: "NULLS FIRST",
	NullsLast:  "NULLS LAST",
}

// Provider stores every resource in the records table as JSONB documents.
type Provider struct {
	db *pgxpool.Pool
}

func NewProvider(db *pgxpool.Pool) *Provider { return &Provider{db: db} }

// DB exposes the pool for health checks.
func (p *Provider) DB() *pgxpool.Pool { return p.db }

func (p *Provider) GetList(ctx context.Context, resource string, params dp.GetListParams) (core.Page, error) {
	page, err := p.list(ctx, resource, params.Filter, params.Sort, params.Pagination)
	return page, dp.Wrap("get_list", resource, err)
}

func (p *Provider) list(ctx context.Context, resource string, filter core.Filter, sort core.Sort, pg core.Pagination) (core.Page, error) {
	where, args, err := whereClause(resource, filter)
	if err != nil {
		return core.Page{}, err
	}
	var total int
	if err := p.db.QueryRow(ctx, `SELECT COUNT(*) FROM records WHERE `+where, args...).Scan(&total); err != nil {
		return core.Page{}, err
	}

	b := sqlfilter.New(dialect)
	where, err = buildWhere(b, resource, filter)
	if err != nil {
		return core.Page{}, err
	}
	order, err := b.OrderBy(sort)
	if err != nil {
		return core.Page{}, err
	}
	q := `SELECT data FROM records WHERE ` + where + ` ORDER BY ` + order
	if pg.PerPage > 0 {
		q += ` LIMIT ` + b.Arg(pg.PerPage) + ` OFFSET ` + b.Arg(pg.Offset())
	}
	rows, err := p.db.Query(ctx, q, b.Args()...)
	if err != nil {
		return core.Page{}, err
	}
	data, err := scanRecords(rows)
	if err != nil {
		return core.Page{}, err
	}
	return core.Page{Data: data, Total: core.IntPtr(total)}, nil
}

func (p *Provider) GetOne(ctx context.Context, resource string, params dp.GetOneParams) (core.Record, error) {
	var data map[string]any
	err := p.db.QueryRow(ctx, `SELECT data FROM records WHERE resource = $1 AND id = $2`,
		resource, string(params.ID)).Scan(&data)
	if errors.Is(err, pgx.ErrNoRows) {
		err = dp.ErrNotFound
	}
	if err != nil {
		return nil, dp.Wrap("get_one", resource, err)
	}
	return core.Record(data), nil
}

// GetMany returns the found records in the order of params.IDs.
func (p *Provider) GetMany(ctx context.Context, resource string, params dp.GetManyParams) ([]core.Record, error) {
	ids := make([]string, len(params.IDs))
	for i, id := range params.IDs {
		ids[i] = string(id)
	}
	rows, err := p.db.Query(ctx, `SELECT data FROM records WHERE resource = $1 AND id = ANY($2)`, resource, ids)
	if err != nil {
		return nil, dp.Wrap("get_many", resource, err)
	}
	recs, err := scanRecords(rows)
	if err != nil {
		return nil, dp.Wrap("get_many", resource, err)
	}
	return orderByIDs(recs, params.IDs), nil
}

func (p *Provider) GetManyReference(ctx context.Context, resource string, params dp.GetManyReferenceParams) (core.Page, error) {
	filter := params.Filter.Merge(core.Filter{params.Target: string(params.ID)})
	page, err := p.list(ctx, resource, filter, params.Sort, params.Pagination)
	return page, dp.Wrap("get_many_reference", resource, err)
}

func (p *Provider) Create(ctx context.Context, resource string, params dp.CreateParams) (core.Record, error) {
	rec := params.Data.Clone()
	if rec == nil {
		rec = core.Record{}
	}
	if rec.ID() == "" {
		rec["id"] = uuid.NewString()
	}
	var data map[string]any
	err := p.db.QueryRow(ctx,
		`INSERT INTO records (resource, id, data) VALUES ($1, $2, $3) RETURNING data`,
		resource, string(rec.ID()), map[string]any(rec),
	).Scan(&data)
	if err != nil {
		return nil, dp.Wrap("create", resource, err)
	}
	return core.Record(data), nil
}

func (p *Provider) Update(ctx context.Context, resource string, params dp.UpdateParams) (core.Record, error) {
	patch := params.Data.Clone()
	delete(patch, "id")
	var data map[string]any
	err := p.db.QueryRow(ctx, `
		UPDATE records
		   SET data = data || $3::jsonb,
		       updated_at = now()
		 WHERE resource = $1 AND id = $2
		RETURNING data`,
		resource, string(params.ID), map[string]any(patch),
	).Scan(&data)
	if errors.Is(err, pgx.ErrNoRows) {
		err = dp.ErrNotFound
	}
	if err != nil {
		return nil, dp.Wrap("update", resource, err)
	}
	return core.Record(data), nil
}

func (p *Provider) Delete(ctx context.Context, resource string, params dp.DeleteParams) (core.Record, error) {
	var data map[string]any
	err := p.db.QueryRow(ctx, `DELETE FROM records WHERE resource = $1 AND id = $2 RETURNING data`,
		resource, string(params.ID)).Scan(&data)
	if errors.Is(err, pgx.ErrNoRows) {
		err = dp.ErrNotFound
	}
	if err != nil {
		return nil, dp.Wrap("delete", resource, err)
	}
	return core.Record(data), nil
}

func whereClause(resource string, filter core.Filter) (string, []any, error) {
	b := sqlfilter.New(dialect)
	where, err := buildWhere(b, resource, filter)
	return where, b.Args(), err
}

func buildWhere(b *sqlfilter.Builder, resource string, filter core.Filter) (string, error) {
	head := "resource = " + b.Arg(resource)
	conds, err := b.Where(filter)
	if err != nil {
		return "", err
	}
	return strings.Join(append([]string{head}, conds...), " AND "), nil
}

func scanRecords(rows pgx.Rows) ([]core.Record, error) {
	defer rows.Close()
	out := []core.Record{}
	for rows.Next() {
		var data map[string]any
		if err := rows.Scan(&data); err != nil {
			return nil, err
		}
		out = append(out, core.Record(data))
	}
	return out, rows.Err()
}

func orderByIDs(recs []core.Record, ids []core.Identifier) []core.Record {
	byID := make(map[core.Identifier]core.Record, len(recs))
	for _, r := range recs {
		byID[r.ID()] = r
	}
	out := make([]core.Record, 0, len(recs))
	for _, id := range ids {
		if r, ok := byID[id]; ok {
			out = append(out, r)
		}
	}
	return out
}

func escapeLike(s string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(s)
}
