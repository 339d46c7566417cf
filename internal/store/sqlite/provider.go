package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/pressly/goose/v3"
	_ "modernc.org/sqlite" // registers the "sqlite" driver

	"backoffice/internal/core"
	dp "backoffice/internal/dataprovider"
	"backoffice/internal/store/sqlfilter"
	"backoffice/internal/store/sqlite/migrations"
)

var dialect = sqlfilter.Dialect{
	Placeholder: func(int) string { return "?" },
	Text: func(b *sqlfilter.Builder, path []string) string {
		return "CAST(json_extract(data, " + b.Arg(jsonPath(path)) + ") AS TEXT)"
	},
	Value: func(b *sqlfilter.Builder, path []string) string {
		return "json_extract(data, " + b.Arg(jsonPath(path)) + ")"
	},
	Bool: func(b *sqlfilter.Builder, path []string, v bool) string {
		want := "false"
		if v {
			want = "true"
		}
		return "json_type(data, " + b.Arg(jsonPath(path)) + ") = '" + want + "'"
	},
	Search: func(b *sqlfilter.Builder, needle string) string {
		return `lower(data) LIKE ` + b.Arg("%"+escapeLike(needle)+"%") + ` ESCAPE '\'`
	},
}

// Open opens the database at path. ":memory:" keeps a single connection so
// every query sees the same database.
func Open(path string) (*sql.DB, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite %s: %w", path, err)
	}
	if path == ":memory:" {
		db.SetMaxOpenConns(1)
	}
	return db, nil
}

// Migrate applies the embedded migrations.
func Migrate(ctx context.Context, db *sql.DB) error {
	goose.SetBaseFS(migrations.FS)
	if err := goose.SetDialect("sqlite3"); err != nil {
		return fmt.Errorf("set goose dialect: %w", err)
	}
	if err := goose.UpContext(ctx, db, "."); err != nil {
		return fmt.Errorf("apply migrations: %w", err)
	}
	return nil
}

// Provider stores every resource in the records table as JSON text.
type Provider struct {
	db *sql.DB
}

func NewProvider(db *sql.DB) *Provider { return &Provider{db: db} }

func (p *Provider) GetList(ctx context.Context, resource string, params dp.GetListParams) (core.Page, error) {
	page, err := p.list(ctx, resource, params.Filter, params.Sort, params.Pagination)
	return page, dp.Wrap("get_list", resource, err)
}

func (p *Provider) list(ctx context.Context, resource string, filter core.Filter, sort core.Sort, pg core.Pagination) (core.Page, error) {
	cb := sqlfilter.New(dialect)
	where, err := buildWhere(cb, resource, filter)
	if err != nil {
		return core.Page{}, err
	}
	var total int
	if err := p.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM records WHERE `+where, cb.Args()...).Scan(&total); err != nil {
		return core.Page{}, err
	}

	b := sqlfilter.New(dialect)
	if where, err = buildWhere(b, resource, filter); err != nil {
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
	rows, err := p.db.QueryContext(ctx, q, b.Args()...)
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
	rec, err := p.one(ctx, `SELECT data FROM records WHERE resource = ? AND id = ?`, resource, string(params.ID))
	return rec, dp.Wrap("get_one", resource, err)
}

func (p *Provider) GetMany(ctx context.Context, resource string, params dp.GetManyParams) ([]core.Record, error) {
	if len(params.IDs) == 0 {
		return []core.Record{}, nil
	}
	args := []any{resource}
	holders := make([]string, len(params.IDs))
	for i, id := range params.IDs {
		holders[i] = "?"
		args = append(args, string(id))
	}
	rows, err := p.db.QueryContext(ctx,
		`SELECT data FROM records WHERE resource = ? AND id IN (`+strings.Join(holders, ", ")+`)`, args...)
	if err != nil {
		return nil, dp.Wrap("get_many", resource, err)
	}
	recs, err := scanRecords(rows)
	if err != nil {
		return nil, dp.Wrap("get_many", resource, err)
	}
	byID := make(map[core.Identifier]core.Record, len(recs))
	for _, r := range recs {
		byID[r.ID()] = r
	}
	out := make([]core.Record, 0, len(recs))
	for _, id := range params.IDs {
		if r, ok := byID[id]; ok {
			out = append(out, r)
		}
	}
	return out, nil
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
	raw, err := json.Marshal(rec)
	if err != nil {
		return nil, dp.Wrap("create", resource, err)
	}
	if _, err := p.db.ExecContext(ctx, `INSERT INTO records (resource, id, data) VALUES (?, ?, ?)`,
		resource, string(rec.ID()), string(raw)); err != nil {
		return nil, dp.Wrap("create", resource, err)
	}
	return decode(raw)
}

func (p *Provider) Update(ctx context.Context, resource string, params dp.UpdateParams) (core.Record, error) {
	patch := params.Data.Clone()
	delete(patch, "id")
	raw, err := json.Marshal(patch)
	if err != nil {
		return nil, dp.Wrap("update", resource, err)
	}
	rec, err := p.one(ctx, `
		UPDATE records
		   SET data = json_patch(data, ?),
		       updated_at = strftime('%Y-%m-%dT%H:%M:%fZ', 'now')
		 WHERE resource = ? AND id = ?
		RETURNING data`,
		string(raw), resource, string(params.ID))
	return rec, dp.Wrap("update", resource, err)
}

func (p *Provider) Delete(ctx context.Context, resource string, params dp.DeleteParams) (core.Record, error) {
	rec, err := p.one(ctx, `DELETE FROM records WHERE resource = ? AND id = ? RETURNING data`,
		resource, string(params.ID))
	return rec, dp.Wrap("delete", resource, err)
}

func (p *Provider) one(ctx context.Context, query string, args ...any) (core.Record, error) {
	var raw string
	err := p.db.QueryRowContext(ctx, query, args...).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, dp.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return decode([]byte(raw))
}

func buildWhere(b *sqlfilter.Builder, resource string, filter core.Filter) (string, error) {
	head := "resource = " + b.Arg(resource)
	conds, err := b.Where(filter)
	if err != nil {
		return "", err
	}
	return strings.Join(append([]string{head}, conds...), " AND "), nil
}

func scanRecords(rows *sql.Rows) ([]core.Record, error) {
	defer rows.Close()
	out := []core.Record{}
	for rows.Next() {
		var raw string
		if err := rows.Scan(&raw); err != nil {
			return nil, err
		}
		rec, err := decode([]byte(raw))
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

func decode(raw []byte) (core.Record, error) {
	var rec core.Record
	if err := json.Unmarshal(raw, &rec); err != nil {
		return nil, fmt.Errorf("decode record: %w", err)
	}
	return rec, nil
}

func jsonPath(path []string) string {
	return "$." + strings.Join(path, ".")
}

func escapeLike(s string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(s)
}
