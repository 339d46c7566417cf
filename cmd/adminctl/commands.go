package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"

	"github.com/spf13/cobra"

	"backoffice/internal/app"
	"backoffice/internal/controllers/list"
	"backoffice/internal/controllers/mutation"
	"backoffice/internal/controllers/record"
	"backoffice/internal/controllers/reference"
	"backoffice/internal/core"
	dp "backoffice/internal/dataprovider"
	"backoffice/internal/navigation"
	"backoffice/internal/notify"
	"backoffice/internal/resource"
)

// queryFlags are the list parameters shared by list and choices.
type queryFlags struct {
	page    int
	perPage int
	sort    string
	order   string
	filter  string
}

func (q *queryFlags) register(cmd *cobra.Command) {
	cmd.Flags().IntVar(&q.page, "page", 1, "Page number")
	cmd.Flags().IntVar(&q.perPage, "per-page", 0, "Records per page (default from config)")
	cmd.Flags().StringVar(&q.sort, "sort", "", "Sort field")
	cmd.Flags().StringVar(&q.order, "order", "ASC", "Sort order: ASC|DESC")
	cmd.Flags().StringVar(&q.filter, "filter", "", `Filter values as JSON, e.g. '{"status":"published"}'`)
}

func (q *queryFlags) parseFilter() (core.Filter, error) {
	if q.filter == "" {
		return core.Filter{}, nil
	}
	var f core.Filter
	if err := json.Unmarshal([]byte(q.filter), &f); err != nil {
		return nil, fmt.Errorf("--filter: %w", err)
	}
	return f, nil
}

func (q *queryFlags) sortPayload() (core.Sort, error) {
	order := core.SortOrder(q.order)
	if !order.Valid() {
		return core.Sort{}, fmt.Errorf("--order %q is not ASC or DESC", q.order)
	}
	return core.Sort{Field: q.sort, Order: order}, nil
}

// paramSetter is the part of a list or reference controller the query
// flags drive.
type paramSetter interface {
	SetPage(int)
	SetPerPage(int)
	SetSort(core.Sort)
}

func (q *queryFlags) apply(c paramSetter, setFilter func(core.Filter)) error {
	f, err := q.parseFilter()
	if err != nil {
		return err
	}
	s, err := q.sortPayload()
	if err != nil {
		return err
	}
	setFilter(f)
	if s.Field != "" {
		c.SetSort(s)
	}
	if q.perPage > 0 {
		c.SetPerPage(q.perPage)
	}
	c.SetPage(q.page)
	return nil
}

func newResourcesCmd(open opener, flags *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "resources",
		Short: "List the registered resource definitions",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withApp(cmd, open, func(_ context.Context, a *app.App) error {
				defs := a.Registry.Definitions()
				out := make([]resource.Definition, 0, len(defs))
				for _, d := range defs {
					out = append(out, d)
				}
				sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
				return render(cmd.OutOrStdout(), flags.format, out)
			})
		},
	}
}

func newListCmd(open opener, flags *rootFlags) *cobra.Command {
	var q queryFlags
	cmd := &cobra.Command{
		Use:   "list <resource>",
		Short: "Print one page of a resource",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, open, func(ctx context.Context, a *app.App) error {
				c, err := list.New(ctx, list.Options{
					Resource:              args[0],
					PerPage:               a.Cfg.Controllers.ListPerPage,
					Debounce:              a.Cfg.Controllers.ListDebounce,
					DisableAuthentication: true,
				}, list.Deps{Data: a.Provider, Selection: a.Selection})
				if err != nil {
					return err
				}
				defer c.Close()
				err = q.apply(c, func(f core.Filter) { c.SetFilters(f, nil, false) })
				if err != nil {
					return err
				}
				res := c.Load(ctx)
				if res.Error != nil {
					return res.Error
				}
				return render(cmd.OutOrStdout(), flags.format, res)
			})
		},
	}
	q.register(cmd)
	return cmd
}

func newShowCmd(open opener, flags *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "show <resource> <id>",
		Short: "Print one record",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, open, func(ctx context.Context, a *app.App) error {
				s, err := record.NewShow(ctx, record.ShowOptions{
					Resource:              args[0],
					ID:                    core.Identifier(args[1]),
					DisableAuthentication: true,
				}, record.Deps{Data: a.Provider, Registry: a.Registry})
				if err != nil {
					return err
				}
				res, err := s.Load(ctx)
				if err != nil {
					return err
				}
				if res.Error != nil {
					return res.Error
				}
				return render(cmd.OutOrStdout(), flags.format, res.Record)
			})
		},
	}
}

func newChoicesCmd(open opener, flags *rootFlags) *cobra.Command {
	var (
		q     queryFlags
		value string
	)
	cmd := &cobra.Command{
		Use:   "choices <reference>",
		Short: "Print the options of a reference input",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, open, func(ctx context.Context, a *app.App) error {
				opts := reference.InputOptions{Reference: args[0], PerPage: a.Cfg.Controllers.ReferencePerPage}
				if value != "" {
					opts.CurrentValue = value
				}
				in, err := reference.NewInput(ctx, opts, reference.Deps{Data: a.Provider})
				if err != nil {
					return err
				}
				defer in.Close()
				err = q.apply(in, func(f core.Filter) { in.SetFilters(f, false) })
				if err != nil {
					return err
				}
				res := in.Refetch(ctx)
				if res.Error != nil {
					return res.Error
				}
				return render(cmd.OutOrStdout(), flags.format, res)
			})
		},
	}
	q.register(cmd)
	cmd.Flags().StringVar(&value, "value", "", "Current value of the input")
	return cmd
}

func newDeleteCmd(open opener, flags *rootFlags) *cobra.Command {
	var mode string
	cmd := &cobra.Command{
		Use:   "delete <resource> <id>",
		Short: "Delete one record and drop it from the selection",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			m, err := dp.ParseMode(mode)
			if err != nil {
				return err
			}
			return withApp(cmd, open, func(ctx context.Context, a *app.App) error {
				rec, err := a.Provider.GetOne(ctx, args[0], dp.GetOneParams{ID: core.Identifier(args[1])})
				if err != nil {
					return err
				}
				notes := notify.NewRecorder(notify.Log{})
				del, err := mutation.NewDeleteWithConfirm(ctx, mutation.Options{
					Resource: args[0],
					Record:   rec,
					Mode:     m,
					Redirect: navigation.RedirectNone,
				}, mutation.Deps{Mutator: a.Mutator, Selection: a.Selection, Notifier: notes})
				if err != nil {
					return err
				}
				del.Open()
				del.Delete(ctx, nil)
				// undoable deletes commit when the app closes
				if n, ok := notes.Last(); ok && n.Type == notify.TypeWarning {
					return errors.New(n.Message)
				}
				return render(cmd.OutOrStdout(), flags.format, rec)
			})
		},
	}
	cmd.Flags().StringVar(&mode, "mode", string(dp.ModePessimistic), "Mutation mode: pessimistic|optimistic|undoable")
	return cmd
}
