package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"backoffice/internal/app"
	"backoffice/internal/config"
)

// opener builds the app the commands run against.
type opener func(ctx context.Context) (*app.App, error)

func openFromEnv(ctx context.Context) (*app.App, error) {
	return app.New(ctx, config.Load())
}

type rootFlags struct {
	format string
}

func newRootCmd(open opener) *cobra.Command {
	flags := &rootFlags{}
	root := &cobra.Command{
		Use:   "adminctl",
		Short: "Operate the back office data from the command line",
		Long: `adminctl runs the list, reference, record and delete controllers
against the data provider configured through the environment (see .env).

Examples:
  # Second page of posts, newest first
  adminctl list posts --page 2 --sort published_at --order DESC

  # Options of a reference input pointing at users, keeping user 7
  adminctl choices users --value 7 --filter '{"q":"jo"}'

  # Delete a comment without the undo window
  adminctl delete comments 12`,
		SilenceUsage: true,
	}
	root.PersistentFlags().StringVarP(&flags.format, "format", "f", "json", "Output format: json|yaml")

	root.AddCommand(
		newResourcesCmd(open, flags),
		newListCmd(open, flags),
		newShowCmd(open, flags),
		newChoicesCmd(open, flags),
		newDeleteCmd(open, flags),
	)
	return root
}

// withApp opens the app with its workers running, runs fn, then commits
// pending mutations, stops the workers and closes the app.
func withApp(cmd *cobra.Command, open opener, fn func(ctx context.Context, a *app.App) error) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	a, err := open(ctx)
	if err != nil {
		return err
	}
	runCtx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	go func() {
		a.Run(runCtx)
		close(done)
	}()
	defer func() {
		a.Mutator.Flush()
		cancel()
		<-done
		a.Close()
	}()
	return fn(ctx, a)
}

// render writes v as indented JSON, or as YAML keyed like the JSON form.
func render(w io.Writer, format string, v any) error {
	switch format {
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	case "yaml":
		raw, err := json.Marshal(v)
		if err != nil {
			return err
		}
		var generic any
		if err := json.Unmarshal(raw, &generic); err != nil {
			return err
		}
		out, err := yaml.Marshal(generic)
		if err != nil {
			return err
		}
		_, err = w.Write(out)
		return err
	default:
		return fmt.Errorf("unknown format %q (json|yaml)", format)
	}
}
