package main

import (
	"context"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"mercator-hq/arbiter/pkg/cli"
	"mercator-hq/arbiter/pkg/codec"
	"mercator-hq/arbiter/pkg/model"
	"mercator-hq/arbiter/pkg/registry"
)

func newRegistryCommand(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "registry",
		Short: "Manage versioned workflow definitions",
		Long: `Manage workflow versions in the registry at registry.path.

A workflow version moves draft -> published -> archived. Only drafts can
be edited. Publishing validates the draft and archives the version that
was published before it, so at most one version is live.

Subcommands:
  create       - store a definition file as version 1 (draft)
  update       - replace the content of a draft version
  new-version  - copy the latest version into a new draft
  publish      - publish a draft version
  archive      - archive a draft or published version
  list         - list versions
  show         - print a stored version`,
	}
	cmd.AddCommand(
		newRegistryCreateCommand(a),
		newRegistryUpdateCommand(a),
		newRegistryNewVersionCommand(a),
		newRegistryTransitionCommand(a, "publish", "Publish a draft version", (*registry.Registry).Publish),
		newRegistryTransitionCommand(a, "archive", "Archive a draft or published version", (*registry.Registry).Archive),
		newRegistryListCommand(a),
		newRegistryShowCommand(a),
	)
	return cmd
}

// versionOutput reports a stored version after a change.
type versionOutput struct {
	Action  string       `json:"action"`
	ID      string       `json:"id"`
	Name    string       `json:"name"`
	Version int          `json:"version"`
	Status  model.Status `json:"status"`
}

func (o *versionOutput) WriteText(w io.Writer) error {
	_, err := fmt.Fprintf(w, "✓ %s %s v%d (%s)\n", o.Action, o.ID, o.Version, o.Status)
	return err
}

func newVersionOutput(action string, def *model.WorkflowDefinition) *versionOutput {
	return &versionOutput{Action: action, ID: def.ID, Name: def.Name, Version: def.Version, Status: def.Status}
}

// withRegistry opens the registry for the duration of fn.
func (a *app) withRegistry(name string, fn func(reg *registry.Registry) error) error {
	reg, err := a.openRegistry()
	if err != nil {
		return cli.NewCommandError(name, err)
	}
	defer reg.Close()
	if err := fn(reg); err != nil {
		return cli.NewCommandError(name, err)
	}
	return nil
}

func newRegistryCreateCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "create <file>",
		Short: "Store a definition file as a new draft workflow",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			def, err := a.decoder().ReadWorkflowFile(args[0])
			if err != nil {
				return cli.NewCommandError("registry create", err)
			}
			return a.withRegistry("registry create", func(reg *registry.Registry) error {
				created, err := reg.Create(cmd.Context(), def)
				if err != nil {
					return err
				}
				return a.print(cmd, newVersionOutput("Created", created))
			})
		},
	}
}

func newRegistryUpdateCommand(a *app) *cobra.Command {
	var version int
	cmd := &cobra.Command{
		Use:   "update <file>",
		Short: "Replace the content of a draft version",
		Long: `Replace a draft with the content of a definition file. The workflow id
comes from the file; the version from --version, or from the file when
--version is not given.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			def, err := a.decoder().ReadWorkflowFile(args[0])
			if err != nil {
				return cli.NewCommandError("registry update", err)
			}
			if version > 0 {
				def.Version = version
			}
			return a.withRegistry("registry update", func(reg *registry.Registry) error {
				updated, err := reg.UpdateDraft(cmd.Context(), def)
				if err != nil {
					return err
				}
				return a.print(cmd, newVersionOutput("Updated", updated))
			})
		},
	}
	cmd.Flags().IntVar(&version, "version", 0, "draft version to replace")
	return cmd
}

func newRegistryNewVersionCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "new-version <id>",
		Short: "Copy the latest version into a new draft",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withRegistry("registry new-version", func(reg *registry.Registry) error {
				next, err := reg.NewVersion(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				return a.print(cmd, newVersionOutput("Created", next))
			})
		},
	}
}

type transitionFunc func(reg *registry.Registry, ctx context.Context, id string, version int) (*model.WorkflowDefinition, error)

func newRegistryTransitionCommand(a *app, use, short string, transition transitionFunc) *cobra.Command {
	name := "registry " + use
	return &cobra.Command{
		Use:   use + " <id> <version>",
		Short: short,
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			version, err := strconv.Atoi(args[1])
			if err != nil || version < 1 {
				return cli.NewUsageError(name, fmt.Errorf("invalid version %q", args[1]))
			}
			return a.withRegistry(name, func(reg *registry.Registry) error {
				def, err := transition(reg, cmd.Context(), args[0], version)
				if err != nil {
					return err
				}
				action := "Published"
				if def.Status == model.StatusArchived {
					action = "Archived"
				}
				return a.print(cmd, newVersionOutput(action, def))
			})
		},
	}
}

// entryList is the printed form of registry list.
type entryList struct {
	Entries []registry.Entry `json:"entries"`
}

func (l *entryList) WriteText(w io.Writer) error {
	if len(l.Entries) == 0 {
		_, err := fmt.Fprintln(w, "No workflows in registry")
		return err
	}
	for _, e := range l.Entries {
		fmt.Fprintf(w, "%s v%d  %-9s %s  (updated %s)\n", e.ID, e.Version, e.Status, e.Name, e.UpdatedAt.Format(time.RFC3339))
	}
	return nil
}

func (l *entryList) Header() []string {
	return []string{"ID", "VERSION", "STATUS", "NAME", "UPDATED"}
}

func (l *entryList) Rows() [][]string {
	rows := make([][]string, 0, len(l.Entries))
	for _, e := range l.Entries {
		rows = append(rows, []string{e.ID, strconv.Itoa(e.Version), string(e.Status), e.Name, e.UpdatedAt.Format(time.RFC3339)})
	}
	return rows
}

func newRegistryListCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "list [id]",
		Short: "List workflow versions",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id := ""
			if len(args) == 1 {
				id = args[0]
			}
			return a.withRegistry("registry list", func(reg *registry.Registry) error {
				entries, err := reg.List(cmd.Context(), id)
				if err != nil {
					return err
				}
				if entries == nil {
					entries = []registry.Entry{}
				}
				return a.print(cmd, &entryList{Entries: entries})
			})
		},
	}
}

func newRegistryShowCommand(a *app) *cobra.Command {
	var (
		version int
		format  string
	)
	cmd := &cobra.Command{
		Use:   "show <id>",
		Short: "Print a stored version as YAML or JSON",
		Long: `Print a stored workflow version. Without --version the published
version is shown.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := codec.ParseFormat(format)
			if err != nil {
				return cli.NewUsageError("registry show", err)
			}
			return a.withRegistry("registry show", func(reg *registry.Registry) error {
				var def *model.WorkflowDefinition
				if version > 0 {
					def, err = reg.Get(cmd.Context(), args[0], version)
				} else {
					def, err = reg.Published(cmd.Context(), args[0])
				}
				if err != nil {
					return err
				}
				data, err := codec.EncodeWorkflow(def, f)
				if err != nil {
					return err
				}
				_, err = cmd.OutOrStdout().Write(data)
				return err
			})
		},
	}
	cmd.Flags().IntVar(&version, "version", 0, "version to show (default: published)")
	cmd.Flags().StringVar(&format, "format", "yaml", "output format: yaml, json")
	return cmd
}
