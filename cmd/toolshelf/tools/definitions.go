// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package tools

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"text/tabwriter"

	"github.com/bureau-foundation/toolshelf/cmd/toolshelf/cli"
	"github.com/bureau-foundation/toolshelf/lib/config"
	"github.com/bureau-foundation/toolshelf/lib/tooldef"
)

type listParams struct {
	cli.WorkspaceFlags
	cli.JSONOutput
}

type toolView struct {
	Directive string `json:"directive"`
	Title     string `json:"title"`
	Route     string `json:"route"`
	Offers    bool   `json:"offers"`
	Receives  bool   `json:"receives"`
}

func newToolView(definition *tooldef.Definition) toolView {
	return toolView{
		Directive: definition.Directive,
		Title:     definition.Title,
		Route:     definition.Route,
		Offers:    definition.Offers(),
		Receives:  definition.Receives(),
	}
}

func writeTools(w io.Writer, definitions []*tooldef.Definition) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "DIRECTIVE\tTITLE\tROUTE\tEXCHANGE")
	for _, definition := range definitions {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", definition.Directive, definition.Title, definition.Route, exchange(definition))
	}
	return tw.Flush()
}

func exchange(definition *tooldef.Definition) string {
	var roles []string
	if definition.Offers() {
		roles = append(roles, "offers")
	}
	if definition.Receives() {
		roles = append(roles, "receives")
	}
	if len(roles) == 0 {
		return "-"
	}
	return strings.Join(roles, ",")
}

func listCommand(out io.Writer) *cli.Command {
	var params listParams

	return &cli.Command{
		Name:    "list",
		Summary: "List known tools",
		Params:  func() any { return &params },
		Run: func(ctx context.Context, args []string, logger *slog.Logger) error {
			if err := cli.RequireArgs(args, 0, "no arguments"); err != nil {
				return err
			}
			return cli.WithWorkspace(ctx, params.WorkspaceFlags, logger, func(workspace *cli.Workspace) error {
				definitions := workspace.Registry.All()
				views := make([]toolView, len(definitions))
				for i, definition := range definitions {
					views[i] = newToolView(definition)
				}
				if done, err := params.EmitJSON(out, views); done {
					return err
				}
				if len(definitions) == 0 {
					fmt.Fprintf(out, "no tools defined in %s\n", workspace.Config.Paths.Tools)
					return nil
				}
				return writeTools(out, definitions)
			})
		},
	}
}

type showParams struct {
	cli.WorkspaceFlags
	cli.JSONOutput
	Width int `flag:"width" desc:"wrap the description at this many columns" default:"80"`
}

func showCommand(out io.Writer) *cli.Command {
	var params showParams

	return &cli.Command{
		Name:    "show",
		Summary: "Describe a tool",
		Usage:   "toolshelf tools show <directive> [--json]",
		Description: `Describe a tool: its route, what it exchanges with other tools, the
URL parameters it reads, and its markdown description rendered for
the terminal. With --json, print the definition as stored.`,
		Params: func() any { return &params },
		Run: func(ctx context.Context, args []string, logger *slog.Logger) error {
			if err := cli.RequireArgs(args, 1, "a tool directive"); err != nil {
				return err
			}
			return cli.WithWorkspace(ctx, params.WorkspaceFlags, logger, func(workspace *cli.Workspace) error {
				definition, err := workspace.Registry.Lookup(args[0])
				if err != nil {
					return err
				}
				if done, err := params.EmitJSON(out, definition); done {
					return err
				}
				writeDefinition(out, definition, params.Width, cli.IsTerminal(out))
				return nil
			})
		},
	}
}

func writeDefinition(w io.Writer, definition *tooldef.Definition, width int, color bool) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintf(tw, "Directive:\t%s\n", definition.Directive)
	fmt.Fprintf(tw, "Title:\t%s\n", definition.Title)
	fmt.Fprintf(tw, "Route:\t%s\n", definition.Route)
	if definition.Receives() {
		fmt.Fprintf(tw, "Accepts:\t%s\n", strings.Join(definition.InputConfig.AcceptsMimeTypes, ", "))
	}
	if definition.Offers() {
		for _, content := range definition.OutputConfig.TransferableContent {
			fmt.Fprintf(tw, "Offers:\t%s (%s, %s)\n", content.StateKey, content.DataType, content.EffectiveMimeType())
		}
	}
	for _, param := range definition.URLStateParams {
		kind := string(param.Type)
		if param.Type == tooldef.ParamEnum {
			kind += " " + strings.Join(param.Values, "|")
		}
		fmt.Fprintf(tw, "Param:\t?%s= -> %s (%s)\n", param.ParamName, param.StateKey, kind)
	}
	tw.Flush()

	if definition.Description != "" {
		fmt.Fprintf(w, "\n%s\n", cli.RenderMarkdown(definition.Description, width, color))
	}
}

func targetsCommand(out io.Writer) *cli.Command {
	var params listParams

	return &cli.Command{
		Name:    "targets",
		Summary: "List tools that can receive a tool's output",
		Usage:   "toolshelf tools targets <directive>",
		Params:  func() any { return &params },
		Run: func(ctx context.Context, args []string, logger *slog.Logger) error {
			if err := cli.RequireArgs(args, 1, "a tool directive"); err != nil {
				return err
			}
			return cli.WithWorkspace(ctx, params.WorkspaceFlags, logger, func(workspace *cli.Workspace) error {
				targets, err := workspace.Registry.CompatibleTargets(args[0])
				if err != nil {
					return err
				}
				views := make([]toolView, len(targets))
				for i, definition := range targets {
					views[i] = newToolView(definition)
				}
				if done, err := params.EmitJSON(out, views); done {
					return err
				}
				if len(targets) == 0 {
					fmt.Fprintf(out, "no tool accepts the output of %s\n", args[0])
					return nil
				}
				return writeTools(out, targets)
			})
		},
	}
}

type validateParams struct {
	ConfigPath string `flag:"config" desc:"path to toolshelf.yaml (default $TOOLSHELF_CONFIG, then built-in defaults)"`
}

func validateCommand(out io.Writer) *cli.Command {
	var params validateParams

	return &cli.Command{
		Name:    "validate",
		Summary: "Check tool definition files",
		Usage:   "toolshelf tools validate [dir]",
		Description: `Parse and check every tool definition in dir (default: paths.tools).
Reports every problem found, not just the first. Exits 1 when any
definition is invalid.`,
		Params: func() any { return &params },
		Run: func(ctx context.Context, args []string, logger *slog.Logger) error {
			if len(args) > 1 {
				return fmt.Errorf("unexpected argument %q", args[1])
			}
			dir := ""
			if len(args) == 1 {
				dir = args[0]
			} else {
				cfg, err := config.Discover(params.ConfigPath)
				if err != nil {
					return fmt.Errorf("loading config: %w", err)
				}
				dir = cfg.Paths.Tools
			}

			registry, err := tooldef.LoadDir(dir)
			if err != nil {
				for _, problem := range flatten(err) {
					fmt.Fprintln(out, problem)
				}
				return &cli.ExitError{Code: 1}
			}
			fmt.Fprintf(out, "%d tool definition(s) valid\n", len(registry.All()))
			return nil
		},
	}
}

// flatten splits joined errors into one message per line.
func flatten(err error) []string {
	var messages []string
	for _, line := range strings.Split(err.Error(), "\n") {
		if line != "" {
			messages = append(messages, line)
		}
	}
	return messages
}
