// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package state

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"maps"
	"net/url"
	"strings"

	"github.com/bureau-foundation/toolshelf/cmd/toolshelf/cli"
	"github.com/bureau-foundation/toolshelf/lib/toolstate"
)

// fields is the state shape the CLI edits. Tools decode their own
// typed state from the same CBOR map.
type fields = map[string]any

func mount(ctx context.Context, workspace *cli.Workspace, target target) (*toolstate.Handle[fields], error) {
	debounce, err := workspace.Config.DebounceDuration()
	if err != nil {
		return nil, err
	}
	opts := toolstate.Options[fields]{
		Route:    target.route,
		Default:  fields{},
		Debounce: debounce,
		Clock:    workspace.Clock,
		Logger:   workspace.Logger,
	}
	if target.definition != nil {
		opts.Params = target.definition.URLStateParams
	}
	return toolstate.Mount(ctx, workspace.States, opts)
}

type editParams struct {
	cli.WorkspaceFlags
}

func setCommand(out io.Writer) *cli.Command {
	var params editParams

	return &cli.Command{
		Name:    "set",
		Summary: "Set one field of a tool's state",
		Usage:   "toolshelf state set <tool> <field> <value>",
		Description: `Set one field of a tool's saved state. The value is parsed as JSON
when it is valid JSON and stored as a string otherwise.`,
		Examples: []cli.Example{
			{
				Description: "Point the resizer's output at a stored file",
				Command:     `toolshelf state set image-resizer processedImages '["3f2a..."]'`,
			},
		},
		Params: func() any { return &params },
		Run: func(ctx context.Context, args []string, logger *slog.Logger) error {
			if err := cli.RequireArgs(args, 3, "a tool, a field and a value"); err != nil {
				return err
			}
			var value any
			if err := json.Unmarshal([]byte(args[2]), &value); err != nil {
				value = args[2]
			}
			return cli.WithWorkspace(ctx, params.WorkspaceFlags, logger, func(workspace *cli.Workspace) error {
				handle, err := mount(ctx, workspace, resolveTarget(workspace.Registry, args[0]))
				if err != nil {
					return err
				}
				next := maps.Clone(handle.State())
				if next == nil {
					next = fields{}
				}
				next[args[1]] = value
				handle.Save(next)
				if err := handle.Close(ctx); err != nil {
					return err
				}
				return cli.WriteJSON(out, handle.State())
			})
		},
	}
}

func seedCommand(out io.Writer) *cli.Command {
	var params editParams

	return &cli.Command{
		Name:    "seed",
		Summary: "Apply URL query parameters to a tool's state",
		Usage:   "toolshelf state seed <tool> <query>",
		Description: `Apply a URL query string to a tool's state the way opening a shared
link does. Only parameters the tool declares in urlStateParams are
applied, each converted to its declared type. Values that do not
parse are skipped.`,
		Params: func() any { return &params },
		Run: func(ctx context.Context, args []string, logger *slog.Logger) error {
			if err := cli.RequireArgs(args, 2, "a tool and a query string"); err != nil {
				return err
			}
			query, err := url.ParseQuery(strings.TrimPrefix(args[1], "?"))
			if err != nil {
				return fmt.Errorf("parsing query: %w", err)
			}
			return cli.WithWorkspace(ctx, params.WorkspaceFlags, logger, func(workspace *cli.Workspace) error {
				target := resolveTarget(workspace.Registry, args[0])
				if target.definition == nil {
					return fmt.Errorf("unknown tool %q", args[0])
				}
				handle, err := mount(ctx, workspace, target)
				if err != nil {
					return err
				}
				applied := handle.SeedFromQuery(query)
				if err := handle.Close(ctx); err != nil {
					return err
				}
				if !applied {
					logger.Info("no query parameters applied", "tool", args[0])
				}
				return cli.WriteJSON(out, handle.State())
			})
		},
	}
}

func clearCommand(out io.Writer) *cli.Command {
	var params editParams

	return &cli.Command{
		Name:    "clear",
		Summary: "Delete a tool's saved state",
		Usage:   "toolshelf state clear <tool>",
		Params:  func() any { return &params },
		Run: func(ctx context.Context, args []string, logger *slog.Logger) error {
			if err := cli.RequireArgs(args, 1, "a tool directive or route"); err != nil {
				return err
			}
			return cli.WithWorkspace(ctx, params.WorkspaceFlags, logger, func(workspace *cli.Workspace) error {
				target := resolveTarget(workspace.Registry, args[0])
				if err := workspace.States.Delete(ctx, target.route); err != nil {
					return err
				}
				fmt.Fprintf(out, "cleared %s\n", target.route)
				return nil
			})
		},
	}
}
