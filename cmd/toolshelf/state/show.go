// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package state

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/bureau-foundation/toolshelf/cmd/toolshelf/cli"
	"github.com/bureau-foundation/toolshelf/lib/codec"
)

type listParams struct {
	cli.WorkspaceFlags
	cli.JSONOutput
}

type routeView struct {
	Route     string    `json:"route"`
	Size      int       `json:"size"`
	UpdatedAt time.Time `json:"updated_at"`
}

func listCommand(out io.Writer) *cli.Command {
	var params listParams

	return &cli.Command{
		Name:    "list",
		Summary: "List routes with saved state",
		Params:  func() any { return &params },
		Run: func(ctx context.Context, args []string, logger *slog.Logger) error {
			if err := cli.RequireArgs(args, 0, "no arguments"); err != nil {
				return err
			}
			return cli.WithWorkspace(ctx, params.WorkspaceFlags, logger, func(workspace *cli.Workspace) error {
				routes, err := workspace.States.Routes(ctx)
				if err != nil {
					return err
				}
				views := make([]routeView, len(routes))
				for i, info := range routes {
					views[i] = routeView{
						Route:     info.Route,
						Size:      info.Size,
						UpdatedAt: info.UpdatedAt,
					}
				}
				if done, err := params.EmitJSON(out, views); done {
					return err
				}
				if len(routes) == 0 {
					fmt.Fprintln(out, "no saved state")
					return nil
				}
				tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
				fmt.Fprintln(tw, "ROUTE\tSIZE\tUPDATED")
				now := workspace.Clock.Now()
				for _, info := range routes {
					fmt.Fprintf(tw, "%s\t%s\t%s\n", info.Route,
						humanize.IBytes(uint64(info.Size)),
						humanize.RelTime(info.UpdatedAt, now, "ago", "from now"))
				}
				return tw.Flush()
			})
		},
	}
}

type showParams struct {
	cli.WorkspaceFlags
	Diagnostic bool `flag:"diag" desc:"print CBOR diagnostic notation instead of JSON"`
}

func showCommand(out io.Writer) *cli.Command {
	var params showParams

	return &cli.Command{
		Name:    "show",
		Summary: "Print a tool's saved state",
		Usage:   "toolshelf state show <tool> [--diag]",
		Description: `Print a tool's saved state as JSON. With --diag, print the stored CBOR
in diagnostic notation, which preserves the encoded types. Exits 1
when nothing is saved.`,
		Params: func() any { return &params },
		Run: func(ctx context.Context, args []string, logger *slog.Logger) error {
			if err := cli.RequireArgs(args, 1, "a tool directive or route"); err != nil {
				return err
			}
			return cli.WithWorkspace(ctx, params.WorkspaceFlags, logger, func(workspace *cli.Workspace) error {
				target := resolveTarget(workspace.Registry, args[0])

				if params.Diagnostic {
					data, found, err := workspace.States.Load(ctx, target.route)
					if err != nil {
						return err
					}
					if !found {
						fmt.Fprintf(out, "no state saved for %s\n", target.route)
						return &cli.ExitError{Code: 1}
					}
					diagnostic, err := codec.Diagnose(data)
					if err != nil {
						return err
					}
					fmt.Fprintln(out, diagnostic)
					return nil
				}

				fields, found, err := workspace.States.LoadRaw(ctx, target.route)
				if err != nil {
					return err
				}
				if !found {
					fmt.Fprintf(out, "no state saved for %s\n", target.route)
					return &cli.ExitError{Code: 1}
				}
				if !cli.IsTerminal(out) {
					return cli.WriteJSON(out, fields)
				}
				var buffer strings.Builder
				if err := cli.WriteJSON(&buffer, fields); err != nil {
					return err
				}
				_, err = io.WriteString(out, cli.HighlightJSON(buffer.String()))
				return err
			})
		},
	}
}
