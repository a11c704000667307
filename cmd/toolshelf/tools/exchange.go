// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package tools

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"text/tabwriter"

	"github.com/dustin/go-humanize"

	"github.com/bureau-foundation/toolshelf/cmd/toolshelf/cli"
	"github.com/bureau-foundation/toolshelf/lib/itde"
)

// itemView is the JSON shape of a resolved item. Inline data is
// carried as text since text and json are the only inline types.
type itemView struct {
	Kind     itde.ItemKind `json:"kind"`
	StateKey string        `json:"state_key"`
	MimeType string        `json:"mime_type"`
	FileID   string        `json:"file_id,omitempty"`
	Filename string        `json:"filename,omitempty"`
	Size     int64         `json:"size"`
	Data     string        `json:"data,omitempty"`
}

type resolvedView struct {
	Kind  itde.Kind  `json:"kind"`
	Items []itemView `json:"items"`
	Error string     `json:"error,omitempty"`
}

func newResolvedView(resolved itde.Resolved) resolvedView {
	view := resolvedView{Kind: resolved.Kind, Error: resolved.ErrorMessage, Items: []itemView{}}
	for _, item := range resolved.Items {
		size := item.Size
		if item.Kind == itde.ItemInline {
			size = int64(len(item.Data))
		}
		view.Items = append(view.Items, itemView{
			Kind:     item.Kind,
			StateKey: item.StateKey,
			MimeType: item.MimeType,
			FileID:   item.FileID,
			Filename: item.Filename,
			Size:     size,
			Data:     string(item.Data),
		})
	}
	return view
}

func writeResolved(w io.Writer, resolved itde.Resolved) error {
	switch resolved.Kind {
	case itde.KindNone:
		fmt.Fprintln(w, "nothing to transfer")
		return nil
	case itde.KindError:
		fmt.Fprintf(w, "error: %s\n", resolved.ErrorMessage)
		return nil
	}
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "FIELD\tKIND\tTYPE\tSIZE\tFILE")
	for _, item := range newResolvedView(resolved).Items {
		file := item.FileID
		if item.Filename != "" {
			file = fmt.Sprintf("%s (%s)", item.FileID, item.Filename)
		}
		if file == "" {
			file = "-"
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n", item.StateKey, item.Kind, item.MimeType,
			humanize.IBytes(uint64(item.Size)), file)
	}
	return tw.Flush()
}

type resolveParams struct {
	cli.WorkspaceFlags
	cli.JSONOutput
	For string `flag:"for" desc:"narrow the result to what this target tool accepts"`
}

func resolveCommand(out io.Writer) *cli.Command {
	var params resolveParams

	return &cli.Command{
		Name:    "resolve",
		Summary: "Show what a tool currently offers",
		Usage:   "toolshelf tools resolve <source> [--for <target>]",
		Description: `Resolve a tool's declared output against its saved state and print
the items a target would receive. Referenced files that no longer
exist are left out. Exits 1 when resolution fails.`,
		Params: func() any { return &params },
		Run: func(ctx context.Context, args []string, logger *slog.Logger) error {
			if err := cli.RequireArgs(args, 1, "a source tool directive"); err != nil {
				return err
			}
			return cli.WithWorkspace(ctx, params.WorkspaceFlags, logger, func(workspace *cli.Workspace) error {
				source, err := workspace.Registry.Lookup(args[0])
				if err != nil {
					return err
				}
				resolved := workspace.Resolver.Resolve(ctx, source.Directive, source.OutputConfig)
				if params.For != "" {
					target, err := workspace.Registry.Lookup(params.For)
					if err != nil {
						return err
					}
					resolved = resolved.Accepted(target.InputConfig)
				}
				return report(out, &params.JSONOutput, resolved)
			})
		},
	}
}

type sendParams struct {
	cli.WorkspaceFlags
	cli.JSONOutput
	StoreInline bool `flag:"store-inline" desc:"store inline items as temporary files owned by the target"`
}

func sendCommand(out io.Writer) *cli.Command {
	var params sendParams

	return &cli.Command{
		Name:    "send",
		Summary: "Signal a target tool and accept the transfer",
		Usage:   "toolshelf tools send <source> <target> [--store-inline]",
		Description: `Signal target that source has content for it, then accept the signal
the way the target's prompt would. Prints what the target received.
With --store-inline, text and JSON items are stored as temporary files
attributed to the target, so they can be handed on by file id.`,
		Params: func() any { return &params },
		Run: func(ctx context.Context, args []string, logger *slog.Logger) error {
			if err := cli.RequireArgs(args, 2, "a source and a target tool directive"); err != nil {
				return err
			}
			sourceDirective, targetDirective := args[0], args[1]

			return cli.WithWorkspace(ctx, params.WorkspaceFlags, logger, func(workspace *cli.Workspace) error {
				bus, err := workspace.NewBus()
				if err != nil {
					return err
				}
				var received itde.Resolved
				target, err := bus.Register(targetDirective, func(ctx context.Context, signal itde.Signal, resolved itde.Resolved) error {
					workspace.Logger.Debug("signal received",
						"source", signal.SourceDirective, "kind", string(resolved.Kind))
					if !resolved.OK() || !params.StoreInline {
						received = resolved
						return nil
					}
					stored := resolved
					stored.Items = make([]itde.Item, len(resolved.Items))
					for i, item := range resolved.Items {
						promoted, err := itde.PromoteInline(ctx, workspace.Library, item, targetDirective)
						if err != nil {
							return err
						}
						stored.Items[i] = promoted
					}
					received = stored
					return nil
				}, itde.TargetOptions{})
				if err != nil {
					return err
				}
				defer target.Unregister()

				if err := itde.NewSender(bus).SendToTool(ctx, nil, sourceDirective, targetDirective); err != nil {
					return err
				}
				if _, err := target.AcceptSignal(ctx, sourceDirective); err != nil {
					return err
				}
				return report(out, &params.JSONOutput, received)
			})
		},
	}
}

func report(out io.Writer, output *cli.JSONOutput, resolved itde.Resolved) error {
	if done, err := output.EmitJSON(out, newResolvedView(resolved)); done {
		if err == nil && resolved.Kind == itde.KindError {
			return &cli.ExitError{Code: 1}
		}
		return err
	}
	if err := writeResolved(out, resolved); err != nil {
		return err
	}
	if resolved.Kind == itde.KindError {
		return &cli.ExitError{Code: 1}
	}
	return nil
}
