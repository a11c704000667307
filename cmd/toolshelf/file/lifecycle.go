// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package file

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/bureau-foundation/toolshelf/cmd/toolshelf/cli"
)

type promoteParams struct {
	cli.WorkspaceFlags
	Name string `flag:"name,n" desc:"new filename (default: keep the current one)"`
}

func promoteCommand(out io.Writer) *cli.Command {
	var params promoteParams

	return &cli.Command{
		Name:        "promote",
		Summary:     "Make a temporary file permanent",
		Usage:       "toolshelf file promote <id> [--name <filename>]",
		Description: "Mark a file permanent so collection never removes it, optionally renaming it.",
		Params:      func() any { return &params },
		Run: func(ctx context.Context, args []string, logger *slog.Logger) error {
			if err := cli.RequireArgs(args, 1, "a file id"); err != nil {
				return err
			}
			return cli.WithWorkspace(ctx, params.WorkspaceFlags, logger, func(workspace *cli.Workspace) error {
				promoted, err := workspace.Library.MakeFilePermanentAndUpdate(ctx, args[0], params.Name)
				if err != nil {
					return err
				}
				if !promoted {
					fmt.Fprintf(out, "file %s not found\n", args[0])
					return &cli.ExitError{Code: 1}
				}
				fmt.Fprintf(out, "promoted %s\n", args[0])
				return nil
			})
		},
	}
}

type idsParams struct {
	cli.WorkspaceFlags
}

func removeCommand(out io.Writer) *cli.Command {
	var params idsParams

	return &cli.Command{
		Name:        "rm",
		Summary:     "Delete files",
		Usage:       "toolshelf file rm <id>...",
		Description: "Delete files regardless of lifecycle. Deleting a missing file is not an error.",
		Params:      func() any { return &params },
		Run: func(ctx context.Context, args []string, logger *slog.Logger) error {
			if len(args) == 0 {
				return fmt.Errorf("expected at least one file id")
			}
			return cli.WithWorkspace(ctx, params.WorkspaceFlags, logger, func(workspace *cli.Workspace) error {
				for _, id := range args {
					if err := workspace.Library.DeleteFile(ctx, id); err != nil {
						return err
					}
				}
				fmt.Fprintf(out, "deleted %d file(s)\n", len(args))
				return nil
			})
		},
	}
}

func cleanupCommand(out io.Writer) *cli.Command {
	var params idsParams

	return &cli.Command{
		Name:    "cleanup",
		Summary: "Delete the given files if they are still temporary",
		Usage:   "toolshelf file cleanup <id>...",
		Description: `Delete each listed file that is still temporary. Permanent and
missing files are left alone, so it is safe to pass every id a tool
ever created.`,
		Params: func() any { return &params },
		Run: func(ctx context.Context, args []string, logger *slog.Logger) error {
			if len(args) == 0 {
				return fmt.Errorf("expected at least one file id")
			}
			return cli.WithWorkspace(ctx, params.WorkspaceFlags, logger, func(workspace *cli.Workspace) error {
				if err := workspace.Library.CleanupOrphanedTemporaryFiles(ctx, args); err != nil {
					return err
				}
				fmt.Fprintf(out, "cleaned up %d candidate(s)\n", len(args))
				return nil
			})
		},
	}
}

func clearImagesCommand(out io.Writer) *cli.Command {
	var params idsParams

	return &cli.Command{
		Name:        "clear-images",
		Summary:     "Delete every permanent image",
		Description: "Delete every permanent image file. Temporary files are left for collection.",
		Params:      func() any { return &params },
		Run: func(ctx context.Context, args []string, logger *slog.Logger) error {
			if err := cli.RequireArgs(args, 0, "no arguments"); err != nil {
				return err
			}
			return cli.WithWorkspace(ctx, params.WorkspaceFlags, logger, func(workspace *cli.Workspace) error {
				count, err := workspace.Library.ClearAllImages(ctx)
				if err != nil {
					return err
				}
				fmt.Fprintf(out, "deleted %d image(s)\n", count)
				return nil
			})
		},
	}
}
