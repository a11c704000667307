// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package file

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/bureau-foundation/toolshelf/cmd/toolshelf/cli"
)

type getParams struct {
	cli.WorkspaceFlags
	cli.JSONOutput
	Output    string `flag:"output,o"  desc:"write the file bytes to this path (- for stdout)"`
	Thumbnail bool   `flag:"thumbnail" desc:"with --output, write the thumbnail instead of the file"`
}

func getCommand(out io.Writer) *cli.Command {
	var params getParams

	return &cli.Command{
		Name:    "get",
		Summary: "Show a file or write its bytes",
		Usage:   "toolshelf file get <id> [flags]",
		Description: `Show a stored file's metadata, or with --output write its bytes.
Exits 1 without an error message when the file does not exist.`,
		Params: func() any { return &params },
		Run: func(ctx context.Context, args []string, logger *slog.Logger) error {
			if err := cli.RequireArgs(args, 1, "a file id"); err != nil {
				return err
			}
			if params.Thumbnail && params.Output == "" {
				return fmt.Errorf("--thumbnail requires --output")
			}
			return cli.WithWorkspace(ctx, params.WorkspaceFlags, logger, func(workspace *cli.Workspace) error {
				file, err := workspace.Library.GetFile(ctx, args[0])
				if err != nil {
					return err
				}
				if file == nil {
					fmt.Fprintf(out, "file %s not found\n", args[0])
					return &cli.ExitError{Code: 1}
				}

				if params.Output != "" {
					data := file.Blob
					if params.Thumbnail {
						if !file.HasThumbnail() {
							return fmt.Errorf("file %s has no thumbnail", file.ID)
						}
						data = file.ThumbnailBlob
					}
					if params.Output == "-" {
						_, err := out.Write(data)
						return err
					}
					return os.WriteFile(params.Output, data, 0644)
				}

				if done, err := params.EmitJSON(out, newView(file)); done {
					return err
				}
				writeDetail(out, file)
				return nil
			})
		},
	}
}
