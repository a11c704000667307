// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package file

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/bureau-foundation/toolshelf/cmd/toolshelf/cli"
	"github.com/bureau-foundation/toolshelf/lib/blobstore"
	"github.com/bureau-foundation/toolshelf/lib/filelibrary"
)

type listParams struct {
	cli.WorkspaceFlags
	cli.JSONOutput
	Images    bool   `flag:"images"    desc:"list permanent images only"`
	Temporary bool   `flag:"temporary" desc:"list temporary files only"`
	Permanent bool   `flag:"permanent" desc:"list permanent files only"`
	Type      string `flag:"type,t"    desc:"MIME prefix filter, e.g. image/"`
	Limit     int    `flag:"limit"     desc:"maximum entries (default: library.list_limit, negative for all)"`
}

func listCommand(out io.Writer) *cli.Command {
	var params listParams

	return &cli.Command{
		Name:    "list",
		Summary: "List stored files, newest first",
		Params:  func() any { return &params },
		Run: func(ctx context.Context, args []string, logger *slog.Logger) error {
			if err := cli.RequireArgs(args, 0, "no arguments"); err != nil {
				return err
			}
			if params.Temporary && params.Permanent {
				return fmt.Errorf("--temporary and --permanent are mutually exclusive")
			}
			if params.Images && (params.Temporary || params.Type != "") {
				return fmt.Errorf("--images cannot be combined with --temporary or --type")
			}

			return cli.WithWorkspace(ctx, params.WorkspaceFlags, logger, func(workspace *cli.Workspace) error {
				limit := params.Limit
				if limit == 0 {
					limit = workspace.Config.Library.ListLimit
				}

				var files []*filelibrary.StoredFile
				var err error
				if params.Images {
					files, err = workspace.Library.ListImages(ctx, limit)
				} else {
					filter := blobstore.Filter{
						MimePrefix:     params.Type,
						Limit:          limit,
						WithoutPayload: true,
					}
					switch {
					case params.Temporary:
						filter.Lifecycle = blobstore.TemporaryOnly
					case params.Permanent:
						filter.Lifecycle = blobstore.PermanentOnly
					}
					files, err = workspace.Library.ListFiles(ctx, filter)
				}
				if err != nil {
					return err
				}

				views := make([]fileView, len(files))
				for i, file := range files {
					views[i] = newView(file)
				}
				if done, err := params.EmitJSON(out, views); done {
					return err
				}
				if len(files) == 0 {
					fmt.Fprintln(out, "no files")
					return nil
				}
				writeTable(out, files, workspace.Clock.Now())
				return nil
			})
		},
	}
}
