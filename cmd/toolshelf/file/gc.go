// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package file

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/bureau-foundation/toolshelf/cmd/toolshelf/cli"
	"github.com/bureau-foundation/toolshelf/lib/itde"
)

type gcParams struct {
	cli.WorkspaceFlags
	cli.JSONOutput
	OlderThan time.Duration `flag:"older-than" desc:"only collect files added at least this long ago" default:"1h"`
}

func gcCommand(out io.Writer) *cli.Command {
	var params gcParams

	return &cli.Command{
		Name:    "gc",
		Summary: "Collect temporary files no tool references",
		Description: `Delete temporary files that no tool's saved state references and that
were added before --older-than ago. Tools declare which state fields
hold file references in their outputConfig, which is how gc knows a
file is still in use.`,
		Params: func() any { return &params },
		Run: func(ctx context.Context, args []string, logger *slog.Logger) error {
			if err := cli.RequireArgs(args, 0, "no arguments"); err != nil {
				return err
			}
			if params.OlderThan < 0 {
				return fmt.Errorf("--older-than must not be negative")
			}
			return cli.WithWorkspace(ctx, params.WorkspaceFlags, logger, func(workspace *cli.Workspace) error {
				keep, err := itde.ReferencedFiles(ctx, workspace.Registry, workspace.States)
				if err != nil {
					return err
				}
				cutoff := workspace.Clock.Now().Add(-params.OlderThan)
				deleted, err := workspace.Library.SweepTemporaryFiles(ctx, keep, cutoff)
				if err != nil {
					return err
				}
				workspace.Logger.Debug("collected temporary files",
					"deleted", len(deleted), "referenced", len(keep), "cutoff", cutoff)

				if done, err := params.EmitJSON(out, deleted); done {
					return err
				}
				fmt.Fprintf(out, "collected %d temporary file(s)\n", len(deleted))
				return nil
			})
		},
	}
}
