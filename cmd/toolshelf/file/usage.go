// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package file

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"text/tabwriter"

	"github.com/dustin/go-humanize"

	"github.com/bureau-foundation/toolshelf/cmd/toolshelf/cli"
)

type usageParams struct {
	cli.WorkspaceFlags
	cli.JSONOutput
}

type usageView struct {
	TemporaryCount int    `json:"temporary_count"`
	TemporaryBytes int64  `json:"temporary_bytes"`
	PermanentCount int    `json:"permanent_count"`
	PermanentBytes int64  `json:"permanent_bytes"`
	ThumbnailBytes int64  `json:"thumbnail_bytes"`
	LimitBytes     int64  `json:"limit_bytes,omitempty"`
	DiskFreeBytes  uint64 `json:"disk_free_bytes"`
}

func usageCommand(out io.Writer) *cli.Command {
	var params usageParams

	return &cli.Command{
		Name:    "usage",
		Summary: "Show storage used by the library",
		Params:  func() any { return &params },
		Run: func(ctx context.Context, args []string, logger *slog.Logger) error {
			if err := cli.RequireArgs(args, 0, "no arguments"); err != nil {
				return err
			}
			return cli.WithWorkspace(ctx, params.WorkspaceFlags, logger, func(workspace *cli.Workspace) error {
				usage, err := workspace.Library.Usage(ctx)
				if err != nil {
					return err
				}
				limit, err := workspace.Config.MaxTotalBytes()
				if err != nil {
					return err
				}
				diskFree, err := workspace.DiskFree()
				if err != nil {
					return err
				}
				view := usageView{
					TemporaryCount: usage.TemporaryCount,
					TemporaryBytes: usage.TemporaryBytes,
					PermanentCount: usage.PermanentCount,
					PermanentBytes: usage.PermanentBytes,
					ThumbnailBytes: usage.ThumbnailBytes,
					LimitBytes:     limit,
					DiskFreeBytes:  diskFree,
				}
				if done, err := params.EmitJSON(out, view); done {
					return err
				}

				tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
				fmt.Fprintf(tw, "Temporary:\t%d file(s)\t%s\n", usage.TemporaryCount, humanize.IBytes(uint64(usage.TemporaryBytes)))
				fmt.Fprintf(tw, "Permanent:\t%d file(s)\t%s\n", usage.PermanentCount, humanize.IBytes(uint64(usage.PermanentBytes)))
				fmt.Fprintf(tw, "Thumbnails:\t\t%s\n", humanize.IBytes(uint64(usage.ThumbnailBytes)))
				if limit > 0 {
					fmt.Fprintf(tw, "Limit:\t\t%s (%.0f%% used)\n", humanize.IBytes(uint64(limit)),
						100*float64(usage.TotalBytes())/float64(limit))
				}
				fmt.Fprintf(tw, "Disk free:\t\t%s\n", humanize.IBytes(diskFree))
				return tw.Flush()
			})
		},
	}
}
