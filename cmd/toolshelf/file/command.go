// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package file

import (
	"io"

	"github.com/bureau-foundation/toolshelf/cmd/toolshelf/cli"
)

// Command returns the "file" command group. Command output goes to out.
func Command(out io.Writer) *cli.Command {
	return &cli.Command{
		Name:    "file",
		Summary: "Manage files in the File Library",
		Description: `Manage files in the File Library.

Files are either temporary (transient, eligible for collection) or
permanent (kept until explicitly deleted). Images get a thumbnail in
the background when they are added.`,
		Subcommands: []*cli.Command{
			addCommand(out),
			getCommand(out),
			listCommand(out),
			promoteCommand(out),
			removeCommand(out),
			cleanupCommand(out),
			clearImagesCommand(out),
			usageCommand(out),
			gcCommand(out),
		},
		Examples: []cli.Example{
			{
				Description: "Store a photo permanently",
				Command:     "toolshelf file add photo.png",
			},
			{
				Description: "List permanent images",
				Command:     "toolshelf file list --images",
			},
			{
				Description: "Collect temporary files no tool references",
				Command:     "toolshelf file gc --older-than 24h",
			},
		},
	}
}
