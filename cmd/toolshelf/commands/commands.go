// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package commands builds the complete toolshelf CLI command tree.
package commands

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/bureau-foundation/toolshelf/cmd/toolshelf/cli"
	filecmd "github.com/bureau-foundation/toolshelf/cmd/toolshelf/file"
	statecmd "github.com/bureau-foundation/toolshelf/cmd/toolshelf/state"
	toolscmd "github.com/bureau-foundation/toolshelf/cmd/toolshelf/tools"
	"github.com/bureau-foundation/toolshelf/lib/version"
)

// Root builds and returns the complete toolshelf CLI command tree.
// Command output goes to out.
func Root(out io.Writer) *cli.Command {
	return &cli.Command{
		Name: "toolshelf",
		Description: `toolshelf: a local shelf of small tools that share files and state.

Stores files in a local library with thumbnails for images, keeps each
tool's state across sessions, and hands content from one tool to
another.`,
		Subcommands: []*cli.Command{
			filecmd.Command(out),
			statecmd.Command(out),
			toolscmd.Command(out),
			{
				Name:    "version",
				Summary: "Print version information",
				Run: func(_ context.Context, args []string, _ *slog.Logger) error {
					fmt.Fprintf(out, "toolshelf %s\n", version.Full())
					return nil
				},
			},
		},
		Examples: []cli.Example{
			{
				Description: "Store an image and list the library",
				Command:     "toolshelf file add photo.png && toolshelf file list --images",
			},
			{
				Description: "See which tools can receive the resizer's output",
				Command:     "toolshelf tools targets image-resizer",
			},
			{
				Description: "Inspect a tool's saved state",
				Command:     "toolshelf state show image-resizer",
			},
		},
	}
}
