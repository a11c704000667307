// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package tools

import (
	"io"

	"github.com/bureau-foundation/toolshelf/cmd/toolshelf/cli"
)

// Command returns the "tools" command group. Command output goes to out.
func Command(out io.Writer) *cli.Command {
	return &cli.Command{
		Name:    "tools",
		Summary: "Inspect tool definitions and exchange data between tools",
		Description: `Inspect tool definitions and exchange data between tools.

Tool definitions are JSONC files in paths.tools, one per tool, named
after the tool's directive. A definition declares which state fields a
tool offers to others (outputConfig) and which MIME types it accepts
(inputConfig).`,
		Subcommands: []*cli.Command{
			listCommand(out),
			showCommand(out),
			targetsCommand(out),
			validateCommand(out),
			resolveCommand(out),
			sendCommand(out),
		},
		Examples: []cli.Example{
			{
				Description: "Which tools can take the resizer's output?",
				Command:     "toolshelf tools targets image-resizer",
			},
			{
				Description: "Hand the resizer's output to the gallery",
				Command:     "toolshelf tools send image-resizer image-gallery",
			},
		},
	}
}
