// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package state

import (
	"io"

	"github.com/bureau-foundation/toolshelf/cmd/toolshelf/cli"
	"github.com/bureau-foundation/toolshelf/lib/tooldef"
)

// Command returns the "state" command group. Command output goes to out.
func Command(out io.Writer) *cli.Command {
	return &cli.Command{
		Name:    "state",
		Summary: "Inspect and edit per-tool state",
		Subcommands: []*cli.Command{
			listCommand(out),
			showCommand(out),
			setCommand(out),
			seedCommand(out),
			clearCommand(out),
		},
		Examples: []cli.Example{
			{
				Description: "Show the image resizer's saved state",
				Command:     "toolshelf state show image-resizer",
			},
			{
				Description: "Seed state the way a shared link would",
				Command:     "toolshelf state seed image-resizer 'w=800&fmt=png'",
			},
		},
	}
}

// target names the tool a state command acts on.
type target struct {
	route      string
	definition *tooldef.Definition
}

func resolveTarget(registry *tooldef.Registry, name string) target {
	if definition, err := registry.Lookup(name); err == nil {
		return target{route: definition.Route, definition: definition}
	}
	return target{route: name}
}
