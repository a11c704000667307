// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"os"
	"os/signal"

	"github.com/bureau-foundation/toolshelf/cmd/toolshelf/commands"
	"github.com/bureau-foundation/toolshelf/lib/process"
)

func main() {
	if err := run(); err != nil {
		// Commands that print their own output (like "file get" on a
		// missing id) return an error carrying the exit code.
		process.Fatal(err)
	}
}

func run() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	return commands.Root(os.Stdout).ExecuteContext(ctx, os.Args[1:])
}
