// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package process

import (
	"errors"
	"fmt"
	"io"
	"os"
)

// exitCoder is implemented by errors that carry their own exit code.
// Such errors have already reported themselves and are not printed.
type exitCoder interface {
	ExitCode() int
}

// Fatal reports err on stderr and exits with ExitCode(err).
func Fatal(err error) {
	os.Exit(Report(os.Stderr, err))
}

// Report writes "error: err" to w unless err carries its own exit
// code, and returns the code the process should exit with. A nil
// error yields 0.
func Report(w io.Writer, err error) int {
	if err == nil {
		return 0
	}
	var coded exitCoder
	if errors.As(err, &coded) {
		return coded.ExitCode()
	}
	fmt.Fprintf(w, "error: %v\n", err)
	return 1
}
