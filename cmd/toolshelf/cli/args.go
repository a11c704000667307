// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package cli

import "fmt"

// RequireArgs fails unless args has exactly count entries. what names
// them for the error message, e.g. "a file id".
func RequireArgs(args []string, count int, what string) error {
	if len(args) == count {
		return nil
	}
	if len(args) < count {
		return fmt.Errorf("expected %s", what)
	}
	return fmt.Errorf("unexpected argument %q", args[count])
}
