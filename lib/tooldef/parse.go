// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package tooldef

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/tidwall/jsonc"
)

// Parse strips JSONC comments and trailing commas from data, then
// unmarshals the result into a Definition.
func Parse(data []byte) (*Definition, error) {
	stripped := jsonc.ToJSON(data)

	var definition Definition
	if err := json.Unmarshal(stripped, &definition); err != nil {
		return nil, fmt.Errorf("parsing tool definition: %w", err)
	}
	return &definition, nil
}

// ReadFile reads and parses one JSONC definition file. When the file
// does not set a directive, the file name without its extension is
// used.
func ReadFile(path string) (*Definition, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}

	definition, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	if definition.Directive == "" {
		definition.Directive = DirectiveFromPath(path)
	}
	return definition, nil
}

// DirectiveFromPath strips the directory and extension from path:
// "tools/image-resizer.jsonc" becomes "image-resizer".
func DirectiveFromPath(path string) string {
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

// LoadDir reads every .json and .jsonc file in dir, validates each
// definition, and returns a Registry. All problems across all files
// are reported together.
func LoadDir(dir string) (*Registry, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("reading tool directory: %w", err)
	}

	var names []string
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		switch filepath.Ext(entry.Name()) {
		case ".json", ".jsonc":
			names = append(names, entry.Name())
		}
	}
	sort.Strings(names)

	var definitions []*Definition
	var errs []error
	for _, name := range names {
		path := filepath.Join(dir, name)
		definition, err := ReadFile(path)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		if issues := Validate(definition); len(issues) > 0 {
			errs = append(errs, fmt.Errorf("%s: %s", path, strings.Join(issues, "; ")))
			continue
		}
		definitions = append(definitions, definition)
	}
	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}
	return NewRegistry(definitions...)
}
