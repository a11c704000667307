// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package itde

import (
	"context"
	"fmt"

	"github.com/bureau-foundation/toolshelf/lib/blobstore"
	"github.com/bureau-foundation/toolshelf/lib/tooldef"
	"github.com/bureau-foundation/toolshelf/lib/toolstate"
)

// StateScanner enumerates and reads every persisted tool state.
// Satisfied by *toolstate.Store.
type StateScanner interface {
	StateReader
	Routes(ctx context.Context) ([]toolstate.RouteInfo, error)
}

// ReferencedFiles collects the file ids held anywhere in any persisted
// tool state. Every route is scanned, including tools that only
// receive: a target that accepted a temporary file without promoting
// it still holds the id in its own state. Any string with the shape
// of a library id counts, at any depth; declared fileReference fields
// of offering tools count whatever their shape. An unreadable state
// is an error, since skipping it could leave a referenced file
// unprotected.
func ReferencedFiles(ctx context.Context, registry *tooldef.Registry, states StateScanner) (map[string]struct{}, error) {
	declared := make(map[string]*tooldef.Definition)
	for _, definition := range registry.All() {
		if definition.Offers() {
			declared[definition.Route] = definition
		}
	}

	routes, err := states.Routes(ctx)
	if err != nil {
		return nil, fmt.Errorf("itde: listing tool states: %w", err)
	}

	referenced := make(map[string]struct{})
	for _, info := range routes {
		state, found, err := states.LoadRaw(ctx, info.Route)
		if err != nil {
			return nil, fmt.Errorf("itde: reading state of %s: %w", info.Route, err)
		}
		if !found {
			continue
		}
		collectIDs(state, referenced)

		definition, ok := declared[info.Route]
		if !ok {
			continue
		}
		for _, content := range definition.OutputConfig.TransferableContent {
			if content.DataType != tooldef.DataFileReference {
				continue
			}
			ids, _ := fileIDs(state[content.StateKey])
			for _, id := range ids {
				referenced[id] = struct{}{}
			}
		}
	}
	return referenced, nil
}

func collectIDs(value any, into map[string]struct{}) {
	switch value := value.(type) {
	case string:
		if blobstore.IsID(value) {
			into[value] = struct{}{}
		}
	case []any:
		for _, element := range value {
			collectIDs(element, into)
		}
	case map[string]any:
		for _, element := range value {
			collectIDs(element, into)
		}
	case map[any]any:
		for _, element := range value {
			collectIDs(element, into)
		}
	}
}
