// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package itde

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/bureau-foundation/toolshelf/lib/filelibrary"
	"github.com/bureau-foundation/toolshelf/lib/tooldef"
)

// Kind discriminates a Resolved result.
type Kind string

const (
	KindItemList Kind = "itemList"
	KindNone     Kind = "none"
	KindError    Kind = "error"
)

// ItemKind says whether an item points into the File Library or
// carries its bytes.
type ItemKind string

const (
	ItemFileReference ItemKind = "fileReference"
	ItemInline        ItemKind = "inline"
)

// Item is one offered payload.
type Item struct {
	Kind ItemKind

	// StateKey is the source state field the item came from.
	StateKey string

	// FileID, Filename and Size describe a file reference.
	FileID   string
	Filename string
	Size     int64

	MimeType string

	// Data holds inline bytes.
	Data []byte
}

// Resolved is the outcome of resolving a source's output.
type Resolved struct {
	Kind         Kind
	Items        []Item
	ErrorMessage string
}

// OK reports whether r carries items.
func (r Resolved) OK() bool { return r.Kind == KindItemList }

// Accepted narrows an item list to the MIME types input accepts. A
// list with nothing acceptable becomes none: the source is compatible
// but holds nothing the target can take right now. None and error
// results are returned unchanged.
func (r Resolved) Accepted(input *tooldef.InputConfig) Resolved {
	if r.Kind != KindItemList {
		return r
	}
	var accepted []Item
	for _, item := range r.Items {
		if input.Accepts(item.MimeType) {
			accepted = append(accepted, item)
		}
	}
	if len(accepted) == 0 {
		return Resolved{Kind: KindNone}
	}
	return Resolved{Kind: KindItemList, Items: accepted}
}

func errorResult(format string, args ...any) Resolved {
	return Resolved{Kind: KindError, ErrorMessage: fmt.Sprintf(format, args...)}
}

// StateReader reads a tool's persisted state as a generic map.
// Satisfied by *toolstate.Store.
type StateReader interface {
	LoadRaw(ctx context.Context, route string) (map[string]any, bool, error)
}

// FileLookup reads library file metadata without side effects.
// Satisfied by *filelibrary.Library.
type FileLookup interface {
	StatFile(ctx context.Context, id string) (*filelibrary.StoredFile, error)
}

// ResolverConfig holds the dependencies of a Resolver.
type ResolverConfig struct {
	// Registry maps source directives to their routes. Required.
	Registry *tooldef.Registry

	// States reads source state. Required.
	States StateReader

	// Files looks up referenced files. Required.
	Files FileLookup

	// Logger receives debug messages. Nil discards them.
	Logger *slog.Logger
}

// Resolver turns a source's declared output into items. It never
// writes: state and file metadata are only read, and file access
// times are left alone.
type Resolver struct {
	registry *tooldef.Registry
	states   StateReader
	files    FileLookup
	logger   *slog.Logger
}

// NewResolver creates a Resolver.
func NewResolver(cfg ResolverConfig) (*Resolver, error) {
	if cfg.Registry == nil {
		return nil, fmt.Errorf("itde: Registry is required")
	}
	if cfg.States == nil {
		return nil, fmt.Errorf("itde: States is required")
	}
	if cfg.Files == nil {
		return nil, fmt.Errorf("itde: Files is required")
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Resolver{registry: cfg.Registry, states: cfg.States, files: cfg.Files, logger: logger}, nil
}

// Resolve reads the persisted state of sourceDirective and collects
// the items its output declares, in declaration order and, within a
// field holding several file ids, in list order. Referenced files
// that no longer exist are skipped. An output with nothing to offer
// right now resolves to none; a missing definition, unreadable state
// or a field of the wrong shape resolves to error.
func (r *Resolver) Resolve(ctx context.Context, sourceDirective string, output *tooldef.OutputConfig) Resolved {
	source, err := r.registry.Lookup(sourceDirective)
	if err != nil {
		return errorResult("source tool %q has no metadata", sourceDirective)
	}
	if output == nil || len(output.TransferableContent) == 0 {
		return Resolved{Kind: KindNone}
	}

	state, found, err := r.states.LoadRaw(ctx, source.Route)
	if err != nil {
		return errorResult("state of %q is unreadable: %v", sourceDirective, err)
	}
	if !found {
		return Resolved{Kind: KindNone}
	}

	var items []Item
	for _, content := range output.TransferableContent {
		value, present := state[content.StateKey]
		if !present || value == nil {
			continue
		}
		var collected []Item
		var problem string
		switch content.DataType {
		case tooldef.DataFileReference:
			collected, problem = r.fileItems(ctx, content, value)
		case tooldef.DataText:
			collected, problem = textItems(content, value)
		case tooldef.DataJSON:
			collected, problem = jsonItems(content, value)
		default:
			problem = fmt.Sprintf("unknown dataType %q", content.DataType)
		}
		if problem != "" {
			return errorResult("%s field %q: %s", sourceDirective, content.StateKey, problem)
		}
		items = append(items, collected...)
	}

	if len(items) == 0 {
		return Resolved{Kind: KindNone}
	}
	return Resolved{Kind: KindItemList, Items: items}
}

func (r *Resolver) fileItems(ctx context.Context, content tooldef.TransferableContent, value any) ([]Item, string) {
	ids, ok := fileIDs(value)
	if !ok {
		return nil, fmt.Sprintf("expected a file id or a list of file ids, got %T", value)
	}

	var items []Item
	for _, id := range ids {
		file, err := r.files.StatFile(ctx, id)
		if err != nil {
			return nil, fmt.Sprintf("file %s is unreadable: %v", id, err)
		}
		if file == nil {
			r.logger.Debug("referenced file missing, skipped", "state_key", content.StateKey, "file_id", id)
			continue
		}
		if content.MimeType != "" && !tooldef.MatchMIME(content.MimeType, file.Type) {
			r.logger.Debug("referenced file outside declared type, skipped",
				"state_key", content.StateKey, "file_id", id, "mime_type", file.Type)
			continue
		}
		items = append(items, Item{
			Kind:     ItemFileReference,
			StateKey: content.StateKey,
			FileID:   file.ID,
			Filename: file.Filename,
			Size:     file.Size,
			MimeType: file.Type,
		})
	}
	return items, ""
}

// fileIDs accepts a single id or a list of ids. Empty ids are
// dropped.
func fileIDs(value any) ([]string, bool) {
	switch typed := value.(type) {
	case string:
		if typed == "" {
			return nil, true
		}
		return []string{typed}, true
	case []any:
		ids := make([]string, 0, len(typed))
		for _, element := range typed {
			id, ok := element.(string)
			if !ok {
				return nil, false
			}
			if id != "" {
				ids = append(ids, id)
			}
		}
		return ids, true
	case []string:
		return typed, true
	}
	return nil, false
}

func textItems(content tooldef.TransferableContent, value any) ([]Item, string) {
	text, ok := value.(string)
	if !ok {
		return nil, fmt.Sprintf("expected text, got %T", value)
	}
	if text == "" {
		return nil, ""
	}
	return []Item{{
		Kind:     ItemInline,
		StateKey: content.StateKey,
		MimeType: content.EffectiveMimeType(),
		Data:     []byte(text),
	}}, ""
}

func jsonItems(content tooldef.TransferableContent, value any) ([]Item, string) {
	data, err := json.Marshal(value)
	if err != nil {
		return nil, fmt.Sprintf("not representable as JSON: %v", err)
	}
	return []Item{{
		Kind:     ItemInline,
		StateKey: content.StateKey,
		MimeType: content.EffectiveMimeType(),
		Data:     data,
	}}, ""
}

// FileAdder stores new files. Satisfied by *filelibrary.Library.
type FileAdder interface {
	AddFile(ctx context.Context, blob []byte, filename, mimeType string, temporary bool, originTool string) (string, error)
}

// PromoteInline stores an inline item as a new temporary library file
// owned by targetDirective and returns the equivalent file reference.
// File references are returned unchanged.
func PromoteInline(ctx context.Context, library FileAdder, item Item, targetDirective string) (Item, error) {
	if item.Kind != ItemInline {
		return item, nil
	}
	filename := item.StateKey + extensionFor(item.MimeType)
	id, err := library.AddFile(ctx, item.Data, filename, item.MimeType, true, targetDirective)
	if err != nil {
		return Item{}, fmt.Errorf("itde: promote inline %s: %w", item.StateKey, err)
	}
	return Item{
		Kind:     ItemFileReference,
		StateKey: item.StateKey,
		FileID:   id,
		Filename: filename,
		Size:     int64(len(item.Data)),
		MimeType: item.MimeType,
	}, nil
}

func extensionFor(mimeType string) string {
	switch tooldef.NormalizeMIME(mimeType) {
	case "text/plain":
		return ".txt"
	case "application/json":
		return ".json"
	case "text/markdown":
		return ".md"
	case "text/html":
		return ".html"
	case "text/csv":
		return ".csv"
	case "image/svg+xml":
		return ".svg"
	}
	return ""
}
