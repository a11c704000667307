// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package tooldef

import (
	"errors"
	"fmt"
	"sort"
)

// ErrUnknownTool is returned for a directive with no definition.
var ErrUnknownTool = errors.New("tooldef: unknown tool")

// Registry is an immutable set of definitions keyed by directive.
// Safe for concurrent use.
type Registry struct {
	definitions map[string]*Definition
	directives  []string
}

// NewRegistry indexes definitions. Duplicate directives are an error.
func NewRegistry(definitions ...*Definition) (*Registry, error) {
	registry := &Registry{definitions: make(map[string]*Definition, len(definitions))}
	for _, definition := range definitions {
		if _, exists := registry.definitions[definition.Directive]; exists {
			return nil, fmt.Errorf("tooldef: duplicate directive %q", definition.Directive)
		}
		registry.definitions[definition.Directive] = definition
		registry.directives = append(registry.directives, definition.Directive)
	}
	sort.Strings(registry.directives)
	return registry, nil
}

// Lookup returns the definition for directive.
func (r *Registry) Lookup(directive string) (*Definition, error) {
	definition, ok := r.definitions[directive]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownTool, directive)
	}
	return definition, nil
}

// All returns every definition sorted by directive.
func (r *Registry) All() []*Definition {
	all := make([]*Definition, len(r.directives))
	for i, directive := range r.directives {
		all[i] = r.definitions[directive]
	}
	return all
}

// Compatible reports whether target could accept something source
// offers: some declared output MIME type of source overlaps some
// accepted pattern of target. A tool is never compatible with
// itself.
func (r *Registry) Compatible(sourceDirective, targetDirective string) (bool, error) {
	source, err := r.Lookup(sourceDirective)
	if err != nil {
		return false, err
	}
	target, err := r.Lookup(targetDirective)
	if err != nil {
		return false, err
	}
	return compatible(source, target), nil
}

// CompatibleTargets returns every tool that could accept source's
// output, sorted by directive.
func (r *Registry) CompatibleTargets(sourceDirective string) ([]*Definition, error) {
	source, err := r.Lookup(sourceDirective)
	if err != nil {
		return nil, err
	}
	var targets []*Definition
	for _, directive := range r.directives {
		if target := r.definitions[directive]; compatible(source, target) {
			targets = append(targets, target)
		}
	}
	return targets, nil
}

func compatible(source, target *Definition) bool {
	if source.Directive == target.Directive || !source.Offers() || !target.Receives() {
		return false
	}
	for _, content := range source.OutputConfig.TransferableContent {
		if target.InputConfig.Accepts(content.EffectiveMimeType()) {
			return true
		}
	}
	return false
}
