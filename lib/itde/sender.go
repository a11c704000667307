// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package itde

import (
	"context"
	"fmt"

	"github.com/bureau-foundation/toolshelf/lib/tooldef"
)

// Flusher writes pending state immediately. Satisfied by
// *toolstate.Handle.
type Flusher interface {
	SaveNow(ctx context.Context) error
}

// Sender is the source side of a Bus.
type Sender struct {
	bus *Bus
}

// NewSender returns a Sender on bus.
func NewSender(bus *Bus) *Sender { return &Sender{bus: bus} }

// SendToTool flushes the source's state, so the target resolves the
// state the user sees, and signals the target.
func (s *Sender) SendToTool(ctx context.Context, state Flusher, sourceDirective, targetDirective string) error {
	if state != nil {
		if err := state.SaveNow(ctx); err != nil {
			return fmt.Errorf("itde: flushing %s before signaling: %w", sourceDirective, err)
		}
	}
	return s.bus.Signal(sourceDirective, targetDirective)
}

// CompatibleTargets lists the tools sourceDirective may send to.
func (s *Sender) CompatibleTargets(sourceDirective string) ([]*tooldef.Definition, error) {
	targets, err := s.bus.registry.CompatibleTargets(sourceDirective)
	if err != nil {
		return nil, fmt.Errorf("%w: %q", ErrUnknownSource, sourceDirective)
	}
	return targets, nil
}
