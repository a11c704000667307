// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package itde

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/bureau-foundation/toolshelf/lib/clock"
	"github.com/bureau-foundation/toolshelf/lib/notify"
	"github.com/bureau-foundation/toolshelf/lib/tooldef"
)

var (
	// ErrIncompatible is returned by Signal when the target accepts
	// nothing the source offers.
	ErrIncompatible = errors.New("itde: target cannot accept source output")

	// ErrUnknownTarget is returned for a target directive with no
	// tool definition.
	ErrUnknownTarget = errors.New("itde: unknown target tool")

	// ErrUnknownSource is returned for a source directive with no
	// tool definition.
	ErrUnknownSource = errors.New("itde: unknown source tool")

	// ErrAlreadyRegistered is returned by Register when the target
	// already has a live registration.
	ErrAlreadyRegistered = errors.New("itde: target already registered")

	// ErrNoSignal is returned when no queued signal comes from the
	// named source.
	ErrNoSignal = errors.New("itde: no pending signal from source")

	// ErrNotRegistered is returned when accepting on a target whose
	// registration was removed.
	ErrNotRegistered = errors.New("itde: target not registered")
)

// State is a target's position in the signal protocol.
type State string

const (
	StateIdle      State = "idle"
	StateSignaled  State = "signaled"
	StatePrompting State = "prompting"
)

// Signal announces that a source has output ready for a target.
// Signals live only in memory.
type Signal struct {
	SourceDirective string
	SourceToolTitle string
	ReceivedAt      time.Time
}

// ProcessFunc applies an accepted signal inside the target. resolved
// may be of any Kind; the target decides how to present a none or
// error result.
type ProcessFunc func(ctx context.Context, signal Signal, resolved Resolved) error

// TargetOptions selects a target's prompting policy.
type TargetOptions struct {
	// AutoPrompt opens the prompt as soon as a signal arrives, unless
	// the user deferred earlier in the session.
	AutoPrompt bool

	// CloseAfterAccept closes the prompt after each accept even when
	// more signals are queued. When false the prompt stays open until
	// the queue is empty.
	CloseAfterAccept bool
}

// Status is a snapshot of a target, published on every change.
type Status struct {
	Directive string
	State     State
	Pending   []Signal
	Deferred  bool
}

// BusConfig holds the dependencies of a Bus.
type BusConfig struct {
	// Registry decides compatibility and supplies tool metadata.
	// Required.
	Registry *tooldef.Registry

	// Resolver materializes accepted signals. Required.
	Resolver *Resolver

	// Clock stamps signal arrival. Defaults to clock.Real().
	Clock clock.Clock

	// Logger receives protocol events at debug level. Nil discards
	// them.
	Logger *slog.Logger
}

// Bus routes signals from sources to target mailboxes. Safe for
// concurrent use.
type Bus struct {
	registry *tooldef.Registry
	resolver *Resolver
	clock    clock.Clock
	logger   *slog.Logger

	mu      sync.Mutex
	targets map[string]*Target
}

// NewBus creates a Bus with no mailboxes.
func NewBus(cfg BusConfig) (*Bus, error) {
	if cfg.Registry == nil {
		return nil, fmt.Errorf("itde: Registry is required")
	}
	if cfg.Resolver == nil {
		return nil, fmt.Errorf("itde: Resolver is required")
	}
	bus := &Bus{
		registry: cfg.Registry,
		resolver: cfg.Resolver,
		clock:    cfg.Clock,
		logger:   cfg.Logger,
		targets:  make(map[string]*Target),
	}
	if bus.clock == nil {
		bus.clock = clock.Real()
	}
	if bus.logger == nil {
		bus.logger = slog.New(slog.DiscardHandler)
	}
	return bus, nil
}

// Registry returns the tool registry the bus checks against.
func (b *Bus) Registry() *tooldef.Registry { return b.registry }

// Register attaches process to the target's mailbox. Signals already
// queued stay queued, and with AutoPrompt the prompt opens at once.
func (b *Bus) Register(targetDirective string, process ProcessFunc, opts TargetOptions) (*Target, error) {
	if process == nil {
		return nil, fmt.Errorf("itde: process function is required")
	}
	definition, err := b.registry.Lookup(targetDirective)
	if err != nil {
		return nil, fmt.Errorf("%w: %q", ErrUnknownTarget, targetDirective)
	}

	target := b.mailbox(definition)
	target.mu.Lock()
	if target.process != nil {
		target.mu.Unlock()
		return nil, fmt.Errorf("%w: %q", ErrAlreadyRegistered, targetDirective)
	}
	target.process = process
	target.options = opts
	target.autoPromptLocked()
	status := target.statusLocked()
	target.mu.Unlock()

	b.logger.Debug("itde target registered", "target", targetDirective, "pending", len(status.Pending))
	target.changes.Publish(status)
	return target, nil
}

// Signal queues a signal from source for target. A signal already
// queued from the same source is replaced.
func (b *Bus) Signal(sourceDirective, targetDirective string) error {
	source, err := b.registry.Lookup(sourceDirective)
	if err != nil {
		return fmt.Errorf("%w: %q", ErrUnknownSource, sourceDirective)
	}
	targetDefinition, err := b.registry.Lookup(targetDirective)
	if err != nil {
		return fmt.Errorf("%w: %q", ErrUnknownTarget, targetDirective)
	}
	if ok, _ := b.registry.Compatible(sourceDirective, targetDirective); !ok {
		return fmt.Errorf("%w: %s -> %s", ErrIncompatible, sourceDirective, targetDirective)
	}

	signal := Signal{
		SourceDirective: source.Directive,
		SourceToolTitle: source.Title,
		ReceivedAt:      b.clock.Now(),
	}

	target := b.mailbox(targetDefinition)
	target.mu.Lock()
	replaced := target.removeLocked(sourceDirective)
	target.queue = append(target.queue, signal)
	target.autoPromptLocked()
	status := target.statusLocked()
	target.mu.Unlock()

	b.logger.Debug("itde signal queued",
		"source", sourceDirective,
		"target", targetDirective,
		"replaced", replaced,
		"state", string(status.State),
	)
	target.changes.Publish(status)
	return nil
}

// Target returns the mailbox for targetDirective, creating it if
// needed.
func (b *Bus) Target(targetDirective string) (*Target, error) {
	definition, err := b.registry.Lookup(targetDirective)
	if err != nil {
		return nil, fmt.Errorf("%w: %q", ErrUnknownTarget, targetDirective)
	}
	return b.mailbox(definition), nil
}

func (b *Bus) mailbox(definition *tooldef.Definition) *Target {
	b.mu.Lock()
	defer b.mu.Unlock()
	target, ok := b.targets[definition.Directive]
	if !ok {
		target = &Target{bus: b, definition: definition}
		b.targets[definition.Directive] = target
	}
	return target
}

// Target is one tool's signal mailbox and prompt state. Safe for
// concurrent use.
type Target struct {
	bus        *Bus
	definition *tooldef.Definition
	changes    notify.Broadcaster[Status]

	mu        sync.Mutex
	process   ProcessFunc
	options   TargetOptions
	queue     []Signal
	modalOpen bool
	deferred  bool
}

// Directive returns the target's tool directive.
func (t *Target) Directive() string { return t.definition.Directive }

// State returns the target's protocol state.
func (t *Target) State() State {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.stateLocked()
}

// PendingSignals returns the queued signals in arrival order.
func (t *Target) PendingSignals() []Signal {
	t.mu.Lock()
	defer t.mu.Unlock()
	return slices.Clone(t.queue)
}

// IsModalOpen reports whether the prompt is showing.
func (t *Target) IsModalOpen() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.modalOpen
}

// Deferred reports whether the user closed the prompt without
// choosing this session.
func (t *Target) Deferred() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.deferred
}

// OpenModalIfSignalsExist opens the prompt when at least one signal
// is queued and reports whether it is open.
func (t *Target) OpenModalIfSignalsExist() bool {
	t.mu.Lock()
	if len(t.queue) == 0 {
		t.mu.Unlock()
		return false
	}
	changed := !t.modalOpen
	t.modalOpen = true
	status := t.statusLocked()
	t.mu.Unlock()

	if changed {
		t.changes.Publish(status)
	}
	return true
}

// AcceptSignal removes the signal from sourceDirective, resolves the
// source's output, narrows it to the types this target accepts and
// passes the result to the ProcessFunc. The signal is consumed
// whether or not resolution or processing succeeds. Returns the
// result given to the ProcessFunc and the ProcessFunc's error.
func (t *Target) AcceptSignal(ctx context.Context, sourceDirective string) (Resolved, error) {
	t.mu.Lock()
	process := t.process
	if process == nil {
		t.mu.Unlock()
		return Resolved{}, fmt.Errorf("%w: %q", ErrNotRegistered, t.definition.Directive)
	}
	signal, ok := t.findLocked(sourceDirective)
	if !ok {
		t.mu.Unlock()
		return Resolved{}, fmt.Errorf("%w: %q", ErrNoSignal, sourceDirective)
	}
	t.removeLocked(sourceDirective)
	if len(t.queue) == 0 || t.options.CloseAfterAccept {
		t.modalOpen = false
	}
	status := t.statusLocked()
	t.mu.Unlock()

	resolved := t.resolve(ctx, sourceDirective)
	t.bus.logger.Debug("itde signal accepted",
		"source", sourceDirective,
		"target", t.definition.Directive,
		"kind", string(resolved.Kind),
		"items", len(resolved.Items),
	)
	t.changes.Publish(status)

	if err := process(ctx, signal, resolved); err != nil {
		return resolved, fmt.Errorf("itde: %s processing signal from %s: %w", t.definition.Directive, sourceDirective, err)
	}
	return resolved, nil
}

func (t *Target) resolve(ctx context.Context, sourceDirective string) Resolved {
	source, err := t.bus.registry.Lookup(sourceDirective)
	if err != nil {
		return errorResult("source tool %q has no metadata", sourceDirective)
	}
	return t.bus.resolver.Resolve(ctx, sourceDirective, source.OutputConfig).Accepted(t.definition.InputConfig)
}

// IgnoreSignal drops the signal from sourceDirective without applying
// it. Returns whether a signal was dropped.
func (t *Target) IgnoreSignal(sourceDirective string) bool {
	t.mu.Lock()
	removed := t.removeLocked(sourceDirective)
	if len(t.queue) == 0 {
		t.modalOpen = false
	}
	status := t.statusLocked()
	t.mu.Unlock()

	if removed {
		t.bus.logger.Debug("itde signal ignored", "source", sourceDirective, "target", t.definition.Directive)
		t.changes.Publish(status)
	}
	return removed
}

// IgnoreAllSignals empties the queue and closes the prompt.
func (t *Target) IgnoreAllSignals() {
	t.mu.Lock()
	count := len(t.queue)
	t.queue = nil
	t.modalOpen = false
	status := t.statusLocked()
	t.mu.Unlock()

	t.bus.logger.Debug("itde signals ignored", "target", t.definition.Directive, "count", count)
	t.changes.Publish(status)
}

// CloseModal closes the prompt without choosing. Queued signals stay
// pending and no signal opens the prompt automatically again until
// ClearDeferred.
func (t *Target) CloseModal() {
	t.mu.Lock()
	if !t.modalOpen {
		t.mu.Unlock()
		return
	}
	t.modalOpen = false
	t.deferred = true
	status := t.statusLocked()
	t.mu.Unlock()

	t.changes.Publish(status)
}

// ClearDeferred re-enables automatic prompting.
func (t *Target) ClearDeferred() {
	t.mu.Lock()
	t.deferred = false
	t.mu.Unlock()
}

// Subscribe returns a channel of status snapshots and a cancel
// function.
func (t *Target) Subscribe(buffer int) (<-chan Status, func()) {
	return t.changes.Subscribe(buffer)
}

// Unregister detaches the ProcessFunc and closes the prompt. Queued
// signals stay in the mailbox for the next registration.
func (t *Target) Unregister() {
	t.mu.Lock()
	t.process = nil
	t.modalOpen = false
	status := t.statusLocked()
	t.mu.Unlock()

	t.bus.logger.Debug("itde target unregistered", "target", t.definition.Directive)
	t.changes.Publish(status)
}

func (t *Target) autoPromptLocked() {
	if t.process != nil && t.options.AutoPrompt && !t.deferred && len(t.queue) > 0 {
		t.modalOpen = true
	}
}

func (t *Target) stateLocked() State {
	switch {
	case len(t.queue) == 0:
		return StateIdle
	case t.modalOpen:
		return StatePrompting
	default:
		return StateSignaled
	}
}

func (t *Target) statusLocked() Status {
	return Status{
		Directive: t.definition.Directive,
		State:     t.stateLocked(),
		Pending:   slices.Clone(t.queue),
		Deferred:  t.deferred,
	}
}

func (t *Target) findLocked(sourceDirective string) (Signal, bool) {
	for _, signal := range t.queue {
		if signal.SourceDirective == sourceDirective {
			return signal, true
		}
	}
	return Signal{}, false
}

func (t *Target) removeLocked(sourceDirective string) bool {
	before := len(t.queue)
	t.queue = slices.DeleteFunc(t.queue, func(signal Signal) bool {
		return signal.SourceDirective == sourceDirective
	})
	return len(t.queue) != before
}
