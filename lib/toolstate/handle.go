// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package toolstate

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"sync"
	"time"

	"github.com/bureau-foundation/toolshelf/lib/clock"
	"github.com/bureau-foundation/toolshelf/lib/codec"
	"github.com/bureau-foundation/toolshelf/lib/notify"
	"github.com/bureau-foundation/toolshelf/lib/tooldef"
)

// DefaultDebounce is the quiet period before a Save is written.
const DefaultDebounce = 500 * time.Millisecond

// Options configures Mount.
type Options[T any] struct {
	// Route keys the persisted document. Required.
	Route string

	// Default is the state of a tool with nothing persisted. It is
	// copied, never aliased.
	Default T

	// Validate, when set, rejects decoded state. Rejected state is
	// replaced by Default.
	Validate func(T) error

	// Params declares which query parameters SeedFromQuery applies.
	Params []tooldef.URLStateParam

	// Debounce is the quiet period before a write. Defaults to
	// DefaultDebounce.
	Debounce time.Duration

	// Clock drives the debounce timer. Defaults to clock.Real().
	Clock clock.Clock

	// Logger receives debug and warning messages. Nil discards them.
	Logger *slog.Logger
}

// Handle is a mounted tool state. Safe for concurrent use.
type Handle[T any] struct {
	store    *Store
	route    string
	params   []tooldef.URLStateParam
	validate func(T) error
	debounce time.Duration
	clock    clock.Clock
	logger   *slog.Logger
	changes  notify.Broadcaster[T]

	// defaultData is the encoded Default; every use decodes a fresh
	// copy.
	defaultData []byte

	// writeMu serializes snapshot-and-write so persisted state never
	// moves backwards.
	writeMu sync.Mutex

	mu     sync.Mutex
	state  T
	dirty  bool
	seeded bool
	closed bool
	timer  *clock.Timer
}

// Mount loads the state persisted for opts.Route, falling back to
// opts.Default when nothing is stored or the stored document is
// unusable. A missing document is created with the default.
func Mount[T any](ctx context.Context, store *Store, opts Options[T]) (*Handle[T], error) {
	if store == nil {
		return nil, fmt.Errorf("toolstate: store is required")
	}
	if opts.Route == "" {
		return nil, fmt.Errorf("toolstate: Route is required")
	}
	defaultData, err := codec.Marshal(opts.Default)
	if err != nil {
		return nil, fmt.Errorf("toolstate: encode default for %s: %w", opts.Route, err)
	}

	handle := &Handle[T]{
		store:       store,
		route:       opts.Route,
		params:      opts.Params,
		validate:    opts.Validate,
		debounce:    opts.Debounce,
		clock:       opts.Clock,
		logger:      opts.Logger,
		defaultData: defaultData,
	}
	if handle.debounce <= 0 {
		handle.debounce = DefaultDebounce
	}
	if handle.clock == nil {
		handle.clock = clock.Real()
	}
	if handle.logger == nil {
		handle.logger = slog.New(slog.DiscardHandler)
	}
	handle.logger = handle.logger.With("route", opts.Route)

	data, found, err := store.Load(ctx, opts.Route)
	if err != nil {
		return nil, err
	}
	if !found {
		handle.state = handle.defaultState()
		if err := store.Save(ctx, opts.Route, defaultData); err != nil {
			return nil, err
		}
		return handle, nil
	}

	state, err := handle.decode(data)
	if err != nil {
		handle.logger.Warn("persisted tool state discarded", "error", err)
		state = handle.defaultState()
	}
	handle.state = state
	return handle, nil
}

// Route returns the route the handle persists under.
func (h *Handle[T]) Route() string { return h.route }

// State returns the current in-memory state. Slices and maps in the
// result are shared with the handle; pass a modified copy to Save
// instead of editing them in place.
func (h *Handle[T]) State() T {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.state
}

// Save replaces the state and schedules a write after the debounce
// period. Saves within the period coalesce into one write of the
// latest value.
func (h *Handle[T]) Save(state T) {
	h.mu.Lock()
	h.state = state
	h.markDirtyLocked()
	h.mu.Unlock()

	h.changes.Publish(state)
}

// SaveNow writes any pending change immediately and cancels the
// pending timer.
func (h *Handle[T]) SaveNow(ctx context.Context) error {
	h.mu.Lock()
	if h.timer != nil {
		h.timer.Stop()
	}
	h.mu.Unlock()
	return h.flush(ctx)
}

// Clear resets the state to the default and writes it immediately.
func (h *Handle[T]) Clear(ctx context.Context) error {
	state := h.defaultState()

	h.mu.Lock()
	h.state = state
	h.dirty = true
	if h.timer != nil {
		h.timer.Stop()
	}
	h.mu.Unlock()

	h.changes.Publish(state)
	return h.flush(ctx)
}

// SeedFromQuery applies the declared URL parameters found in query
// to the state. Only the first call on a handle has any effect, so a
// restored state is not overwritten by the same link twice. Values
// that do not parse for their declared type, or that the state type
// cannot hold, are skipped one parameter at a time. Returns whether
// any field was seeded.
//
// The seed is computed and stored under the handle's lock, so a
// concurrent Save lands either before or after it, never inside.
// Options.Validate must not call back into the handle.
func (h *Handle[T]) SeedFromQuery(query url.Values) bool {
	h.mu.Lock()
	if h.seeded {
		h.mu.Unlock()
		return false
	}
	h.seeded = true
	seeded, applied := h.seed(h.state, query)
	if applied == 0 {
		h.mu.Unlock()
		return false
	}
	h.state = seeded
	h.markDirtyLocked()
	h.mu.Unlock()

	h.logger.Debug("tool state seeded from query", "fields", applied)
	h.changes.Publish(seeded)
	return true
}

// Subscribe returns a channel that receives the state after every
// Save, Clear or seed, plus a cancel function.
func (h *Handle[T]) Subscribe(buffer int) (<-chan T, func()) {
	return h.changes.Subscribe(buffer)
}

// Close writes any pending change and ends all subscriptions. Later
// Saves update memory only.
func (h *Handle[T]) Close(ctx context.Context) error {
	h.mu.Lock()
	h.closed = true
	if h.timer != nil {
		h.timer.Stop()
	}
	h.mu.Unlock()

	err := h.flush(ctx)
	h.changes.Close()
	return err
}

func (h *Handle[T]) markDirtyLocked() {
	h.dirty = true
	if h.closed {
		return
	}
	if h.timer == nil {
		h.timer = h.clock.AfterFunc(h.debounce, h.flushDeferred)
		return
	}
	h.timer.Reset(h.debounce)
}

func (h *Handle[T]) flushDeferred() {
	if err := h.flush(context.Background()); err != nil {
		h.logger.Warn("deferred tool state write failed", "error", err)
	}
}

func (h *Handle[T]) flush(ctx context.Context) error {
	h.writeMu.Lock()
	defer h.writeMu.Unlock()

	h.mu.Lock()
	if !h.dirty {
		h.mu.Unlock()
		return nil
	}
	state := h.state
	h.dirty = false
	h.mu.Unlock()

	data, err := codec.Marshal(state)
	if err == nil {
		err = h.store.Save(ctx, h.route, data)
	}
	if err != nil {
		h.mu.Lock()
		h.dirty = true
		h.mu.Unlock()
		return fmt.Errorf("toolstate: flush %s: %w", h.route, err)
	}
	return nil
}

// decode starts from the default so fields absent from data keep
// their default values.
func (h *Handle[T]) decode(data []byte) (T, error) {
	state := h.defaultState()
	if err := codec.Unmarshal(data, &state); err != nil {
		var zero T
		return zero, fmt.Errorf("decode: %w", err)
	}
	if h.validate != nil {
		if err := h.validate(state); err != nil {
			var zero T
			return zero, fmt.Errorf("validate: %w", err)
		}
	}
	return state, nil
}

func (h *Handle[T]) defaultState() T {
	var state T
	if err := codec.Unmarshal(h.defaultData, &state); err != nil {
		// defaultData was produced by Marshal on a T in Mount.
		panic("toolstate: default state does not round-trip: " + err.Error())
	}
	return state
}
