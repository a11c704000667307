// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package clock abstracts the time source so that timestamps and
// debounced writes can be tested deterministically.
//
// Components hold a Clock field and never call time.Now or
// time.AfterFunc directly:
//
//	store := toolstate.NewStore(toolstate.StoreConfig{Clock: clock.Real(), ...})
//
// Tests inject a FakeClock and advance it by hand:
//
//	fake := clock.Fake(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))
//	handle.Save(state)          // registers a debounce timer
//	fake.WaitForTimers(1)
//	fake.Advance(time.Second)   // runs the flush synchronously
//
// WaitForTimers closes the window between a goroutine registering a
// timer and the test advancing past it.
package clock
