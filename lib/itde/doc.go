// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package itde implements inter-tool data exchange: one tool offers
// its current output to another without copying it anywhere first.
//
// A source tool flushes its state and calls [Sender.SendToTool]. The
// [Bus] checks the pair against the tool registry and queues a
// [Signal] in the target's mailbox, replacing any older signal from
// the same source. A mailbox exists per target directive whether or
// not the target is currently registered, so a signal sent just
// before navigating to the target is waiting when it registers.
//
// Each registered [Target] moves between three states:
//
//	idle      -- signal arrives --> signaled
//	signaled  -- open prompt ----> prompting
//	prompting -- close prompt ---> signaled  (deferred: no auto-prompt)
//	any       -- queue empties --> idle
//
// Accepting a signal asks the [Resolver] to read the source's
// persisted state and turn its declared transferable fields into
// items, narrows them to what the target accepts, removes the signal
// and hands the result to the target's ProcessFunc. Protocol faults
// (source metadata missing, unreadable state, no acceptable type)
// arrive at the ProcessFunc as a [Resolved] of kind error rather than
// as a Go error.
package itde
