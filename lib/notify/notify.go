// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package notify fans values out to any number of subscribers over
// buffered channels. A slow subscriber never blocks the publisher:
// when its buffer is full the value is dropped for that subscriber
// and counted. Subscribers that need every change re-read the
// source of truth after a drop instead of relying on the stream.
package notify

import (
	"sync"
	"sync/atomic"
)

// Broadcaster delivers published values to subscribers. The zero
// value is ready to use. Safe for concurrent use.
type Broadcaster[T any] struct {
	mu          sync.RWMutex
	subscribers map[*subscriber[T]]struct{}
	closed      bool
	dropped     atomic.Uint64
}

type subscriber[T any] struct {
	channel chan T
	once    sync.Once
}

func (s *subscriber[T]) close() {
	s.once.Do(func() { close(s.channel) })
}

// Subscribe registers a subscriber with the given buffer (minimum 1)
// and returns its channel plus a cancel function. Cancel closes the
// channel and is safe to call more than once. Subscribing to a closed
// Broadcaster returns an already-closed channel.
func (b *Broadcaster[T]) Subscribe(buffer int) (<-chan T, func()) {
	sub := &subscriber[T]{channel: make(chan T, max(buffer, 1))}

	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		sub.close()
		return sub.channel, func() {}
	}
	if b.subscribers == nil {
		b.subscribers = make(map[*subscriber[T]]struct{})
	}
	b.subscribers[sub] = struct{}{}

	return sub.channel, func() {
		b.mu.Lock()
		delete(b.subscribers, sub)
		b.mu.Unlock()
		sub.close()
	}
}

// Publish sends value to every subscriber without blocking.
func (b *Broadcaster[T]) Publish(value T) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	for sub := range b.subscribers {
		select {
		case sub.channel <- value:
		default:
			b.dropped.Add(1)
		}
	}
}

// Dropped returns how many deliveries were skipped because a
// subscriber's buffer was full.
func (b *Broadcaster[T]) Dropped() uint64 { return b.dropped.Load() }

// Close closes every subscriber channel. Later Publish calls are
// no-ops and later Subscribe calls get a closed channel.
func (b *Broadcaster[T]) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	b.closed = true
	for sub := range b.subscribers {
		sub.close()
	}
	b.subscribers = nil
}
