// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package notify

import (
	"testing"
	"time"

	"github.com/bureau-foundation/toolshelf/lib/testutil"
)

func TestPublishReachesAllSubscribers(t *testing.T) {
	var broadcaster Broadcaster[string]
	first, cancelFirst := broadcaster.Subscribe(4)
	defer cancelFirst()
	second, cancelSecond := broadcaster.Subscribe(4)
	defer cancelSecond()

	broadcaster.Publish("added")

	for _, channel := range []<-chan string{first, second} {
		if got := testutil.RequireReceive(t, channel, time.Second, "subscriber"); got != "added" {
			t.Errorf("received %q, want added", got)
		}
	}
}

func TestFullSubscriberDropsInsteadOfBlocking(t *testing.T) {
	var broadcaster Broadcaster[int]
	channel, cancel := broadcaster.Subscribe(1)
	defer cancel()

	broadcaster.Publish(1)
	broadcaster.Publish(2)
	broadcaster.Publish(3)

	if got := <-channel; got != 1 {
		t.Fatalf("first value = %d, want 1", got)
	}
	if broadcaster.Dropped() != 2 {
		t.Errorf("Dropped = %d, want 2", broadcaster.Dropped())
	}
}

func TestCancelClosesChannel(t *testing.T) {
	var broadcaster Broadcaster[int]
	channel, cancel := broadcaster.Subscribe(1)
	cancel()
	cancel()

	if _, ok := <-channel; ok {
		t.Fatal("channel still open after cancel")
	}
	broadcaster.Publish(7)
}

func TestCloseEndsSubscriptions(t *testing.T) {
	var broadcaster Broadcaster[int]
	channel, cancel := broadcaster.Subscribe(1)
	defer cancel()

	broadcaster.Close()
	testutil.RequireClosed(t, channel, time.Second, "subscription after Close")

	late, lateCancel := broadcaster.Subscribe(1)
	defer lateCancel()
	if _, ok := <-late; ok {
		t.Fatal("Subscribe after Close returned an open channel")
	}
	broadcaster.Publish(1)
}
