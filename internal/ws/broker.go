// Package ws implements the real-time chat core: the WebSocket gateway,
// per-connection sessions, and the subscription broker that fans published
// messages out to every connection joined to a room's group.
//
// This file defines the Broker contract and its in-process implementation.
// The broker is constructed explicitly and injected into the gateway, so
// tests run against MemoryBroker while horizontally scaled deployments
// swap in the NATS-backed implementation behind the same three operations.
package ws

import (
	"context"
	"sync"
)

// Subscriber is the delivery end of a broker membership. Implementations
// must not block: Deliver enqueues onto a bounded queue and reports false
// when the payload had to be dropped (slow consumer).
type Subscriber interface {
	Deliver(payload []byte) bool
}

// Broker is a publish/subscribe registry keyed by group token.
//
// Semantics:
//   - Join is idempotent; joining a group twice causes no duplicate delivery.
//   - Leave is a no-op for a subscriber that never joined.
//   - Publish delivers the payload at most once per member, FIFO per group.
//   - Membership changes and publishes to the same group are linearizable
//     with respect to each other: a publish that starts after a completed
//     join reaches that member; a publish completed before a join does not.
type Broker interface {
	Join(group string, sub Subscriber)
	Leave(group string, sub Subscriber)
	Publish(ctx context.Context, group string, payload []byte) error
}

// MemoryBroker is the process-local Broker. A single mutex guards the
// membership table, and payloads are enqueued while it is held, which
// yields the per-group FIFO and join/publish linearizability the contract
// requires without any per-group goroutines.
type MemoryBroker struct {
	mu     sync.Mutex
	groups map[string]map[Subscriber]struct{}
}

// NewMemoryBroker returns an empty in-process broker.
func NewMemoryBroker() *MemoryBroker {
	return &MemoryBroker{groups: make(map[string]map[Subscriber]struct{})}
}

// Join registers sub as a member of group. Idempotent.
func (b *MemoryBroker) Join(group string, sub Subscriber) {
	b.mu.Lock()
	defer b.mu.Unlock()

	members, ok := b.groups[group]
	if !ok {
		members = make(map[Subscriber]struct{})
		b.groups[group] = members
	}
	members[sub] = struct{}{}
}

// Leave removes sub from group. Safe to call when sub never joined; the
// group entry is pruned once its last member leaves.
func (b *MemoryBroker) Leave(group string, sub Subscriber) {
	b.mu.Lock()
	defer b.mu.Unlock()

	members, ok := b.groups[group]
	if !ok {
		return
	}
	delete(members, sub)
	if len(members) == 0 {
		delete(b.groups, group)
	}
}

// Publish enqueues payload for every current member of group, the sender's
// own subscription included. Members whose queues are full are skipped and
// counted as drops; the publisher is never blocked.
func (b *MemoryBroker) Publish(ctx context.Context, group string, payload []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	for sub := range b.groups[group] {
		if !sub.Deliver(payload) {
			publishDropsTotal.Inc()
		}
	}
	return nil
}

// Members reports the current membership size of group.
func (b *MemoryBroker) Members(group string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.groups[group])
}
