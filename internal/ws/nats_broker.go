package ws

import (
	"context"
	"sync"

	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog"
)

// natsGroup tracks the local members of one group together with the single
// server subscription that feeds them.
type natsGroup struct {
	members map[Subscriber]struct{}
	sub     *nats.Subscription
}

// NatsBroker is a Broker backed by a NATS server, for running more than one
// gateway instance. Group tokens double as NATS subjects: a publish goes to
// the server, and every instance with at least one local member of the group
// holds a subscription that fans the payload out to those members.
//
// NATS preserves publish order per subject, and a subscription's handler is
// invoked serially, so the per-group FIFO guarantee holds across instances.
type NatsBroker struct {
	nc  *nats.Conn
	log zerolog.Logger

	mu     sync.Mutex
	groups map[string]*natsGroup
}

// NewNatsBroker connects to the NATS server at url.
func NewNatsBroker(url string, log zerolog.Logger) (*NatsBroker, error) {
	nc, err := nats.Connect(url,
		nats.MaxReconnects(-1),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			log.Warn().Err(err).Msg("nats disconnected")
		}),
		nats.ReconnectHandler(func(_ *nats.Conn) {
			log.Info().Msg("nats reconnected")
		}),
	)
	if err != nil {
		return nil, err
	}
	return &NatsBroker{
		nc:     nc,
		log:    log,
		groups: make(map[string]*natsGroup),
	}, nil
}

// Join adds sub to group, establishing the server subscription when sub is
// the group's first local member. Idempotent.
func (b *NatsBroker) Join(group string, sub Subscriber) {
	b.mu.Lock()
	defer b.mu.Unlock()

	g, ok := b.groups[group]
	if !ok {
		g = &natsGroup{members: make(map[Subscriber]struct{})}
		s, err := b.nc.Subscribe(group, func(msg *nats.Msg) {
			b.deliver(group, msg.Data)
		})
		if err != nil {
			b.log.Error().Err(err).Str("group", group).Msg("nats subscribe failed")
			return
		}
		g.sub = s
		b.groups[group] = g
	}
	g.members[sub] = struct{}{}
}

// Leave removes sub from group, dropping the server subscription when the
// last local member leaves. A no-op for unknown pairs.
func (b *NatsBroker) Leave(group string, sub Subscriber) {
	b.mu.Lock()
	defer b.mu.Unlock()

	g, ok := b.groups[group]
	if !ok {
		return
	}
	delete(g.members, sub)
	if len(g.members) == 0 {
		if err := g.sub.Unsubscribe(); err != nil {
			b.log.Warn().Err(err).Str("group", group).Msg("nats unsubscribe failed")
		}
		delete(b.groups, group)
	}
}

// Publish sends payload to the server; local delivery happens through the
// subscription callback like on every other instance.
func (b *NatsBroker) Publish(_ context.Context, group string, payload []byte) error {
	return b.nc.Publish(group, payload)
}

// Close drains the connection, letting in-flight deliveries finish.
func (b *NatsBroker) Close() {
	if err := b.nc.Drain(); err != nil {
		b.log.Warn().Err(err).Msg("nats drain failed")
	}
}

// deliver fans one payload out to the group's current local members.
func (b *NatsBroker) deliver(group string, payload []byte) {
	b.mu.Lock()
	defer b.mu.Unlock()

	g, ok := b.groups[group]
	if !ok {
		return
	}
	for sub := range g.members {
		if !sub.Deliver(payload) {
			publishDropsTotal.Inc()
			b.log.Warn().Str("group", group).Msg("subscriber queue full; payload dropped")
		}
	}
}
