package hub

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/rs/zerolog/log"

	"github.com/boardsync/boardsync/internal/board"
	redisstore "github.com/boardsync/boardsync/internal/store/redis"
)

// Envelope is the fanout unit. Origin carries the connection id that
// submitted the event so remote instances can honor the
// skip-originator rule for presence and lock notifications.
type Envelope struct {
	Origin string      `json:"origin,omitempty"`
	Event  board.Event `json:"event"`
}

// Broadcaster fans accepted events out to every hub instance. Publish
// hands an envelope to the channel; Run consumes the channel and feeds
// envelopes back into the local delivery sink, blocking until ctx is
// done.
type Broadcaster interface {
	Publish(ctx context.Context, env Envelope) error
	Run(ctx context.Context) error
}

// LocalBroadcaster is the fallback used when no shared store exists:
// publish degrades to direct delivery on the sole instance.
type LocalBroadcaster struct {
	sink func(Envelope)
}

// NewLocalBroadcaster creates a broadcaster that delivers straight to
// the given sink.
func NewLocalBroadcaster(sink func(Envelope)) *LocalBroadcaster {
	return &LocalBroadcaster{sink: sink}
}

func (b *LocalBroadcaster) Publish(_ context.Context, env Envelope) error {
	b.sink(env)
	return nil
}

// Run blocks until ctx is done; local delivery happens inline in
// Publish.
func (b *LocalBroadcaster) Run(ctx context.Context) error {
	<-ctx.Done()
	return nil
}

// RedisBroadcaster publishes envelopes to the shared Redis channel
// consumed by every instance, including this one. The publisher hears
// its own events through the subscription, so local and remote clients
// observe the same authoritative stream.
type RedisBroadcaster struct {
	pubsub *redisstore.PubSub
	sink   func(Envelope)
}

// NewRedisBroadcaster creates a broadcaster over the given pub/sub
// connection, delivering received envelopes to sink.
func NewRedisBroadcaster(ps *redisstore.PubSub, sink func(Envelope)) *RedisBroadcaster {
	return &RedisBroadcaster{pubsub: ps, sink: sink}
}

func (b *RedisBroadcaster) Publish(ctx context.Context, env Envelope) error {
	raw, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("hub.RedisBroadcaster.Publish: encode: %w", err)
	}
	if err := b.pubsub.Publish(ctx, redisstore.EventsChannel, raw); err != nil {
		return fmt.Errorf("hub.RedisBroadcaster.Publish: %w", err)
	}
	return nil
}

// Run subscribes to the shared channel and relays every envelope to
// the local sink until ctx is done.
func (b *RedisBroadcaster) Run(ctx context.Context) error {
	messages, cleanup, err := b.pubsub.Subscribe(ctx, redisstore.EventsChannel)
	if err != nil {
		return fmt.Errorf("hub.RedisBroadcaster.Run: %w", err)
	}
	defer cleanup()

	for {
		select {
		case <-ctx.Done():
			return nil
		case raw, ok := <-messages:
			if !ok {
				return nil
			}
			var env Envelope
			if err := json.Unmarshal(raw, &env); err != nil {
				log.Warn().Err(err).Msg("malformed fanout envelope")
				continue
			}
			b.sink(env)
		}
	}
}
