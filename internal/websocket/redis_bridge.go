package websocket

import (
	"context"

	"campuschat/internal/events"
)

// Bridge feeds envelopes from the event bus into the hub. With the
// Redis bus behind it, events published on any node reach the clients
// connected to this one.
type Bridge struct {
	subscriber events.Subscriber
	hub        *Hub
}

func NewBridge(subscriber events.Subscriber, hub *Hub) *Bridge {
	return &Bridge{subscriber: subscriber, hub: hub}
}

func (b *Bridge) Run(ctx context.Context) error {
	return b.subscriber.Subscribe(ctx, func(env events.Envelope) {
		b.hub.Broadcast(env)
	})
}
