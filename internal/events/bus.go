package events

import "context"

// Publisher is what command handlers see: persist first, then hand the
// envelope to the bus. Fan-out must never block the caller.
type Publisher interface {
	Publish(ctx context.Context, env Envelope) error
}

// Subscriber delivers envelopes published on any node to a local handler.
type Subscriber interface {
	Subscribe(ctx context.Context, handler func(env Envelope)) error
}

// LocalBus dispatches envelopes directly to a handler in-process. It
// serves single-node deployments and the test suites; multi-node setups
// use the Redis bus instead.
type LocalBus struct {
	handler func(env Envelope)
}

func NewLocalBus() *LocalBus {
	return &LocalBus{}
}

func (b *LocalBus) Publish(_ context.Context, env Envelope) error {
	if b.handler != nil {
		b.handler(env)
	}
	return nil
}

func (b *LocalBus) Subscribe(_ context.Context, handler func(env Envelope)) error {
	b.handler = handler
	return nil
}
