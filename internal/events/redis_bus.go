package events

import (
	"context"
	"encoding/json"

	"github.com/redis/go-redis/v9"

	"campuschat/pkg/logger"
)

const roomChannelPattern = "room:*"

// RedisBus carries envelopes across nodes over Redis pub/sub. Each node
// publishes to the room channel and every node re-broadcasts received
// envelopes to its locally connected room members.
type RedisBus struct {
	client *redis.Client
	log    *logger.Logger
}

func NewRedisBus(client *redis.Client, log *logger.Logger) *RedisBus {
	return &RedisBus{client: client, log: log}
}

func (b *RedisBus) Publish(ctx context.Context, env Envelope) error {
	data, err := json.Marshal(env)
	if err != nil {
		return err
	}
	return b.client.Publish(ctx, env.Room, data).Err()
}

func (b *RedisBus) Subscribe(ctx context.Context, handler func(env Envelope)) error {
	pubsub := b.client.PSubscribe(ctx, roomChannelPattern)
	go func() {
		defer pubsub.Close()
		ch := pubsub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-ch:
				if !ok {
					return
				}
				var env Envelope
				if err := json.Unmarshal([]byte(msg.Payload), &env); err != nil {
					b.log.Warnf("dropping malformed envelope on %s: %v", msg.Channel, err)
					continue
				}
				handler(env)
			}
		}
	}()
	return nil
}
