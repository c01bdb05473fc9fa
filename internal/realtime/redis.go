package realtime

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

// DefaultChannel is the Redis pub/sub channel shared by API instances.
const DefaultChannel = "peerq:events"

type envelope struct {
	UserID string          `json:"userId,omitempty"`
	Frame  json.RawMessage `json:"frame"`
}

// RedisBroker publishes events through Redis so every instance's Hub
// delivers them to its own sockets. Run must be started for inbound events
// to reach the local hub.
type RedisBroker struct {
	client  *redis.Client
	hub     *Hub
	channel string
}

// NewRedisBroker connects to redisURL and verifies it with a PING.
func NewRedisBroker(ctx context.Context, redisURL string, hub *Hub) (*RedisBroker, error) {
	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("realtime: parse redis url: %w", err)
	}
	client := redis.NewClient(opt)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("realtime: redis ping: %w", err)
	}
	return &RedisBroker{client: client, hub: hub, channel: DefaultChannel}, nil
}

// Publish sends ev to every instance, including this one.
func (b *RedisBroker) Publish(ctx context.Context, userID string, ev Event) error {
	frame, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	msg, err := json.Marshal(envelope{UserID: userID, Frame: frame})
	if err != nil {
		return err
	}
	return b.client.Publish(ctx, b.channel, msg).Err()
}

// Run forwards channel messages to the local hub until ctx is done.
func (b *RedisBroker) Run(ctx context.Context) error {
	sub := b.client.Subscribe(ctx, b.channel)
	defer sub.Close()
	if _, err := sub.Receive(ctx); err != nil {
		return fmt.Errorf("realtime: subscribe: %w", err)
	}
	ch := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return nil
		case m, ok := <-ch:
			if !ok {
				return nil
			}
			b.handle(m.Payload)
		}
	}
}

func (b *RedisBroker) handle(payload string) {
	var env envelope
	if err := json.Unmarshal([]byte(payload), &env); err != nil || len(env.Frame) == 0 {
		log.Warn().Err(err).Msg("realtime: malformed redis event")
		return
	}
	b.hub.Deliver(env.UserID, env.Frame)
}

// Close releases the Redis client.
func (b *RedisBroker) Close() error { return b.client.Close() }
