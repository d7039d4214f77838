package realtime

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/redis/go-redis/v9"
)

const userChannelPrefix = "sharehub:user:"

// RedisRelay fans pushes out through Redis pub/sub so that a user connected
// to any instance receives them. Every instance runs the relay and forwards
// what it hears into its local hub.
type RedisRelay struct {
	client *redis.Client
	hub    *Hub
}

// NewRedisRelay returns a relay publishing on client and delivering to hub.
func NewRedisRelay(client *redis.Client, hub *Hub) *RedisRelay {
	return &RedisRelay{client: client, hub: hub}
}

// Push implements Pusher by publishing on the user's channel.
func (r *RedisRelay) Push(ctx context.Context, userID string, payload []byte) error {
	if err := r.client.Publish(ctx, userChannel(userID), payload).Err(); err != nil {
		return fmt.Errorf("publishing to redis: %w", err)
	}
	return nil
}

// Run forwards relayed messages into the local hub until ctx is cancelled.
func (r *RedisRelay) Run(ctx context.Context) error {
	pubsub := r.client.PSubscribe(ctx, userChannelPrefix+"*")
	defer pubsub.Close()

	if _, err := pubsub.Receive(ctx); err != nil {
		return fmt.Errorf("subscribing to redis: %w", err)
	}
	slog.Info("redis relay subscribed", "pattern", userChannelPrefix+"*")

	ch := pubsub.Channel()
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-ch:
			if !ok {
				return nil
			}
			userID, ok := userFromChannel(msg.Channel)
			if !ok {
				continue
			}
			if err := r.hub.Push(ctx, userID, []byte(msg.Payload)); err != nil {
				return nil
			}
		}
	}
}

func userChannel(userID string) string {
	return userChannelPrefix + userID
}

func userFromChannel(channel string) (string, bool) {
	userID, ok := strings.CutPrefix(channel, userChannelPrefix)
	return userID, ok && userID != ""
}
