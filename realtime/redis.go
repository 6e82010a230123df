package realtime

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/goliatone/go-course-auth"
)

// DefaultRedisChannel is the pub/sub channel shared by every instance
const DefaultRedisChannel = "courseauth:realtime"

// RedisConfig holds Redis configuration
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
	Channel  string
}

type envelope struct {
	Scope   string  `json:"scope"`
	Message Message `json:"message"`
}

// RedisBroadcaster fans pushes out to every instance through Redis pub/sub.
// Each instance runs Run to deliver what it receives to its local hub.
type RedisBroadcaster struct {
	client  *redis.Client
	channel string
	hub     *Hub
	logger  auth.Logger
}

var _ Broadcaster = (*RedisBroadcaster)(nil)

// NewRedisClient creates a client and checks it can reach the server
func NewRedisClient(ctx context.Context, cfg RedisConfig) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return client, nil
}

func NewRedisBroadcaster(client *redis.Client, hub *Hub, channel string) *RedisBroadcaster {
	if channel == "" {
		channel = DefaultRedisChannel
	}
	return &RedisBroadcaster{
		client:  client,
		channel: channel,
		hub:     hub,
		logger:  hub.logger,
	}
}

// Publish sends msg to scope on every instance, this one included
func (b *RedisBroadcaster) Publish(ctx context.Context, scope string, msg Message) error {
	payload, err := json.Marshal(envelope{Scope: scope, Message: msg})
	if err != nil {
		return err
	}
	return b.client.Publish(ctx, b.channel, payload).Err()
}

// Run delivers received pushes to the local hub until ctx is done
func (b *RedisBroadcaster) Run(ctx context.Context) error {
	pubsub := b.client.Subscribe(ctx, b.channel)
	defer pubsub.Close()

	if _, err := pubsub.Receive(ctx); err != nil {
		return fmt.Errorf("subscribe %s: %w", b.channel, err)
	}

	ch := pubsub.Channel()
	for {
		select {
		case <-ctx.Done():
			return nil
		case m, ok := <-ch:
			if !ok {
				return nil
			}
			var env envelope
			if err := json.Unmarshal([]byte(m.Payload), &env); err != nil {
				b.logger.Warn("realtime redis payload dropped", "error", err)
				continue
			}
			b.hub.Emit(env.Scope, env.Message)
		}
	}
}
