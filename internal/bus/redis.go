// Package bus publishes relay events to Redis pub/sub so consumers outside
// the websocket channel can follow the hand stream.
package bus

import (
	"context"
	"fmt"
	"time"

	"github.com/bytedance/sonic"
	"github.com/redis/go-redis/v9"
)

// PublishTimeout bounds each publish call.
const PublishTimeout = 500 * time.Millisecond

// publisher is the slice of the go-redis client the bus uses.
type publisher interface {
	Publish(ctx context.Context, channel string, message interface{}) *redis.IntCmd
	Ping(ctx context.Context) *redis.StatusCmd
	Close() error
}

// Message is the JSON document published on each channel.
type Message struct {
	Event string `json:"event"`
	Data  any    `json:"data"`
	TS    int64  `json:"ts"`
}

// Publisher is a relay sink backed by Redis.
type Publisher struct {
	client publisher
	prefix string
	now    func() time.Time
}

// NewPublisher connects to the Redis server at url (redis://...) and checks
// it is reachable.
func NewPublisher(ctx context.Context, url, prefix string) (*Publisher, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	client := redis.NewClient(opts)

	pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}

	return newPublisher(client, prefix), nil
}

func newPublisher(client publisher, prefix string) *Publisher {
	return &Publisher{client: client, prefix: prefix, now: time.Now}
}

// Channel returns the pub/sub channel used for event.
func (p *Publisher) Channel(event string) string {
	if p.prefix == "" {
		return event
	}
	return p.prefix + ":" + event
}

// Emit publishes one event.
func (p *Publisher) Emit(event string, payload any) error {
	body, err := sonic.Marshal(Message{Event: event, Data: payload, TS: p.now().UnixMilli()})
	if err != nil {
		return fmt.Errorf("encode %s: %w", event, err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), PublishTimeout)
	defer cancel()

	if err := p.client.Publish(ctx, p.Channel(event), body).Err(); err != nil {
		return fmt.Errorf("publish %s: %w", event, err)
	}
	return nil
}

// Active is always true: Redis subscribers are not tracked.
func (p *Publisher) Active() bool {
	return true
}

// Close closes the Redis client.
func (p *Publisher) Close() error {
	return p.client.Close()
}
