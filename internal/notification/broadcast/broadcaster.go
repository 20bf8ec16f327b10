package broadcast

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/bwmarrin/snowflake"
	redis "github.com/redis/go-redis/v9"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

const channelPrefix = "notifications:"

// ChannelFor names the per-user pub/sub channel.
func ChannelFor(userID snowflake.ID) string {
	return channelPrefix + userID.String()
}

type Params struct {
	fx.In

	Redis *redis.Client
	Log   *zap.Logger
}

// Broadcaster fans notification payloads out over redis pub/sub, one channel
// per recipient.
type Broadcaster struct {
	redis *redis.Client
	log   *zap.Logger
}

func New(p Params) *Broadcaster {
	return &Broadcaster{
		redis: p.Redis,
		log:   p.Log.Named("notification.broadcast"),
	}
}

// Publish sends a payload to the user's channel. Publish failures are logged
// and never propagated; delivery is fire and forget.
func (b *Broadcaster) Publish(ctx context.Context, userID snowflake.ID, payload interface{}) {
	data, err := json.Marshal(payload)
	if err != nil {
		b.log.Error("broadcast payload marshal failed",
			zap.String("user_id", userID.String()),
			zap.Error(err))
		return
	}

	if err := b.redis.Publish(ctx, ChannelFor(userID), data).Err(); err != nil {
		b.log.Warn("broadcast publish failed",
			zap.String("user_id", userID.String()),
			zap.Error(err))
	}
}

// Subscribe opens a live stream of the user's notifications. The caller must
// Close the subscription when done.
func (b *Broadcaster) Subscribe(ctx context.Context, userID snowflake.ID) (*Subscription, error) {
	pubsub := b.redis.Subscribe(ctx, ChannelFor(userID))
	if _, err := pubsub.Receive(ctx); err != nil {
		_ = pubsub.Close()
		return nil, err
	}

	sub := &Subscription{
		pubsub: pubsub,
		events: make(chan json.RawMessage, 16),
		done:   make(chan struct{}),
	}
	go sub.pump(pubsub.Channel())

	return sub, nil
}

// Subscription is one user's live notification stream.
type Subscription struct {
	pubsub *redis.PubSub
	events chan json.RawMessage
	done   chan struct{}
	once   sync.Once
}

// pump forwards redis messages into the events channel until the source
// closes or the subscription does. The done select keeps a send to a reader
// that went away from parking the goroutine forever.
func (s *Subscription) pump(msgs <-chan *redis.Message) {
	defer close(s.events)
	for {
		select {
		case msg, ok := <-msgs:
			if !ok {
				return
			}
			select {
			case s.events <- json.RawMessage(msg.Payload):
			case <-s.done:
				return
			}
		case <-s.done:
			return
		}
	}
}

// Events yields notification payloads as published. The channel closes after
// Close.
func (s *Subscription) Events() <-chan json.RawMessage {
	return s.events
}

// Close tears the redis subscription down. Safe to call more than once.
func (s *Subscription) Close() {
	s.once.Do(func() {
		close(s.done)
		if s.pubsub != nil {
			_ = s.pubsub.Close()
		}
	})
}
