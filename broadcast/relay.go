package broadcast

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"

	"github.com/jacentio/livewall"
)

// DefaultChannel is the Redis channel events are relayed on.
const DefaultChannel = "livewall:events"

// RedisRelay shares events between server replicas. Publish sends to Redis;
// Run feeds every message on the channel, including our own, into the local
// Broadcaster.
type RedisRelay struct {
	rdb     *redis.Client
	channel string
	local   *Broadcaster
	log     *zap.SugaredLogger
}

// NewRedisRelay creates a relay over rdb feeding local.
func NewRedisRelay(rdb *redis.Client, channel string, local *Broadcaster, log *zap.SugaredLogger) *RedisRelay {
	if channel == "" {
		channel = DefaultChannel
	}
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	return &RedisRelay{
		rdb:     rdb,
		channel: channel,
		local:   local,
		log:     log.With("component", "redis_relay"),
	}
}

// wireEvent is the JSON form of an event on the Redis channel. Owner keys
// are not carried.
type wireEvent struct {
	Type      livewall.EventType `json:"type"`
	WallID    string             `json:"wall_id"`
	Image     *livewall.Image    `json:"image,omitempty"`
	Timestamp int64              `json:"ts"`
}

func encodeEvent(e livewall.Event) ([]byte, error) {
	return json.Marshal(wireEvent{
		Type:      e.Type,
		WallID:    e.WallID,
		Image:     e.Image,
		Timestamp: e.Timestamp.UnixNano(),
	})
}

func decodeEvent(data []byte) (livewall.Event, error) {
	var w wireEvent
	if err := json.Unmarshal(data, &w); err != nil {
		return livewall.Event{}, fmt.Errorf("decode event: %w", err)
	}
	if w.WallID == "" {
		return livewall.Event{}, fmt.Errorf("decode event: missing wall_id")
	}
	e := livewall.NewEvent(w.Type, w.WallID, w.Image)
	if w.Timestamp != 0 {
		e.Timestamp = time.Unix(0, w.Timestamp).UTC()
	}
	return e, nil
}

// Publish sends event to Redis. If Redis is unreachable the event is
// delivered to local subscribers only.
func (r *RedisRelay) Publish(event livewall.Event) {
	data, err := encodeEvent(event)
	if err != nil {
		r.log.Errorw("encode event", "wall_id", event.WallID, "error", err)
		return
	}
	if err := r.rdb.Publish(context.Background(), r.channel, data).Err(); err != nil {
		r.log.Warnw("redis publish failed, delivering locally",
			"wall_id", event.WallID,
			"error", err)
		r.local.Publish(event)
	}
}

// Subscribe registers a local viewer.
func (r *RedisRelay) Subscribe(ctx context.Context, wallID string) (<-chan livewall.Event, string) {
	return r.local.Subscribe(ctx, wallID)
}

// Run consumes the Redis channel until ctx is done.
func (r *RedisRelay) Run(ctx context.Context) error {
	sub := r.rdb.Subscribe(ctx, r.channel)
	defer sub.Close()

	if _, err := sub.Receive(ctx); err != nil {
		return fmt.Errorf("subscribe %s: %w", r.channel, err)
	}
	r.log.Infow("relay subscribed", "channel", r.channel)

	msgs := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-msgs:
			if !ok {
				return nil
			}
			event, err := decodeEvent([]byte(msg.Payload))
			if err != nil {
				r.log.Warnw("skipping malformed relay message", "error", err)
				continue
			}
			r.local.Publish(event)
		}
	}
}
