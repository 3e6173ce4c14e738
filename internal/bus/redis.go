package bus

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/redis/go-redis/v9"
)

const channelPrefix = "signaling:room:"

// Redis implements Bus on Redis pub/sub, one channel per room.
type Redis struct {
	rdb *redis.Client
	log *slog.Logger
}

// NewRedis connects to Redis and verifies connectivity.
func NewRedis(ctx context.Context, addr string, db int, log *slog.Logger) (*Redis, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr: addr,
		DB:   db,
	})
	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, err
	}
	return &Redis{rdb: rdb, log: log}, nil
}

func (b *Redis) Publish(ctx context.Context, env Envelope) error {
	raw, err := json.Marshal(env)
	if err != nil {
		return err
	}
	return b.rdb.Publish(ctx, channelPrefix+env.RoomID, raw).Err()
}

func (b *Redis) Subscribe(ctx context.Context, fn func(Envelope)) {
	pubsub := b.rdb.PSubscribe(ctx, channelPrefix+"*")
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
				b.log.Warn("bus: dropping undecodable envelope", "err", err)
				continue
			}
			if env.RoomID == "" {
				continue
			}
			fn(env)
		}
	}
}

func (b *Redis) Close() error { return b.rdb.Close() }
