package export

import (
	"context"
	"log/slog"
	"strconv"
	"time"

	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"
)

// RedisPublisher keeps the latest snapshot in a hash and announces each
// update on a channel of the same name. A publish that outlives the timeout
// is abandoned.
type RedisPublisher struct {
	client  *redis.Client
	key     string
	timeout time.Duration
	log     *slog.Logger
}

func NewRedisPublisher(ctx context.Context, addr, key string, log *slog.Logger) (*RedisPublisher, error) {
	client := newRedisClient(addr)
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, errors.Wrapf(err, "redis connection to %s failed", addr)
	}
	log.Info("connected to redis", "addr", addr, "key", key)
	return &RedisPublisher{client: client, key: key, timeout: PublishTimeout, log: log}, nil
}

// socket reads follow the publish deadline instead of ReadTimeout
func newRedisClient(addr string) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:                  addr,
		DB:                    0,
		ContextTimeoutEnabled: true,
	})
}

func (p *RedisPublisher) Publish(ctx context.Context, s Snapshot) error {
	b, err := s.Marshal()
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	pipe := p.client.Pipeline()
	pipe.HSet(ctx, p.key,
		"state", b,
		"frame", strconv.FormatUint(s.Frame, 10),
		"lane_assist", strconv.FormatBool(s.Engagement.LaneAssistEnabled),
		"cruise", strconv.FormatBool(s.Engagement.CruiseEnabled),
	)
	pipe.Publish(ctx, p.key, "state")
	if _, err := pipe.Exec(ctx); err != nil {
		return errors.Wrap(err, "could not publish state to redis")
	}
	return nil
}

func (p *RedisPublisher) Close() error {
	return p.client.Close()
}
