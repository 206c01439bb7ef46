package notify

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// streamMaxLen caps the stream with approximate trimming.
const streamMaxLen = 10000

// RedisNotifier appends messages to a Redis stream (XADD).
type RedisNotifier struct {
	rdb    *redis.Client
	stream string
	now    func() time.Time
}

func NewRedisNotifier(addr, stream string) *RedisNotifier {
	return NewRedisNotifierWithClient(redis.NewClient(&redis.Options{Addr: addr}), stream)
}

func NewRedisNotifierWithClient(rdb *redis.Client, stream string) *RedisNotifier {
	return &RedisNotifier{rdb: rdb, stream: stream, now: time.Now}
}

func (n *RedisNotifier) Send(ctx context.Context, msg Message) error {
	payload, err := encode(msg, n.now())
	if err != nil {
		return err
	}

	err = n.rdb.XAdd(ctx, &redis.XAddArgs{
		Stream: n.stream,
		MaxLen: streamMaxLen,
		Approx: true,
		Values: map[string]any{
			"kind":    string(msg.Kind),
			"to":      msg.To,
			"payload": string(payload),
		},
	}).Err()
	if err != nil {
		return fmt.Errorf("redis xadd: %w", err)
	}
	return nil
}

func (n *RedisNotifier) Close() error {
	return n.rdb.Close()
}
