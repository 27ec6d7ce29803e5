package engine

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// TickLease keeps scheduler ticks from overlapping across processes.
// Acquire returns a release func when the lease was taken, nil when another
// holder has it.
type TickLease interface {
	Acquire(ctx context.Context) (release func(), ok bool, err error)
}

const defaultTickLeaseKey = "shipflow:scheduler:tick"

// releaseScript deletes the key only if it still holds our token.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

type RedisTickLease struct {
	client redis.UniversalClient
	key    string
	ttl    time.Duration
}

func NewRedisTickLease(client redis.UniversalClient, ttl time.Duration) *RedisTickLease {
	if ttl <= 0 {
		ttl = time.Minute
	}
	return &RedisTickLease{client: client, key: defaultTickLeaseKey, ttl: ttl}
}

// NewRedisTickLeaseFromURL accepts redis://[user:pass@]host:port/db.
func NewRedisTickLeaseFromURL(url string, ttl time.Duration) (*RedisTickLease, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	return NewRedisTickLease(redis.NewClient(opts), ttl), nil
}

func (l *RedisTickLease) Acquire(ctx context.Context) (func(), bool, error) {
	token := uuid.NewString()
	ok, err := l.client.SetNX(ctx, l.key, token, l.ttl).Result()
	if err != nil {
		return nil, false, err
	}
	if !ok {
		return nil, false, nil
	}
	release := func() {
		// the tick ctx may already be cancelled
		if err := releaseScript.Run(context.Background(), l.client, []string{l.key}, token).Err(); err != nil {
			slog.Warn("Tick lease release failed, it expires with its ttl", "key", l.key, "ttl", l.ttl.String(), "error", err)
		}
	}
	return release, true, nil
}

func (l *RedisTickLease) Close() error {
	return l.client.Close()
}
