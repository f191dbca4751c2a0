package lock

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// releases key only if it still holds our token
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// Redis - lock shared between processes, held keys expire after TTL to survive crashed holders
type Redis struct {
	rdb          redis.UniversalClient
	prefix       string
	ttl          time.Duration
	pollInterval time.Duration
}

type RedisConfig struct {
	URL      string        `yaml:"url"`
	Password string        `yaml:"password"`
	Prefix   string        `yaml:"prefix"`
	TTL      time.Duration `yaml:"ttl"`
}

func NewRedis(rdb redis.UniversalClient, prefix string, ttl time.Duration) *Redis {
	if ttl <= 0 {
		ttl = 2 * time.Minute
	}
	if prefix == "" {
		prefix = "tonwallet:lock:"
	}
	return &Redis{
		rdb:          rdb,
		prefix:       prefix,
		ttl:          ttl,
		pollInterval: 50 * time.Millisecond,
	}
}

// DialRedis - connects using URL from config and checks connection
func DialRedis(ctx context.Context, cfg RedisConfig) (*Redis, error) {
	opts, err := redis.ParseURL(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse redis URL: %w", err)
	}
	if cfg.Password != "" {
		opts.Password = cfg.Password
	}

	rdb := redis.NewClient(opts)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err = rdb.Ping(pingCtx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	return NewRedis(rdb, cfg.Prefix, cfg.TTL), nil
}

func (r *Redis) Lock(ctx context.Context, key string) (func(), error) {
	key = r.prefix + key
	token := uuid.NewString()

	for {
		ok, err := r.rdb.SetNX(ctx, key, token, r.ttl).Result()
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return nil, ctxErr
			}
			return nil, fmt.Errorf("failed to acquire lock: %w", err)
		}
		if ok {
			break
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(r.pollInterval):
		}
	}

	return func() {
		// detached from ctx, lock should be released even when caller is cancelled
		rCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		// on failure key will expire after ttl
		_ = releaseScript.Run(rCtx, r.rdb, []string{key}, token).Err()
	}, nil
}

func (r *Redis) Close() error {
	return r.rdb.Close()
}
