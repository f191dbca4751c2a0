package ton

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/semaphore"

	"github.com/xssnick/tonutils-transfer/address"
	"github.com/xssnick/tonutils-transfer/metrics"
)

var ErrNoBackends = errors.New("no backends in pool")

// DialFunc - creates connection number idx of the pool
type DialFunc func(ctx context.Context, cfg Config, idx int) (API, error)

// Client - balances requests between pool of backends, bounds concurrency and request time
type Client struct {
	backends         []API
	roundRobinOffset uint64

	sem     *semaphore.Weighted
	network Network
	log     zerolog.Logger
	metrics *metrics.Metrics
}

func NewClient(ctx context.Context, cfg Config, dial DialFunc) (*Client, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	if dial == nil {
		return nil, errors.New("dial func is nil")
	}

	c := &Client{
		backends: make([]API, 0, cfg.PoolSize),
		sem:      semaphore.NewWeighted(int64(cfg.ConcurrencyLimit)),
		network:  cfg.Network,
		log:      cfg.Logger.With().Str("component", "ton_client").Str("network", cfg.Network.String()).Logger(),
		metrics:  cfg.Metrics,
	}

	for i := 0; i < cfg.PoolSize; i++ {
		b, err := dial(ctx, cfg, i)
		if err != nil {
			_ = c.Close()
			return nil, fmt.Errorf("failed to dial backend %d: %w", i, err)
		}
		c.backends = append(c.backends, WithTimeout(b, cfg.RequestTimeout))
	}

	c.log.Debug().Int("pool_size", cfg.PoolSize).Int("concurrency_limit", cfg.ConcurrencyLimit).Msg("client initialized")
	return c, nil
}

func (c *Client) Network() Network {
	return c.network
}

func (c *Client) GetAccount(ctx context.Context, addr *address.Address) (*Account, error) {
	return call(ctx, c, "get_account", func(ctx context.Context, b API) (*Account, error) {
		return b.GetAccount(ctx, addr)
	})
}

func (c *Client) SendExternalMessage(ctx context.Context, data []byte) ([]byte, error) {
	return call(ctx, c, "send_message", func(ctx context.Context, b API) ([]byte, error) {
		return b.SendExternalMessage(ctx, data)
	})
}

// Close - closes backends which implement io.Closer
func (c *Client) Close() error {
	var errs []error
	for _, b := range c.backends {
		if t, ok := b.(*timeoutAPI); ok {
			b = t.original
		}
		if cl, ok := b.(io.Closer); ok {
			if err := cl.Close(); err != nil {
				errs = append(errs, err)
			}
		}
	}
	return errors.Join(errs...)
}

func (c *Client) next() (API, error) {
	if len(c.backends) == 0 {
		return nil, ErrNoBackends
	}
	id := atomic.AddUint64(&c.roundRobinOffset, 1)
	return c.backends[id%uint64(len(c.backends))], nil
}

func call[T any](ctx context.Context, c *Client, method string, fn func(context.Context, API) (T, error)) (res T, err error) {
	started := time.Now()
	defer func() {
		c.metrics.ObserveRequest(method, started, errorType(err))
	}()

	b, err := c.next()
	if err != nil {
		return res, err
	}

	if err = c.sem.Acquire(ctx, 1); err != nil {
		return res, fmt.Errorf("failed to acquire request slot: %w", err)
	}
	c.metrics.AddInFlight(1)
	defer func() {
		c.metrics.AddInFlight(-1)
		c.sem.Release(1)
	}()

	res, err = fn(ctx, b)
	if err != nil {
		c.log.Debug().Err(err).Str("method", method).Dur("took", time.Since(started)).Msg("request failed")
		return res, err
	}
	return res, nil
}
