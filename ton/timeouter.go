package ton

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/xssnick/tonutils-transfer/address"
)

type timeoutAPI struct {
	original API
	timeout  time.Duration
}

// WithTimeout - wraps api so every request is bounded, deadline is reported as ErrTimeout
func WithTimeout(api API, timeout time.Duration) API {
	if timeout <= 0 {
		return api
	}
	return &timeoutAPI{original: api, timeout: timeout}
}

func (c *timeoutAPI) GetAccount(ctx context.Context, addr *address.Address) (*Account, error) {
	tCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	acc, err := c.original.GetAccount(tCtx, addr)
	return acc, deadlineErr(ctx, tCtx, err)
}

func (c *timeoutAPI) SendExternalMessage(ctx context.Context, data []byte) ([]byte, error) {
	tCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	hash, err := c.original.SendExternalMessage(tCtx, data)
	return hash, deadlineErr(ctx, tCtx, err)
}

// deadlineErr - converts expired deadline (our own or caller's) to ErrTimeout,
// parent cancellation is kept as is
func deadlineErr(parent, ctx context.Context, err error) error {
	if err == nil || errors.Is(err, ErrTimeout) {
		return err
	}
	if errors.Is(ctx.Err(), context.DeadlineExceeded) && !errors.Is(parent.Err(), context.Canceled) {
		return fmt.Errorf("%w: %w", ErrTimeout, err)
	}
	return err
}
