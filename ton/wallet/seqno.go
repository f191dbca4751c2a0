package wallet

import (
	"context"
	"errors"
	"fmt"

	"github.com/xssnick/tonutils-transfer/address"
	"github.com/xssnick/tonutils-transfer/ton"
)

// SeqnoFetcher - returns seqno which should be used for the next message of the wallet
type SeqnoFetcher interface {
	Fetch(ctx context.Context, addr *address.Address) (uint32, error)
}

type SeqnoFetcherFunc func(ctx context.Context, addr *address.Address) (uint32, error)

func (f SeqnoFetcherFunc) Fetch(ctx context.Context, addr *address.Address) (uint32, error) {
	return f(ctx, addr)
}

// SeqnoTracker - reads seqno from ledger on every call. Value is not cached,
// other senders of the same wallet may move it at any moment.
type SeqnoTracker struct {
	api ton.LedgerState
}

func NewSeqnoTracker(api ton.LedgerState) *SeqnoTracker {
	return &SeqnoTracker{api: api}
}

// Fetch - not existing or not yet deployed wallet has seqno 0
func (t *SeqnoTracker) Fetch(ctx context.Context, addr *address.Address) (uint32, error) {
	acc, err := t.api.GetAccount(ctx, addr)
	if err != nil {
		if errors.Is(err, ton.ErrAccountNotFound) {
			return 0, nil
		}
		return 0, fmt.Errorf("%w: get seqno err: %w", ton.ErrStateUnavailable, err)
	}

	if !acc.IsActive {
		return 0, nil
	}
	return acc.Seqno, nil
}
