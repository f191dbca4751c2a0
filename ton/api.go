package ton

import (
	"context"
	"math/big"

	"github.com/xssnick/tonutils-transfer/address"
)

// Account - state of the account as seen by ledger
type Account struct {
	Address *address.Address
	// Seqno stored in wallet contract data, 0 for not deployed wallet
	Seqno   uint32
	Balance *big.Int
	// IsActive - contract code is deployed and account is not frozen
	IsActive bool
}

// LedgerState - reads account state, fails with ErrAccountNotFound for accounts
// never seen by ledger and with ErrNetworkUnavailable on transport problems
type LedgerState interface {
	GetAccount(ctx context.Context, addr *address.Address) (*Account, error)
}

// Broadcaster - sends serialized external message and returns its hash
type Broadcaster interface {
	SendExternalMessage(ctx context.Context, data []byte) ([]byte, error)
}

type API interface {
	LedgerState
	Broadcaster
}
