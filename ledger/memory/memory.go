// Package memory is an in-process ledger which checks external messages the way
// v3 wallet contract does. It is used by tests and examples in place of a network.
package memory

import (
	"context"
	"errors"
	"math/big"
	"sync"
	"time"

	"github.com/oasisprotocol/curve25519-voi/primitives/ed25519"
	"github.com/rs/zerolog"

	"github.com/xssnick/tonutils-transfer/address"
	"github.com/xssnick/tonutils-transfer/ton"
	"github.com/xssnick/tonutils-transfer/ton/wallet"
)

type account struct {
	balance *big.Int
	seqno   uint32
	active  bool

	pubKey    ed25519.PublicKey
	subwallet uint32
}

type Ledger struct {
	mx       sync.Mutex
	accounts map[string]*account

	network ton.Network
	now     func() time.Time
	log     zerolog.Logger

	failNext []error
	dropNext int
}

type Option func(*Ledger)

func WithNetwork(n ton.Network) Option {
	return func(l *Ledger) {
		l.network = n
	}
}

func WithLogger(log zerolog.Logger) Option {
	return func(l *Ledger) {
		l.log = log
	}
}

func New(opts ...Option) *Ledger {
	l := &Ledger{
		accounts: map[string]*account{},
		network:  ton.Mainnet,
		now:      time.Now,
		log:      zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Dial - every connection of the pool is served by this ledger
func (l *Ledger) Dial() ton.DialFunc {
	return func(ctx context.Context, cfg ton.Config, idx int) (ton.API, error) {
		if cfg.Network != l.network {
			return nil, errors.New("ledger is of another network")
		}
		return l, nil
	}
}

func (l *Ledger) Network() ton.Network {
	return l.network
}

// SetNow - fixes ledger time, nil returns to the wall clock
func (l *Ledger) SetNow(t *time.Time) {
	l.mx.Lock()
	defer l.mx.Unlock()

	if t == nil {
		l.now = time.Now
		return
	}
	at := *t
	l.now = func() time.Time {
		return at
	}
}

// FailNext - next requests fail with the given errors, one per request
func (l *Ledger) FailNext(errs ...error) {
	l.mx.Lock()
	defer l.mx.Unlock()
	l.failNext = append(l.failNext, errs...)
}

// DropNextConfirmation - next accepted message is applied but the sender gets timeout
func (l *Ledger) DropNextConfirmation() {
	l.mx.Lock()
	defer l.mx.Unlock()
	l.dropNext++
}

// Fund - credits account, creates it as not deployed if it is new
func (l *Ledger) Fund(addr *address.Address, nano *big.Int) {
	l.mx.Lock()
	defer l.mx.Unlock()

	acc := l.getOrCreate(addr)
	acc.balance.Add(acc.balance, nano)
}

func (l *Ledger) Balance(addr *address.Address) *big.Int {
	l.mx.Lock()
	defer l.mx.Unlock()

	acc, ok := l.accounts[addr.StringRaw()]
	if !ok {
		return big.NewInt(0)
	}
	return new(big.Int).Set(acc.balance)
}

func (l *Ledger) GetAccount(ctx context.Context, addr *address.Address) (*ton.Account, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	l.mx.Lock()
	defer l.mx.Unlock()

	if err := l.popFailure(); err != nil {
		return nil, err
	}

	acc, ok := l.accounts[addr.StringRaw()]
	if !ok {
		return nil, ton.ErrAccountNotFound
	}

	return &ton.Account{
		Address:  addr,
		Seqno:    acc.seqno,
		Balance:  new(big.Int).Set(acc.balance),
		IsActive: acc.active,
	}, nil
}

func (l *Ledger) SendExternalMessage(ctx context.Context, data []byte) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	l.mx.Lock()
	defer l.mx.Unlock()

	if err := l.popFailure(); err != nil {
		return nil, err
	}

	env, err := wallet.DecodeEnvelope(data)
	if err != nil {
		return nil, ton.Reject(ton.RejectBadFormat, "%v", err)
	}

	log := l.log.With().Str("wallet", env.Wallet.StringRaw()).Uint32("seqno", env.Body.Seqno).Logger()

	if err = l.apply(env); err != nil {
		log.Debug().Err(err).Msg("external message rejected")
		return nil, err
	}

	hash := wallet.MessageHash(data)
	if l.dropNext > 0 {
		l.dropNext--
		log.Debug().Msg("external message applied, response dropped")
		return nil, ton.ErrTimeout
	}

	log.Debug().Hex("hash", hash).Msg("external message applied")
	return hash, nil
}

func (l *Ledger) apply(env *wallet.Envelope) error {
	acc, ok := l.accounts[env.Wallet.StringRaw()]
	if !ok || acc.balance.Sign() == 0 {
		return ton.Reject(ton.RejectInsufficientFunds, "account has no balance to pay for message")
	}

	pubKey, subwallet := acc.pubKey, acc.subwallet
	if !acc.active {
		si := env.StateInit
		if si == nil {
			return ton.Reject(ton.RejectBadFormat, "account is not deployed and message has no state init")
		}

		addr, err := wallet.DeriveAddress(si.PublicKey, si.Version, env.Wallet.Workchain(), si.Subwallet)
		if err != nil || !addr.Equals(env.Wallet) {
			return ton.Reject(ton.RejectBadFormat, "state init does not belong to account")
		}
		pubKey, subwallet = si.PublicKey, si.Subwallet
	}

	if !env.Verify(pubKey) {
		return ton.Reject(ton.RejectBadSignature, "")
	}
	if env.Body.Subwallet != subwallet {
		return ton.Reject(ton.RejectOther, "subwallet %d, expected %d", env.Body.Subwallet, subwallet)
	}
	if int64(env.Body.ValidUntil) <= l.now().Unix() {
		return ton.Reject(ton.RejectExpired, "valid until %d", env.Body.ValidUntil)
	}
	if env.Body.Seqno != acc.seqno {
		return ton.Reject(ton.RejectSeqnoMismatch, "seqno %d, expected %d", env.Body.Seqno, acc.seqno)
	}

	total := new(big.Int)
	for _, m := range env.Body.Messages {
		total.Add(total, m.Amount.Nano())
	}
	if total.Cmp(acc.balance) > 0 {
		return ton.Reject(ton.RejectInsufficientFunds, "needs %s, has %s", total, acc.balance)
	}

	acc.balance.Sub(acc.balance, total)
	acc.seqno++
	acc.active = true
	acc.pubKey, acc.subwallet = pubKey, subwallet

	for _, m := range env.Body.Messages {
		dst := l.getOrCreate(m.To)
		dst.balance.Add(dst.balance, m.Amount.Nano())
	}
	return nil
}

func (l *Ledger) getOrCreate(addr *address.Address) *account {
	acc, ok := l.accounts[addr.StringRaw()]
	if !ok {
		acc = &account{balance: new(big.Int)}
		l.accounts[addr.StringRaw()] = acc
	}
	return acc
}

func (l *Ledger) popFailure() error {
	if len(l.failNext) == 0 {
		return nil
	}
	err := l.failNext[0]
	l.failNext = l.failNext[1:]
	return err
}
