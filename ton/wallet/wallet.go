package wallet

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/oasisprotocol/curve25519-voi/primitives/ed25519"
	"github.com/rs/zerolog"

	"github.com/xssnick/tonutils-transfer/address"
	"github.com/xssnick/tonutils-transfer/coins"
	"github.com/xssnick/tonutils-transfer/keys"
	"github.com/xssnick/tonutils-transfer/lock"
	"github.com/xssnick/tonutils-transfer/metrics"
	"github.com/xssnick/tonutils-transfer/ton"
)

type Version int

const (
	V1R1         Version = 11
	V1R2         Version = 12
	V1R3         Version = 13
	V2R1         Version = 21
	V2R2         Version = 22
	V3R1         Version = 31
	V3R2         Version = 32
	V4R1         Version = 41
	V4R2         Version = 42
	V5R1Final    Version = 52
	HighloadV2R2 Version = 122
	HighloadV3   Version = 300
	Unknown      Version = 0
)

const V3 = V3R2

func (v Version) String() string {
	switch v {
	case Unknown:
		return "unknown"
	case HighloadV2R2:
		return "highload V2R2"
	case HighloadV3:
		return "highload V3"
	case V5R1Final:
		return "V5R1 final"
	}

	if v/10 > 0 && v/10 < 10 {
		return fmt.Sprintf("V%dR%d", v/10, v%10)
	}
	return fmt.Sprintf("%d", v)
}

func ParseVersion(s string) (Version, error) {
	for _, v := range []Version{V1R1, V1R2, V1R3, V2R1, V2R2, V3R1, V3R2, V4R1, V4R2, V5R1Final, HighloadV2R2, HighloadV3} {
		if v.String() == s {
			return v, nil
		}
	}
	if s == "V3" {
		return V3, nil
	}
	return Unknown, fmt.Errorf("%w: %q", ErrUnsupportedVersion, s)
}

// messages can be built and verified only for these versions
var walletCode = map[Version]cellRef{
	V3R1: mustParseCode(_V3R1CodeHex),
	V3R2: mustParseCode(_V3R2CodeHex),
}

// Supported - messages of this version can be built
func (v Version) Supported() bool {
	_, ok := walletCode[v]
	return ok
}

// defining some funcs this way to mock for tests
var timeNow = time.Now

type Wallet struct {
	api    ton.API
	key    ed25519.PrivateKey
	pubKey ed25519.PublicKey
	addr   *address.Address
	ver    Version

	// Can be used to operate multiple wallets with the same key and version.
	// use GetSubwallet if you need it.
	subwallet uint32
	workchain int32
	testnet   bool

	builder   *Builder
	seqno     SeqnoFetcher
	submitter *Submitter
	locker    lock.Locker
	ttl       time.Duration

	pollInterval time.Duration

	// logger given by caller, sub-wallets are derived from it
	baseLog zerolog.Logger
	log     zerolog.Logger
	metrics *metrics.Metrics

	pendingMx sync.Mutex
	// sent but not yet confirmed messages by seqno
	pending map[uint32]*Confirmation
}

type Option func(*Wallet)

func WithLogger(log zerolog.Logger) Option {
	return func(w *Wallet) {
		w.log = log
	}
}

// WithLocker - lock shared by all senders of the wallet, in-process lock is used by default
func WithLocker(l lock.Locker) Option {
	return func(w *Wallet) {
		w.locker = l
	}
}

func WithMessageTTL(ttl time.Duration) Option {
	return func(w *Wallet) {
		w.ttl = ttl
	}
}

func WithWorkchain(wc int32) Option {
	return func(w *Wallet) {
		w.workchain = wc
	}
}

func WithSubwallet(id uint32) Option {
	return func(w *Wallet) {
		w.subwallet = id
	}
}

// WithNetwork - testnet wallets are rendered with testnet only flag
func WithNetwork(n ton.Network) Option {
	return func(w *Wallet) {
		w.testnet = n == ton.Testnet
	}
}

func WithPollInterval(d time.Duration) Option {
	return func(w *Wallet) {
		w.pollInterval = d
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(w *Wallet) {
		w.metrics = m
	}
}

// WithSeqnoFetcher - instead of reading seqno from ledger this fetcher will be used,
// for example to take seqno from own database
func WithSeqnoFetcher(f SeqnoFetcher) Option {
	return func(w *Wallet) {
		w.seqno = f
	}
}

func FromPrivateKey(api ton.API, key ed25519.PrivateKey, version Version, opts ...Option) (*Wallet, error) {
	if len(key) != ed25519.PrivateKeySize {
		return nil, stageErr(StageDerive, fmt.Errorf("%w: private key should be %d bytes", errInvalidKey, ed25519.PrivateKeySize))
	}

	w := &Wallet{
		api:       api,
		key:       key,
		pubKey:    key.Public().(ed25519.PublicKey),
		ver:       version,
		subwallet: DefaultSubwallet,
		ttl:       DefaultMessageTTL,
		log:       zerolog.Nop(),
		pending:   map[uint32]*Confirmation{},

		pollInterval: DefaultPollInterval,
	}
	if n, ok := api.(interface{ Network() ton.Network }); ok {
		w.testnet = n.Network() == ton.Testnet
	}

	for _, opt := range opts {
		opt(w)
	}

	if err := w.init(); err != nil {
		return nil, stageErr(StageDerive, err)
	}
	return w, nil
}

// FromProvider - derives key from recovery phrase using external provider
func FromProvider(api ton.API, provider keys.Provider, words []string, password string, version Version, opts ...Option) (*Wallet, error) {
	key, err := provider.KeyPair(words, password)
	if err != nil {
		return nil, stageErr(StageDerive, fmt.Errorf("failed to get key pair: %w", err))
	}
	return FromPrivateKey(api, key, version, opts...)
}

func (w *Wallet) init() (err error) {
	if w.ttl <= 0 {
		return fmt.Errorf("%w: message ttl should be positive", ton.ErrInvalidInput)
	}

	w.builder, err = NewBuilder(w.key, w.ver, w.workchain, w.subwallet)
	if err != nil {
		return err
	}
	w.addr = w.builder.Address().Testnet(w.testnet)

	if w.seqno == nil {
		w.seqno = NewSeqnoTracker(w.api)
	}
	if w.locker == nil {
		w.locker = lock.NewLocal()
	}
	w.baseLog = w.log
	w.log = w.log.With().Str("wallet", w.addr.String()).Str("version", w.ver.String()).Logger()
	w.submitter = NewSubmitter(w.api, w.log)
	return nil
}

// Address - bounceable form of wallet address
func (w *Wallet) Address() *address.Address {
	return w.addr
}

// WalletAddress - non bounceable form, it should be used to receive funds
func (w *Wallet) WalletAddress() *address.Address {
	return w.addr.Bounce(false)
}

func (w *Wallet) PublicKey() ed25519.PublicKey {
	return w.pubKey
}

func (w *Wallet) Version() Version {
	return w.ver
}

func (w *Wallet) GetSubwalletID() uint32 {
	return w.subwallet
}

func (w *Wallet) GetSubwallet(subwallet uint32) (*Wallet, error) {
	sub := &Wallet{
		api:       w.api,
		key:       w.key,
		pubKey:    w.pubKey,
		ver:       w.ver,
		subwallet: subwallet,
		workchain: w.workchain,
		testnet:   w.testnet,
		locker:    w.locker,
		ttl:       w.ttl,
		log:       w.baseLog,
		metrics:   w.metrics,
		pending:   map[uint32]*Confirmation{},

		pollInterval: w.pollInterval,
	}
	if _, ok := w.seqno.(*SeqnoTracker); !ok {
		sub.seqno = w.seqno
	}

	if err := sub.init(); err != nil {
		return nil, err
	}
	return sub, nil
}

func (w *Wallet) GetBalance(ctx context.Context) (coins.Coins, error) {
	acc, err := w.api.GetAccount(ctx, w.addr)
	if err != nil {
		if errors.Is(err, ton.ErrAccountNotFound) {
			return coins.Zero, nil
		}
		return coins.Coins{}, fmt.Errorf("failed to get account state: %w", err)
	}

	if acc.Balance == nil {
		return coins.Zero, nil
	}
	return coins.FromNanoTON(acc.Balance)
}

// BuildTransfer - fetches current seqno and signs message with default expiration.
// Message should be sent with Send before its expiration.
func (w *Wallet) BuildTransfer(ctx context.Context, intents ...Intent) (*Message, error) {
	seqno, err := w.fetchSeqno(ctx)
	if err != nil {
		return nil, err
	}

	msg, err := w.builder.BuildMany(intents, seqno, ExpiresIn(w.ttl))
	if err != nil {
		return nil, stageErr(StageBuild, err)
	}
	return msg, nil
}

// Send - serializes and submits the message, message cannot be sent twice
func (w *Wallet) Send(ctx context.Context, msg *Message) (*Confirmation, error) {
	if msg.State() == StateSubmitted {
		return nil, stageErr(StageSubmit, ErrAlreadySubmitted)
	}

	data, err := msg.Serialize()
	if err != nil {
		return nil, stageErr(StageBuild, err)
	}

	// after this point message is considered as sent even on error,
	// it may be accepted by ledger before we got the response
	if err = msg.MarkSubmitted(); err != nil {
		return nil, stageErr(StageSubmit, err)
	}

	conf, err := w.submitter.Submit(ctx, data)
	if conf != nil {
		w.pendingMx.Lock()
		w.pending[conf.Seqno] = conf
		w.pendingMx.Unlock()
	}
	if err != nil {
		return conf, stageErr(StageSubmit, err)
	}
	return conf, nil
}

// Transfer - full flow under wallet lock: fetch seqno, build, serialize, submit.
// Aborts on first failure with *StageError.
func (w *Wallet) Transfer(ctx context.Context, intents ...Intent) (_ *Confirmation, err error) {
	defer func() {
		w.observe(err)
	}()

	unlock, err := w.locker.Lock(ctx, w.addr.StringRaw())
	if err != nil {
		return nil, stageErr(StageSeqno, fmt.Errorf("failed to lock wallet: %w", err))
	}
	defer unlock()

	msg, err := w.BuildTransfer(ctx, intents...)
	if err != nil {
		w.log.Debug().Err(err).Msg("transfer not built")
		return nil, err
	}

	conf, err := w.Send(ctx, msg)
	if err != nil {
		w.log.Warn().Err(err).Uint32("seqno", msg.Seqno()).Str("kind", Classify(err).String()).Msg("transfer failed")
		return conf, err
	}

	w.log.Info().Uint32("seqno", conf.Seqno).Hex("hash", conf.Hash).Str("attempt", conf.AttemptID).Msg("transfer sent")
	return conf, nil
}

// Confirm - checks outcome of sent message by wallet seqno
func (w *Wallet) Confirm(ctx context.Context, conf *Confirmation) (Status, error) {
	status, err := Confirm(ctx, w.seqno, conf)
	if err != nil {
		return status, fmt.Errorf("failed to check message: %w", err)
	}

	if status != StatusPending {
		w.pendingMx.Lock()
		if w.pending[conf.Seqno] == conf {
			delete(w.pending, conf.Seqno)
		}
		w.pendingMx.Unlock()
	}
	return status, nil
}

// WaitConfirmation - blocks until message is applied or expired, see WaitConfirmation func
func (w *Wallet) WaitConfirmation(ctx context.Context, conf *Confirmation) (Status, error) {
	status, err := WaitConfirmation(ctx, w.seqno, conf, w.pollInterval)
	if err != nil {
		return status, err
	}

	w.pendingMx.Lock()
	if w.pending[conf.Seqno] == conf {
		delete(w.pending, conf.Seqno)
	}
	w.pendingMx.Unlock()

	w.log.Debug().Uint32("seqno", conf.Seqno).Str("status", status.String()).Msg("message finalized")
	return status, nil
}

func (w *Wallet) fetchSeqno(ctx context.Context) (uint32, error) {
	seqno, err := w.seqno.Fetch(ctx, w.addr)
	if err != nil {
		return 0, stageErr(StageSeqno, err)
	}

	w.pendingMx.Lock()
	defer w.pendingMx.Unlock()

	now := timeNow()
	for s, conf := range w.pending {
		if s < seqno || !now.Before(conf.ExpiresAt) {
			delete(w.pending, s)
		}
	}

	// ledger did not move seqno yet, building again would create a competing message
	if conf, ok := w.pending[seqno]; ok {
		return 0, stageErr(StageSeqno, fmt.Errorf("%w: seqno %d, attempt %s, expires at %s",
			ErrPendingMessage, seqno, conf.AttemptID, conf.ExpiresAt.UTC().Format(time.RFC3339)))
	}
	return seqno, nil
}

func (w *Wallet) observe(err error) {
	stage, result := StageSubmit, "ok"
	if err != nil {
		result = Classify(err).String()

		var sErr *StageError
		if errors.As(err, &sErr) {
			stage = sErr.Stage
		}
	}
	w.metrics.ObserveTransfer(string(stage), result)
}
