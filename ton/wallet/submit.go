package wallet

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/xssnick/tonutils-transfer/address"
	"github.com/xssnick/tonutils-transfer/ton"
)

var ErrNotConfirmed = errors.New("message was not confirmed in a given deadline, but it may still be confirmed later")

// DefaultPollInterval - how often WaitConfirmation reads wallet seqno
const DefaultPollInterval = time.Second

// Confirmation - handle of sent message, seqno and expiration allow to check its outcome later
type Confirmation struct {
	// returned by ledger, empty when outcome is unknown
	Hash      []byte
	Wallet    *address.Address
	Seqno     uint32
	ExpiresAt time.Time
	SentAt    time.Time
	AttemptID string
}

type Status int

const (
	// StatusPending - seqno is not yet moved and message may still be accepted
	StatusPending Status = iota
	// StatusApplied - wallet seqno is above the message seqno
	StatusApplied
	// StatusExpired - message was not applied and can never be, it is safe to build a new one
	StatusExpired
)

func (s Status) String() string {
	switch s {
	case StatusApplied:
		return "applied"
	case StatusExpired:
		return "expired"
	}
	return "pending"
}

// Submitter - sends serialized messages, never retries on its own,
// resending signed message is only safe after checking its outcome
type Submitter struct {
	api ton.Broadcaster
	log zerolog.Logger
}

func NewSubmitter(api ton.Broadcaster, log zerolog.Logger) *Submitter {
	return &Submitter{api: api, log: log}
}

// Submit - sends message once. On transient errors (timeout, network) confirmation is returned
// together with error: message may be accepted already, it should be checked with Confirm.
func (s *Submitter) Submit(ctx context.Context, data []byte) (*Confirmation, error) {
	env, err := DecodeEnvelope(data)
	if err != nil {
		return nil, err
	}

	conf := &Confirmation{
		Wallet:    env.Wallet,
		Seqno:     env.Body.Seqno,
		ExpiresAt: time.Unix(int64(env.Body.ValidUntil), 0),
		SentAt:    timeNow(),
		AttemptID: uuid.NewString(),
	}

	log := s.log.With().
		Str("attempt", conf.AttemptID).
		Str("wallet", conf.Wallet.String()).
		Uint32("seqno", conf.Seqno).
		Logger()

	hash, err := s.api.SendExternalMessage(ctx, data)
	if err != nil {
		// caller gave up waiting, request could be delivered already
		if !errors.Is(err, ton.ErrTimeout) && (errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled)) {
			err = fmt.Errorf("%w: %w", ton.ErrTimeout, err)
		}

		if ton.IsTransient(err) {
			log.Warn().Err(err).Msg("message outcome is unknown")
			return conf, fmt.Errorf("failed to send message: %w", err)
		}
		log.Debug().Err(err).Msg("message not accepted")
		return nil, fmt.Errorf("failed to send message: %w", err)
	}

	conf.Hash = hash
	log.Debug().Hex("hash", hash).Msg("message accepted")
	return conf, nil
}

// Confirm - checks message outcome by wallet seqno. Seqno above the message one means
// some message with this seqno was applied, it is our one if no other sender uses the wallet.
func Confirm(ctx context.Context, fetcher SeqnoFetcher, conf *Confirmation) (Status, error) {
	seqno, err := fetcher.Fetch(ctx, conf.Wallet)
	if err != nil {
		return StatusPending, err
	}

	if seqno > conf.Seqno {
		return StatusApplied, nil
	}
	if !timeNow().Before(conf.ExpiresAt) {
		return StatusExpired, nil
	}
	return StatusPending, nil
}

// WaitConfirmation - polls Confirm until message is applied or expired. Message is never
// resent, fetch errors are retried until ctx is done.
func WaitConfirmation(ctx context.Context, fetcher SeqnoFetcher, conf *Confirmation, interval time.Duration) (Status, error) {
	if _, hasDeadline := ctx.Deadline(); !hasDeadline {
		// fallback timeout to not stuck forever with background context
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, 180*time.Second)
		defer cancel()
	}
	if interval <= 0 {
		interval = DefaultPollInterval
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	var lastErr error
	for {
		status, err := Confirm(ctx, fetcher, conf)
		if err == nil && status != StatusPending {
			return status, nil
		}
		lastErr = err

		select {
		case <-ctx.Done():
			if lastErr != nil {
				return StatusPending, fmt.Errorf("%w: last check err: %w", ErrNotConfirmed, lastErr)
			}
			return StatusPending, ErrNotConfirmed
		case <-ticker.C:
		}
	}
}
