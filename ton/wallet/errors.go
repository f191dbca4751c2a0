package wallet

import (
	"errors"
	"fmt"

	"github.com/xssnick/tonutils-transfer/address"
	"github.com/xssnick/tonutils-transfer/coins"
	"github.com/xssnick/tonutils-transfer/keys"
	"github.com/xssnick/tonutils-transfer/ton"
)

var (
	ErrUnsupportedVersion = fmt.Errorf("%w: wallet version is not supported", ton.ErrInvalidInput)
	ErrExpired            = fmt.Errorf("%w: message expiration should be in the future", ton.ErrInvalidInput)
	ErrInvalidPayload     = fmt.Errorf("%w: invalid payload", ton.ErrInvalidInput)
	ErrInvalidEnvelope    = fmt.Errorf("%w: invalid envelope", ton.ErrInvalidInput)
	ErrTooManyMessages    = fmt.Errorf("%w: too many messages", ton.ErrInvalidInput)

	ErrInvalidAmount  = coins.ErrInvalidAmount
	ErrInvalidAddress = address.ErrInvalidAddress

	ErrNotSerialized    = errors.New("message is not serialized")
	ErrAlreadySubmitted = errors.New("message was already submitted")
	// ErrPendingMessage - message with the same seqno was sent and is not yet confirmed or expired,
	// check it with Confirm before sending a new one
	ErrPendingMessage = errors.New("previous message with this seqno is still pending")

	errInvalidKey = fmt.Errorf("%w: invalid key", ton.ErrInvalidInput)
)

type Stage string

const (
	StageDerive Stage = "derive"
	StageSeqno  Stage = "seqno"
	StageBuild  Stage = "build"
	StageSubmit Stage = "submit"
)

type Kind int

const (
	KindUnknown Kind = iota
	// KindInvalidInput - caller error, never retried
	KindInvalidInput
	// KindStateUnavailable - nothing was sent, can be retried after backoff
	KindStateUnavailable
	// KindRejected - ledger refused the message, it should be rebuilt
	KindRejected
	// KindTransient - outcome is unknown, check by seqno before retry
	KindTransient
)

func (k Kind) String() string {
	switch k {
	case KindInvalidInput:
		return "invalid_input"
	case KindStateUnavailable:
		return "state_unavailable"
	case KindRejected:
		return "rejected"
	case KindTransient:
		return "transient"
	}
	return "unknown"
}

func Classify(err error) Kind {
	switch {
	case err == nil:
		return KindUnknown
	case errors.Is(err, ton.ErrInvalidInput),
		errors.Is(err, address.ErrInvalidAddress),
		errors.Is(err, coins.ErrInvalidAmount),
		errors.Is(err, keys.ErrInvalidMnemonic),
		errors.Is(err, keys.ErrKeyNotFound),
		errors.Is(err, ErrAlreadySubmitted),
		errors.Is(err, ErrNotSerialized):
		return KindInvalidInput
	case errors.Is(err, ton.ErrRejected):
		return KindRejected
	case errors.Is(err, ton.ErrStateUnavailable):
		return KindStateUnavailable
	case ton.IsTransient(err), errors.Is(err, ErrPendingMessage):
		return KindTransient
	}
	return KindUnknown
}

// StageError - reports which step of transfer failed, so operator can decide if retry is safe
type StageError struct {
	Stage Stage
	Err   error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("%s stage failed: %v", e.Stage, e.Err)
}

func (e *StageError) Unwrap() error {
	return e.Err
}

func (e *StageError) Kind() Kind {
	return Classify(e.Err)
}

func stageErr(stage Stage, err error) error {
	if err == nil {
		return nil
	}
	return &StageError{Stage: stage, Err: err}
}
