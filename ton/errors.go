package ton

import (
	"errors"
	"fmt"
)

var (
	ErrInvalidInput       = errors.New("invalid input")
	ErrAccountNotFound    = errors.New("account not found")
	ErrStateUnavailable   = errors.New("account state unavailable")
	ErrNetworkUnavailable = errors.New("network unavailable")
	ErrTimeout            = errors.New("request timeout")
	ErrRejected           = errors.New("rejected by ledger")
)

type RejectReason int

const (
	RejectOther RejectReason = iota
	RejectExpired
	RejectBadSignature
	RejectSeqnoMismatch
	RejectInsufficientFunds
	RejectBadFormat
)

func (r RejectReason) String() string {
	switch r {
	case RejectExpired:
		return "expired"
	case RejectBadSignature:
		return "bad signature"
	case RejectSeqnoMismatch:
		return "seqno mismatch"
	case RejectInsufficientFunds:
		return "insufficient funds"
	case RejectBadFormat:
		return "bad format"
	}
	return "other"
}

// RejectedError - message was checked by ledger and refused, it will never be accepted as is
type RejectedError struct {
	Reason  RejectReason
	Message string
}

func Reject(reason RejectReason, format string, args ...any) *RejectedError {
	return &RejectedError{
		Reason:  reason,
		Message: fmt.Sprintf(format, args...),
	}
}

func (e *RejectedError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("rejected by ledger: %s", e.Reason)
	}
	return fmt.Sprintf("rejected by ledger: %s: %s", e.Reason, e.Message)
}

func (e *RejectedError) Is(target error) bool {
	if target == ErrRejected {
		return true
	}
	t, ok := target.(*RejectedError)
	return ok && t.Reason == e.Reason
}

// RejectReasonOf - returns reason if err is rejection
func RejectReasonOf(err error) (RejectReason, bool) {
	var rej *RejectedError
	if errors.As(err, &rej) {
		return rej.Reason, true
	}
	return 0, false
}

// IsTransient - network level failure, outcome of the request is unknown
func IsTransient(err error) bool {
	return errors.Is(err, ErrNetworkUnavailable) || errors.Is(err, ErrTimeout)
}

func errorType(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrAccountNotFound):
		return "not_found"
	case errors.Is(err, ErrRejected):
		return "rejected"
	case errors.Is(err, ErrTimeout):
		return "timeout"
	case errors.Is(err, ErrNetworkUnavailable):
		return "network"
	}
	return "other"
}
