package types

import (
	"errors"
)

var (
	// ErrUserRejected is returned when the wallet declines to sign
	ErrUserRejected = errors.New("user rejected request")
	// ErrReverted is returned when a transaction was mined with a failed status
	ErrReverted = errors.New("transaction reverted")
	// ErrRemoteCall covers network and RPC failures
	ErrRemoteCall = errors.New("remote call failed")
	// ErrNotConnected is returned when an operation needs a connected wallet
	ErrNotConnected = errors.New("wallet not connected")
)

// Classify maps err onto one of the sentinel errors of the taxonomy.
// A nil error classifies as nil.
func Classify(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, ErrUserRejected):
		return ErrUserRejected
	case errors.Is(err, ErrReverted):
		return ErrReverted
	case errors.Is(err, ErrNotConnected):
		return ErrNotConnected
	default:
		return ErrRemoteCall
	}
}
