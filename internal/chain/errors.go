package chain

import (
	"errors"
	"fmt"
)

var (
	// ErrUnavailable means there is no usable provider or signer.
	ErrUnavailable = errors.New("chain provider unavailable")

	// ErrUserRejected means the wallet declined to sign.
	ErrUserRejected = errors.New("signature rejected by wallet")

	// ErrConfirmationTimeout means no receipt was observed before the
	// confirmation deadline. The transaction may still land later, so
	// callers must not treat this as failure and must keep the hash.
	ErrConfirmationTimeout = errors.New("confirmation not observed before deadline")
)

// RevertedError means on-chain execution rejected the call.
type RevertedError struct {
	Reason string
}

func (e *RevertedError) Error() string {
	if e.Reason == "" {
		return "transaction reverted"
	}
	return fmt.Sprintf("transaction reverted: %s", e.Reason)
}
