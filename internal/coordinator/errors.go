package coordinator

import (
	"errors"
	"fmt"
)

var (
	// ErrConcurrentAttempt means the wallet already has a mint in flight.
	ErrConcurrentAttempt = errors.New("another mint attempt is already in flight for this wallet")

	// ErrNotOwner means the acting wallet does not own the token.
	ErrNotOwner = errors.New("caller is not the recorded owner of the token")
)

// ValidationError reports malformed input. Raised before any external
// system is contacted, so there is never anything to clean up.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// StageError tags a pipeline failure with the stage it happened in.
type StageError struct {
	Stage string
	Cause string
	Err   error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("mint failed at stage %s (%s): %v", e.Stage, e.Cause, e.Err)
}

func (e *StageError) Unwrap() error {
	return e.Err
}

// IndexWriteError means the off-chain projection update failed after the
// chain already committed. Recoverable by retrying the index write alone;
// chain state is never rolled back.
type IndexWriteError struct {
	TokenId int64
	Err     error
}

func (e *IndexWriteError) Error() string {
	return fmt.Sprintf("index write failed for token %d: %v", e.TokenId, e.Err)
}

func (e *IndexWriteError) Unwrap() error {
	return e.Err
}
