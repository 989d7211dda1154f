package store

import (
	"testing"
)

// Compile-time checks that the interface is importable and usable.
func TestTokenIndexInterfaceExists(t *testing.T) {
	// This test simply validates that the TokenIndex interface compiles
	// and the sentinel errors are accessible.
	_ = ErrTokenNotFound
	_ = ErrUserNotFound
	_ = ErrAttemptNotFound
	_ = UpsertTokenParams{}
	_ = OnboardUserParams{}

	// Ensure the interface is non-nil type.
	var _ TokenIndex
}
