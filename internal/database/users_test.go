package database

import (
	"context"
	"errors"
	"testing"

	"soundstake-mint-release-go/internal/models"
	"soundstake-mint-release-go/internal/store"
)

func TestLoginUser_CreatesOnFirstAuth(t *testing.T) {
	service, cleanup := setupTestDb(t)
	defer cleanup()

	ctx := context.Background()

	user, err := service.LoginUser(ctx, "0xABC")
	if err != nil {
		t.Fatalf("LoginUser failed: %v", err)
	}

	if user.AccountAddress != "0xabc" {
		t.Errorf("Expected normalized address 0xabc, got %s", user.AccountAddress)
	}
	if user.IsOnboarded {
		t.Error("New user must not be onboarded")
	}
	if user.VerificationStatus != models.VerificationUnVerified {
		t.Errorf("Expected %s, got %s", models.VerificationUnVerified, user.VerificationStatus)
	}
}

func TestLoginUser_SecondLoginKeepsProfile(t *testing.T) {
	service, cleanup := setupTestDb(t)
	defer cleanup()

	ctx := context.Background()

	if _, err := service.LoginUser(ctx, "0xabc"); err != nil {
		t.Fatalf("First LoginUser failed: %v", err)
	}
	if _, err := service.OnboardUser(ctx, store.OnboardUserParams{
		AccountAddress: "0xabc",
		Name:           "Alice",
	}); err != nil {
		t.Fatalf("OnboardUser failed: %v", err)
	}

	user, err := service.LoginUser(ctx, "0xABC")
	if err != nil {
		t.Fatalf("Second LoginUser failed: %v", err)
	}
	if !user.IsOnboarded || user.Name != "Alice" {
		t.Errorf("Second login clobbered the profile: %+v", user)
	}
}

func TestOnboardUser_VerificationStatus(t *testing.T) {
	service, cleanup := setupTestDb(t)
	defer cleanup()

	ctx := context.Background()

	if _, err := service.LoginUser(ctx, "0xaaa"); err != nil {
		t.Fatalf("LoginUser failed: %v", err)
	}
	if _, err := service.LoginUser(ctx, "0xbbb"); err != nil {
		t.Fatalf("LoginUser failed: %v", err)
	}

	// No social URL: stays unverified.
	user, err := service.OnboardUser(ctx, store.OnboardUserParams{
		AccountAddress: "0xaaa",
		Name:           "Alice",
	})
	if err != nil {
		t.Fatalf("OnboardUser failed: %v", err)
	}
	if user.VerificationStatus != models.VerificationUnVerified {
		t.Errorf("Expected %s, got %s", models.VerificationUnVerified, user.VerificationStatus)
	}

	// Social URL present: verification moves to processing.
	user, err = service.OnboardUser(ctx, store.OnboardUserParams{
		AccountAddress: "0xbbb",
		Name:           "Bob",
		InstaAccUrl:    "https://instagram.com/bob",
	})
	if err != nil {
		t.Fatalf("OnboardUser failed: %v", err)
	}
	if user.VerificationStatus != models.VerificationProcessing {
		t.Errorf("Expected %s, got %s", models.VerificationProcessing, user.VerificationStatus)
	}
	if !user.IsOnboarded {
		t.Error("Expected user to be onboarded")
	}
}

func TestOnboardUser_UnknownAddress(t *testing.T) {
	service, cleanup := setupTestDb(t)
	defer cleanup()

	_, err := service.OnboardUser(context.Background(), store.OnboardUserParams{
		AccountAddress: "0xnobody",
		Name:           "Ghost",
	})
	if !errors.Is(err, store.ErrUserNotFound) {
		t.Errorf("Expected ErrUserNotFound, got %v", err)
	}
}

func TestGetUserByAddress_NotFound(t *testing.T) {
	service, cleanup := setupTestDb(t)
	defer cleanup()

	_, err := service.GetUserByAddress(context.Background(), "0xnobody")
	if !errors.Is(err, store.ErrUserNotFound) {
		t.Errorf("Expected ErrUserNotFound, got %v", err)
	}
}
