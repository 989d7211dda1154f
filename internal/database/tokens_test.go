package database

import (
	"context"
	"errors"
	"testing"
	"time"

	"soundstake-mint-release-go/internal/models"
	"soundstake-mint-release-go/internal/store"

	"github.com/shopspring/decimal"
)

func setupTestDb(t *testing.T) (*Service, func()) {
	service, err := NewService(context.Background(), models.DatabaseConfig{
		Path:         ":memory:",
		MaxOpenConns: 1,
		MaxIdleConns: 1,
		PingTimeout:  5 * time.Second,
	})
	if err != nil {
		t.Fatalf("Failed to open test database: %v", err)
	}

	cleanup := func() {
		service.Close()
	}

	return service, cleanup
}

func testTokenParams(tokenId int64, owner string) store.UpsertTokenParams {
	return store.UpsertTokenParams{
		TokenId:         tokenId,
		OwnerAddress:    owner,
		Name:            "Track1",
		ThumbnailCid:    "QmThumb",
		AudioCid:        "QmAudio",
		MetadataCid:     "QmMeta",
		AvailableTokens: 100,
		TokenPrice:      decimal.NewFromFloat(0.25),
		TxHash:          "0xabc",
	}
}

func TestUpsertToken_Create(t *testing.T) {
	service, cleanup := setupTestDb(t)
	defer cleanup()

	ctx := context.Background()

	token, err := service.UpsertToken(ctx, testTokenParams(42, "0xAAA"))
	if err != nil {
		t.Fatalf("UpsertToken failed: %v", err)
	}

	if token.TokenId != 42 {
		t.Errorf("Expected token id 42, got %d", token.TokenId)
	}
	if token.OwnerAddress != "0xaaa" {
		t.Errorf("Expected normalized owner 0xaaa, got %s", token.OwnerAddress)
	}
	if token.MetadataCid != "QmMeta" {
		t.Errorf("Expected metadata CID QmMeta, got %s", token.MetadataCid)
	}
	if !token.TokenPrice.Equal(decimal.NewFromFloat(0.25)) {
		t.Errorf("Expected price 0.25, got %s", token.TokenPrice.String())
	}
	if token.IsReleased {
		t.Error("New token must not be released")
	}
}

func TestUpsertToken_Idempotent(t *testing.T) {
	service, cleanup := setupTestDb(t)
	defer cleanup()

	ctx := context.Background()
	params := testTokenParams(42, "0xaaa")

	if _, err := service.UpsertToken(ctx, params); err != nil {
		t.Fatalf("First UpsertToken failed: %v", err)
	}
	if _, err := service.UpsertToken(ctx, params); err != nil {
		t.Fatalf("Second UpsertToken failed: %v", err)
	}

	tokens, err := service.GetTokensByOwner(ctx, "0xaaa")
	if err != nil {
		t.Fatalf("GetTokensByOwner failed: %v", err)
	}
	if len(tokens) != 1 {
		t.Errorf("Expected exactly 1 token after duplicate upsert, got %d", len(tokens))
	}
}

func TestUpsertToken_NeverUnreleases(t *testing.T) {
	service, cleanup := setupTestDb(t)
	defer cleanup()

	ctx := context.Background()
	params := testTokenParams(7, "0xaaa")

	if _, err := service.UpsertToken(ctx, params); err != nil {
		t.Fatalf("UpsertToken failed: %v", err)
	}
	if err := service.MarkReleased(ctx, 7); err != nil {
		t.Fatalf("MarkReleased failed: %v", err)
	}

	// A retried index write after release must not flip the flag back.
	token, err := service.UpsertToken(ctx, params)
	if err != nil {
		t.Fatalf("Retried UpsertToken failed: %v", err)
	}
	if !token.IsReleased {
		t.Error("Upsert flipped is_released back to false")
	}
}

func TestMarkReleased_NotFound(t *testing.T) {
	service, cleanup := setupTestDb(t)
	defer cleanup()

	err := service.MarkReleased(context.Background(), 999)
	if !errors.Is(err, store.ErrTokenNotFound) {
		t.Errorf("Expected ErrTokenNotFound, got %v", err)
	}
}

func TestGetToken_NotFound(t *testing.T) {
	service, cleanup := setupTestDb(t)
	defer cleanup()

	_, err := service.GetToken(context.Background(), 999)
	if !errors.Is(err, store.ErrTokenNotFound) {
		t.Errorf("Expected ErrTokenNotFound, got %v", err)
	}
}

func TestGetTokensByOwner_FiltersAndNormalizes(t *testing.T) {
	service, cleanup := setupTestDb(t)
	defer cleanup()

	ctx := context.Background()

	if _, err := service.UpsertToken(ctx, testTokenParams(1, "0xAAA")); err != nil {
		t.Fatalf("UpsertToken failed: %v", err)
	}
	if _, err := service.UpsertToken(ctx, testTokenParams(2, "0xBBB")); err != nil {
		t.Fatalf("UpsertToken failed: %v", err)
	}

	tokens, err := service.GetTokensByOwner(ctx, "0xaaa")
	if err != nil {
		t.Fatalf("GetTokensByOwner failed: %v", err)
	}
	if len(tokens) != 1 {
		t.Fatalf("Expected 1 token for 0xaaa, got %d", len(tokens))
	}
	if tokens[0].TokenId != 1 {
		t.Errorf("Expected token 1, got %d", tokens[0].TokenId)
	}
}
