package store

import (
	"context"
	"errors"

	"soundstake-mint-release-go/internal/models"

	"github.com/shopspring/decimal"
)

// Sentinel errors shared across all index implementations.
var (
	ErrTokenNotFound   = errors.New("token not found")
	ErrUserNotFound    = errors.New("no user found for address")
	ErrAttemptNotFound = errors.New("mint attempt not found")
)

// UpsertTokenParams contains the parameters for writing a token projection.
// Applied as create-if-absent / update-if-present keyed by TokenId so a
// retried or duplicated write is a no-op rather than a corruption.
type UpsertTokenParams struct {
	TokenId         int64
	OwnerAddress    string
	Name            string
	ThumbnailCid    string
	AudioCid        string
	MetadataCid     string
	AvailableTokens int64
	TokenPrice      decimal.Decimal
	TxHash          string
}

// OnboardUserParams contains the profile fields collected during onboarding.
type OnboardUserParams struct {
	AccountAddress string
	Name           string
	InstaAccUrl    string
}

// TokenIndex defines the off-chain read-model contract that every backend
// must satisfy. The chain stays the source of truth for token existence and
// ownership; the index is a best-effort projection for display reads.
type TokenIndex interface {
	// --- Users ---
	LoginUser(ctx context.Context, accountAddress string) (*models.User, error)
	GetUserByAddress(ctx context.Context, accountAddress string) (*models.User, error)
	OnboardUser(ctx context.Context, params OnboardUserParams) (*models.User, error)

	// --- Tokens ---
	UpsertToken(ctx context.Context, params UpsertTokenParams) (*models.Token, error)
	MarkReleased(ctx context.Context, tokenId int64) error
	GetToken(ctx context.Context, tokenId int64) (*models.Token, error)
	GetTokensByOwner(ctx context.Context, ownerAddress string) ([]models.Token, error)

	// --- Mint attempt checkpoints ---
	PutMintAttempt(ctx context.Context, attempt *models.MintAttempt) error
	GetMintAttempt(ctx context.Context, attemptId string) (*models.MintAttempt, error)
	ListUnresolvedAttempts(ctx context.Context) ([]models.MintAttempt, error)
	ListUnresolvedAttemptsByOwner(ctx context.Context, ownerAddress string) ([]models.MintAttempt, error)
	ResolveMintAttempt(ctx context.Context, attemptId, outcome, cause string) error

	// --- Release sync bookkeeping ---
	PutReleaseSync(ctx context.Context, tokenId int64, txHash string) error
	ListPendingReleaseSyncs(ctx context.Context) ([]models.ReleaseSync, error)
	ResolveReleaseSync(ctx context.Context, tokenId int64) error

	// --- Lifecycle ---
	Close()
}
