package models

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Verification states for a user's creator profile.
const (
	VerificationUnVerified = "UnVerified"
	VerificationProcessing = "Processing"
	VerificationVerified   = "Verified"
)

// User represents a wallet-address identity in the off-chain index
type User struct {
	AccountAddress     string    `db:"account_address"`
	IsOnboarded        bool      `db:"is_onboarded"`
	Name               string    `db:"name"`
	InstaAccUrl        string    `db:"insta_acc_url"`
	VerificationStatus string    `db:"verification_status"`
	CreatedAt          time.Time `db:"created_at"`
	UpdatedAt          time.Time `db:"updated_at"`
}

// Token is the off-chain projection of one minted fractional-music token.
// The chain is the source of truth for existence and ownership; this record
// exists for display reads and must only ever be written through upserts
// keyed by token_id.
type Token struct {
	TokenId         int64           `db:"token_id"`
	OwnerAddress    string          `db:"owner_address"`
	Name            string          `db:"name"`
	ThumbnailCid    string          `db:"thumbnail_cid"`
	AudioCid        string          `db:"audio_cid"`
	MetadataCid     string          `db:"metadata_cid"`
	AvailableTokens int64           `db:"available_tokens"`
	TokenPrice      decimal.Decimal `db:"token_price"`
	IsReleased      bool            `db:"is_released"`
	TxHash          string          `db:"tx_hash"`
	CreatedAt       time.Time       `db:"created_at"`
}

// Mint attempt lifecycle stages.
const (
	StageAssetUploading    = "asset-uploading"
	StageMetadataUploading = "metadata-uploading"
	StageTxSubmitting      = "tx-submitting"
	StageTxConfirming      = "tx-confirming"
	StageIndexWriting      = "index-writing"
	StageCompleted         = "completed"
)

// Mint attempt terminal outcomes.
const (
	AttemptOutcomeCompleted = "completed"
	AttemptOutcomeFailed    = "failed"
)

// MintAttempt tracks one in-flight mint. The row is the crash-recovery
// checkpoint: once tx_hash is set the attempt can only be confirmed,
// re-polled, or observed as reverted -- never resubmitted.
type MintAttempt struct {
	Id              string          `db:"id"`
	OwnerAddress    string          `db:"owner_address"`
	Name            string          `db:"name"`
	Creator         string          `db:"creator"`
	AssetCid        string          `db:"asset_cid"`
	MetadataCid     string          `db:"metadata_cid"`
	TokenUri        string          `db:"token_uri"`
	AvailableTokens int64           `db:"available_tokens"`
	TokenPrice      decimal.Decimal `db:"token_price"`
	TxHash          string          `db:"tx_hash"`
	Stage           string          `db:"stage"`
	Outcome         string          `db:"outcome"`
	Cause           string          `db:"cause"`
	CreatedAt       time.Time       `db:"created_at"`
	UpdatedAt       time.Time       `db:"updated_at"`
}

// ReleaseSync records an on-chain release whose index update is still
// pending. Resolved once the is_released flag lands in the index.
type ReleaseSync struct {
	TokenId   int64     `db:"token_id"`
	TxHash    string    `db:"tx_hash"`
	CreatedAt time.Time `db:"created_at"`
}

// NormalizeAddress case-normalizes a wallet address for use as an index key.
func NormalizeAddress(address string) string {
	return strings.ToLower(strings.TrimSpace(address))
}
