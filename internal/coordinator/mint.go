package coordinator

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"soundstake-mint-release-go/internal/chain"
	"soundstake-mint-release-go/internal/models"
	"soundstake-mint-release-go/internal/store"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// MintRequest carries everything needed to mint one token.
type MintRequest struct {
	OwnerAddress    string
	Name            string
	Creator         string
	FileData        []byte
	Filename        string
	MimeType        string
	AvailableTokens int64
	TokenPrice      decimal.Decimal
}

// MintResult reports the outcome of a mint. TxHash is populated as soon as
// the transaction is submitted, even when the pipeline fails afterwards.
type MintResult struct {
	AttemptId string
	TokenId   int64
	TxHash    string
	Outcome   string
	Token     *models.Token
}

// Mint runs the full pipeline: asset upload, metadata upload, on-chain
// submission, confirmation, index write. The attempt row is checkpointed at
// every stage transition so a crash or timeout at any point is recoverable
// from the persisted state.
func (c *Coordinator) Mint(ctx context.Context, req MintRequest) (*MintResult, error) {
	if err := validateMintRequest(req, c.cfg.MaxFileSize); err != nil {
		return nil, err
	}

	owner := models.NormalizeAddress(req.OwnerAddress)
	if err := c.acquireWallet(owner); err != nil {
		zap.L().Warn("Rejected concurrent mint attempt", zap.String("owner", owner))
		return nil, err
	}
	defer c.releaseWallet(owner)

	// The in-memory slot only covers this process's lifetime. An earlier
	// attempt whose confirmation timed out is still pending in the index
	// with its hash; submitting again could mint twice.
	pending, err := c.pendingSubmission(ctx, owner)
	if err != nil {
		return nil, err
	}
	if pending != nil {
		zap.L().Warn("Rejected mint, wallet has a submitted attempt awaiting confirmation",
			zap.String("owner", owner),
			zap.String("attempt_id", pending.Id),
			zap.String("tx_hash", pending.TxHash))
		return nil, fmt.Errorf("%w: attempt %s holds transaction %s awaiting confirmation, resume it instead of minting again",
			ErrConcurrentAttempt, pending.Id, pending.TxHash)
	}

	generation := c.signerGeneration.Load()

	attempt := &models.MintAttempt{
		Id:              uuid.New().String(),
		OwnerAddress:    owner,
		Name:            req.Name,
		Creator:         req.Creator,
		AvailableTokens: req.AvailableTokens,
		TokenPrice:      req.TokenPrice,
		Stage:           models.StageAssetUploading,
	}

	zap.L().Info("Starting mint attempt",
		zap.String("attempt_id", attempt.Id),
		zap.String("owner", owner),
		zap.String("name", req.Name),
		zap.String("creator", req.Creator))

	if err := c.index.PutMintAttempt(ctx, attempt); err != nil {
		return nil, fmt.Errorf("unable to open mint attempt: %w", err)
	}

	// Stage: asset upload. Nothing on-chain yet, failures are retryable
	// from scratch.
	assetCid, err := c.content.PinFile(ctx, req.FileData, req.Filename, req.MimeType)
	if err != nil {
		return nil, c.failAttempt(ctx, attempt, models.StageAssetUploading, "upload-failed", err)
	}
	attempt.AssetCid = assetCid
	attempt.Stage = models.StageMetadataUploading
	if err := c.index.PutMintAttempt(ctx, attempt); err != nil {
		return nil, fmt.Errorf("unable to checkpoint mint attempt: %w", err)
	}

	// Stage: metadata upload.
	metadata := models.TokenMetadata{
		Name:        req.Name,
		Description: fmt.Sprintf("An NFT by %s", req.Creator),
		Image:       "ipfs://" + assetCid,
		Attributes: []models.MetadataAttribute{
			{TraitType: "Creator", Value: req.Creator},
		},
	}
	metadataCid, err := c.content.PinJSON(ctx, metadata)
	if err != nil {
		return nil, c.failAttempt(ctx, attempt, models.StageMetadataUploading, "upload-failed", err)
	}
	attempt.MetadataCid = metadataCid
	attempt.TokenUri = "ipfs://" + metadataCid
	attempt.Stage = models.StageTxSubmitting
	if err := c.index.PutMintAttempt(ctx, attempt); err != nil {
		return nil, fmt.Errorf("unable to checkpoint mint attempt: %w", err)
	}

	// A wallet switch mid-attempt means the signer we are about to use is
	// not the one the attempt started with. Abort rather than continue
	// with a stale context.
	if c.signerGeneration.Load() != generation || models.NormalizeAddress(c.chain.ActiveAddress()) != owner {
		return nil, c.failAttempt(ctx, attempt, models.StageTxSubmitting, "context-changed",
			fmt.Errorf("active account changed during attempt"))
	}

	// Stage: submission. No hash exists until Mint returns, so failures
	// here are still retryable from scratch.
	handle, err := c.chain.Mint(ctx, owner, attempt.TokenUri)
	if err != nil {
		return nil, c.failAttempt(ctx, attempt, models.StageTxSubmitting, submissionCause(err), err)
	}

	// The hash is the idempotency checkpoint: persist it before anything
	// else, and detach from caller cancellation from here on. Once a hash
	// exists the attempt can only be confirmed, re-polled, or observed as
	// reverted, never resubmitted or abandoned.
	ctx = context.WithoutCancel(ctx)
	attempt.TxHash = handle.Hash
	attempt.Stage = models.StageTxConfirming
	if err := c.index.PutMintAttempt(ctx, attempt); err != nil {
		zap.L().Error("Failed to persist transaction hash, attempt recoverable only from chain",
			zap.String("attempt_id", attempt.Id),
			zap.String("tx_hash", handle.Hash),
			zap.Error(err))
		return nil, fmt.Errorf("unable to persist transaction hash %s: %w", handle.Hash, err)
	}

	return c.finishMint(ctx, attempt)
}

// ResumeMint re-drives an attempt that already has a transaction hash,
// typically after a confirmation timeout or a crash. It polls the persisted
// hash and completes the remaining stages; it never resubmits.
func (c *Coordinator) ResumeMint(ctx context.Context, attemptId string) (*MintResult, error) {
	attempt, err := c.index.GetMintAttempt(ctx, attemptId)
	if err != nil {
		return nil, err
	}
	if attempt.Outcome != "" {
		return nil, fmt.Errorf("attempt %s already resolved with outcome %s", attemptId, attempt.Outcome)
	}
	if attempt.TxHash == "" {
		return nil, fmt.Errorf("attempt %s has no transaction hash; restart the mint instead", attemptId)
	}

	zap.L().Info("Resuming mint attempt from persisted hash",
		zap.String("attempt_id", attempt.Id),
		zap.String("tx_hash", attempt.TxHash),
		zap.String("stage", attempt.Stage))

	return c.finishMint(ctx, attempt)
}

// finishMint runs confirmation and the index write for an attempt whose
// transaction hash is already persisted.
func (c *Coordinator) finishMint(ctx context.Context, attempt *models.MintAttempt) (*MintResult, error) {
	result := &MintResult{
		AttemptId: attempt.Id,
		TxHash:    attempt.TxHash,
	}

	receipt, err := c.chain.AwaitConfirmation(ctx, attempt.TxHash, c.minConfirmations)
	if err != nil {
		var reverted *chain.RevertedError
		if errors.As(err, &reverted) {
			return nil, c.failAttempt(ctx, attempt, models.StageTxConfirming, "reverted", err)
		}
		if errors.Is(err, chain.ErrConfirmationTimeout) {
			// Outcome unknown: keep the attempt open so the hash can be
			// re-polled later. Never resubmit.
			zap.L().Warn("Mint confirmation timed out, attempt left open for re-poll",
				zap.String("attempt_id", attempt.Id),
				zap.String("tx_hash", attempt.TxHash))
			return result, err
		}
		return result, fmt.Errorf("confirmation polling failed for %s: %w", attempt.TxHash, err)
	}

	if receipt.MintedTokenId == nil {
		return nil, c.failAttempt(ctx, attempt, models.StageTxConfirming, "no-token-event",
			fmt.Errorf("confirmed receipt %s carries no transfer event", attempt.TxHash))
	}
	tokenId := receipt.MintedTokenId.Int64()
	result.TokenId = tokenId

	attempt.Stage = models.StageIndexWriting
	if err := c.index.PutMintAttempt(ctx, attempt); err != nil {
		zap.L().Warn("Failed to checkpoint index-writing stage", zap.String("attempt_id", attempt.Id), zap.Error(err))
	}

	token, err := c.writeTokenIndex(ctx, tokenId, attempt)
	if err != nil {
		// The chain committed; only the read model is behind. Leave the
		// attempt open so the reconciler finishes the write, and report
		// the soft outcome.
		zap.L().Warn("Token minted but index write pending",
			zap.String("attempt_id", attempt.Id),
			zap.Int64("token_id", tokenId),
			zap.Error(err))
		result.Outcome = OutcomeMintedIndexPending
		return result, nil
	}
	result.Token = token

	if err := c.index.ResolveMintAttempt(ctx, attempt.Id, models.AttemptOutcomeCompleted, ""); err != nil {
		zap.L().Warn("Failed to resolve completed mint attempt",
			zap.String("attempt_id", attempt.Id),
			zap.Error(err))
	}

	zap.L().Info("Mint completed",
		zap.String("attempt_id", attempt.Id),
		zap.Int64("token_id", tokenId),
		zap.String("owner", attempt.OwnerAddress),
		zap.String("tx_hash", attempt.TxHash))

	result.Outcome = OutcomeCompleted
	return result, nil
}

// writeTokenIndex upserts the token projection with bounded retries.
func (c *Coordinator) writeTokenIndex(ctx context.Context, tokenId int64, attempt *models.MintAttempt) (*models.Token, error) {
	params := store.UpsertTokenParams{
		TokenId:         tokenId,
		OwnerAddress:    attempt.OwnerAddress,
		Name:            attempt.Name,
		ThumbnailCid:    attempt.AssetCid,
		AudioCid:        attempt.AssetCid,
		MetadataCid:     attempt.MetadataCid,
		AvailableTokens: attempt.AvailableTokens,
		TokenPrice:      attempt.TokenPrice,
		TxHash:          attempt.TxHash,
	}

	var lastErr error
	for i := 0; i < c.cfg.IndexRetryAttempts; i++ {
		if i > 0 {
			select {
			case <-time.After(c.cfg.IndexRetryDelay):
			case <-ctx.Done():
				return nil, &IndexWriteError{TokenId: tokenId, Err: ctx.Err()}
			}
		}

		token, err := c.index.UpsertToken(ctx, params)
		if err == nil {
			return token, nil
		}
		lastErr = err
		zap.L().Warn("Index write failed, retrying",
			zap.Int64("token_id", tokenId),
			zap.Int("try", i+1),
			zap.Error(err))
	}

	return nil, &IndexWriteError{TokenId: tokenId, Err: lastErr}
}

// failAttempt records a terminal failure for stages where no transaction
// hash exists yet, so the whole attempt is safely retryable from scratch.
func (c *Coordinator) failAttempt(ctx context.Context, attempt *models.MintAttempt, stage, cause string, err error) error {
	zap.L().Error("Mint attempt failed",
		zap.String("attempt_id", attempt.Id),
		zap.String("stage", stage),
		zap.String("cause", cause),
		zap.Error(err))

	attempt.Stage = stage
	if putErr := c.index.PutMintAttempt(ctx, attempt); putErr != nil {
		zap.L().Warn("Failed to checkpoint failing attempt", zap.String("attempt_id", attempt.Id), zap.Error(putErr))
	}
	if resolveErr := c.index.ResolveMintAttempt(ctx, attempt.Id, models.AttemptOutcomeFailed, cause); resolveErr != nil {
		zap.L().Warn("Failed to resolve failed attempt", zap.String("attempt_id", attempt.Id), zap.Error(resolveErr))
	}

	return &StageError{Stage: stage, Cause: cause, Err: err}
}

func submissionCause(err error) string {
	switch {
	case errors.Is(err, chain.ErrUserRejected):
		return "user-rejected"
	case errors.Is(err, chain.ErrUnavailable):
		return "chain-unavailable"
	default:
		var reverted *chain.RevertedError
		if errors.As(err, &reverted) {
			return "reverted"
		}
		return "submission-failed"
	}
}

func validateMintRequest(req MintRequest, maxFileSize int64) error {
	if strings.TrimSpace(req.Name) == "" {
		return &ValidationError{Field: "name", Reason: "cannot be empty"}
	}
	if strings.TrimSpace(req.Creator) == "" {
		return &ValidationError{Field: "creator", Reason: "cannot be empty"}
	}
	if strings.TrimSpace(req.OwnerAddress) == "" {
		return &ValidationError{Field: "owner", Reason: "cannot be empty"}
	}
	if len(req.FileData) == 0 {
		return &ValidationError{Field: "file", Reason: "cannot be empty"}
	}
	if int64(len(req.FileData)) > maxFileSize {
		return &ValidationError{Field: "file", Reason: fmt.Sprintf("exceeds %d byte ceiling", maxFileSize)}
	}
	if !strings.HasPrefix(req.MimeType, "image/") {
		return &ValidationError{Field: "file", Reason: fmt.Sprintf("unsupported type %s, expected image/*", req.MimeType)}
	}
	if req.AvailableTokens <= 0 {
		return &ValidationError{Field: "fractions", Reason: "must be positive"}
	}
	if req.TokenPrice.IsNegative() {
		return &ValidationError{Field: "price", Reason: "cannot be negative"}
	}
	return nil
}
