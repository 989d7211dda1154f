package coordinator

import (
	"context"
	"errors"
	"fmt"
	"time"

	"soundstake-mint-release-go/internal/chain"
	"soundstake-mint-release-go/internal/models"

	"go.uber.org/zap"
)

// ReleaseRequest asks for an already-minted token to be released.
type ReleaseRequest struct {
	OwnerAddress string
	TokenId      int64
}

// ReleaseResult reports the outcome of a release.
type ReleaseResult struct {
	TokenId int64
	TxHash  string
	Outcome string
}

// Release transitions a token to its released state: on-chain call,
// confirmation, then the off-chain is_released flag. The transition is
// one-way; once the chain confirms, the release transaction is never
// re-submitted — only the index update is retried.
func (c *Coordinator) Release(ctx context.Context, req ReleaseRequest) (*ReleaseResult, error) {
	owner := models.NormalizeAddress(req.OwnerAddress)

	token, err := c.index.GetToken(ctx, req.TokenId)
	if err != nil {
		return nil, err
	}

	if token.IsReleased {
		zap.L().Info("Token already released, nothing to do",
			zap.Int64("token_id", req.TokenId))
		return &ReleaseResult{TokenId: req.TokenId, Outcome: OutcomeAlreadyReleased}, nil
	}

	if models.NormalizeAddress(token.OwnerAddress) != owner {
		zap.L().Warn("Release rejected, caller does not own token",
			zap.Int64("token_id", req.TokenId),
			zap.String("caller", owner),
			zap.String("owner", token.OwnerAddress))
		return nil, ErrNotOwner
	}

	// The index is only a projection; the chain is the source of truth for
	// ownership. Cross-check before submitting.
	chainOwner, err := c.chain.OwnerOf(ctx, req.TokenId)
	if err != nil {
		return nil, fmt.Errorf("unable to verify on-chain owner of token %d: %w", req.TokenId, err)
	}
	if models.NormalizeAddress(chainOwner) != owner {
		zap.L().Warn("Release rejected, chain records a different owner",
			zap.Int64("token_id", req.TokenId),
			zap.String("caller", owner),
			zap.String("chain_owner", chainOwner))
		return nil, ErrNotOwner
	}

	zap.L().Info("Starting release",
		zap.Int64("token_id", req.TokenId),
		zap.String("owner", owner))

	handle, err := c.chain.Release(ctx, req.TokenId)
	if err != nil {
		// Nothing landed on chain and the index is untouched; the token
		// stays unreleased and the caller may retry.
		return nil, fmt.Errorf("release submission failed for token %d: %w", req.TokenId, err)
	}

	// Checkpoint the hash before waiting, and detach from caller
	// cancellation. If anything dies past this point, the reconciler picks
	// the release up from this row.
	ctx = context.WithoutCancel(ctx)
	if err := c.index.PutReleaseSync(ctx, req.TokenId, handle.Hash); err != nil {
		zap.L().Error("Failed to checkpoint release sync",
			zap.Int64("token_id", req.TokenId),
			zap.String("tx_hash", handle.Hash),
			zap.Error(err))
	}

	result := &ReleaseResult{TokenId: req.TokenId, TxHash: handle.Hash}

	receipt, err := c.chain.AwaitConfirmation(ctx, handle.Hash, c.minConfirmations)
	if err != nil {
		var reverted *chain.RevertedError
		if errors.As(err, &reverted) {
			// On-chain logic rejected the call; drop the checkpoint and
			// report, leaving the index unchanged.
			if resolveErr := c.index.ResolveReleaseSync(ctx, req.TokenId); resolveErr != nil {
				zap.L().Warn("Failed to clear release sync after revert",
					zap.Int64("token_id", req.TokenId),
					zap.Error(resolveErr))
			}
			return nil, fmt.Errorf("release reverted for token %d: %w", req.TokenId, err)
		}
		if errors.Is(err, chain.ErrConfirmationTimeout) {
			// Outcome unknown: keep the checkpoint so the reconciler can
			// re-poll the hash. Never resubmit.
			zap.L().Warn("Release confirmation timed out, sync left pending",
				zap.Int64("token_id", req.TokenId),
				zap.String("tx_hash", handle.Hash))
			return result, err
		}
		return result, fmt.Errorf("release confirmation polling failed for token %d: %w", req.TokenId, err)
	}

	if err := c.markReleasedWithRetry(ctx, req.TokenId); err != nil {
		// Chain says released, index is behind. Soft outcome; the
		// pending sync row drives reconciliation.
		zap.L().Warn("Token released on chain but index update pending",
			zap.Int64("token_id", req.TokenId),
			zap.Error(err))
		result.Outcome = OutcomeReleasedIndexPending
		return result, nil
	}

	if err := c.index.ResolveReleaseSync(ctx, req.TokenId); err != nil {
		zap.L().Warn("Failed to clear completed release sync",
			zap.Int64("token_id", req.TokenId),
			zap.Error(err))
	}

	zap.L().Info("Release completed",
		zap.Int64("token_id", req.TokenId),
		zap.String("tx_hash", handle.Hash),
		zap.Uint64("block_number", receipt.BlockNumber))

	result.Outcome = OutcomeReleased
	return result, nil
}

func (c *Coordinator) markReleasedWithRetry(ctx context.Context, tokenId int64) error {
	var lastErr error
	for i := 0; i < c.cfg.IndexRetryAttempts; i++ {
		if i > 0 {
			select {
			case <-time.After(c.cfg.IndexRetryDelay):
			case <-ctx.Done():
				return &IndexWriteError{TokenId: tokenId, Err: ctx.Err()}
			}
		}

		if err := c.index.MarkReleased(ctx, tokenId); err == nil {
			return nil
		} else {
			lastErr = err
			zap.L().Warn("Release index update failed, retrying",
				zap.Int64("token_id", tokenId),
				zap.Int("try", i+1),
				zap.Error(err))
		}
	}

	return &IndexWriteError{TokenId: tokenId, Err: lastErr}
}
