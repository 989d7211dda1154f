package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"soundstake-mint-release-go/internal/models"
	"soundstake-mint-release-go/internal/store"

	"go.uber.org/zap"
)

// PutMintAttempt checkpoints an attempt. Called once per stage transition,
// so re-writing the same id updates the row in place.
func (s *Service) PutMintAttempt(ctx context.Context, attempt *models.MintAttempt) error {
	if attempt.Id == "" {
		return fmt.Errorf("attempt id cannot be empty")
	}

	_, err := s.db.ExecContext(ctx, queryUpsertMintAttempt,
		attempt.Id, models.NormalizeAddress(attempt.OwnerAddress), attempt.Name, attempt.Creator,
		attempt.AssetCid, attempt.MetadataCid, attempt.TokenUri,
		attempt.AvailableTokens, attempt.TokenPrice.String(),
		attempt.TxHash, attempt.Stage, attempt.Outcome, attempt.Cause)
	if err != nil {
		zap.L().Error("Failed to checkpoint mint attempt",
			zap.String("attempt_id", attempt.Id),
			zap.String("stage", attempt.Stage),
			zap.Error(err))
		return fmt.Errorf("unable to checkpoint mint attempt: %w", err)
	}

	return nil
}

func (s *Service) GetMintAttempt(ctx context.Context, attemptId string) (*models.MintAttempt, error) {
	var attempt models.MintAttempt
	err := s.db.QueryRowContext(ctx, queryGetMintAttempt, attemptId).Scan(
		&attempt.Id, &attempt.OwnerAddress, &attempt.Name, &attempt.Creator,
		&attempt.AssetCid, &attempt.MetadataCid, &attempt.TokenUri,
		&attempt.AvailableTokens, &attempt.TokenPrice,
		&attempt.TxHash, &attempt.Stage, &attempt.Outcome, &attempt.Cause,
		&attempt.CreatedAt, &attempt.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrAttemptNotFound
		}
		return nil, fmt.Errorf("unable to query mint attempt: %w", err)
	}

	return &attempt, nil
}

// ListUnresolvedAttempts returns attempts with no terminal outcome yet,
// oldest first. These are the reconciler's work queue.
func (s *Service) ListUnresolvedAttempts(ctx context.Context) ([]models.MintAttempt, error) {
	return s.listAttempts(ctx, queryListUnresolvedAttempts)
}

// ListUnresolvedAttemptsByOwner returns the open attempts for one wallet,
// oldest first. The coordinator uses it to block a second submission while a
// persisted attempt still awaits its confirmation.
func (s *Service) ListUnresolvedAttemptsByOwner(ctx context.Context, ownerAddress string) ([]models.MintAttempt, error) {
	return s.listAttempts(ctx, queryListUnresolvedAttemptsByOwner, models.NormalizeAddress(ownerAddress))
}

func (s *Service) listAttempts(ctx context.Context, query string, args ...interface{}) ([]models.MintAttempt, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("unable to query unresolved attempts: %w", err)
	}
	defer func(rows *sql.Rows) {
		if err := rows.Close(); err != nil {
			zap.L().Warn("Failed to close rows", zap.Error(err))
		}
	}(rows)

	var attempts []models.MintAttempt
	for rows.Next() {
		var attempt models.MintAttempt
		err := rows.Scan(
			&attempt.Id, &attempt.OwnerAddress, &attempt.Name, &attempt.Creator,
			&attempt.AssetCid, &attempt.MetadataCid, &attempt.TokenUri,
			&attempt.AvailableTokens, &attempt.TokenPrice,
			&attempt.TxHash, &attempt.Stage, &attempt.Outcome, &attempt.Cause,
			&attempt.CreatedAt, &attempt.UpdatedAt)
		if err != nil {
			return nil, fmt.Errorf("unable to scan attempt row: %w", err)
		}
		attempts = append(attempts, attempt)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating attempt rows: %w", err)
	}

	return attempts, nil
}

func (s *Service) ResolveMintAttempt(ctx context.Context, attemptId, outcome, cause string) error {
	result, err := s.db.ExecContext(ctx, queryResolveMintAttempt, outcome, cause, attemptId)
	if err != nil {
		return fmt.Errorf("unable to resolve mint attempt: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("unable to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return store.ErrAttemptNotFound
	}

	zap.L().Info("Mint attempt resolved",
		zap.String("attempt_id", attemptId),
		zap.String("outcome", outcome),
		zap.String("cause", cause))
	return nil
}

// PutReleaseSync records an on-chain release awaiting its index update.
// Duplicate records for the same token are ignored.
func (s *Service) PutReleaseSync(ctx context.Context, tokenId int64, txHash string) error {
	_, err := s.db.ExecContext(ctx, queryPutReleaseSync, tokenId, txHash)
	if err != nil {
		return fmt.Errorf("unable to record release sync: %w", err)
	}
	return nil
}

func (s *Service) ListPendingReleaseSyncs(ctx context.Context) ([]models.ReleaseSync, error) {
	rows, err := s.db.QueryContext(ctx, queryListPendingReleaseSyncs)
	if err != nil {
		return nil, fmt.Errorf("unable to query release syncs: %w", err)
	}
	defer func(rows *sql.Rows) {
		if err := rows.Close(); err != nil {
			zap.L().Warn("Failed to close rows", zap.Error(err))
		}
	}(rows)

	var syncs []models.ReleaseSync
	for rows.Next() {
		var sync models.ReleaseSync
		if err := rows.Scan(&sync.TokenId, &sync.TxHash, &sync.CreatedAt); err != nil {
			return nil, fmt.Errorf("unable to scan release sync row: %w", err)
		}
		syncs = append(syncs, sync)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating release sync rows: %w", err)
	}

	return syncs, nil
}

func (s *Service) ResolveReleaseSync(ctx context.Context, tokenId int64) error {
	_, err := s.db.ExecContext(ctx, queryResolveReleaseSync, tokenId)
	if err != nil {
		return fmt.Errorf("unable to resolve release sync: %w", err)
	}
	return nil
}
