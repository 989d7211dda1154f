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

// UpsertToken writes the token projection keyed by the chain-assigned token
// identifier. Re-delivery of the same write is a no-op; is_released is never
// touched here so a late upsert cannot undo a release.
func (s *Service) UpsertToken(ctx context.Context, params store.UpsertTokenParams) (*models.Token, error) {
	owner := models.NormalizeAddress(params.OwnerAddress)
	if owner == "" {
		return nil, fmt.Errorf("owner address cannot be empty")
	}

	_, err := s.db.ExecContext(ctx, queryUpsertToken,
		params.TokenId, owner, params.Name, params.ThumbnailCid, params.AudioCid,
		params.MetadataCid, params.AvailableTokens, params.TokenPrice.String(), params.TxHash)
	if err != nil {
		zap.L().Error("Failed to upsert token",
			zap.Int64("token_id", params.TokenId),
			zap.String("owner", owner),
			zap.Error(err))
		return nil, fmt.Errorf("unable to upsert token: %w", err)
	}

	zap.L().Info("Token projection written",
		zap.Int64("token_id", params.TokenId),
		zap.String("owner", owner),
		zap.String("metadata_cid", params.MetadataCid))

	return s.GetToken(ctx, params.TokenId)
}

// MarkReleased flips the one-way release flag for a token.
func (s *Service) MarkReleased(ctx context.Context, tokenId int64) error {
	result, err := s.db.ExecContext(ctx, queryMarkReleased, tokenId)
	if err != nil {
		zap.L().Error("Failed to mark token released", zap.Int64("token_id", tokenId), zap.Error(err))
		return fmt.Errorf("unable to mark token released: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("unable to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return store.ErrTokenNotFound
	}

	zap.L().Info("Token marked released", zap.Int64("token_id", tokenId))
	return nil
}

func (s *Service) GetToken(ctx context.Context, tokenId int64) (*models.Token, error) {
	var token models.Token
	err := s.db.QueryRowContext(ctx, queryGetToken, tokenId).Scan(
		&token.TokenId, &token.OwnerAddress, &token.Name, &token.ThumbnailCid,
		&token.AudioCid, &token.MetadataCid, &token.AvailableTokens, &token.TokenPrice,
		&token.IsReleased, &token.TxHash, &token.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrTokenNotFound
		}
		zap.L().Error("Failed to query token", zap.Int64("token_id", tokenId), zap.Error(err))
		return nil, fmt.Errorf("unable to query token: %w", err)
	}

	return &token, nil
}

func (s *Service) GetTokensByOwner(ctx context.Context, ownerAddress string) ([]models.Token, error) {
	owner := models.NormalizeAddress(ownerAddress)

	rows, err := s.db.QueryContext(ctx, queryGetTokensByOwner, owner)
	if err != nil {
		zap.L().Error("Failed to query tokens by owner", zap.String("owner", owner), zap.Error(err))
		return nil, fmt.Errorf("unable to query tokens by owner: %w", err)
	}
	defer func(rows *sql.Rows) {
		if err := rows.Close(); err != nil {
			zap.L().Warn("Failed to close rows", zap.Error(err))
		}
	}(rows)

	var tokens []models.Token
	for rows.Next() {
		var token models.Token
		err := rows.Scan(
			&token.TokenId, &token.OwnerAddress, &token.Name, &token.ThumbnailCid,
			&token.AudioCid, &token.MetadataCid, &token.AvailableTokens, &token.TokenPrice,
			&token.IsReleased, &token.TxHash, &token.CreatedAt)
		if err != nil {
			return nil, fmt.Errorf("unable to scan token row: %w", err)
		}
		tokens = append(tokens, token)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating token rows: %w", err)
	}

	return tokens, nil
}
