/**
 * Copyright 2025-present Coinbase Global, Inc.
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *  http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

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

// LoginUser creates the user record on first successful wallet
// authentication and returns the existing record on every later login.
func (s *Service) LoginUser(ctx context.Context, accountAddress string) (*models.User, error) {
	address := models.NormalizeAddress(accountAddress)
	if address == "" {
		return nil, fmt.Errorf("account address cannot be empty")
	}

	result, err := s.db.ExecContext(ctx, queryInsertUserIfAbsent, address)
	if err != nil {
		zap.L().Error("Failed to insert user", zap.String("address", address), zap.Error(err))
		return nil, fmt.Errorf("unable to insert user: %w", err)
	}

	if rowsAffected, err := result.RowsAffected(); err == nil && rowsAffected > 0 {
		zap.L().Info("User created on first wallet authentication", zap.String("address", address))
	}

	return s.GetUserByAddress(ctx, address)
}

func (s *Service) GetUserByAddress(ctx context.Context, accountAddress string) (*models.User, error) {
	address := models.NormalizeAddress(accountAddress)
	zap.L().Debug("Querying user by address", zap.String("address", address))

	var user models.User
	err := s.db.QueryRowContext(ctx, queryGetUserByAddress, address).Scan(
		&user.AccountAddress, &user.IsOnboarded, &user.Name, &user.InstaAccUrl,
		&user.VerificationStatus, &user.CreatedAt, &user.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrUserNotFound
		}
		zap.L().Error("Failed to query user by address", zap.String("address", address), zap.Error(err))
		return nil, fmt.Errorf("unable to query user by address: %w", err)
	}

	return &user, nil
}

// OnboardUser records the profile fields and moves the verification status
// to Processing when a social URL is supplied.
func (s *Service) OnboardUser(ctx context.Context, params store.OnboardUserParams) (*models.User, error) {
	address := models.NormalizeAddress(params.AccountAddress)
	if params.Name == "" {
		return nil, fmt.Errorf("name cannot be empty")
	}

	verificationStatus := models.VerificationUnVerified
	if params.InstaAccUrl != "" {
		verificationStatus = models.VerificationProcessing
	}

	result, err := s.db.ExecContext(ctx, queryOnboardUser, params.Name, params.InstaAccUrl, verificationStatus, address)
	if err != nil {
		zap.L().Error("Failed to onboard user", zap.String("address", address), zap.Error(err))
		return nil, fmt.Errorf("unable to onboard user: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("unable to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return nil, store.ErrUserNotFound
	}

	zap.L().Info("User onboarded successfully",
		zap.String("address", address),
		zap.String("name", params.Name),
		zap.String("verification_status", verificationStatus))

	return s.GetUserByAddress(ctx, address)
}
