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
	"fmt"

	"soundstake-mint-release-go/internal/models"
	"soundstake-mint-release-go/internal/store"

	_ "github.com/mattn/go-sqlite3"
	"go.uber.org/zap"
)

// Compile-time check: *Service must satisfy store.TokenIndex.
var _ store.TokenIndex = (*Service)(nil)

type Service struct {
	db *sql.DB
}

func NewService(ctx context.Context, cfg models.DatabaseConfig) (*Service, error) {
	// Validate configuration
	if cfg.Path == "" {
		return nil, fmt.Errorf("database path cannot be empty")
	}
	if cfg.MaxOpenConns <= 0 {
		return nil, fmt.Errorf("max open connections must be positive, got %d", cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns < 0 {
		return nil, fmt.Errorf("max idle connections cannot be negative, got %d", cfg.MaxIdleConns)
	}
	if cfg.PingTimeout <= 0 {
		return nil, fmt.Errorf("ping timeout must be positive, got %v", cfg.PingTimeout)
	}

	zap.L().Info("Opening SQLite index", zap.String("file", cfg.Path))
	db, err := sql.Open("sqlite3", cfg.Path+"?_journal_mode=WAL&_synchronous=NORMAL&_cache_size=1000")
	if err != nil {
		return nil, fmt.Errorf("unable to open database: %w", err)
	}

	// Set connection timeouts and limits
	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	db.SetConnMaxIdleTime(cfg.ConnMaxIdleTime)

	// Test connection with timeout
	pingCtx, cancel := context.WithTimeout(ctx, cfg.PingTimeout)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		if closeErr := db.Close(); closeErr != nil {
			return nil, closeErr
		}
		return nil, fmt.Errorf("unable to ping database: %w", err)
	}

	service := &Service{db: db}
	if err := service.initSchema(); err != nil {
		if closeErr := db.Close(); closeErr != nil {
			return nil, closeErr
		}
		return nil, fmt.Errorf("unable to initialize schema: %w", err)
	}

	zap.L().Info("Token index initialized successfully")
	return service, nil
}

func (s *Service) Close() {
	if err := s.db.Close(); err != nil {
		zap.L().Warn("Failed to close database connection", zap.Error(err))
	}
}

func (s *Service) initSchema() error {
	schema := `
	-- Users keyed by case-normalized wallet address
	CREATE TABLE IF NOT EXISTS users (
		account_address TEXT PRIMARY KEY,
		is_onboarded BOOLEAN NOT NULL DEFAULT 0,
		name TEXT NOT NULL DEFAULT '',
		insta_acc_url TEXT NOT NULL DEFAULT '',
		verification_status TEXT NOT NULL DEFAULT 'UnVerified',
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
		updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	);

	-- Token projection keyed by the chain-assigned token identifier
	CREATE TABLE IF NOT EXISTS tokens (
		token_id INTEGER PRIMARY KEY,
		owner_address TEXT NOT NULL,
		name TEXT NOT NULL,
		thumbnail_cid TEXT NOT NULL DEFAULT '',
		audio_cid TEXT NOT NULL DEFAULT '',
		metadata_cid TEXT NOT NULL DEFAULT '',
		available_tokens INTEGER NOT NULL DEFAULT 0,
		token_price TEXT NOT NULL DEFAULT '0',
		is_released BOOLEAN NOT NULL DEFAULT 0,
		tx_hash TEXT NOT NULL DEFAULT '',
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	);

	CREATE INDEX IF NOT EXISTS idx_tokens_owner ON tokens(owner_address);

	-- Mint attempt checkpoints (crash recovery / reconciliation)
	CREATE TABLE IF NOT EXISTS mint_attempts (
		id TEXT PRIMARY KEY,
		owner_address TEXT NOT NULL,
		name TEXT NOT NULL,
		creator TEXT NOT NULL,
		asset_cid TEXT NOT NULL DEFAULT '',
		metadata_cid TEXT NOT NULL DEFAULT '',
		token_uri TEXT NOT NULL DEFAULT '',
		available_tokens INTEGER NOT NULL DEFAULT 0,
		token_price TEXT NOT NULL DEFAULT '0',
		tx_hash TEXT NOT NULL DEFAULT '',
		stage TEXT NOT NULL,
		outcome TEXT NOT NULL DEFAULT '',
		cause TEXT NOT NULL DEFAULT '',
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
		updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	);

	CREATE INDEX IF NOT EXISTS idx_mint_attempts_outcome ON mint_attempts(outcome);
	CREATE INDEX IF NOT EXISTS idx_mint_attempts_owner ON mint_attempts(owner_address);

	-- On-chain releases whose index update is still pending
	CREATE TABLE IF NOT EXISTS release_syncs (
		token_id INTEGER PRIMARY KEY,
		tx_hash TEXT NOT NULL DEFAULT '',
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	);
	`

	_, err := s.db.Exec(schema)
	return err
}
