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

package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"soundstake-mint-release-go/internal/models"
)

func Load() (*models.Config, error) {
	connMaxLifetime, err := getEnvDuration("DB_CONN_MAX_LIFETIME", 5*time.Minute)
	if err != nil {
		return nil, err
	}

	connMaxIdleTime, err := getEnvDuration("DB_CONN_MAX_IDLE_TIME", 30*time.Second)
	if err != nil {
		return nil, err
	}

	pingTimeout, err := getEnvDuration("DB_PING_TIMEOUT", 5*time.Second)
	if err != nil {
		return nil, err
	}

	uploadTimeout, err := getEnvDuration("PINNING_UPLOAD_TIMEOUT", 60*time.Second)
	if err != nil {
		return nil, err
	}

	confirmTimeout, err := getEnvDuration("CHAIN_CONFIRM_TIMEOUT", 2*time.Minute)
	if err != nil {
		return nil, err
	}

	pollInterval, err := getEnvDuration("CHAIN_POLL_INTERVAL", 4*time.Second)
	if err != nil {
		return nil, err
	}

	indexRetryDelay, err := getEnvDuration("MINT_INDEX_RETRY_DELAY", 2*time.Second)
	if err != nil {
		return nil, err
	}

	pollingInterval, err := getEnvDuration("RECONCILER_POLLING_INTERVAL", 30*time.Second)
	if err != nil {
		return nil, err
	}

	lookbackWindow, err := getEnvDuration("RECONCILER_LOOKBACK_WINDOW", 6*time.Hour)
	if err != nil {
		return nil, err
	}

	cleanupInterval, err := getEnvDuration("RECONCILER_CLEANUP_INTERVAL", 15*time.Minute)
	if err != nil {
		return nil, err
	}

	return &models.Config{
		Database: models.DatabaseConfig{
			Path:            getEnvString("DATABASE_PATH", "tokens.db"),
			MaxOpenConns:    getEnvInt("DB_MAX_OPEN_CONNS", 25),
			MaxIdleConns:    getEnvInt("DB_MAX_IDLE_CONNS", 5),
			ConnMaxLifetime: connMaxLifetime,
			ConnMaxIdleTime: connMaxIdleTime,
			PingTimeout:     pingTimeout,
		},
		Pinning: models.PinningConfig{
			ApiBase:       getEnvString("PINNING_API_BASE", "https://api.pinata.cloud"),
			Jwt:           getEnvString("PINNING_JWT", ""),
			UploadTimeout: uploadTimeout,
			GatewaysFile:  getEnvString("GATEWAYS_FILE", "gateways.yaml"),
		},
		Chain: models.ChainConfig{
			RpcUrl:           getEnvString("CHAIN_RPC_URL", "http://127.0.0.1:8545"),
			ContractAddress:  getEnvString("CHAIN_CONTRACT_ADDRESS", ""),
			PrivateKey:       getEnvString("CHAIN_PRIVATE_KEY", ""),
			MinConfirmations: uint64(getEnvInt("CHAIN_MIN_CONFIRMATIONS", 1)),
			ConfirmTimeout:   confirmTimeout,
			PollInterval:     pollInterval,
		},
		Mint: models.MintConfig{
			MaxFileSize:        int64(getEnvInt("MINT_MAX_FILE_SIZE", 10*1024*1024)),
			IndexRetryAttempts: getEnvInt("MINT_INDEX_RETRY_ATTEMPTS", 3),
			IndexRetryDelay:    indexRetryDelay,
		},
		Reconciler: models.ReconcilerConfig{
			PollingInterval: pollingInterval,
			LookbackWindow:  lookbackWindow,
			CleanupInterval: cleanupInterval,
		},
	}, nil
}

func getEnvString(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) (time.Duration, error) {
	if value := os.Getenv(key); value != "" {
		duration, err := time.ParseDuration(value)
		if err != nil {
			return 0, fmt.Errorf("invalid duration for %s: %q (%w)", key, value, err)
		}
		return duration, nil
	}
	return defaultValue, nil
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}
