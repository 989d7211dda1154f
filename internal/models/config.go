package models

import "time"

// Config represents the application configuration
type Config struct {
	Database   DatabaseConfig
	Pinning    PinningConfig
	Chain      ChainConfig
	Mint       MintConfig
	Reconciler ReconcilerConfig
}

// DatabaseConfig holds off-chain index connection settings
type DatabaseConfig struct {
	Path            string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	ConnMaxIdleTime time.Duration
	PingTimeout     time.Duration
}

// PinningConfig holds content-store (IPFS pinning service) settings
type PinningConfig struct {
	ApiBase       string
	Jwt           string
	UploadTimeout time.Duration
	GatewaysFile  string
}

// ChainConfig holds JSON-RPC provider and contract settings
type ChainConfig struct {
	RpcUrl           string
	ContractAddress  string
	PrivateKey       string
	MinConfirmations uint64
	ConfirmTimeout   time.Duration
	PollInterval     time.Duration
}

// MintConfig holds mint pipeline settings
type MintConfig struct {
	MaxFileSize        int64
	IndexRetryAttempts int
	IndexRetryDelay    time.Duration
}

// ReconcilerConfig holds background reconciler settings
type ReconcilerConfig struct {
	PollingInterval time.Duration
	LookbackWindow  time.Duration
	CleanupInterval time.Duration
}
