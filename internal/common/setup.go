package common

import (
	"context"
	"log"
	"strings"

	"soundstake-mint-release-go/internal/chain"
	"soundstake-mint-release-go/internal/coordinator"
	"soundstake-mint-release-go/internal/database"
	"soundstake-mint-release-go/internal/ipfs"
	"soundstake-mint-release-go/internal/models"

	"github.com/joho/godotenv"
	"go.uber.org/zap"
)

// init loads environment variables from .env file if it exists
func init() {
	// Try to load .env file - if it doesn't exist, that's okay
	// Environment variables can be set via other means (shell export, docker, etc.)
	if err := godotenv.Load(); err != nil {
		// Only log if the file exists but couldn't be read
		// (godotenv returns an error if .env doesn't exist)
		log.Printf("Note: No .env file found or unable to load it: %v\n", err)
		log.Println("Make sure to set environment variables via export or other means")
	} else {
		log.Println("✓ Loaded environment variables from .env file")
	}
}

type Services struct {
	DbService    *database.Service
	IpfsClient   *ipfs.Client
	ChainService *chain.Service
	Coordinator  *coordinator.Coordinator
}

func InitializeLogger() (*zap.Logger, func()) {
	logger, err := zap.NewProduction()
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}

	zap.ReplaceGlobals(logger)

	cleanup := func() {
		if err := logger.Sync(); err != nil {
			if !isIgnorableSyncError(err) {
				log.Printf("Failed to sync logger: %v\n", err)
			}
		}
	}

	return logger, cleanup
}

func InitializeServices(ctx context.Context, cfg *models.Config) (*Services, error) {
	dbService, err := database.NewService(ctx, cfg.Database)
	if err != nil {
		return nil, err
	}

	zap.L().Info("Loading content gateway configuration")
	gateways, err := LoadGatewayTemplates(cfg.Pinning.GatewaysFile)
	if err != nil {
		dbService.Close()
		return nil, err
	}

	ipfsClient, err := ipfs.NewClient(cfg.Pinning, gateways)
	if err != nil {
		dbService.Close()
		return nil, err
	}

	chainService, err := chain.NewService(cfg.Chain)
	if err != nil {
		dbService.Close()
		return nil, err
	}

	if cfg.Chain.PrivateKey != "" {
		signer, err := chain.NewLocalSigner(cfg.Chain.PrivateKey)
		if err != nil {
			dbService.Close()
			return nil, err
		}
		chainService.UseSigner(signer)
		zap.L().Info("Attached local signer", zap.String("address", chainService.ActiveAddress()))
	}

	coord := coordinator.NewCoordinator(ipfsClient, chainService, dbService, cfg.Mint, cfg.Chain.MinConfirmations)

	return &Services{
		DbService:    dbService,
		IpfsClient:   ipfsClient,
		ChainService: chainService,
		Coordinator:  coord,
	}, nil
}

// InitializeDatabaseOnly initializes just the index service without the
// content store or chain. Useful for read-only operations like listing tokens.
func InitializeDatabaseOnly(ctx context.Context, cfg *models.Config) (*database.Service, error) {
	dbService, err := database.NewService(ctx, cfg.Database)
	if err != nil {
		return nil, err
	}
	return dbService, nil
}

func (cs *Services) Close() {
	if cs.DbService != nil {
		cs.DbService.Close()
	}
}

func isIgnorableSyncError(err error) bool {
	msg := err.Error()
	return strings.Contains(msg, "sync /dev/stderr: inappropriate ioctl for device") ||
		strings.Contains(msg, "sync /dev/stdout: inappropriate ioctl for device")
}
