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

package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"path/filepath"

	"soundstake-mint-release-go/internal/chain"
	"soundstake-mint-release-go/internal/common"
	"soundstake-mint-release-go/internal/config"
	"soundstake-mint-release-go/internal/coordinator"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

type mintRequest struct {
	owner     string
	name      string
	creator   string
	filePath  string
	fractions int64
	price     decimal.Decimal
}

func parseAndValidateFlags() (*mintRequest, error) {
	ownerFlag := flag.String("owner", "", "Owner wallet address (required)")
	nameFlag := flag.String("name", "", "Token display name (required)")
	creatorFlag := flag.String("creator", "", "Creator name (required)")
	fileFlag := flag.String("file", "", "Path to the image asset (required)")
	fractionsFlag := flag.Int64("fractions", 1, "Number of available fractions")
	priceFlag := flag.String("price", "0", "Unit price per fraction")
	flag.Parse()

	if *ownerFlag == "" || *nameFlag == "" || *creatorFlag == "" || *fileFlag == "" {
		return nil, fmt.Errorf("required flags: --owner, --name, --creator, --file")
	}

	price, err := decimal.NewFromString(*priceFlag)
	if err != nil {
		return nil, fmt.Errorf("invalid price format: %w", err)
	}
	if price.IsNegative() {
		return nil, fmt.Errorf("price cannot be negative")
	}

	return &mintRequest{
		owner:     *ownerFlag,
		name:      *nameFlag,
		creator:   *creatorFlag,
		filePath:  *fileFlag,
		fractions: *fractionsFlag,
		price:     price,
	}, nil
}

func printMintSummary(result *coordinator.MintResult) {
	common.PrintHeader("MINT RESULT", common.DefaultWidth)
	fmt.Printf("Attempt:  %s\n", result.AttemptId)
	fmt.Printf("Token ID: %d\n", result.TokenId)
	fmt.Printf("Tx Hash:  %s\n", result.TxHash)
	fmt.Printf("Outcome:  %s\n", result.Outcome)
	if result.Outcome == coordinator.OutcomeMintedIndexPending {
		fmt.Println("\nThe token is minted on chain; the off-chain index will catch up")
		fmt.Println("via the reconciler.")
	}
	common.PrintSeparator("=", common.DefaultWidth)
}

func main() {
	ctx := context.Background()

	_, loggerCleanup := common.InitializeLogger()
	defer loggerCleanup()

	req, err := parseAndValidateFlags()
	if err != nil {
		zap.L().Fatal("Invalid flags", zap.Error(err))
	}

	fileData, err := os.ReadFile(req.filePath)
	if err != nil {
		zap.L().Fatal("Failed to read asset file", zap.String("path", req.filePath), zap.Error(err))
	}
	mimeType := http.DetectContentType(fileData)

	zap.L().Info("Starting mint",
		zap.String("owner", req.owner),
		zap.String("name", req.name),
		zap.String("creator", req.creator),
		zap.String("file", req.filePath),
		zap.String("mime_type", mimeType))

	cfg, err := config.Load()
	if err != nil {
		zap.L().Fatal("Failed to load config", zap.Error(err))
	}

	services, err := common.InitializeServices(ctx, cfg)
	if err != nil {
		zap.L().Fatal("Failed to initialize services", zap.Error(err))
	}
	defer services.Close()

	// First wallet authentication creates the user record.
	if _, err := services.DbService.LoginUser(ctx, req.owner); err != nil {
		zap.L().Fatal("Failed to authenticate wallet", zap.Error(err))
	}

	result, err := services.Coordinator.Mint(ctx, coordinator.MintRequest{
		OwnerAddress:    req.owner,
		Name:            req.name,
		Creator:         req.creator,
		FileData:        fileData,
		Filename:        filepath.Base(req.filePath),
		MimeType:        mimeType,
		AvailableTokens: req.fractions,
		TokenPrice:      req.price,
	})
	if err != nil {
		if errors.Is(err, chain.ErrConfirmationTimeout) && result != nil {
			common.PrintHeader("MINT PENDING", common.DefaultWidth)
			fmt.Printf("Attempt:  %s\n", result.AttemptId)
			fmt.Printf("Tx Hash:  %s\n", result.TxHash)
			fmt.Println("\nConfirmation was not observed before the deadline. The transaction")
			fmt.Println("may still land; the reconciler will re-poll this hash and finish the")
			fmt.Println("index write. New mints for this wallet are blocked until it resolves.")
			common.PrintSeparator("=", common.DefaultWidth)
			return
		}
		if errors.Is(err, coordinator.ErrConcurrentAttempt) {
			common.PrintHeader("MINT REJECTED", common.DefaultWidth)
			fmt.Printf("Error: %s\n", err.Error())
			fmt.Println("\nThis wallet already has a mint in flight. Wait for the reconciler")
			fmt.Println("to resolve it before minting again.")
			common.PrintSeparator("=", common.DefaultWidth)
			os.Exit(1)
		}
		var validation *coordinator.ValidationError
		if errors.As(err, &validation) {
			common.PrintHeader("MINT REJECTED", common.DefaultWidth)
			fmt.Printf("Error: %s\n", validation.Error())
			common.PrintSeparator("=", common.DefaultWidth)
		}
		zap.L().Fatal("Mint failed", zap.Error(err))
	}

	printMintSummary(result)

	zap.L().Info("Mint finished",
		zap.Int64("token_id", result.TokenId),
		zap.String("outcome", result.Outcome))
}
