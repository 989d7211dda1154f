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

	"soundstake-mint-release-go/internal/chain"
	"soundstake-mint-release-go/internal/common"
	"soundstake-mint-release-go/internal/config"
	"soundstake-mint-release-go/internal/coordinator"
	"soundstake-mint-release-go/internal/store"

	"go.uber.org/zap"
)

func parseAndValidateFlags() (string, int64, error) {
	ownerFlag := flag.String("owner", "", "Owner wallet address (required)")
	tokenIdFlag := flag.Int64("token-id", -1, "Token identifier (required)")
	flag.Parse()

	if *ownerFlag == "" || *tokenIdFlag < 0 {
		return "", 0, fmt.Errorf("required flags: --owner, --token-id")
	}

	return *ownerFlag, *tokenIdFlag, nil
}

func main() {
	ctx := context.Background()

	_, loggerCleanup := common.InitializeLogger()
	defer loggerCleanup()

	owner, tokenId, err := parseAndValidateFlags()
	if err != nil {
		zap.L().Fatal("Invalid flags", zap.Error(err))
	}

	zap.L().Info("Starting release",
		zap.String("owner", owner),
		zap.Int64("token_id", tokenId))

	cfg, err := config.Load()
	if err != nil {
		zap.L().Fatal("Failed to load config", zap.Error(err))
	}

	services, err := common.InitializeServices(ctx, cfg)
	if err != nil {
		zap.L().Fatal("Failed to initialize services", zap.Error(err))
	}
	defer services.Close()

	result, err := services.Coordinator.Release(ctx, coordinator.ReleaseRequest{
		OwnerAddress: owner,
		TokenId:      tokenId,
	})
	if err != nil {
		switch {
		case errors.Is(err, store.ErrTokenNotFound):
			common.PrintHeader("RELEASE FAILED", common.DefaultWidth)
			fmt.Printf("Error: token %d is not in the index\n", tokenId)
			common.PrintSeparator("=", common.DefaultWidth)
		case errors.Is(err, coordinator.ErrNotOwner):
			common.PrintHeader("RELEASE FAILED", common.DefaultWidth)
			fmt.Printf("Error: %s does not own token %d\n", owner, tokenId)
			common.PrintSeparator("=", common.DefaultWidth)
		case errors.Is(err, chain.ErrConfirmationTimeout) && result != nil:
			common.PrintHeader("RELEASE PENDING", common.DefaultWidth)
			fmt.Printf("Token ID: %d\n", result.TokenId)
			fmt.Printf("Tx Hash:  %s\n", result.TxHash)
			fmt.Println("\nConfirmation was not observed before the deadline. The reconciler")
			fmt.Println("will re-poll this hash and finish the index update. Do NOT release")
			fmt.Println("again.")
			common.PrintSeparator("=", common.DefaultWidth)
			return
		}
		zap.L().Fatal("Release failed", zap.Error(err))
	}

	common.PrintHeader("RELEASE RESULT", common.DefaultWidth)
	fmt.Printf("Token ID: %d\n", result.TokenId)
	if result.TxHash != "" {
		fmt.Printf("Tx Hash:  %s\n", result.TxHash)
	}
	fmt.Printf("Outcome:  %s\n", result.Outcome)
	if result.Outcome == coordinator.OutcomeReleasedIndexPending {
		fmt.Println("\nThe release is confirmed on chain; the off-chain index will catch up")
		fmt.Println("via the reconciler.")
	}
	common.PrintSeparator("=", common.DefaultWidth)

	zap.L().Info("Release finished",
		zap.Int64("token_id", result.TokenId),
		zap.String("outcome", result.Outcome))
}
