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
	"flag"
	"fmt"

	"soundstake-mint-release-go/internal/common"
	"soundstake-mint-release-go/internal/config"
	"soundstake-mint-release-go/internal/database"
	"soundstake-mint-release-go/internal/models"

	"go.uber.org/zap"
)

// verifyToken cross-checks one index record against on-chain truth: the
// recorded owner, the token URI, and the metadata served by the gateways.
func verifyToken(ctx context.Context, services *common.Services, token models.Token) {
	owner, err := services.ChainService.OwnerOf(ctx, token.TokenId)
	if err != nil {
		fmt.Printf("        verify: owner lookup failed: %v\n", err)
		return
	}
	match := "matches index"
	if owner != models.NormalizeAddress(token.OwnerAddress) {
		match = fmt.Sprintf("MISMATCH, index has %s", token.OwnerAddress)
	}
	fmt.Printf("        verify: on-chain owner %s (%s)\n", owner, match)

	uri, err := services.ChainService.TokenURI(ctx, token.TokenId)
	if err != nil {
		fmt.Printf("        verify: tokenURI lookup failed: %v\n", err)
		return
	}

	var metadata models.TokenMetadata
	if err := services.IpfsClient.FetchJSON(ctx, uri, &metadata); err != nil {
		fmt.Printf("        verify: metadata fetch failed: %v\n", err)
		return
	}
	fmt.Printf("        verify: metadata %q resolved from %s\n", metadata.Name, uri)
}

func main() {
	ownerFlag := flag.String("owner", "", "Owner wallet address (required)")
	verifyFlag := flag.Bool("verify", false, "Cross-check each token against the chain and gateways")
	flag.Parse()

	_, loggerCleanup := common.InitializeLogger()
	defer loggerCleanup()

	if *ownerFlag == "" {
		zap.L().Fatal("Required flag: --owner")
	}

	ctx := context.Background()

	cfg, err := config.Load()
	if err != nil {
		zap.L().Fatal("Failed to load config", zap.Error(err))
	}

	var services *common.Services
	var dbService *database.Service
	if *verifyFlag {
		services, err = common.InitializeServices(ctx, cfg)
		if err != nil {
			zap.L().Fatal("Failed to initialize services", zap.Error(err))
		}
		defer services.Close()
		dbService = services.DbService
	} else {
		dbService, err = common.InitializeDatabaseOnly(ctx, cfg)
		if err != nil {
			zap.L().Fatal("Failed to initialize database", zap.Error(err))
		}
		defer dbService.Close()
	}

	tokens, err := dbService.GetTokensByOwner(ctx, *ownerFlag)
	if err != nil {
		zap.L().Fatal("Failed to list tokens", zap.Error(err))
	}

	common.PrintHeader(fmt.Sprintf("TOKENS OWNED BY %s", *ownerFlag), common.DefaultWidth)

	if len(tokens) == 0 {
		fmt.Println("No tokens found")
	}
	for _, token := range tokens {
		released := "unreleased"
		if token.IsReleased {
			released = "released"
		}
		fmt.Printf("#%-6d %-30s %s\n", token.TokenId, token.Name, released)
		fmt.Printf("        fractions: %-8d price: %-12s metadata: ipfs://%s\n",
			token.AvailableTokens, token.TokenPrice.String(), token.MetadataCid)
		fmt.Printf("        minted: %s  tx: %s\n",
			token.CreatedAt.Format("2006-01-02 15:04:05"), token.TxHash)
		if *verifyFlag {
			verifyToken(ctx, services, token)
		}
	}

	common.PrintFooter(fmt.Sprintf("%d token(s)", len(tokens)), common.DefaultWidth)
}
