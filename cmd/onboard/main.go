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
	"soundstake-mint-release-go/internal/store"

	"go.uber.org/zap"
)

func parseAndValidateFlags() (store.OnboardUserParams, error) {
	addressFlag := flag.String("address", "", "Wallet address (required)")
	nameFlag := flag.String("name", "", "Display name (required)")
	instaFlag := flag.String("insta", "", "Instagram profile URL (optional, triggers verification)")
	flag.Parse()

	if *addressFlag == "" || *nameFlag == "" {
		return store.OnboardUserParams{}, fmt.Errorf("required flags: --address, --name")
	}

	return store.OnboardUserParams{
		AccountAddress: *addressFlag,
		Name:           *nameFlag,
		InstaAccUrl:    *instaFlag,
	}, nil
}

func main() {
	ctx := context.Background()

	_, loggerCleanup := common.InitializeLogger()
	defer loggerCleanup()

	params, err := parseAndValidateFlags()
	if err != nil {
		zap.L().Fatal("Invalid flags", zap.Error(err))
	}

	cfg, err := config.Load()
	if err != nil {
		zap.L().Fatal("Failed to load config", zap.Error(err))
	}

	dbService, err := common.InitializeDatabaseOnly(ctx, cfg)
	if err != nil {
		zap.L().Fatal("Failed to initialize database", zap.Error(err))
	}
	defer dbService.Close()

	// First wallet authentication creates the user record if absent.
	if _, err := dbService.LoginUser(ctx, params.AccountAddress); err != nil {
		zap.L().Fatal("Failed to authenticate wallet", zap.Error(err))
	}

	user, err := dbService.OnboardUser(ctx, params)
	if err != nil {
		zap.L().Fatal("Failed to onboard user", zap.Error(err))
	}

	common.PrintHeader("USER ONBOARDED", common.DefaultWidth)
	fmt.Printf("Address:      %s\n", user.AccountAddress)
	fmt.Printf("Name:         %s\n", user.Name)
	if user.InstaAccUrl != "" {
		fmt.Printf("Instagram:    %s\n", user.InstaAccUrl)
	}
	fmt.Printf("Verification: %s\n", user.VerificationStatus)
	common.PrintSeparator("=", common.DefaultWidth)

	zap.L().Info("Onboarding complete",
		zap.String("address", user.AccountAddress),
		zap.String("verification_status", user.VerificationStatus))
}
