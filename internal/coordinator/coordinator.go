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

package coordinator

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"soundstake-mint-release-go/internal/models"
	"soundstake-mint-release-go/internal/store"

	"go.uber.org/zap"
)

// Terminal outcomes reported to callers. The two *-index-pending outcomes
// are soft: the chain committed and only the read model is behind.
const (
	OutcomeCompleted            = "completed"
	OutcomeMintedIndexPending   = "minted-index-pending"
	OutcomeReleased             = "released"
	OutcomeReleasedIndexPending = "released-index-pending"
	OutcomeAlreadyReleased      = "already-released"
)

// ContentStore is the slice of the pinning client the coordinator uses.
type ContentStore interface {
	PinFile(ctx context.Context, data []byte, filename, mimeType string) (string, error)
	PinJSON(ctx context.Context, v interface{}) (string, error)
}

// ChainClient is the slice of the chain service the coordinator uses.
type ChainClient interface {
	Mint(ctx context.Context, ownerAddress, tokenUri string) (models.TxHandle, error)
	Release(ctx context.Context, tokenId int64) (models.TxHandle, error)
	AwaitConfirmation(ctx context.Context, txHash string, minConfirmations uint64) (*models.Receipt, error)
	OwnerOf(ctx context.Context, tokenId int64) (string, error)
	ActiveAddress() string
	OnSignerChange(fn func(oldAddress, newAddress string))
}

// Coordinator drives the mint and release pipelines across the content
// store, the chain, and the off-chain index, keeping the three eventually
// consistent through checkpointed attempts.
type Coordinator struct {
	content ContentStore
	chain   ChainClient
	index   store.TokenIndex
	cfg     models.MintConfig

	minConfirmations uint64

	// inflight enforces at most one outstanding mint per wallet.
	mu       sync.Mutex
	inflight map[string]bool

	// signerGeneration increments on every account change; an attempt
	// snapshots it at start and aborts pre-submission if it moved.
	signerGeneration atomic.Uint64
}

func NewCoordinator(content ContentStore, chain ChainClient, index store.TokenIndex, cfg models.MintConfig, minConfirmations uint64) *Coordinator {
	c := &Coordinator{
		content:          content,
		chain:            chain,
		index:            index,
		cfg:              cfg,
		minConfirmations: minConfirmations,
		inflight:         make(map[string]bool),
	}

	chain.OnSignerChange(func(oldAddress, newAddress string) {
		c.signerGeneration.Add(1)
		zap.L().Warn("Active account changed, pending attempts will abort before submission",
			zap.String("old_address", oldAddress),
			zap.String("new_address", newAddress))
	})

	return c
}

// pendingSubmission returns the wallet's unresolved attempt that already
// holds a transaction hash, if any. Such an attempt is still in flight no
// matter which process opened it or how long ago its confirmation timed out,
// so a new mint must not submit alongside it.
func (c *Coordinator) pendingSubmission(ctx context.Context, ownerAddress string) (*models.MintAttempt, error) {
	attempts, err := c.index.ListUnresolvedAttemptsByOwner(ctx, ownerAddress)
	if err != nil {
		return nil, fmt.Errorf("unable to check wallet for pending attempts: %w", err)
	}
	for i := range attempts {
		if attempts[i].TxHash != "" {
			return &attempts[i], nil
		}
	}
	return nil, nil
}

// acquireWallet claims the per-wallet in-flight slot. A second mint request
// while one is pending is rejected, never queued.
func (c *Coordinator) acquireWallet(ownerAddress string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.inflight[ownerAddress] {
		return ErrConcurrentAttempt
	}
	c.inflight[ownerAddress] = true
	return nil
}

func (c *Coordinator) releaseWallet(ownerAddress string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.inflight, ownerAddress)
}
