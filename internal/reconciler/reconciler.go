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

package reconciler

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"soundstake-mint-release-go/internal/chain"
	"soundstake-mint-release-go/internal/coordinator"
	"soundstake-mint-release-go/internal/models"
	"soundstake-mint-release-go/internal/store"

	"go.uber.org/zap"
)

// Reconciler closes the eventual-consistency window left open by interrupted
// mint and release pipelines: it re-polls persisted transaction hashes,
// finishes index writes the chain is already ahead of, and abandons attempts
// that never reached submission.
type Reconciler struct {
	index       store.TokenIndex
	chainClient coordinator.ChainClient
	coord       *coordinator.Coordinator

	pollingInterval time.Duration
	lookbackWindow  time.Duration
	cleanupInterval time.Duration

	// processed tracks attempt ids handled this session so a slow sweep
	// does not pick up work a previous sweep already finished.
	mu        sync.Mutex
	processed map[string]time.Time

	stopChan chan struct{}
	doneChan chan struct{}
}

func NewReconciler(index store.TokenIndex, chainClient coordinator.ChainClient, coord *coordinator.Coordinator, cfg models.ReconcilerConfig) *Reconciler {
	return &Reconciler{
		index:           index,
		chainClient:     chainClient,
		coord:           coord,
		pollingInterval: cfg.PollingInterval,
		lookbackWindow:  cfg.LookbackWindow,
		cleanupInterval: cfg.CleanupInterval,
		processed:       make(map[string]time.Time),
		stopChan:        make(chan struct{}),
		doneChan:        make(chan struct{}),
	}
}

// Start runs one recovery sweep synchronously, then begins the background
// poll and cleanup loops.
func (r *Reconciler) Start(ctx context.Context) error {
	zap.L().Info("Starting reconciler")

	if err := r.sweep(ctx); err != nil {
		zap.L().Error("Startup recovery sweep failed", zap.Error(err))
		return fmt.Errorf("startup recovery sweep failed: %w", err)
	}

	go r.pollLoop(ctx)
	go r.cleanupLoop(ctx)

	zap.L().Info("Reconciler started successfully",
		zap.Duration("polling_interval", r.pollingInterval),
		zap.Duration("lookback_window", r.lookbackWindow))

	return nil
}

// Stop gracefully stops the reconciler.
func (r *Reconciler) Stop() {
	zap.L().Info("Stopping reconciler")
	close(r.stopChan)
	<-r.doneChan
	zap.L().Info("Reconciler stopped")
}

func (r *Reconciler) pollLoop(ctx context.Context) {
	defer close(r.doneChan)

	ticker := time.NewTicker(r.pollingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if err := r.sweep(ctx); err != nil {
				zap.L().Error("Reconciliation sweep failed", zap.Error(err))
			}
		case <-r.stopChan:
			return
		case <-ctx.Done():
			return
		}
	}
}

// cleanupLoop drops stale entries from the processed set.
func (r *Reconciler) cleanupLoop(ctx context.Context) {
	ticker := time.NewTicker(r.cleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			r.cleanupProcessed()
		case <-r.stopChan:
			return
		case <-ctx.Done():
			return
		}
	}
}

func (r *Reconciler) cleanupProcessed() {
	cutoff := time.Now().UTC().Add(-r.lookbackWindow)

	r.mu.Lock()
	defer r.mu.Unlock()

	removed := 0
	for id, seen := range r.processed {
		if seen.Before(cutoff) {
			delete(r.processed, id)
			removed++
		}
	}

	if removed > 0 {
		zap.L().Debug("Cleaned up processed entries",
			zap.Int("removed", removed),
			zap.Int("remaining", len(r.processed)))
	}
}

func (r *Reconciler) isProcessed(id string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.processed[id]
	return ok
}

func (r *Reconciler) markProcessed(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.processed[id] = time.Now().UTC()
}

// sweep processes all open mint attempts and pending release syncs once.
// Per-item failures are counted and retried next sweep; a failure to list
// the work queues themselves is returned.
func (r *Reconciler) sweep(ctx context.Context) error {
	attemptsDone, attemptsFailed, attemptsErr := r.sweepMintAttempts(ctx)
	releasesDone, releasesFailed, releasesErr := r.sweepReleaseSyncs(ctx)

	if attemptsDone+attemptsFailed+releasesDone+releasesFailed > 0 {
		zap.L().Info("Reconciliation sweep finished",
			zap.Int("attempts_resolved", attemptsDone),
			zap.Int("attempts_failed", attemptsFailed),
			zap.Int("releases_resolved", releasesDone),
			zap.Int("releases_failed", releasesFailed))
	}

	return errors.Join(attemptsErr, releasesErr)
}

func (r *Reconciler) sweepMintAttempts(ctx context.Context) (resolved, failed int, err error) {
	attempts, err := r.index.ListUnresolvedAttempts(ctx)
	if err != nil {
		return 0, 0, fmt.Errorf("unable to list unresolved mint attempts: %w", err)
	}

	for _, attempt := range attempts {
		if r.isProcessed(attempt.Id) {
			continue
		}

		if err := r.reconcileAttempt(ctx, attempt); err != nil {
			failed++
			zap.L().Warn("Failed to reconcile mint attempt",
				zap.String("attempt_id", attempt.Id),
				zap.String("stage", attempt.Stage),
				zap.Error(err))
			continue
		}
		resolved++
	}

	return resolved, failed, nil
}

// reconcileAttempt finishes one open mint attempt. Attempts with a hash are
// driven to completion from the persisted hash; hashless attempts older than
// the lookback window never reached submission and are safely abandoned.
func (r *Reconciler) reconcileAttempt(ctx context.Context, attempt models.MintAttempt) error {
	if attempt.TxHash == "" {
		if time.Since(attempt.CreatedAt) < r.lookbackWindow {
			// Probably still live in some process; leave it alone.
			return nil
		}

		zap.L().Info("Abandoning stale mint attempt that never reached submission",
			zap.String("attempt_id", attempt.Id),
			zap.String("stage", attempt.Stage),
			zap.Time("created_at", attempt.CreatedAt))
		if err := r.index.ResolveMintAttempt(ctx, attempt.Id, models.AttemptOutcomeFailed, "abandoned"); err != nil {
			return err
		}
		r.markProcessed(attempt.Id)
		return nil
	}

	result, err := r.coord.ResumeMint(ctx, attempt.Id)
	if err != nil {
		if errors.Is(err, chain.ErrConfirmationTimeout) {
			// Still unconfirmed; the next sweep tries again.
			return nil
		}
		var stageErr *coordinator.StageError
		if errors.As(err, &stageErr) {
			// Terminal on-chain failure (revert); the attempt is now
			// resolved as failed, which is a successful reconciliation.
			r.markProcessed(attempt.Id)
			return nil
		}
		return err
	}

	zap.L().Info("Recovered mint attempt",
		zap.String("attempt_id", attempt.Id),
		zap.Int64("token_id", result.TokenId),
		zap.String("outcome", result.Outcome))
	if result.Outcome == coordinator.OutcomeCompleted {
		r.markProcessed(attempt.Id)
	}
	return nil
}

func (r *Reconciler) sweepReleaseSyncs(ctx context.Context) (resolved, failed int, err error) {
	syncs, err := r.index.ListPendingReleaseSyncs(ctx)
	if err != nil {
		return 0, 0, fmt.Errorf("unable to list pending release syncs: %w", err)
	}

	for _, sync := range syncs {
		if err := r.reconcileRelease(ctx, sync); err != nil {
			failed++
			zap.L().Warn("Failed to reconcile release",
				zap.Int64("token_id", sync.TokenId),
				zap.String("tx_hash", sync.TxHash),
				zap.Error(err))
			continue
		}
		resolved++
	}

	return resolved, failed, nil
}

// reconcileRelease re-polls a pending release hash and finishes the index
// update once confirmed. The release transaction is never re-submitted.
func (r *Reconciler) reconcileRelease(ctx context.Context, sync models.ReleaseSync) error {
	_, err := r.chainClient.AwaitConfirmation(ctx, sync.TxHash, 1)
	if err != nil {
		var reverted *chain.RevertedError
		if errors.As(err, &reverted) {
			// The release never happened on chain; drop the checkpoint
			// and leave the index untouched.
			zap.L().Info("Pending release reverted on chain, clearing checkpoint",
				zap.Int64("token_id", sync.TokenId),
				zap.String("tx_hash", sync.TxHash))
			return r.index.ResolveReleaseSync(ctx, sync.TokenId)
		}
		if errors.Is(err, chain.ErrConfirmationTimeout) {
			return nil
		}
		return err
	}

	if err := r.index.MarkReleased(ctx, sync.TokenId); err != nil {
		if errors.Is(err, store.ErrTokenNotFound) {
			// The token row itself is missing; an open mint attempt for
			// it must land first. Keep the sync pending.
			return nil
		}
		return err
	}

	if err := r.index.ResolveReleaseSync(ctx, sync.TokenId); err != nil {
		return err
	}

	zap.L().Info("Recovered release",
		zap.Int64("token_id", sync.TokenId),
		zap.String("tx_hash", sync.TxHash))
	return nil
}
