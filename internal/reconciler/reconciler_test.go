package reconciler

import (
	"context"
	"fmt"
	"math/big"
	"sync"
	"testing"
	"time"

	"soundstake-mint-release-go/internal/chain"
	"soundstake-mint-release-go/internal/coordinator"
	"soundstake-mint-release-go/internal/database"
	"soundstake-mint-release-go/internal/models"
	"soundstake-mint-release-go/internal/store"

	"github.com/shopspring/decimal"
)

type fakeContent struct{}

func (f *fakeContent) PinFile(ctx context.Context, data []byte, filename, mimeType string) (string, error) {
	return "Qa1", nil
}

func (f *fakeContent) PinJSON(ctx context.Context, v interface{}) (string, error) {
	return "Qm1", nil
}

type fakeChain struct {
	mu       sync.Mutex
	tokenId  int64
	pending  map[string]bool // hashes that still time out
	reverted map[string]bool
}

func newFakeChain() *fakeChain {
	return &fakeChain{
		tokenId:  42,
		pending:  make(map[string]bool),
		reverted: make(map[string]bool),
	}
}

func (f *fakeChain) Mint(ctx context.Context, ownerAddress, tokenUri string) (models.TxHandle, error) {
	return models.TxHandle{Hash: "0xmint"}, nil
}

func (f *fakeChain) Release(ctx context.Context, tokenId int64) (models.TxHandle, error) {
	return models.TxHandle{Hash: "0xrel"}, nil
}

func (f *fakeChain) AwaitConfirmation(ctx context.Context, txHash string, minConfirmations uint64) (*models.Receipt, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.pending[txHash] {
		return nil, fmt.Errorf("%w: %s", chain.ErrConfirmationTimeout, txHash)
	}
	if f.reverted[txHash] {
		return nil, &chain.RevertedError{Reason: "execution reverted"}
	}
	return &models.Receipt{
		TxHash:        txHash,
		BlockNumber:   99,
		Confirmations: minConfirmations,
		Success:       true,
		MintedTokenId: big.NewInt(f.tokenId),
	}, nil
}

func (f *fakeChain) OwnerOf(ctx context.Context, tokenId int64) (string, error) {
	return "0xaaa", nil
}

func (f *fakeChain) ActiveAddress() string {
	return "0xaaa"
}

func (f *fakeChain) OnSignerChange(fn func(oldAddress, newAddress string)) {}

func setupReconciler(t *testing.T, lookback time.Duration) (*Reconciler, *database.Service, *fakeChain, func()) {
	index, err := database.NewService(context.Background(), models.DatabaseConfig{
		Path:         ":memory:",
		MaxOpenConns: 1,
		MaxIdleConns: 1,
		PingTimeout:  5 * time.Second,
	})
	if err != nil {
		t.Fatalf("Failed to open test index: %v", err)
	}

	chainClient := newFakeChain()
	coord := coordinator.NewCoordinator(&fakeContent{}, chainClient, index, models.MintConfig{
		MaxFileSize:        10 * 1024 * 1024,
		IndexRetryAttempts: 2,
		IndexRetryDelay:    time.Millisecond,
	}, 1)

	r := NewReconciler(index, chainClient, coord, models.ReconcilerConfig{
		PollingInterval: 10 * time.Millisecond,
		LookbackWindow:  lookback,
		CleanupInterval: time.Minute,
	})

	return r, index, chainClient, index.Close
}

// openAttempt seeds an unresolved mint attempt as an interrupted pipeline
// would have left it.
func openAttempt(t *testing.T, index *database.Service, id, txHash, stage string) {
	err := index.PutMintAttempt(context.Background(), &models.MintAttempt{
		Id:              id,
		OwnerAddress:    "0xaaa",
		Name:            "Track1",
		Creator:         "Alice",
		AssetCid:        "Qa1",
		MetadataCid:     "Qm1",
		TokenUri:        "ipfs://Qm1",
		AvailableTokens: 100,
		TokenPrice:      decimal.NewFromInt(1),
		TxHash:          txHash,
		Stage:           stage,
	})
	if err != nil {
		t.Fatalf("Failed to seed attempt: %v", err)
	}
}

func TestSweep_CompletesTimedOutMint(t *testing.T) {
	r, index, _, cleanup := setupReconciler(t, time.Hour)
	defer cleanup()

	openAttempt(t, index, "attempt-1", "0xhash1", models.StageTxConfirming)

	if err := r.sweep(context.Background()); err != nil {
		t.Fatalf("sweep failed: %v", err)
	}

	// The late confirmation completed the index write.
	token, err := index.GetToken(context.Background(), 42)
	if err != nil {
		t.Fatalf("Expected token 42 in index: %v", err)
	}
	if token.OwnerAddress != "0xaaa" {
		t.Errorf("Expected owner 0xaaa, got %s", token.OwnerAddress)
	}

	attempt, err := index.GetMintAttempt(context.Background(), "attempt-1")
	if err != nil {
		t.Fatalf("GetMintAttempt failed: %v", err)
	}
	if attempt.Outcome != models.AttemptOutcomeCompleted {
		t.Errorf("Expected attempt completed, got %q", attempt.Outcome)
	}
}

func TestSweep_LeavesStillPendingHashAlone(t *testing.T) {
	r, index, chainClient, cleanup := setupReconciler(t, time.Hour)
	defer cleanup()

	openAttempt(t, index, "attempt-1", "0xslow", models.StageTxConfirming)
	chainClient.pending["0xslow"] = true

	if err := r.sweep(context.Background()); err != nil {
		t.Fatalf("sweep failed: %v", err)
	}

	attempt, err := index.GetMintAttempt(context.Background(), "attempt-1")
	if err != nil {
		t.Fatalf("GetMintAttempt failed: %v", err)
	}
	if attempt.Outcome != "" {
		t.Errorf("Unconfirmed attempt must stay open, got outcome %q", attempt.Outcome)
	}
}

func TestSweep_AbandonsStaleHashlessAttempt(t *testing.T) {
	// Zero lookback: any hashless attempt is immediately stale.
	r, index, _, cleanup := setupReconciler(t, 0)
	defer cleanup()

	openAttempt(t, index, "attempt-1", "", models.StageAssetUploading)

	if err := r.sweep(context.Background()); err != nil {
		t.Fatalf("sweep failed: %v", err)
	}

	attempt, err := index.GetMintAttempt(context.Background(), "attempt-1")
	if err != nil {
		t.Fatalf("GetMintAttempt failed: %v", err)
	}
	if attempt.Outcome != models.AttemptOutcomeFailed {
		t.Errorf("Expected failed outcome, got %q", attempt.Outcome)
	}
	if attempt.Cause != "abandoned" {
		t.Errorf("Expected cause abandoned, got %q", attempt.Cause)
	}
}

func TestSweep_FinishesPendingRelease(t *testing.T) {
	r, index, _, cleanup := setupReconciler(t, time.Hour)
	defer cleanup()

	ctx := context.Background()
	if _, err := index.UpsertToken(ctx, store.UpsertTokenParams{
		TokenId:      42,
		OwnerAddress: "0xaaa",
		Name:         "Track1",
		TokenPrice:   decimal.NewFromInt(1),
	}); err != nil {
		t.Fatalf("UpsertToken failed: %v", err)
	}
	if err := index.PutReleaseSync(ctx, 42, "0xrel"); err != nil {
		t.Fatalf("PutReleaseSync failed: %v", err)
	}

	if err := r.sweep(ctx); err != nil {
		t.Fatalf("sweep failed: %v", err)
	}

	token, err := index.GetToken(ctx, 42)
	if err != nil {
		t.Fatalf("GetToken failed: %v", err)
	}
	if !token.IsReleased {
		t.Error("Expected token released after reconciliation")
	}

	syncs, err := index.ListPendingReleaseSyncs(ctx)
	if err != nil {
		t.Fatalf("ListPendingReleaseSyncs failed: %v", err)
	}
	if len(syncs) != 0 {
		t.Errorf("Expected sync resolved, got %d pending", len(syncs))
	}
}

func TestSweep_ClearsRevertedRelease(t *testing.T) {
	r, index, chainClient, cleanup := setupReconciler(t, time.Hour)
	defer cleanup()

	ctx := context.Background()
	if _, err := index.UpsertToken(ctx, store.UpsertTokenParams{
		TokenId:      42,
		OwnerAddress: "0xaaa",
		Name:         "Track1",
		TokenPrice:   decimal.NewFromInt(1),
	}); err != nil {
		t.Fatalf("UpsertToken failed: %v", err)
	}
	if err := index.PutReleaseSync(ctx, 42, "0xbad"); err != nil {
		t.Fatalf("PutReleaseSync failed: %v", err)
	}
	chainClient.reverted["0xbad"] = true

	if err := r.sweep(ctx); err != nil {
		t.Fatalf("sweep failed: %v", err)
	}

	token, err := index.GetToken(ctx, 42)
	if err != nil {
		t.Fatalf("GetToken failed: %v", err)
	}
	if token.IsReleased {
		t.Error("Reverted release must not mark the token released")
	}

	syncs, err := index.ListPendingReleaseSyncs(ctx)
	if err != nil {
		t.Fatalf("ListPendingReleaseSyncs failed: %v", err)
	}
	if len(syncs) != 0 {
		t.Errorf("Expected reverted sync cleared, got %d pending", len(syncs))
	}
}

// failingListIndex wraps a real index and fails the attempt listing.
type failingListIndex struct {
	store.TokenIndex
	listErr error
}

func (f *failingListIndex) ListUnresolvedAttempts(ctx context.Context) ([]models.MintAttempt, error) {
	return nil, f.listErr
}

func TestStart_SurfacesRecoveryListFailure(t *testing.T) {
	index, err := database.NewService(context.Background(), models.DatabaseConfig{
		Path:         ":memory:",
		MaxOpenConns: 1,
		MaxIdleConns: 1,
		PingTimeout:  5 * time.Second,
	})
	if err != nil {
		t.Fatalf("Failed to open test index: %v", err)
	}
	defer index.Close()

	broken := &failingListIndex{TokenIndex: index, listErr: fmt.Errorf("index unavailable")}
	chainClient := newFakeChain()
	coord := coordinator.NewCoordinator(&fakeContent{}, chainClient, broken, models.MintConfig{
		MaxFileSize:        10 * 1024 * 1024,
		IndexRetryAttempts: 2,
		IndexRetryDelay:    time.Millisecond,
	}, 1)

	r := NewReconciler(broken, chainClient, coord, models.ReconcilerConfig{
		PollingInterval: 10 * time.Millisecond,
		LookbackWindow:  time.Hour,
		CleanupInterval: time.Minute,
	})

	if err := r.Start(context.Background()); err == nil {
		t.Fatal("Expected Start to fail when the work queue cannot be listed")
	}
}

func TestStartAndStop(t *testing.T) {
	r, _, _, cleanup := setupReconciler(t, time.Hour)
	defer cleanup()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := r.Start(ctx); err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	time.Sleep(30 * time.Millisecond)
	r.Stop()
}
