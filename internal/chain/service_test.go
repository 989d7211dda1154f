package chain

import (
	"context"
	"errors"
	"math/big"
	"sync"
	"testing"
	"time"

	"soundstake-mint-release-go/internal/models"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
)

// Well-known throwaway development key, never used on a real network.
const testPrivateKey = "59c6995e998f97a5a0044966f0945389dc9e86dae88c7a8412f4603b6b78690d"

const testContract = "0x1111111111111111111111111111111111111111"

type fakeBackend struct {
	mu       sync.Mutex
	head     uint64
	receipts map[common.Hash]*types.Receipt
	sent     []*types.Transaction

	estimateErr error
	sendErr     error
}

func newFakeBackend() *fakeBackend {
	return &fakeBackend{
		head:     100,
		receipts: make(map[common.Hash]*types.Receipt),
	}
}

func (f *fakeBackend) ChainID(ctx context.Context) (*big.Int, error) {
	return big.NewInt(1337), nil
}

func (f *fakeBackend) PendingNonceAt(ctx context.Context, account common.Address) (uint64, error) {
	return 7, nil
}

func (f *fakeBackend) SuggestGasPrice(ctx context.Context) (*big.Int, error) {
	return big.NewInt(1_000_000_000), nil
}

func (f *fakeBackend) EstimateGas(ctx context.Context, msg ethereum.CallMsg) (uint64, error) {
	if f.estimateErr != nil {
		return 0, f.estimateErr
	}
	return 120000, nil
}

func (f *fakeBackend) SendTransaction(ctx context.Context, tx *types.Transaction) error {
	if f.sendErr != nil {
		return f.sendErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, tx)
	return nil
}

func (f *fakeBackend) TransactionReceipt(ctx context.Context, txHash common.Hash) (*types.Receipt, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	receipt, ok := f.receipts[txHash]
	if !ok {
		return nil, ethereum.NotFound
	}
	return receipt, nil
}

func (f *fakeBackend) BlockNumber(ctx context.Context) (uint64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.head, nil
}

func (f *fakeBackend) CallContract(ctx context.Context, msg ethereum.CallMsg, blockNumber *big.Int) ([]byte, error) {
	return nil, errors.New("not implemented")
}

func (f *fakeBackend) setReceipt(txHash common.Hash, receipt *types.Receipt) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.receipts[txHash] = receipt
}

func setupTestService(t *testing.T, backend *fakeBackend) *Service {
	service, err := NewServiceWithBackend(backend, models.ChainConfig{
		ContractAddress: testContract,
		PollInterval:    10 * time.Millisecond,
		ConfirmTimeout:  300 * time.Millisecond,
	})
	if err != nil {
		t.Fatalf("Failed to create chain service: %v", err)
	}

	signer, err := NewLocalSigner(testPrivateKey)
	if err != nil {
		t.Fatalf("Failed to create signer: %v", err)
	}
	service.UseSigner(signer)

	return service
}

// mintReceipt builds a successful receipt carrying the ERC-721 Transfer
// event for the given token id.
func mintReceipt(txHash common.Hash, tokenId int64, blockNumber uint64) *types.Receipt {
	tokenTopic := common.BigToHash(big.NewInt(tokenId))
	return &types.Receipt{
		Status:      types.ReceiptStatusSuccessful,
		BlockNumber: new(big.Int).SetUint64(blockNumber),
		Logs: []*types.Log{
			{
				Address: common.HexToAddress(testContract),
				Topics: []common.Hash{
					transferTopic,
					common.Hash{},
					common.HexToHash("0xaaa"),
					tokenTopic,
				},
			},
		},
	}
}

func TestMint_ReturnsHashBeforeConfirmation(t *testing.T) {
	backend := newFakeBackend()
	service := setupTestService(t, backend)

	handle, err := service.Mint(context.Background(), "0xAAA0000000000000000000000000000000000000", "ipfs://QmMeta")
	if err != nil {
		t.Fatalf("Mint failed: %v", err)
	}

	if handle.Hash == "" {
		t.Error("Expected transaction hash before any confirmation")
	}
	if len(backend.sent) != 1 {
		t.Fatalf("Expected 1 submitted transaction, got %d", len(backend.sent))
	}
	if backend.sent[0].Hash().Hex() != handle.Hash {
		t.Errorf("Handle hash %s does not match submitted transaction %s",
			handle.Hash, backend.sent[0].Hash().Hex())
	}
}

func TestMint_NoSigner(t *testing.T) {
	backend := newFakeBackend()
	service, err := NewServiceWithBackend(backend, models.ChainConfig{
		ContractAddress: testContract,
	})
	if err != nil {
		t.Fatalf("Failed to create chain service: %v", err)
	}

	_, err = service.Mint(context.Background(), "0xaaa", "ipfs://QmMeta")
	if !errors.Is(err, ErrUnavailable) {
		t.Errorf("Expected ErrUnavailable without signer, got %v", err)
	}
}

func TestMint_EstimateRevert(t *testing.T) {
	backend := newFakeBackend()
	backend.estimateErr = errors.New("execution reverted: not allowed")
	service := setupTestService(t, backend)

	_, err := service.Mint(context.Background(), "0xaaa", "ipfs://QmMeta")

	var reverted *RevertedError
	if !errors.As(err, &reverted) {
		t.Errorf("Expected *RevertedError, got %v", err)
	}
	if len(backend.sent) != 0 {
		t.Errorf("Reverted estimate must not submit, got %d transactions", len(backend.sent))
	}
}

func TestAwaitConfirmation_ExtractsTokenId(t *testing.T) {
	backend := newFakeBackend()
	service := setupTestService(t, backend)

	handle, err := service.Mint(context.Background(), "0xaaa", "ipfs://QmMeta")
	if err != nil {
		t.Fatalf("Mint failed: %v", err)
	}

	txHash := common.HexToHash(handle.Hash)
	backend.setReceipt(txHash, mintReceipt(txHash, 42, 99))

	receipt, err := service.AwaitConfirmation(context.Background(), handle.Hash, 1)
	if err != nil {
		t.Fatalf("AwaitConfirmation failed: %v", err)
	}

	if !receipt.Success {
		t.Error("Expected successful receipt")
	}
	if receipt.MintedTokenId == nil || receipt.MintedTokenId.Int64() != 42 {
		t.Errorf("Expected minted token id 42, got %v", receipt.MintedTokenId)
	}
	if receipt.Confirmations < 1 {
		t.Errorf("Expected at least 1 confirmation, got %d", receipt.Confirmations)
	}
}

func TestAwaitConfirmation_IgnoresForeignTransferLogs(t *testing.T) {
	backend := newFakeBackend()
	service := setupTestService(t, backend)

	txHash := common.HexToHash("0xbeef")
	receipt := mintReceipt(txHash, 42, 99)
	// Same event shape but emitted by a different contract.
	receipt.Logs[0].Address = common.HexToAddress("0x2222222222222222222222222222222222222222")
	backend.setReceipt(txHash, receipt)

	got, err := service.AwaitConfirmation(context.Background(), txHash.Hex(), 1)
	if err != nil {
		t.Fatalf("AwaitConfirmation failed: %v", err)
	}
	if got.MintedTokenId != nil {
		t.Errorf("Expected no token id from foreign contract logs, got %v", got.MintedTokenId)
	}
}

func TestAwaitConfirmation_Timeout(t *testing.T) {
	backend := newFakeBackend()
	service := setupTestService(t, backend)

	// No receipt ever appears.
	_, err := service.AwaitConfirmation(context.Background(), "0xdead", 1)
	if !errors.Is(err, ErrConfirmationTimeout) {
		t.Errorf("Expected ErrConfirmationTimeout, got %v", err)
	}
}

func TestAwaitConfirmation_Reverted(t *testing.T) {
	backend := newFakeBackend()
	service := setupTestService(t, backend)

	txHash := common.HexToHash("0xbad")
	backend.setReceipt(txHash, &types.Receipt{
		Status:      types.ReceiptStatusFailed,
		BlockNumber: big.NewInt(99),
	})

	_, err := service.AwaitConfirmation(context.Background(), txHash.Hex(), 1)

	var reverted *RevertedError
	if !errors.As(err, &reverted) {
		t.Errorf("Expected *RevertedError, got %v", err)
	}
}

func TestAwaitConfirmation_WaitsForDepth(t *testing.T) {
	backend := newFakeBackend()
	service := setupTestService(t, backend)

	txHash := common.HexToHash("0xdeep")
	// Mined at the current head: exactly 1 confirmation, short of 3.
	backend.setReceipt(txHash, mintReceipt(txHash, 7, backend.head))

	done := make(chan struct{})
	go func() {
		defer close(done)
		receipt, err := service.AwaitConfirmation(context.Background(), txHash.Hex(), 3)
		if err != nil {
			t.Errorf("AwaitConfirmation failed: %v", err)
			return
		}
		if receipt.Confirmations < 3 {
			t.Errorf("Expected >= 3 confirmations, got %d", receipt.Confirmations)
		}
	}()

	// Advance the head so the depth requirement is eventually met.
	time.Sleep(30 * time.Millisecond)
	backend.mu.Lock()
	backend.head += 5
	backend.mu.Unlock()

	<-done
}

func TestUseSigner_NotifiesSubscribers(t *testing.T) {
	backend := newFakeBackend()
	service := setupTestService(t, backend)
	firstAddress := service.ActiveAddress()

	var mu sync.Mutex
	var changes [][2]string
	service.OnSignerChange(func(oldAddress, newAddress string) {
		mu.Lock()
		defer mu.Unlock()
		changes = append(changes, [2]string{oldAddress, newAddress})
	})

	service.UseSigner(nil)

	mu.Lock()
	defer mu.Unlock()
	if len(changes) != 1 {
		t.Fatalf("Expected 1 change notification, got %d", len(changes))
	}
	if changes[0][0] != firstAddress || changes[0][1] != "" {
		t.Errorf("Unexpected change notification: %v", changes[0])
	}
	if service.ActiveAddress() != "" {
		t.Errorf("Expected empty active address after disconnect, got %s", service.ActiveAddress())
	}
}
