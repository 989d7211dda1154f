package chain

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"sync"
	"time"

	"soundstake-mint-release-go/internal/models"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/ethclient"
	"go.uber.org/zap"
)

// Contract surface consumed by the coordinator. safeMint emits the standard
// ERC-721 Transfer event carrying the assigned token identifier.
const contractABI = `[
	{"name":"safeMint","type":"function","stateMutability":"nonpayable","inputs":[{"name":"to","type":"address"},{"name":"uri","type":"string"}],"outputs":[]},
	{"name":"releaseSong","type":"function","stateMutability":"nonpayable","inputs":[{"name":"tokenId","type":"uint256"}],"outputs":[]},
	{"name":"ownerOf","type":"function","stateMutability":"view","inputs":[{"name":"tokenId","type":"uint256"}],"outputs":[{"name":"","type":"address"}]},
	{"name":"tokenURI","type":"function","stateMutability":"view","inputs":[{"name":"tokenId","type":"uint256"}],"outputs":[{"name":"","type":"string"}]}
]`

var transferTopic = crypto.Keccak256Hash([]byte("Transfer(address,address,uint256)"))

// Backend is the slice of the JSON-RPC provider the service uses.
// *ethclient.Client satisfies it; tests substitute a fake.
type Backend interface {
	ChainID(ctx context.Context) (*big.Int, error)
	PendingNonceAt(ctx context.Context, account common.Address) (uint64, error)
	SuggestGasPrice(ctx context.Context) (*big.Int, error)
	EstimateGas(ctx context.Context, msg ethereum.CallMsg) (uint64, error)
	SendTransaction(ctx context.Context, tx *types.Transaction) error
	TransactionReceipt(ctx context.Context, txHash common.Hash) (*types.Receipt, error)
	BlockNumber(ctx context.Context) (uint64, error)
	CallContract(ctx context.Context, msg ethereum.CallMsg, blockNumber *big.Int) ([]byte, error)
}

type Service struct {
	backend        Backend
	contract       common.Address
	abi            abi.ABI
	pollInterval   time.Duration
	confirmTimeout time.Duration

	mu          sync.RWMutex
	signer      Signer
	subscribers []func(oldAddress, newAddress string)
}

func NewService(cfg models.ChainConfig) (*Service, error) {
	if cfg.RpcUrl == "" {
		return nil, fmt.Errorf("%w: rpc url not configured", ErrUnavailable)
	}

	client, err := ethclient.Dial(cfg.RpcUrl)
	if err != nil {
		return nil, fmt.Errorf("%w: unable to dial %s: %v", ErrUnavailable, cfg.RpcUrl, err)
	}

	return NewServiceWithBackend(client, cfg)
}

// NewServiceWithBackend wires the service onto an already constructed
// backend. Used by tests and by callers that manage their own client.
func NewServiceWithBackend(backend Backend, cfg models.ChainConfig) (*Service, error) {
	if cfg.ContractAddress == "" {
		return nil, fmt.Errorf("contract address not configured")
	}
	if !common.IsHexAddress(cfg.ContractAddress) {
		return nil, fmt.Errorf("invalid contract address: %s", cfg.ContractAddress)
	}

	parsed, err := abi.JSON(strings.NewReader(contractABI))
	if err != nil {
		return nil, fmt.Errorf("unable to parse contract ABI: %w", err)
	}

	pollInterval := cfg.PollInterval
	if pollInterval <= 0 {
		pollInterval = 4 * time.Second
	}
	confirmTimeout := cfg.ConfirmTimeout
	if confirmTimeout <= 0 {
		confirmTimeout = 2 * time.Minute
	}

	return &Service{
		backend:        backend,
		contract:       common.HexToAddress(cfg.ContractAddress),
		abi:            parsed,
		pollInterval:   pollInterval,
		confirmTimeout: confirmTimeout,
	}, nil
}

// UseSigner swaps the active signer and notifies account-change
// subscribers. Passing nil disconnects the wallet.
func (s *Service) UseSigner(signer Signer) {
	s.mu.Lock()
	oldAddress := ""
	if s.signer != nil {
		oldAddress = models.NormalizeAddress(s.signer.Address())
	}
	newAddress := ""
	if signer != nil {
		newAddress = models.NormalizeAddress(signer.Address())
	}
	s.signer = signer
	subscribers := make([]func(string, string), len(s.subscribers))
	copy(subscribers, s.subscribers)
	s.mu.Unlock()

	if oldAddress != newAddress {
		zap.L().Info("Active signer changed",
			zap.String("old_address", oldAddress),
			zap.String("new_address", newAddress))
		for _, notify := range subscribers {
			notify(oldAddress, newAddress)
		}
	}
}

// OnSignerChange registers an observer for active-account changes.
func (s *Service) OnSignerChange(fn func(oldAddress, newAddress string)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.subscribers = append(s.subscribers, fn)
}

// ActiveAddress returns the connected wallet address, or "" when no signer
// is attached.
func (s *Service) ActiveAddress() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.signer == nil {
		return ""
	}
	return models.NormalizeAddress(s.signer.Address())
}

func (s *Service) activeSigner() (Signer, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.signer == nil {
		return nil, fmt.Errorf("%w: no signer attached", ErrUnavailable)
	}
	return s.signer, nil
}

// Mint submits safeMint(owner, tokenUri). The returned handle carries the
// transaction hash immediately, before any confirmation.
func (s *Service) Mint(ctx context.Context, ownerAddress, tokenUri string) (models.TxHandle, error) {
	calldata, err := s.abi.Pack("safeMint", common.HexToAddress(ownerAddress), tokenUri)
	if err != nil {
		return models.TxHandle{}, fmt.Errorf("unable to encode safeMint call: %w", err)
	}

	handle, err := s.submit(ctx, calldata)
	if err != nil {
		return models.TxHandle{}, err
	}

	zap.L().Info("Mint transaction submitted",
		zap.String("tx_hash", handle.Hash),
		zap.String("owner", models.NormalizeAddress(ownerAddress)),
		zap.String("token_uri", tokenUri))
	return handle, nil
}

// Release submits releaseSong(tokenId).
func (s *Service) Release(ctx context.Context, tokenId int64) (models.TxHandle, error) {
	calldata, err := s.abi.Pack("releaseSong", big.NewInt(tokenId))
	if err != nil {
		return models.TxHandle{}, fmt.Errorf("unable to encode releaseSong call: %w", err)
	}

	handle, err := s.submit(ctx, calldata)
	if err != nil {
		return models.TxHandle{}, err
	}

	zap.L().Info("Release transaction submitted",
		zap.String("tx_hash", handle.Hash),
		zap.Int64("token_id", tokenId))
	return handle, nil
}

func (s *Service) submit(ctx context.Context, calldata []byte) (models.TxHandle, error) {
	signer, err := s.activeSigner()
	if err != nil {
		return models.TxHandle{}, err
	}
	from := common.HexToAddress(signer.Address())

	chainId, err := s.backend.ChainID(ctx)
	if err != nil {
		return models.TxHandle{}, fmt.Errorf("%w: unable to query chain id: %v", ErrUnavailable, err)
	}

	nonce, err := s.backend.PendingNonceAt(ctx, from)
	if err != nil {
		return models.TxHandle{}, fmt.Errorf("%w: unable to query nonce: %v", ErrUnavailable, err)
	}

	gasPrice, err := s.backend.SuggestGasPrice(ctx)
	if err != nil {
		return models.TxHandle{}, fmt.Errorf("%w: unable to query gas price: %v", ErrUnavailable, err)
	}

	gasLimit, err := s.backend.EstimateGas(ctx, ethereum.CallMsg{
		From: from,
		To:   &s.contract,
		Data: calldata,
	})
	if err != nil {
		if strings.Contains(err.Error(), "revert") {
			return models.TxHandle{}, &RevertedError{Reason: err.Error()}
		}
		return models.TxHandle{}, fmt.Errorf("%w: unable to estimate gas: %v", ErrUnavailable, err)
	}

	tx := types.NewTx(&types.LegacyTx{
		Nonce:    nonce,
		To:       &s.contract,
		Value:    big.NewInt(0),
		Gas:      gasLimit,
		GasPrice: gasPrice,
		Data:     calldata,
	})

	signedTx, err := signer.SignTx(chainId, tx)
	if err != nil {
		if errors.Is(err, ErrUserRejected) {
			return models.TxHandle{}, err
		}
		return models.TxHandle{}, fmt.Errorf("unable to sign transaction: %w", err)
	}

	if err := s.backend.SendTransaction(ctx, signedTx); err != nil {
		if strings.Contains(err.Error(), "revert") {
			return models.TxHandle{}, &RevertedError{Reason: err.Error()}
		}
		return models.TxHandle{}, fmt.Errorf("unable to submit transaction: %w", err)
	}

	return models.TxHandle{Hash: signedTx.Hash().Hex()}, nil
}

// AwaitConfirmation polls for the receipt of txHash until it has at least
// minConfirmations confirmations or the confirmation deadline passes. On
// ErrConfirmationTimeout the outcome is unknown: the caller must keep the
// hash and re-poll rather than resubmit.
func (s *Service) AwaitConfirmation(ctx context.Context, txHash string, minConfirmations uint64) (*models.Receipt, error) {
	if minConfirmations == 0 {
		minConfirmations = 1
	}

	deadlineCtx, cancel := context.WithTimeout(ctx, s.confirmTimeout)
	defer cancel()

	hash := common.HexToHash(txHash)
	ticker := time.NewTicker(s.pollInterval)
	defer ticker.Stop()

	for {
		receipt, err := s.checkReceipt(deadlineCtx, hash, minConfirmations)
		if err != nil {
			return nil, err
		}
		if receipt != nil {
			return receipt, nil
		}

		select {
		case <-ticker.C:
		case <-deadlineCtx.Done():
			if errors.Is(deadlineCtx.Err(), context.DeadlineExceeded) {
				zap.L().Warn("Confirmation deadline passed, outcome unknown",
					zap.String("tx_hash", txHash),
					zap.Duration("deadline", s.confirmTimeout))
				return nil, fmt.Errorf("%w: %s", ErrConfirmationTimeout, txHash)
			}
			return nil, deadlineCtx.Err()
		}
	}
}

// checkReceipt returns (nil, nil) while the transaction is pending or still
// short of the requested confirmation depth.
func (s *Service) checkReceipt(ctx context.Context, hash common.Hash, minConfirmations uint64) (*models.Receipt, error) {
	receipt, err := s.backend.TransactionReceipt(ctx, hash)
	if err != nil {
		if errors.Is(err, ethereum.NotFound) {
			return nil, nil
		}
		if ctx.Err() != nil {
			return nil, nil
		}
		zap.L().Debug("Receipt lookup failed, will retry",
			zap.String("tx_hash", hash.Hex()),
			zap.Error(err))
		return nil, nil
	}

	if receipt.Status != types.ReceiptStatusSuccessful {
		return nil, &RevertedError{Reason: "execution reverted"}
	}

	head, err := s.backend.BlockNumber(ctx)
	if err != nil {
		return nil, nil
	}

	mined := receipt.BlockNumber.Uint64()
	if head < mined {
		return nil, nil
	}
	confirmations := head - mined + 1
	if confirmations < minConfirmations {
		return nil, nil
	}

	return &models.Receipt{
		TxHash:        hash.Hex(),
		BlockNumber:   mined,
		Confirmations: confirmations,
		Success:       true,
		MintedTokenId: s.extractMintedTokenId(receipt),
	}, nil
}

// extractMintedTokenId pulls the token identifier out of the ERC-721
// Transfer event emitted by the tracked contract, or nil if absent.
func (s *Service) extractMintedTokenId(receipt *types.Receipt) *big.Int {
	for _, entry := range receipt.Logs {
		if entry.Address != s.contract {
			continue
		}
		if len(entry.Topics) != 4 || entry.Topics[0] != transferTopic {
			continue
		}
		return new(big.Int).SetBytes(entry.Topics[3].Bytes())
	}
	return nil
}

// OwnerOf reads the on-chain owner of a token.
func (s *Service) OwnerOf(ctx context.Context, tokenId int64) (string, error) {
	data, err := s.call(ctx, "ownerOf", big.NewInt(tokenId))
	if err != nil {
		return "", err
	}

	out, err := s.abi.Unpack("ownerOf", data)
	if err != nil {
		return "", fmt.Errorf("unable to decode ownerOf result: %w", err)
	}

	owner, ok := out[0].(common.Address)
	if !ok {
		return "", fmt.Errorf("unexpected ownerOf result type")
	}
	return models.NormalizeAddress(owner.Hex()), nil
}

// TokenURI reads the metadata URI recorded on-chain for a token.
func (s *Service) TokenURI(ctx context.Context, tokenId int64) (string, error) {
	data, err := s.call(ctx, "tokenURI", big.NewInt(tokenId))
	if err != nil {
		return "", err
	}

	out, err := s.abi.Unpack("tokenURI", data)
	if err != nil {
		return "", fmt.Errorf("unable to decode tokenURI result: %w", err)
	}

	uri, ok := out[0].(string)
	if !ok {
		return "", fmt.Errorf("unexpected tokenURI result type")
	}
	return uri, nil
}

func (s *Service) call(ctx context.Context, method string, args ...interface{}) ([]byte, error) {
	calldata, err := s.abi.Pack(method, args...)
	if err != nil {
		return nil, fmt.Errorf("unable to encode %s call: %w", method, err)
	}

	data, err := s.backend.CallContract(ctx, ethereum.CallMsg{To: &s.contract, Data: calldata}, nil)
	if err != nil {
		if strings.Contains(err.Error(), "revert") {
			return nil, &RevertedError{Reason: err.Error()}
		}
		return nil, fmt.Errorf("%w: %s call failed: %v", ErrUnavailable, method, err)
	}
	return data, nil
}
