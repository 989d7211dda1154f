package chain

import (
	"crypto/ecdsa"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
)

// Signer signs transactions with the currently connected wallet's key. The
// chain service never holds key material itself; it only talks to whatever
// signer is active, and wallet-backed implementations return ErrUserRejected
// when the user declines the prompt.
type Signer interface {
	Address() string
	SignTx(chainId *big.Int, tx *types.Transaction) (*types.Transaction, error)
}

// LocalSigner signs with an in-process ECDSA key. Used by the CLI tools;
// never logs or exposes the key.
type LocalSigner struct {
	key     *ecdsa.PrivateKey
	address string
}

func NewLocalSigner(hexKey string) (*LocalSigner, error) {
	key, err := crypto.HexToECDSA(strings.TrimPrefix(hexKey, "0x"))
	if err != nil {
		return nil, fmt.Errorf("invalid private key: %w", err)
	}

	return &LocalSigner{
		key:     key,
		address: crypto.PubkeyToAddress(key.PublicKey).Hex(),
	}, nil
}

func (s *LocalSigner) Address() string {
	return s.address
}

func (s *LocalSigner) SignTx(chainId *big.Int, tx *types.Transaction) (*types.Transaction, error) {
	return types.SignTx(tx, types.LatestSignerForChainID(chainId), s.key)
}
