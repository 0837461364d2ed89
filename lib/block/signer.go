package block

import (
	"crypto/ecdsa"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	etypes "github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/tarancss/hd"
)

// Key is a private key held by a Signer.
type Key struct {
	pk *ecdsa.PrivateKey
}

// Sign signs tx for the given chain id (EIP-155).
func (k *Key) Sign(tx *etypes.Transaction, chainID *big.Int) (*etypes.Transaction, error) {
	signed, err := etypes.SignTx(tx, etypes.NewEIP155Signer(chainID), k.pk)
	if err != nil {
		return nil, fmt.Errorf("cannot sign transaction: %w", err)
	}

	return signed, nil
}

// Signer holds the accounts derived from an HD wallet seed. Accounts are the external addresses 0..n-1 of one wallet.
type Signer struct {
	accounts []common.Address
	keys     map[common.Address]*Key
}

// NewSigner derives n accounts of the given wallet number from seed.
func NewSigner(seed []byte, wallet uint32, n int) (*Signer, error) {
	w, err := hd.Init(seed)
	if err != nil {
		return nil, fmt.Errorf("cannot init HD wallet: %w", err)
	}

	s := &Signer{
		accounts: make([]common.Address, 0, n),
		keys:     make(map[common.Address]*Key, n),
	}

	for i := 0; i < n; i++ {
		_, key, _, err := w.Address(wallet, hd.External, uint32(i))
		if err != nil {
			return nil, fmt.Errorf("cannot derive HD wallet address %d/%d: %w", wallet, i, err)
		}

		pk, err := crypto.ToECDSA(key)
		if err != nil {
			return nil, fmt.Errorf("invalid HD wallet key %d/%d: %w", wallet, i, err)
		}

		addr := crypto.PubkeyToAddress(pk.PublicKey)
		s.accounts = append(s.accounts, addr)
		s.keys[addr] = &Key{pk: pk}
	}

	return s, nil
}

// Accounts returns the signer accounts in derivation order.
func (s *Signer) Accounts() []common.Address {
	return s.accounts
}

// Key returns the key of the account, if the signer has it.
func (s *Signer) Key(account common.Address) (*Key, bool) {
	k, ok := s.keys[account]

	return k, ok
}
