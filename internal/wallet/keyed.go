package wallet

import (
	"context"
	"crypto/ecdsa"
	"fmt"
	"math/big"
	"os"
	"strings"
	"sync"

	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/accounts/keystore"
	"github.com/ethereum/go-ethereum/common"
	ethtypes "github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"

	"github.com/devlongs/swapdesk/internal/config"
	"github.com/devlongs/swapdesk/pkg/types"
)

// Prompt asks the operator to approve signing tx
type Prompt func(tx *ethtypes.Transaction) (bool, error)

// KeyWallet is a wallet backed by a raw private key or an encrypted keystore file
type KeyWallet struct {
	cfg    config.WalletConfig
	chain  ChainReader
	prompt Prompt

	mu  sync.Mutex
	key *ecdsa.PrivateKey
}

var _ Wallet = (*KeyWallet)(nil)

// NewKeyWallet creates a wallet. chain reports the node's chain id; prompt,
// if set, is asked before every signature.
func NewKeyWallet(cfg config.WalletConfig, chain ChainReader, prompt Prompt) *KeyWallet {
	return &KeyWallet{cfg: cfg, chain: chain, prompt: prompt}
}

// Installed reports whether a key source is configured
func (w *KeyWallet) Installed() bool {
	return w.cfg.PrivateKey != "" || w.cfg.KeystorePath != ""
}

// Accounts returns the account when it is available without unlocking
func (w *KeyWallet) Accounts(ctx context.Context) ([]common.Address, error) {
	w.mu.Lock()
	key := w.key
	w.mu.Unlock()

	if key != nil {
		return []common.Address{crypto.PubkeyToAddress(key.PublicKey)}, nil
	}
	if w.cfg.PrivateKey == "" {
		return nil, nil
	}

	addr, err := w.RequestAccount(ctx)
	if err != nil {
		return nil, err
	}
	return []common.Address{addr}, nil
}

// RequestAccount loads the key, decrypting the keystore if needed
func (w *KeyWallet) RequestAccount(ctx context.Context) (common.Address, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.key == nil {
		key, err := w.loadKey()
		if err != nil {
			return common.Address{}, err
		}
		w.key = key
	}
	return crypto.PubkeyToAddress(w.key.PublicKey), nil
}

// CurrentChainID returns the chain id of the connected node
func (w *KeyWallet) CurrentChainID(ctx context.Context) (uint64, error) {
	return w.chain.CurrentChainID(ctx)
}

// TransactOpts returns signing options for chainID. The signer asks the
// prompt first; a declined prompt fails with types.ErrUserRejected.
func (w *KeyWallet) TransactOpts(ctx context.Context, chainID uint64) (*bind.TransactOpts, error) {
	w.mu.Lock()
	key := w.key
	w.mu.Unlock()

	if key == nil {
		return nil, types.ErrNotConnected
	}

	opts, err := bind.NewKeyedTransactorWithChainID(key, new(big.Int).SetUint64(chainID))
	if err != nil {
		return nil, fmt.Errorf("failed to create transactor: %w", err)
	}
	opts.Context = ctx

	sign := opts.Signer
	opts.Signer = func(from common.Address, tx *ethtypes.Transaction) (*ethtypes.Transaction, error) {
		if w.prompt != nil {
			ok, err := w.prompt(tx)
			if err != nil {
				return nil, fmt.Errorf("signature prompt failed: %w", err)
			}
			if !ok {
				return nil, types.ErrUserRejected
			}
		}
		return sign(from, tx)
	}

	return opts, nil
}

func (w *KeyWallet) loadKey() (*ecdsa.PrivateKey, error) {
	if w.cfg.PrivateKey != "" {
		key, err := crypto.HexToECDSA(strings.TrimPrefix(w.cfg.PrivateKey, "0x"))
		if err != nil {
			return nil, fmt.Errorf("invalid private key: %w", err)
		}
		return key, nil
	}

	if w.cfg.KeystorePath == "" {
		return nil, fmt.Errorf("%w: no key configured", types.ErrNotConnected)
	}

	keyJSON, err := os.ReadFile(w.cfg.KeystorePath)
	if err != nil {
		return nil, fmt.Errorf("failed to read keystore: %w", err)
	}
	k, err := keystore.DecryptKey(keyJSON, w.cfg.KeystorePassword)
	if err != nil {
		return nil, fmt.Errorf("failed to decrypt keystore: %w", err)
	}
	return k.PrivateKey, nil
}
