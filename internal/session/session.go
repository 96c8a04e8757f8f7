// Package session ties the contract bindings and the event feed to one
// connected wallet status.
package session

import (
	"context"
	"fmt"

	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"

	"github.com/devlongs/swapdesk/internal/config"
	"github.com/devlongs/swapdesk/internal/contracts"
	"github.com/devlongs/swapdesk/internal/wallet"
	"github.com/devlongs/swapdesk/pkg/types"
)

// Contracts are the deployed addresses a session binds to
type Contracts struct {
	Pool    types.Pool
	Manager common.Address
	Quoter  common.Address
}

// ContractsFromConfig builds the contract set from configuration
func ContractsFromConfig(cfg config.ContractsConfig) Contracts {
	return Contracts{
		Pool: types.Pool{
			Address: common.HexToAddress(cfg.Pool),
			Token0: types.Token{
				Address:  common.HexToAddress(cfg.Token0),
				Symbol:   cfg.Token0Symbol,
				Decimals: cfg.Decimals0,
			},
			Token1: types.Token{
				Address:  common.HexToAddress(cfg.Token1),
				Symbol:   cfg.Token1Symbol,
				Decimals: cfg.Decimals1,
			},
		},
		Manager: common.HexToAddress(cfg.Manager),
		Quoter:  common.HexToAddress(cfg.Quoter),
	}
}

// Signer produces transaction options for a chain
type Signer interface {
	TransactOpts(ctx context.Context, chainID uint64) (*bind.TransactOpts, error)
}

// Session is the explicit context of one connected account on one chain
type Session struct {
	Status  wallet.Status
	Pool    types.Pool
	Token0  *contracts.ERC20
	Token1  *contracts.ERC20
	Manager *contracts.Manager
	Quoter  *contracts.Quoter
	Opts    *bind.TransactOpts
}

// Open binds the contracts for status. It fails with types.ErrNotConnected
// unless status is connected.
func Open(ctx context.Context, status wallet.Status, c Contracts, backend bind.ContractBackend, signer Signer) (*Session, error) {
	if !status.Connected() {
		return nil, types.ErrNotConnected
	}

	opts, err := signer.TransactOpts(ctx, status.ChainID)
	if err != nil {
		return nil, fmt.Errorf("failed to open session: %w", err)
	}
	if opts.From != status.Account {
		return nil, fmt.Errorf("signer account %s does not match connected account %s", opts.From.Hex(), status.Account.Hex())
	}

	return &Session{
		Status:  status,
		Pool:    c.Pool,
		Token0:  contracts.NewERC20(c.Pool.Token0.Address, backend, opts),
		Token1:  contracts.NewERC20(c.Pool.Token1.Address, backend, opts),
		Manager: contracts.NewManager(c.Manager, backend, opts),
		Quoter:  contracts.NewQuoter(c.Quoter, backend),
		Opts:    opts,
	}, nil
}

// Token returns the binding of the pool token at address
func (s *Session) Token(address common.Address) (*contracts.ERC20, bool) {
	switch address {
	case s.Token0.Address():
		return s.Token0, true
	case s.Token1.Address():
		return s.Token1, true
	}
	return nil, false
}
