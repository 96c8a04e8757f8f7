package eth

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/rs/zerolog/log"

	"github.com/devlongs/swapdesk/internal/config"
	swaptypes "github.com/devlongs/swapdesk/pkg/types"
)

var _ bind.ContractBackend = (*Client)(nil)

// Client wraps the Ethereum client with retry logic and convenience methods.
// It satisfies bind.ContractBackend so contract bindings go through the retries.
type Client struct {
	client  *ethclient.Client
	subs    *ethclient.Client // websocket client used for log subscriptions
	cfg     config.RPCConfig
	chainID *big.Int
}

// NewClient creates a new Ethereum client
func NewClient(cfg config.RPCConfig) (*Client, error) {
	client, err := ethclient.Dial(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to Ethereum node: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), cfg.RequestTimeout)
	defer cancel()

	chainID, err := client.ChainID(ctx)
	if err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to get chain ID: %w", err)
	}

	subs := client
	if cfg.WSUrl != "" && cfg.WSUrl != cfg.URL {
		ws, err := ethclient.Dial(cfg.WSUrl)
		if err != nil {
			log.Warn().Err(err).Str("url", cfg.WSUrl).Msg("Failed to connect websocket endpoint, live events need a subscription-capable RPC URL")
		} else {
			subs = ws
		}
	}

	log.Info().
		Str("url", cfg.URL).
		Str("chainID", chainID.String()).
		Msg("Connected to Ethereum node")

	return &Client{
		client:  client,
		subs:    subs,
		cfg:     cfg,
		chainID: chainID,
	}, nil
}

// Close closes the client connections
func (c *Client) Close() {
	if c.subs != c.client {
		c.subs.Close()
	}
	c.client.Close()
}

// ChainID returns the chain ID observed when the client connected
func (c *Client) ChainID() *big.Int {
	return c.chainID
}

// CurrentChainID asks the node for its chain ID
func (c *Client) CurrentChainID(ctx context.Context) (uint64, error) {
	id, err := retry(ctx, c.cfg, "get chain ID", func() (*big.Int, error) {
		return c.client.ChainID(ctx)
	})
	if err != nil {
		return 0, err
	}
	return id.Uint64(), nil
}

// retry runs fn up to cfg.RetryAttempts times. ethereum.NotFound is returned
// immediately because callers poll for it.
func retry[T any](ctx context.Context, cfg config.RPCConfig, op string, fn func() (T, error)) (T, error) {
	var result T
	var err error

	attempts := max(cfg.RetryAttempts, 1)
	for i := 0; i < attempts; i++ {
		result, err = fn()
		if err == nil || errors.Is(err, ethereum.NotFound) {
			return result, err
		}
		if ctx.Err() != nil {
			break
		}
		log.Warn().Err(err).Int("attempt", i+1).Msgf("Failed to %s, retrying...", op)

		select {
		case <-ctx.Done():
		case <-time.After(cfg.RetryDelay):
		}
	}

	return result, fmt.Errorf("failed to %s after %d attempts: %w: %w", op, attempts, swaptypes.ErrRemoteCall, err)
}

// BlockNumber returns the latest block number with retry
func (c *Client) BlockNumber(ctx context.Context) (uint64, error) {
	return retry(ctx, c.cfg, "get block number", func() (uint64, error) {
		return c.client.BlockNumber(ctx)
	})
}

// HeaderByNumber returns a block header with retry
func (c *Client) HeaderByNumber(ctx context.Context, number *big.Int) (*types.Header, error) {
	return retry(ctx, c.cfg, "get header", func() (*types.Header, error) {
		return c.client.HeaderByNumber(ctx, number)
	})
}

// FilterLogs fetches logs with the given filter with retry
func (c *Client) FilterLogs(ctx context.Context, query ethereum.FilterQuery) ([]types.Log, error) {
	return retry(ctx, c.cfg, "get logs", func() ([]types.Log, error) {
		return c.client.FilterLogs(ctx, query)
	})
}

// SubscribeFilterLogs subscribes to logs matching the filter (requires WebSocket)
func (c *Client) SubscribeFilterLogs(ctx context.Context, query ethereum.FilterQuery, ch chan<- types.Log) (ethereum.Subscription, error) {
	return c.subs.SubscribeFilterLogs(ctx, query, ch)
}

// TransactionReceipt returns the receipt of a transaction with retry
func (c *Client) TransactionReceipt(ctx context.Context, txHash common.Hash) (*types.Receipt, error) {
	return retry(ctx, c.cfg, "get receipt", func() (*types.Receipt, error) {
		return c.client.TransactionReceipt(ctx, txHash)
	})
}

// CallContract executes a contract call with retry
func (c *Client) CallContract(ctx context.Context, msg ethereum.CallMsg, blockNumber *big.Int) ([]byte, error) {
	return retry(ctx, c.cfg, "call contract", func() ([]byte, error) {
		return c.client.CallContract(ctx, msg, blockNumber)
	})
}

// CodeAt returns the contract code at the given account with retry
func (c *Client) CodeAt(ctx context.Context, account common.Address, blockNumber *big.Int) ([]byte, error) {
	return retry(ctx, c.cfg, "get code", func() ([]byte, error) {
		return c.client.CodeAt(ctx, account, blockNumber)
	})
}

// PendingCodeAt returns the contract code in the pending state
func (c *Client) PendingCodeAt(ctx context.Context, account common.Address) ([]byte, error) {
	return retry(ctx, c.cfg, "get pending code", func() ([]byte, error) {
		return c.client.PendingCodeAt(ctx, account)
	})
}

// PendingNonceAt returns the next nonce for the account
func (c *Client) PendingNonceAt(ctx context.Context, account common.Address) (uint64, error) {
	return retry(ctx, c.cfg, "get pending nonce", func() (uint64, error) {
		return c.client.PendingNonceAt(ctx, account)
	})
}

// SuggestGasPrice returns the legacy gas price suggested by the node
func (c *Client) SuggestGasPrice(ctx context.Context) (*big.Int, error) {
	return retry(ctx, c.cfg, "suggest gas price", func() (*big.Int, error) {
		return c.client.SuggestGasPrice(ctx)
	})
}

// SuggestGasTipCap returns the priority fee suggested by the node
func (c *Client) SuggestGasTipCap(ctx context.Context) (*big.Int, error) {
	return retry(ctx, c.cfg, "suggest gas tip cap", func() (*big.Int, error) {
		return c.client.SuggestGasTipCap(ctx)
	})
}

// EstimateGas estimates the gas needed by msg. Not retried: a failed
// estimate usually means the call would revert.
func (c *Client) EstimateGas(ctx context.Context, msg ethereum.CallMsg) (uint64, error) {
	gas, err := c.client.EstimateGas(ctx, msg)
	if err != nil {
		return 0, fmt.Errorf("failed to estimate gas: %w", err)
	}
	return gas, nil
}

// SendTransaction broadcasts a signed transaction. Not retried to avoid
// double submission.
func (c *Client) SendTransaction(ctx context.Context, tx *types.Transaction) error {
	if err := c.client.SendTransaction(ctx, tx); err != nil {
		return fmt.Errorf("failed to send transaction: %w: %w", swaptypes.ErrRemoteCall, err)
	}
	return nil
}

// WaitForConfirmation blocks until tx is mined and returns its receipt.
// A receipt with a failed status is reported as ErrReverted.
func (c *Client) WaitForConfirmation(ctx context.Context, tx *types.Transaction) (*types.Receipt, error) {
	return WaitForConfirmation(ctx, c, tx)
}

// WaitForConfirmation waits on any deploy backend, see Client.WaitForConfirmation
func WaitForConfirmation(ctx context.Context, backend bind.DeployBackend, tx *types.Transaction) (*types.Receipt, error) {
	receipt, err := bind.WaitMined(ctx, backend, tx)
	if err != nil {
		return nil, fmt.Errorf("waiting for %s: %w", tx.Hash().Hex(), err)
	}

	if receipt.Status != types.ReceiptStatusSuccessful {
		log.Warn().
			Str("txHash", tx.Hash().Hex()).
			Uint64("block", receipt.BlockNumber.Uint64()).
			Uint64("gasUsed", receipt.GasUsed).
			Msg("Transaction reverted")
		return receipt, fmt.Errorf("%w: %s", swaptypes.ErrReverted, tx.Hash().Hex())
	}

	log.Debug().
		Str("txHash", tx.Hash().Hex()).
		Uint64("block", receipt.BlockNumber.Uint64()).
		Msg("Transaction confirmed")

	return receipt, nil
}
