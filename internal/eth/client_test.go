package eth

import (
	"context"
	"errors"
	"math/big"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/devlongs/swapdesk/internal/config"
	swaptypes "github.com/devlongs/swapdesk/pkg/types"
)

var testRPC = config.RPCConfig{RetryAttempts: 3, RetryDelay: time.Millisecond}

func TestRetrySucceedsAfterFailures(t *testing.T) {
	calls := 0
	got, err := retry(context.Background(), testRPC, "get block number", func() (uint64, error) {
		calls++
		if calls < 3 {
			return 0, errors.New("connection reset")
		}
		return 42, nil
	})

	require.NoError(t, err)
	assert.Equal(t, uint64(42), got)
	assert.Equal(t, 3, calls)
}

func TestRetryGivesUp(t *testing.T) {
	calls := 0
	_, err := retry(context.Background(), testRPC, "get logs", func() ([]types.Log, error) {
		calls++
		return nil, errors.New("rate limited")
	})

	require.Error(t, err)
	assert.ErrorIs(t, err, swaptypes.ErrRemoteCall)
	assert.Contains(t, err.Error(), "rate limited")
	assert.Equal(t, 3, calls)
}

func TestRetryDoesNotRetryNotFound(t *testing.T) {
	calls := 0
	_, err := retry(context.Background(), testRPC, "get receipt", func() (*types.Receipt, error) {
		calls++
		return nil, ethereum.NotFound
	})

	assert.ErrorIs(t, err, ethereum.NotFound)
	assert.Equal(t, 1, calls)
}

// receiptBackend serves a fixed receipt after a number of NotFound polls
type receiptBackend struct {
	receipt *types.Receipt
	misses  int
}

func (b *receiptBackend) TransactionReceipt(ctx context.Context, hash common.Hash) (*types.Receipt, error) {
	if b.misses > 0 {
		b.misses--
		return nil, ethereum.NotFound
	}
	return b.receipt, nil
}

func (b *receiptBackend) CodeAt(ctx context.Context, account common.Address, blockNumber *big.Int) ([]byte, error) {
	return nil, nil
}

func testTx() *types.Transaction {
	return types.NewTx(&types.LegacyTx{Nonce: 1, Gas: 21000, GasPrice: big.NewInt(1)})
}

func TestWaitForConfirmation(t *testing.T) {
	backend := &receiptBackend{
		receipt: &types.Receipt{Status: types.ReceiptStatusSuccessful, BlockNumber: big.NewInt(7)},
	}

	receipt, err := WaitForConfirmation(context.Background(), backend, testTx())
	require.NoError(t, err)
	assert.Equal(t, uint64(7), receipt.BlockNumber.Uint64())
}

func TestWaitForConfirmationReverted(t *testing.T) {
	backend := &receiptBackend{
		receipt: &types.Receipt{Status: types.ReceiptStatusFailed, BlockNumber: big.NewInt(9)},
	}

	receipt, err := WaitForConfirmation(context.Background(), backend, testTx())
	assert.ErrorIs(t, err, swaptypes.ErrReverted)
	require.NotNil(t, receipt)
}

func TestWaitForConfirmationHonoursContext(t *testing.T) {
	backend := &receiptBackend{misses: 1000}

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err := WaitForConfirmation(ctx, backend, testTx())
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}
