package decoder

import (
	"math/big"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	ethtypes "github.com/ethereum/go-ethereum/core/types"
	"github.com/rs/zerolog/log"

	"github.com/devlongs/swapdesk/internal/dex/uniswapv3"
	"github.com/devlongs/swapdesk/pkg/types"
)

// Decoder builds log queries for one pool and decodes their results. Queries
// match every event of the pool; display filtering happens on the ledger.
type Decoder struct {
	pool common.Address
}

// NewDecoder creates a decoder for the events of pool
func NewDecoder(pool common.Address) *Decoder {
	return &Decoder{pool: pool}
}

// Pool returns the pool address the decoder is scoped to
func (d *Decoder) Pool() common.Address {
	return d.pool
}

// Query returns a filter for the pool's events between fromBlock and toBlock.
// A nil toBlock means the latest block.
func (d *Decoder) Query(fromBlock uint64, toBlock *big.Int) ethereum.FilterQuery {
	return ethereum.FilterQuery{
		FromBlock: new(big.Int).SetUint64(fromBlock),
		ToBlock:   toBlock,
		Addresses: []common.Address{d.pool},
	}
}

// LiveQuery returns a filter for future pool events
func (d *Decoder) LiveQuery() ethereum.FilterQuery {
	return ethereum.FilterQuery{
		Addresses: []common.Address{d.pool},
	}
}

// DecodeLog decodes a single pool log
func (d *Decoder) DecodeLog(l ethtypes.Log) (types.ChainEvent, error) {
	return uniswapv3.DecodeLog(l)
}

// DecodeLogs decodes a batch of logs, skipping the ones that fail to decode
func (d *Decoder) DecodeLogs(logs []ethtypes.Log) []types.ChainEvent {
	events := make([]types.ChainEvent, 0, len(logs))

	for _, l := range logs {
		event, err := uniswapv3.DecodeLog(l)
		if err != nil {
			// Log error but continue processing other events
			log.Warn().
				Err(err).
				Str("txHash", l.TxHash.Hex()).
				Uint64("block", l.BlockNumber).
				Uint("logIndex", l.Index).
				Msg("Failed to decode pool log")
			continue
		}
		events = append(events, event)
	}

	return events
}
