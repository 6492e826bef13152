// Package source fetches raw entities from an Ethereum JSON-RPC endpoint
package source

import (
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
)

// RawLog is an event log as returned by eth_getLogs or in a receipt. The
// identifying fields are optional because pending logs omit them.
type RawLog struct {
	Address          common.Address  `json:"address"`
	Topics           []common.Hash   `json:"topics"`
	Data             hexutil.Bytes   `json:"data"`
	BlockNumber      *hexutil.Uint64 `json:"blockNumber"`
	BlockHash        *common.Hash    `json:"blockHash"`
	TransactionHash  *common.Hash    `json:"transactionHash"`
	TransactionIndex *hexutil.Uint   `json:"transactionIndex"`
	LogIndex         *hexutil.Uint   `json:"logIndex"`
	Removed          bool            `json:"removed"`
}

// IsComplete reports whether all identifying fields are present
func (l *RawLog) IsComplete() bool {
	return l.BlockNumber != nil && l.TransactionHash != nil && l.TransactionIndex != nil && l.LogIndex != nil
}

// Topic returns topic i, or false if the log has fewer topics
func (l *RawLog) Topic(i int) (common.Hash, bool) {
	if i < 0 || i >= len(l.Topics) {
		return common.Hash{}, false
	}
	return l.Topics[i], true
}

type receipt struct {
	TransactionHash common.Hash `json:"transactionHash"`
	Logs            []RawLog    `json:"logs"`
}
