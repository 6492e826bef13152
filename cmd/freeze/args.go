package cmd_freeze //nolint:stylecheck

import (
	"errors"
	"fmt"
	"strconv"

	"github.com/ethereum/go-ethereum/common"
	"github.com/flashbots/cryo-go/decoder"
	"github.com/flashbots/cryo-go/partition"
	"github.com/urfave/cli/v2"
)

var (
	errEventSourceConflict = errors.New("use either --event-signature or --event-abi")
	errNoPartitionSource   = errors.New("one of --blocks or --txs is required")
	errPartitionConflict   = errors.New("use either --blocks or --txs")
)

var topicFlags = [4]string{"topic0", "topic1", "topic2", "topic3"}

var networkNames = map[uint64]string{
	1:        "ethereum",
	5:        "goerli",
	10:       "optimism",
	56:       "bnb",
	100:      "gnosis",
	137:      "polygon",
	8453:     "base",
	42161:    "arbitrum",
	17000:    "holesky",
	11155111: "sepolia",
}

// networkName is the default file prefix of a chain
func networkName(chainID uint64) string {
	if name, ok := networkNames[chainID]; ok {
		return name
	}
	return "network_" + strconv.FormatUint(chainID, 10)
}

// parseFilter builds the log filter. Without an explicit topic0, a decoded
// event restricts topic0 to its event id.
func parseFilter(cCtx *cli.Context, logDecoder *decoder.LogDecoder) (partition.Filter, error) {
	var filter partition.Filter

	addresses, err := partition.ParseAddresses(cCtx.StringSlice("address"))
	if err != nil {
		return filter, err
	}
	filter.Addresses = addresses

	for i, name := range topicFlags {
		topics, err := partition.ParseHashes(cCtx.StringSlice(name))
		if err != nil {
			return filter, fmt.Errorf("--%s: %w", name, err)
		}
		filter.Topics[i] = topics
	}

	if len(filter.Topics[0]) == 0 && logDecoder != nil {
		filter.Topics[0] = []common.Hash{logDecoder.EventID()}
	}
	return filter, nil
}

func parsePartitions(cCtx *cli.Context, filter partition.Filter) ([]partition.Partition, error) {
	blocks := cCtx.StringSlice("blocks")
	txs := cCtx.StringSlice("txs")

	switch {
	case len(blocks) > 0 && len(txs) > 0:
		return nil, errPartitionConflict
	case len(txs) > 0:
		hashes, err := partition.ParseHashes(txs)
		if err != nil {
			return nil, err
		}
		return partition.ChunkTransactions(hashes, cCtx.Int("txs-per-partition"), filter)
	case len(blocks) > 0:
		var partitions []partition.Partition
		for _, s := range blocks {
			r, err := partition.ParseBlockRange(s)
			if err != nil {
				return nil, err
			}
			chunks, err := partition.ChunkBlocks(r, cCtx.Uint64("chunk-size"), cCtx.Uint64("inner-request-size"), filter)
			if err != nil {
				return nil, err
			}
			partitions = append(partitions, chunks...)
		}
		return partitions, nil
	}
	return nil, errNoPartitionSource
}
