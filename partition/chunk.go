package partition

import (
	"fmt"

	"github.com/ethereum/go-ethereum/common"
)

// ChunkBlocks splits r into partitions of chunkSize blocks. Each partition is
// fetched in requests of at most innerRequestSize blocks. The last partition
// may be shorter.
func ChunkBlocks(r BlockRange, chunkSize, innerRequestSize uint64, filter Filter) ([]Partition, error) {
	if chunkSize == 0 || innerRequestSize == 0 {
		return nil, ErrInvalidChunkSize
	}
	if r.End < r.Start {
		return nil, fmt.Errorf("%w: %s", ErrInvalidRange, r)
	}

	partitions := make([]Partition, 0, r.Len()/chunkSize+1)
	for start := r.Start; start <= r.End; {
		end := chunkEnd(start, r.End, chunkSize)
		partitions = append(partitions, Partition{ //nolint:exhaustruct
			BlockRanges: splitRange(BlockRange{Start: start, End: end}, innerRequestSize),
			Filter:      filter,
		})
		if end == r.End {
			break
		}
		start = end + 1
	}
	return partitions, nil
}

func splitRange(r BlockRange, size uint64) []BlockRange {
	ranges := make([]BlockRange, 0, r.Len()/size+1)
	for start := r.Start; start <= r.End; {
		end := chunkEnd(start, r.End, size)
		ranges = append(ranges, BlockRange{Start: start, End: end})
		if end == r.End {
			break
		}
		start = end + 1
	}
	return ranges
}

// chunkEnd is the last block of the chunk starting at start, without
// overflowing near the top of the uint64 range
func chunkEnd(start, last, size uint64) uint64 {
	if last-start < size-1 {
		return last
	}
	return start + size - 1
}

// ChunkTransactions groups hashes into partitions of perPartition transactions
func ChunkTransactions(hashes []common.Hash, perPartition int, filter Filter) ([]Partition, error) {
	if perPartition <= 0 {
		return nil, ErrInvalidChunkSize
	}

	partitions := make([]Partition, 0, len(hashes)/perPartition+1)
	for i := 0; i < len(hashes); i += perPartition {
		end := min(len(hashes), i+perPartition)
		chunk := make([]common.Hash, end-i)
		copy(chunk, hashes[i:end])
		partitions = append(partitions, Partition{TransactionHashes: chunk, Filter: filter}) //nolint:exhaustruct
	}
	return partitions, nil
}
