// Package partition describes units of extraction work and how they are
// split into RPC requests
package partition

import (
	"errors"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
)

var (
	ErrEmptyPartition   = errors.New("partition has neither block ranges nor transactions")
	ErrMixedPartition   = errors.New("partition has both block ranges and transactions")
	ErrInvalidRange     = errors.New("invalid block range")
	ErrInvalidChunkSize = errors.New("chunk size must be positive")
)

// Kind selects the extraction strategy of a partition
type Kind int

const (
	ByBlock Kind = iota
	ByTransaction
)

func (k Kind) String() string {
	if k == ByTransaction {
		return "transaction"
	}
	return "block"
}

// BlockRange is an inclusive range of block numbers
type BlockRange struct {
	Start uint64
	End   uint64
}

func (r BlockRange) Len() uint64 {
	if r.End < r.Start {
		return 0
	}
	return r.End - r.Start + 1
}

func (r BlockRange) String() string {
	return fmt.Sprintf("%d:%d", r.Start, r.End)
}

// Filter restricts the logs of a partition by emitter and topics. An empty
// slot matches anything.
type Filter struct {
	Addresses []common.Address
	Topics    [4][]common.Hash
}

// Partition is one unit of work: either a list of block ranges (one request
// each) or a list of transaction hashes (one receipt each).
type Partition struct {
	BlockRanges       []BlockRange
	TransactionHashes []common.Hash
	Filter
}

func (p *Partition) Kind() Kind {
	if len(p.TransactionHashes) > 0 {
		return ByTransaction
	}
	return ByBlock
}

func (p *Partition) Validate() error {
	switch {
	case len(p.BlockRanges) == 0 && len(p.TransactionHashes) == 0:
		return ErrEmptyPartition
	case len(p.BlockRanges) > 0 && len(p.TransactionHashes) > 0:
		return ErrMixedPartition
	}
	for _, r := range p.BlockRanges {
		if r.End < r.Start {
			return fmt.Errorf("%w: %s", ErrInvalidRange, r)
		}
	}
	return nil
}

// Label names the partition in file names and logs
func (p *Partition) Label() string {
	if p.Kind() == ByTransaction {
		first := p.TransactionHashes[0]
		if len(p.TransactionHashes) == 1 {
			return "tx_" + first.Hex()
		}
		last := p.TransactionHashes[len(p.TransactionHashes)-1]
		return fmt.Sprintf("txs_%s_to_%s", first.Hex()[:10], last.Hex()[:10])
	}
	if len(p.BlockRanges) == 0 {
		return "empty"
	}
	return fmt.Sprintf("%08d_to_%08d", p.BlockRanges[0].Start, p.BlockRanges[len(p.BlockRanges)-1].End)
}

func (p *Partition) String() string {
	return p.Label()
}

// Requests expands the partition into one Params per RPC request
func (p *Partition) Requests() []Params {
	if p.Kind() == ByTransaction {
		params := make([]Params, len(p.TransactionHashes))
		for i := range p.TransactionHashes {
			h := p.TransactionHashes[i]
			params[i] = Params{TransactionHash: &h, Filter: p.Filter} //nolint:exhaustruct
		}
		return params
	}

	params := make([]Params, len(p.BlockRanges))
	for i := range p.BlockRanges {
		r := p.BlockRanges[i]
		params[i] = Params{BlockRange: &r, Filter: p.Filter} //nolint:exhaustruct
	}
	return params
}

// Params are the arguments of a single request. Exactly one of BlockRange
// and TransactionHash is set.
type Params struct {
	BlockRange      *BlockRange
	TransactionHash *common.Hash
	Filter
}

// FilterQuery builds the eth_getLogs filter for a block range request
func (p Params) FilterQuery() ethereum.FilterQuery {
	q := ethereum.FilterQuery{ //nolint:exhaustruct
		Addresses: p.Addresses,
	}
	if p.BlockRange != nil {
		q.FromBlock = new(big.Int).SetUint64(p.BlockRange.Start)
		q.ToBlock = new(big.Int).SetUint64(p.BlockRange.End)
	}

	// trailing wildcards are dropped, inner ones stay as nil
	last := -1
	for i, t := range p.Topics {
		if len(t) > 0 {
			last = i
		}
	}
	if last >= 0 {
		q.Topics = make([][]common.Hash, last+1)
		for i := 0; i <= last; i++ {
			q.Topics[i] = p.Topics[i]
		}
	}
	return q
}

// Matches reports whether a log with the given emitter and topics passes the
// filter. Receipts are not filtered server side, so by-transaction requests
// use this.
func (f Filter) Matches(address common.Address, topics []common.Hash) bool {
	if len(f.Addresses) > 0 && !containsAddress(f.Addresses, address) {
		return false
	}
	for i, want := range f.Topics {
		if len(want) == 0 {
			continue
		}
		if i >= len(topics) || !containsHash(want, topics[i]) {
			return false
		}
	}
	return true
}

func (f Filter) IsEmpty() bool {
	if len(f.Addresses) > 0 {
		return false
	}
	for _, t := range f.Topics {
		if len(t) > 0 {
			return false
		}
	}
	return true
}

func containsAddress(list []common.Address, a common.Address) bool {
	for _, x := range list {
		if x == a {
			return true
		}
	}
	return false
}

func containsHash(list []common.Hash, h common.Hash) bool {
	for _, x := range list {
		if x == h {
			return true
		}
	}
	return false
}
