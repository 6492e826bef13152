package partition

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/ethereum/go-ethereum/common"
)

var (
	ErrInvalidBlockNumber = errors.New("invalid block number")
	ErrInvalidHash        = errors.New("invalid hash")
	ErrInvalidAddress     = errors.New("invalid address")
)

// ParseBlockRange parses "N", "start:end" (end exclusive) or "start:+count".
// Numbers accept a K, M or B suffix, e.g. "16M:+1000".
func ParseBlockRange(s string) (BlockRange, error) {
	s = strings.TrimSpace(s)
	before, after, found := strings.Cut(s, ":")
	if !found {
		n, err := parseBlockNumber(s)
		if err != nil {
			return BlockRange{}, err
		}
		return BlockRange{Start: n, End: n}, nil
	}

	start, err := parseBlockNumber(before)
	if err != nil {
		return BlockRange{}, err
	}

	if count, ok := strings.CutPrefix(after, "+"); ok {
		n, err := parseBlockNumber(count)
		if err != nil {
			return BlockRange{}, err
		}
		if n == 0 {
			return BlockRange{}, fmt.Errorf("%w: %q is empty", ErrInvalidRange, s)
		}
		return BlockRange{Start: start, End: start + n - 1}, nil
	}

	end, err := parseBlockNumber(after)
	if err != nil {
		return BlockRange{}, err
	}
	if end <= start {
		return BlockRange{}, fmt.Errorf("%w: %q is empty", ErrInvalidRange, s)
	}
	return BlockRange{Start: start, End: end - 1}, nil
}

func parseBlockNumber(s string) (uint64, error) {
	s = strings.TrimSpace(s)
	s = strings.ReplaceAll(s, "_", "")
	mult := uint64(1)
	if s != "" {
		switch s[len(s)-1] {
		case 'k', 'K':
			mult = 1_000
		case 'm', 'M':
			mult = 1_000_000
		case 'b', 'B':
			mult = 1_000_000_000
		}
		if mult > 1 {
			s = s[:len(s)-1]
		}
	}

	if mult == 1 {
		n, err := strconv.ParseUint(s, 10, 64)
		if err != nil {
			return 0, fmt.Errorf("%w: %q", ErrInvalidBlockNumber, s)
		}
		return n, nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || f < 0 {
		return 0, fmt.Errorf("%w: %q", ErrInvalidBlockNumber, s)
	}
	return uint64(f * float64(mult)), nil
}

// ParseHashes parses 0x-prefixed 32 byte hex hashes
func ParseHashes(values []string) ([]common.Hash, error) {
	hashes := make([]common.Hash, 0, len(values))
	for _, v := range values {
		v = strings.TrimSpace(v)
		if len(v) != 66 || !strings.HasPrefix(v, "0x") || !isHex(v[2:]) {
			return nil, fmt.Errorf("%w: %q", ErrInvalidHash, v)
		}
		hashes = append(hashes, common.HexToHash(v))
	}
	return hashes, nil
}

func ParseAddresses(values []string) ([]common.Address, error) {
	addresses := make([]common.Address, 0, len(values))
	for _, v := range values {
		v = strings.TrimSpace(v)
		if !common.IsHexAddress(v) {
			return nil, fmt.Errorf("%w: %q", ErrInvalidAddress, v)
		}
		addresses = append(addresses, common.HexToAddress(v))
	}
	return addresses, nil
}

func isHex(s string) bool {
	for _, c := range s {
		if !(c >= '0' && c <= '9' || c >= 'a' && c <= 'f' || c >= 'A' && c <= 'F') {
			return false
		}
	}
	return true
}
