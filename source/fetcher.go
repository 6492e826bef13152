package source

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/rpc"
	"github.com/flashbots/cryo-go/metrics"
	"go.uber.org/zap"
)

var (
	ErrNoRPCURL         = errors.New("rpc url is required")
	ErrReceiptNotFound  = errors.New("transaction receipt not found")
	errBlockHashAndNums = errors.New("cannot specify both BlockHash and FromBlock/ToBlock")
)

// Fetcher is the transport used by the extraction strategies
type Fetcher interface {
	// GetLogs returns all logs matching the filter (eth_getLogs)
	GetLogs(ctx context.Context, q ethereum.FilterQuery) ([]RawLog, error)
	// GetTransactionLogs returns the logs emitted by one transaction (from its receipt)
	GetTransactionLogs(ctx context.Context, txHash common.Hash) ([]RawLog, error)
}

// Source bundles the fetcher with chain metadata needed by the datasets
type Source struct {
	Fetcher Fetcher
	ChainID uint64
}

type RPCFetcherOpts struct {
	Log            *zap.SugaredLogger
	URL            string
	MaxRetries     uint64
	InitialBackoff time.Duration
}

// RPCFetcher implements Fetcher over a go-ethereum rpc.Client. Transient
// failures are retried with exponential backoff.
type RPCFetcher struct {
	log  *zap.SugaredLogger
	opts RPCFetcherOpts

	client *rpc.Client
}

func NewRPCFetcher(ctx context.Context, opts RPCFetcherOpts) (*RPCFetcher, error) {
	if opts.URL == "" {
		return nil, ErrNoRPCURL
	}
	client, err := rpc.DialContext(ctx, opts.URL)
	if err != nil {
		return nil, fmt.Errorf("rpc.DialContext: %w", err)
	}
	return NewRPCFetcherFromClient(opts, client), nil
}

func NewRPCFetcherFromClient(opts RPCFetcherOpts, client *rpc.Client) *RPCFetcher {
	if opts.InitialBackoff == 0 {
		opts.InitialBackoff = 500 * time.Millisecond
	}
	return &RPCFetcher{
		log:    opts.Log,
		opts:   opts,
		client: client,
	}
}

// Dial connects to the endpoint and resolves the chain id
func Dial(ctx context.Context, opts RPCFetcherOpts) (*Source, error) {
	f, err := NewRPCFetcher(ctx, opts)
	if err != nil {
		return nil, err
	}
	chainID, err := f.ChainID(ctx)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("ChainID: %w", err)
	}
	return &Source{Fetcher: f, ChainID: chainID}, nil
}

// Close releases the fetcher connection, if it holds one
func (s *Source) Close() {
	if c, ok := s.Fetcher.(interface{ Close() }); ok {
		c.Close()
	}
}

func (f *RPCFetcher) Close() {
	f.client.Close()
}

func (f *RPCFetcher) ChainID(ctx context.Context) (uint64, error) {
	var result hexutil.Uint64
	if err := f.call(ctx, &result, "eth_chainId"); err != nil {
		return 0, err
	}
	return uint64(result), nil
}

func (f *RPCFetcher) GetLogs(ctx context.Context, q ethereum.FilterQuery) ([]RawLog, error) {
	arg, err := toFilterArg(q)
	if err != nil {
		return nil, err
	}
	var logs []RawLog
	if err = f.call(ctx, &logs, "eth_getLogs", arg); err != nil {
		return nil, err
	}
	return logs, nil
}

func (f *RPCFetcher) GetTransactionLogs(ctx context.Context, txHash common.Hash) ([]RawLog, error) {
	var r *receipt
	if err := f.call(ctx, &r, "eth_getTransactionReceipt", txHash); err != nil {
		return nil, err
	}
	if r == nil {
		return nil, fmt.Errorf("%w: %s", ErrReceiptNotFound, txHash.Hex())
	}
	return r.Logs, nil
}

func (f *RPCFetcher) call(ctx context.Context, result interface{}, method string, args ...interface{}) error {
	eb := backoff.NewExponentialBackOff()
	eb.InitialInterval = f.opts.InitialBackoff
	b := backoff.WithContext(backoff.WithMaxRetries(eb, f.opts.MaxRetries), ctx)

	attempt := 0
	return backoff.Retry(func() error {
		attempt++
		metrics.IncRPCRequest(method)
		err := f.client.CallContext(ctx, result, method, args...)
		if err == nil {
			return nil
		}

		metrics.IncRPCError(method)
		if !isRetryable(ctx, err) {
			return backoff.Permanent(err)
		}
		if f.log != nil {
			f.log.Debugw("rpc call failed, retrying", "method", method, "attempt", attempt, "error", err)
		}
		return err
	}, b)
}

// isRetryable treats transport failures, rate limiting and 5xx as transient.
// JSON-RPC error responses are final, except the "limit exceeded" class.
func isRetryable(ctx context.Context, err error) bool {
	if ctx.Err() != nil {
		return false
	}

	var httpErr rpc.HTTPError
	if errors.As(err, &httpErr) {
		return httpErr.StatusCode == http.StatusTooManyRequests || httpErr.StatusCode >= 500
	}

	var rpcErr rpc.Error
	if errors.As(err, &rpcErr) {
		return rpcErr.ErrorCode() == -32005
	}
	return true
}

func toFilterArg(q ethereum.FilterQuery) (interface{}, error) {
	arg := map[string]interface{}{
		"topics": q.Topics,
	}
	if len(q.Addresses) > 0 {
		arg["address"] = q.Addresses
	}
	if q.BlockHash != nil {
		if q.FromBlock != nil || q.ToBlock != nil {
			return nil, errBlockHashAndNums
		}
		arg["blockHash"] = *q.BlockHash
		return arg, nil
	}
	if q.FromBlock == nil {
		arg["fromBlock"] = "0x0"
	} else {
		arg["fromBlock"] = toBlockNumArg(q.FromBlock)
	}
	arg["toBlock"] = toBlockNumArg(q.ToBlock)
	return arg, nil
}

func toBlockNumArg(number *big.Int) string {
	if number == nil {
		return "latest"
	}
	return hexutil.EncodeBig(number)
}
