// Extracts event logs over JSON-RPC into parquet/csv/json files, one file per partition, and writes a run report
package cmd_freeze //nolint:stylecheck

import (
	"time"

	"github.com/flashbots/cryo-go/common"
	"github.com/urfave/cli/v2"
)

const (
	categoryRPC     = "RPC"
	categoryContent = "Content"
	categoryOutput  = "Output"
	categoryProcess = "Process"
)

var cliFlags = []cli.Flag{
	// RPC
	&cli.StringFlag{
		Name:     "rpc",
		Aliases:  []string{"r"},
		EnvVars:  []string{"ETH_RPC_URL"},
		Usage:    "JSON-RPC endpoint",
		Required: true,
		Category: categoryRPC,
	},
	&cli.Uint64Flag{
		Name:     "max-retries",
		EnvVars:  []string{"MAX_RETRIES"},
		Value:    uint64(common.GetEnvInt("MAX_RETRIES", 5)),
		Usage:    "retries of a failed RPC request",
		Category: categoryRPC,
	},
	&cli.DurationFlag{
		Name:     "initial-backoff",
		EnvVars:  []string{"INITIAL_BACKOFF"},
		Value:    500 * time.Millisecond,
		Usage:    "delay before the first retry, doubled on every retry",
		Category: categoryRPC,
	},

	// Content
	&cli.StringSliceFlag{
		Name:     "blocks",
		Aliases:  []string{"b"},
		Usage:    "block ranges, e.g. 16M:17M (end exclusive), 16M:+1000 or 17000000",
		Category: categoryContent,
	},
	&cli.StringSliceFlag{
		Name:     "txs",
		Aliases:  []string{"t"},
		Usage:    "transaction hashes, collected from their receipts",
		Category: categoryContent,
	},
	&cli.Uint64Flag{
		Name:     "chunk-size",
		Aliases:  []string{"c"},
		Value:    1000,
		Usage:    "blocks per partition",
		Category: categoryContent,
	},
	&cli.Uint64Flag{
		Name:     "inner-request-size",
		Value:    1,
		Usage:    "blocks per eth_getLogs request",
		Category: categoryContent,
	},
	&cli.IntFlag{
		Name:     "txs-per-partition",
		Value:    100,
		Usage:    "transactions per partition",
		Category: categoryContent,
	},
	&cli.StringSliceFlag{
		Name:     "address",
		Aliases:  []string{"contract"},
		Usage:    "only logs emitted by these addresses",
		Category: categoryContent,
	},
	&cli.StringSliceFlag{
		Name:     "topic0",
		Usage:    "topic0 filter (defaults to the event id when an event is given)",
		Category: categoryContent,
	},
	&cli.StringSliceFlag{
		Name:     "topic1",
		Usage:    "topic1 filter",
		Category: categoryContent,
	},
	&cli.StringSliceFlag{
		Name:     "topic2",
		Usage:    "topic2 filter",
		Category: categoryContent,
	},
	&cli.StringSliceFlag{
		Name:     "topic3",
		Usage:    "topic3 filter",
		Category: categoryContent,
	},
	&cli.StringFlag{
		Name:     "event-signature",
		Aliases:  []string{"event"},
		Usage:    "decode logs, e.g. \"Transfer(address indexed from, address indexed to, uint256 value)\"",
		Category: categoryContent,
	},
	&cli.StringFlag{
		Name:     "event-abi",
		Usage:    "decode logs with an event from this JSON ABI file",
		Category: categoryContent,
	},
	&cli.StringFlag{
		Name:     "event-name",
		Usage:    "event of --event-abi (optional if the ABI has a single event)",
		Category: categoryContent,
	},
	&cli.StringSliceFlag{
		Name:     "columns",
		Usage:    "columns to collect instead of the defaults (\"all\" for every column)",
		Category: categoryContent,
	},
	&cli.StringSliceFlag{
		Name:     "include-columns",
		Usage:    "columns added to the defaults",
		Category: categoryContent,
	},
	&cli.StringSliceFlag{
		Name:     "exclude-columns",
		Usage:    "columns removed from the defaults",
		Category: categoryContent,
	},
	&cli.StringSliceFlag{
		Name:     "sort",
		Usage:    "sort columns (\"none\" keeps RPC order)",
		Category: categoryContent,
	},

	// Output
	&cli.StringFlag{
		Name:     "output-dir",
		Aliases:  []string{"o"},
		EnvVars:  []string{"OUTPUT_DIR"},
		Value:    ".",
		Usage:    "output directory",
		Category: categoryOutput,
	},
	&cli.StringFlag{
		Name:     "network-name",
		Usage:    "file name prefix (default: derived from the chain id)",
		Category: categoryOutput,
	},
	&cli.StringFlag{
		Name:     "file-suffix",
		Usage:    "file name suffix",
		Category: categoryOutput,
	},
	&cli.StringFlag{
		Name:     "format",
		Value:    "parquet",
		Usage:    "parquet, csv or json",
		Category: categoryOutput,
	},
	&cli.StringFlag{
		Name:     "compression",
		Value:    "gzip",
		Usage:    "parquet compression: gzip, snappy, zstd or none",
		Category: categoryOutput,
	},
	&cli.Int64Flag{
		Name:     "row-group-size",
		Usage:    "parquet row group size in bytes (default: 128M)",
		Category: categoryOutput,
	},
	&cli.BoolFlag{
		Name:     "overwrite",
		Usage:    "re-collect partitions whose files already exist",
		Category: categoryOutput,
	},
	&cli.StringFlag{
		Name:     "report-dir",
		EnvVars:  []string{"REPORT_DIR"},
		Usage:    "run report directory (default: <output-dir>/.cryo/reports)",
		Category: categoryOutput,
	},

	// Process
	&cli.IntFlag{
		Name:     "max-concurrent-partitions",
		Aliases:  []string{"workers"},
		EnvVars:  []string{"MAX_CONCURRENT_PARTITIONS"},
		Value:    common.GetEnvInt("MAX_CONCURRENT_PARTITIONS", 4),
		Usage:    "partitions collected in parallel",
		Category: categoryProcess,
	},
	&cli.StringFlag{
		Name:     "metrics-addr",
		EnvVars:  []string{"METRICS_ADDR"},
		Usage:    "serve /metrics, /status and probes on this address (host:port)",
		Category: categoryProcess,
	},
	&cli.BoolFlag{
		Name:     "debug",
		EnvVars:  []string{"DEBUG"},
		Usage:    "enable debug logging",
		Category: categoryProcess,
	},
	&cli.BoolFlag{
		Name:     "log-prod",
		EnvVars:  []string{"LOG_PROD"},
		Usage:    "production logging (json)",
		Category: categoryProcess,
	},
}

var Command = cli.Command{
	Name:    "logs",
	Aliases: []string{"events"},
	Usage:   "collect event logs",
	Flags:   cliFlags,
	Action:  runFreeze,
}
