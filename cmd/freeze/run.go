package cmd_freeze //nolint:stylecheck

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/flashbots/cryo-go/api"
	"github.com/flashbots/cryo-go/common"
	"github.com/flashbots/cryo-go/datasets"
	"github.com/flashbots/cryo-go/decoder"
	"github.com/flashbots/cryo-go/freeze"
	"github.com/flashbots/cryo-go/output"
	"github.com/flashbots/cryo-go/query"
	"github.com/flashbots/cryo-go/report"
	"github.com/flashbots/cryo-go/schema"
	"github.com/flashbots/cryo-go/source"
	"github.com/urfave/cli/v2"
	"go.uber.org/zap"
)

var errPartitionsFailed = errors.New("some partitions failed")

func runFreeze(cCtx *cli.Context) error {
	var (
		debug       = cCtx.Bool("debug")
		logProd     = cCtx.Bool("log-prod")
		metricsAddr = cCtx.String("metrics-addr")
	)

	log := common.GetLogger(debug, logProd)
	defer func() { _ = log.Sync() }()

	ctx, stop := signal.NotifyContext(cCtx.Context, os.Interrupt, syscall.SIGTERM)
	defer stop()

	tStart := time.Now()
	q, err := parseQuery(cCtx)
	if err != nil {
		return err
	}

	src, err := source.Dial(ctx, source.RPCFetcherOpts{
		Log:            log,
		URL:            cCtx.String("rpc"),
		MaxRetries:     cCtx.Uint64("max-retries"),
		InitialBackoff: cCtx.Duration("initial-backoff"),
	})
	if err != nil {
		return fmt.Errorf("source.Dial: %w", err)
	}
	defer src.Close()
	log.Infow("Connected", "rpc", common.RedactURL(cCtx.String("rpc")), "chainID", src.ChainID)

	sink, err := parseSink(cCtx, src.ChainID)
	if err != nil {
		return err
	}

	env := &report.ExecutionEnv{
		TStart:     tStart,
		ReportDir:  cCtx.String("report-dir"),
		CLICommand: os.Args,
		Args:       serializeArgs(cCtx, log),
	}

	freezer, err := freeze.New(freeze.Opts{
		Log:                     log,
		Query:                   q,
		Source:                  src,
		Sink:                    sink,
		Env:                     env,
		MaxConcurrentPartitions: cCtx.Int("max-concurrent-partitions"),
	})
	if err != nil {
		return fmt.Errorf("freeze.New: %w", err)
	}

	if metricsAddr != "" {
		server := api.New(&api.HTTPServerConfig{
			ListenAddr:               metricsAddr,
			Log:                      log,
			Status:                   func() any { return freezer.Progress() },
			GracefulShutdownDuration: 5 * time.Second,
			ReadTimeout:              10 * time.Second,
			WriteTimeout:             10 * time.Second,
		})
		server.RunInBackground()
		server.SetReady(true)
		defer server.Shutdown()
	}

	log.Infow("Query parsed",
		"version", common.Version,
		"run", freezer.RunID(),
		"columns", q.Schemas[schema.Logs].Columns(),
		"prefix", sink.Prefix,
		"format", sink.Format,
	)

	summary, err := freezer.Run(ctx)
	if stats := freezer.Stats(); stats != "" {
		fmt.Println(stats)
	}
	if err != nil {
		if errors.Is(err, freeze.ErrInterrupted) {
			log.Warnw("Freeze interrupted, incomplete report kept", "error", err)
		}
		return err
	}
	if len(summary.Errored) > 0 {
		for _, e := range summary.Errored {
			log.Errorw("Partition failed", "partition", e.Partition.String(), "error", e.Err)
		}
		return cli.Exit(fmt.Errorf("%w: %d of %d", errPartitionsFailed, len(summary.Errored), summary.NAttempted()), 1)
	}
	return nil
}

// parseQuery turns the content flags into a query
func parseQuery(cCtx *cli.Context) (*query.Query, error) {
	logDecoder, err := parseDecoder(cCtx)
	if err != nil {
		return nil, err
	}

	table, err := schema.Build(datasets.Logs{}, schema.TableOpts{
		Columns:        cCtx.StringSlice("columns"),
		IncludeColumns: cCtx.StringSlice("include-columns"),
		ExcludeColumns: cCtx.StringSlice("exclude-columns"),
		Sort:           cCtx.StringSlice("sort"),
		LogDecoder:     logDecoder,
	})
	if err != nil {
		return nil, fmt.Errorf("schema.Build: %w", err)
	}

	filter, err := parseFilter(cCtx, logDecoder)
	if err != nil {
		return nil, err
	}

	partitions, err := parsePartitions(cCtx, filter)
	if err != nil {
		return nil, err
	}

	q := &query.Query{
		Datatypes:  []schema.Datatype{schema.Logs},
		Schemas:    schema.Schemas{schema.Logs: table},
		Partitions: partitions,
	}
	if err := q.Validate(); err != nil {
		return nil, fmt.Errorf("Query.Validate: %w", err)
	}
	return q, nil
}

func parseDecoder(cCtx *cli.Context) (*decoder.LogDecoder, error) {
	sig := cCtx.String("event-signature")
	abiFile := cCtx.String("event-abi")
	switch {
	case sig != "" && abiFile != "":
		return nil, errEventSourceConflict
	case sig != "":
		d, err := decoder.NewLogDecoder(sig)
		if err != nil {
			return nil, fmt.Errorf("decoder.NewLogDecoder: %w", err)
		}
		return d, nil
	case abiFile != "":
		f, err := os.Open(abiFile)
		if err != nil {
			return nil, err
		}
		defer f.Close()
		d, err := decoder.NewLogDecoderFromABI(f, cCtx.String("event-name"))
		if err != nil {
			return nil, fmt.Errorf("decoder.NewLogDecoderFromABI: %w", err)
		}
		return d, nil
	}
	return nil, nil //nolint:nilnil
}

func parseSink(cCtx *cli.Context, chainID uint64) (*output.FileOutput, error) {
	format, err := output.ParseFormat(cCtx.String("format"))
	if err != nil {
		return nil, err
	}
	prefix := cCtx.String("network-name")
	if prefix == "" {
		prefix = networkName(chainID)
	}
	return &output.FileOutput{
		OutputDir:    cCtx.String("output-dir"),
		Prefix:       prefix,
		Suffix:       cCtx.String("file-suffix"),
		Format:       format,
		Overwrite:    cCtx.Bool("overwrite"),
		RowGroupSize: cCtx.Int64("row-group-size"),
		Compression:  cCtx.String("compression"),
	}, nil
}

// serializeArgs records the flags set on the command line or environment as a json object
func serializeArgs(cCtx *cli.Context, log *zap.SugaredLogger) *string {
	args := make(map[string]interface{})
	for _, f := range cliFlags {
		name := f.Names()[0]
		if !cCtx.IsSet(name) {
			continue
		}
		switch f.(type) {
		case *cli.StringSliceFlag:
			args[name] = cCtx.StringSlice(name)
		case *cli.BoolFlag:
			args[name] = cCtx.Bool(name)
		case *cli.IntFlag:
			args[name] = cCtx.Int(name)
		case *cli.Int64Flag:
			args[name] = cCtx.Int64(name)
		case *cli.Uint64Flag:
			args[name] = cCtx.Uint64(name)
		case *cli.DurationFlag:
			args[name] = cCtx.Duration(name).String()
		default:
			args[name] = cCtx.String(name)
		}
	}
	if rpcURL, ok := args["rpc"].(string); ok {
		args["rpc"] = common.RedactURL(rpcURL)
	}

	b, err := json.Marshal(args)
	if err != nil {
		log.Warnw("failed to serialize args", "error", err)
		return nil
	}
	s := string(b)
	return &s
}
