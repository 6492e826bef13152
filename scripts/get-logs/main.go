// Prints the logs of one transaction, decoded if an event signature is given.
//
//	go run ./scripts/get-logs <tx hash> ["Transfer(address indexed from, address indexed to, uint256 value)"]
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/ethereum/go-ethereum/common"
	cryocommon "github.com/flashbots/cryo-go/common"
	"github.com/flashbots/cryo-go/decoder"
	"github.com/flashbots/cryo-go/source"
)

func main() {
	log := cryocommon.GetLogger(true, false)
	if len(os.Args) < 2 {
		log.Fatalf("Usage: %s <tx hash> [event signature]", os.Args[0])
	}

	ctx := context.Background()
	fetcher, err := source.NewRPCFetcher(ctx, source.RPCFetcherOpts{ //nolint:exhaustruct
		Log: log,
		URL: cryocommon.GetEnv("ETH_RPC_URL", "http://localhost:8545"),
	})
	if err != nil {
		log.Fatal(err)
	}
	defer fetcher.Close()

	logs, err := fetcher.GetTransactionLogs(ctx, common.HexToHash(os.Args[1]))
	if err != nil {
		log.Fatal(err)
	}

	var d *decoder.LogDecoder
	if len(os.Args) > 2 {
		d, err = decoder.NewLogDecoder(os.Args[2])
		if err != nil {
			log.Fatal(err)
		}
	}

	for i := range logs {
		l := &logs[i]
		fmt.Printf("log %d address=%s topics=%v data=0x%x\n", i, l.Address.Hex(), l.Topics, l.Data)
		if d == nil {
			continue
		}
		values, err := d.DecodeLog(l)
		if err != nil {
			fmt.Printf("  not decoded: %s\n", err)
			continue
		}
		for j, name := range d.FieldNames() {
			fmt.Printf("  %s = %s\n", name, values[j])
		}
	}
}
