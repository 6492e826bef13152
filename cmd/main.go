package main

import (
	"log"
	"os"

	cmd_freeze "github.com/flashbots/cryo-go/cmd/freeze"
	cmd_report "github.com/flashbots/cryo-go/cmd/report"
	"github.com/flashbots/cryo-go/common"
	"github.com/urfave/cli/v2"
)

func main() {
	app := &cli.App{
		Name:    "cryo",
		Usage:   "extract chain data into parquet, csv and json files",
		Version: common.Version,
		Commands: []*cli.Command{
			&cmd_freeze.Command,
			&cmd_report.Command,
		},
		HideVersion: false,
	}

	if err := app.Run(os.Args); err != nil {
		log.Fatal(err)
	}
}
