// Lists the run reports of an output directory, or prints the details of one report
package cmd_report //nolint:stylecheck

import (
	"bytes"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/flashbots/cryo-go/common"
	"github.com/flashbots/cryo-go/report"
	"github.com/olekukonko/tablewriter"
	"github.com/urfave/cli/v2"
)

var cliFlags = []cli.Flag{
	&cli.StringFlag{
		Name:    "output-dir",
		Aliases: []string{"o"},
		EnvVars: []string{"OUTPUT_DIR"},
		Value:   ".",
		Usage:   "output directory of the runs",
	},
	&cli.StringFlag{
		Name:    "report-dir",
		EnvVars: []string{"REPORT_DIR"},
		Usage:   "report directory (default: <output-dir>/.cryo/reports)",
	},
	&cli.BoolFlag{
		Name:  "paths",
		Usage: "print every completed and errored path of a report",
	},
}

var Command = cli.Command{
	Name:      "report",
	Usage:     "inspect run reports",
	ArgsUsage: "[report.json]",
	Flags:     cliFlags,
	Action:    runReport,
}

func runReport(cCtx *cli.Context) error {
	if cCtx.NArg() > 0 {
		path := cCtx.Args().First()
		r, err := report.LoadReport(path)
		if err != nil {
			return err
		}
		fmt.Print(renderReport(path, r, cCtx.Bool("paths")))
		return nil
	}

	dir := cCtx.String("report-dir")
	if dir == "" {
		dir = filepath.Join(cCtx.String("output-dir"), report.DefaultReportDir)
	}
	out, err := renderReportList(dir)
	if err != nil {
		return err
	}
	fmt.Print(out)
	return nil
}

func reportStatus(path string) string {
	if report.IsIncomplete(path) {
		return "incomplete"
	}
	return "complete"
}

// renderReportList renders one table row per report of dir. Unreadable
// reports are listed with their error.
func renderReportList(dir string) (string, error) {
	files, err := report.ListReports(dir)
	if err != nil {
		return "", err
	}
	if len(files) == 0 {
		return fmt.Sprintf("no reports in %s\n", dir), nil
	}

	var buff bytes.Buffer
	table := tablewriter.NewWriter(&buff)
	common.SetupMarkdownTableWriter(table)
	table.SetHeader([]string{"Report", "Status", "Version", "Completed", "Errored", "Skipped"})
	for _, fn := range files {
		r, err := report.LoadReport(fn)
		if err != nil {
			table.Append([]string{filepath.Base(fn), "unreadable", err.Error(), "", "", ""})
			continue
		}
		row := []string{filepath.Base(fn), reportStatus(fn), r.CryoVersion, "-", "-", "-"}
		if r.Results != nil {
			row[3] = common.PrettyInt(len(r.Results.CompletedPaths))
			row[4] = common.PrettyInt(len(r.Results.ErroredPaths))
			row[5] = common.Printer.Sprintf("%d", r.Results.NSkipped)
		}
		table.Append(row)
	}
	table.Render()
	return buff.String(), nil
}

func renderReport(path string, r *report.Report, withPaths bool) string {
	out := fmt.Sprintf("%s (%s)\n\n", path, reportStatus(path))

	var buff bytes.Buffer
	table := tablewriter.NewWriter(&buff)
	common.SetupMarkdownTableWriter(table)
	table.SetHeader([]string{"", ""})
	table.Append([]string{"version", r.CryoVersion})
	table.Append([]string{"command", strings.Join(r.CLICommand, " ")})
	if r.Args != nil {
		table.Append([]string{"args", *r.Args})
	}
	if r.Results == nil {
		table.Append([]string{"results", "run did not finish"})
	} else {
		total := int64(len(r.Results.CompletedPaths) + len(r.Results.ErroredPaths))
		table.Append([]string{"completed", common.PrettyInt(len(r.Results.CompletedPaths)) + " (" + common.Int64DiffPercentFmt(int64(len(r.Results.CompletedPaths)), total) + ")"})
		table.Append([]string{"errored", common.PrettyInt(len(r.Results.ErroredPaths)) + " (" + common.Int64DiffPercentFmt(int64(len(r.Results.ErroredPaths)), total) + ")"})
		table.Append([]string{"skipped", common.Printer.Sprintf("%d", r.Results.NSkipped)})
	}
	table.Render()
	out += buff.String()

	if withPaths && r.Results != nil {
		for _, p := range r.Results.CompletedPaths {
			out += "completed " + p + "\n"
		}
		for _, p := range r.Results.ErroredPaths {
			out += "errored   " + p + "\n"
		}
	}
	return out
}
