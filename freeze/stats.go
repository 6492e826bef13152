package freeze

import (
	"bytes"
	"fmt"

	"github.com/flashbots/cryo-go/common"
	"github.com/olekukonko/tablewriter"
)

// Stats renders the outcome of the last Run as markdown tables
func (f *Freezer) Stats() string {
	s := f.summary
	if s == nil {
		return ""
	}

	out := fmt.Sprintln("")
	out += fmt.Sprintln("------------")
	out += fmt.Sprintln("Freeze Stats")
	out += fmt.Sprintln("------------")
	out += fmt.Sprintln("")

	total := int64(len(f.opts.Query.Partitions))
	var buff bytes.Buffer
	table := tablewriter.NewWriter(&buff)
	common.SetupMarkdownTableWriter(table)
	table.SetHeader([]string{"Partitions", "Count", "Share"})
	table.Append([]string{"completed", common.PrettyInt(len(s.Completed)), common.Int64DiffPercentFmt(int64(len(s.Completed)), total)})
	table.Append([]string{"errored", common.PrettyInt(len(s.Errored)), common.Int64DiffPercentFmt(int64(len(s.Errored)), total)})
	table.Append([]string{"skipped", common.PrettyInt(len(s.Skipped)), common.Int64DiffPercentFmt(int64(len(s.Skipped)), total)})
	table.Append([]string{"total", common.PrettyInt64(total), ""})
	table.Render()
	out += buff.String()

	out += fmt.Sprintln("")
	out += common.Printer.Sprintf("%d rows, %s written in %s. \n", s.NRows, common.HumanBytes(uint64(s.BytesWritten)), common.FmtDuration(f.duration))

	if f.durations.TotalCount() == 0 {
		return out
	}

	out += fmt.Sprintln("")
	buff = bytes.Buffer{}
	table = tablewriter.NewWriter(&buff)
	common.SetupMarkdownTableWriter(table)
	table.SetAlignment(tablewriter.ALIGN_RIGHT)
	table.SetHeader([]string{"", "partition duration"})
	table.Append([]string{"count", common.Printer.Sprintf("%d", f.durations.TotalCount())})
	table.Append([]string{"median", common.Printer.Sprintf("%d ms", f.durations.ValueAtQuantile(50.0))})
	table.Append([]string{"p90", common.Printer.Sprintf("%d ms", f.durations.ValueAtQuantile(90.0))})
	table.Append([]string{"p99", common.Printer.Sprintf("%d ms", f.durations.ValueAtQuantile(99.0))})
	table.Append([]string{"max", common.Printer.Sprintf("%d ms", f.durations.Max())})
	table.Render()
	out += buff.String()
	return out
}
