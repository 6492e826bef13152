// Package common contains common functions and variables used by the freezer, the report tooling and the CLI
package common

import (
	"fmt"
	"net/url"
	"os"
	"runtime"
	"strconv"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/olekukonko/tablewriter"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

var Printer = message.NewPrinter(language.English)

func GetEnv(key, defaultValue string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return defaultValue
}

func GetEnvInt(key string, defaultValue int) int {
	if value, ok := os.LookupEnv(key); ok {
		val, err := strconv.Atoi(value)
		if err == nil {
			return val
		}
	}
	return defaultValue
}

func GetMemUsageHuman() string {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)
	return HumanBytes(m.Alloc)
}

// HumanBytes formats with IEC magnitudes but SI-looking units (i.e. "758 MB" for 758 MiB)
func HumanBytes(n uint64) string {
	s := humanize.IBytes(n)
	if len(s) > 3 && s[len(s)-3:len(s)-2] != " " && s[len(s)-2] == 'i' {
		s = s[:len(s)-2] + s[len(s)-1:]
	}
	return s
}

func PrettyInt(i int) string {
	return Printer.Sprintf("%d", i)
}

func PrettyInt64(i int64) string {
	return Printer.Sprintf("%d", i)
}

func IntDiffPercentFmt(a, b int) string {
	return Int64DiffPercentFmt(int64(a), int64(b))
}

func Int64DiffPercentFmt(a, b int64) string {
	if b == 0 {
		return "0.00%"
	}
	diff := float64(a) / float64(b)
	return Printer.Sprintf("%.2f%%", diff*100)
}

// FmtDuration formats a duration as "1h 8m 54s", dropping leading zero units
func FmtDuration(d time.Duration) string {
	d = d.Round(time.Second)
	h := d / time.Hour
	d -= h * time.Hour
	m := d / time.Minute
	d -= m * time.Minute
	s := d / time.Second
	switch {
	case h > 0:
		return fmt.Sprintf("%dh %dm %ds", h, m, s)
	case m > 0:
		return fmt.Sprintf("%dm %ds", m, s)
	default:
		return fmt.Sprintf("%ds", s)
	}
}

func SetupMarkdownTableWriter(table *tablewriter.Table) {
	table.SetBorders(tablewriter.Border{Left: true, Top: false, Right: true, Bottom: false})
	table.SetCenterSeparator("|")
	table.SetAutoWrapText(false)
}

// RedactURL keeps scheme and host of an endpoint URL, endpoint paths and
// query strings often carry API keys
func RedactURL(s string) string {
	u, err := url.Parse(s)
	if err != nil || u.Host == "" {
		return "<redacted>"
	}
	redacted := u.Scheme + "://" + u.Host
	if (u.Path != "" && u.Path != "/") || u.RawQuery != "" {
		redacted += "/<redacted>"
	}
	return redacted
}
