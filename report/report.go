package report

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/flashbots/cryo-go/common"
	"github.com/flashbots/cryo-go/output"
	"github.com/flashbots/cryo-go/query"
)

var (
	ErrCreateReportDir  = errors.New("could not create report dir")
	ErrSerializeReport  = errors.New("could not serialize report")
	ErrCreateReportFile = errors.New("could not create report file")
	ErrWriteReport      = errors.New("could not write report data")
	ErrReadReport       = errors.New("could not read report")
)

const (
	// DefaultReportDir is relative to the output directory
	DefaultReportDir = ".cryo/reports"

	incompletePrefix = "incomplete_"
	timestampLayout  = "2006-01-02_15-04-05"
)

// ExecutionEnv is fixed when a job starts
type ExecutionEnv struct {
	TStart time.Time
	// ReportDir overrides <output_dir>/.cryo/reports
	ReportDir string
	// CLICommand is the invocation, nil if unknown
	CLICommand []string
	// Args is the serialized argument set, nil if unknown
	Args *string
}

// Report is the persisted json document
type Report struct {
	CryoVersion string             `json:"cryo_version"`
	CLICommand  []string           `json:"cli_command"`
	Results     *SerializedSummary `json:"results"`
	Args        *string            `json:"args"`
}

type SerializedSummary struct {
	CompletedPaths []string `json:"completed_paths"`
	ErroredPaths   []string `json:"errored_paths"`
	NSkipped       uint64   `json:"n_skipped"`
}

// Version is <version>__<git description or "unknown">
func Version() string {
	desc := common.GitDescription
	if desc == "" {
		desc = "unknown"
	}
	return common.Version + "__" + desc
}

// GetReportPath creates the report dir and returns the report file path.
// Reports of runs that did not finish get the incomplete_ prefix.
func GetReportPath(env *ExecutionEnv, sink *output.FileOutput, isComplete bool) (string, error) {
	dir := env.ReportDir
	if dir == "" {
		dir = filepath.Join(sink.OutputDir, DefaultReportDir)
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("%w: %w", ErrCreateReportDir, err)
	}

	filename := env.TStart.Local().Format(timestampLayout) + ".json"
	if !isComplete {
		filename = incompletePrefix + filename
	}
	return filepath.Join(dir, filename), nil
}

// WriteReport writes the report of a job. A nil summary marks the job as
// not finished and the report as incomplete.
func WriteReport(env *ExecutionEnv, q *query.Query, sink *output.FileOutput, summary *FreezeSummary) (string, error) {
	report := Report{
		CryoVersion: Version(),
		CLICommand:  env.CLICommand,
		Args:        env.Args,
		Results:     nil,
	}
	if summary != nil {
		report.Results = serializeSummary(summary, q, sink)
	}

	data, err := json.Marshal(report)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrSerializeReport, err)
	}

	path, err := GetReportPath(env, sink, summary != nil)
	if err != nil {
		return "", err
	}

	err = common.WriteAtomic(path, func(f *os.File) error {
		if _, err := f.Write(data); err != nil {
			return fmt.Errorf("%w: %w", ErrWriteReport, err)
		}
		return nil
	})
	if err != nil {
		if errors.Is(err, ErrWriteReport) {
			return "", err
		}
		return "", fmt.Errorf("%w: %w", ErrCreateReportFile, err)
	}
	return path, nil
}

// RemoveIncompleteReport deletes the incomplete report of the job, if any
func RemoveIncompleteReport(env *ExecutionEnv, sink *output.FileOutput) error {
	path, err := GetReportPath(env, sink, false)
	if err != nil {
		return err
	}
	if err = os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("os.Remove: %w", err)
	}
	return nil
}

// serializeSummary resolves the output files of completed and errored
// partitions. Paths are sorted so the report does not depend on the order
// in which partitions finished.
func serializeSummary(summary *FreezeSummary, q *query.Query, sink *output.FileOutput) *SerializedSummary {
	s := &SerializedSummary{
		CompletedPaths: make([]string, 0, len(summary.Completed)*len(q.Datatypes)),
		ErroredPaths:   make([]string, 0, len(summary.Errored)*len(q.Datatypes)),
		NSkipped:       uint64(len(summary.Skipped)),
	}
	for i := range summary.Completed {
		s.CompletedPaths = append(s.CompletedPaths, sink.PathList(q, &summary.Completed[i])...)
	}
	for _, e := range summary.Errored {
		if e.Partition == nil {
			continue
		}
		s.ErroredPaths = append(s.ErroredPaths, sink.PathList(q, e.Partition)...)
	}
	slices.Sort(s.CompletedPaths)
	slices.Sort(s.ErroredPaths)
	return s
}

// LoadReport reads a report written by WriteReport
func LoadReport(path string) (*Report, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrReadReport, err)
	}
	var r Report
	if err = json.Unmarshal(data, &r); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrReadReport, err)
	}
	return &r, nil
}

// IsIncomplete reports whether a report file name marks an unfinished run
func IsIncomplete(path string) bool {
	return strings.HasPrefix(filepath.Base(path), incompletePrefix)
}

// ListReports returns the report files of a report dir, oldest first
func ListReports(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrReadReport, err)
	}
	files := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() || filepath.Ext(e.Name()) != ".json" {
			continue
		}
		files = append(files, filepath.Join(dir, e.Name()))
	}
	// timestamps sort lexically; incomplete reports sort by their timestamp too
	slices.SortFunc(files, func(a, b string) int {
		return strings.Compare(strings.TrimPrefix(filepath.Base(a), incompletePrefix), strings.TrimPrefix(filepath.Base(b), incompletePrefix))
	})
	return files, nil
}
