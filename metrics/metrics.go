// Package metrics contains the freezer's process metrics
package metrics

import (
	"fmt"
	"io"

	"github.com/VictoriaMetrics/metrics"
)

var (
	partitionsCompleted = metrics.NewCounter("partitions_completed_total")
	partitionsErrored   = metrics.NewCounter("partitions_errored_total")
	partitionsSkipped   = metrics.NewCounter("partitions_skipped_total")
	rpcRequests         = metrics.NewCounter("rpc_requests_total")
	rpcErrors           = metrics.NewCounter("rpc_errors_total")
)

const (
	RowsCollectedLabel     = `rows_collected_total{datatype="%s"}`
	RPCRequestsMethodLabel = `rpc_requests_total{method="%s"}`
	RPCErrorsMethodLabel   = `rpc_errors_total{method="%s"}`
	PartitionDurationLabel = `partition_duration_seconds{datatype="%s"}`
	BytesWrittenLabel      = `bytes_written_total{datatype="%s"}`
)

func IncPartitionCompleted() {
	partitionsCompleted.Inc()
}

func IncPartitionErrored() {
	partitionsErrored.Inc()
}

func AddPartitionsSkipped(n int) {
	partitionsSkipped.Add(n)
}

func AddRowsCollected(datatype string, n uint64) {
	l := fmt.Sprintf(RowsCollectedLabel, datatype)
	metrics.GetOrCreateCounter(l).Add(int(n))
}

func AddBytesWritten(datatype string, n int64) {
	l := fmt.Sprintf(BytesWrittenLabel, datatype)
	metrics.GetOrCreateCounter(l).Add(int(n))
}

func ObservePartitionDuration(datatype string, seconds float64) {
	l := fmt.Sprintf(PartitionDurationLabel, datatype)
	metrics.GetOrCreateSummary(l).Update(seconds)
}

func IncRPCRequest(method string) {
	rpcRequests.Inc()
	l := fmt.Sprintf(RPCRequestsMethodLabel, method)
	metrics.GetOrCreateCounter(l).Inc()
}

func IncRPCError(method string) {
	rpcErrors.Inc()
	l := fmt.Sprintf(RPCErrorsMethodLabel, method)
	metrics.GetOrCreateCounter(l).Inc()
}

// WritePrometheus writes all metrics in Prometheus text exposition format
func WritePrometheus(w io.Writer) {
	metrics.WritePrometheus(w, true)
}
