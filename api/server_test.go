package api

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/flashbots/cryo-go/common"
	"github.com/flashbots/cryo-go/metrics"
	"github.com/stretchr/testify/require"
)

func testServer(status func() any) *Server {
	return New(&HTTPServerConfig{ //nolint:exhaustruct
		ListenAddr: "localhost:0",
		Log:        common.NopLogger(),
		Status:     status,
	})
}

func get(t *testing.T, h http.Handler, path string) *httptest.ResponseRecorder {
	t.Helper()
	rr := httptest.NewRecorder()
	req, err := http.NewRequest(http.MethodGet, path, nil)
	require.NoError(t, err)
	h.ServeHTTP(rr, req)
	return rr
}

func TestProbes(t *testing.T) {
	srv := testServer(nil)
	h := srv.Handler()

	require.Equal(t, http.StatusOK, get(t, h, "/livez").Code)
	require.Equal(t, http.StatusServiceUnavailable, get(t, h, "/readyz").Code)

	srv.SetReady(true)
	rr := get(t, h, "/readyz")
	require.Equal(t, http.StatusOK, rr.Code)
	require.Equal(t, "ok", rr.Body.String())

	require.Equal(t, http.StatusNotFound, get(t, h, "/status").Code)
}

func TestMetrics(t *testing.T) {
	metrics.IncPartitionCompleted()
	rr := get(t, testServer(nil).Handler(), "/metrics")
	require.Equal(t, http.StatusOK, rr.Code)
	require.Contains(t, rr.Body.String(), "partitions_completed_total")
}

func TestStatus(t *testing.T) {
	srv := testServer(func() any { return map[string]int{"completed": 3} })
	rr := get(t, srv.Handler(), "/status")
	require.Equal(t, http.StatusOK, rr.Code)
	require.JSONEq(t, `{"completed":3}`, rr.Body.String())
}
