package metrics

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func get(t *testing.T, s *Server, path string) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	s.server.Handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
	return rec
}

// InitRegistry is once-only, so both states are checked in one test.
func TestServerEndpoints(t *testing.T) {
	disabled := NewServer(ServerConfig{})
	assert.Equal(t, 9090, disabled.Port())

	rec := get(t, disabled, "/metrics")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Contains(t, rec.Body.String(), "disabled")

	rec = get(t, disabled, "/")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "http://<host>:9090/metrics")

	rec = get(t, disabled, "/nope")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	InitRegistry()
	require.True(t, IsEnabled())
	promauto.With(GetRegistry()).NewCounter(prometheus.CounterOpts{
		Name: "simfs_test_counter_total",
		Help: "Counter registered by the server test",
	}).Add(2)

	enabled := NewServer(ServerConfig{Port: 9191})
	rec = get(t, enabled, "/metrics")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "simfs_test_counter_total 2")
}

func TestStopIsIdempotent(t *testing.T) {
	s := NewServer(ServerConfig{Port: 9192})
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	require.NoError(t, s.Stop(ctx))
	require.NoError(t, s.Stop(ctx))
}
