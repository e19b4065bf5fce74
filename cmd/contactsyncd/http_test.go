package main

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pior/contactsync"
)

type fakeServer struct {
	stats contactsync.ServerStats
}

func (f fakeServer) Stats() contactsync.ServerStats { return f.stats }
func (f fakeServer) SocketPath() string             { return "/tmp/bridge.sock" }

func TestRouterHealth(t *testing.T) {
	r := newRouter(fakeServer{stats: contactsync.ServerStats{ActiveSession: true, RegistrySize: 3}}, prometheus.NewRegistry(), zerolog.Nop())

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "ok", body["status"])
	assert.Equal(t, "/tmp/bridge.sock", body["socket"])
	assert.Equal(t, true, body["session_active"])
	assert.Equal(t, 3.0, body["registry_size"])
}

func TestRouterStats(t *testing.T) {
	r := newRouter(fakeServer{stats: contactsync.ServerStats{Commands: 7}}, prometheus.NewRegistry(), zerolog.Nop())

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/stats", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var st contactsync.ServerStats
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &st))
	assert.Equal(t, uint64(7), st.Commands)
}

func TestRouterMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	counter := prometheus.NewCounter(prometheus.CounterOpts{Name: "contactsync_test_total", Help: "test"})
	reg.MustRegister(counter)
	counter.Inc()

	r := newRouter(fakeServer{}, reg, zerolog.Nop())

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "contactsync_test_total 1")
}

func TestRouterNotFound(t *testing.T) {
	r := newRouter(fakeServer{}, prometheus.NewRegistry(), zerolog.Nop())

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/nope", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
