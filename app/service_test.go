package app

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/BusBom/rpi-server/config"
	"github.com/BusBom/rpi-server/core/factory"
	"github.com/BusBom/rpi-server/core/stationstatus"
)

func newSources(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/status", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"station_id":"101","platform_status":[1,0,0]}`))
	})
	mux.HandleFunc("/sequence", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`["42"]`))
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func testConfig(t *testing.T, srv *httptest.Server) *config.Config {
	cfg := &config.Config{}
	cfg.Dispatch.StationID = "101"
	cfg.Dispatch.Emitters = []factory.ModuleConfig{{Type: "device", Conf: map[string]any{"path": filepath.Join(t.TempDir(), "display")}}}
	cfg.Sources.StopStatusURL = srv.URL + "/status"
	cfg.Sources.QueueURL = srv.URL + "/sequence"
	cfg.Logging.Cycles.Path = filepath.Join(t.TempDir(), "cycles.log")
	cfg.SetDefaults()
	require.NoError(t, cfg.Validate())
	return cfg
}

func TestServiceCycleFeedsAPI(t *testing.T) {
	srv := newSources(t)
	cfg := testConfig(t, srv)
	svc, err := New(cfg)
	require.NoError(t, err)
	defer func() { require.NoError(t, svc.Close()) }()

	res := svc.Manager.Cycle(context.Background())
	require.False(t, res.Skipped, "%v", res.Err)

	rr := httptest.NewRecorder()
	svc.Handler().ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/station/status", nil))
	require.Equal(t, http.StatusOK, rr.Code)
	var snap stationstatus.Snapshot
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &snap))
	assert.Len(t, snap.Platforms, 3)

	rr = httptest.NewRecorder()
	svc.Handler().ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/dispatch/logs", nil))
	assert.Equal(t, http.StatusOK, rr.Code)
}

func TestServiceUnknownEmitter(t *testing.T) {
	srv := newSources(t)
	cfg := testConfig(t, srv)
	cfg.Dispatch.Emitters = []factory.ModuleConfig{{Type: "pigeon"}}
	_, err := New(cfg)
	require.Error(t, err)
}

func TestServiceRunStopsOnCancel(t *testing.T) {
	srv := newSources(t)
	cfg := testConfig(t, srv)
	svc, err := New(cfg)
	require.NoError(t, err)
	defer svc.Close()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- svc.Run(ctx) }()
	time.Sleep(50 * time.Millisecond)
	cancel()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("service did not stop")
	}
}
