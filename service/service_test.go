package service

import (
	"bytes"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/ethereum/go-ethereum/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ethereum-optimism/optimism/op-service/testlog"

	"github.com/ethereum-optimism/infra/rpc-harness/logging"
)

func TestHealthzHandler(t *testing.T) {
	logger, capture := testlog.CaptureLogger(t, log.LevelDebug)
	h := NewHealthzServer(logger, nil)

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	req.Header.Set("Origin", "http://example.com")
	rec := httptest.NewRecorder()
	h.Handler().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "OK", rec.Body.String())
	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))

	served := capture.FindLog(testlog.NewMessageFilter("served HTTP request"), testlog.NewAttributesFilter("path", "/healthz"))
	require.NotNil(t, served)
	assert.EqualValues(t, http.StatusOK, served.AttrValue("status"))
}

func TestLogLevelHandler(t *testing.T) {
	var buf bytes.Buffer
	logger, err := logging.New(logging.Config{
		Console: slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: log.LevelTrace}),
		Level:   log.LevelInfo,
	})
	require.NoError(t, err)
	h := NewHealthzServer(logger, logger)

	do := func(method, target string) *httptest.ResponseRecorder {
		rec := httptest.NewRecorder()
		h.Handler().ServeHTTP(rec, httptest.NewRequest(method, target, nil))
		return rec
	}

	rec := do(http.MethodGet, "/loglevel")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "info", rec.Body.String())

	rec = do(http.MethodPut, "/loglevel?level=debug")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "debug", rec.Body.String())
	assert.Equal(t, log.LevelDebug, logger.Level())

	rec = do(http.MethodPost, "/loglevel?level=verbose")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, log.LevelDebug, logger.Level())
	assert.Contains(t, buf.String(), "Invalid log level")

	rec = do(http.MethodDelete, "/loglevel")
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestLogLevelDisabled(t *testing.T) {
	rec := httptest.NewRecorder()
	NewHealthzServer(log.New(), nil).Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/loglevel", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestMetricsHandler(t *testing.T) {
	m := NewMetricsServer()

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "go_goroutines")
}

func TestHealthzAddr(t *testing.T) {
	assert.Equal(t, "", HealthzAddr(DefaultHealthzHost, 0))
	assert.Equal(t, "0.0.0.0:8080", HealthzAddr(DefaultHealthzHost, DefaultHealthzPort))
}

func TestServiceStartShutdown(t *testing.T) {
	s := New(Config{
		Log:            log.New(),
		HealthzAddr:    "127.0.0.1:0",
		MetricsEnabled: true,
		MetricsAddr:    "127.0.0.1",
		MetricsPort:    0,
	})
	require.NoError(t, s.Start())
	defer s.Shutdown()

	for name, path := range map[string]string{"healthz": "/healthz", "metrics": "/metrics"} {
		addr := s.Addr(name)
		require.NotNil(t, addr, name)
		resp, err := http.Get("http://" + addr.String() + path)
		require.NoError(t, err)
		body, err := io.ReadAll(resp.Body)
		require.NoError(t, resp.Body.Close())
		require.NoError(t, err)
		assert.Equal(t, http.StatusOK, resp.StatusCode, name)
		assert.NotEmpty(t, body)
	}
}

func TestServiceDisabled(t *testing.T) {
	s := New(Config{Log: log.New()})
	require.NoError(t, s.Start())
	assert.Nil(t, s.Addr("healthz"))
	assert.Nil(t, s.Addr("metrics"))
	s.Shutdown()
}

func TestServiceListenError(t *testing.T) {
	s := New(Config{Log: log.New(), HealthzAddr: "127.0.0.1:-1"})
	assert.Error(t, s.Start())
}
