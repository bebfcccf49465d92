package api

import (
	"context"
	"encoding/json"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rxtech-lab/argo-engine/internal/live"
	"github.com/rxtech-lab/argo-engine/internal/logger"
	"github.com/rxtech-lab/argo-engine/internal/version"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fixedStatus struct {
	status live.Status
}

func (f fixedStatus) Status() live.Status { return f.status }

func newTestServer(opts ...Option) *Server {
	return NewServer(fixedStatus{status: live.Status{
		Instrument:      "AAPL",
		Strategy:        "bracket_breakout",
		Running:         true,
		BarsIngested:    42,
		ActiveOrders:    1,
		CompletedOrders: 3,
		Pnl:             map[string]float64{"AAPL": 12.5},
		TotalPnl:        12.5,
	}}, logger.NewNopLogger(), opts...)
}

func get(t *testing.T, s *Server, path string) *httptest.ResponseRecorder {
	t.Helper()

	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))

	return rec
}

func TestHealth(t *testing.T) {
	rec := get(t, newTestServer(), "/health")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	var body HealthResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "ok", body.Status)
	assert.Equal(t, version.GetVersion(), body.Version)
}

func TestStatus(t *testing.T) {
	rec := get(t, newTestServer(), "/status")
	require.Equal(t, http.StatusOK, rec.Code)

	var body live.Status
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "AAPL", body.Instrument)
	assert.True(t, body.Running)
	assert.Equal(t, 42, body.BarsIngested)
	assert.Equal(t, 1, body.ActiveOrders)
	assert.Nil(t, body.LastBar)
}

func TestPnl(t *testing.T) {
	rec := get(t, newTestServer(), "/pnl")
	require.Equal(t, http.StatusOK, rec.Code)

	var body PnlResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "AAPL", body.Instrument)
	assert.Equal(t, 12.5, body.Pnl["AAPL"])
	assert.Equal(t, 12.5, body.Total)
}

func TestRoutes(t *testing.T) {
	s := newTestServer()

	assert.Equal(t, http.StatusNotFound, get(t, s, "/orders").Code)

	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/status", nil))
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestServeShutsDownOnCancel(t *testing.T) {
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)

	go func() { done <- newTestServer().Serve(ctx, listener) }()

	url := "http://" + listener.Addr().String() + "/health"

	require.Eventually(t, func() bool {
		resp, err := http.Get(url)
		if err != nil {
			return false
		}
		resp.Body.Close()

		return resp.StatusCode == http.StatusOK
	}, 2*time.Second, 10*time.Millisecond)

	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not shut down")
	}
}

func TestStatusStream(t *testing.T) {
	server := httptest.NewServer(newTestServer(WithStreamInterval(10 * time.Millisecond)).Handler())
	defer server.Close()

	wsURL := "ws" + strings.TrimPrefix(server.URL, "http") + "/ws/status"
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	defer conn.Close()

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))

	for range 2 {
		var body live.Status
		require.NoError(t, conn.ReadJSON(&body))
		assert.Equal(t, "AAPL", body.Instrument)
		assert.Equal(t, 42, body.BarsIngested)
	}
}
