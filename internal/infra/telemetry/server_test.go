package telemetry

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestStartHTTPServer_EmptyAddrIsNoop(t *testing.T) {
	err := StartHTTPServer(context.Background(), HTTPServerOptions{}, zap.NewNop())
	assert.NoError(t, err)
}

func TestStartHTTPServer_Metrics(t *testing.T) {
	listener := mustListen(t)
	port := listener.Addr().(*net.TCPAddr).Port
	listener.Close()

	registry := prometheus.NewRegistry()
	NewPrometheusMetrics(registry).SetActiveSessions(1)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	errChan := make(chan error, 1)
	go func() {
		errChan <- StartHTTPServer(ctx, HTTPServerOptions{
			Addr:     fmt.Sprintf("127.0.0.1:%d", port),
			Registry: registry,
		}, zap.NewNop())
	}()

	waitForHTTPStatus(t, fmt.Sprintf("http://127.0.0.1:%d/metrics", port), http.StatusOK, false)

	resp, err := http.Get(fmt.Sprintf("http://127.0.0.1:%d/metrics", port))
	require.NoError(t, err)
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), "ekamcp_active_workflow_sessions")

	cancel()

	select {
	case err := <-errChan:
		assert.NoError(t, err)
	case <-time.After(10 * time.Second):
		t.Fatal("server did not stop in time")
	}
}

func TestStartHTTPServer_Healthz(t *testing.T) {
	listener := mustListen(t)
	port := listener.Addr().(*net.TCPAddr).Port
	listener.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	tracker := NewHealthTracker()
	tracker.RecordUpstreamSuccess()

	errChan := make(chan error, 1)
	go func() {
		errChan <- StartHTTPServer(ctx, HTTPServerOptions{
			Addr:     fmt.Sprintf("127.0.0.1:%d", port),
			Health:   tracker,
			Registry: prometheus.NewRegistry(),
		}, zap.NewNop())
	}()

	waitForHTTPStatus(t, fmt.Sprintf("http://127.0.0.1:%d/healthz", port), http.StatusOK, true)

	// Push the tracker past the degraded threshold
	for i := 0; i < degradedFailureThreshold; i++ {
		tracker.RecordUpstreamFailure(errors.New("connection refused"))
	}
	waitForHTTPStatus(t, fmt.Sprintf("http://127.0.0.1:%d/healthz", port), http.StatusServiceUnavailable, true)

	cancel()

	select {
	case err := <-errChan:
		assert.NoError(t, err)
	case <-time.After(10 * time.Second):
		t.Fatal("server did not stop in time")
	}
}

func TestStartHTTPServer_PortInUse(t *testing.T) {
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Skipf("skip test due to listen error: %v", err)
	}
	defer listener.Close()
	port := listener.Addr().(*net.TCPAddr).Port

	ctx, cancel := context.WithTimeout(context.Background(), 500*time.Millisecond)
	defer cancel()

	err = StartHTTPServer(ctx, HTTPServerOptions{
		Addr: fmt.Sprintf("127.0.0.1:%d", port),
	}, zap.NewNop())
	require.Error(t, err)
	assert.True(t, strings.Contains(err.Error(), "address already in use") || errors.Is(err, context.DeadlineExceeded))
}

func mustListen(t *testing.T) net.Listener {
	t.Helper()
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Skipf("skip test due to listen error: %v", err)
	}
	return listener
}

func waitForHTTPStatus(t *testing.T, url string, status int, expectJSON bool) {
	t.Helper()
	require.Eventually(t, func() bool {
		resp, err := http.Get(url)
		if err != nil {
			return false
		}
		defer resp.Body.Close()
		if resp.StatusCode != status {
			return false
		}
		if expectJSON {
			var report HealthReport
			if err := json.NewDecoder(resp.Body).Decode(&report); err != nil {
				return false
			}
			if status == http.StatusOK && report.Status != "ok" {
				return false
			}
		}
		return true
	}, 2*time.Second, 25*time.Millisecond)
}
