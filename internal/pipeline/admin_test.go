package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/Amicidal/codegraph-ingest/internal/sink"
)

func getTestSocketPath(t *testing.T) string {
	t.Helper()
	return filepath.Join(os.TempDir(), fmt.Sprintf("codegraph-ingest-test-%s.sock", t.Name()))
}

func unixHTTPClient(socketPath string) *http.Client {
	return &http.Client{
		Transport: &http.Transport{
			DialContext: func(ctx context.Context, _, _ string) (net.Conn, error) {
				return net.Dial("unix", socketPath)
			},
		},
		Timeout: 2 * time.Second,
	}
}

func TestAdminServer_StatusReportsRunningState(t *testing.T) {
	socketPath := getTestSocketPath(t)
	defer os.Remove(socketPath)

	gs := sink.NewFakeGraphSink()
	p := New(testConfig(t, gs))
	require.NoError(t, p.Start(context.Background()))
	defer p.Stop(context.Background())

	admin := NewAdminServer(p, socketPath)
	require.NoError(t, admin.Start())
	defer admin.Shutdown(context.Background())

	client := unixHTTPClient(socketPath)
	resp, err := client.Get("http://unix/status")
	require.NoError(t, err)
	defer resp.Body.Close()

	var status statusResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&status))
	require.Equal(t, "running", status.State)
}

func TestAdminServer_PingRespondsWithUptime(t *testing.T) {
	socketPath := getTestSocketPath(t)
	defer os.Remove(socketPath)

	gs := sink.NewFakeGraphSink()
	p := New(testConfig(t, gs))
	require.NoError(t, p.Start(context.Background()))
	defer p.Stop(context.Background())

	admin := NewAdminServer(p, socketPath)
	require.NoError(t, admin.Start())
	defer admin.Shutdown(context.Background())

	client := unixHTTPClient(socketPath)
	resp, err := client.Get("http://unix/ping")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestAdminServer_StatsReturnsTelemetrySnapshot(t *testing.T) {
	socketPath := getTestSocketPath(t)
	defer os.Remove(socketPath)

	gs := sink.NewFakeGraphSink()
	p := New(testConfig(t, gs))
	require.NoError(t, p.Start(context.Background()))
	defer p.Stop(context.Background())

	admin := NewAdminServer(p, socketPath)
	require.NoError(t, admin.Start())
	defer admin.Shutdown(context.Background())

	client := unixHTTPClient(socketPath)
	resp, err := client.Get("http://unix/stats")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
}
