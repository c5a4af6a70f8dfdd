package server

import (
	"log/slog"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Supermagnum/gr-sleipnir-sub000/internal/config"
	"github.com/Supermagnum/gr-sleipnir-sub000/internal/crypto"
	"github.com/Supermagnum/gr-sleipnir-sub000/internal/link"
	"github.com/Supermagnum/gr-sleipnir-sub000/internal/metrics"
	"github.com/Supermagnum/gr-sleipnir-sub000/internal/superframe"
)

// Prometheus collectors register globally, so the whole test binary shares
// one Metrics instance.
var testMetrics = metrics.NewMetrics()

func newTestServer(t *testing.T) (*UDPServer, *link.Manager) {
	t.Helper()

	factory := func() (*superframe.Engine, error) {
		ctx, err := crypto.NewContext(nil, nil, nil)
		if err != nil {
			return nil, err
		}
		return superframe.NewEngine(superframe.Config{Callsign: "W1AW"}, nil, nil, ctx)
	}
	mgr := link.NewManager(slog.Default(), testMetrics, time.Minute, 8, factory)
	t.Cleanup(mgr.Stop)

	cfg := &config.ServerConfig{
		UDPPort:     0, // ephemeral
		BindAddress: "127.0.0.1",
		BufferSize:  65536,
	}
	return NewUDPServer(cfg, slog.Default(), mgr, testMetrics), mgr
}

func TestServerIngestsDatagrams(t *testing.T) {
	srv, mgr := newTestServer(t)
	require.NoError(t, srv.Start())

	client, err := net.Dial("udp", srv.conn.LocalAddr().String())
	require.NoError(t, err)
	defer client.Close()

	chunk := make([]byte, 100)
	for i := range chunk {
		chunk[i] = byte(int8(32)) // LLR +8.0
	}
	for i := 0; i < 5; i++ {
		_, err := client.Write(chunk)
		require.NoError(t, err)
	}

	require.Eventually(t, func() bool {
		return srv.GetStatistics().DatagramsIngested >= 5
	}, 2*time.Second, 10*time.Millisecond)

	assert.Equal(t, 1, mgr.ActiveCount())
	require.NoError(t, srv.Stop())

	stats := srv.GetStatistics()
	assert.Equal(t, stats.DatagramsReceived, stats.DatagramsIngested)
	assert.Equal(t, uint64(0), stats.IngestErrors)
}

// A sender racing shutdown must never crash the server: the receive loop has
// to be fully drained before the datagram queue closes.
func TestStopWhileReceiving(t *testing.T) {
	srv, _ := newTestServer(t)
	require.NoError(t, srv.Start())

	client, err := net.Dial("udp", srv.conn.LocalAddr().String())
	require.NoError(t, err)
	defer client.Close()

	stop := make(chan struct{})
	done := make(chan struct{})
	go func() {
		defer close(done)
		chunk := make([]byte, 64)
		ticker := time.NewTicker(time.Millisecond)
		defer ticker.Stop()
		for {
			select {
			case <-stop:
				return
			case <-ticker.C:
				// Write errors are expected once the server socket closes.
				_, _ = client.Write(chunk)
			}
		}
	}()

	time.Sleep(50 * time.Millisecond)
	require.NoError(t, srv.Stop())
	close(stop)
	<-done
}
