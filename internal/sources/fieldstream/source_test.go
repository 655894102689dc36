package fieldstream

import (
	"context"
	"net"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/khufkens/greenwave/internal/types"
	"github.com/khufkens/greenwave/pkg/config"
	wire "github.com/khufkens/greenwave/protocols/fieldstream"
	"go.uber.org/zap"
)

func testSource(t *testing.T, hostname, port string) *Source {
	t.Helper()

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	return &Source{
		ctx:    ctx,
		cancel: cancel,
		wg:     &sync.WaitGroup{},
		config: config.SiteData{
			Name:     "tumbarumba",
			Type:     config.SiteTypeFieldStream,
			Hostname: hostname,
			Port:     port,
		},
		SampleDistributor: make(chan types.Sample, 10),
		logger:            zap.NewNop().Sugar(),
	}
}

// TestStreamSamplesRehomesSite runs a miniature publisher on a loopback
// listener and verifies the consumer performs the hello exchange, decodes
// sample frames, and rewrites the site identity to the local site.
func TestStreamSamplesRehomesSite(t *testing.T) {
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("failed to listen: %v", err)
	}
	defer listener.Close()

	published := types.Sample{
		Time:      time.Date(2023, time.May, 25, 0, 0, 0, 0, time.UTC),
		SiteName:  "gateway-site",
		Source:    "ornl",
		Product:   "MOD13Q1",
		Band:      "NDVI",
		Value:     0.4523,
		RawValue:  4523,
		QCRank:    0,
		RunID:     "pub00001",
		SubsetRows: 1,
		SubsetCols: 1,
	}

	go func() {
		conn, err := listener.Accept()
		if err != nil {
			return
		}
		defer conn.Close()

		w := wire.NewWriter(conn)
		if err := w.WriteHello(wire.Hello{
			Protocol: wire.ProtocolVersion,
			Server:   "pub-host",
			Site:     "gateway-site",
		}); err != nil {
			return
		}
		if err := w.WriteHeartbeat(); err != nil {
			return
		}
		if err := w.WriteSample(&published); err != nil {
			return
		}

		// Keep the connection open until the consumer goes away.
		buf := make([]byte, 1)
		conn.Read(buf)
	}()

	host, port, err := net.SplitHostPort(listener.Addr().String())
	if err != nil {
		t.Fatalf("failed to split listener address: %v", err)
	}

	source := testSource(t, host, port)
	if err := source.StartSource(); err != nil {
		t.Fatalf("StartSource returned error: %v", err)
	}

	select {
	case sample := <-source.SampleDistributor:
		if sample.SiteName != "tumbarumba" {
			t.Errorf("expected sample re-homed to tumbarumba, got %q", sample.SiteName)
		}
		if sample.Source != config.SiteTypeFieldStream {
			t.Errorf("expected source %q, got %q", config.SiteTypeFieldStream, sample.Source)
		}
		if sample.Band != "NDVI" || sample.Product != "MOD13Q1" {
			t.Errorf("unexpected sample identity: %s/%s", sample.Product, sample.Band)
		}
		if sample.Value != published.Value {
			t.Errorf("expected value %v, got %v", published.Value, sample.Value)
		}
		if !sample.Time.Equal(published.Time) {
			t.Errorf("expected time %v, got %v", published.Time, sample.Time)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for sample from stream")
	}

	if err := source.StopSource(); err != nil {
		t.Fatalf("StopSource returned error: %v", err)
	}

	done := make(chan struct{})
	go func() {
		source.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("consumer goroutine did not exit after StopSource")
	}
}

func TestNewSourceRequiresEndpoint(t *testing.T) {
	cfgPath := filepath.Join(t.TempDir(), "config.yaml")
	cfg := "sites:\n  - name: nohost\n    type: fieldstream\n"
	if err := os.WriteFile(cfgPath, []byte(cfg), 0o644); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}
	provider := config.NewYAMLProvider(cfgPath)

	ctx := context.Background()
	var wg sync.WaitGroup
	_, err := NewSource(ctx, &wg, provider, "nohost", make(chan types.Sample, 1), zap.NewNop().Sugar())
	if err == nil {
		t.Fatal("expected error for site without hostname/port")
	}
}
