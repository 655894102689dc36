package stream

import (
	"context"
	"net"
	"os"
	"testing"
	"time"

	"github.com/khufkens/greenwave/internal/log"
	"github.com/khufkens/greenwave/internal/types"
	"github.com/khufkens/greenwave/pkg/config"
	"github.com/khufkens/greenwave/protocols/fieldstream"
)

func TestMain(m *testing.M) {
	// The engine logs dropped samples and subscriber churn through the
	// package logger, so the tests need it initialized.
	if err := log.Init(false); err != nil {
		panic(err)
	}
	os.Exit(m.Run())
}

func TestFanOutFiltersAndDrops(t *testing.T) {
	s := &Storage{streamConfig: &config.StreamData{PullFromSite: "harvard"}}
	sub := &subscriber{id: "test", ch: make(chan types.Sample, 1)}
	s.registerSubscriber(sub)

	if err := s.fanOut(types.Sample{SiteName: "bartlett"}); err != nil {
		t.Fatalf("fanOut: %v", err)
	}
	if len(sub.ch) != 0 {
		t.Fatal("sample for a non-matching site reached the subscriber")
	}

	if err := s.fanOut(types.Sample{SiteName: "harvard", PixelIndex: 1}); err != nil {
		t.Fatalf("fanOut: %v", err)
	}
	// Channel is full now; this one must be dropped, not block.
	if err := s.fanOut(types.Sample{SiteName: "harvard", PixelIndex: 2}); err != nil {
		t.Fatalf("fanOut: %v", err)
	}

	if len(sub.ch) != 1 {
		t.Fatalf("subscriber channel holds %d samples, want 1", len(sub.ch))
	}
	got := <-sub.ch
	if got.PixelIndex != 1 {
		t.Errorf("delivered PixelIndex = %d, want 1", got.PixelIndex)
	}

	s.deregisterSubscriber(sub)
	if s.subscriberCount() != 0 {
		t.Errorf("subscriberCount = %d after deregister, want 0", s.subscriberCount())
	}
}

func TestFanOutWithoutFilterPassesAllSites(t *testing.T) {
	s := &Storage{streamConfig: &config.StreamData{}}
	sub := &subscriber{id: "test", ch: make(chan types.Sample, 2)}
	s.registerSubscriber(sub)
	defer s.deregisterSubscriber(sub)

	s.fanOut(types.Sample{SiteName: "harvard"})
	s.fanOut(types.Sample{SiteName: "bartlett"})

	if len(sub.ch) != 2 {
		t.Errorf("subscriber channel holds %d samples, want 2", len(sub.ch))
	}
}

func TestServeSubscriberStreamsSamples(t *testing.T) {
	s := &Storage{
		streamConfig: &config.StreamData{PullFromSite: "harvard"},
		serverName:   "test-server",
	}

	server, client := net.Pipe()
	defer client.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := make(chan struct{})
	go func() {
		s.serveSubscriber(ctx, server)
		close(done)
	}()

	r := fieldstream.NewReader(client)
	hello, err := r.ReadHello()
	if err != nil {
		t.Fatalf("ReadHello: %v", err)
	}
	if hello.Server != "test-server" || hello.Site != "harvard" {
		t.Errorf("hello = %+v, want server test-server site harvard", hello)
	}

	deadline := time.Now().Add(2 * time.Second)
	for s.subscriberCount() == 0 {
		if time.Now().After(deadline) {
			t.Fatal("subscriber never registered")
		}
		time.Sleep(5 * time.Millisecond)
	}

	// The bartlett sample is filtered out, so the first frame delivered
	// must be the harvard one.
	s.fanOut(types.Sample{SiteName: "bartlett", Band: "GCC", Value: 0.41})
	s.fanOut(types.Sample{SiteName: "harvard", Band: "NDVI", Value: 0.73, PixelIndex: 7})

	frameType, payload, err := r.ReadFrame()
	if err != nil {
		t.Fatalf("ReadFrame: %v", err)
	}
	if frameType != fieldstream.FrameSample {
		t.Fatalf("frame type = %d, want %d", frameType, fieldstream.FrameSample)
	}
	got, err := fieldstream.DecodeSample(payload)
	if err != nil {
		t.Fatalf("DecodeSample: %v", err)
	}
	if got.SiteName != "harvard" || got.Band != "NDVI" || got.PixelIndex != 7 {
		t.Errorf("sample = %s/%s pixel %d, want harvard/NDVI pixel 7", got.SiteName, got.Band, got.PixelIndex)
	}

	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("serveSubscriber did not exit on context cancellation")
	}
	if s.subscriberCount() != 0 {
		t.Errorf("subscriberCount = %d after shutdown, want 0", s.subscriberCount())
	}
}
