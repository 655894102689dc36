package managers

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/khufkens/greenwave/internal/types"
)

func TestSampleDistributorFanOut(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	wg := &sync.WaitGroup{}

	a := make(chan types.Sample, 4)
	b := make(chan types.Sample, 4)

	s := &StorageManager{
		Engines: []StorageEngine{
			{C: a},
			{C: b},
		},
		SampleDistributor: make(chan types.Sample, 20),
	}

	wg.Add(1)
	go s.startSampleDistributor(ctx, wg)

	sent := []types.Sample{
		{SiteName: "harvard", Band: "NDVI", PixelIndex: 0, Value: 0.61},
		{SiteName: "harvard", Band: "NDVI", PixelIndex: 1, Value: 0.58},
		{SiteName: "niwot", Band: "EVI", PixelIndex: 12, Value: 0.33},
	}
	for _, smp := range sent {
		s.SampleDistributor <- smp
	}

	for _, ch := range []chan types.Sample{a, b} {
		for i, want := range sent {
			select {
			case got := <-ch:
				if got.SiteName != want.SiteName || got.Band != want.Band ||
					got.PixelIndex != want.PixelIndex || got.Value != want.Value {
					t.Errorf("sample %d: got %+v, want %+v", i, got, want)
				}
			case <-time.After(2 * time.Second):
				t.Fatalf("timed out waiting for sample %d", i)
			}
		}
	}
}

func TestSampleDistributorStopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())

	wg := &sync.WaitGroup{}
	s := &StorageManager{SampleDistributor: make(chan types.Sample, 20)}

	wg.Add(1)
	go s.startSampleDistributor(ctx, wg)

	cancel()

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("distributor did not stop after context cancellation")
	}
}

func TestAddEngineUnknown(t *testing.T) {
	s := &StorageManager{}
	err := s.AddEngine(context.Background(), &sync.WaitGroup{}, "influxdb", nil)
	if err == nil {
		t.Fatal("expected error for unknown storage engine")
	}
}
