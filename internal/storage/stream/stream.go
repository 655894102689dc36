// Package stream provides a TCP storage backend that streams samples to
// remote subscribers speaking the fieldstream protocol. Downstream
// greenwave instances point a fieldstream site at this listener to mirror
// a site's samples without touching the archive again.
package stream

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"net"
	"os"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/khufkens/greenwave/internal/log"
	"github.com/khufkens/greenwave/internal/storage"
	"github.com/khufkens/greenwave/internal/types"
	"github.com/khufkens/greenwave/pkg/config"
	"github.com/khufkens/greenwave/protocols/fieldstream"
)

const (
	subscriberChanDepth = 10
	heartbeatInterval   = 30 * time.Second
	writeTimeout        = 10 * time.Second
)

// subscriber is one connected client. The id is only for log correlation.
type subscriber struct {
	id string
	ch chan types.Sample
}

// Storage implements a streaming storage backend
type Storage struct {
	subscribers     []*subscriber
	subscriberMutex sync.RWMutex
	listener        net.Listener
	streamConfig    *config.StreamData
	serverName      string
}

// StartStorageEngine creates a goroutine loop to receive samples and fan
// them out to connected subscribers
func (s *Storage) StartStorageEngine(ctx context.Context, wg *sync.WaitGroup) chan<- types.Sample {
	log.Info("starting stream storage engine...")
	sampleChan := make(chan types.Sample, 10)
	wg.Add(1)
	go storage.ProcessSamples(ctx, wg, sampleChan, s.fanOut, "stream")
	return sampleChan
}

// fanOut delivers a sample to every subscriber channel without blocking
// the distributor. A subscriber that cannot keep up loses samples rather
// than stalling the other backends.
func (s *Storage) fanOut(sample types.Sample) error {
	if s.streamConfig.PullFromSite != "" && sample.SiteName != s.streamConfig.PullFromSite {
		return nil
	}

	s.subscriberMutex.RLock()
	defer s.subscriberMutex.RUnlock()

	for _, sub := range s.subscribers {
		select {
		case sub.ch <- sample:
		default:
			log.Debugf("stream subscriber %s channel full, dropping sample", sub.id)
		}
	}

	log.Debugf("stream distributed sample to %d subscribers", len(s.subscribers))
	return nil
}

// New sets up a new stream storage backend
func New(ctx context.Context, configProvider config.ConfigProvider) (*Storage, error) {
	cfgData, err := configProvider.LoadConfig()
	if err != nil {
		return nil, fmt.Errorf("error loading configuration: %v", err)
	}

	if cfgData.Storage.Stream == nil {
		return nil, fmt.Errorf("stream storage configuration is missing")
	}

	streamConfig := cfgData.Storage.Stream
	if streamConfig.Port == 0 {
		return nil, errors.New("stream storage requires a port")
	}

	s := &Storage{streamConfig: streamConfig}
	if hostname, err := os.Hostname(); err == nil {
		s.serverName = hostname
	}

	listenAddr := fmt.Sprintf("%s:%d", streamConfig.ListenAddr, streamConfig.Port)

	if streamConfig.Cert != "" && streamConfig.Key != "" {
		cert, err := tls.LoadX509KeyPair(streamConfig.Cert, streamConfig.Key)
		if err != nil {
			return nil, fmt.Errorf("could not load stream TLS keypair: %v", err)
		}
		s.listener, err = tls.Listen("tcp", listenAddr, &tls.Config{Certificates: []tls.Certificate{cert}})
		if err != nil {
			return nil, fmt.Errorf("could not create stream TLS listener: %v", err)
		}
	} else {
		s.listener, err = net.Listen("tcp", listenAddr)
		if err != nil {
			return nil, fmt.Errorf("could not create stream listener: %v", err)
		}
	}

	log.Infof("stream storage listening on %v", s.listener.Addr())

	go s.acceptConnections(ctx)

	storage.StartHealthMonitor(ctx, "stream", s, 60*time.Second)

	return s, nil
}

func (s *Storage) acceptConnections(ctx context.Context) {
	go func() {
		<-ctx.Done()
		s.listener.Close()
	}()

	for {
		conn, err := s.listener.Accept()
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, net.ErrClosed) {
				return
			}
			log.Errorf("stream accept failed: %v", err)
			continue
		}
		go s.serveSubscriber(ctx, conn)
	}
}

// serveSubscriber owns one connection: hello first, then samples and
// heartbeats until the subscriber goes away or we shut down.
func (s *Storage) serveSubscriber(ctx context.Context, conn net.Conn) {
	defer conn.Close()

	sub := &subscriber{
		id: uuid.New().String()[:8],
		ch: make(chan types.Sample, subscriberChanDepth),
	}
	log.Infof("registering stream subscriber %s [%v]", sub.id, conn.RemoteAddr())

	w := fieldstream.NewWriter(conn)
	hello := fieldstream.Hello{
		Protocol: fieldstream.ProtocolVersion,
		Server:   s.serverName,
		Site:     s.streamConfig.PullFromSite,
	}
	conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	if err := w.WriteHello(hello); err != nil {
		log.Errorf("stream subscriber %s hello failed: %v", sub.id, err)
		return
	}

	s.registerSubscriber(sub)
	defer s.deregisterSubscriber(sub)
	defer log.Infof("deregistering stream subscriber %s [%v]", sub.id, conn.RemoteAddr())

	heartbeat := time.NewTicker(heartbeatInterval)
	defer heartbeat.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case sample := <-sub.ch:
			conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			if err := w.WriteSample(&sample); err != nil {
				log.Errorf("stream subscriber %s write failed: %v", sub.id, err)
				return
			}
		case <-heartbeat.C:
			conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			if err := w.WriteHeartbeat(); err != nil {
				log.Debugf("stream subscriber %s heartbeat failed: %v", sub.id, err)
				return
			}
		}
	}
}

func (s *Storage) registerSubscriber(sub *subscriber) {
	s.subscriberMutex.Lock()
	defer s.subscriberMutex.Unlock()

	s.subscribers = append(s.subscribers, sub)
}

func (s *Storage) deregisterSubscriber(sub *subscriber) {
	s.subscriberMutex.Lock()
	defer s.subscriberMutex.Unlock()

	for i, v := range s.subscribers {
		if v == sub {
			s.subscribers[i] = s.subscribers[len(s.subscribers)-1]
			s.subscribers = s.subscribers[:len(s.subscribers)-1]
			return
		}
	}
}

func (s *Storage) subscriberCount() int {
	s.subscriberMutex.RLock()
	defer s.subscriberMutex.RUnlock()

	return len(s.subscribers)
}
