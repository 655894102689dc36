// Package fieldstream subscribes to a remote sample stream, typically a
// field gateway or another greenwave instance publishing through its
// stream storage backend. Received samples are re-homed under the local
// site name before they reach the distributor.
package fieldstream

import (
	"context"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/khufkens/greenwave/internal/sources"
	"github.com/khufkens/greenwave/internal/types"
	"github.com/khufkens/greenwave/pkg/config"
	fieldstream "github.com/khufkens/greenwave/protocols/fieldstream"
	"go.uber.org/zap"
)

const (
	helloTimeout = 15 * time.Second
	// readTimeout must comfortably exceed the publisher's heartbeat
	// interval; a silent connection past this is treated as dead.
	readTimeout    = 90 * time.Second
	reconnectPause = 5 * time.Second
)

// Source holds our connection to the remote publisher
type Source struct {
	ctx               context.Context
	cancel            context.CancelFunc
	wg                *sync.WaitGroup
	config            config.SiteData
	SampleDistributor chan types.Sample
	logger            *zap.SugaredLogger

	// connMu guards conn, which StopSource closes from outside the
	// consumer goroutine to unblock a pending read.
	connMu sync.Mutex
	conn   net.Conn
}

// NewSource creates a new field stream source instance
func NewSource(ctx context.Context, wg *sync.WaitGroup, configProvider config.ConfigProvider, siteName string, distributor chan types.Sample, logger *zap.SugaredLogger) (sources.Source, error) {
	site, err := sources.LoadSiteConfig(configProvider, siteName)
	if err != nil {
		return nil, err
	}
	if site.Hostname == "" || site.Port == "" {
		return nil, fmt.Errorf("site [%s] must define a hostname and port", siteName)
	}

	sourceCtx, cancel := context.WithCancel(ctx)

	return &Source{
		ctx:               sourceCtx,
		cancel:            cancel,
		wg:                wg,
		config:            *site,
		SampleDistributor: distributor,
		logger:            logger.Named("fieldstream").With("site", siteName),
	}, nil
}

// SiteName returns the name of the site this source collects
func (s *Source) SiteName() string {
	return s.config.Name
}

// StartSource launches the stream consumer goroutine
func (s *Source) StartSource() error {
	s.logger.Infow("Starting field stream source",
		"hostname", s.config.Hostname,
		"port", s.config.Port)

	s.wg.Add(1)
	go s.streamSamples()

	return nil
}

// StopSource cancels the consumer and closes the connection
func (s *Source) StopSource() error {
	s.logger.Info("Stopping field stream source")
	s.cancel()
	s.closeConn()
	return nil
}

func (s *Source) setConn(conn net.Conn) {
	s.connMu.Lock()
	defer s.connMu.Unlock()
	s.conn = conn
}

func (s *Source) closeConn() {
	s.connMu.Lock()
	defer s.connMu.Unlock()
	if s.conn != nil {
		s.conn.Close()
		s.conn = nil
	}
}

// connect dials the publisher with exponential backoff and performs the
// hello exchange. It only returns an error when the context is cancelled.
func (s *Source) connect() (net.Conn, *fieldstream.Reader, error) {
	addr := net.JoinHostPort(s.config.Hostname, s.config.Port)
	var dialer net.Dialer
	attempt := 0

	for {
		if s.ctx.Err() != nil {
			return nil, nil, s.ctx.Err()
		}

		delay := sources.ReconnectDelay(attempt)

		conn, err := dialer.DialContext(s.ctx, "tcp", addr)
		if err == nil {
			reader := fieldstream.NewReader(conn)

			conn.SetReadDeadline(time.Now().Add(helloTimeout))
			hello, err := reader.ReadHello()
			if err != nil {
				conn.Close()
				s.logger.Errorf("hello exchange with %v failed: %v; retrying in %v", addr, err, delay)
				if err := sources.SleepWithContext(s.ctx, delay); err != nil {
					return nil, nil, err
				}
				attempt++
				continue
			}

			s.setConn(conn)
			s.logger.Infof("Connected to field stream [%v] (server %q, site filter %q)",
				s.config.Name, hello.Server, hello.Site)
			return conn, reader, nil
		}

		s.logger.Errorf("Attempt #%v to connect to field stream %v failed: %v. Retrying in %v",
			attempt+1, s.config.Name, err, delay)
		if err := sources.SleepWithContext(s.ctx, delay); err != nil {
			return nil, nil, err
		}
		attempt++
	}
}

// reconnect closes the dead connection, pauses, and dials again.
func (s *Source) reconnect() (net.Conn, *fieldstream.Reader, error) {
	s.closeConn()
	if err := sources.SleepWithContext(s.ctx, reconnectPause); err != nil {
		return nil, nil, err
	}
	return s.connect()
}

func (s *Source) streamSamples() {
	defer s.wg.Done()

	conn, reader, err := s.connect()
	if err != nil {
		return
	}

	for {
		select {
		case <-s.ctx.Done():
			s.logger.Info("cancellation request received, stopping field stream consumer")
			return
		default:
		}

		conn.SetReadDeadline(time.Now().Add(readTimeout))
		frameType, payload, err := reader.ReadFrame()
		if err != nil {
			if s.ctx.Err() != nil {
				return
			}
			s.logger.Errorf("error receiving from field stream %v: %v; reconnecting", s.config.Name, err)
			conn, reader, err = s.reconnect()
			if err != nil {
				return
			}
			continue
		}

		switch frameType {
		case fieldstream.FrameSample:
			sample, err := fieldstream.DecodeSample(payload)
			if err != nil {
				s.logger.Errorf("discarding undecodable sample frame: %v", err)
				continue
			}

			// The publisher names sites in its own configuration; locally
			// the samples belong to this site.
			sample.SiteName = s.config.Name
			sample.Source = config.SiteTypeFieldStream

			select {
			case s.SampleDistributor <- sample:
				s.logger.Debugf("received %s sample for composite %s", sample.Band, sample.Time.Format("2006-01-02"))
			case <-s.ctx.Done():
				return
			}
		case fieldstream.FrameHeartbeat:
			// Liveness only.
		case fieldstream.FrameHello:
			// Duplicate hello after a publisher restart; nothing to do.
		default:
			s.logger.Warnf("ignoring unknown frame type %d", frameType)
		}
	}
}
