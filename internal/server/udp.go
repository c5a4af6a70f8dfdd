package server

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"sync"
	"time"

	"github.com/Supermagnum/gr-sleipnir-sub000/internal/config"
	"github.com/Supermagnum/gr-sleipnir-sub000/internal/link"
	"github.com/Supermagnum/gr-sleipnir-sub000/internal/metrics"
)

// llrScale converts the wire's fixed-point soft decisions to LLRs: each
// datagram byte is a signed int8 carrying LLR × 4, giving a ±31.75 range at
// 0.25 resolution.
const llrScale = 4.0

// UDPServer ingests soft-decision datagrams from demodulators. Each
// datagram is one chunk of a remote's continuous LLR stream; chunks need not
// align to frame boundaries.
type UDPServer struct {
	conn    *net.UDPConn
	config  *config.ServerConfig
	logger  *slog.Logger
	linkMgr *link.Manager
	metrics *metrics.Metrics

	ctx    context.Context
	cancel context.CancelFunc
	recvWG sync.WaitGroup
	procWG sync.WaitGroup

	datagramChan chan *incomingDatagram

	datagramsReceived uint64
	datagramsIngested uint64
	ingestErrors      uint64
	mu                sync.RWMutex
}

// incomingDatagram is one received chunk with its source.
type incomingDatagram struct {
	data       []byte
	remoteAddr *net.UDPAddr
}

// NewUDPServer creates a new UDP server instance.
func NewUDPServer(cfg *config.ServerConfig, logger *slog.Logger, linkMgr *link.Manager, m *metrics.Metrics) *UDPServer {
	ctx, cancel := context.WithCancel(context.Background())

	return &UDPServer{
		config:       cfg,
		logger:       logger,
		linkMgr:      linkMgr,
		metrics:      m,
		ctx:          ctx,
		cancel:       cancel,
		datagramChan: make(chan *incomingDatagram, 1000),
	}
}

// Start begins listening for soft-bit datagrams.
func (s *UDPServer) Start() error {
	addr, err := net.ResolveUDPAddr("udp", fmt.Sprintf("%s:%d", s.config.BindAddress, s.config.UDPPort))
	if err != nil {
		return fmt.Errorf("failed to resolve UDP address: %w", err)
	}

	conn, err := net.ListenUDP("udp", addr)
	if err != nil {
		return fmt.Errorf("failed to listen on UDP: %w", err)
	}

	s.conn = conn

	if err := s.conn.SetReadBuffer(s.config.BufferSize); err != nil {
		s.logger.Warn("Failed to set UDP read buffer size",
			slog.Int("buffer_size", s.config.BufferSize),
			slog.String("error", err.Error()),
		)
	}

	s.logger.Info("UDP server started",
		slog.String("address", addr.String()),
		slog.Int("buffer_size", s.config.BufferSize),
	)

	// A single processor keeps each remote's chunks in arrival order; the
	// LLR stream is positional, so reordering would desynchronise the
	// receive state machine.
	s.procWG.Add(1)
	go s.datagramProcessor()

	s.recvWG.Add(1)
	go s.receiveLoop()

	return nil
}

// Stop gracefully stops the UDP server.
func (s *UDPServer) Stop() error {
	s.logger.Info("Stopping UDP server...")

	s.cancel()

	if s.conn != nil {
		if err := s.conn.Close(); err != nil {
			s.logger.Warn("Error closing UDP connection", slog.String("error", err.Error()))
		}
	}

	// The receive loop must be gone before the channel closes, or a read
	// that completed during shutdown could send on a closed channel.
	s.recvWG.Wait()
	close(s.datagramChan)
	s.procWG.Wait()

	s.mu.RLock()
	received := s.datagramsReceived
	ingested := s.datagramsIngested
	errors := s.ingestErrors
	s.mu.RUnlock()

	s.logger.Info("UDP server stopped",
		slog.Uint64("datagrams_received", received),
		slog.Uint64("datagrams_ingested", ingested),
		slog.Uint64("ingest_errors", errors),
	)

	return nil
}

// receiveLoop is the main datagram receiving loop.
func (s *UDPServer) receiveLoop() {
	defer s.recvWG.Done()

	buffer := make([]byte, s.config.BufferSize)

	for {
		select {
		case <-s.ctx.Done():
			s.logger.Info("Receive loop stopping due to context cancellation")
			return
		default:
		}

		// Periodic deadline so context cancellation is noticed.
		if err := s.conn.SetReadDeadline(time.Now().Add(1 * time.Second)); err != nil {
			s.logger.Error("Failed to set read deadline", slog.String("error", err.Error()))
			continue
		}

		n, remoteAddr, err := s.conn.ReadFromUDP(buffer)
		if err != nil {
			if netErr, ok := err.(net.Error); ok && netErr.Timeout() {
				continue
			}

			select {
			case <-s.ctx.Done():
				return
			default:
				s.logger.Error("Failed to read UDP datagram", slog.String("error", err.Error()))
				continue
			}
		}

		s.mu.Lock()
		s.datagramsReceived++
		s.mu.Unlock()
		s.metrics.RecordDatagram(n)

		data := make([]byte, n)
		copy(data, buffer[:n])

		select {
		case s.datagramChan <- &incomingDatagram{data: data, remoteAddr: remoteAddr}:
		default:
			s.logger.Warn("Datagram queue full, dropping chunk",
				slog.String("remote_addr", remoteAddr.String()),
				slog.Int("size", n),
			)
			s.metrics.RecordIngestError()
		}
	}
}

// datagramProcessor drains the queue into the link manager.
func (s *UDPServer) datagramProcessor() {
	defer s.procWG.Done()

	for d := range s.datagramChan {
		s.handleDatagram(d)
	}
}

// handleDatagram converts one chunk to LLRs and feeds the remote's session.
func (s *UDPServer) handleDatagram(d *incomingDatagram) {
	if len(d.data) == 0 {
		return
	}

	llrs := make([]float64, len(d.data))
	for i, b := range d.data {
		llrs[i] = float64(int8(b)) / llrScale
	}

	if err := s.linkMgr.Ingest(d.remoteAddr.String(), llrs); err != nil {
		s.mu.Lock()
		s.ingestErrors++
		s.mu.Unlock()
		s.metrics.RecordIngestError()

		s.logger.Error("Failed to ingest soft decisions",
			slog.String("remote_addr", d.remoteAddr.String()),
			slog.Int("llrs", len(llrs)),
			slog.String("error", err.Error()),
		)
		return
	}

	s.mu.Lock()
	s.datagramsIngested++
	s.mu.Unlock()
}

// GetStatistics returns current server statistics.
func (s *UDPServer) GetStatistics() ServerStatistics {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return ServerStatistics{
		DatagramsReceived: s.datagramsReceived,
		DatagramsIngested: s.datagramsIngested,
		IngestErrors:      s.ingestErrors,
		ActiveLinks:       uint64(s.linkMgr.ActiveCount()),
		QueueSize:         uint64(len(s.datagramChan)),
		QueueCapacity:     uint64(cap(s.datagramChan)),
	}
}

// ServerStatistics represents server performance metrics.
type ServerStatistics struct {
	DatagramsReceived uint64 `json:"datagrams_received"`
	DatagramsIngested uint64 `json:"datagrams_ingested"`
	IngestErrors      uint64 `json:"ingest_errors"`
	ActiveLinks       uint64 `json:"active_links"`
	QueueSize         uint64 `json:"queue_size"`
	QueueCapacity     uint64 `json:"queue_capacity"`
}
