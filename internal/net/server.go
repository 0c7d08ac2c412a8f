package net

import (
	"net"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Server accepts TCP connections and hands each one to a Dispatcher as a
// Connection (spec.md §3's per-peer Connection actor). Unlike the
// teacher's Server, there is no separate newConns/deadCh channel pair to a
// game loop: each Connection dispatches inline through the Dispatcher, so
// the game-facing side (internal/router, internal/zone) never touches raw
// sockets.
type Server struct {
	listener net.Listener

	dispatcher   Dispatcher
	outQueueSize int
	pktPerSec    int
	readTimeout  time.Duration
	writeTimeout time.Duration

	log *zap.Logger

	mu    sync.Mutex
	conns map[*Connection]struct{}

	closeCh chan struct{}
}

type ServerConfig struct {
	BindAddress      string
	OutQueueSize     int
	PacketsPerSecond int // 0 disables the limiter
	ReadTimeout      time.Duration
	WriteTimeout     time.Duration
}

func NewServer(cfg ServerConfig, dispatcher Dispatcher, log *zap.Logger) (*Server, error) {
	ln, err := net.Listen("tcp", cfg.BindAddress)
	if err != nil {
		return nil, err
	}
	return &Server{
		listener:     ln,
		dispatcher:   dispatcher,
		outQueueSize: cfg.OutQueueSize,
		pktPerSec:    cfg.PacketsPerSecond,
		readTimeout:  cfg.ReadTimeout,
		writeTimeout: cfg.WriteTimeout,
		log:          log,
		conns:        make(map[*Connection]struct{}),
		closeCh:      make(chan struct{}),
	}, nil
}

// AcceptLoop runs in its own goroutine, accepting connections until
// Shutdown closes the listener.
func (s *Server) AcceptLoop() {
	for {
		conn, err := s.listener.Accept()
		if err != nil {
			select {
			case <-s.closeCh:
				return
			default:
			}
			s.log.Error("accept failed", zap.Error(err))
			continue
		}

		c := NewConnection(conn, s.dispatcher, s.outQueueSize, s.pktPerSec, s.readTimeout, s.writeTimeout, s.log)
		s.log.Info("connection accepted",
			zap.String("conn", c.TraceID.String()),
			zap.String("remote", c.RemoteAddr()),
		)

		s.track(c)
		c.Start()
		go s.untrackOnClose(c)
	}
}

func (s *Server) track(c *Connection) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.conns[c] = struct{}{}
}

// untrackOnClose blocks until c has closed, removes it from the tracking
// set, and — if the server's dispatcher also implements DisconnectHandler —
// notifies it, so a dead socket logs its session out of the world rather
// than leaving a WorldSession and a zone entity behind forever (spec.md
// §4.1 "Socket close triggers a logout message to WorldDirectory which
// despawns any bound entity").
func (s *Server) untrackOnClose(c *Connection) {
	<-c.closeCh
	s.mu.Lock()
	delete(s.conns, c)
	s.mu.Unlock()

	if dh, ok := s.dispatcher.(DisconnectHandler); ok {
		dh.HandleDisconnect(c)
	}
}

// Shutdown stops accepting new connections and closes every live one.
func (s *Server) Shutdown() {
	close(s.closeCh)
	s.listener.Close()

	s.mu.Lock()
	conns := make([]*Connection, 0, len(s.conns))
	for c := range s.conns {
		conns = append(conns, c)
	}
	s.mu.Unlock()

	for _, c := range conns {
		c.Close()
	}
}

func (s *Server) Addr() net.Addr {
	return s.listener.Addr()
}
