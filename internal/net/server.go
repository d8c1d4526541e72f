package net

import (
	"context"
	"errors"
	"net"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// ProtocolFactory builds the protocol handler for a freshly accepted connection.
type ProtocolFactory func(c *Connection) Protocol

// ServerOptions is shared by every listener of one Server.
type ServerOptions struct {
	Conn     ConnOptions
	TraceDir string // empty disables capture
}

// Server accepts connections for one protocol (login or game) over TCP and,
// optionally, WebSocket. Connection ids come from a counter shared by every
// listener so logs stay unambiguous.
type Server struct {
	name     string
	listener net.Listener
	ids      *atomic.Uint64
	factory  ProtocolFactory
	opts     ServerOptions
	log      *zap.Logger
	closeCh  chan struct{}

	ws       *http.Server
	upgrader websocket.Upgrader
}

func NewServer(name, bindAddr string, ids *atomic.Uint64, factory ProtocolFactory, opts ServerOptions, log *zap.Logger) (*Server, error) {
	ln, err := net.Listen("tcp", bindAddr)
	if err != nil {
		return nil, err
	}
	if ids == nil {
		ids = new(atomic.Uint64)
	}
	s := &Server{
		name:     name,
		listener: ln,
		ids:      ids,
		factory:  factory,
		opts:     opts,
		log:      log.With(zap.String("listener", name)),
		closeCh:  make(chan struct{}),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  16 * 1024,
			WriteBufferSize: 16 * 1024,
			Subprotocols:    []string{"binary"},
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
	}
	return s, nil
}

// AcceptLoop runs in its own goroutine until Shutdown.
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
		s.handle(conn)
	}
}

// ServeWebSocket serves the same protocol on bindAddr where every binary
// message carries exactly one frame. Blocks until Shutdown.
func (s *Server) ServeWebSocket(bindAddr string) error {
	mux := http.NewServeMux()
	mux.HandleFunc("/", func(rw http.ResponseWriter, r *http.Request) {
		ws, err := s.upgrader.Upgrade(rw, r, nil)
		if err != nil {
			s.log.Debug("websocket upgrade failed", zap.Error(err))
			return
		}
		s.handle(newWSConn(ws))
	})
	s.ws = &http.Server{
		Addr:              bindAddr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}
	s.log.Info("websocket listening", zap.String("addr", bindAddr))
	if err := s.ws.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) handle(conn net.Conn) {
	id := s.ids.Add(1)
	opts := s.opts.Conn
	if s.opts.TraceDir != "" {
		tr, err := NewTracer(s.opts.TraceDir, id)
		if err != nil {
			s.log.Warn("trace disabled for connection", zap.Uint64("conn", id), zap.Error(err))
		} else {
			opts.Tracer = tr
		}
	}
	c := NewConnection(conn, id, opts, s.log)
	s.log.Info("client connected", zap.Uint64("conn", id), zap.String("ip", c.IP))
	c.Start(s.factory(c))
}

// Shutdown stops accepting new connections.
func (s *Server) Shutdown() {
	close(s.closeCh)
	s.listener.Close()
	if s.ws != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = s.ws.Shutdown(ctx)
	}
}

// Addr returns the TCP listener's address.
func (s *Server) Addr() net.Addr {
	return s.listener.Addr()
}
