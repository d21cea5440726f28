// Package server accepts client connections and runs one session per
// connection under a supervising errgroup.
package server

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"sync"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/hakimelghazi/matching-core/internal/engine"
	"github.com/hakimelghazi/matching-core/internal/protocol"
)

type Server struct {
	engine *engine.Engine
	logger *zap.Logger

	connections prometheus.Gauge
	rejected    prometheus.Counter

	mu      sync.Mutex
	conns   map[net.Conn]struct{}
	closing bool
}

// New builds a server for eng. reg may be nil.
func New(eng *engine.Engine, logger *zap.Logger, reg prometheus.Registerer) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	f := promauto.With(reg)
	return &Server{
		engine: eng,
		logger: logger,
		connections: f.NewGauge(prometheus.GaugeOpts{
			Namespace: "matcher",
			Name:      "connections",
			Help:      "Open client connections.",
		}),
		rejected: f.NewCounter(prometheus.CounterOpts{
			Namespace: "matcher",
			Name:      "connections_rejected_total",
			Help:      "Connections terminated because of bad input.",
		}),
		conns: make(map[net.Conn]struct{}),
	}
}

// Listen opens the listener. A stale unix socket file is removed first.
func Listen(network, address string) (net.Listener, error) {
	if network == "unix" {
		if err := os.Remove(address); err != nil && !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("remove stale socket: %w", err)
		}
	}
	ln, err := net.Listen(network, address)
	if err != nil {
		return nil, fmt.Errorf("listen %s %s: %w", network, address, err)
	}
	return ln, nil
}

// Serve accepts on ln until ctx is cancelled or accepting fails. On return
// the listener and every connection are closed and all workers have exited.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		<-ctx.Done()
		_ = ln.Close()
		s.closeAll()
		return nil
	})

	g.Go(func() error {
		defer cancel()
		s.logger.Info("accepting connections", zap.Stringer("addr", ln.Addr()))
		for {
			conn, err := ln.Accept()
			if err != nil {
				if ctx.Err() != nil {
					return nil
				}
				return fmt.Errorf("accept: %w", err)
			}
			if !s.track(conn) {
				_ = conn.Close()
				continue
			}
			g.Go(func() error {
				s.handle(conn)
				return nil
			})
		}
	})

	return g.Wait()
}

func (s *Server) track(conn net.Conn) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closing {
		return false
	}
	s.conns[conn] = struct{}{}
	s.connections.Inc()
	return true
}

func (s *Server) untrack(conn net.Conn) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.conns[conn]; ok {
		delete(s.conns, conn)
		s.connections.Dec()
	}
}

func (s *Server) closeAll() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closing = true
	for conn := range s.conns {
		_ = conn.Close()
	}
}

// handle runs one connection's commands in order. Bad input ends the
// connection and nothing else.
func (s *Server) handle(conn net.Conn) {
	defer s.untrack(conn)
	defer conn.Close()

	sess := s.engine.NewSession(uuid.NewString())
	defer sess.Close()
	log := s.logger.With(zap.String("session", sess.ID()), zap.Stringer("remote", conn.RemoteAddr()))
	log.Info("connection opened")

	dec := protocol.NewDecoder(conn)
	for {
		cmd, err := dec.Next()
		if err == nil {
			err = sess.Handle(cmd)
		}
		switch {
		case err == nil:
			continue
		case errors.Is(err, io.EOF), errors.Is(err, net.ErrClosed):
			log.Info("connection closed", zap.Int("lines", dec.Line()))
		case isInputError(err):
			s.rejected.Inc()
			log.Warn("connection terminated", zap.Int("line", dec.Line()), zap.Error(err))
		default:
			log.Info("connection read failed", zap.Error(err))
		}
		return
	}
}

func isInputError(err error) bool {
	return errors.Is(err, protocol.ErrMalformed) ||
		errors.Is(err, protocol.ErrUnknownCommand) ||
		errors.Is(err, engine.ErrInvalidOrder) ||
		errors.Is(err, engine.ErrDuplicateOrder)
}
