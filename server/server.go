package server

import (
	"context"
	"fmt"
	"net"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/chorus-fhe/ppcnn/fhe"
	"github.com/chorus-fhe/ppcnn/metrics"
	"github.com/chorus-fhe/ppcnn/protocol"
	"github.com/chorus-fhe/ppcnn/queue"
	"github.com/chorus-fhe/ppcnn/registry"
	"github.com/chorus-fhe/ppcnn/worker"
)

// Server owns the Key Registry, Query & Result Queues, Worker Pool and TCP
// listener (spec §4.6-§4.10). One Server serves many connections
// concurrently, each with its own protocol.Dispatcher and
// protocol.Machine.
type Server struct {
	Config   Config
	Engine   fhe.Engine
	Registry *registry.Registry
	Queries  *queue.Queries
	Results  *queue.Results
	Metrics  *metrics.Server
	Log      *logrus.Logger

	pool *worker.Pool
}

// New constructs a Server wired against engine (shared by every worker,
// per spec §5) and a datasets root resolved by worker.FileResolver.
func New(cfg Config, engine fhe.Engine, registerer prometheus.Registerer, log *logrus.Logger) (*Server, error) {
	if log == nil {
		log = logrus.New()
	}
	m, err := metrics.NewServer(registerer)
	if err != nil {
		return nil, fmt.Errorf("server: new: %w", err)
	}

	s := &Server{
		Config:   cfg,
		Engine:   engine,
		Registry: registry.New(),
		Queries:  queue.New[queue.Query](cfg.MaxConcurrentQueries),
		Results:  queue.New[queue.Result](cfg.MaxResults),
		Metrics:  m,
		Log:      log,
	}

	s.pool = &worker.Pool{
		Count:          cfg.WorkerCount,
		Registry:       s.Registry,
		Queries:        s.Queries,
		Results:        s.Results,
		Resolver:       worker.FileResolver{Root: cfg.DatasetsRoot, Opts: cfg.Opts()},
		Engine:         engine,
		ResultLifetime: cfg.ResultLifetime,
		Metrics:        m,
		Log:            log,
	}
	return s, nil
}

// Serve starts the worker pool and accepts connections on addr until ctx is
// cancelled. It blocks until shutdown completes.
func (s *Server) Serve(ctx context.Context, addr string) error {
	lc := net.ListenConfig{}
	ln, err := lc.Listen(ctx, "tcp", addr)
	if err != nil {
		return fmt.Errorf("server: listen %s: %w", addr, err)
	}

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error { return s.pool.Run(ctx) })
	g.Go(func() error { return s.acceptLoop(ctx, ln) })

	g.Go(func() error {
		<-ctx.Done()
		return ln.Close()
	})

	return g.Wait()
}

func (s *Server) acceptLoop(ctx context.Context, ln net.Listener) error {
	for {
		conn, err := ln.Accept()
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("server: accept: %w", err)
		}
		connID := uuid.NewString()
		go s.handleConn(ctx, conn, connID)
	}
}

func (s *Server) handleConn(ctx context.Context, conn net.Conn, connID string) {
	defer conn.Close()
	log := s.Log.WithField("conn_id", connID)
	log.Debug("connection accepted")

	dispatcher := protocol.NewDispatcher(s.Registry, s.Queries, s.Results, log)
	if err := dispatcher.Serve(ctx, conn); err != nil {
		log.WithError(err).Debug("connection closed")
		return
	}
	log.Debug("connection closed cleanly")
}
