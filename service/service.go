package service

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/ethereum/go-ethereum/log"

	"github.com/ethereum-optimism/infra/rpc-harness/metrics"
)

const (
	DefaultHealthzHost = "0.0.0.0"
	DefaultHealthzPort = 8080

	shutdownTimeout = 5 * time.Second
)

// Config selects which servers run and where.
type Config struct {
	Log            log.Logger
	HealthzAddr    string // Empty disables the healthz server
	Levels         LevelController
	MetricsEnabled bool
	MetricsAddr    string
	MetricsPort    int
}

type server interface {
	Serve(l net.Listener) error
	Shutdown(ctx context.Context) error
}

type Service struct {
	log     log.Logger
	cfg     Config
	Healthz *HealthzServer
	Metrics *MetricsServer

	running []server
	addrs   map[string]net.Addr
}

func New(cfg Config) *Service {
	if cfg.Log == nil {
		cfg.Log = log.New()
	}
	return &Service{
		log:     cfg.Log,
		cfg:     cfg,
		Healthz: NewHealthzServer(cfg.Log, cfg.Levels),
		Metrics: NewMetricsServer(),
		addrs:   make(map[string]net.Addr),
	}
}

// HealthzAddr joins host and port, returning "" when port is zero.
func HealthzAddr(host string, port int) string {
	if port == 0 {
		return ""
	}
	return net.JoinHostPort(host, strconv.Itoa(port))
}

// Start binds the enabled servers and serves them in the background.
func (s *Service) Start() error {
	s.log.Info("service starting")

	if s.cfg.HealthzAddr != "" {
		if err := s.serve("healthz", s.cfg.HealthzAddr, s.Healthz); err != nil {
			return err
		}
	}
	if s.cfg.MetricsEnabled {
		addr := net.JoinHostPort(s.cfg.MetricsAddr, strconv.Itoa(s.cfg.MetricsPort))
		if err := s.serve("metrics", addr, s.Metrics); err != nil {
			s.Shutdown()
			return err
		}
	}

	s.log.Info("service started")
	return nil
}

// Addr returns the bound address of a running server ("healthz" or "metrics").
func (s *Service) Addr(name string) net.Addr {
	return s.addrs[name]
}

func (s *Service) serve(name, addr string, srv server) error {
	l, err := net.Listen("tcp", addr)
	if err != nil {
		metrics.RecordErrorDetails("error starting "+name+" server", err)
		return fmt.Errorf("failed to listen for %s server on %s: %w", name, addr, err)
	}
	s.addrs[name] = l.Addr()
	s.running = append(s.running, srv)

	s.log.Info("starting "+name+" server", "addr", l.Addr().String())
	go func() {
		if err := srv.Serve(l); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.log.Error("error serving "+name+" server", "err", err)
			metrics.RecordErrorDetails("error serving "+name+" server", err)
		}
	}()
	return nil
}

func (s *Service) Shutdown() {
	s.log.Info("service shutting down")

	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	for _, srv := range s.running {
		if err := srv.Shutdown(ctx); err != nil {
			s.log.Warn("error stopping server", "err", err)
		}
	}
	s.running = nil

	s.log.Info("service stopped")
}
