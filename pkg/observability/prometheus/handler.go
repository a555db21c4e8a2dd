package prometheus

import (
	"context"
	"errors"
	"net"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/valyala/fasthttp"
	"github.com/valyala/fasthttp/fasthttpadaptor"

	"github.com/stingraykit/toolkit/pkg/core"
)

// MetricsPath is where Handler serves the exposition
const MetricsPath = "/metrics"

// Handler serves gatherer on MetricsPath and 404 elsewhere.
// A nil gatherer means DefaultRegistry.
func Handler(gatherer prometheus.Gatherer) fasthttp.RequestHandler {
	if gatherer == nil {
		gatherer = DefaultRegistry
	}
	metricsHandler := fasthttpadaptor.NewFastHTTPHandler(
		promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}),
	)
	return func(ctx *fasthttp.RequestCtx) {
		if string(ctx.Path()) != MetricsPath {
			ctx.Error("not found", fasthttp.StatusNotFound)
			return
		}
		metricsHandler(ctx)
	}
}

// Server exposes a gatherer over HTTP until its context ends
type Server struct {
	server *fasthttp.Server
	logger core.Logger
}

// NewServer builds a metrics server for gatherer
func NewServer(gatherer prometheus.Gatherer, logger core.Logger) *Server {
	if logger == nil {
		logger = core.NewNopLogger()
	}
	return &Server{
		server: &fasthttp.Server{
			Handler:               Handler(gatherer),
			ReadTimeout:           5 * time.Second,
			WriteTimeout:          10 * time.Second,
			NoDefaultServerHeader: true,
		},
		logger: logger,
	}
}

// Serve accepts connections on ln until ctx ends, then shuts down
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	errCh := make(chan error, 1)
	go func() {
		errCh <- s.server.Serve(ln)
	}()
	s.logger.Infof("serving metrics on %s%s", ln.Addr(), MetricsPath)

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.server.ShutdownWithContext(shutdownCtx); err != nil && !errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	return <-errCh
}

// ListenAndServe listens on addr and calls Serve
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	return s.Serve(ctx, ln)
}
