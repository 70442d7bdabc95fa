package server

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/ahmethakanbesel/nbp-datahub/internal/job"
	"github.com/ahmethakanbesel/nbp-datahub/internal/logging"
	"github.com/ahmethakanbesel/nbp-datahub/internal/metrics"
	"github.com/ahmethakanbesel/nbp-datahub/internal/rate"
)

type Server struct {
	srv    *http.Server
	logger *slog.Logger
}

// New creates a read-only API server over the rate store and run history.
// The baseCtx is used as the base context for all incoming requests.
func New(baseCtx context.Context, port string, rates *rate.Service, jobs *job.Service, m *metrics.Metrics, logger *slog.Logger) *Server {
	logger = logging.OrDefault(logger)
	return &Server{
		logger: logger,
		srv: &http.Server{
			Addr:    fmt.Sprintf(":%s", port),
			Handler: NewHandler(rates, jobs, m, logger),
			BaseContext: func(_ net.Listener) context.Context {
				return baseCtx
			},
			ReadTimeout:  15 * time.Second,
			WriteTimeout: 60 * time.Second,
			IdleTimeout:  120 * time.Second,
		},
	}
}

func (s *Server) Start() error {
	s.logger.Info("starting server", "addr", s.srv.Addr)
	return s.srv.ListenAndServe()
}

func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down server")
	return s.srv.Shutdown(ctx)
}
