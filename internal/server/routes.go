package server

import (
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/ahmethakanbesel/nbp-datahub/internal/job"
	"github.com/ahmethakanbesel/nbp-datahub/internal/metrics"
	"github.com/ahmethakanbesel/nbp-datahub/internal/rate"
)

func init() {
	gin.SetMode(gin.ReleaseMode)
}

// NewHandler creates the full HTTP handler with routes and middleware.
// Exported for use in tests (e.g., httptest.NewServer).
func NewHandler(rates *rate.Service, jobs *job.Service, m *metrics.Metrics, logger *slog.Logger) http.Handler {
	h := &handler{svc: rates, jobSvc: jobs}

	r := gin.New()
	r.Use(recovery(logger), requestID(), requestLogger(logger), instrument(m))

	r.GET("/health", h.health)
	if m != nil {
		r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(m.Registry, promhttp.HandlerOpts{})))
	}

	api := r.Group("/api/v1")
	{
		api.GET("/rates", h.listRates)
		api.GET("/rates/:date", h.getPartition)
		api.GET("/dates", h.listDates)
		api.GET("/jobs", h.listJobs)
		api.GET("/jobs/:id", h.getJob)
	}

	r.NoRoute(func(c *gin.Context) {
		writeError(c, http.StatusNotFound, "route not found")
	})
	return r
}
