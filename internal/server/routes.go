package server

import (
	"net/http"
	"net/http/pprof"

	"github.com/haskel/raimetrics/internal/server/middleware"
)

func (s *Server) setupRoutes() *http.ServeMux {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /{$}", s.handleInfo)
	mux.HandleFunc("GET /health", s.handleHealth)

	mux.HandleFunc("GET /v1/metrics/values", s.handleValues)
	mux.HandleFunc("GET /v1/metrics/info", s.handleMetricInfo)
	mux.HandleFunc("GET /v1/metrics/{group}/{metric}", s.handleMetric)
	mux.HandleFunc("GET /v1/model", s.handleModel)
	mux.HandleFunc("GET /v1/project", s.handleProject)
	mux.HandleFunc("GET /v1/measurements", s.handleMeasurements)
	mux.HandleFunc("GET /v1/measurements/latest", s.handleLatestMeasurement)
	mux.HandleFunc("GET /v1/certificates/values", s.handleCertificateValues)
	mux.HandleFunc("GET /v1/certificates/info", s.handleCertificateInfo)
	mux.HandleFunc("GET /v1/certificates/{name}", s.handleCertificate)

	mux.HandleFunc("POST /v1/compute", s.handleCompute)
	mux.HandleFunc("POST /v1/update", s.handleUpdate)
	mux.HandleFunc("POST /v1/reset", s.handleReset)
	mux.HandleFunc("POST /v1/export", s.handleExport)

	if s.metrics != nil {
		mux.Handle("GET /metrics", s.metrics)
	}

	s.setupProfilingRoutes(mux)

	return mux
}

// setupProfilingRoutes mounts net/http/pprof behind token authentication.
func (s *Server) setupProfilingRoutes(mux *http.ServeMux) {
	if !s.config.Server.Profiling.Enabled {
		return
	}

	auth := middleware.TokenAuth(&middleware.TokenAuthConfig{
		Token:    s.config.Server.Profiling.Token,
		Fallback: s.authConfig,
	})

	s.logger.Info("profiling endpoints enabled at /debug/pprof/ (auth required)")
	mux.Handle("GET /debug/pprof/{$}", auth(http.HandlerFunc(pprof.Index)))
	mux.Handle("GET /debug/pprof/cmdline", auth(http.HandlerFunc(pprof.Cmdline)))
	mux.Handle("GET /debug/pprof/profile", auth(http.HandlerFunc(pprof.Profile)))
	mux.Handle("GET /debug/pprof/symbol", auth(http.HandlerFunc(pprof.Symbol)))
	mux.Handle("POST /debug/pprof/symbol", auth(http.HandlerFunc(pprof.Symbol)))
	mux.Handle("GET /debug/pprof/trace", auth(http.HandlerFunc(pprof.Trace)))
	mux.Handle("GET /debug/pprof/{name...}", auth(http.HandlerFunc(pprof.Index)))
}
