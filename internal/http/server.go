// Package http serves link resolution over HTTP together with health and Prometheus endpoints.
package http

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"songmeta/internal/core"
	"songmeta/internal/flood"
	"songmeta/pkg/musiclink"
	"songmeta/pkg/text"
)

const (
	resolveRoute    = "/resolve"
	serviceName     = "songmeta"
	shutdownTimeout = 10 * time.Second
)

// serviceStatus is the /healthz and /readyz body; field order is the wire order.
type serviceStatus struct {
	Status  string `json:"status"`
	Service string `json:"service"`
}

type Server struct {
	config    *core.ServerConfig
	logger    *zap.Logger
	server    *http.Server
	metrics   *Metrics
	resolver  musiclink.Resolver
	floodgate *flood.Floodgate
	parser    *text.Parser
}

type Metrics struct {
	ResolutionsTotal *prometheus.CounterVec
	EnrichmentsTotal *prometheus.CounterVec
	RateLimitedTotal prometheus.Counter
	ResolveDuration  prometheus.Histogram
	registry         *prometheus.Registry
}

// NewMetrics creates the serve mode metrics on a private registry.
func NewMetrics() *Metrics {
	metrics := &Metrics{
		ResolutionsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "songmeta_resolutions_total",
				Help: "Total number of link resolutions",
			},
			[]string{"service", "status"},
		),
		EnrichmentsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "songmeta_enrichments_total",
				Help: "Total number of VK API enrichment calls",
			},
			[]string{"status"},
		),
		RateLimitedTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "songmeta_rate_limited_total",
				Help: "Total number of requests rejected by the flood gate",
			},
		),
		ResolveDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "songmeta_resolve_duration_seconds",
				Help:    "Time spent resolving a link",
				Buckets: prometheus.DefBuckets,
			},
		),
		registry: prometheus.NewRegistry(),
	}

	metrics.registry.MustRegister(
		metrics.ResolutionsTotal,
		metrics.EnrichmentsTotal,
		metrics.RateLimitedTotal,
		metrics.ResolveDuration,
	)

	return metrics
}

// ObserveEnrichment counts an enrichment outcome; it matches musiclink.EnrichObserver.
func (m *Metrics) ObserveEnrichment(status string) {
	m.EnrichmentsTotal.WithLabelValues(status).Inc()
}

// Registry returns the registry the metrics are served from.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// NewServer creates the HTTP server. A nil floodgate disables rate limiting.
func NewServer(config *core.ServerConfig, resolver musiclink.Resolver, metrics *Metrics,
	floodgate *flood.Floodgate, logger *zap.Logger) *Server {
	if metrics == nil {
		metrics = NewMetrics()
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	s := &Server{
		config:    config,
		logger:    logger,
		metrics:   metrics,
		resolver:  resolver,
		floodgate: floodgate,
		parser:    text.NewParser(),
	}
	s.server = createHTTPServer(config, s.setupRoutes())

	return s
}

func createHTTPServer(config *core.ServerConfig, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:         fmt.Sprintf("%s:%d", config.Host, config.Port),
		Handler:      handler,
		ReadTimeout:  config.ReadTimeout,
		WriteTimeout: config.WriteTimeout,
	}
}

func (s *Server) setupRoutes() *http.ServeMux {
	mux := http.NewServeMux()

	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, s.logger, http.StatusOK, serviceStatus{Status: "ok", Service: serviceName})
	})

	mux.HandleFunc("/readyz", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, s.logger, http.StatusOK, serviceStatus{Status: "ready", Service: serviceName})
	})

	mux.Handle("/metrics", promhttp.HandlerFor(s.metrics.registry, promhttp.HandlerOpts{}))

	mux.HandleFunc(resolveRoute, s.handleResolve)

	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/" {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "text/html")
		w.WriteHeader(http.StatusOK)
		if _, err := w.Write([]byte(indexPage)); err != nil {
			s.logger.Debug("Failed to write index page", zap.Error(err))
		}
	})

	return mux
}

const indexPage = `<!DOCTYPE html>
<html>
<head>
    <title>songmeta</title>
    <style>
        body { font-family: Arial, sans-serif; margin: 40px; }
        .endpoint { margin: 10px 0; }
        .endpoint a { text-decoration: none; color: #0066cc; }
    </style>
</head>
<body>
    <h1>songmeta</h1>
    <p>Resolves Yandex Music, VK Music and MTS Music links into track and album metadata.</p>

    <h2>Endpoints</h2>
    <div class="endpoint">🎵 <code>/resolve?url=...</code> - Resolve a link</div>
    <div class="endpoint">📊 <a href="/metrics">Metrics</a> - Prometheus metrics</div>
    <div class="endpoint">💚 <a href="/healthz">Health</a> - Health check</div>
    <div class="endpoint">✅ <a href="/readyz">Ready</a> - Readiness check</div>
</body>
</html>`

func (s *Server) handleResolve(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.Header().Set("Allow", http.MethodGet)
		writeJSON(w, s.logger, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return
	}

	if client := clientID(r); s.floodgate != nil && !s.floodgate.Allow(resolveRoute, client) {
		s.metrics.RateLimitedTotal.Inc()
		retryAfter := int(math.Ceil(s.floodgate.RetryAfter(resolveRoute, client).Seconds()))
		w.Header().Set("Retry-After", strconv.Itoa(max(retryAfter, 1)))
		writeJSON(w, s.logger, http.StatusTooManyRequests, map[string]string{"error": "rate limit exceeded"})
		return
	}

	link, ok := s.parser.FirstLink(r.URL.Query().Get("url"))
	if !ok {
		writeJSON(w, s.logger, http.StatusBadRequest, map[string]string{"error": "missing or invalid url parameter"})
		return
	}

	service := string(musiclink.Classify(link).Service)
	start := time.Now()
	meta, err := s.resolver.Resolve(r.Context(), link)
	s.metrics.ResolveDuration.Observe(time.Since(start).Seconds())

	if err != nil {
		report := core.NewErrorReport(link, err)
		s.metrics.ResolutionsTotal.WithLabelValues(service, report.Kind).Inc()
		s.logger.Error("Failed to resolve link",
			zap.String("url", link),
			zap.String("final_url", report.FinalURL),
			zap.String("kind", report.Kind),
			zap.Error(err))
		writeJSON(w, s.logger, http.StatusBadGateway, report)
		return
	}

	s.metrics.ResolutionsTotal.WithLabelValues(string(meta.Service), "ok").Inc()
	s.logger.Info("Resolved link",
		zap.String("url", link),
		zap.String("service", string(meta.Service)),
		zap.String("kind", string(meta.Kind)))
	writeJSON(w, s.logger, http.StatusOK, meta)
}

// clientID keys the flood gate by remote IP.
func clientID(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

func writeJSON(w http.ResponseWriter, logger *zap.Logger, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	encoder := json.NewEncoder(w)
	encoder.SetEscapeHTML(false)
	if err := encoder.Encode(v); err != nil {
		logger.Debug("Failed to write response", zap.Error(err))
	}
}

func (s *Server) Start(ctx context.Context) error {
	s.logger.Info("Starting HTTP server",
		zap.String("addr", s.server.Addr))

	go func() {
		<-ctx.Done()
		s.logger.Info("Shutting down HTTP server")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		if err := s.server.Shutdown(shutdownCtx); err != nil {
			s.logger.Error("Failed to shutdown HTTP server gracefully", zap.Error(err))
		}
	}()

	if err := s.server.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("HTTP server failed: %w", err)
	}

	return nil
}

func (s *Server) GetMetrics() *Metrics {
	return s.metrics
}
