// Package main is the entry point for the affiliate performance dashboard
// API: it loads affiliate activity, scores and ranks it, and simulates
// commission payouts to selected affiliates through the payment collaborator.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"

	"github.com/yourorg/affiliate-performance/internal/circuitbreaker"
	"github.com/yourorg/affiliate-performance/internal/config"
	"github.com/yourorg/affiliate-performance/internal/datasource"
	"github.com/yourorg/affiliate-performance/internal/model"
	"github.com/yourorg/affiliate-performance/internal/otel"
	"github.com/yourorg/affiliate-performance/internal/payment"
	"github.com/yourorg/affiliate-performance/internal/payout"
	"github.com/yourorg/affiliate-performance/internal/report"
	"github.com/yourorg/affiliate-performance/internal/scoring"
	"github.com/yourorg/affiliate-performance/internal/screening"
	"github.com/yourorg/affiliate-performance/internal/security"
)

// startTime records when the service was initialized for uptime reporting
var startTime = time.Now()

// Server represents the dashboard API server instance
type Server struct {
	cfg      config.Config
	policy   scoring.Policy
	source   datasource.Source
	accounts *datasource.AccountSource
	payer    payout.Payer
	breaker  *circuitbreaker.CircuitBreaker
	exporter *report.Exporter
	metrics  *serverMetrics
	limiter  *rate.Limiter
	server   *http.Server
}

// serverMetrics holds Prometheus metrics for the server
type serverMetrics struct {
	requestCounter  *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	payoutCounter   *prometheus.CounterVec
	totalCommission prometheus.Gauge
	affiliateCount  prometheus.Gauge
}

// registerMetrics sets up Prometheus metrics collection
func registerMetrics() *serverMetrics {
	m := &serverMetrics{
		requestCounter: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "affiliate_requests_total",
				Help: "Total number of API requests processed",
			},
			[]string{"endpoint", "status"},
		),
		requestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "affiliate_request_duration_seconds",
				Help:    "Request duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"endpoint"},
		),
		payoutCounter: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "affiliate_payouts_total",
				Help: "Total number of payout requests dispatched",
			},
			[]string{"status"},
		),
		totalCommission: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "affiliate_total_commission",
				Help: "Total commission across the last scored ranking",
			},
		),
		affiliateCount: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "affiliate_record_count",
				Help: "Number of affiliate records in the last scored ranking",
			},
		),
	}

	prometheus.MustRegister(
		m.requestCounter,
		m.requestDuration,
		m.payoutCounter,
		m.totalCommission,
		m.affiliateCount,
	)

	return m
}

// main is the entry point for the application
func main() {
	if err := godotenv.Load(); err != nil {
		logrus.Debug("No .env file found, using process environment")
	}

	setupLogging()

	cfg := config.Load()

	shutdownTracer := otel.InitTracer(cfg)
	defer shutdownTracer()

	server := NewServer(cfg)
	server.Start()
}

// NewServer wires the record sources, scoring policy, payment collaborator
// and reporting from configuration.
func NewServer(cfg config.Config) *Server {
	policy := scoring.Policy{
		CommissionRate:      cfg.CommissionRate,
		WeightConversions:   cfg.WeightConversions,
		WeightRevenue:       cfg.WeightRevenue,
		WeightAvgOrderValue: cfg.WeightAvgOrderValue,
	}
	if err := policy.Validate(); err != nil {
		logrus.Fatalf("Invalid scoring policy: %v", err)
	}

	var sources []datasource.Source
	sources = append(sources, datasource.NewCSVSource(cfg.DataFile))
	if cfg.AffiliateAPIURL != "" {
		sources = append(sources, datasource.NewHTTPSource(cfg.AffiliateAPIURL, cfg.AffiliateAPIKey))
	}
	var source datasource.Source
	if len(sources) == 1 {
		source = sources[0]
	} else {
		source = datasource.NewMultiSource(sources...)
	}

	var accounts *datasource.AccountSource
	if cfg.AccountFile != "" {
		accounts = datasource.NewAccountSource(cfg.AccountFile)
	} else {
		logrus.Warn("No account file configured, payouts will use placeholder routing details")
	}

	breaker := circuitbreaker.New(cfg.BreakerThreshold).
		WithResetDelay(cfg.CircuitResetDelay).
		WithTripCallback(func(reason string) {
			logrus.Warnf("Payment circuit tripped: %s", reason)
		})

	payer := payment.NewClient(payment.Options{
		BaseURL: cfg.PaymanURL,
		APIKey:  cfg.PaymanAPIKey,
		Timeout: cfg.PaymentTimeout,
		Breaker: breaker,
	})

	var exporter *report.Exporter
	if cfg.ReportWebhookURL != "" {
		signer, err := security.New(security.Options{
			SignatureEnabled:  true,
			SignatureValidity: 24 * time.Hour,
		})
		if err != nil {
			logrus.Warnf("Failed to initialize report signer: %v", err)
		}
		exporter = report.NewExporter(report.ExporterConfig{
			Enabled:       true,
			WebhookURL:    cfg.ReportWebhookURL,
			WebhookAPIKey: cfg.ReportWebhookAPIKey,
		}, signer)
	}

	logrus.WithFields(logrus.Fields{
		"port":            cfg.Port,
		"data_file":       cfg.DataFile,
		"commission_rate": cfg.CommissionRate,
		"screening":       cfg.EnableScreening,
		"report_webhook":  cfg.ReportWebhookURL != "",
	}).Info("Server initialized")

	return &Server{
		cfg:      cfg,
		policy:   policy,
		source:   source,
		accounts: accounts,
		payer:    payer,
		breaker:  breaker,
		exporter: exporter,
		metrics:  registerMetrics(),
		limiter:  rate.NewLimiter(rate.Limit(config.GetEnvAsFloat("RATE_LIMIT_RPS", 10.0)), config.GetEnvAsInt("RATE_LIMIT_BURST", 20)),
	}
}

// Start begins the HTTP server and sets up graceful shutdown
func (s *Server) Start() {
	mux := http.NewServeMux()

	mux.HandleFunc("/rankings", s.handleRankings) // Scored, ranked affiliate table
	mux.HandleFunc("/export", s.handleExport)     // CSV download of the ranked table
	mux.HandleFunc("/payouts", s.handlePayouts)   // Run a payout batch
	mux.HandleFunc("/health", s.handleHealth)     // Health check endpoint
	mux.HandleFunc("/status", s.handleStatus)     // Service status endpoint
	mux.HandleFunc("/metrics", promhttp.Handler().ServeHTTP)

	s.server = &http.Server{
		Addr:         ":" + s.cfg.Port,
		Handler:      mux,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logrus.Infof("Server starting on port %s", s.cfg.Port)
		if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logrus.Fatalf("Error starting server: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logrus.Info("Server shutting down...")
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := s.server.Shutdown(ctx); err != nil {
		logrus.Fatalf("Server shutdown failed: %v", err)
	}

	if s.exporter != nil {
		s.exporter.Stop()
	}

	logrus.Info("Server stopped")
}

// loadRanking loads the affiliate records and scores them under the active policy.
func (s *Server) loadRanking(ctx context.Context) (model.RankedList, []model.AffiliateRecord, error) {
	records, err := s.source.Load(ctx)
	if err != nil {
		otel.RecordError(ctx, err)
		return nil, nil, err
	}

	ranked, err := scoring.Score(records, s.policy)
	if err != nil {
		otel.RecordError(ctx, err)
		return nil, nil, err
	}

	s.metrics.affiliateCount.Set(float64(len(ranked)))
	s.metrics.totalCommission.Set(scoring.TotalCommission(ranked))

	return ranked, records, nil
}

// handleRankings serves the scored, ranked affiliate table with headline
// metrics and screening flags.
func (s *Server) handleRankings(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	if !s.allow(w, r, http.MethodGet, "rankings") {
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), s.cfg.RequestTimeout)
	defer cancel()

	ranked, records, err := s.loadRanking(ctx)
	if err != nil {
		s.errorResponse(w, "rankings", statusFor(err), err.Error())
		return
	}

	var flags []screening.Flag
	if s.cfg.EnableScreening {
		flags = screening.Screen(records, screening.Options{
			EnableOutlierDetection:  true,
			OutlierIQRMultiplier:    s.cfg.ScreeningIQRMultiplier,
			MaxRevenuePerConversion: s.cfg.MaxRevenuePerConversion,
			MinConversionsForRatio:  5,
		})
	}

	s.metrics.requestCounter.WithLabelValues("rankings", "success").Inc()
	s.metrics.requestDuration.WithLabelValues("rankings").Observe(time.Since(start).Seconds())

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"rankings": ranked,
		"meta": map[string]interface{}{
			"total_affiliates": len(ranked),
			"total_revenue":    scoring.TotalRevenue(ranked),
			"total_commission": scoring.TotalCommission(ranked),
			"flags":            flags,
			"latency_ms":       time.Since(start).Milliseconds(),
		},
	})
}

// handleExport serves the ranked table as a CSV download.
func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	if !s.allow(w, r, http.MethodGet, "export") {
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), s.cfg.RequestTimeout)
	defer cancel()

	ranked, _, err := s.loadRanking(ctx)
	if err != nil {
		s.errorResponse(w, "export", statusFor(err), err.Error())
		return
	}

	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition", `attachment; filename="affiliate_performance.csv"`)
	if err := datasource.ExportCSV(w, ranked); err != nil {
		logrus.Warnf("Error streaming CSV export: %v", err)
		return
	}
	s.metrics.requestCounter.WithLabelValues("export", "success").Inc()
}

// payoutRequestBody selects either the top K performers or an explicit list
// of payee names.
type payoutRequestBody struct {
	TopK  *int     `json:"top_k,omitempty"`
	Names []string `json:"names,omitempty"`
}

// handlePayouts runs a payout batch over the current ranking.
func (s *Server) handlePayouts(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	if !s.allow(w, r, http.MethodPost, "payouts") {
		return
	}

	var body payoutRequestBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		s.errorResponse(w, "payouts", http.StatusBadRequest, "invalid request body")
		return
	}

	var selection payout.Selection
	switch {
	case body.TopK != nil && len(body.Names) > 0:
		s.errorResponse(w, "payouts", http.StatusBadRequest, "specify either top_k or names, not both")
		return
	case body.TopK != nil:
		selection = payout.TopK(*body.TopK)
	case len(body.Names) > 0:
		selection = payout.ByName(body.Names...)
	default:
		s.errorResponse(w, "payouts", http.StatusBadRequest, "specify top_k or names")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), s.cfg.RequestTimeout)
	defer cancel()

	ranked, _, err := s.loadRanking(ctx)
	if err != nil {
		s.errorResponse(w, "payouts", statusFor(err), err.Error())
		return
	}

	outcomes, misses := payout.SelectAndPay(ctx, ranked, selection, s.payer, payout.Options{
		Currency: s.cfg.Currency,
		Accounts: s.accountResolver(ctx),
	})

	succeeded := 0
	for _, o := range outcomes {
		if o.Succeeded() {
			succeeded++
			s.metrics.payoutCounter.WithLabelValues("success").Inc()
		} else {
			s.metrics.payoutCounter.WithLabelValues("failed").Inc()
		}
	}

	if s.exporter != nil {
		s.exporter.Add(outcomes)
	}

	s.metrics.requestCounter.WithLabelValues("payouts", "success").Inc()
	s.metrics.requestDuration.WithLabelValues("payouts").Observe(time.Since(start).Seconds())

	warnings := make([]string, 0, len(misses))
	for _, m := range misses {
		warnings = append(warnings, m.String())
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"outcomes": outcomes,
		"summary": map[string]interface{}{
			"dispatched": len(outcomes),
			"succeeded":  succeeded,
			"failed":     len(outcomes) - succeeded,
			"warnings":   warnings,
		},
	})
}

// accountResolver builds the routing lookup for a payout run. Without an
// account table every recipient gets the documented placeholder account.
func (s *Server) accountResolver(ctx context.Context) payout.AccountResolver {
	if s.accounts == nil {
		return nil
	}

	table, err := s.accounts.Load(ctx)
	if err != nil {
		logrus.Warnf("Account table unavailable, using placeholder routing details: %v", err)
		return nil
	}

	return func(affiliateID, name string) model.PayoutAccount {
		if acct, ok := table[affiliateID]; ok && acct.IsComplete() {
			return acct
		}
		return payout.PlaceholderAccount(name)
	}
}

// handleHealth is a simple health check endpoint
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status":    "OK",
		"version":   "1.0.0",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

// handleStatus provides detailed service status information
func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":  "operational",
		"uptime":  time.Since(startTime).String(),
		"version": "1.0.0",
		"configuration": map[string]interface{}{
			"commission_rate":        s.cfg.CommissionRate,
			"weight_conversions":     s.cfg.WeightConversions,
			"weight_revenue":         s.cfg.WeightRevenue,
			"weight_avg_order_value": s.cfg.WeightAvgOrderValue,
			"screening":              s.cfg.EnableScreening,
		},
		"payment_circuit": s.breaker.GetState().String(),
	})
}

// allow applies method and rate-limit gates common to the API endpoints.
func (s *Server) allow(w http.ResponseWriter, r *http.Request, method, endpoint string) bool {
	if r.Method != method {
		s.errorResponse(w, endpoint, http.StatusMethodNotAllowed, "method not allowed")
		return false
	}
	if !s.limiter.Allow() {
		s.errorResponse(w, endpoint, http.StatusTooManyRequests, "rate limit exceeded")
		return false
	}
	return true
}

// errorResponse returns a formatted error response and tracks it in metrics.
func (s *Server) errorResponse(w http.ResponseWriter, endpoint string, statusCode int, errorMsg string) {
	logrus.Warn(errorMsg)
	s.metrics.requestCounter.WithLabelValues(endpoint, "error").Inc()
	writeJSON(w, statusCode, map[string]interface{}{
		"status": "error",
		"error":  errorMsg,
	})
}

// statusFor maps pipeline errors onto HTTP status codes.
func statusFor(err error) int {
	var dsErr *datasource.DataSourceError
	var invErr *scoring.InvalidRecordError
	switch {
	case errors.As(err, &dsErr):
		return http.StatusServiceUnavailable
	case errors.As(err, &invErr):
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}
