package observability

import (
	"context"
	"net/http"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"

	"github.com/yungbote/labtwin-backend/internal/platform/logger"
)

// Metrics is nil-safe: every method on a nil *Metrics is a no-op so callers
// never need to check whether metrics are enabled.
type Metrics struct {
	registry *prometheus.Registry

	apiRequests *prometheus.CounterVec
	apiLatency  *prometheus.HistogramVec
	apiInflight prometheus.Gauge

	llmRequests *prometheus.CounterVec
	llmLatency  *prometheus.HistogramVec
	llmTokens   *prometheus.CounterVec
	llmCost     *prometheus.CounterVec

	routerSelections *prometheus.CounterVec
	routerFallbacks  *prometheus.CounterVec
	localQueueDepth  prometheus.Gauge
	providerUp       *prometheus.GaugeVec

	policyDecisions *prometheus.CounterVec
	comprehension   *prometheus.CounterVec
	busEvents       *prometheus.CounterVec

	dbStats   *prometheus.GaugeVec
	redisUp   prometheus.Gauge
	redisPing prometheus.Gauge
}

var (
	initOnce sync.Once
	instance *Metrics
)

func Enabled() bool {
	v := strings.TrimSpace(os.Getenv("METRICS_ENABLED"))
	if v == "" {
		return false
	}
	return strings.EqualFold(v, "true") || v == "1" || strings.EqualFold(v, "yes")
}

func Current() *Metrics {
	return instance
}

func scrapeInterval() time.Duration {
	v := strings.TrimSpace(os.Getenv("METRICS_SCRAPE_INTERVAL_SECONDS"))
	if v == "" {
		return 10 * time.Second
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		return 10 * time.Second
	}
	return time.Duration(n) * time.Second
}

// Init builds the process metrics once. It returns nil when METRICS_ENABLED
// is off.
func Init(log *logger.Logger) *Metrics {
	if !Enabled() {
		return nil
	}
	initOnce.Do(func() {
		reg := prometheus.NewRegistry()
		reg.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)
		instance = NewMetrics(reg)
		if log != nil {
			log.Info("metrics initialized")
		}
	})
	return instance
}

// NewMetrics registers every collector on reg. Tests pass a fresh registry.
func NewMetrics(reg *prometheus.Registry) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		registry: reg,
		apiRequests: f.NewCounterVec(prometheus.CounterOpts{
			Name: "labtwin_api_requests_total",
			Help: "Total API requests by method/route/status.",
		}, []string{"method", "route", "status"}),
		apiLatency: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "labtwin_api_request_duration_seconds",
			Help:    "API request latency in seconds by method/route/status.",
			Buckets: []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10, 30},
		}, []string{"method", "route", "status"}),
		apiInflight: f.NewGauge(prometheus.GaugeOpts{
			Name: "labtwin_api_inflight_requests",
			Help: "In-flight API requests.",
		}),
		llmRequests: f.NewCounterVec(prometheus.CounterOpts{
			Name: "labtwin_llm_requests_total",
			Help: "Provider calls by provider/model/request type/outcome.",
		}, []string{"provider", "model", "request_type", "status"}),
		llmLatency: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "labtwin_llm_request_duration_seconds",
			Help:    "Provider call latency in seconds.",
			Buckets: []float64{0.1, 0.25, 0.5, 1, 2, 5, 10, 20, 30, 60},
		}, []string{"provider", "model", "status"}),
		llmTokens: f.NewCounterVec(prometheus.CounterOpts{
			Name: "labtwin_llm_tokens_total",
			Help: "Tokens consumed by provider/model/kind.",
		}, []string{"provider", "model", "kind"}),
		llmCost: f.NewCounterVec(prometheus.CounterOpts{
			Name: "labtwin_llm_cost_usd_total",
			Help: "Estimated provider spend in USD.",
		}, []string{"provider", "model"}),
		routerSelections: f.NewCounterVec(prometheus.CounterOpts{
			Name: "labtwin_router_selections_total",
			Help: "Primary provider selections by provider/reason.",
		}, []string{"provider", "reason"}),
		routerFallbacks: f.NewCounterVec(prometheus.CounterOpts{
			Name: "labtwin_router_fallbacks_total",
			Help: "Fallback attempts by cascade level and outcome.",
		}, []string{"level", "status"}),
		localQueueDepth: f.NewGauge(prometheus.GaugeOpts{
			Name: "labtwin_local_queue_depth",
			Help: "Requests waiting for the local provider.",
		}),
		providerUp: f.NewGaugeVec(prometheus.GaugeOpts{
			Name: "labtwin_provider_up",
			Help: "1 when the last health probe saw the provider available.",
		}, []string{"provider"}),
		policyDecisions: f.NewCounterVec(prometheus.CounterOpts{
			Name: "labtwin_policy_decisions_total",
			Help: "Hint policy outcomes by reason.",
		}, []string{"granted", "reason"}),
		comprehension: f.NewCounterVec(prometheus.CounterOpts{
			Name: "labtwin_comprehension_checks_total",
			Help: "Comprehension answers graded, by outcome.",
		}, []string{"passed"}),
		busEvents: f.NewCounterVec(prometheus.CounterOpts{
			Name: "labtwin_bus_events_total",
			Help: "Events published on the bus by type and status.",
		}, []string{"type", "status"}),
		dbStats: f.NewGaugeVec(prometheus.GaugeOpts{
			Name: "labtwin_db_pool",
			Help: "database/sql pool statistics.",
		}, []string{"stat"}),
		redisUp: f.NewGauge(prometheus.GaugeOpts{
			Name: "labtwin_redis_up",
			Help: "1 when the last redis ping succeeded.",
		}),
		redisPing: f.NewGauge(prometheus.GaugeOpts{
			Name: "labtwin_redis_ping_seconds",
			Help: "Latency of the last redis ping.",
		}),
	}
}

func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusServiceUnavailable)
		})
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

func (m *Metrics) ObserveAPI(method, route, status string, dur time.Duration) {
	if m == nil {
		return
	}
	if method == "" {
		method = "UNKNOWN"
	}
	if route == "" {
		route = "unknown"
	}
	if status == "" {
		status = "0"
	}
	m.apiRequests.WithLabelValues(method, route, status).Inc()
	m.apiLatency.WithLabelValues(method, route, status).Observe(dur.Seconds())
}

func (m *Metrics) ApiInflightInc() {
	if m == nil {
		return
	}
	m.apiInflight.Inc()
}

func (m *Metrics) ApiInflightDec() {
	if m == nil {
		return
	}
	m.apiInflight.Dec()
}

// ObserveLLMRequest records one provider call, successful or not.
func (m *Metrics) ObserveLLMRequest(provider, model, requestType, status string, dur time.Duration, promptTokens, completionTokens int, cost float64) {
	if m == nil {
		return
	}
	provider = orUnknown(provider)
	model = orUnknown(model)
	requestType = orUnknown(requestType)
	status = orUnknown(status)
	m.llmRequests.WithLabelValues(provider, model, requestType, status).Inc()
	if dur > 0 {
		m.llmLatency.WithLabelValues(provider, model, status).Observe(dur.Seconds())
	}
	if promptTokens > 0 {
		m.llmTokens.WithLabelValues(provider, model, "input").Add(float64(promptTokens))
	}
	if completionTokens > 0 {
		m.llmTokens.WithLabelValues(provider, model, "output").Add(float64(completionTokens))
	}
	if cost > 0 {
		m.llmCost.WithLabelValues(provider, model).Add(cost)
	}
}

func (m *Metrics) IncRouterSelection(provider, reason string) {
	if m == nil {
		return
	}
	m.routerSelections.WithLabelValues(orUnknown(provider), orUnknown(reason)).Inc()
}

func (m *Metrics) IncRouterFallback(level int, ok bool) {
	if m == nil {
		return
	}
	m.routerFallbacks.WithLabelValues(strconv.Itoa(level), okLabel(ok)).Inc()
}

func (m *Metrics) SetLocalQueueDepth(n int) {
	if m == nil {
		return
	}
	m.localQueueDepth.Set(float64(n))
}

func (m *Metrics) SetProviderUp(provider string, up bool) {
	if m == nil {
		return
	}
	v := 0.0
	if up {
		v = 1
	}
	m.providerUp.WithLabelValues(orUnknown(provider)).Set(v)
}

func (m *Metrics) IncPolicyDecision(granted bool, reason string) {
	if m == nil {
		return
	}
	m.policyDecisions.WithLabelValues(strconv.FormatBool(granted), orUnknown(reason)).Inc()
}

func (m *Metrics) IncComprehension(passed bool) {
	if m == nil {
		return
	}
	m.comprehension.WithLabelValues(strconv.FormatBool(passed)).Inc()
}

func (m *Metrics) IncBusEvent(eventType string, ok bool) {
	if m == nil {
		return
	}
	m.busEvents.WithLabelValues(orUnknown(eventType), okLabel(ok)).Inc()
}

func (m *Metrics) StartDBCollector(ctx context.Context, log *logger.Logger, db *gorm.DB) {
	if m == nil || db == nil {
		return
	}
	interval := scrapeInterval()
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				sqlDB, err := db.DB()
				if err != nil {
					if log != nil {
						log.Warn("metrics: db stats unavailable", "error", err)
					}
					continue
				}
				stats := sqlDB.Stats()
				m.dbStats.WithLabelValues("open_connections").Set(float64(stats.OpenConnections))
				m.dbStats.WithLabelValues("in_use").Set(float64(stats.InUse))
				m.dbStats.WithLabelValues("idle").Set(float64(stats.Idle))
				m.dbStats.WithLabelValues("wait_count").Set(float64(stats.WaitCount))
				m.dbStats.WithLabelValues("wait_duration_seconds").Set(stats.WaitDuration.Seconds())
				m.dbStats.WithLabelValues("max_open_connections").Set(float64(stats.MaxOpenConnections))
			}
		}
	}()
}

func (m *Metrics) StartRedisCollector(ctx context.Context, log *logger.Logger, rdb *redis.Client) {
	if m == nil || rdb == nil {
		return
	}
	interval := scrapeInterval()
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				start := time.Now()
				if err := rdb.Ping(ctx).Err(); err != nil {
					m.redisUp.Set(0)
					if log != nil {
						log.Warn("metrics: redis ping failed", "error", err)
					}
					continue
				}
				m.redisUp.Set(1)
				m.redisPing.Set(time.Since(start).Seconds())
			}
		}
	}()
}

func orUnknown(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return "unknown"
	}
	return s
}

func okLabel(ok bool) string {
	if ok {
		return "ok"
	}
	return "error"
}
