package metrics

import (
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type Config struct {
	ServiceName string
	Environment string
}

// DomainMetrics counts lifecycle events of plans, scores, negotiations and
// reminders. A nil *DomainMetrics is valid and records nothing.
type DomainMetrics struct {
	planTransitions    *prometheus.CounterVec
	scoreChanges       *prometheus.CounterVec
	scoreDelta         prometheus.Histogram
	negotiations       *prometheus.CounterVec
	reminders          *prometheus.CounterVec
	emailFailures      prometheus.Counter
	importRows         *prometheus.CounterVec
	httpRequestLatency *prometheus.HistogramVec
}

var (
	domainOnce    sync.Once
	domainMetrics *DomainMetrics
)

func Domain() *DomainMetrics {
	return DomainWithConfig(Config{})
}

func DomainWithConfig(cfg Config) *DomainMetrics {
	domainOnce.Do(func() {
		domainMetrics = NewDomainMetrics(prometheus.DefaultRegisterer, cfg)
	})
	return domainMetrics
}

func NewDomainMetrics(registerer prometheus.Registerer, cfg Config) *DomainMetrics {
	if registerer == nil {
		registerer = prometheus.DefaultRegisterer
	}

	serviceName := strings.TrimSpace(cfg.ServiceName)
	if serviceName == "" {
		serviceName = "liaison"
	}
	environment := strings.TrimSpace(cfg.Environment)
	if environment == "" {
		environment = "unknown"
	}
	constLabels := prometheus.Labels{
		"service": serviceName,
		"env":     environment,
	}

	m := &DomainMetrics{
		planTransitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name:        "liaison_plan_transitions_total",
			Help:        "Payment plan status transitions.",
			ConstLabels: constLabels,
		}, []string{"from", "to"}),
		scoreChanges: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name:        "liaison_score_changes_total",
			Help:        "Reputation score updates by outcome and resulting risk tier.",
			ConstLabels: constLabels,
		}, []string{"outcome", "tier"}),
		scoreDelta: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:        "liaison_score_delta",
			Help:        "Signed reputation score change per resolved obligation.",
			Buckets:     []float64{-50, -25, -15, -10, -5, 0, 5, 10, 15, 25},
			ConstLabels: constLabels,
		}),
		negotiations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name:        "liaison_negotiation_actions_total",
			Help:        "Negotiation protocol actions by result.",
			ConstLabels: constLabels,
		}, []string{"action", "result"}),
		reminders: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name:        "liaison_reminders_total",
			Help:        "Reminder notices by tier.",
			ConstLabels: constLabels,
		}, []string{"tier"}),
		emailFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Name:        "liaison_email_failures_total",
			Help:        "Outbound email calls that failed and were skipped.",
			ConstLabels: constLabels,
		}),
		importRows: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name:        "liaison_statement_import_rows_total",
			Help:        "Payment statement rows processed by result.",
			ConstLabels: constLabels,
		}, []string{"result"}), // applied | skipped | failed
		httpRequestLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:        "liaison_http_request_duration_seconds",
			Help:        "HTTP request latency by route and status.",
			Buckets:     prometheus.DefBuckets,
			ConstLabels: constLabels,
		}, []string{"route", "status"}),
	}

	registerer.MustRegister(
		m.planTransitions,
		m.scoreChanges,
		m.scoreDelta,
		m.negotiations,
		m.reminders,
		m.emailFailures,
		m.importRows,
		m.httpRequestLatency,
	)
	return m
}

func (m *DomainMetrics) PlanTransition(from, to string) {
	if m == nil {
		return
	}
	m.planTransitions.WithLabelValues(from, to).Inc()
}

func (m *DomainMetrics) ScoreChange(outcome, tier string, delta float64) {
	if m == nil {
		return
	}
	m.scoreChanges.WithLabelValues(outcome, tier).Inc()
	m.scoreDelta.Observe(delta)
}

func (m *DomainMetrics) Negotiation(action string, err error) {
	if m == nil {
		return
	}
	result := "ok"
	if err != nil {
		result = "error"
	}
	m.negotiations.WithLabelValues(action, result).Inc()
}

func (m *DomainMetrics) Reminder(tier string) {
	if m == nil {
		return
	}
	m.reminders.WithLabelValues(tier).Inc()
}

func (m *DomainMetrics) EmailFailure() {
	if m == nil {
		return
	}
	m.emailFailures.Inc()
}

func (m *DomainMetrics) ImportRow(result string) {
	if m == nil {
		return
	}
	m.importRows.WithLabelValues(result).Inc()
}

// GinMiddleware records request latency per matched route.
func GinMiddleware(m *DomainMetrics) gin.HandlerFunc {
	return func(c *gin.Context) {
		if m == nil {
			c.Next()
			return
		}
		start := time.Now()
		c.Next()
		route := c.FullPath()
		if route == "" {
			route = "unknown"
		}
		m.httpRequestLatency.WithLabelValues(route, http.StatusText(c.Writer.Status())).Observe(time.Since(start).Seconds())
	}
}

func Handler() http.Handler {
	return promhttp.Handler()
}
