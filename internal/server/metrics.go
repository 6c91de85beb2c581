package server

import (
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type metricsRegistry struct {
	registry         *prometheus.Registry
	requestsTotal    *prometheus.CounterVec
	requestDuration  *prometheus.HistogramVec
	quoteProxyTotal  *prometheus.CounterVec
	jitSubmitsTotal  *prometheus.CounterVec
	jitStatusesTotal *prometheus.CounterVec
}

func newMetricsRegistry() *metricsRegistry {
	requests := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "flashswap_http_requests_total",
		Help: "HTTP requests by route and status code",
	}, []string{"method", "route", "code"})

	duration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "flashswap_http_request_duration_seconds",
		Help:    "HTTP request latency",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "route"})

	quotes := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "flashswap_quote_proxy_requests_total",
		Help: "Quote proxy requests by outcome",
	}, []string{"result"})

	submits := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "flashswap_jit_submissions_total",
		Help: "JIT submissions by outcome",
	}, []string{"result"})

	statuses := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "flashswap_jit_status_lookups_total",
		Help: "JIT status lookups by reported status",
	}, []string{"status"})

	r := prometheus.NewRegistry()
	r.MustRegister(requests, duration, quotes, submits, statuses)

	return &metricsRegistry{
		registry:         r,
		requestsTotal:    requests,
		requestDuration:  duration,
		quoteProxyTotal:  quotes,
		jitSubmitsTotal:  submits,
		jitStatusesTotal: statuses,
	}
}

func (m *metricsRegistry) handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// middleware counts every request under its route template, not the raw path.
func (m *metricsRegistry) middleware(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		timer := prometheus.NewTimer(m.requestDuration.WithLabelValues(c.Request().Method, c.Path()))
		err := next(c)
		timer.ObserveDuration()

		code := c.Response().Status
		if he, ok := err.(*echo.HTTPError); ok && !c.Response().Committed {
			code = he.Code
		}
		m.requestsTotal.WithLabelValues(c.Request().Method, c.Path(), strconv.Itoa(code)).Inc()
		return err
	}
}

func (m *metricsRegistry) incQuoteProxy(result string) {
	if m == nil {
		return
	}
	m.quoteProxyTotal.WithLabelValues(result).Inc()
}

func (m *metricsRegistry) incSubmit(result string) {
	if m == nil {
		return
	}
	m.jitSubmitsTotal.WithLabelValues(result).Inc()
}

func (m *metricsRegistry) incStatus(status string) {
	if m == nil {
		return
	}
	m.jitStatusesTotal.WithLabelValues(status).Inc()
}
