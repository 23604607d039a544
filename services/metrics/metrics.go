// Package metricssvc exposes Prometheus metrics about HTTP traffic and quiz attempts.
package metricssvc

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/trezcool/edunex/core/quiz"
)

const namespace = "edunex"

type Metrics struct {
	registry *prometheus.Registry

	requests        *prometheus.CounterVec
	latency         *prometheus.HistogramVec
	attemptsStarted prometheus.Counter
	attemptsGraded  *prometheus.CounterVec
	scores          prometheus.Histogram
}

var _ quiz.Observer = (*Metrics)(nil)

// New registers every collector on a fresh registry, along with the Go runtime and process collectors.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "HTTP requests by method, route and status code.",
		}, []string{"method", "route", "code"}),
		latency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request latencies by method and route.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route"}),
		attemptsStarted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "quiz",
			Name:      "attempts_started_total",
			Help:      "Quiz attempts started.",
		}),
		attemptsGraded: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "quiz",
			Name:      "attempts_graded_total",
			Help:      "Quiz attempt gradings, by whether answers still await manual grading.",
		}, []string{"pending"}),
		scores: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "quiz",
			Name:      "score_percentage",
			Help:      "Percentage of graded quiz attempts.",
			Buckets:   prometheus.LinearBuckets(10, 10, 10),
		}),
	}
	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.requests,
		m.latency,
		m.attemptsStarted,
		m.attemptsGraded,
		m.scores,
	)
	return m
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

func (m *Metrics) Gatherer() prometheus.Gatherer { return m.registry }

// Middleware counts requests by route pattern, so that ids in paths do not explode the label space.
func (m *Metrics) Middleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			err := next(c)

			status := c.Response().Status
			if err != nil {
				if he, ok := err.(*echo.HTTPError); ok {
					status = he.Code
				} else if !c.Response().Committed {
					status = http.StatusInternalServerError
				}
			}
			route := c.Path()
			if route == "" {
				route = "unmatched"
			}
			method := c.Request().Method
			m.requests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
			m.latency.WithLabelValues(method, route).Observe(time.Since(start).Seconds())
			return err
		}
	}
}

func (m *Metrics) AttemptStarted(context.Context, quiz.Quiz, quiz.Attempt) error {
	m.attemptsStarted.Inc()
	return nil
}

func (m *Metrics) AttemptGraded(_ context.Context, _ quiz.Quiz, a quiz.Attempt) error {
	m.attemptsGraded.WithLabelValues(strconv.FormatBool(a.PendingManualGrading > 0)).Inc()
	if a.TotalMarks > 0 {
		m.scores.Observe(a.Percentage)
	}
	return nil
}
