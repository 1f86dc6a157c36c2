// Package middleware holds Fiber middleware shared by the router
package middleware

import (
	"strconv"
	"strings"
	"time"

	"github.com/gofiber/fiber/v3"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "campaign_hub"

var (
	requestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "http",
		Name:      "requests_total",
		Help:      "HTTP requests by route template and status class",
	}, []string{"method", "route", "status"})

	requestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: "http",
		Name:      "request_duration_seconds",
		Help:      "HTTP request latency",
		Buckets:   []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
	}, []string{"method", "route"})

	inFlight = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: "http",
		Name:      "inflight_requests",
		Help:      "HTTP requests currently being served",
	})

	redirects = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "short_link",
		Name:      "redirects_total",
		Help:      "Short link visits by outcome (redirected, not_found, error)",
	}, []string{"outcome"})
)

// Metrics records request metrics labelled by the route template, never the
// raw path, so short codes and ids stay out of label values. Requests whose
// path starts with one of skip are passed through untouched.
func Metrics(skip ...string) fiber.Handler {
	return func(c fiber.Ctx) error {
		path := c.Path()
		for _, p := range skip {
			if p != "" && strings.HasPrefix(path, p) {
				return c.Next()
			}
		}

		start := time.Now()
		inFlight.Inc()
		defer inFlight.Dec()

		err := c.Next()

		status := c.Response().StatusCode()
		if fe, ok := err.(*fiber.Error); ok {
			status = fe.Code
		}
		route := "unmatched"
		if r := c.Route(); r != nil && r.Path != "" {
			route = r.Path
		}

		requestsTotal.WithLabelValues(c.Method(), route, statusClass(status)).Inc()
		requestDuration.WithLabelValues(c.Method(), route).Observe(time.Since(start).Seconds())
		if route == "/s/:code" {
			redirects.WithLabelValues(redirectOutcome(status)).Inc()
		}
		return err
	}
}

func statusClass(status int) string {
	if status < 100 || status > 599 {
		return "other"
	}
	return strconv.Itoa(status/100) + "xx"
}

func redirectOutcome(status int) string {
	switch {
	case status == fiber.StatusFound:
		return "redirected"
	case status == fiber.StatusNotFound:
		return "not_found"
	default:
		return "error"
	}
}
