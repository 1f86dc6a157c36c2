package scheduler

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	dispatchClaims = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dispatch_claims_total",
			Help: "Dispatch claim attempts partitioned by result",
		},
		[]string{"result"},
	)

	dispatchOutcomes = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dispatch_outcomes_total",
			Help: "Terminal dispatch outcomes partitioned by channel and status",
		},
		[]string{"channel", "status"},
	)

	gatewaySendDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "gateway_send_duration_seconds",
			Help:    "Channel gateway send latency in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"channel"},
	)

	statusJobsProcessed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "delivery_status_jobs_total",
			Help: "Delivery status jobs processed partitioned by result",
		},
		[]string{"result"},
	)
)
