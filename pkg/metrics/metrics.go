package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Checkout and cancellation counters and latency histograms. Registered
// on the default registry and exposed at /metrics.
var (
	CheckoutDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "creamery",
		Subsystem: "checkout",
		Name:      "duration_seconds",
		Help:      "Wall time of the checkout transaction.",
		Buckets:   prometheus.DefBuckets,
	})

	CheckoutTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "creamery",
		Subsystem: "checkout",
		Name:      "total",
		Help:      "Checkout attempts by outcome.",
	}, []string{"outcome"})

	CheckoutReplayTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "creamery",
		Subsystem: "checkout",
		Name:      "replay_total",
		Help:      "Checkouts answered from an existing order for the same payment ref.",
	})

	CancellationTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "creamery",
		Subsystem: "cancellation",
		Name:      "total",
		Help:      "Order cancellations by prior status.",
	}, []string{"prior_status"})

	PenaltyCentsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "creamery",
		Subsystem: "cancellation",
		Name:      "penalty_cents_total",
		Help:      "Cumulative penalty amounts withheld on cancellation.",
	})

	GatewayRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "creamery",
		Subsystem: "gateway",
		Name:      "request_duration_seconds",
		Help:      "Latency of payment gateway calls.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"operation"})
)

// Outcome labels for CheckoutTotal.
const (
	OutcomeSuccess = "success"
	OutcomeFailed  = "failed"
	OutcomeReplay  = "replay"
)
