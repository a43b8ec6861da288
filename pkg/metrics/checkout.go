package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// CheckoutMetrics records checkout and payment gateway activity.
type CheckoutMetrics struct {
	submissions     *prometheus.CounterVec
	pollOutcomes    *prometheus.CounterVec
	gatewayDuration *prometheus.HistogramVec
}

// NewCheckoutMetrics registers the checkout metrics on the provided registerer.
func NewCheckoutMetrics(reg prometheus.Registerer) *CheckoutMetrics {
	if reg == nil {
		return &CheckoutMetrics{}
	}
	submissions := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "checkout_submissions_total",
		Help: "Checkout submissions by payment method and result.",
	}, []string{"method", "result"})
	pollOutcomes := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "payment_poll_outcomes_total",
		Help: "Terminal outcomes of gateway payment polling.",
	}, []string{"outcome"})
	gatewayDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "payment_gateway_request_duration_seconds",
		Help:    "Duration of payment gateway HTTP calls in seconds.",
		Buckets: prometheus.DefBuckets,
	}, []string{"operation"})
	reg.MustRegister(submissions, pollOutcomes, gatewayDuration)
	return &CheckoutMetrics{
		submissions:     submissions,
		pollOutcomes:    pollOutcomes,
		gatewayDuration: gatewayDuration,
	}
}

// IncSubmission increments the submission counter for a method/result pair.
func (c *CheckoutMetrics) IncSubmission(method, result string) {
	if c == nil || c.submissions == nil {
		return
	}
	c.submissions.WithLabelValues(normalizeLabel(method), normalizeLabel(result)).Inc()
}

// IncPollOutcome increments the counter for a terminal poll outcome.
func (c *CheckoutMetrics) IncPollOutcome(outcome string) {
	if c == nil || c.pollOutcomes == nil {
		return
	}
	c.pollOutcomes.WithLabelValues(normalizeLabel(outcome)).Inc()
}

// ObserveGatewayDuration records the duration of a gateway call.
func (c *CheckoutMetrics) ObserveGatewayDuration(operation string, duration time.Duration) {
	if c == nil || c.gatewayDuration == nil {
		return
	}
	c.gatewayDuration.WithLabelValues(normalizeLabel(operation)).Observe(duration.Seconds())
}

func normalizeLabel(value string) string {
	if value == "" {
		return "unknown"
	}
	return value
}
