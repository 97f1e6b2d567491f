package openai

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

type Metrics struct {
	requests *prometheus.CounterVec
	latency  *prometheus.HistogramVec
}

// NewMetrics registers the executor collectors on reg. A nil reg yields
// unregistered collectors, which is what tests and one-shot CLIs want.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "poshopenai_requests_total",
			Help: "OpenAI API requests by endpoint and outcome.",
		}, []string{"path", "status"}),
		latency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "poshopenai_request_duration_seconds",
			Help:    "OpenAI API request latency.",
			Buckets: prometheus.DefBuckets,
		}, []string{"path"}),
	}
	if reg != nil {
		reg.MustRegister(m.requests, m.latency)
	}
	return m
}

func (m *Metrics) observe(path string, status int, kind ErrorKind, elapsed time.Duration) {
	if m == nil {
		return
	}
	label := strconv.Itoa(status)
	if status == 0 {
		label = string(kind)
	}
	m.requests.WithLabelValues(path, label).Inc()
	m.latency.WithLabelValues(path).Observe(elapsed.Seconds())
}
