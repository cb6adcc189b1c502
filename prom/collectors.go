package prom

import (
	"net/http"
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
)

func (e *Exporter) Collect(ch chan<- prometheus.Metric) {
	e.CollectUsage(ch)
	e.CollectFailures(ch)
}

// CollectUsage reports completion calls, errors and token counts.
func (e *Exporter) CollectUsage(ch chan<- prometheus.Metric) {
	u := e.usage.Usage()

	ch <- prometheus.MustNewConstMetric(
		e.APICalls,
		prometheus.CounterValue,
		float64(u.Calls),
	)
	ch <- prometheus.MustNewConstMetric(
		e.APIErrors,
		prometheus.CounterValue,
		float64(u.Errors),
	)
	ch <- prometheus.MustNewConstMetric(
		e.OpenAITokens,
		prometheus.CounterValue,
		float64(u.CompletionTokens),
		"completion",
	)
	ch <- prometheus.MustNewConstMetric(
		e.OpenAITokens,
		prometheus.CounterValue,
		float64(u.TotalTokens),
		"total",
	)
	ch <- prometheus.MustNewConstMetric(
		e.OpenAITokens,
		prometheus.CounterValue,
		float64(u.PromptTokens),
		"prompt",
	)
}

func (e *Exporter) CollectFailures(ch chan<- prometheus.Metric) {
	ch <- prometheus.MustNewConstMetric(
		e.OpenAIResponseFailure,
		prometheus.CounterValue,
		float64(e.failures.Failures()),
	)
}

// RequestCounter counts HTTP responses by route and status code.
type RequestCounter struct {
	requests *prometheus.CounterVec
}

func NewRequestCounter(namespace string) *RequestCounter {
	return &RequestCounter{
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Count of HTTP requests by route and status code",
		}, []string{"route", "code"}),
	}
}

func (c *RequestCounter) Describe(ch chan<- *prometheus.Desc) { c.requests.Describe(ch) }
func (c *RequestCounter) Collect(ch chan<- prometheus.Metric)  { c.requests.Collect(ch) }

func (c *RequestCounter) Observe(route string, code int) {
	c.requests.WithLabelValues(route, strconv.Itoa(code)).Inc()
}

// HealthHandler reports that the process is up.
func HealthHandler(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(`{"status":"ok"}`))
}
