package prom

import (
	"github.com/helpcomp/finsight/completion"
	"github.com/prometheus/client_golang/prometheus"
)

// UsageSource reports completion API usage.
type UsageSource interface {
	Usage() completion.Usage
}

// FailureSource reports responses that could not be parsed.
type FailureSource interface {
	Failures() uint64
}

type Exporter struct {
	APICalls              *prometheus.Desc
	APIErrors             *prometheus.Desc
	OpenAITokens          *prometheus.Desc
	OpenAIResponseFailure *prometheus.Desc
	usage                 UsageSource
	failures              FailureSource
}

func (e *Exporter) Describe(ch chan<- *prometheus.Desc) {
	ch <- e.APICalls
	ch <- e.APIErrors
	ch <- e.OpenAITokens
	ch <- e.OpenAIResponseFailure
}

func NewExporter(namespace string, usage UsageSource, failures FailureSource) *Exporter {
	return &Exporter{
		APICalls: prometheusStatusDesc(
			namespace,
			"api_calls",
			"Count of completion API calls",
		),
		APIErrors: prometheusStatusDesc(
			namespace,
			"api_errors",
			"Count of completion API errors",
		),
		OpenAITokens: prometheus.NewDesc(
			prometheus.BuildFQName(
				namespace,
				"openai",
				"tokens",
			),
			"Count of OpenAI Tokens",
			[]string{"type"},
			nil,
		),
		OpenAIResponseFailure: prometheus.NewDesc(
			prometheus.BuildFQName(
				namespace,
				"openai",
				"response_failure",
			),
			"Count of model responses that held no parseable analysis",
			[]string{},
			nil,
		),
		usage:    usage,
		failures: failures,
	}
}

func prometheusStatusDesc(namespace string, metric string, help string) *prometheus.Desc {
	return prometheus.NewDesc(
		prometheus.BuildFQName(
			namespace,
			"status",
			metric,
		),
		help,
		[]string{},
		nil,
	)
}
