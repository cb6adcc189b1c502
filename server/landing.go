package server

import (
	"net/http"

	"github.com/prometheus/common/version"
	"github.com/prometheus/exporter-toolkit/web"
)

// NewLandingPage links the health endpoint and, when enabled, the metrics.
func NewLandingPage(name, description, metricsPath string) (http.Handler, error) {
	links := []web.LandingLinks{
		{
			Address: "/health",
			Text:    "Health",
		},
	}
	if metricsPath != "" && metricsPath != "/" {
		links = append([]web.LandingLinks{{
			Address: metricsPath,
			Text:    "Metrics",
		}}, links...)
	}

	page, err := web.NewLandingPage(web.LandingConfig{
		Name:        name,
		Description: description,
		Version:     version.Print(name),
		Links:       links,
	})
	if err != nil {
		return nil, err
	}
	return page, nil
}
