// Package server exposes the analysis, report and chat operations over HTTP.
package server

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/helpcomp/finsight/analysis"
	"github.com/helpcomp/finsight/prom"
	"github.com/helpcomp/finsight/transactions"
	"github.com/rs/zerolog/log"
)

// Analyzer categorizes transactions.
type Analyzer interface {
	Analyze(ctx context.Context, txns []transactions.Transaction) (analysis.Record, error)
}

// Responder answers questions about an analysis.
type Responder interface {
	Ask(ctx context.Context, question string, analysis json.RawMessage) (string, error)
}

// Reporter renders an analysis as a PDF.
type Reporter interface {
	Report(rec analysis.Record) ([]byte, error)
}

type Options struct {
	Loader   *transactions.Loader
	Analyzer Analyzer
	Chat     Responder
	Reports  Reporter

	// Landing is served at "/". A plain page is used when nil.
	Landing http.Handler
	// Metrics is mounted at MetricsPath when both are set.
	Metrics     http.Handler
	MetricsPath string
	// Requests counts responses per route when set.
	Requests *prom.RequestCounter
}

type Server struct {
	opts    Options
	handler http.Handler
}

func New(opts Options) *Server {
	s := &Server{opts: opts}

	mux := http.NewServeMux()
	landing := opts.Landing
	if landing == nil {
		landing = http.HandlerFunc(plainLanding)
	}
	mux.Handle("GET /{$}", landing)
	mux.HandleFunc("GET /health", prom.HealthHandler)
	if opts.Metrics != nil && opts.MetricsPath != "" {
		mux.Handle("GET "+opts.MetricsPath, opts.Metrics)
	}

	mux.Handle("POST /upload", s.route("/upload", s.upload))
	mux.Handle("POST /analyze-manual", s.route("/analyze-manual", s.analyzeManual))
	mux.Handle("POST /export-pdf", s.route("/export-pdf", s.exportPDF))
	mux.Handle("POST /chat", s.route("/chat", s.chat))

	s.handler = Recovery(RequestID(Logger(mux)))
	return s
}

func (s *Server) Handler() http.Handler { return s.handler }

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.handler.ServeHTTP(w, r)
}

func plainLanding(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=UTF-8")
	if _, err := w.Write([]byte("<html><body><h1>FinSight</h1></body></html>")); err != nil {
		log.Debug().Err(err).Msg("Could not write landing page")
	}
}
