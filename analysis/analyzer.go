package analysis

import (
	"context"
	"fmt"
	"sync/atomic"

	"github.com/helpcomp/finsight/completion"
	"github.com/helpcomp/finsight/config"
	"github.com/helpcomp/finsight/prompt"
	"github.com/helpcomp/finsight/transactions"
	"github.com/rs/zerolog/log"
)

// Analyzer asks the model to categorize transactions.
type Analyzer struct {
	client   completion.Completer
	builder  prompt.Builder
	settings config.ModelSettings
	failures atomic.Uint64
}

func NewAnalyzer(client completion.Completer, cfg *config.MasterConfig) *Analyzer {
	return &Analyzer{
		client: client,
		builder: prompt.Builder{
			Categories: cfg.Analysis.Categories,
			Limit:      cfg.Analysis.TransactionLimit,
		},
		settings: cfg.Analysis.ModelSettings,
	}
}

// Analyze returns the model's analysis. Completion failures are returned as
// errors wrapping completion.ErrUpstream; an unparseable answer is not an
// error but a failed Record.
func (a *Analyzer) Analyze(ctx context.Context, txns []transactions.Transaction) (Record, error) {
	p, err := a.builder.Analysis(txns)
	if err != nil {
		return Record{}, err
	}

	text, err := a.client.Complete(ctx, completion.Request{
		Prompt:      p,
		Model:       a.settings.Model,
		Temperature: a.settings.Temperature,
		MaxTokens:   a.settings.MaxTokens,
	})
	if err != nil {
		return Record{}, fmt.Errorf("analyze %d transactions: %w", len(txns), err)
	}

	rec, ok := extract(text)
	if !ok {
		a.failures.Add(1)
		log.Warn().Str("response", text).Msg("Could not extract analysis from model response")
		return rec, nil
	}

	log.Info().
		Int("transactions", len(txns)).
		Int("categories", len(rec.CategoryTotals())).
		Int("insights", len(rec.Insights())).
		Msg("🤖 Analysis complete")
	return rec, nil
}

// Failures counts responses that could not be parsed.
func (a *Analyzer) Failures() uint64 { return a.failures.Load() }
