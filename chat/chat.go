// Package chat answers questions about a previous analysis.
package chat

import (
	"context"
	"encoding/json"
	"errors"
	"strings"

	"github.com/helpcomp/finsight/completion"
	"github.com/helpcomp/finsight/config"
	"github.com/helpcomp/finsight/prompt"
	"github.com/rs/zerolog/log"
)

var (
	// ErrEmptyMessage rejects blank questions before any model call.
	ErrEmptyMessage = errors.New("chat: empty message")

	// ErrChatFailed hides the upstream failure from the caller.
	ErrChatFailed = errors.New("chat: completion failed")
)

type Responder struct {
	client   completion.Completer
	builder  prompt.Builder
	settings config.ModelSettings
}

func NewResponder(client completion.Completer, cfg *config.MasterConfig) *Responder {
	return &Responder{
		client:   client,
		builder:  prompt.Builder{},
		settings: cfg.Chat,
	}
}

// Ask answers question using analysis, embedded verbatim, as context. The
// reply is free text and is only trimmed.
func (r *Responder) Ask(ctx context.Context, question string, analysis json.RawMessage) (string, error) {
	question = strings.TrimSpace(question)
	if question == "" {
		return "", ErrEmptyMessage
	}

	reply, err := r.client.Complete(ctx, completion.Request{
		Prompt:      r.builder.Chat(analysis, question),
		Model:       r.settings.Model,
		Temperature: r.settings.Temperature,
		MaxTokens:   r.settings.MaxTokens,
	})
	if err != nil {
		log.Error().Err(err).Msg("Chat error")
		return "", ErrChatFailed
	}
	return strings.TrimSpace(reply), nil
}
