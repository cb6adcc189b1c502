// Package completion talks to an OpenAI-compatible chat completion API.
package completion

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sync"
	"sync/atomic"

	"github.com/rs/zerolog/log"
	"github.com/sashabaranov/go-openai"
)

// GroqBaseURL is the OpenAI-compatible endpoint used when no other is set.
const GroqBaseURL = "https://api.groq.com/openai/v1"

var (
	// ErrUpstream wraps every failure of the completion service: network,
	// auth, quota and malformed responses all end up here.
	ErrUpstream = errors.New("completion: upstream failure")

	// ErrMissingCredential means no API key was configured.
	ErrMissingCredential = errors.New("completion: no API key configured")
)

// Request is a single prompt sent as one user message.
type Request struct {
	Prompt      string
	Model       string
	Temperature float32
	MaxTokens   int
}

// Completer returns exactly one text completion for a request.
type Completer interface {
	Complete(ctx context.Context, req Request) (string, error)
}

// Options select the backend. An Azure key and endpoint take precedence
// over APIKey/BaseURL.
type Options struct {
	APIKey        string
	BaseURL       string
	AzureAPIKey   string
	AzureEndpoint string
}

// Usage counts calls and tokens since start.
type Usage struct {
	Calls            uint64
	Errors           uint64
	PromptTokens     uint64
	CompletionTokens uint64
	TotalTokens      uint64
}

type Client struct {
	opts Options

	once sync.Once
	oai  *openai.Client
	err  error

	calls, errs                    atomic.Uint64
	promptTokens, completionTokens atomic.Uint64
	totalTokens                    atomic.Uint64
}

// New does not validate the credential; the first Complete call does.
func New(opts Options) *Client {
	if opts.BaseURL == "" {
		opts.BaseURL = GroqBaseURL
	}
	return &Client{opts: opts}
}

func (c *Client) client() (*openai.Client, error) {
	c.once.Do(func() {
		switch {
		case c.opts.AzureAPIKey != "":
			if c.opts.AzureEndpoint == "" {
				c.err = fmt.Errorf("%w: Azure endpoint is required if Azure API key is provided", ErrMissingCredential)
				return
			}
			c.oai = openai.NewClientWithConfig(openai.DefaultAzureConfig(c.opts.AzureAPIKey, c.opts.AzureEndpoint))
		case c.opts.APIKey != "":
			cfg := openai.DefaultConfig(c.opts.APIKey)
			cfg.BaseURL = c.opts.BaseURL
			c.oai = openai.NewClientWithConfig(cfg)
		default:
			c.err = ErrMissingCredential
		}
		if c.err != nil {
			log.Error().Err(c.err).Msg("Completion client is not configured")
		}
	})
	return c.oai, c.err
}

// Complete sends the prompt and returns the first choice's content.
func (c *Client) Complete(ctx context.Context, req Request) (string, error) {
	oai, err := c.client()
	if err != nil {
		c.errs.Add(1)
		return "", fmt.Errorf("%w: %w", ErrUpstream, err)
	}

	c.calls.Add(1)
	resp, err := oai.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: req.Model,
		Messages: []openai.ChatCompletionMessage{
			{
				Role:    openai.ChatMessageRoleUser,
				Content: req.Prompt,
			},
		},
		Temperature: temperature(req.Temperature),
		MaxTokens:   req.MaxTokens,
	})
	if err != nil {
		c.errs.Add(1)
		log.Error().Err(err).Str("model", req.Model).Msg("Error with chat completion request")
		return "", fmt.Errorf("%w: %w", ErrUpstream, err)
	}

	c.promptTokens.Add(uint64(resp.Usage.PromptTokens))
	c.completionTokens.Add(uint64(resp.Usage.CompletionTokens))
	c.totalTokens.Add(uint64(resp.Usage.TotalTokens))

	if len(resp.Choices) == 0 {
		c.errs.Add(1)
		return "", fmt.Errorf("%w: response has no choices", ErrUpstream)
	}

	log.Debug().
		Str("model", req.Model).
		Int("prompt_tokens", resp.Usage.PromptTokens).
		Int("completion_tokens", resp.Usage.CompletionTokens).
		Msg("Chat completion received")
	return resp.Choices[0].Message.Content, nil
}

// temperature keeps a configured 0 in the request. go-openai omits a zero
// Temperature, and the provider would then fall back to its default of 1.
func temperature(t float32) float32 {
	if t == 0 {
		return math.SmallestNonzeroFloat32
	}
	return t
}

// Usage returns a snapshot of the counters.
func (c *Client) Usage() Usage {
	return Usage{
		Calls:            c.calls.Load(),
		Errors:           c.errs.Load(),
		PromptTokens:     c.promptTokens.Load(),
		CompletionTokens: c.completionTokens.Load(),
		TotalTokens:      c.totalTokens.Load(),
	}
}
