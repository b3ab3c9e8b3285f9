// Package completion sends dictated text to a chat-completion API and
// returns the reply as plain text. It never fails: problems are logged and
// replaced by fixed replies that can be spoken instead.
package completion

import (
	"context"
	"errors"
	log "log/slog"
	"net"
	"net/http"
	"net/url"

	openai "github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"

	"voxchat/internal/observe"
)

const (
	DefaultModel         = "gpt-3.5-turbo"
	DefaultFallbackReply = "Nenhuma resposta recebida."
	DefaultErrorReply    = "Erro ao buscar resposta."
)

type Config struct {
	APIKey  string
	Model   string
	BaseURL string

	// HTTPClient carries proxy and timeout settings; nil uses the default.
	HTTPClient *http.Client

	// FallbackReply replaces a response without a usable first choice.
	FallbackReply string
	// ErrorReply replaces the reply when the request itself fails.
	ErrorReply string

	Metrics *observe.Metrics
}

type Client struct {
	api      openai.Client
	model    string
	fallback string
	failure  string
	metrics  *observe.Metrics
}

func New(cfg Config) (*Client, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("completion: api key must not be empty")
	}
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}
	if cfg.FallbackReply == "" {
		cfg.FallbackReply = DefaultFallbackReply
	}
	if cfg.ErrorReply == "" {
		cfg.ErrorReply = DefaultErrorReply
	}

	opts := []option.RequestOption{
		option.WithAPIKey(cfg.APIKey),
		option.WithMaxRetries(0),
	}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}
	if cfg.HTTPClient != nil {
		opts = append(opts, option.WithHTTPClient(cfg.HTTPClient))
	}

	return &Client{
		api:      openai.NewClient(opts...),
		model:    cfg.Model,
		fallback: cfg.FallbackReply,
		failure:  cfg.ErrorReply,
		metrics:  cfg.Metrics,
	}, nil
}

// Complete sends text as the only user message of a fresh conversation and
// returns the first choice's content.
func (c *Client) Complete(ctx context.Context, text string) string {
	done := c.metrics.CompletionStarted(ctx)

	log.Info("Requesting completion", "model", c.model, "chars", len(text))

	resp, err := c.api.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model: openai.ChatModel(c.model),
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.UserMessage(text),
		},
	})
	if err != nil {
		if !failed(ctx, err) {
			log.Warn("Completion response unreadable", "err", err)
			done("fallback")
			return c.fallback
		}
		log.Error("Failed to fetch completion", "err", err)
		done("error")
		return c.failure
	}

	if len(resp.Choices) == 0 || resp.Choices[0].Message.Content == "" {
		log.Warn("Completion had no usable choice", "id", resp.ID, "choices", len(resp.Choices))
		done("fallback")
		return c.fallback
	}

	done("ok")
	return resp.Choices[0].Message.Content
}

// failed reports whether err means the request did not get through: an API
// status error, a transport error or a cancelled context. Anything else is a
// response that arrived but could not be decoded.
func failed(ctx context.Context, err error) bool {
	var (
		apiErr *openai.Error
		urlErr *url.Error
		netErr net.Error
	)
	return errors.As(err, &apiErr) ||
		errors.As(err, &urlErr) ||
		errors.As(err, &netErr) ||
		errors.Is(err, context.Canceled) ||
		errors.Is(err, context.DeadlineExceeded) ||
		ctx.Err() != nil
}
