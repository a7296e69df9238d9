// Package openaiapi adapts the hosted model's OpenAI-compatible chat and
// embedding endpoints (Mistral's La Plateforme speaks this protocol too).
package openaiapi

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
	"github.com/openai/openai-go/v3/shared"

	"github.com/Pasterwitz/Quorial-SoftwareDev/internal/domain"
)

const (
	// maxAttempts bounds the retry loop for transient failures.
	maxAttempts = 3
	baseBackoff = 500 * time.Millisecond
	maxBackoff  = 8 * time.Second

	generationTemperature = 0.2
)

// ErrAPIKeyNotSet is returned when no API key is configured.
var ErrAPIKeyNotSet = errors.New("generation API key not set")

// Generator sends assembled prompts to the hosted chat-completion endpoint.
// The SDK's own retry machinery is disabled; this adapter owns attempts,
// backoff, and error classification.
type Generator struct {
	client         openai.Client
	model          string
	attemptTimeout time.Duration
	logger         *slog.Logger
}

// NewGenerator constructs a generator for the given endpoint and model.
func NewGenerator(apiKey, baseURL, model string, attemptTimeoutSeconds int, httpClient *http.Client, logger *slog.Logger) (*Generator, error) {
	if apiKey == "" {
		return nil, ErrAPIKeyNotSet
	}

	timeout := 60 * time.Second
	if attemptTimeoutSeconds > 0 {
		timeout = time.Duration(attemptTimeoutSeconds) * time.Second
	}

	opts := []option.RequestOption{
		option.WithAPIKey(apiKey),
		option.WithMaxRetries(0),
	}
	if baseURL != "" {
		opts = append(opts, option.WithBaseURL(baseURL))
	}
	if httpClient != nil {
		opts = append(opts, option.WithHTTPClient(httpClient))
	}

	return &Generator{
		client:         openai.NewClient(opts...),
		model:          model,
		attemptTimeout: timeout,
		logger:         logger,
	}, nil
}

// Generate runs the chat completion with a per-attempt timeout and bounded
// exponential backoff on transient failures. Auth and invalid-request
// failures are surfaced immediately, never retried.
func (g *Generator) Generate(ctx context.Context, messages []domain.LLMMessage) (string, error) {
	params := openai.ChatCompletionNewParams{
		Model:       shared.ChatModel(g.model),
		Messages:    convertMessages(messages),
		Temperature: openai.Float(generationTemperature),
		ResponseFormat: openai.ChatCompletionNewParamsResponseFormatUnion{
			OfJSONObject: &shared.ResponseFormatJSONObjectParam{Type: "json_object"},
		},
	}

	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		if attempt > 1 {
			if err := sleepBackoff(ctx, attempt); err != nil {
				// Same mapping as a deadline firing mid-attempt.
				if errors.Is(err, context.DeadlineExceeded) {
					return "", domain.WrapError(domain.KindGenerationTimeout, "generation timed out", lastErr)
				}
				return "", err
			}
		}

		attemptCtx, cancel := context.WithTimeout(ctx, g.attemptTimeout)
		completion, err := g.client.Chat.Completions.New(attemptCtx, params)
		cancel()

		if err == nil {
			if len(completion.Choices) == 0 {
				return "", domain.NewError(domain.KindGenerationParseError, "no completion choices returned")
			}
			return completion.Choices[0].Message.Content, nil
		}

		// The caller's own deadline or cancellation ends the turn outright.
		if ctxErr := ctx.Err(); ctxErr != nil {
			if errors.Is(ctxErr, context.DeadlineExceeded) {
				return "", domain.WrapError(domain.KindGenerationTimeout, "generation timed out", err)
			}
			return "", ctxErr
		}

		kind, retryable := classify(err)
		if !retryable {
			return "", domain.WrapError(kind, "generation request rejected", err)
		}

		lastErr = err
		g.logger.Warn("generation_attempt_failed",
			slog.Int("attempt", attempt),
			slog.String("model", g.model),
			slog.String("error", err.Error()),
		)
	}

	return "", domain.WrapError(domain.KindGenerationUnavailable, "generation failed after retries", lastErr)
}

// Version returns the wrapped model name.
func (g *Generator) Version() string {
	return g.model
}

func convertMessages(messages []domain.LLMMessage) []openai.ChatCompletionMessageParamUnion {
	converted := make([]openai.ChatCompletionMessageParamUnion, 0, len(messages))
	for _, msg := range messages {
		switch msg.Role {
		case "system":
			converted = append(converted, openai.SystemMessage(msg.Content))
		case "assistant":
			converted = append(converted, openai.AssistantMessage(msg.Content))
		default:
			converted = append(converted, openai.UserMessage(msg.Content))
		}
	}
	return converted
}

// classify maps an API error to a failure kind and whether a retry may help.
func classify(err error) (domain.ErrorKind, bool) {
	var apiErr *openai.Error
	if errors.As(err, &apiErr) {
		switch {
		case apiErr.StatusCode == http.StatusUnauthorized || apiErr.StatusCode == http.StatusForbidden:
			return domain.KindGenerationAuthError, false
		case apiErr.StatusCode == http.StatusTooManyRequests || apiErr.StatusCode >= 500:
			return domain.KindGenerationUnavailable, true
		default:
			return domain.KindInvalidArgument, false
		}
	}
	// Network failures and per-attempt timeouts are transient.
	return domain.KindGenerationUnavailable, true
}

func sleepBackoff(ctx context.Context, attempt int) error {
	backoff := baseBackoff << (attempt - 2)
	if backoff > maxBackoff {
		backoff = maxBackoff
	}
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(backoff):
		return nil
	}
}

var _ domain.LLMClient = (*Generator)(nil)
