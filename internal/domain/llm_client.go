package domain

import "context"

// LLMMessage is a single chat message sent to the generation service.
type LLMMessage struct {
	Role    string
	Content string
}

// LLMClient defines the capability to send an assembled prompt to a hosted
// model and receive its textual response. Implementations own per-attempt
// timeouts and bounded retries; errors come back classified (see errors.go).
type LLMClient interface {
	Generate(ctx context.Context, messages []LLMMessage) (string, error)
	Version() string
}
