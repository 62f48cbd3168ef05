// Package llm adapts OpenAI-compatible chat completion endpoints behind a
// small client interface, with a circuit breaker guarding upstream calls and
// an outbound token-budget trimmer.
package llm

import (
	"context"
	"errors"
	"fmt"

	"github.com/scrypster/keepsake/pkg/types"
)

// ErrorKind classifies a failed chat call so callers can choose a fallback.
type ErrorKind string

const (
	// KindConfigMissing means no usable provider configuration exists; the
	// call was never attempted.
	KindConfigMissing ErrorKind = "config_missing"
	// KindTransport covers network failures, timeouts, non-2xx statuses and
	// an open circuit.
	KindTransport ErrorKind = "transport"
	// KindMalformed means the upstream answered but the body was not a
	// usable completion.
	KindMalformed ErrorKind = "malformed"
)

// Error is a classified chat failure.
type Error struct {
	Kind ErrorKind
	Err  error
}

func (e *Error) Error() string {
	return fmt.Sprintf("llm %s: %v", e.Kind, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// KindOf extracts the error kind, defaulting to transport for untyped errors.
func KindOf(err error) ErrorKind {
	var le *Error
	if errors.As(err, &le) {
		return le.Kind
	}
	return KindTransport
}

// Request is one chat completion call.
type Request struct {
	Messages    []types.ChatMessage
	Temperature float64
	MaxTokens   int
}

// Response is a successful completion.
type Response struct {
	Content string
	Model   string
	Usage   types.TokenUsage
}

// ChatClient sends chat completion requests.
type ChatClient interface {
	Chat(ctx context.Context, req Request) (*Response, error)
	Model() string
}

// FromSettings builds a chat client from persisted settings. Returns a
// config-missing error when the settings lack an endpoint or model.
func FromSettings(s types.Settings) (ChatClient, error) {
	if !s.Configured() {
		return nil, &Error{Kind: KindConfigMissing, Err: errors.New("llm provider not configured")}
	}
	return NewOpenAIClient(OpenAIConfig{
		APIKey:  s.APIKey,
		Model:   s.Model,
		BaseURL: s.BaseURL,
	}), nil
}
