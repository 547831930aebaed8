// Package ai wraps the external content generator behind a retrying,
// rate-limited, tone-adaptive gateway with deterministic fallbacks.
package ai

import (
	"context"
	"errors"
)

// Options tune a single generation request.
type Options struct {
	Temperature float64
	MaxTokens   int
}

// Generator is the swappable transport boundary to an external model.
// Implementations signal retryable failures with the marker errors below.
type Generator interface {
	Generate(ctx context.Context, systemTone, prompt string, opts Options) (string, error)
}

// Closed set of failure classes. Only the first three are retryable;
// malformed output never is.
var (
	ErrTransport   = errors.New("generator transport failure")
	ErrRateLimited = errors.New("generator rate limited")
	ErrServer      = errors.New("generator server error")
	ErrBadOutput   = errors.New("generator returned malformed output")
)

func IsRetryable(err error) bool {
	return errors.Is(err, ErrTransport) || errors.Is(err, ErrRateLimited) || errors.Is(err, ErrServer)
}

const systemPrompt = `You are a drill sergeant for action, not a therapist.

RULES:
- No motivational fluff ("you can do it", "believe in yourself") - FORBIDDEN
- No "try", "maybe", "perhaps" - imperative only
- Commands only: "Do", "Open", "Write", "Set a timer"
- Steps are concrete and measurable, no abstractions
- Low energy? Fine. Do less, but do it. Right now`
