// Package judge talks to the external judgment capability (an LLM) and
// wraps it in two decision paths: per-notification classification and
// batched urgency analysis.
//
// Every entry point here resolves to a definite answer. If the capability
// is down, slow, or returns garbage, callers get the conservative default
// (do not send, not urgent) with a reason that says so.
package judge

import "context"

// Capability is the black-box judgment service: prompt in, raw text out.
// Fallible and slow (tens of seconds).
type Capability interface {
	// Generate runs one completion. maxTokens bounds the response length.
	Generate(ctx context.Context, prompt string, maxTokens int) (string, error)
	// Available reports whether the capability answered a liveness probe.
	Available(ctx context.Context) bool
}

// Classification answers "should this notification be forwarded".
type Classification struct {
	ShouldSend bool
	Reason     string
}

// Urgency answers "does this dropped message need to get through anyway".
type Urgency struct {
	Urgent bool
	Reason string
}
