package analysis

import "context"

// Provider defines the interface contract for analysis backends.
// A provider turns entry content into a raw JSON analysis payload; it holds
// no per-entry state and must be safe for concurrent calls.
type Provider interface {
	// Call analyzes the given content and returns the raw payload together
	// with an HTTP-style status code (fallback providers report 200).
	Call(ctx context.Context, content string) (payload []byte, status int, err error)
	Name() string
}
