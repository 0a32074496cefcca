package core

import (
	"context"
)

// ExtractionRuntime is one execution environment able to turn raw file bytes into text.
//
// Implementations are not required to be re-entrant: callers must never run two
// Extract calls against the same instance at the same time.
type ExtractionRuntime interface {
	// Init performs the expensive one-time setup. It is called at most once.
	Init(ctx context.Context) error
	// Extract converts data into text. The file name selects the strategy.
	Extract(ctx context.Context, name string, data []byte) (string, error)
	// Close releases whatever Init acquired.
	Close() error
}
