// Package workers runs the periodic maintenance jobs of the server.
// It defines the Worker interface and a Workers aggregate that runs
// several workers together until their context is cancelled.
package workers

import (
	"context"
	"time"
)

// Worker is a background job. Run blocks until ctx is cancelled.
type Worker interface {
	Run(ctx context.Context)
}

// IdleEvictor drops per-client state unused for longer than ttl.
type IdleEvictor interface {
	EvictIdle(ttl time.Duration) int
}
