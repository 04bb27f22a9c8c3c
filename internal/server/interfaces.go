package server

import "context"

// Server defines the lifecycle contract of the process.
type Server interface {
	// RunServer serves until ctx is cancelled or the listener fails, then
	// shuts down gracefully.
	RunServer(ctx context.Context) error

	// Shutdown gracefully stops the server and frees associated resources.
	Shutdown(ctx context.Context) error
}
