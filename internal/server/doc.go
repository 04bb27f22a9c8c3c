// Package server runs the HTTP transport and the background workers.
//
// It owns the process lifecycle: startup, signal handling, and graceful
// shutdown bounded by the configured timeout.
package server
