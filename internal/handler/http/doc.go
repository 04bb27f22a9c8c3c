// Package http implements the HTTP transport layer of everclaw.
//
// It exposes route wiring, request handlers, and middleware for the vault
// API. Cross-cutting concerns such as bearer authentication, request
// tracing, access logging, CORS, per-IP rate limiting and gzip compression
// are handled in this package before requests are delegated to the service
// layer. Every JSON response carries an "ok" flag; failures add "error",
// "code" and "action" fields derived from [service.VaultError].
package http
