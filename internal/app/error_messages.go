// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Rasul Khiriev

// Package app contains shared application-layer constants used across the
// everclaw handlers, middleware and services.
//
// All Msg* constants are human-readable message strings that are written into
// JSON response bodies. Agents read them verbatim, so the wording is part of
// the API and is kept in one place.
package app

const (
	// MsgNotFound is returned for unknown routes and unsupported methods.
	MsgNotFound = "Not found"

	// MsgInternalServerError is returned when an unexpected server-side
	// failure occurs that the client cannot resolve.
	MsgInternalServerError = "Internal server error"

	// MsgInvalidGzipData is returned when a request declares
	// Content-Encoding: gzip but the body is not a valid gzip stream.
	MsgInvalidGzipData = "Invalid gzip data"

	// MsgTooManyRequests is returned when a client exceeds a rate limit.
	MsgTooManyRequests = "Too many requests. Try again later."
)

// Per-file failure reasons reported inside a batch result.
const (
	MsgBatchEncryptionFailed = "Encryption failed"
	MsgBatchWouldExceedQuota = "Would exceed quota"
	MsgBatchWriteFailed      = "Write failed"
)
