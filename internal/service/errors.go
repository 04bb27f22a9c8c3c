// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Rasul Khiriev

package service

import (
	"errors"
	"fmt"

	"github.com/tlxue/everclaw/internal/app"
)

// ErrorKind is the machine-readable class of a [VaultError]. Its value is
// sent to clients as the "code" field of an error response.
type ErrorKind string

const (
	KindInvalidAPIKey      ErrorKind = "INVALID_API_KEY"
	KindValidation         ErrorKind = "VALIDATION_ERROR"
	KindQuotaExceeded      ErrorKind = "QUOTA_EXCEEDED"
	KindRateLimited        ErrorKind = "RATE_LIMITED"
	KindFileNotFound       ErrorKind = "FILE_NOT_FOUND"
	KindDecryptFailed      ErrorKind = "DECRYPT_FAILED"
	KindBatchLimitExceeded ErrorKind = "BATCH_LIMIT_EXCEEDED"
)

// VaultError is the single failure type of the vault services. Message is
// safe to show to the caller and Hint suggests a remediation.
type VaultError struct {
	Kind    ErrorKind
	Message string
	Hint    string
	// Err is an optional cause kept for logging and errors.Is matching.
	Err error
}

func (e *VaultError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *VaultError) Unwrap() error {
	return e.Err
}

// Is reports whether target is a VaultError of the same kind, so that
// errors.Is(err, ErrQuotaExceeded) matches every quota failure.
func (e *VaultError) Is(target error) bool {
	t, ok := target.(*VaultError)
	return ok && t.Kind == e.Kind
}

// Kind sentinels for errors.Is matching.
var (
	ErrInvalidAPIKey      = &VaultError{Kind: KindInvalidAPIKey}
	ErrValidation         = &VaultError{Kind: KindValidation}
	ErrQuotaExceeded      = &VaultError{Kind: KindQuotaExceeded}
	ErrRateLimited        = &VaultError{Kind: KindRateLimited}
	ErrFileNotFound       = &VaultError{Kind: KindFileNotFound}
	ErrDecryptFailed      = &VaultError{Kind: KindDecryptFailed}
	ErrBatchLimitExceeded = &VaultError{Kind: KindBatchLimitExceeded}
)

var (
	// ErrBatchPayloadTooLarge is the cause of a batch rejected for its
	// aggregate size rather than its file count.
	ErrBatchPayloadTooLarge = errors.New("batch payload too large")

	ErrVersionIsNotSpecified = errors.New("app version is not specified")
)

const (
	hintMissingCredential = "Include header: Authorization: Bearer $EVERCLAW_API_KEY"
	hintReprovision       = "Re-run /everclaw to provision a new vault"
	hintFreeSpace         = "Delete unused files with DELETE /v1/vault/{path}"
	hintNotBackedUp       = "File may not have been backed up yet"
	hintCorrupted         = "Data corrupted or wrong API key"
	hintSlowDown          = "Wait a minute before provisioning another vault"
)

// MissingCredentialError is returned when a request carries no bearer
// credential.
func MissingCredentialError() *VaultError {
	return &VaultError{
		Kind:    KindInvalidAPIKey,
		Message: "Missing or malformed Authorization header",
		Hint:    hintMissingCredential,
	}
}

// BatchTooLargeError is returned when a batch exceeds MaxBatchBytes, either
// in summed content or in its encoded request body.
func BatchTooLargeError() *VaultError {
	return &VaultError{
		Kind:    KindBatchLimitExceeded,
		Message: fmt.Sprintf("Batch total exceeds %dMB limit", MaxBatchBytes/1024/1024),
		Hint:    "Split your upload into smaller batches",
		Err:     ErrBatchPayloadTooLarge,
	}
}

func invalidCredential(cause error) *VaultError {
	return &VaultError{Kind: KindInvalidAPIKey, Message: "Invalid API key", Hint: hintReprovision, Err: cause}
}

func validationError(message, hint string) *VaultError {
	return &VaultError{Kind: KindValidation, Message: message, Hint: hint}
}

func quotaExceeded(message string) *VaultError {
	return &VaultError{Kind: KindQuotaExceeded, Message: message, Hint: hintFreeSpace}
}

func fileNotFound(path string) *VaultError {
	return &VaultError{Kind: KindFileNotFound, Message: "Not found: " + path, Hint: hintNotBackedUp}
}

func decryptFailed(message string, cause error) *VaultError {
	return &VaultError{Kind: KindDecryptFailed, Message: message, Hint: hintCorrupted, Err: cause}
}

func rateLimited() *VaultError {
	return &VaultError{Kind: KindRateLimited, Message: app.MsgTooManyRequests, Hint: hintSlowDown}
}
