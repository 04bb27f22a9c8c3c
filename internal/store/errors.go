// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Rasul Khiriev

package store

import "errors"

// Sentinel errors returned by stores and repositories to signal well-known
// conditions. Callers should use [errors.Is] to match against these values.
var (
	// ErrKeyNotFound is returned by [KeyValueStore.Get] for a missing or
	// expired key.
	ErrKeyNotFound = errors.New("key not found")

	// ErrObjectNotFound is returned by blob reads for a missing key.
	ErrObjectNotFound = errors.New("object not found")

	// ErrInvalidCursor is returned when a listing cursor cannot be decoded.
	ErrInvalidCursor = errors.New("invalid list cursor")

	// ErrCredentialNotFound is returned when no record exists for a
	// credential hash.
	ErrCredentialNotFound = errors.New("credential not found")

	// ErrMalformedCredentialRecord is returned when a stored credential
	// record is not valid JSON or lacks required fields.
	ErrMalformedCredentialRecord = errors.New("malformed credential record")

	// ErrUnknownDriver is returned by [NewStorages] for an unsupported
	// backend name.
	ErrUnknownDriver = errors.New("unknown storage driver")
)

// Low-level database operation errors. These are returned (or wrapped) by
// the SQL key-value store when a SQL-level operation fails.
var (
	// ErrBuildingSQLQuery is returned when constructing a parameterised SQL
	// query fails.
	ErrBuildingSQLQuery = errors.New("error building sql query")

	// ErrExecutingQuery is returned when executing a SELECT fails.
	ErrExecutingQuery = errors.New("error executing sql query")

	// ErrExecutingStatement is returned when executing a DML statement
	// (INSERT, UPDATE, DELETE) fails.
	ErrExecutingStatement = errors.New("failed to execute statement")
)
