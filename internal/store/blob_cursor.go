package store

import (
	"encoding/base64"
	"strings"
)

// Listing cursors are the base64url form of the last key of the previous
// page. Listing resumes strictly after that key, so deleting already-listed
// keys between pages does not skip entries.

func encodeCursor(lastKey string) string {
	return base64.RawURLEncoding.EncodeToString([]byte(lastKey))
}

func decodeCursor(prefix, cursor string) (string, error) {
	if cursor == "" {
		return "", nil
	}
	raw, err := base64.RawURLEncoding.DecodeString(cursor)
	if err != nil {
		return "", ErrInvalidCursor
	}
	key := string(raw)
	if !strings.HasPrefix(key, prefix) {
		return "", ErrInvalidCursor
	}
	return key, nil
}
