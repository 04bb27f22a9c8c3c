package crypto

import "errors"

// ErrDecryptFailed is returned when a stored blob is truncated or fails AEAD
// authentication (wrong credential or corrupted data).
var ErrDecryptFailed = errors.New("decrypt failed")
