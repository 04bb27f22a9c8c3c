// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Rasul Khiriev

package crypto

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"

	"golang.org/x/crypto/hkdf"
)

const (
	// NonceSize is the AES-GCM nonce length prepended to every blob.
	NonceSize = 12
	// TagSize is the AES-GCM authentication tag length.
	TagSize = 16
	// Overhead is the number of bytes Encrypt adds to a plaintext.
	Overhead = NonceSize + TagSize

	keySize = 32
)

var (
	hkdfSalt = []byte("everclaw-vault-v1")
	hkdfInfo = []byte("vault-encryption")
)

type aesGCMCipher struct{}

// NewCipher returns the AES-256-GCM [Cipher]. It holds no state and is safe
// for concurrent use.
func NewCipher() Cipher {
	return aesGCMCipher{}
}

// DeriveKey derives the 256-bit vault key for credential. The derivation is
// deterministic, so the same credential always opens the same blobs.
func DeriveKey(credential string) ([]byte, error) {
	stream := hkdf.New(sha256.New, []byte(credential), hkdfSalt, hkdfInfo)
	key := make([]byte, keySize)
	if _, err := io.ReadFull(stream, key); err != nil {
		return nil, fmt.Errorf("derive vault key: %w", err)
	}
	return key, nil
}

// HashCredential returns the lowercase hex SHA-256 of credential. It is the
// lookup key of the credential registry.
func HashCredential(credential string) string {
	sum := sha256.Sum256([]byte(credential))
	return hex.EncodeToString(sum[:])
}

func newGCM(credential string) (cipher.AEAD, error) {
	key, err := DeriveKey(credential)
	if err != nil {
		return nil, err
	}
	defer zero(key)

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	return cipher.NewGCM(block)
}

// Encrypt implements [Cipher].
func (aesGCMCipher) Encrypt(credential string, plaintext []byte) ([]byte, error) {
	gcm, err := newGCM(credential)
	if err != nil {
		return nil, err
	}

	out := make([]byte, NonceSize, NonceSize+len(plaintext)+TagSize)
	if _, err := io.ReadFull(rand.Reader, out); err != nil {
		return nil, fmt.Errorf("generate nonce: %w", err)
	}

	return gcm.Seal(out, out[:NonceSize], plaintext, nil), nil
}

// Decrypt implements [Cipher].
func (aesGCMCipher) Decrypt(credential string, blob []byte) ([]byte, error) {
	if len(blob) < Overhead {
		return nil, fmt.Errorf("%w: blob is %d bytes", ErrDecryptFailed, len(blob))
	}

	gcm, err := newGCM(credential)
	if err != nil {
		return nil, err
	}

	plaintext, err := gcm.Open(nil, blob[:NonceSize], blob[NonceSize:], nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrDecryptFailed, err)
	}
	if plaintext == nil {
		plaintext = []byte{}
	}
	return plaintext, nil
}

func zero(b []byte) {
	for i := range b {
		b[i] = 0
	}
}
