// Package crypto implements the vault payload cipher.
//
// Every vault key is derived on demand from the caller's bearer credential
// with HKDF-SHA256; no key material is ever persisted. Payloads are sealed
// with AES-256-GCM and stored as nonce || ciphertext || tag.
package crypto

//go:generate mockgen -source=interfaces.go -destination=../mock/cipher_mock.go -package=mock

// Cipher seals and opens vault payloads with a key derived from a credential.
type Cipher interface {
	// Encrypt derives the vault key from credential and seals plaintext with
	// a fresh random nonce. The result is nonce || ciphertext || tag.
	Encrypt(credential string, plaintext []byte) ([]byte, error)

	// Decrypt opens a blob produced by Encrypt. It returns [ErrDecryptFailed]
	// when the blob is too short or fails authentication.
	Decrypt(credential string, blob []byte) ([]byte, error)
}
