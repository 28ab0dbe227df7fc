package crypto

import "errors"

var (
	// ErrInvalidHex is returned when hex input is malformed or has odd length.
	ErrInvalidHex = errors.New("invalid hex string")

	// ErrInvalidKeySize is returned when the AES key size is invalid.
	ErrInvalidKeySize = errors.New("invalid key size")

	// ErrInvalidNonceSize is returned when the nonce size is invalid.
	ErrInvalidNonceSize = errors.New("invalid nonce size")

	// ErrDecryptionFailed is returned when symmetric decryption fails,
	// including authentication tag mismatches.
	ErrDecryptionFailed = errors.New("decryption failed")

	// ErrCiphertextTooShort is returned when a ciphertext is shorter than
	// a nonce plus an authentication tag.
	ErrCiphertextTooShort = errors.New("ciphertext too short")

	// ErrNotAnEnvelope is returned by ParseEnvelope when the framing is
	// structurally impossible (truncated header or body).
	ErrNotAnEnvelope = errors.New("data is not an envelope")

	// ErrSealedKeySize is returned by BuildEnvelope when the sealed key
	// length falls outside the detectable range.
	ErrSealedKeySize = errors.New("sealed key length outside detectable range")
)
