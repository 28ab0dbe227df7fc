package crypto

import (
	"crypto/sha512"
	"fmt"
	"io"

	"golang.org/x/crypto/hkdf"
)

// DeriveKey derives a key of the given length using HKDF-SHA-512.
func DeriveKey(secret, salt, info []byte, length int) ([]byte, error) {
	if len(salt) == 0 {
		salt = make([]byte, sha512.Size)
	}

	reader := hkdf.New(sha512.New, secret, salt, info)
	key := make([]byte, length)

	if _, err := io.ReadFull(reader, key); err != nil {
		return nil, fmt.Errorf("failed to derive key: %w", err)
	}

	return key, nil
}

// GenerateDEMKey produces a fresh 256-bit data-encapsulation key by
// expanding a random seed through HKDF with the package context string.
func GenerateDEMKey() ([]byte, error) {
	seed, err := RandomBytes(AESKeySize)
	if err != nil {
		return nil, err
	}
	return DeriveKey(seed, nil, []byte(HKDFContext), AESKeySize)
}
