package crypto

import (
	"bytes"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"strings"
)

// FromHex decodes a hex string to bytes. A leading "0x" or "0X" prefix is
// accepted and stripped. Odd-length input is rejected.
func FromHex(s string) ([]byte, error) {
	if strings.HasPrefix(s, "0x") || strings.HasPrefix(s, "0X") {
		s = s[2:]
	}
	if len(s)%2 != 0 {
		return nil, fmt.Errorf("%w: odd length %d", ErrInvalidHex, len(s))
	}
	data, err := hex.DecodeString(s)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidHex, err)
	}
	return data, nil
}

// ToHex encodes bytes as a lowercase hex string without a prefix.
func ToHex(data []byte) string {
	return hex.EncodeToString(data)
}

// RandomIdentity returns a fresh identity: n cryptographically random bytes
// encoded as lowercase hex.
func RandomIdentity(n int) (string, error) {
	if n <= 0 {
		n = DefaultIdentitySize
	}
	buf := make([]byte, n)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generate identity: %w", err)
	}
	return hex.EncodeToString(buf), nil
}

// RandomBytes returns n cryptographically random bytes.
func RandomBytes(n int) ([]byte, error) {
	buf := make([]byte, n)
	if _, err := rand.Read(buf); err != nil {
		return nil, fmt.Errorf("read random bytes: %w", err)
	}
	return buf, nil
}

// Equal reports whether two byte slices have identical contents.
// Not constant-time; the compared values are never secret key material.
func Equal(a, b []byte) bool {
	return bytes.Equal(a, b)
}

// Concat returns the concatenation of the given byte slices in order.
func Concat(parts ...[]byte) []byte {
	total := 0
	for _, p := range parts {
		total += len(p)
	}
	out := make([]byte, 0, total)
	for _, p := range parts {
		out = append(out, p...)
	}
	return out
}
