package crypto

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"fmt"
)

// EncryptAES encrypts plaintext using AES-256-GCM with a fresh random nonce.
// Returns: nonce (12 bytes) || ciphertext || tag (16 bytes).
func EncryptAES(key, plaintext []byte) ([]byte, error) {
	if len(key) != AESKeySize {
		return nil, fmt.Errorf("%w: got %d, want %d", ErrInvalidKeySize, len(key), AESKeySize)
	}

	nonce := make([]byte, AESNonceSize)
	if _, err := rand.Read(nonce); err != nil {
		return nil, fmt.Errorf("generate nonce: %w", err)
	}

	return EncryptAESWithNonce(key, plaintext, nonce, nil)
}

// EncryptAESWithNonce encrypts plaintext using AES-256-GCM with the caller's
// nonce and optional additional authenticated data.
// Returns: nonce || ciphertext || tag.
func EncryptAESWithNonce(key, plaintext, nonce, aad []byte) ([]byte, error) {
	if len(key) != AESKeySize {
		return nil, fmt.Errorf("%w: got %d, want %d", ErrInvalidKeySize, len(key), AESKeySize)
	}
	if len(nonce) != AESNonceSize {
		return nil, fmt.Errorf("%w: got %d, want %d", ErrInvalidNonceSize, len(nonce), AESNonceSize)
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("create cipher: %w", err)
	}

	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("create GCM: %w", err)
	}

	ciphertext := gcm.Seal(nil, nonce, plaintext, aad)
	return append(append([]byte{}, nonce...), ciphertext...), nil
}

// DecryptAES decrypts data produced by EncryptAES.
// The ciphertext format is: nonce (12 bytes) || ciphertext || tag (16 bytes).
func DecryptAES(key, ciphertext []byte) ([]byte, error) {
	return DecryptAESWithAAD(key, ciphertext, nil)
}

// DecryptAESWithAAD decrypts nonce-prefixed AES-256-GCM data with optional
// additional authenticated data.
func DecryptAESWithAAD(key, ciphertext, aad []byte) ([]byte, error) {
	if len(key) != AESKeySize {
		return nil, fmt.Errorf("%w: got %d, want %d", ErrInvalidKeySize, len(key), AESKeySize)
	}
	if len(ciphertext) < AESNonceSize+AESTagSize {
		return nil, fmt.Errorf("%w: %d bytes", ErrCiphertextTooShort, len(ciphertext))
	}

	nonce := ciphertext[:AESNonceSize]
	body := ciphertext[AESNonceSize:]

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}

	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, err
	}

	plaintext, err := gcm.Open(nil, nonce, body, aad)
	if err != nil {
		return nil, ErrDecryptionFailed
	}

	return plaintext, nil
}
