package localseal

import (
	"context"
	"crypto/ed25519"
	"crypto/rand"
	"encoding/hex"
	"fmt"
)

// WalletSigner is an Ed25519 keypair acting as the wallet. Its address is
// the 0x-prefixed hex encoding of the public key, which is how sessions are
// bound to it and how signatures are verified.
type WalletSigner struct {
	public ed25519.PublicKey
	secret ed25519.PrivateKey
}

// NewWalletSigner generates a fresh Ed25519 wallet.
func NewWalletSigner() (*WalletSigner, error) {
	public, secret, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return nil, fmt.Errorf("generate wallet key: %w", err)
	}
	return &WalletSigner{public: public, secret: secret}, nil
}

// Address returns the wallet address: 0x-prefixed hex of the public key.
func (s *WalletSigner) Address() string {
	return "0x" + hex.EncodeToString(s.public)
}

// SignMessage signs a session challenge message.
func (s *WalletSigner) SignMessage(ctx context.Context, message []byte) ([]byte, error) {
	if len(message) == 0 {
		return nil, fmt.Errorf("empty challenge message")
	}
	return ed25519.Sign(s.secret, message), nil
}

// addressKey decodes a wallet address back to its Ed25519 public key.
func addressKey(address string) (ed25519.PublicKey, error) {
	if len(address) < 2 || address[:2] != "0x" {
		return nil, fmt.Errorf("address %q missing 0x prefix", address)
	}
	raw, err := hex.DecodeString(address[2:])
	if err != nil {
		return nil, fmt.Errorf("decode address: %w", err)
	}
	if len(raw) != ed25519.PublicKeySize {
		return nil, fmt.Errorf("address is %d bytes, want %d", len(raw), ed25519.PublicKeySize)
	}
	return ed25519.PublicKey(raw), nil
}
