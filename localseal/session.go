package localseal

import (
	"crypto/ed25519"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/walrus-haulout/sealbox-go/internal/crypto"
)

// Session is the engine's session handle. It starts unauthorized; the
// caller signs ChallengeMessage with the wallet bound to the address and
// attaches the signature, which is verified immediately against the
// address's Ed25519 public key.
type Session struct {
	id        string
	address   string
	packageID string
	challenge []byte
	signature []byte
	expiresAt time.Time
	verified  bool
	now       func() time.Time
}

// Address returns the wallet address the session is bound to.
func (s *Session) Address() string { return s.address }

// PackageID returns the policy package the session is scoped to.
func (s *Session) PackageID() string { return s.packageID }

// ChallengeMessage returns the message the wallet must sign.
func (s *Session) ChallengeMessage() []byte {
	return append([]byte(nil), s.challenge...)
}

// AttachSignature verifies the wallet signature over the challenge and
// marks the session authorized.
func (s *Session) AttachSignature(signature []byte) error {
	public, err := addressKey(s.address)
	if err != nil {
		return err
	}
	if !ed25519.Verify(public, s.challenge, signature) {
		return fmt.Errorf("signature does not verify for address %s", s.address)
	}
	s.signature = append([]byte(nil), signature...)
	s.verified = true
	return nil
}

// ExpiresAt returns the session's expiry time.
func (s *Session) ExpiresAt() time.Time { return s.expiresAt }

// IsExpired reports whether the session has lapsed.
func (s *Session) IsExpired() (bool, error) {
	return !s.now().Before(s.expiresAt), nil
}

// exportedHandle is the JSON form of a session blob.
type exportedHandle struct {
	ID        string    `json:"id"`
	Address   string    `json:"address"`
	PackageID string    `json:"package_id,omitempty"`
	Challenge string    `json:"challenge"`
	Signature string    `json:"signature,omitempty"`
	ExpiresAt time.Time `json:"expires_at"`
}

// Export serializes the session, signature included, to an opaque blob.
func (s *Session) Export() ([]byte, error) {
	return json.Marshal(exportedHandle{
		ID:        s.id,
		Address:   s.address,
		PackageID: s.packageID,
		Challenge: crypto.ToBase64URL(s.challenge),
		Signature: crypto.ToBase64URL(s.signature),
		ExpiresAt: s.expiresAt,
	})
}

func newSession(address, packageID string, ttl time.Duration, now func() time.Time) (*Session, error) {
	if _, err := addressKey(address); err != nil {
		return nil, err
	}
	id := uuid.NewString()
	nonce, err := crypto.RandomBytes(32)
	if err != nil {
		return nil, err
	}
	issued := now()
	expires := issued.Add(ttl)
	challenge := fmt.Sprintf("localseal session %s\naddress %s\npackage %s\nexpires %d\nnonce %s",
		id, address, packageID, expires.Unix(), crypto.ToHex(nonce))
	return &Session{
		id:        id,
		address:   address,
		packageID: packageID,
		challenge: []byte(challenge),
		expiresAt: expires,
		now:       now,
	}, nil
}

func importSession(blob []byte, now func() time.Time) (*Session, error) {
	var exported exportedHandle
	if err := json.Unmarshal(blob, &exported); err != nil {
		return nil, fmt.Errorf("parse session blob: %w", err)
	}
	challenge, err := crypto.FromBase64URL(exported.Challenge)
	if err != nil {
		return nil, fmt.Errorf("decode challenge: %w", err)
	}
	session := &Session{
		id:        exported.ID,
		address:   exported.Address,
		packageID: exported.PackageID,
		challenge: challenge,
		expiresAt: exported.ExpiresAt,
		now:       now,
	}
	if exported.Signature != "" {
		signature, err := crypto.FromBase64URL(exported.Signature)
		if err != nil {
			return nil, fmt.Errorf("decode signature: %w", err)
		}
		// Re-verify on import; a tampered blob must not come back authorized.
		if err := session.AttachSignature(signature); err != nil {
			return nil, err
		}
	}
	return session, nil
}
