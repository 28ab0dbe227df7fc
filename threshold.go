package sealbox

import (
	"context"
	"time"
)

// EncryptedObject is the output of a threshold-service encryption: the
// sealed bytes plus an opaque recovery key for disaster recovery.
type EncryptedObject struct {
	// Data is the sealed object as produced by the service.
	Data []byte
	// BackupKey is an opaque recovery key. Keep it secret; it decrypts
	// Data without the key servers.
	BackupKey []byte
}

// ThresholdClient is the external identity-based threshold encryption
// service. A quorum of independent key servers must cooperate to decrypt;
// how shares are combined and how key servers are reached is entirely the
// implementation's concern, including its own transport retry policy.
type ThresholdClient interface {
	// Encrypt seals data under the given identity so that any quorum of
	// `threshold` key servers can later release it. packageID scopes the
	// identity to a policy package and may be empty.
	Encrypt(ctx context.Context, identity string, data []byte, threshold int, packageID string) (*EncryptedObject, error)

	// Decrypt opens a sealed object using an authorized session. approvalTx
	// carries the serialized policy-approval payload; implementations may
	// accept an empty approval when keys were prefetched for the identity.
	Decrypt(ctx context.Context, data []byte, session SessionHandle, approvalTx []byte) ([]byte, error)

	// FetchKeys retrieves key shares for all listed identities in one round
	// trip, populating the service's internal cache consulted by subsequent
	// Decrypt calls.
	FetchKeys(ctx context.Context, identities []string, session SessionHandle, approvalTx []byte, threshold int) error

	// NewSession constructs an unauthorized session handle bound to a
	// wallet address and policy package. The handle's challenge message
	// must be signed and attached before the session is usable.
	NewSession(ctx context.Context, address, packageID string, ttl time.Duration) (SessionHandle, error)

	// ImportSession reconstructs a handle from an exported blob.
	ImportSession(ctx context.Context, blob []byte) (SessionHandle, error)
}

// SessionHandle is an opaque, time-boxed decryption credential issued by
// the threshold service.
type SessionHandle interface {
	// Address returns the wallet address the session is bound to.
	Address() string

	// PackageID returns the policy package the session is scoped to.
	PackageID() string

	// ChallengeMessage returns the canonical message the wallet must sign
	// to authorize this session.
	ChallengeMessage() []byte

	// AttachSignature attaches the wallet signature over the challenge
	// message. Implementations may verify it immediately.
	AttachSignature(signature []byte) error

	// ExpiresAt returns the handle's expiry time.
	ExpiresAt() time.Time

	// IsExpired is the handle's own expiry check. Callers treat an error
	// as expired (fail closed).
	IsExpired() (bool, error)

	// Export serializes the handle to an opaque blob for caching or
	// transfer. The blob contains credential material; handle securely.
	Export() ([]byte, error)
}

// Signer is the wallet capability: it signs session challenge messages.
type Signer interface {
	SignMessage(ctx context.Context, message []byte) ([]byte, error)
}

// TxBuilder constructs serialized policy-approval payloads referencing a
// policy module and its per-module arguments.
type TxBuilder interface {
	BuildApproval(ctx context.Context, packageID string, module PolicyModule, args PolicyArgs, identities []string) ([]byte, error)
}
