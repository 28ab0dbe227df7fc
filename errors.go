package sealbox

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// Sentinel errors for errors.Is() checks
var (
	// ErrInvalidTTL is returned when a session TTL is out of the 1-30 minute range.
	ErrInvalidTTL = errors.New("session TTL must be between 1 and 30 minutes")

	// ErrInvalidThreshold is returned when an encryption threshold is below 1.
	ErrInvalidThreshold = errors.New("threshold must be at least 1")

	// ErrMissingSession is returned when a decrypt call has no session.
	ErrMissingSession = errors.New("session is required")

	// ErrSessionExpired is returned when an expired session is used.
	ErrSessionExpired = errors.New("session expired")

	// ErrSessionCreation is returned when constructing a session fails.
	ErrSessionCreation = errors.New("session creation failed")

	// ErrPolicyDenied is returned when the threshold service denies access.
	ErrPolicyDenied = errors.New("access denied by policy")

	// ErrInvalidPolicyArgs is returned when policy-approval arguments are
	// missing or out of range.
	ErrInvalidPolicyArgs = errors.New("invalid policy arguments")

	// ErrEncryptionFailed is returned when encryption fails.
	ErrEncryptionFailed = errors.New("encryption failed")

	// ErrDecryptionFailed is returned when decryption fails.
	ErrDecryptionFailed = errors.New("decryption failed")

	// ErrCacheUnavailable is returned when the requested persistent cache
	// backend cannot be reached.
	ErrCacheUnavailable = errors.New("cache unavailable")

	// ErrSamePolicyIdentity is returned when re-encryption is asked to
	// target the identity the blob is already encrypted under.
	ErrSamePolicyIdentity = errors.New("source and target identities are identical")

	// ErrStreamingNotSupported is returned by ReencryptStream: chunked
	// re-encryption must fail loudly rather than silently buffering.
	ErrStreamingNotSupported = errors.New("streaming re-encryption is not implemented")

	// ErrInvalidSessionBlob is returned when an exported session blob is malformed.
	ErrInvalidSessionBlob = errors.New("invalid exported session")
)

// SealboxError is implemented by all SDK errors.
type SealboxError interface {
	error
	SealboxError() // marker method
}

// ConfigError reports invalid static configuration detected before any
// network or crypto work begins.
type ConfigError struct {
	Field   string
	Message string
	Err     error
}

func (e *ConfigError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("invalid configuration: %s: %s", e.Field, e.Message)
	}
	return fmt.Sprintf("invalid configuration: %s: %v", e.Field, e.Err)
}

// Unwrap returns the underlying error.
func (e *ConfigError) Unwrap() error { return e.Err }

// SealboxError implements the SealboxError interface.
func (e *ConfigError) SealboxError() {}

// SessionError represents a failure to create or restore a session.
type SessionError struct {
	Op  string // "create", "restore", "refresh", "import"
	Err error
}

func (e *SessionError) Error() string {
	return fmt.Sprintf("session %s failed: %v", e.Op, e.Err)
}

// Unwrap returns the underlying error.
func (e *SessionError) Unwrap() error { return e.Err }

// Is implements errors.Is for sentinel error matching.
func (e *SessionError) Is(target error) bool {
	return target == ErrSessionCreation
}

// SealboxError implements the SealboxError interface.
func (e *SessionError) SealboxError() {}

// SessionExpiredError is returned when a decrypt precondition finds the
// session expired. It carries the expiry timestamp for diagnostics.
type SessionExpiredError struct {
	ExpiresAt time.Time
}

func (e *SessionExpiredError) Error() string {
	if e.ExpiresAt.IsZero() {
		return "session expired"
	}
	return fmt.Sprintf("session expired at %s", e.ExpiresAt.UTC().Format(time.RFC3339))
}

// Is implements errors.Is for sentinel error matching.
func (e *SessionExpiredError) Is(target error) bool {
	return target == ErrSessionExpired
}

// SealboxError implements the SealboxError interface.
func (e *SessionExpiredError) SealboxError() {}

// PolicyDeniedError is returned when the threshold service explicitly
// denies access to an identity.
type PolicyDeniedError struct {
	Identity string
	Err      error
}

func (e *PolicyDeniedError) Error() string {
	if e.Identity != "" {
		return fmt.Sprintf("access denied for identity %s: %v", e.Identity, e.Err)
	}
	return fmt.Sprintf("access denied: %v", e.Err)
}

// Unwrap returns the underlying error.
func (e *PolicyDeniedError) Unwrap() error { return e.Err }

// Is implements errors.Is for sentinel error matching.
func (e *PolicyDeniedError) Is(target error) bool {
	return target == ErrPolicyDenied
}

// SealboxError implements the SealboxError interface.
func (e *PolicyDeniedError) SealboxError() {}

// EncryptionError wraps a failure during encryption.
type EncryptionError struct {
	Err error
}

func (e *EncryptionError) Error() string {
	return fmt.Sprintf("encryption failed: %v", e.Err)
}

// Unwrap returns the underlying error.
func (e *EncryptionError) Unwrap() error { return e.Err }

// Is implements errors.Is for sentinel error matching.
func (e *EncryptionError) Is(target error) bool {
	return target == ErrEncryptionFailed
}

// SealboxError implements the SealboxError interface.
func (e *EncryptionError) SealboxError() {}

// DecryptionError wraps a failure during decryption, including symmetric
// crypto failures and envelope-parse failures.
type DecryptionError struct {
	Stage string // "envelope", "threshold", "aes", "direct"
	Err   error
}

func (e *DecryptionError) Error() string {
	if e.Stage != "" {
		return fmt.Sprintf("decryption failed at %s: %v", e.Stage, e.Err)
	}
	return fmt.Sprintf("decryption failed: %v", e.Err)
}

// Unwrap returns the underlying error.
func (e *DecryptionError) Unwrap() error { return e.Err }

// Is implements errors.Is for sentinel error matching.
func (e *DecryptionError) Is(target error) bool {
	return target == ErrDecryptionFailed
}

// SealboxError implements the SealboxError interface.
func (e *DecryptionError) SealboxError() {}

// CacheError represents a persistent-store failure on an explicit cache
// operation. Background cache writes degrade instead of raising this.
type CacheError struct {
	Op  string
	Err error
}

func (e *CacheError) Error() string {
	return fmt.Sprintf("cache %s failed: %v", e.Op, e.Err)
}

// Unwrap returns the underlying error.
func (e *CacheError) Unwrap() error { return e.Err }

// Is implements errors.Is for sentinel error matching.
func (e *CacheError) Is(target error) bool {
	return target == ErrCacheUnavailable
}

// SealboxError implements the SealboxError interface.
func (e *CacheError) SealboxError() {}

// isPolicyDenied recognizes denial-shaped errors from the external service.
// The service reports denials as plain errors whose text names the denial;
// there is no structured code to switch on.
func isPolicyDenied(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrPolicyDenied) {
		return true
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "denied") ||
		strings.Contains(msg, "unauthorized") ||
		strings.Contains(msg, "not allowed")
}

// isBufferShaped recognizes buffer/range-shaped failures, the symptom of
// decrypting an envelope as if it were a directly sealed blob. The decrypt
// facade uses this to retry once through the envelope path.
func isBufferShaped(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "out of range") ||
		strings.Contains(msg, "out of bounds") ||
		strings.Contains(msg, "buffer") ||
		strings.Contains(msg, "truncated")
}
