package sealbox

import (
	"context"
	"crypto/sha256"
	"encoding/json"
	"fmt"
	"time"

	"github.com/walrus-haulout/sealbox-go/internal/crypto"
)

// DecryptOptions configures a single DecryptFile call.
type DecryptOptions struct {
	// Session is the authorized session, validated before any other work.
	// Required.
	Session *ManagedSession
	// PackageID scopes the identity to a policy package. Optional.
	PackageID string
	// Identity is the hex identity the data was encrypted under.
	Identity string
	// PolicyModule names the access-control module to build an approval
	// for. Leave empty to attach no approval.
	PolicyModule PolicyModule
	// PolicyArgs carries the module-specific approval arguments.
	PolicyArgs PolicyArgs
	// OnProgress receives advisory progress updates.
	OnProgress ProgressFunc
}

// DecryptionResult is the output of DecryptFile.
type DecryptionResult struct {
	// Data is the recovered plaintext.
	Data []byte
	// DecryptedAt is when decryption completed.
	DecryptedAt time.Time
	// Identity echoes the identity the call decrypted under.
	Identity string
	// PolicyModule echoes the module the approval referenced, if any.
	PolicyModule PolicyModule
}

// DecryptFile decrypts a blob produced by EncryptFile. Envelope blobs are
// recognized by the sealed-key length heuristic and opened in two steps
// (unseal the DEM key, then AES-decrypt the payload); everything else is
// handed to the threshold service whole.
//
// If direct decryption fails with a buffer/range-shaped error - the symptom
// of an envelope that slipped past detection near the size boundary - the
// envelope path is retried once before giving up.
func (c *Client) DecryptFile(ctx context.Context, data []byte, opts DecryptOptions) (*DecryptionResult, error) {
	if opts.Session == nil {
		return nil, &ConfigError{Field: "session", Err: ErrMissingSession}
	}
	if err := c.sessions.EnsureSessionValid(opts.Session); err != nil {
		return nil, err
	}

	// Validation of policy arguments happens before any network or crypto
	// work; malformed approvals fail fast.
	approval, err := c.buildApproval(ctx, opts.PackageID, opts.PolicyModule, opts.PolicyArgs, []string{opts.Identity})
	if err != nil {
		return nil, err
	}

	progress := opts.OnProgress
	progress.report("decrypt", 0)

	var plaintext []byte
	if crypto.DetectEnvelope(data) {
		plaintext, err = c.decryptEnvelope(ctx, data, opts, approval, progress)
	} else {
		plaintext, err = c.decryptDirect(ctx, data, opts, approval, progress)
	}
	if err != nil {
		return nil, err
	}
	progress.report("decrypt", 100)

	return &DecryptionResult{
		Data:         plaintext,
		DecryptedAt:  c.now(),
		Identity:     opts.Identity,
		PolicyModule: opts.PolicyModule,
	}, nil
}

// decryptDirect hands the whole blob to the threshold service, falling
// back to the envelope path once on buffer-shaped failures.
func (c *Client) decryptDirect(ctx context.Context, data []byte, opts DecryptOptions, approval []byte, progress ProgressFunc) ([]byte, error) {
	progress.report("unseal", 30)
	plaintext, err := c.service.Decrypt(ctx, data, opts.Session.Handle, approval)
	if err == nil {
		return plaintext, nil
	}

	if isBufferShaped(err) {
		if recovered, envErr := c.decryptEnvelope(ctx, data, opts, approval, progress); envErr == nil {
			return recovered, nil
		}
		// The envelope retry did not pan out; the direct error is the
		// meaningful one.
	}
	return nil, wrapDecryptErr("direct", opts.Identity, err)
}

// decryptEnvelope parses the frame, unseals the DEM key, and AES-decrypts
// the payload.
func (c *Client) decryptEnvelope(ctx context.Context, data []byte, opts DecryptOptions, approval []byte, progress ProgressFunc) ([]byte, error) {
	sealedKey, encryptedPayload, err := crypto.ParseEnvelope(data)
	if err != nil {
		return nil, &DecryptionError{Stage: "envelope", Err: err}
	}
	progress.report("unseal", 30)

	demKey, err := c.unsealKey(ctx, sealedKey, opts, approval)
	if err != nil {
		return nil, wrapDecryptErr("threshold", opts.Identity, err)
	}
	progress.report("unseal", 70)

	plaintext, err := crypto.DecryptAES(demKey, encryptedPayload)
	if err != nil {
		return nil, &DecryptionError{Stage: "aes", Err: err}
	}
	return plaintext, nil
}

// unsealKey recovers a DEM key, consulting the key-material cache first.
// Cache failures degrade to a service round trip and are reported, never
// raised.
func (c *Client) unsealKey(ctx context.Context, sealedKey []byte, opts DecryptOptions, approval []byte) ([]byte, error) {
	cacheKey := keyCacheKey(opts.Identity, sealedKey)

	cached, err := c.cache.Get(ctx, cacheKey)
	if err != nil {
		c.reportError(&CacheError{Op: "read key material", Err: err})
	} else if cached != nil {
		return cached, nil
	}

	demKey, err := c.service.Decrypt(ctx, sealedKey, opts.Session.Handle, approval)
	if err != nil {
		return nil, err
	}
	if len(demKey) != crypto.AESKeySize {
		return nil, fmt.Errorf("unsealed key has %d bytes, want %d", len(demKey), crypto.AESKeySize)
	}

	if err := c.cache.Set(ctx, cacheKey, demKey, c.keyMaterialTTL); err != nil {
		c.reportError(&CacheError{Op: "cache key material", Err: err})
	}
	return demKey, nil
}

// keyCacheKey addresses a cached DEM key by identity and sealed-key digest,
// so re-encrypted data under the same identity never hits a stale key.
func keyCacheKey(identity string, sealedKey []byte) string {
	digest := sha256.Sum256(sealedKey)
	return "key:" + identity + ":" + crypto.ToHex(digest[:8])
}

// DecryptFileWithRetry runs DecryptFile, retrying transient failures with
// jittered exponential backoff. Policy denials, expired sessions, and
// validation failures are permanent and never retried. A nil cfg uses
// DefaultRetryConfig.
func (c *Client) DecryptFileWithRetry(ctx context.Context, data []byte, opts DecryptOptions, cfg *RetryConfig) (*DecryptionResult, error) {
	if cfg == nil {
		cfg = DefaultRetryConfig()
	}

	var lastErr error
	for attempt := 0; ; attempt++ {
		result, err := c.DecryptFile(ctx, data, opts)
		if err == nil {
			return result, nil
		}
		lastErr = err

		if !cfg.ShouldRetry(attempt, err) {
			return nil, lastErr
		}
		if waitErr := cfg.Wait(ctx, attempt); waitErr != nil {
			return nil, lastErr
		}
	}
}

// DecryptJSON decrypts a blob and decodes the plaintext as UTF-8 JSON
// into v. Convenience for structured metadata stored encrypted.
func (c *Client) DecryptJSON(ctx context.Context, data []byte, opts DecryptOptions, v any) error {
	result, err := c.DecryptFile(ctx, data, opts)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(result.Data, v); err != nil {
		return &DecryptionError{Stage: "decode", Err: err}
	}
	return nil
}
