package sealbox

import (
	"context"
	"fmt"
	"time"
)

// ReencryptOptions configures a ReencryptBlob call: how to open the blob
// under the current policy, and how to protect it under the new one.
type ReencryptOptions struct {
	// Decrypt describes the source: session, identity, and policy of the
	// existing blob.
	Decrypt DecryptOptions
	// Encrypt describes the target: threshold, package, and the new
	// identity. Identity is required and must differ from the source.
	Encrypt EncryptOptions
	// OnProgress receives staged progress: decryption maps to 0-30,
	// re-encryption to 30-100.
	OnProgress ProgressFunc
}

// ReencryptionResult reports sizes and timings of a completed rotation.
type ReencryptionResult struct {
	OriginalBlobSize int
	OriginalIdentity string
	NewBlobSize      int
	NewIdentity      string
	DecryptionTime   time.Duration
	EncryptionTime   time.Duration
	TotalTime        time.Duration
	Success          bool
}

// ValidateReencryptOptions checks the rotation preconditions before any
// network or crypto work: both identities present and distinct, and a
// session to decrypt with.
func ValidateReencryptOptions(opts ReencryptOptions) error {
	if opts.Decrypt.Session == nil {
		return &ConfigError{Field: "decrypt.session", Err: ErrMissingSession}
	}
	if opts.Decrypt.Identity == "" {
		return &ConfigError{Field: "decrypt.identity", Message: "source identity is required"}
	}
	if opts.Encrypt.Identity == "" {
		return &ConfigError{Field: "encrypt.identity", Message: "target identity is required"}
	}
	if opts.Decrypt.Identity == opts.Encrypt.Identity {
		return &ConfigError{Field: "encrypt.identity", Err: ErrSamePolicyIdentity}
	}
	return nil
}

// ReencryptBlob rotates the protecting policy on an encrypted blob: it
// decrypts under the current policy and immediately re-encrypts under the
// new one. The plaintext exists only as a transient in-memory value for the
// duration of the call and is never written to any store.
func (c *Client) ReencryptBlob(ctx context.Context, blob []byte, opts ReencryptOptions) ([]byte, *ReencryptionResult, error) {
	if err := ValidateReencryptOptions(opts); err != nil {
		return nil, nil, err
	}

	progress := opts.OnProgress
	progress.report("reencrypt", 0)
	started := c.now()

	decryptOpts := opts.Decrypt
	decryptOpts.OnProgress = progress.scaled(0, 30)
	decrypted, err := c.DecryptFile(ctx, blob, decryptOpts)
	if err != nil {
		return nil, nil, err
	}
	decryptDone := c.now()
	progress.report("reencrypt", 30)

	encryptOpts := opts.Encrypt
	encryptOpts.OnProgress = progress.scaled(30, 100)
	encrypted, err := c.EncryptFile(ctx, decrypted.Data, encryptOpts)
	if err != nil {
		return nil, nil, err
	}
	finished := c.now()
	progress.report("reencrypt", 100)

	result := &ReencryptionResult{
		OriginalBlobSize: len(blob),
		OriginalIdentity: opts.Decrypt.Identity,
		NewBlobSize:      len(encrypted.EncryptedData),
		NewIdentity:      encrypted.Identity,
		DecryptionTime:   decryptDone.Sub(started),
		EncryptionTime:   finished.Sub(decryptDone),
		TotalTime:        finished.Sub(started),
		Success:          true,
	}
	return encrypted.EncryptedData, result, nil
}

// ReencryptStream is the chunked variant for blobs too large to buffer.
// It is not implemented: failing immediately is safer than silently
// falling back to whole-blob buffering the caller tried to avoid.
func (c *Client) ReencryptStream(ctx context.Context, opts ReencryptOptions) error {
	return fmt.Errorf("%w: use ReencryptBlob for whole-blob rotation", ErrStreamingNotSupported)
}
