package sealbox

import (
	"context"
	"fmt"
	"time"

	"github.com/walrus-haulout/sealbox-go/internal/crypto"
)

// DEMType names the data-encapsulation mechanism of an encrypted blob.
type DEMType string

const (
	// DEMTypeNone means the payload was sealed directly by the threshold
	// service with no symmetric layer.
	DEMTypeNone DEMType = "none"
	// DEMTypeAES means the payload was encrypted with AES-256-GCM and only
	// the key was sealed (envelope encryption).
	DEMTypeAES DEMType = "aes-256-gcm"
)

// EncryptionMetadata describes how a blob was encrypted.
// IsEnvelope is true exactly when DEMType is DEMTypeAES.
type EncryptionMetadata struct {
	Threshold     int
	PackageID     string
	AccessPolicy  string
	DEMType       DEMType
	Timestamp     time.Time
	OriginalSize  int
	EncryptedSize int
	IsEnvelope    bool
}

// EncryptionResult is the output of EncryptFile.
type EncryptionResult struct {
	// EncryptedData is the blob to store: either the sealed object itself
	// (direct) or an envelope frame (hybrid).
	EncryptedData []byte
	// BackupKey is the service's opaque recovery key.
	BackupKey []byte
	// Identity is the hex identity the data was encrypted under.
	Identity string
	// Metadata describes the encryption.
	Metadata EncryptionMetadata
}

// NewIdentity returns a fresh random hex identity suitable for
// EncryptOptions.Identity, such as the target of a policy rotation.
func NewIdentity() (string, error) {
	return crypto.RandomIdentity(crypto.DefaultIdentitySize)
}

// EncryptOptions configures a single EncryptFile call.
type EncryptOptions struct {
	// Threshold is the number of key servers that must cooperate to
	// decrypt. Required, at least 1.
	Threshold int
	// PackageID scopes the identity to a policy package. Optional.
	PackageID string
	// AccessPolicy is a free-form label recorded in the metadata. Optional.
	AccessPolicy string
	// Identity is the hex identity to encrypt under. A fresh random
	// identity is generated when empty.
	Identity string
	// ForceEnvelope overrides the size-based strategy choice.
	ForceEnvelope *bool
	// OnProgress receives advisory progress updates.
	OnProgress ProgressFunc
}

// EncryptFile encrypts data under a threshold identity, choosing between
// direct sealing (small payloads) and envelope encryption (large payloads)
// by size, unless ForceEnvelope overrides the choice.
func (c *Client) EncryptFile(ctx context.Context, data []byte, opts EncryptOptions) (*EncryptionResult, error) {
	if opts.Threshold < 1 {
		return nil, &ConfigError{Field: "threshold", Err: fmt.Errorf("%w: got %d", ErrInvalidThreshold, opts.Threshold)}
	}

	identity := opts.Identity
	if identity == "" {
		generated, err := crypto.RandomIdentity(crypto.DefaultIdentitySize)
		if err != nil {
			return nil, &EncryptionError{Err: err}
		}
		identity = generated
	} else if _, err := crypto.FromHex(identity); err != nil {
		return nil, &ConfigError{Field: "identity", Err: err}
	}

	useEnvelope := crypto.ShouldUseEnvelope(len(data), c.envelopeThreshold)
	if opts.ForceEnvelope != nil {
		useEnvelope = *opts.ForceEnvelope
	}

	progress := opts.OnProgress
	progress.report("encrypt", 0)

	var (
		blob      []byte
		backupKey []byte
		err       error
	)
	if useEnvelope {
		blob, backupKey, err = c.encryptEnvelope(ctx, identity, data, opts, progress)
	} else {
		blob, backupKey, err = c.encryptDirect(ctx, identity, data, opts, progress)
	}
	if err != nil {
		return nil, err
	}
	progress.report("encrypt", 100)

	demType := DEMTypeNone
	if useEnvelope {
		demType = DEMTypeAES
	}
	return &EncryptionResult{
		EncryptedData: blob,
		BackupKey:     backupKey,
		Identity:      identity,
		Metadata: EncryptionMetadata{
			Threshold:     opts.Threshold,
			PackageID:     opts.PackageID,
			AccessPolicy:  opts.AccessPolicy,
			DEMType:       demType,
			Timestamp:     c.now(),
			OriginalSize:  len(data),
			EncryptedSize: len(blob),
			IsEnvelope:    useEnvelope,
		},
	}, nil
}

// encryptDirect submits the whole payload to the threshold service.
func (c *Client) encryptDirect(ctx context.Context, identity string, data []byte, opts EncryptOptions, progress ProgressFunc) ([]byte, []byte, error) {
	progress.report("seal", 20)
	sealed, err := c.service.Encrypt(ctx, identity, data, opts.Threshold, opts.PackageID)
	if err != nil {
		return nil, nil, &EncryptionError{Err: fmt.Errorf("threshold encrypt: %w", err)}
	}
	return sealed.Data, sealed.BackupKey, nil
}

// encryptEnvelope AES-encrypts the payload under a fresh DEM key and seals
// only the key with the threshold service.
func (c *Client) encryptEnvelope(ctx context.Context, identity string, data []byte, opts EncryptOptions, progress ProgressFunc) ([]byte, []byte, error) {
	demKey, err := crypto.GenerateDEMKey()
	if err != nil {
		return nil, nil, &EncryptionError{Err: fmt.Errorf("generate DEM key: %w", err)}
	}

	encryptedPayload, err := crypto.EncryptAES(demKey, data)
	if err != nil {
		return nil, nil, &EncryptionError{Err: fmt.Errorf("symmetric encrypt: %w", err)}
	}
	progress.report("seal", 40)

	sealed, err := c.service.Encrypt(ctx, identity, demKey, opts.Threshold, opts.PackageID)
	if err != nil {
		return nil, nil, &EncryptionError{Err: fmt.Errorf("seal DEM key: %w", err)}
	}
	progress.report("seal", 80)

	blob, err := crypto.BuildEnvelope(sealed.Data, encryptedPayload)
	if err != nil {
		return nil, nil, &EncryptionError{Err: fmt.Errorf("frame envelope: %w", err)}
	}
	return blob, sealed.BackupKey, nil
}
