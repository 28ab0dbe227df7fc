package sealbox

import (
	"context"
	"fmt"

	"github.com/walrus-haulout/sealbox-go/internal/crypto"
)

// Batch sizing bounds.
const (
	// DefaultBatchSize is used when BatchOptions.BatchSize is zero.
	DefaultBatchSize = 10
	// MaxBatchSize caps a single prefetch round trip; larger requests are
	// partitioned.
	MaxBatchSize = 50
)

// BatchItem is one encrypted blob with the identity it was encrypted under.
type BatchItem struct {
	Identity string
	Data     []byte
}

// BatchOptions configures a BatchDecrypt call.
type BatchOptions struct {
	// Session is the authorized session, validated before any other work.
	// Required.
	Session *ManagedSession
	// PackageID scopes the identities to a policy package. Optional.
	PackageID string
	// PolicyModule and PolicyArgs describe the approval covering every
	// identity in a batch.
	PolicyModule PolicyModule
	PolicyArgs   PolicyArgs
	// Threshold is the key-server quorum used for the prefetch.
	Threshold int
	// BatchSize is the number of items per prefetch round trip, capped at
	// MaxBatchSize. Zero selects DefaultBatchSize.
	BatchSize int
	// OnItemError is told about each skipped item. Advisory; may be nil.
	OnItemError func(identity string, err error)
}

// BatchDecrypt decrypts many blobs under one session, issuing a single
// key-share prefetch per batch so the per-call network and authorization
// overhead is amortized across items.
//
// Per-item failures are reported to OnItemError and skipped; the returned
// map contains only the successes, keyed by identity, so callers detect
// partial failure by comparing its size against the input. A failed batch
// prefetch skips that batch's items and processing continues with the next
// batch. BatchDecrypt itself fails only on invalid input or an expired
// session.
func (c *Client) BatchDecrypt(ctx context.Context, items []BatchItem, opts BatchOptions) (map[string][]byte, error) {
	if opts.Session == nil {
		return nil, &ConfigError{Field: "session", Err: ErrMissingSession}
	}
	if err := c.sessions.EnsureSessionValid(opts.Session); err != nil {
		return nil, err
	}
	if opts.PolicyModule != PolicyModuleNone {
		if err := validatePolicyArgs(opts.PolicyModule, opts.PolicyArgs); err != nil {
			return nil, err
		}
	}

	batchSize := opts.BatchSize
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}
	if batchSize > MaxBatchSize {
		batchSize = MaxBatchSize
	}

	results := make(map[string][]byte, len(items))
	for start := 0; start < len(items); start += batchSize {
		end := start + batchSize
		if end > len(items) {
			end = len(items)
		}
		c.decryptBatch(ctx, items[start:end], opts, results)
	}
	return results, nil
}

// decryptBatch prefetches key shares for one batch and decrypts its items
// individually against the warmed cache.
func (c *Client) decryptBatch(ctx context.Context, batch []BatchItem, opts BatchOptions, results map[string][]byte) {
	identities := make([]string, len(batch))
	for i, item := range batch {
		identities[i] = item.Identity
	}

	// One approval covers every identity in the batch, and one prefetch
	// round trip fetches all their key shares.
	approval, err := c.buildApproval(ctx, opts.PackageID, opts.PolicyModule, opts.PolicyArgs, identities)
	if err != nil {
		c.reportBatchFailure(batch, opts, fmt.Errorf("build batch approval: %w", err))
		return
	}
	if err := c.service.FetchKeys(ctx, identities, opts.Session.Handle, approval, opts.Threshold); err != nil {
		c.reportBatchFailure(batch, opts, fmt.Errorf("prefetch keys: %w", err))
		return
	}

	for _, item := range batch {
		plaintext, err := c.decryptBatchItem(ctx, item, opts, approval)
		if err != nil {
			c.reportItemError(opts, item.Identity, err)
			continue
		}
		results[item.Identity] = plaintext
	}
}

// decryptBatchItem opens one blob using the already-fetched keys.
func (c *Client) decryptBatchItem(ctx context.Context, item BatchItem, opts BatchOptions, approval []byte) ([]byte, error) {
	itemOpts := DecryptOptions{
		Session:   opts.Session,
		PackageID: opts.PackageID,
		Identity:  item.Identity,
	}
	if len(item.Data) == 0 {
		return nil, &DecryptionError{Stage: "envelope", Err: fmt.Errorf("empty blob")}
	}
	return c.decryptPrepared(ctx, item.Data, itemOpts, approval)
}

// decryptPrepared is the shared decrypt path once session and approval are
// settled: envelope detection, threshold unseal, symmetric open.
func (c *Client) decryptPrepared(ctx context.Context, data []byte, opts DecryptOptions, approval []byte) ([]byte, error) {
	if crypto.DetectEnvelope(data) {
		return c.decryptEnvelope(ctx, data, opts, approval, nil)
	}
	return c.decryptDirect(ctx, data, opts, approval, nil)
}

func (c *Client) reportBatchFailure(batch []BatchItem, opts BatchOptions, err error) {
	c.reportError(err)
	for _, item := range batch {
		c.reportItemError(opts, item.Identity, err)
	}
}

func (c *Client) reportItemError(opts BatchOptions, identity string, err error) {
	c.reportError(fmt.Errorf("batch item %s: %w", identity, err))
	if opts.OnItemError == nil {
		return
	}
	defer func() {
		_ = recover()
	}()
	opts.OnItemError(identity, err)
}
