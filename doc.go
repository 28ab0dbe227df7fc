// Package sealbox provides a Go client SDK for identity-based threshold
// encryption with transparent envelope framing.
//
// Small payloads are sealed directly by the remote threshold service. Large
// payloads use hybrid "envelope" encryption: the payload is encrypted with
// AES-256-GCM under a fresh symmetric key and only that key is sealed by the
// service, so the expensive threshold operation always runs on a few dozen
// bytes. The switch is automatic and the two forms are distinguished on read
// by a size heuristic on the sealed-key length.
//
// Decryption is gated by time-boxed sessions: wallet-signed authorization
// tokens bound to an (address, policy package) pair, cached and proactively
// refreshed. Sessions are immutable snapshots; refreshing produces a new
// session rather than mutating a shared one.
//
// Basic usage:
//
//	client, err := sealbox.New(service, signer, txBuilder,
//	    sealbox.WithCache(sealbox.NewMemoryCache()))
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	result, err := client.EncryptFile(ctx, data, sealbox.EncryptOptions{
//	    Threshold: 2,
//	})
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	session, err := client.GetOrCreateSession(ctx, address, packageID, 10)
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	plain, err := client.DecryptFile(ctx, result.EncryptedData, sealbox.DecryptOptions{
//	    Session:  session,
//	    Identity: result.Identity,
//	})
//
// The threshold service, wallet signer, and transaction builder are consumed
// through interfaces (see [ThresholdClient], [Signer], [TxBuilder]); the
// localseal subpackage provides a complete in-process implementation for
// development and tests.
package sealbox
