// Package crypto provides the client-side cryptographic primitives for the
// sealbox envelope scheme: byte/text codecs, identity generation, the
// symmetric (DEM) layer, and the envelope wire format.
//
// # Envelope Wire Format
//
// Large payloads are protected with hybrid "envelope" encryption: the
// payload is encrypted with AES-256-GCM under a fresh symmetric key, and
// only that key is sealed by the remote threshold service. The resulting
// blob is framed as:
//
//	[4-byte little-endian sealedKeyLength][sealed key][nonce || ciphertext || tag]
//
// There is no magic number or version tag. Detection relies on the sealed
// key length falling inside [MinSealedKeyLen, MaxSealedKeyLen], a range no
// legitimate sealed key falls outside of for the supported key-server
// configurations (2-6 servers). [DetectEnvelope] implements that check and
// is deliberately separate from [ParseEnvelope], which trusts the framing.
// The bounds must be preserved for compatibility with already-encrypted
// data; see the package-level constants.
//
// # Symmetric Layer
//
// DEM keys are 256-bit values produced by expanding a fresh random seed
// through HKDF-SHA-512 with a fixed context string for domain separation.
// Encryption prepends a fresh 12-byte nonce; the GCM tag trails the
// ciphertext. Nonces MUST never repeat under the same key, which the
// fresh-key-per-envelope design guarantees.
//
// # Identities
//
// Threshold identities are lowercase hex strings over cryptographically
// random bytes. [FromHex] accepts an optional "0x" prefix and rejects
// odd-length input.
package crypto
