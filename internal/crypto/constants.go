package crypto

const (
	// HKDFContext is the context string used in HKDF key derivation
	// for domain separation of envelope DEM keys.
	HKDFContext = "sealbox:envelope:v1"

	// AESKeySize is the size of an AES-256 key in bytes.
	AESKeySize = 32
	// AESNonceSize is the size of an AES-GCM nonce in bytes.
	AESNonceSize = 12
	// AESTagSize is the size of an AES-GCM authentication tag in bytes.
	AESTagSize = 16

	// SealedKeyHeaderSize is the size of the little-endian length prefix
	// at the start of an envelope.
	SealedKeyHeaderSize = 4

	// MinSealedKeyLen is the smallest sealed-key length DetectEnvelope
	// accepts. A threshold-sealed 32-byte DEM key never encodes below this
	// for a 2-server committee.
	MinSealedKeyLen = 150
	// MaxSealedKeyLen is the largest sealed-key length DetectEnvelope
	// accepts, covering committees of up to 6 servers.
	MaxSealedKeyLen = 800

	// DefaultEnvelopeThreshold is the payload size, in bytes, above which
	// envelope encryption is used instead of sealing the payload directly.
	DefaultEnvelopeThreshold = 1 << 20

	// DefaultIdentitySize is the byte length of generated identities.
	DefaultIdentitySize = 16
)
