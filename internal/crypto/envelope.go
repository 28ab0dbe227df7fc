package crypto

import (
	"encoding/binary"
	"fmt"
)

// ShouldUseEnvelope reports whether a payload of the given size should use
// envelope encryption instead of being sealed directly by the threshold
// service. Payloads at or below the threshold go direct. A non-positive
// threshold selects DefaultEnvelopeThreshold.
func ShouldUseEnvelope(payloadSize, threshold int) bool {
	if threshold <= 0 {
		threshold = DefaultEnvelopeThreshold
	}
	return payloadSize > threshold
}

// BuildEnvelope frames a sealed key and an encrypted payload:
//
//	[4-byte LE len(sealedKey)][sealedKey][encryptedPayload]
//
// The sealed key length must sit inside the detectable range so that
// DetectEnvelope recognizes the output.
func BuildEnvelope(sealedKey, encryptedPayload []byte) ([]byte, error) {
	if len(sealedKey) < MinSealedKeyLen || len(sealedKey) > MaxSealedKeyLen {
		return nil, fmt.Errorf("%w: %d bytes", ErrSealedKeySize, len(sealedKey))
	}

	out := make([]byte, SealedKeyHeaderSize, SealedKeyHeaderSize+len(sealedKey)+len(encryptedPayload))
	binary.LittleEndian.PutUint32(out, uint32(len(sealedKey)))
	out = append(out, sealedKey...)
	out = append(out, encryptedPayload...)
	return out, nil
}

// ParseEnvelope splits an envelope into its sealed key and encrypted
// payload. It trusts the framing: callers must have run DetectEnvelope
// first. Structurally impossible input (truncated header or body) returns
// ErrNotAnEnvelope.
func ParseEnvelope(data []byte) (sealedKey, encryptedPayload []byte, err error) {
	if len(data) < SealedKeyHeaderSize {
		return nil, nil, fmt.Errorf("%w: %d bytes", ErrNotAnEnvelope, len(data))
	}

	keyLen := int(binary.LittleEndian.Uint32(data))
	if len(data) < SealedKeyHeaderSize+keyLen {
		return nil, nil, fmt.Errorf("%w: header claims %d-byte key, %d bytes total",
			ErrNotAnEnvelope, keyLen, len(data))
	}

	sealedKey = data[SealedKeyHeaderSize : SealedKeyHeaderSize+keyLen]
	encryptedPayload = data[SealedKeyHeaderSize+keyLen:]
	return sealedKey, encryptedPayload, nil
}

// DetectEnvelope reports whether data looks like an envelope. The check is
// a plausible-range heuristic on the length header: a legitimate sealed
// DEM key is always MinSealedKeyLen..MaxSealedKeyLen bytes for supported
// key-server configurations, so an in-range header with a non-empty body
// reliably discriminates envelopes from directly sealed blobs. Corrupted
// or out-of-range headers return false; callers fall back to direct
// decryption. Never panics on arbitrary input; nil and short inputs
// return false.
func DetectEnvelope(data []byte) bool {
	if len(data) < SealedKeyHeaderSize {
		return false
	}

	keyLen := int(binary.LittleEndian.Uint32(data))
	if keyLen < MinSealedKeyLen || keyLen > MaxSealedKeyLen {
		return false
	}

	return len(data) > keyLen+SealedKeyHeaderSize
}
