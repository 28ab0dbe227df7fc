package crypto

import (
	"bytes"
	"crypto/rand"
	"encoding/binary"
	"errors"
	"fmt"
	"testing"
)

func buildWithKeyLen(t *testing.T, keyLen, payloadLen int) ([]byte, []byte, []byte) {
	t.Helper()
	sealedKey := make([]byte, keyLen)
	payload := make([]byte, payloadLen)
	if _, err := rand.Read(sealedKey); err != nil {
		t.Fatal(err)
	}
	if _, err := rand.Read(payload); err != nil {
		t.Fatal(err)
	}
	env, err := BuildEnvelope(sealedKey, payload)
	if err != nil {
		t.Fatalf("BuildEnvelope(keyLen=%d) error = %v", keyLen, err)
	}
	return env, sealedKey, payload
}

func TestEnvelope_RoundTrip(t *testing.T) {
	for _, keyLen := range []int{MinSealedKeyLen, 215, 400, 555, MaxSealedKeyLen} {
		t.Run(fmt.Sprintf("keyLen=%d", keyLen), func(t *testing.T) {
			env, sealedKey, payload := buildWithKeyLen(t, keyLen, 1024)

			if !DetectEnvelope(env) {
				t.Fatal("DetectEnvelope() = false on built envelope")
			}

			gotKey, gotPayload, err := ParseEnvelope(env)
			if err != nil {
				t.Fatalf("ParseEnvelope() error = %v", err)
			}
			if !bytes.Equal(gotKey, sealedKey) {
				t.Error("sealed key mismatch")
			}
			if !bytes.Equal(gotPayload, payload) {
				t.Error("payload mismatch")
			}
		})
	}
}

func TestBuildEnvelope_KeySizeBounds(t *testing.T) {
	payload := []byte("payload")
	for _, keyLen := range []int{0, MinSealedKeyLen - 1, MaxSealedKeyLen + 1} {
		if _, err := BuildEnvelope(make([]byte, keyLen), payload); !errors.Is(err, ErrSealedKeySize) {
			t.Errorf("BuildEnvelope(keyLen=%d) error = %v, want ErrSealedKeySize", keyLen, err)
		}
	}
}

func TestDetectEnvelope_Boundaries(t *testing.T) {
	// Header claims keyLen, body is keyLen+1 so total > keyLen+4.
	mk := func(keyLen uint32, bodyLen int) []byte {
		data := make([]byte, SealedKeyHeaderSize+bodyLen)
		binary.LittleEndian.PutUint32(data, keyLen)
		return data
	}

	tests := []struct {
		name string
		data []byte
		want bool
	}{
		{"nil", nil, false},
		{"empty", []byte{}, false},
		{"3 bytes", []byte{1, 2, 3}, false},
		{"header only", mk(MinSealedKeyLen, 0), false},
		{"at min", mk(MinSealedKeyLen, MinSealedKeyLen+1), true},
		{"below min", mk(MinSealedKeyLen-1, MinSealedKeyLen), false},
		{"at max", mk(MaxSealedKeyLen, MaxSealedKeyLen+1), true},
		{"above max", mk(MaxSealedKeyLen+1, MaxSealedKeyLen+2), false},
		{"body exactly keyLen", mk(200, 200), false},
		{"body keyLen+1", mk(200, 201), true},
		{"huge header", mk(1<<31, 64), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := DetectEnvelope(tt.data); got != tt.want {
				t.Errorf("DetectEnvelope() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestDetectEnvelope_RandomGarbage(t *testing.T) {
	// The heuristic must never panic on arbitrary bytes.
	for i := 0; i < 200; i++ {
		buf := make([]byte, i)
		if _, err := rand.Read(buf); err != nil {
			t.Fatal(err)
		}
		DetectEnvelope(buf)
	}
}

func TestParseEnvelope_Truncated(t *testing.T) {
	env, _, _ := buildWithKeyLen(t, 300, 64)

	tests := []struct {
		name string
		data []byte
	}{
		{"short header", env[:3]},
		{"truncated body", env[:SealedKeyHeaderSize+100]},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, _, err := ParseEnvelope(tt.data); !errors.Is(err, ErrNotAnEnvelope) {
				t.Errorf("ParseEnvelope() error = %v, want ErrNotAnEnvelope", err)
			}
		})
	}
}

func TestShouldUseEnvelope(t *testing.T) {
	tests := []struct {
		name      string
		size      int
		threshold int
		want      bool
	}{
		{"small default", 10, 0, false},
		{"at default threshold", DefaultEnvelopeThreshold, 0, false},
		{"just above default", DefaultEnvelopeThreshold + 1, 0, true},
		{"5MiB default", 5 << 20, 0, true},
		{"custom threshold below", 100, 128, false},
		{"custom threshold above", 129, 128, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ShouldUseEnvelope(tt.size, tt.threshold); got != tt.want {
				t.Errorf("ShouldUseEnvelope(%d, %d) = %v, want %v", tt.size, tt.threshold, got, tt.want)
			}
		})
	}
}
