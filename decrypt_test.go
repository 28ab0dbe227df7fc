package sealbox

import (
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"testing"
	"time"

	"github.com/walrus-haulout/sealbox-go/internal/crypto"
)

func mustCreateSession(t *testing.T, client *Client) *ManagedSession {
	t.Helper()
	session, err := client.CreateSession(context.Background(), "0xwallet", "", 10)
	if err != nil {
		t.Fatalf("CreateSession: %v", err)
	}
	return session
}

func TestDecryptFileRequiresSession(t *testing.T) {
	client, service, _ := newTestClient(t)

	_, err := client.DecryptFile(context.Background(), []byte("blob"), DecryptOptions{})
	if !errors.Is(err, ErrMissingSession) {
		t.Errorf("error %v, want ErrMissingSession", err)
	}
	if service.decryptCalls != 0 {
		t.Error("service called without a session")
	}
}

func TestDecryptFileRejectsExpiredSession(t *testing.T) {
	client, service, clock := newTestClient(t)
	session := mustCreateSession(t, client)
	clock.Advance(11 * time.Minute)

	_, err := client.DecryptFile(context.Background(), []byte("blob"), DecryptOptions{Session: session})
	if !errors.Is(err, ErrSessionExpired) {
		t.Errorf("error %v, want ErrSessionExpired", err)
	}
	if service.decryptCalls != 0 {
		t.Error("service called with an expired session")
	}
}

func TestDecryptFileFailsFastOnBadPolicyArgs(t *testing.T) {
	client, service, _ := newTestClient(t)
	session := mustCreateSession(t, client)

	_, err := client.DecryptFile(context.Background(), []byte("blob"), DecryptOptions{
		Session:      session,
		PolicyModule: PolicyModuleOpenAccess,
		PolicyArgs:   PolicyArgs{TimestampMs: 12345, ClockObject: "0x6"}, // seconds, not ms
	})
	if !errors.Is(err, ErrInvalidPolicyArgs) {
		t.Errorf("error %v, want ErrInvalidPolicyArgs", err)
	}
	if service.decryptCalls != 0 {
		t.Error("service called despite invalid policy args")
	}
}

func TestDecryptFileDirectRoundTrip(t *testing.T) {
	client, _, _ := newTestClient(t)
	session := mustCreateSession(t, client)

	encrypted, err := client.EncryptFile(context.Background(), []byte("direct payload"), EncryptOptions{Threshold: 2})
	if err != nil {
		t.Fatalf("EncryptFile: %v", err)
	}

	result, err := client.DecryptFile(context.Background(), encrypted.EncryptedData, DecryptOptions{
		Session:  session,
		Identity: encrypted.Identity,
	})
	if err != nil {
		t.Fatalf("DecryptFile: %v", err)
	}
	if string(result.Data) != "direct payload" {
		t.Errorf("Data = %q", result.Data)
	}
	if result.Identity != encrypted.Identity {
		t.Errorf("result identity %q, want %q", result.Identity, encrypted.Identity)
	}
}

func TestDecryptFileEnvelopeRoundTrip(t *testing.T) {
	client, _, _ := newTestClient(t, WithEnvelopeThreshold(64))
	session := mustCreateSession(t, client)

	payload := bytes.Repeat([]byte("envelope"), 40)
	encrypted, err := client.EncryptFile(context.Background(), payload, EncryptOptions{Threshold: 2})
	if err != nil {
		t.Fatalf("EncryptFile: %v", err)
	}
	if !encrypted.Metadata.IsEnvelope {
		t.Fatal("payload not envelope-encrypted")
	}

	result, err := client.DecryptFile(context.Background(), encrypted.EncryptedData, DecryptOptions{
		Session:  session,
		Identity: encrypted.Identity,
	})
	if err != nil {
		t.Fatalf("DecryptFile: %v", err)
	}
	if !bytes.Equal(result.Data, payload) {
		t.Error("envelope round trip mismatch")
	}
}

func TestDecryptFileCachesKeyMaterial(t *testing.T) {
	client, service, _ := newTestClient(t, WithEnvelopeThreshold(64))
	session := mustCreateSession(t, client)

	payload := bytes.Repeat([]byte("cached"), 40)
	encrypted, err := client.EncryptFile(context.Background(), payload, EncryptOptions{Threshold: 2})
	if err != nil {
		t.Fatalf("EncryptFile: %v", err)
	}

	opts := DecryptOptions{Session: session, Identity: encrypted.Identity}
	if _, err := client.DecryptFile(context.Background(), encrypted.EncryptedData, opts); err != nil {
		t.Fatalf("first DecryptFile: %v", err)
	}
	callsAfterFirst := service.decryptCalls

	if _, err := client.DecryptFile(context.Background(), encrypted.EncryptedData, opts); err != nil {
		t.Fatalf("second DecryptFile: %v", err)
	}
	if service.decryptCalls != callsAfterFirst {
		t.Errorf("second decrypt hit the service again: %d -> %d calls", callsAfterFirst, service.decryptCalls)
	}
}

func TestDecryptFileKeyMaterialTTL(t *testing.T) {
	clock := newTestClock()
	service := newFakeService(clock.Now)
	cache := newFakeCache(clock.Now)
	client, err := New(service, &fakeSigner{}, &fakeTxBuilder{},
		withClock(clock.Now), WithCache(cache),
		WithEnvelopeThreshold(64), WithKeyMaterialTTL(time.Minute))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	session := mustCreateSession(t, client)

	payload := bytes.Repeat([]byte("expiring"), 40)
	encrypted, err := client.EncryptFile(context.Background(), payload, EncryptOptions{Threshold: 2})
	if err != nil {
		t.Fatalf("EncryptFile: %v", err)
	}

	opts := DecryptOptions{Session: session, Identity: encrypted.Identity}
	if _, err := client.DecryptFile(context.Background(), encrypted.EncryptedData, opts); err != nil {
		t.Fatalf("first DecryptFile: %v", err)
	}
	callsAfterFirst := service.decryptCalls

	clock.Advance(2 * time.Minute)
	if _, err := client.DecryptFile(context.Background(), encrypted.EncryptedData, opts); err != nil {
		t.Fatalf("DecryptFile after TTL: %v", err)
	}
	if service.decryptCalls != callsAfterFirst+1 {
		t.Errorf("expired key material not re-fetched: %d -> %d calls", callsAfterFirst, service.decryptCalls)
	}
}

func TestDecryptFileDegradesOnCacheFailure(t *testing.T) {
	clock := newTestClock()
	service := newFakeService(clock.Now)
	cache := newFakeCache(clock.Now)
	var hookErrs []error
	client, err := New(service, &fakeSigner{}, &fakeTxBuilder{},
		withClock(clock.Now), WithCache(cache), WithEnvelopeThreshold(64),
		WithErrorHook(func(e error) { hookErrs = append(hookErrs, e) }))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	session := mustCreateSession(t, client)

	payload := bytes.Repeat([]byte("degrade"), 40)
	encrypted, err := client.EncryptFile(context.Background(), payload, EncryptOptions{Threshold: 2})
	if err != nil {
		t.Fatalf("EncryptFile: %v", err)
	}

	cache.getErr = errors.New("redis gone")
	cache.setErr = errors.New("redis gone")

	result, err := client.DecryptFile(context.Background(), encrypted.EncryptedData, DecryptOptions{
		Session:  session,
		Identity: encrypted.Identity,
	})
	if err != nil {
		t.Fatalf("DecryptFile with broken cache: %v", err)
	}
	if !bytes.Equal(result.Data, payload) {
		t.Error("round trip mismatch with broken cache")
	}

	found := false
	for _, e := range hookErrs {
		if errors.Is(e, ErrCacheUnavailable) {
			found = true
		}
	}
	if !found {
		t.Error("cache degradation not reported to the error hook")
	}
}

// buildUndetectableEnvelope frames a valid envelope whose sealed-key length
// sits below the detection window, the shape that slips past DetectEnvelope
// and triggers the buffer-shaped fallback.
func buildUndetectableEnvelope(t *testing.T, sealedKey, demKey, plaintext []byte) []byte {
	t.Helper()
	encryptedPayload, err := crypto.EncryptAES(demKey, plaintext)
	if err != nil {
		t.Fatalf("EncryptAES: %v", err)
	}
	frame := make([]byte, 0, 4+len(sealedKey)+len(encryptedPayload))
	frame = binary.LittleEndian.AppendUint32(frame, uint32(len(sealedKey)))
	frame = append(frame, sealedKey...)
	frame = append(frame, encryptedPayload...)
	return frame
}

func TestDecryptFileBufferShapedFallback(t *testing.T) {
	client, service, _ := newTestClient(t)
	session := mustCreateSession(t, client)

	demKey, err := crypto.RandomBytes(crypto.AESKeySize)
	if err != nil {
		t.Fatalf("RandomBytes: %v", err)
	}
	sealedKey := bytes.Repeat([]byte{0x42}, 100) // below the 150-byte window
	blob := buildUndetectableEnvelope(t, sealedKey, demKey, []byte("slipped past detection"))
	if crypto.DetectEnvelope(blob) {
		t.Fatal("test blob unexpectedly detected as envelope")
	}

	service.decryptFn = func(data []byte) ([]byte, error) {
		if bytes.Equal(data, sealedKey) {
			return demKey, nil
		}
		return nil, errors.New("slice bounds out of range")
	}

	result, err := client.DecryptFile(context.Background(), blob, DecryptOptions{Session: session, Identity: "aa"})
	if err != nil {
		t.Fatalf("DecryptFile: %v", err)
	}
	if string(result.Data) != "slipped past detection" {
		t.Errorf("Data = %q", result.Data)
	}
}

func TestDecryptFileFallbackKeepsOriginalError(t *testing.T) {
	client, service, _ := newTestClient(t)
	session := mustCreateSession(t, client)

	// Direct decryption fails buffer-shaped, and the blob is not a
	// parseable envelope either: the direct error must surface.
	service.decryptFn = func(data []byte) ([]byte, error) {
		return nil, errors.New("slice bounds out of range")
	}

	_, err := client.DecryptFile(context.Background(), []byte("junk"), DecryptOptions{Session: session, Identity: "aa"})
	if err == nil {
		t.Fatal("DecryptFile succeeded on junk")
	}
	var decErr *DecryptionError
	if !errors.As(err, &decErr) || decErr.Stage != "direct" {
		t.Errorf("error %v, want direct-stage DecryptionError", err)
	}
	if !isBufferShaped(decErr.Err) {
		t.Errorf("original direct error lost: %v", decErr.Err)
	}
}

func TestDecryptFileNonBufferErrorNoFallback(t *testing.T) {
	client, service, _ := newTestClient(t)
	session := mustCreateSession(t, client)

	service.decryptFn = func(data []byte) ([]byte, error) {
		return nil, errors.New("key servers unreachable")
	}

	_, err := client.DecryptFile(context.Background(), []byte("junk"), DecryptOptions{Session: session})
	if err == nil {
		t.Fatal("DecryptFile succeeded")
	}
	// The direct call happened once; no envelope retry followed.
	if service.decryptCalls != 1 {
		t.Errorf("service called %d times, want 1", service.decryptCalls)
	}
}

func TestDecryptFileMapsDenials(t *testing.T) {
	client, service, _ := newTestClient(t)
	session := mustCreateSession(t, client)

	service.decryptFn = func(data []byte) ([]byte, error) {
		return nil, errors.New("decryption not allowed for requester")
	}

	_, err := client.DecryptFile(context.Background(), []byte("blob"), DecryptOptions{Session: session, Identity: "abcd"})
	if !errors.Is(err, ErrPolicyDenied) {
		t.Fatalf("error %v, want ErrPolicyDenied", err)
	}
	var denied *PolicyDeniedError
	if !errors.As(err, &denied) || denied.Identity != "abcd" {
		t.Errorf("denial does not carry the identity: %v", err)
	}
}

func TestDecryptJSON(t *testing.T) {
	client, _, _ := newTestClient(t)
	session := mustCreateSession(t, client)

	encrypted, err := client.EncryptFile(context.Background(), []byte(`{"name":"sealbox","shares":3}`), EncryptOptions{Threshold: 2})
	if err != nil {
		t.Fatalf("EncryptFile: %v", err)
	}

	var decoded struct {
		Name   string `json:"name"`
		Shares int    `json:"shares"`
	}
	err = client.DecryptJSON(context.Background(), encrypted.EncryptedData, DecryptOptions{
		Session:  session,
		Identity: encrypted.Identity,
	}, &decoded)
	if err != nil {
		t.Fatalf("DecryptJSON: %v", err)
	}
	if decoded.Name != "sealbox" || decoded.Shares != 3 {
		t.Errorf("decoded = %+v", decoded)
	}
}

func TestDecryptJSONMalformedPlaintext(t *testing.T) {
	client, _, _ := newTestClient(t)
	session := mustCreateSession(t, client)

	encrypted, err := client.EncryptFile(context.Background(), []byte("not json"), EncryptOptions{Threshold: 2})
	if err != nil {
		t.Fatalf("EncryptFile: %v", err)
	}

	var decoded map[string]any
	err = client.DecryptJSON(context.Background(), encrypted.EncryptedData, DecryptOptions{
		Session:  session,
		Identity: encrypted.Identity,
	}, &decoded)
	var decErr *DecryptionError
	if !errors.As(err, &decErr) || decErr.Stage != "decode" {
		t.Errorf("error %v, want decode-stage DecryptionError", err)
	}
}
