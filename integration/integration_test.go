// Package integration exercises the full client stack against the
// in-process localseal engine: real Shamir splitting, X25519 share
// wrapping, and Ed25519 session signing, with no network involved.
package integration

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	sealbox "github.com/walrus-haulout/sealbox-go"
	"github.com/walrus-haulout/sealbox-go/localseal"
)

func newClient(t *testing.T, engineOpts ...localseal.Option) (*sealbox.Client, *localseal.WalletSigner) {
	t.Helper()

	engine, err := localseal.NewEngine(3, 2, engineOpts...)
	if err != nil {
		t.Fatalf("NewEngine() error = %v", err)
	}
	signer, err := localseal.NewWalletSigner()
	if err != nil {
		t.Fatalf("NewWalletSigner() error = %v", err)
	}
	client, err := sealbox.New(engine, signer, localseal.ApprovalBuilder{})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	return client, signer
}

func newSession(t *testing.T, client *sealbox.Client, signer *localseal.WalletSigner) *sealbox.ManagedSession {
	t.Helper()

	session, err := client.CreateSession(context.Background(), signer.Address(), "", 10)
	if err != nil {
		t.Fatalf("CreateSession() error = %v", err)
	}
	return session
}

func TestIntegration_DirectRoundTrip(t *testing.T) {
	client, signer := newClient(t)
	ctx := context.Background()

	plaintext := []byte("ten bytes!")
	encrypted, err := client.EncryptFile(ctx, plaintext, sealbox.EncryptOptions{Threshold: 2})
	if err != nil {
		t.Fatalf("EncryptFile() error = %v", err)
	}
	if encrypted.Metadata.IsEnvelope {
		t.Error("small payload used envelope strategy")
	}
	if encrypted.Metadata.DEMType != sealbox.DEMTypeNone {
		t.Errorf("DEMType = %q, want %q", encrypted.Metadata.DEMType, sealbox.DEMTypeNone)
	}

	session := newSession(t, client, signer)
	decrypted, err := client.DecryptFile(ctx, encrypted.EncryptedData, sealbox.DecryptOptions{
		Session:  session,
		Identity: encrypted.Identity,
	})
	if err != nil {
		t.Fatalf("DecryptFile() error = %v", err)
	}
	if !bytes.Equal(decrypted.Data, plaintext) {
		t.Errorf("round trip mismatch: got %q, want %q", decrypted.Data, plaintext)
	}
}

func TestIntegration_EnvelopeRoundTrip(t *testing.T) {
	client, signer := newClient(t)
	ctx := context.Background()

	// Above the 1 MiB default threshold.
	plaintext := bytes.Repeat([]byte("envelope payload "), 100_000)
	encrypted, err := client.EncryptFile(ctx, plaintext, sealbox.EncryptOptions{Threshold: 2})
	if err != nil {
		t.Fatalf("EncryptFile() error = %v", err)
	}
	if !encrypted.Metadata.IsEnvelope {
		t.Fatal("large payload did not use envelope strategy")
	}
	if encrypted.Metadata.DEMType != sealbox.DEMTypeAES {
		t.Errorf("DEMType = %q, want %q", encrypted.Metadata.DEMType, sealbox.DEMTypeAES)
	}
	// The envelope adds framing and AEAD overhead, not a second copy.
	if len(encrypted.EncryptedData) > len(plaintext)+1024 {
		t.Errorf("envelope blob is %d bytes for %d bytes of plaintext", len(encrypted.EncryptedData), len(plaintext))
	}

	session := newSession(t, client, signer)
	decrypted, err := client.DecryptFile(ctx, encrypted.EncryptedData, sealbox.DecryptOptions{
		Session:  session,
		Identity: encrypted.Identity,
	})
	if err != nil {
		t.Fatalf("DecryptFile() error = %v", err)
	}
	if !bytes.Equal(decrypted.Data, plaintext) {
		t.Error("envelope round trip mismatch")
	}
}

func TestIntegration_BatchDecrypt(t *testing.T) {
	client, signer := newClient(t)
	ctx := context.Background()

	items := make([]sealbox.BatchItem, 12)
	for i := range items {
		encrypted, err := client.EncryptFile(ctx, []byte(fmt.Sprintf("record %d", i)), sealbox.EncryptOptions{Threshold: 2})
		if err != nil {
			t.Fatalf("EncryptFile(%d) error = %v", i, err)
		}
		items[i] = sealbox.BatchItem{Identity: encrypted.Identity, Data: encrypted.EncryptedData}
	}
	items[7].Data = []byte("corrupted beyond recognition")

	session := newSession(t, client, signer)

	var failures []string
	results, err := client.BatchDecrypt(ctx, items, sealbox.BatchOptions{
		Session:   session,
		Threshold: 2,
		BatchSize: 5,
		OnItemError: func(identity string, err error) {
			failures = append(failures, identity)
		},
	})
	if err != nil {
		t.Fatalf("BatchDecrypt() error = %v", err)
	}

	if len(results) != 11 {
		t.Errorf("got %d results, want 11", len(results))
	}
	if len(failures) != 1 || failures[0] != items[7].Identity {
		t.Errorf("failures = %v, want only item 7", failures)
	}
	for i, item := range items {
		if i == 7 {
			continue
		}
		want := fmt.Sprintf("record %d", i)
		if got := string(results[item.Identity]); got != want {
			t.Errorf("results[%d] = %q, want %q", i, got, want)
		}
	}
}

func TestIntegration_PolicyDenial(t *testing.T) {
	denied := "00112233445566778899aabbccddeeff"
	client, signer := newClient(t, localseal.WithAuthorizer(func(identity string, _ *localseal.Approval) error {
		if identity == denied {
			return fmt.Errorf("access denied for identity %s", identity)
		}
		return nil
	}))
	ctx := context.Background()

	encrypted, err := client.EncryptFile(ctx, []byte("secret"), sealbox.EncryptOptions{
		Threshold: 2,
		Identity:  denied,
	})
	if err != nil {
		t.Fatalf("EncryptFile() error = %v", err)
	}
	session := newSession(t, client, signer)

	_, err = client.DecryptFile(ctx, encrypted.EncryptedData, sealbox.DecryptOptions{
		Session:  session,
		Identity: encrypted.Identity,
	})
	if !errors.Is(err, sealbox.ErrPolicyDenied) {
		t.Fatalf("error = %v, want ErrPolicyDenied", err)
	}
	var deniedErr *sealbox.PolicyDeniedError
	if !errors.As(err, &deniedErr) || deniedErr.Identity != denied {
		t.Errorf("denial does not carry identity: %v", err)
	}
}

func TestIntegration_OpenAccessApproval(t *testing.T) {
	// Deny everything that arrives without an approval payload.
	client, signer := newClient(t, localseal.WithAuthorizer(func(identity string, approval *localseal.Approval) error {
		if approval == nil {
			return fmt.Errorf("identity %s not allowed without approval", identity)
		}
		return nil
	}))
	ctx := context.Background()

	encrypted, err := client.EncryptFile(ctx, []byte("time boxed"), sealbox.EncryptOptions{Threshold: 2})
	if err != nil {
		t.Fatalf("EncryptFile() error = %v", err)
	}
	session := newSession(t, client, signer)

	opts := sealbox.DecryptOptions{
		Session:  session,
		Identity: encrypted.Identity,
	}
	if _, err := client.DecryptFile(ctx, encrypted.EncryptedData, opts); err == nil {
		t.Fatal("decrypt succeeded without an approval")
	}

	opts.PolicyModule = sealbox.PolicyModuleOpenAccess
	opts.PolicyArgs = sealbox.PolicyArgs{
		TimestampMs: time.Now().Add(time.Hour).UnixMilli(),
		ClockObject: "0x6",
	}
	decrypted, err := client.DecryptFile(ctx, encrypted.EncryptedData, opts)
	if err != nil {
		t.Fatalf("DecryptFile() with approval error = %v", err)
	}
	if string(decrypted.Data) != "time boxed" {
		t.Errorf("Data = %q", decrypted.Data)
	}
}

func TestIntegration_SessionExportImport(t *testing.T) {
	client, signer := newClient(t)
	ctx := context.Background()

	encrypted, err := client.EncryptFile(ctx, []byte("portable"), sealbox.EncryptOptions{Threshold: 2})
	if err != nil {
		t.Fatalf("EncryptFile() error = %v", err)
	}
	session := newSession(t, client, signer)

	exported, err := client.ExportSession(session)
	if err != nil {
		t.Fatalf("ExportSession() error = %v", err)
	}
	imported, err := client.ImportSession(ctx, exported)
	if err != nil {
		t.Fatalf("ImportSession() error = %v", err)
	}

	decrypted, err := client.DecryptFile(ctx, encrypted.EncryptedData, sealbox.DecryptOptions{
		Session:  imported,
		Identity: encrypted.Identity,
	})
	if err != nil {
		t.Fatalf("DecryptFile() with imported session error = %v", err)
	}
	if string(decrypted.Data) != "portable" {
		t.Errorf("Data = %q", decrypted.Data)
	}
}

func TestIntegration_DecryptJSON(t *testing.T) {
	client, signer := newClient(t)
	ctx := context.Background()

	encrypted, err := client.EncryptFile(ctx, []byte(`{"kind":"manifest","version":7}`), sealbox.EncryptOptions{Threshold: 2})
	if err != nil {
		t.Fatalf("EncryptFile() error = %v", err)
	}
	session := newSession(t, client, signer)

	var manifest struct {
		Kind    string `json:"kind"`
		Version int    `json:"version"`
	}
	err = client.DecryptJSON(ctx, encrypted.EncryptedData, sealbox.DecryptOptions{
		Session:  session,
		Identity: encrypted.Identity,
	}, &manifest)
	if err != nil {
		t.Fatalf("DecryptJSON() error = %v", err)
	}
	if manifest.Kind != "manifest" || manifest.Version != 7 {
		t.Errorf("manifest = %+v", manifest)
	}
}

func TestIntegration_Reencrypt(t *testing.T) {
	client, signer := newClient(t)
	ctx := context.Background()

	encrypted, err := client.EncryptFile(ctx, []byte("rotate across identities"), sealbox.EncryptOptions{Threshold: 2})
	if err != nil {
		t.Fatalf("EncryptFile() error = %v", err)
	}
	session := newSession(t, client, signer)

	rotated, result, err := client.ReencryptBlob(ctx, encrypted.EncryptedData, sealbox.ReencryptOptions{
		Decrypt: sealbox.DecryptOptions{Session: session, Identity: encrypted.Identity},
		Encrypt: sealbox.EncryptOptions{Threshold: 2, Identity: "ffeeddccbbaa99887766554433221100"},
	})
	if err != nil {
		t.Fatalf("ReencryptBlob() error = %v", err)
	}
	if !result.Success || result.NewIdentity != "ffeeddccbbaa99887766554433221100" {
		t.Errorf("result = %+v", result)
	}

	decrypted, err := client.DecryptFile(ctx, rotated, sealbox.DecryptOptions{
		Session:  session,
		Identity: result.NewIdentity,
	})
	if err != nil {
		t.Fatalf("DecryptFile() of rotated blob error = %v", err)
	}
	if string(decrypted.Data) != "rotate across identities" {
		t.Errorf("Data = %q", decrypted.Data)
	}
}
