// Command sealbox-helper exercises the client against the in-process
// localseal engine. It exists for cross-implementation test harnesses:
// encrypt on stdin, decrypt on stdin, and a full round trip, all speaking
// JSON on stdout.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"

	sealbox "github.com/walrus-haulout/sealbox-go"
	"github.com/walrus-haulout/sealbox-go/localseal"
)

type blobOutput struct {
	Identity  string `json:"identity"`
	Blob      []byte `json:"blob"`
	BackupKey []byte `json:"backupKey,omitempty"`
	Envelope  bool   `json:"envelope"`
}

func main() {
	if len(os.Args) < 2 {
		fatal("usage: sealbox-helper <encrypt|decrypt|roundtrip|session> [args]")
	}

	// Optional; absence of a .env file is not an error.
	_ = godotenv.Load()

	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
	defer cancel()

	serverCount := envInt("SEALBOX_SERVER_COUNT", 3)
	threshold := envInt("SEALBOX_THRESHOLD", 2)

	engine, err := localseal.NewEngine(serverCount, threshold)
	if err != nil {
		fatal("create engine: %v", err)
	}
	signer, err := localseal.NewWalletSigner()
	if err != nil {
		fatal("create wallet: %v", err)
	}
	client, err := sealbox.New(engine, signer, localseal.ApprovalBuilder{})
	if err != nil {
		fatal("create client: %v", err)
	}

	switch os.Args[1] {
	case "encrypt":
		encrypt(ctx, client, threshold)
	case "decrypt":
		decrypt(ctx, client, signer)
	case "roundtrip":
		roundtrip(ctx, client, signer, threshold)
	case "session":
		session(ctx, client, signer)
	default:
		fatal("unknown command: %s", os.Args[1])
	}
}

func encrypt(ctx context.Context, client *sealbox.Client, threshold int) {
	data, err := io.ReadAll(os.Stdin)
	if err != nil {
		fatal("read stdin: %v", err)
	}

	result, err := client.EncryptFile(ctx, data, sealbox.EncryptOptions{Threshold: threshold})
	if err != nil {
		fatal("encrypt: %v", err)
	}

	out := blobOutput{
		Identity:  result.Identity,
		Blob:      result.EncryptedData,
		BackupKey: result.BackupKey,
		Envelope:  result.Metadata.IsEnvelope,
	}
	if err := json.NewEncoder(os.Stdout).Encode(out); err != nil {
		fatal("encode output: %v", err)
	}
}

func decrypt(ctx context.Context, client *sealbox.Client, signer *localseal.WalletSigner) {
	var in blobOutput
	if err := json.NewDecoder(os.Stdin).Decode(&in); err != nil {
		fatal("parse input: %v", err)
	}

	session, err := client.CreateSession(ctx, signer.Address(), "", 10)
	if err != nil {
		fatal("create session: %v", err)
	}

	result, err := client.DecryptFile(ctx, in.Blob, sealbox.DecryptOptions{
		Session:  session,
		Identity: in.Identity,
	})
	if err != nil {
		fatal("decrypt: %v", err)
	}
	if _, err := os.Stdout.Write(result.Data); err != nil {
		fatal("write output: %v", err)
	}
}

func roundtrip(ctx context.Context, client *sealbox.Client, signer *localseal.WalletSigner, threshold int) {
	data, err := io.ReadAll(os.Stdin)
	if err != nil {
		fatal("read stdin: %v", err)
	}

	encrypted, err := client.EncryptFile(ctx, data, sealbox.EncryptOptions{Threshold: threshold})
	if err != nil {
		fatal("encrypt: %v", err)
	}
	session, err := client.CreateSession(ctx, signer.Address(), "", 10)
	if err != nil {
		fatal("create session: %v", err)
	}
	decrypted, err := client.DecryptFile(ctx, encrypted.EncryptedData, sealbox.DecryptOptions{
		Session:  session,
		Identity: encrypted.Identity,
	})
	if err != nil {
		fatal("decrypt: %v", err)
	}

	out := map[string]any{
		"ok":        string(decrypted.Data) == string(data),
		"identity":  encrypted.Identity,
		"envelope":  encrypted.Metadata.IsEnvelope,
		"blobSize":  len(encrypted.EncryptedData),
		"plainSize": len(data),
	}
	json.NewEncoder(os.Stdout).Encode(out)
}

func session(ctx context.Context, client *sealbox.Client, signer *localseal.WalletSigner) {
	ttl := 10
	if len(os.Args) > 2 {
		parsed, err := strconv.Atoi(os.Args[2])
		if err != nil {
			fatal("parse ttl: %v", err)
		}
		ttl = parsed
	}

	session, err := client.CreateSession(ctx, signer.Address(), "", ttl)
	if err != nil {
		fatal("create session: %v", err)
	}
	exported, err := client.ExportSession(session)
	if err != nil {
		fatal("export session: %v", err)
	}
	if err := json.NewEncoder(os.Stdout).Encode(exported); err != nil {
		fatal("encode export: %v", err)
	}
}

func envInt(name string, fallback int) int {
	raw := os.Getenv(name)
	if raw == "" {
		return fallback
	}
	value, err := strconv.Atoi(raw)
	if err != nil {
		fatal("parse %s: %v", name, err)
	}
	return value
}

func fatal(format string, args ...any) {
	fmt.Fprintf(os.Stderr, format+"\n", args...)
	os.Exit(1)
}
