package localseal

import (
	"context"
	"crypto/rand"
	"fmt"
	"time"

	"github.com/cloudflare/circl/dh/x25519"
	"github.com/cloudflare/circl/group"
	"github.com/cloudflare/circl/secretsharing"

	sealbox "github.com/walrus-haulout/sealbox-go"
	"github.com/walrus-haulout/sealbox-go/internal/crypto"
	"github.com/walrus-haulout/sealbox-go/internal/store"
)

// Sealed object layout, all lengths fixed except identity and payload:
//
//	version(1) | threshold(1) | serverCount(1) | idLen(1) | identity |
//	ephPub(32) | serverCount * wrappedShare(60) | payload AEAD
//
// A wrapped share is nonce(12) || AES-GCM(shareValue(32)) || tag(16).
// The payload AEAD is nonce(12) || ciphertext || tag(16) with the identity
// bytes as additional authenticated data.
const (
	sealVersion = 1

	minServerCount = 2
	maxServerCount = 6

	scalarSize       = 32
	sealHeaderSize   = 4
	wrappedShareSize = crypto.AESNonceSize + scalarSize + crypto.AESTagSize
)

const (
	demContext  = "localseal:dem:v1"
	wrapContext = "localseal:wrap:v1"
)

// AuthorizeFunc decides whether an identity may be decrypted. approval is
// nil when the caller provided no approval payload. Returning an error
// denies access; the error text is surfaced to the caller unchanged.
type AuthorizeFunc func(identity string, approval *Approval) error

// Engine simulates a fleet of threshold key servers in-process. It
// implements the client contract for encryption, decryption, key
// prefetching, and session issuance.
type Engine struct {
	serverCount int
	threshold   int
	servers     []x25519.Key // secret keys; publics derived on demand
	authorize   AuthorizeFunc
	prefetched  *store.Memory
	prefetchTTL time.Duration
	now         func() time.Time
}

// Option adjusts engine construction.
type Option func(*Engine)

// WithAuthorizer installs the access decision hook. The default allows
// every identity.
func WithAuthorizer(fn AuthorizeFunc) Option {
	return func(e *Engine) { e.authorize = fn }
}

// WithPrefetchTTL sets how long prefetched key authorizations stay warm.
func WithPrefetchTTL(ttl time.Duration) Option {
	return func(e *Engine) { e.prefetchTTL = ttl }
}

func withEngineClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

// NewEngine creates an engine with serverCount simulated key servers and
// the given default threshold. serverCount must be between 2 and 6 so that
// sealed objects stay within the envelope detection window.
func NewEngine(serverCount, threshold int, opts ...Option) (*Engine, error) {
	if serverCount < minServerCount || serverCount > maxServerCount {
		return nil, fmt.Errorf("server count %d out of range [%d, %d]", serverCount, minServerCount, maxServerCount)
	}
	if threshold < 1 || threshold > serverCount {
		return nil, fmt.Errorf("threshold %d out of range [1, %d]", threshold, serverCount)
	}

	servers := make([]x25519.Key, serverCount)
	for i := range servers {
		if _, err := rand.Read(servers[i][:]); err != nil {
			return nil, fmt.Errorf("generate server key: %w", err)
		}
	}

	e := &Engine{
		serverCount: serverCount,
		threshold:   threshold,
		servers:     servers,
		authorize:   func(string, *Approval) error { return nil },
		prefetched:  store.NewMemory(),
		prefetchTTL: 10 * time.Minute,
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e, nil
}

// Encrypt seals data under an identity. A random ristretto255 scalar is
// split into one Shamir share per server, each wrapped to that server's
// X25519 key via an ephemeral Diffie-Hellman exchange; the payload is
// encrypted with AES-256-GCM under a key derived from the scalar. The
// returned backup key is that derived key and opens the payload without
// any server.
func (e *Engine) Encrypt(ctx context.Context, identity string, data []byte, threshold int, packageID string) (*sealbox.EncryptedObject, error) {
	if threshold == 0 {
		threshold = e.threshold
	}
	if threshold < 1 || threshold > e.serverCount {
		return nil, fmt.Errorf("threshold %d out of range [1, %d]", threshold, e.serverCount)
	}
	idBytes, err := crypto.FromHex(identity)
	if err != nil {
		return nil, err
	}
	if len(idBytes) == 0 || len(idBytes) > 255 {
		return nil, fmt.Errorf("identity must be 1 to 255 bytes, got %d", len(idBytes))
	}

	secret := group.Ristretto255.RandomScalar(rand.Reader)
	secretBytes, err := secret.MarshalBinary()
	if err != nil {
		return nil, fmt.Errorf("marshal secret: %w", err)
	}
	demKey, err := crypto.DeriveKey(secretBytes, nil, []byte(demContext), crypto.AESKeySize)
	if err != nil {
		return nil, err
	}

	// Shamir split: any `threshold` of serverCount shares recovers.
	ss := secretsharing.New(rand.Reader, uint(threshold-1), secret)
	shares := ss.Share(uint(e.serverCount))

	var ephSecret, ephPublic x25519.Key
	if _, err := rand.Read(ephSecret[:]); err != nil {
		return nil, fmt.Errorf("generate ephemeral key: %w", err)
	}
	x25519.KeyGen(&ephPublic, &ephSecret)

	wrapped := make([][]byte, e.serverCount)
	for i := range e.servers {
		wrapKey, err := e.wrapKey(&ephSecret, i, idBytes, false)
		if err != nil {
			return nil, err
		}
		value, err := shares[i].Value.MarshalBinary()
		if err != nil {
			return nil, fmt.Errorf("marshal share %d: %w", i, err)
		}
		nonce, err := crypto.RandomBytes(crypto.AESNonceSize)
		if err != nil {
			return nil, err
		}
		wrapped[i], err = crypto.EncryptAESWithNonce(wrapKey, value, nonce, idBytes)
		if err != nil {
			return nil, err
		}
	}

	nonce, err := crypto.RandomBytes(crypto.AESNonceSize)
	if err != nil {
		return nil, err
	}
	payload, err := crypto.EncryptAESWithNonce(demKey, data, nonce, idBytes)
	if err != nil {
		return nil, err
	}

	header := []byte{sealVersion, byte(threshold), byte(e.serverCount), byte(len(idBytes))}
	parts := [][]byte{header, idBytes, ephPublic[:]}
	parts = append(parts, wrapped...)
	parts = append(parts, payload)

	return &sealbox.EncryptedObject{
		Data:      crypto.Concat(parts...),
		BackupKey: demKey,
	}, nil
}

// Decrypt opens a sealed object. The session must be signed and unexpired,
// and the identity must be authorized: listed in the approval payload, or
// previously warmed by FetchKeys, or allowed by the hook when no approval
// is given.
func (e *Engine) Decrypt(ctx context.Context, data []byte, session sealbox.SessionHandle, approvalTx []byte) ([]byte, error) {
	if err := e.checkSession(session); err != nil {
		return nil, err
	}
	obj, err := parseSealed(data)
	if err != nil {
		return nil, err
	}
	// Shares are wrapped to this engine's servers; a blob sealed by a
	// larger committee names servers this engine does not have.
	if obj.serverCount > len(e.servers) {
		return nil, fmt.Errorf("sealed object names %d servers, engine has %d", obj.serverCount, len(e.servers))
	}
	identity := crypto.ToHex(obj.identity)
	if err := e.checkAccess(ctx, identity, approvalTx); err != nil {
		return nil, err
	}

	shares := make([]secretsharing.Share, 0, obj.threshold)
	for i := 0; i < obj.serverCount && len(shares) < obj.threshold; i++ {
		unwrapKey, err := e.wrapKey(&obj.ephPublic, i, obj.identity, true)
		if err != nil {
			continue
		}
		value, err := crypto.DecryptAESWithAAD(unwrapKey, obj.wrapped[i], obj.identity)
		if err != nil {
			continue
		}
		scalar := group.Ristretto255.NewScalar()
		if err := scalar.UnmarshalBinary(value); err != nil {
			continue
		}
		id := group.Ristretto255.NewScalar()
		id.SetUint64(uint64(i + 1))
		shares = append(shares, secretsharing.Share{ID: id, Value: scalar})
	}
	if len(shares) < obj.threshold {
		return nil, fmt.Errorf("recovered %d of %d required key shares", len(shares), obj.threshold)
	}

	secret, err := secretsharing.Recover(uint(obj.threshold-1), shares)
	if err != nil {
		return nil, fmt.Errorf("recover secret: %w", err)
	}
	secretBytes, err := secret.MarshalBinary()
	if err != nil {
		return nil, fmt.Errorf("marshal secret: %w", err)
	}
	demKey, err := crypto.DeriveKey(secretBytes, nil, []byte(demContext), crypto.AESKeySize)
	if err != nil {
		return nil, err
	}
	return crypto.DecryptAESWithAAD(demKey, obj.payload, obj.identity)
}

// FetchKeys authorizes a batch of identities in one call and warms the
// prefetch cache, so subsequent Decrypt calls for those identities can pass
// an empty approval.
func (e *Engine) FetchKeys(ctx context.Context, identities []string, session sealbox.SessionHandle, approvalTx []byte, threshold int) error {
	if err := e.checkSession(session); err != nil {
		return err
	}
	var approval *Approval
	if len(approvalTx) > 0 {
		parsed, err := parseApproval(approvalTx)
		if err != nil {
			return err
		}
		approval = parsed
	}
	for _, identity := range identities {
		if approval != nil && !approval.Covers(identity) {
			return fmt.Errorf("identity %s not allowed by approval", identity)
		}
		if err := e.authorize(identity, approval); err != nil {
			return err
		}
	}
	for _, identity := range identities {
		if err := e.prefetched.Set(ctx, prefetchKey(identity), []byte{1}, e.prefetchTTL); err != nil {
			return err
		}
	}
	return nil
}

// NewSession issues an unauthorized session handle for the address. The
// caller signs the challenge and attaches the signature before use.
func (e *Engine) NewSession(ctx context.Context, address, packageID string, ttl time.Duration) (sealbox.SessionHandle, error) {
	if ttl <= 0 {
		return nil, fmt.Errorf("session ttl must be positive, got %s", ttl)
	}
	return newSession(address, packageID, ttl, e.now)
}

// ImportSession reconstructs a session from an exported blob, re-verifying
// any attached signature.
func (e *Engine) ImportSession(ctx context.Context, blob []byte) (sealbox.SessionHandle, error) {
	return importSession(blob, e.now)
}

func (e *Engine) checkSession(session sealbox.SessionHandle) error {
	handle, ok := session.(*Session)
	if !ok || handle == nil {
		return fmt.Errorf("session was not issued by this engine")
	}
	if !handle.verified {
		return fmt.Errorf("session is not authorized: challenge signature missing")
	}
	if expired, err := handle.IsExpired(); err != nil || expired {
		return fmt.Errorf("session expired at %s", handle.expiresAt.Format(time.RFC3339))
	}
	return nil
}

func (e *Engine) checkAccess(ctx context.Context, identity string, approvalTx []byte) error {
	if len(approvalTx) > 0 {
		approval, err := parseApproval(approvalTx)
		if err != nil {
			return err
		}
		if !approval.Covers(identity) {
			return fmt.Errorf("identity %s not allowed by approval", identity)
		}
		return e.authorize(identity, approval)
	}
	if ok, err := e.prefetched.Has(ctx, prefetchKey(identity)); err == nil && ok {
		return nil
	}
	return e.authorize(identity, nil)
}

// wrapKey derives the per-server share-wrapping key. Encryption holds the
// ephemeral secret and the server's public key; decryption holds the
// server's secret and the ephemeral public key. Both sides arrive at the
// same Diffie-Hellman point.
func (e *Engine) wrapKey(key *x25519.Key, server int, identity []byte, unwrap bool) ([]byte, error) {
	var shared x25519.Key
	if unwrap {
		if ok := x25519.Shared(&shared, &e.servers[server], key); !ok {
			return nil, fmt.Errorf("degenerate shared point for server %d", server)
		}
	} else {
		var serverPublic x25519.Key
		x25519.KeyGen(&serverPublic, &e.servers[server])
		if ok := x25519.Shared(&shared, key, &serverPublic); !ok {
			return nil, fmt.Errorf("degenerate shared point for server %d", server)
		}
	}
	info := append([]byte(wrapContext), byte(server+1))
	return crypto.DeriveKey(shared[:], identity, info, crypto.AESKeySize)
}

func prefetchKey(identity string) string {
	return "prefetch:" + identity
}

// sealedObject is the parsed form of a sealed blob.
type sealedObject struct {
	threshold   int
	serverCount int
	identity    []byte
	ephPublic   x25519.Key
	wrapped     [][]byte
	payload     []byte
}

// parseSealed validates framing strictly. Error text deliberately reads as
// a bounds problem so callers can distinguish malformed framing from a
// policy or key failure.
func parseSealed(data []byte) (*sealedObject, error) {
	if len(data) < sealHeaderSize {
		return nil, fmt.Errorf("sealed object truncated: %d bytes", len(data))
	}
	if data[0] != sealVersion {
		return nil, fmt.Errorf("unsupported sealed object version %d", data[0])
	}
	obj := &sealedObject{
		threshold:   int(data[1]),
		serverCount: int(data[2]),
	}
	idLen := int(data[3])
	if obj.serverCount < 1 || obj.serverCount > maxServerCount {
		return nil, fmt.Errorf("server count %d out of range", obj.serverCount)
	}
	if obj.threshold < 1 || obj.threshold > obj.serverCount {
		return nil, fmt.Errorf("threshold %d out of range for %d servers", obj.threshold, obj.serverCount)
	}
	if idLen == 0 {
		return nil, fmt.Errorf("identity length out of range: 0")
	}

	fixed := sealHeaderSize + idLen + x25519.Size + obj.serverCount*wrappedShareSize
	minTotal := fixed + crypto.AESNonceSize + crypto.AESTagSize
	if len(data) < minTotal {
		return nil, fmt.Errorf("sealed object truncated: %d bytes, need at least %d", len(data), minTotal)
	}

	offset := sealHeaderSize
	obj.identity = data[offset : offset+idLen]
	offset += idLen
	copy(obj.ephPublic[:], data[offset:offset+x25519.Size])
	offset += x25519.Size

	obj.wrapped = make([][]byte, obj.serverCount)
	for i := 0; i < obj.serverCount; i++ {
		obj.wrapped[i] = data[offset : offset+wrappedShareSize]
		offset += wrappedShareSize
	}
	obj.payload = data[offset:]
	return obj, nil
}
