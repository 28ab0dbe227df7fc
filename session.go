package sealbox

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Session TTL bounds, in minutes. The threshold service refuses longer
// sessions; shorter than a minute cannot complete a single decryption
// round trip reliably.
const (
	MinSessionTTLMinutes = 1
	MaxSessionTTLMinutes = 30
)

// ManagedSession is an immutable snapshot of a time-boxed authorization
// session. Refreshing never mutates an existing session: it produces a
// replacement, so callers holding a stale reference simply keep using a
// possibly-invalid session until they re-check EnsureSessionValid.
type ManagedSession struct {
	// ID uniquely identifies this session instance for caching and
	// diagnostics; it changes on every refresh.
	ID string

	// Handle is the opaque credential issued by the threshold service.
	Handle SessionHandle

	// Address is the wallet address the session is bound to.
	Address string

	// PackageID is the policy package the session is scoped to.
	PackageID string

	// TTLMinutes is the requested lifetime, preserved so refreshes recreate
	// an equivalent session.
	TTLMinutes int

	// CreatedAt is when this session instance was created.
	CreatedAt time.Time

	// ExpiresAt is the actual expiry as reported by the handle.
	ExpiresAt time.Time

	// LastRefreshAt is when this instance replaced a previous one;
	// zero for a first creation.
	LastRefreshAt time.Time

	// RefreshAttempts counts failed refresh attempts recorded against this
	// snapshot; it resets to 0 on every successful creation.
	RefreshAttempts int
}

// RemainingAt returns the session lifetime left at the given instant,
// never negative.
func (s *ManagedSession) RemainingAt(now time.Time) time.Duration {
	if s == nil {
		return 0
	}
	remaining := s.ExpiresAt.Sub(now)
	if remaining < 0 {
		return 0
	}
	return remaining
}

// SessionManager creates, signs, validates, caches, and refreshes sessions.
// All state lives in the injected cache; the manager itself is stateless
// and safe for concurrent use.
type SessionManager struct {
	service          ThresholdClient
	signer           Signer
	cache            Cache
	refreshThreshold time.Duration
	errorHook        func(error)
	now              func() time.Time
}

// NewSessionManager builds a standalone session manager. Most callers get
// one implicitly from [New]; construct one directly to manage sessions
// without a full client.
func NewSessionManager(service ThresholdClient, signer Signer, cache Cache) *SessionManager {
	if cache == nil {
		cache = NewMemoryCache()
	}
	return &SessionManager{
		service:          service,
		signer:           signer,
		cache:            cache,
		refreshThreshold: DefaultRefreshThreshold,
		now:              time.Now,
	}
}

func sessionCacheKey(address, packageID string) string {
	return "session:" + address + ":" + packageID
}

func (m *SessionManager) report(err error) {
	if err == nil || m.errorHook == nil {
		return
	}
	defer func() {
		_ = recover()
	}()
	m.errorHook(err)
}

// CreateSession constructs a fresh session: it asks the service for a
// handle, obtains the canonical challenge message, has the wallet sign it,
// attaches the signature, and caches the result. ttlMinutes must be an
// integer in [1, 30].
func (m *SessionManager) CreateSession(ctx context.Context, address, packageID string, ttlMinutes int) (*ManagedSession, error) {
	if ttlMinutes < MinSessionTTLMinutes || ttlMinutes > MaxSessionTTLMinutes {
		return nil, &SessionError{Op: "create", Err: fmt.Errorf("%w: got %d", ErrInvalidTTL, ttlMinutes)}
	}

	handle, err := m.service.NewSession(ctx, address, packageID, time.Duration(ttlMinutes)*time.Minute)
	if err != nil {
		return nil, &SessionError{Op: "create", Err: fmt.Errorf("construct handle: %w", err)}
	}

	signature, err := m.signer.SignMessage(ctx, handle.ChallengeMessage())
	if err != nil {
		return nil, &SessionError{Op: "create", Err: fmt.Errorf("sign challenge: %w", err)}
	}
	if err := handle.AttachSignature(signature); err != nil {
		return nil, &SessionError{Op: "create", Err: fmt.Errorf("attach signature: %w", err)}
	}

	session := &ManagedSession{
		ID:         uuid.NewString(),
		Handle:     handle,
		Address:    address,
		PackageID:  packageID,
		TTLMinutes: ttlMinutes,
		CreatedAt:  m.now(),
		ExpiresAt:  handle.ExpiresAt(),
	}

	// Session caching is best-effort: a cache failure degrades to
	// uncached operation and is reported, never raised.
	if err := m.storeSession(ctx, session); err != nil {
		m.report(&CacheError{Op: "store session", Err: err})
	}

	return session, nil
}

// RestoreSession reads a cached session for the given scope. A missing,
// malformed, or expired entry reports absent and removes the entry; restore
// never fails with an error.
func (m *SessionManager) RestoreSession(ctx context.Context, address, packageID string) (*ManagedSession, bool) {
	key := sessionCacheKey(address, packageID)

	blob, err := m.cache.Get(ctx, key)
	if err != nil {
		m.report(&CacheError{Op: "restore session", Err: err})
		return nil, false
	}
	if blob == nil {
		return nil, false
	}

	session, err := m.decodeSession(ctx, blob)
	if err != nil {
		m.report(&SessionError{Op: "restore", Err: err})
		_ = m.cache.Delete(ctx, key)
		return nil, false
	}

	if m.IsSessionExpired(session) {
		_ = m.cache.Delete(ctx, key)
		return nil, false
	}
	return session, true
}

// GetOrCreateSession is the idiomatic entry point: restore-then-validate,
// falling back to a fresh CreateSession.
func (m *SessionManager) GetOrCreateSession(ctx context.Context, address, packageID string, ttlMinutes int) (*ManagedSession, error) {
	if session, ok := m.RestoreSession(ctx, address, packageID); ok {
		return session, nil
	}
	return m.CreateSession(ctx, address, packageID, ttlMinutes)
}

// IsSessionExpired delegates to the handle's own expiry check. Any internal
// error while checking counts as expired (fail closed).
func (m *SessionManager) IsSessionExpired(session *ManagedSession) bool {
	if session == nil || session.Handle == nil {
		return true
	}
	expired, err := session.Handle.IsExpired()
	if err != nil {
		return true
	}
	return expired
}

// IsSessionValid reports the opposite of IsSessionExpired.
func (m *SessionManager) IsSessionValid(session *ManagedSession) bool {
	return !m.IsSessionExpired(session)
}

// EnsureSessionValid is the precondition guard run before every decrypt
// call. It returns a SessionExpiredError carrying the expiry timestamp.
func (m *SessionManager) EnsureSessionValid(session *ManagedSession) error {
	if session == nil {
		return &SessionExpiredError{}
	}
	if m.IsSessionExpired(session) {
		return &SessionExpiredError{ExpiresAt: session.ExpiresAt}
	}
	return nil
}

// ShouldRefreshSession reports whether the session's remaining lifetime has
// dropped strictly below the threshold. A non-positive threshold selects
// the manager default. Expired sessions always report true.
func (m *SessionManager) ShouldRefreshSession(session *ManagedSession, threshold time.Duration) bool {
	if session == nil {
		return true
	}
	if threshold <= 0 {
		threshold = m.refreshThreshold
	}
	return session.RemainingAt(m.now()) < threshold
}

// RefreshSession returns the same session unchanged while its remaining
// lifetime is at or above the threshold, and otherwise creates and returns
// a brand-new session for the same scope. Sessions are never mutated in
// place, only replaced.
func (m *SessionManager) RefreshSession(ctx context.Context, session *ManagedSession, threshold time.Duration) (*ManagedSession, error) {
	if session == nil {
		return nil, &SessionError{Op: "refresh", Err: ErrMissingSession}
	}
	if !m.ShouldRefreshSession(session, threshold) {
		return session, nil
	}

	replacement, err := m.CreateSession(ctx, session.Address, session.PackageID, session.TTLMinutes)
	if err != nil {
		return nil, err
	}
	replacement.LastRefreshAt = m.now()
	return replacement, nil
}

// ClearSession removes the cached session for a scope.
func (m *SessionManager) ClearSession(ctx context.Context, address, packageID string) error {
	if err := m.cache.Delete(ctx, sessionCacheKey(address, packageID)); err != nil {
		return &CacheError{Op: "clear session", Err: err}
	}
	return nil
}

// SessionHealthPercent reports how much of the session's lifetime remains:
// 100 at creation, monotonically down to 0 at or after expiry.
func (m *SessionManager) SessionHealthPercent(session *ManagedSession) int {
	if session == nil {
		return 0
	}
	total := session.ExpiresAt.Sub(session.CreatedAt)
	if total <= 0 {
		return 0
	}
	remaining := session.RemainingAt(m.now())
	percent := int(remaining * 100 / total)
	if percent < 0 {
		return 0
	}
	if percent > 100 {
		return 100
	}
	return percent
}

// BatchPlan describes an upcoming batch for refresh sizing decisions.
type BatchPlan struct {
	// TotalItems is the number of items the batch will decrypt.
	TotalItems int

	// EstimatedTimePerItem is the expected processing time per item.
	EstimatedTimePerItem time.Duration

	// MinItemsBeforeRefresh is the smallest number of items worth starting
	// on the current session; fewer and a refresh comes first.
	MinItemsBeforeRefresh int
}

// ShouldRefreshSessionForBatch reports whether the session should be
// refreshed before starting the batch: either its remaining lifetime cannot
// cover the whole batch, or the number of items completable before expiry
// falls below the plan's minimum.
func (m *SessionManager) ShouldRefreshSessionForBatch(session *ManagedSession, plan BatchPlan) bool {
	if session == nil {
		return true
	}
	remaining := session.RemainingAt(m.now())

	needed := time.Duration(plan.TotalItems) * plan.EstimatedTimePerItem
	if remaining < needed {
		return true
	}

	if plan.EstimatedTimePerItem > 0 && plan.MinItemsBeforeRefresh > 0 {
		completable := int(remaining / plan.EstimatedTimePerItem)
		if completable < plan.MinItemsBeforeRefresh {
			return true
		}
	}
	return false
}

// CalculateSafeBatchSize returns how many items can safely be processed on
// the session's remaining lifetime, keeping bufferPercent (default 10) as a
// safety margin. The result is never less than 1.
func (m *SessionManager) CalculateSafeBatchSize(session *ManagedSession, perItem time.Duration, bufferPercent int) int {
	if bufferPercent <= 0 {
		bufferPercent = 10
	}
	if session == nil || perItem <= 0 {
		return 1
	}

	remaining := session.RemainingAt(m.now())
	usable := remaining * time.Duration(100-bufferPercent) / 100
	size := int(usable / perItem)
	if size < 1 {
		return 1
	}
	return size
}

// Client conveniences delegating to the session manager.

// CreateSession creates, signs, and caches a fresh session.
func (c *Client) CreateSession(ctx context.Context, address, packageID string, ttlMinutes int) (*ManagedSession, error) {
	return c.sessions.CreateSession(ctx, address, packageID, ttlMinutes)
}

// GetOrCreateSession restores a cached session or creates a fresh one.
func (c *Client) GetOrCreateSession(ctx context.Context, address, packageID string, ttlMinutes int) (*ManagedSession, error) {
	return c.sessions.GetOrCreateSession(ctx, address, packageID, ttlMinutes)
}

// RefreshSession replaces a session nearing expiry; see
// [SessionManager.RefreshSession].
func (c *Client) RefreshSession(ctx context.Context, session *ManagedSession, threshold time.Duration) (*ManagedSession, error) {
	return c.sessions.RefreshSession(ctx, session, threshold)
}
