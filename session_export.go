package sealbox

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/walrus-haulout/sealbox-go/internal/crypto"
)

// SessionExportVersion is the current export format version.
const SessionExportVersion = 1

// ExportedSession contains everything needed to restore a session in
// another process.
// WARNING: the handle blob is credential material - handle securely.
type ExportedSession struct {
	// Version is the export format version. MUST be 1.
	Version int `json:"version"`
	// ID is the session instance identifier.
	ID string `json:"id"`
	// Address is the wallet address the session is bound to.
	Address string `json:"address"`
	// PackageID is the policy package scope.
	PackageID string `json:"packageId"`
	// TTLMinutes is the originally requested lifetime.
	TTLMinutes int `json:"ttlMinutes"`
	// CreatedAt is when the session instance was created.
	CreatedAt time.Time `json:"createdAt"`
	// ExpiresAt is the handle-reported expiry.
	ExpiresAt time.Time `json:"expiresAt"`
	// LastRefreshAt is when this instance replaced a previous one, if ever.
	LastRefreshAt time.Time `json:"lastRefreshAt,omitempty"`
	// RefreshAttempts counts failed refreshes recorded on this snapshot.
	RefreshAttempts int `json:"refreshAttempts"`
	// Handle is the service handle exported to an opaque blob (base64url).
	Handle string `json:"handle"`
}

// Validate checks structural integrity before any handle reconstruction.
func (e *ExportedSession) Validate() error {
	if e.Version != SessionExportVersion {
		return fmt.Errorf("%w: unsupported version %d, expected %d", ErrInvalidSessionBlob, e.Version, SessionExportVersion)
	}
	if e.Address == "" {
		return fmt.Errorf("%w: address is required", ErrInvalidSessionBlob)
	}
	if e.Handle == "" {
		return fmt.Errorf("%w: handle blob is required", ErrInvalidSessionBlob)
	}
	if e.ExpiresAt.IsZero() {
		return fmt.Errorf("%w: expiresAt is required", ErrInvalidSessionBlob)
	}
	if !e.ExpiresAt.After(e.CreatedAt) {
		return fmt.Errorf("%w: expiresAt must be after createdAt", ErrInvalidSessionBlob)
	}
	return nil
}

// ExportSession serializes a session, including its handle, for transfer
// or out-of-band storage.
func (m *SessionManager) ExportSession(session *ManagedSession) (*ExportedSession, error) {
	if session == nil || session.Handle == nil {
		return nil, &SessionError{Op: "export", Err: ErrMissingSession}
	}
	handleBlob, err := session.Handle.Export()
	if err != nil {
		return nil, &SessionError{Op: "export", Err: fmt.Errorf("export handle: %w", err)}
	}
	return &ExportedSession{
		Version:         SessionExportVersion,
		ID:              session.ID,
		Address:         session.Address,
		PackageID:       session.PackageID,
		TTLMinutes:      session.TTLMinutes,
		CreatedAt:       session.CreatedAt,
		ExpiresAt:       session.ExpiresAt,
		LastRefreshAt:   session.LastRefreshAt,
		RefreshAttempts: session.RefreshAttempts,
		Handle:          crypto.ToBase64URL(handleBlob),
	}, nil
}

// ImportSession reconstructs a session from exported data, asking the
// service to rehydrate the handle. Expired imports fail.
func (m *SessionManager) ImportSession(ctx context.Context, data *ExportedSession) (*ManagedSession, error) {
	if data == nil {
		return nil, &SessionError{Op: "import", Err: fmt.Errorf("%w: nil export", ErrInvalidSessionBlob)}
	}
	if err := data.Validate(); err != nil {
		return nil, &SessionError{Op: "import", Err: err}
	}

	session, err := m.rehydrate(ctx, data)
	if err != nil {
		return nil, &SessionError{Op: "import", Err: err}
	}
	if m.IsSessionExpired(session) {
		return nil, &SessionExpiredError{ExpiresAt: session.ExpiresAt}
	}
	return session, nil
}

// rehydrate rebuilds a ManagedSession from export data without validity
// checks; callers decide how to treat expiry.
func (m *SessionManager) rehydrate(ctx context.Context, data *ExportedSession) (*ManagedSession, error) {
	handleBlob, err := crypto.FromBase64URL(data.Handle)
	if err != nil {
		return nil, fmt.Errorf("%w: handle blob: %v", ErrInvalidSessionBlob, err)
	}
	handle, err := m.service.ImportSession(ctx, handleBlob)
	if err != nil {
		return nil, fmt.Errorf("import handle: %w", err)
	}
	return &ManagedSession{
		ID:              data.ID,
		Handle:          handle,
		Address:         data.Address,
		PackageID:       data.PackageID,
		TTLMinutes:      data.TTLMinutes,
		CreatedAt:       data.CreatedAt,
		ExpiresAt:       data.ExpiresAt,
		LastRefreshAt:   data.LastRefreshAt,
		RefreshAttempts: data.RefreshAttempts,
	}, nil
}

// ExportSession serializes a session through the client's session manager.
func (c *Client) ExportSession(session *ManagedSession) (*ExportedSession, error) {
	return c.sessions.ExportSession(session)
}

// ImportSession restores an exported session through the client's session
// manager.
func (c *Client) ImportSession(ctx context.Context, data *ExportedSession) (*ManagedSession, error) {
	return c.sessions.ImportSession(ctx, data)
}

// storeSession writes a session to the cache under its scope key, with the
// entry expiring alongside the session itself.
func (m *SessionManager) storeSession(ctx context.Context, session *ManagedSession) error {
	exported, err := m.ExportSession(session)
	if err != nil {
		return err
	}
	blob, err := json.Marshal(exported)
	if err != nil {
		return fmt.Errorf("marshal session: %w", err)
	}
	ttl := session.RemainingAt(m.now())
	if ttl <= 0 {
		return nil
	}
	return m.cache.Set(ctx, sessionCacheKey(session.Address, session.PackageID), blob, ttl)
}

// decodeSession parses a cached session blob and rehydrates its handle.
func (m *SessionManager) decodeSession(ctx context.Context, blob []byte) (*ManagedSession, error) {
	var exported ExportedSession
	if err := json.Unmarshal(blob, &exported); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidSessionBlob, err)
	}
	if err := exported.Validate(); err != nil {
		return nil, err
	}
	return m.rehydrate(ctx, &exported)
}
