package sealbox

import (
	"errors"
	"fmt"
	"testing"
	"time"
)

func TestErrorSentinelMatching(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		sentinel error
	}{
		{"session error", &SessionError{Op: "create", Err: errors.New("boom")}, ErrSessionCreation},
		{"session expired", &SessionExpiredError{ExpiresAt: time.Now()}, ErrSessionExpired},
		{"policy denied", &PolicyDeniedError{Identity: "abc", Err: errors.New("no")}, ErrPolicyDenied},
		{"encryption", &EncryptionError{Err: errors.New("boom")}, ErrEncryptionFailed},
		{"decryption", &DecryptionError{Stage: "aes", Err: errors.New("boom")}, ErrDecryptionFailed},
		{"cache", &CacheError{Op: "get", Err: errors.New("boom")}, ErrCacheUnavailable},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if !errors.Is(tt.err, tt.sentinel) {
				t.Errorf("errors.Is(%v, sentinel) = false", tt.err)
			}
			// All SDK errors carry the marker.
			var sbe SealboxError
			if !errors.As(tt.err, &sbe) {
				t.Errorf("%T does not implement SealboxError", tt.err)
			}
		})
	}
}

func TestErrorUnwrapChains(t *testing.T) {
	cause := errors.New("root cause")

	wrapped := &SessionError{Op: "create", Err: fmt.Errorf("outer: %w", cause)}
	if !errors.Is(wrapped, cause) {
		t.Error("SessionError does not unwrap to its cause")
	}

	cfgErr := &ConfigError{Field: "ttl", Err: ErrInvalidTTL}
	if !errors.Is(cfgErr, ErrInvalidTTL) {
		t.Error("ConfigError does not unwrap to its cause")
	}
}

func TestConfigErrorMessage(t *testing.T) {
	withMsg := &ConfigError{Field: "session", Message: "required"}
	if got := withMsg.Error(); got != "invalid configuration: session: required" {
		t.Errorf("Error() = %q", got)
	}
	withErr := &ConfigError{Field: "ttl", Err: ErrInvalidTTL}
	if got := withErr.Error(); got == "" {
		t.Error("Error() is empty")
	}
}

func TestSessionExpiredErrorMessage(t *testing.T) {
	bare := &SessionExpiredError{}
	if got := bare.Error(); got != "session expired" {
		t.Errorf("Error() = %q", got)
	}
	at := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	stamped := &SessionExpiredError{ExpiresAt: at}
	if got := stamped.Error(); got != "session expired at 2026-01-02T03:04:05Z" {
		t.Errorf("Error() = %q", got)
	}
}

func TestIsPolicyDenied(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"sentinel", ErrPolicyDenied, true},
		{"typed", &PolicyDeniedError{Err: errors.New("x")}, true},
		{"denied text", errors.New("request denied by server"), true},
		{"unauthorized text", errors.New("401 Unauthorized"), true},
		{"not allowed text", errors.New("identity not allowed by approval"), true},
		{"unrelated", errors.New("connection refused"), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := isPolicyDenied(tt.err); got != tt.want {
				t.Errorf("isPolicyDenied(%v) = %v, want %v", tt.err, got, tt.want)
			}
		})
	}
}

func TestIsBufferShaped(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"out of range", errors.New("slice index out of range"), true},
		{"out of bounds", errors.New("read out of bounds"), true},
		{"buffer", errors.New("buffer too small"), true},
		{"truncated", errors.New("sealed object truncated: 40 bytes"), true},
		{"unrelated", errors.New("access denied"), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := isBufferShaped(tt.err); got != tt.want {
				t.Errorf("isBufferShaped(%v) = %v, want %v", tt.err, got, tt.want)
			}
		})
	}
}
