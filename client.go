package sealbox

import (
	"errors"
	"time"
)

// Client is the main sealbox client. It orchestrates the envelope codec,
// the session manager, and the external threshold service into single
// encrypt/decrypt operations.
//
// A Client is safe for concurrent use. Independent encrypt, decrypt, and
// batch calls may run concurrently against the same cache instance.
type Client struct {
	service   ThresholdClient
	signer    Signer
	txBuilder TxBuilder
	cache     Cache
	sessions  *SessionManager

	envelopeThreshold int
	keyMaterialTTL    time.Duration
	errorHook         func(error)
	now               func() time.Time
}

// New creates a sealbox client over the given external capabilities.
// The threshold service and wallet signer are required; the transaction
// builder may be nil when no policy modules are used.
func New(service ThresholdClient, signer Signer, txBuilder TxBuilder, opts ...Option) (*Client, error) {
	if service == nil {
		return nil, &ConfigError{Field: "service", Message: "threshold client is required"}
	}
	if signer == nil {
		return nil, &ConfigError{Field: "signer", Message: "wallet signer is required"}
	}

	cfg := &clientConfig{
		envelopeThreshold: DefaultEnvelopeThreshold,
		keyMaterialTTL:    DefaultKeyMaterialTTL,
		refreshThreshold:  DefaultRefreshThreshold,
		now:               time.Now,
	}
	for _, opt := range opts {
		opt(cfg)
	}
	if cfg.cache == nil {
		cfg.cache = NewMemoryCache()
	}

	c := &Client{
		service:           service,
		signer:            signer,
		txBuilder:         txBuilder,
		cache:             cfg.cache,
		envelopeThreshold: cfg.envelopeThreshold,
		keyMaterialTTL:    cfg.keyMaterialTTL,
		errorHook:         cfg.errorHook,
		now:               cfg.now,
	}
	c.sessions = &SessionManager{
		service:          service,
		signer:           signer,
		cache:            cfg.cache,
		refreshThreshold: cfg.refreshThreshold,
		errorHook:        cfg.errorHook,
		now:              cfg.now,
	}
	return c, nil
}

// Sessions returns the client's session manager for direct lifecycle
// control (restore, refresh thresholds, batch sizing).
func (c *Client) Sessions() *SessionManager {
	return c.sessions
}

// reportError delivers a non-fatal background failure to the error hook.
func (c *Client) reportError(err error) {
	if err == nil || c.errorHook == nil {
		return
	}
	defer func() {
		_ = recover()
	}()
	c.errorHook(err)
}

// wrapDecryptErr maps an external-service failure onto the public
// taxonomy: denial-shaped errors become PolicyDeniedError, everything else
// a DecryptionError carrying the cause.
func wrapDecryptErr(stage, identity string, err error) error {
	var sbe SealboxError
	if errors.As(err, &sbe) {
		return err
	}
	if isPolicyDenied(err) {
		return &PolicyDeniedError{Identity: identity, Err: err}
	}
	return &DecryptionError{Stage: stage, Err: err}
}
