package store

import (
	"context"
	"time"
)

// Noop is the caching-disabled strategy: every read misses and writes are
// dropped. Call sites behave exactly as with any other store.
type Noop struct{}

// NewNoop returns the no-op store.
func NewNoop() Noop { return Noop{} }

// Get always misses.
func (Noop) Get(context.Context, string) ([]byte, error) { return nil, nil }

// Set drops the value.
func (Noop) Set(context.Context, string, []byte, time.Duration) error { return nil }

// Delete is a no-op.
func (Noop) Delete(context.Context, string) error { return nil }

// Has always reports absent.
func (Noop) Has(context.Context, string) (bool, error) { return false, nil }

// Clear is a no-op.
func (Noop) Clear(context.Context) error { return nil }

// Cleanup is a no-op.
func (Noop) Cleanup(context.Context) error { return nil }
