// Package store provides the expiring key/value caches used for session
// handles and threshold key material.
//
// One interface, three interchangeable strategies selected once at client
// construction and never swapped afterwards:
//
//   - Redis: durable keyed store with native per-entry TTL. Used when the
//     process has a reachable Redis; survives restarts.
//   - Memory: in-process map with the same expiry semantics. The fallback
//     when no durable store is configured.
//   - Noop: disables caching entirely without touching call sites.
//
// All strategies share the same eviction contract: an entry whose TTL has
// lapsed is never returned by Get (it is deleted on access), and Cleanup
// sweeps the whole keyspace. Concurrent read-then-delete of an already
// expired entry is a benign race; duplicate deletes are idempotent.
package store
