// Package localseal is an in-process implementation of the threshold
// encryption service contract, intended for development and testing.
//
// It runs a fixed set of simulated key servers inside the process. Data is
// sealed by splitting a random secret into Shamir shares over ristretto255
// and wrapping each share to a server's X25519 key; the payload itself is
// protected with AES-256-GCM under a key derived from the secret. Because
// all server keys live in one process, localseal offers none of the trust
// separation of a real deployment. Use it to exercise client code paths,
// never to protect data.
package localseal
