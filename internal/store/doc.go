// Package store provides the secure key-value capability and the typed
// profile store built on it.
//
// The file-backed KV seals its contents in a passphrase-derived
// envelope before touching disk; the plaintext never persists. All
// implementations are concurrency-safe via internal locking. The
// in-memory KV backs tests.
package store
