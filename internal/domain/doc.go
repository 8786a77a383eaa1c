// Package domain defines the data models shared across closelink: user
// profiles and preferences, discovered candidates, link requests and the
// relay/signaling wire frames.
//
// It contains plain types only; nothing here performs I/O or holds key
// material.
package domain
