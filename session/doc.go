// Package session provides the session-side collaborators of the
// handshake engine: endpoint descriptor construction and BaseSession, a
// concrete implementation of the handshake callback surface that owns the
// derived key material once a handshake completes.
package session
