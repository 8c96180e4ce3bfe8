package handshake

import (
	"net"
	"time"

	"github.com/opd-ai/rtmfp/crypto"
	"github.com/opd-ai/rtmfp/transport"
)

// Session is the per-connection collaborator a handshake works for. The
// engine calls back into it at the points where the protocol hands
// control upward: accepting a 0x70, building the local peer identity, and
// deriving session keys.
type Session interface {
	// Name identifies the session in logs.
	Name() string
	// Tag returns the 16-byte tag chosen at session creation.
	Tag() string
	// EPD returns the endpoint descriptor to embed in the 0x30.
	EPD() []byte
	// SessionID returns the 32-bit local session id.
	SessionID() uint32
	// Status returns the session-visible handshake progression.
	Status() Status
	// SetStatus records a progression step driven by the engine.
	SetStatus(status Status)
	// Failed reports whether the session is dead; its records are reaped
	// on the next tick.
	Failed() bool
	// OnPeerHandshake70 decides whether to answer a 0x70 with the 0x38.
	OnPeerHandshake70(addr *net.UDPAddr, farKey, cookie []byte) bool
	// BuildPeerID hands the session the exact key-blob slice the far side
	// will hash, so it derives its own peer identity identically.
	BuildPeerID(keyBlob []byte)
	// ComputeKeys derives the symmetric session keys from the shared
	// secret and both nonces once the handshake carries them.
	ComputeKeys(farID uint32) error
	// OnHandshakeFailed reports a handshake abandoned by the engine.
	OnHandshakeFailed(err error)
}

// Endpoint is the owning endpoint session: the source of local identity
// and socket access, and the adopter of sessions for inbound peers.
type Endpoint interface {
	// PeerID returns the local endpoint's peer identity.
	PeerID() [crypto.PeerIDSize]byte
	// Address returns the local public address.
	Address() *net.UDPAddr
	// Socket returns the socket serving the given family.
	Socket(family transport.Family) transport.PacketSocket
	// Failed reports whether the endpoint session has failed.
	Failed() bool
	// OnNewPeerID may create or adopt a session for an inbound peer whose
	// identity was just derived from its 0x38. Returning false rejects
	// the peer and removes the record.
	OnNewPeerID(addr *net.UDPAddr, h *Handshake, farID uint32, rawID []byte, peerID string) bool
}

// TimeProvider is an interface for getting the current time. It allows
// injecting a mock provider for deterministic retransmission tests.
type TimeProvider interface {
	// Now returns the current time.
	Now() time.Time
}

// realTimeProvider implements TimeProvider using the system clock.
type realTimeProvider struct{}

func (realTimeProvider) Now() time.Time {
	return time.Now()
}
