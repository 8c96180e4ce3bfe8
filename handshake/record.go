package handshake

import (
	"net"
	"time"

	"github.com/opd-ai/rtmfp/crypto"
	"github.com/opd-ai/rtmfp/transport"
)

// Role distinguishes the two sides of a pending handshake.
type Role uint8

const (
	// RoleInitiator sent the 0x30 and waits for the 0x70.
	RoleInitiator Role = iota
	// RoleResponder answered a 0x30 with a 0x70 and waits for the 0x38.
	RoleResponder
)

// String returns a human-readable form of the Role.
func (r Role) String() string {
	if r == RoleResponder {
		return "responder"
	}
	return "initiator"
}

// Handshake is the unit of pending state: one record per in-flight
// handshake, reachable by tag and, once a cookie has been issued, by
// cookie.
type Handshake struct {
	// Role is fixed at creation.
	Role Role
	// Session is the owning session; nil for a responder record created
	// on an unsolicited 0x30 before any session exists.
	Session Session
	// IsP2P is true when the far side is a peer rather than the
	// rendezvous server.
	IsP2P bool
	// HostAddress is the rendezvous server address an initiator reaches
	// out to.
	HostAddress *net.UDPAddr
	// Tag is the 16-byte correlation key in the tag index.
	Tag string
	// Cookie is the 64-byte liveness token; set only by the responder
	// once the 0x70 is issued.
	Cookie string
	// PubKey is the local public key as emitted in 0x70 or 0x38.
	PubKey []byte
	// FarKey is the far side's public key once received.
	FarKey []byte
	// Nonce is the local nonce mixed into key derivation.
	Nonce []byte
	// FarNonce is the far side's nonce once received.
	FarNonce []byte
	// Attempt counts the retransmission ticks that came due for this
	// record; one tick may send the 0x30 to several addresses.
	Attempt uint8
	// LastAttempt is when the last 0x30 went out.
	LastAttempt time.Time
	// PeerID is the hex identity derived from FarKey's wire encoding,
	// filled when the responder processes the 0x38.
	PeerID string

	// candidate addresses, deduplicated by address, in learn order
	entries   []transport.AddressEntry
	addrIndex map[string]int

	// back-keys into the table indices, cleared on removal
	tagKey    string
	cookieKey string
}

func newHandshake(sess Session, host *net.UDPAddr, addresses []transport.AddressEntry, p2p bool, role Role) *Handshake {
	h := &Handshake{
		Role:        role,
		Session:     sess,
		IsP2P:       p2p,
		HostAddress: host,
		addrIndex:   make(map[string]int),
	}
	for _, e := range addresses {
		h.AddAddress(e.Addr, e.Kind)
	}
	return h
}

// AddAddress merges a candidate address, reporting whether it was new.
// Known addresses keep their original kind.
func (h *Handshake) AddAddress(addr *net.UDPAddr, kind transport.AddressKind) bool {
	key := addr.String()
	if _, ok := h.addrIndex[key]; ok {
		return false
	}
	h.addrIndex[key] = len(h.entries)
	h.entries = append(h.entries, transport.AddressEntry{Addr: addr, Kind: kind})
	return true
}

// Addresses returns the candidate addresses in the order they were
// learned. The slice is the record's own; callers must not mutate it.
func (h *Handshake) Addresses() []transport.AddressEntry {
	return h.entries
}

// Name identifies the handshake's target in logs.
func (h *Handshake) Name() string {
	if h.Session != nil {
		return h.Session.Name()
	}
	return "responder"
}

const (
	initiatorNonceSize = 0x4C // 76 bytes
	responderNonceSize = 0x49 // 73 bytes
	nonceRandomSize    = 64
)

var (
	initiatorNoncePrefix = []byte{0x02, 0x1D, 0x02, 0x41, 0x0E}
	initiatorNonceSuffix = []byte{0x03, 0x1A, 0x02, 0x0A, 0x02, 0x1E, 0x02}
	responderNoncePrefix = []byte{0x03, 0x1A, 0x00, 0x00, 0x02, 0x1E, 0x00, 0x41, 0x0E}
)

// buildInitiatorNonce assembles the 76-byte initiator nonce: the fixed
// prefix, 64 random bytes, the fixed suffix.
func buildInitiatorNonce() ([]byte, error) {
	nonce := make([]byte, 0, initiatorNonceSize)
	nonce = append(nonce, initiatorNoncePrefix...)
	random := make([]byte, nonceRandomSize)
	if err := crypto.RandomFill(random); err != nil {
		return nil, err
	}
	nonce = append(nonce, random...)
	return append(nonce, initiatorNonceSuffix...), nil
}

// buildResponderNonce assembles the 73-byte responder nonce: the fixed
// prefix then 64 random bytes.
func buildResponderNonce() ([]byte, error) {
	nonce := make([]byte, 0, responderNonceSize)
	nonce = append(nonce, responderNoncePrefix...)
	random := make([]byte, nonceRandomSize)
	if err := crypto.RandomFill(random); err != nil {
		return nil, err
	}
	return append(nonce, random...), nil
}
