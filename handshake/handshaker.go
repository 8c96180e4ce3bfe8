package handshake

import (
	"encoding/hex"
	"net"

	"github.com/sirupsen/logrus"

	"github.com/opd-ai/rtmfp/codec"
	"github.com/opd-ai/rtmfp/crypto"
	"github.com/opd-ai/rtmfp/transport"
)

const (
	// TagSize is the length of the correlation tag.
	TagSize = 16
	// CookieSize is the length of the responder's liveness cookie.
	CookieSize = 64
	// keySignature is the fixed marker preceding a public key blob.
	keySignature = 0x1D02
	// serverCertificateSize is the opaque certificate a rendezvous server
	// appends to its 0x70.
	serverCertificateSize = 77
)

// Handshaker is the handshake engine of an endpoint. One instance serves
// every session of the endpoint; all methods must run on the endpoint's
// event loop.
type Handshaker struct {
	owner  Endpoint
	table  pendingTable
	dh     crypto.DiffieHellman
	cipher *crypto.PacketCipher
	clock  TimeProvider

	// addr is the peer the packet being processed came from, and the
	// target of the next emission.
	addr *net.UDPAddr
	// timeReceived echoes back into emitted envelopes.
	timeReceived uint16
	// farID is set around the 0x78 emission only and reset right after.
	farID uint32
	// buf is the single outbound packet buffer, reused per emission.
	buf []byte
}

// NewHandshaker creates the engine for an endpoint session.
func NewHandshaker(owner Endpoint) *Handshaker {
	return &Handshaker{
		owner:  owner,
		table:  newPendingTable(),
		cipher: crypto.NewDefaultPacketCipher(),
		clock:  realTimeProvider{},
		buf:    make([]byte, 0, transport.MaxPacketSize),
	}
}

// SetTimeProvider replaces the clock driving the retransmission schedule.
func (hs *Handshaker) SetTimeProvider(clock TimeProvider) {
	if clock == nil {
		clock = realTimeProvider{}
	}
	hs.clock = clock
}

// Close drops every pending handshake from both indices.
func (hs *Handshaker) Close() {
	hs.table.clear()
}

// Pending returns the number of in-flight handshakes.
func (hs *Handshaker) Pending() int {
	return hs.table.len()
}

// FarID returns the outbound far session id override; non-zero only while
// the 0x78 acknowledging that id is being flushed.
func (hs *Handshaker) FarID() uint32 {
	return hs.farID
}

// Process consumes one handshake datagram from addr: opens it with the
// default packet key, decodes the envelope, and dispatches on its type.
// Errors are local: the offending packet is dropped, other handshakes are
// untouched. The buffer is decrypted in place.
func (hs *Handshaker) Process(addr *net.UDPAddr, data []byte) {
	if err := transport.OpenPacket(hs.cipher, data); err != nil {
		logrus.WithFields(logrus.Fields{
			"function": "Process",
			"peer":     addr.String(),
			"error":    err.Error(),
		}).Warn("Dropping undecryptable datagram")
		return
	}
	env, err := transport.DecodeEnvelope(data)
	if err != nil {
		logrus.WithFields(logrus.Fields{
			"function": "Process",
			"peer":     addr.String(),
			"error":    err.Error(),
		}).Warn("Dropping handshake datagram")
		return
	}

	hs.addr = addr
	hs.timeReceived = env.TimestampEcho

	switch env.Type {
	case 0x30:
		hs.handleHandshake30(env.Body)
	case 0x38:
		hs.sendHandshake78(env.Body)
	case 0x70:
		hs.handleHandshake70(env.Body)
	case 0x71:
		hs.handleRedirection(env.Body)
	case 0x78:
		hs.handleHandshake78(env.Body)
	default:
		logrus.WithFields(logrus.Fields{
			"function": "Process",
			"peer":     addr.String(),
			"type":     env.Type,
		}).Error(ErrUnexpectedType.Error())
	}
}

// StartHandshake creates the initiator record for a session, keyed by the
// session's tag. A second call with the same tag returns the existing
// record and created is false. The first 0x30 goes out on the next Manage
// tick.
func (hs *Handshaker) StartHandshake(addr *net.UDPAddr, addresses []transport.AddressEntry, sess Session, p2p bool) (record *Handshake, created bool) {
	h := newHandshake(sess, addr, addresses, p2p, RoleInitiator)
	record, created = hs.table.insertByTag(sess.Tag(), h)
	if !created {
		logrus.WithFields(logrus.Fields{
			"function": "StartHandshake",
			"session":  sess.Name(),
		}).Warn("Handshake already exists, nothing done")
	}
	return record, created
}

// RemoveHandshake deletes a record from both indices. Idempotent.
func (hs *Handshaker) RemoveHandshake(h *Handshake) {
	hs.table.remove(h)
}

// diffieHellman returns the endpoint keypair, generating it on first use.
// A nil return means crypto initialization failed; the emission is
// abandoned and the failure is terminal for the endpoint.
func (hs *Handshaker) diffieHellman() *crypto.DiffieHellman {
	if !hs.dh.Initialized() {
		if err := hs.dh.Initialize(); err != nil {
			logrus.WithFields(logrus.Fields{
				"function": "diffieHellman",
				"error":    err.Error(),
			}).Error("Unable to initialize Diffie-Hellman keypair")
			return nil
		}
	}
	return &hs.dh
}

// DiffieHellman exposes the endpoint keypair to the session layer for key
// derivation. Initializes lazily like every other use.
func (hs *Handshaker) DiffieHellman() (*crypto.DiffieHellman, error) {
	if dh := hs.diffieHellman(); dh != nil {
		return dh, nil
	}
	return nil, crypto.ErrCryptoInit
}

// RestoreIdentity installs a keypair loaded from the identity keystore in
// place of a lazily generated one. Must be called before any emission.
func (hs *Handshaker) RestoreIdentity(privateKey []byte) error {
	return hs.dh.InitializeFrom(privateKey)
}

// flush frames the written body, seals it under the default packet key,
// and sends the datagram to the current peer address before the handler
// returns.
func (hs *Handshaker) flush(packetType uint8, w *codec.BinaryWriter) {
	transport.FinalizePacket(w, packetType, hs.timeReceived)
	data, err := transport.SealPacket(hs.cipher, w)
	if err != nil {
		logrus.WithFields(logrus.Fields{
			"function": "flush",
			"peer":     hs.addr.String(),
			"type":     packetType,
			"error":    err.Error(),
		}).Error("Unable to seal handshake packet")
		return
	}
	sock := hs.owner.Socket(transport.AddrFamily(hs.addr))
	if sock == nil {
		logrus.WithFields(logrus.Fields{
			"function": "flush",
			"peer":     hs.addr.String(),
		}).Error("No socket for peer address family")
		return
	}
	if _, err := sock.WriteTo(data, hs.addr); err != nil {
		logrus.WithFields(logrus.Fields{
			"function": "flush",
			"peer":     hs.addr.String(),
			"type":     packetType,
			"error":    err.Error(),
		}).Warn("Failed to send handshake packet")
	}
}

// hexPreview renders the first bytes of sensitive or bulky fields for
// debug logs.
func hexPreview(b []byte) string {
	const n = 8
	if len(b) <= n {
		return hex.EncodeToString(b)
	}
	return hex.EncodeToString(b[:n]) + "..."
}
