package session

import (
	"errors"
	"net"

	"github.com/sirupsen/logrus"

	"github.com/opd-ai/rtmfp/crypto"
	"github.com/opd-ai/rtmfp/handshake"
)

// ErrNoHandshakeRecord means key derivation was requested before the
// session was attached to a pending handshake.
var ErrNoHandshakeRecord = errors.New("session has no handshake record")

// BaseSession implements the handshake.Session callback surface and holds
// the derived key material once its handshake completes. The media and
// flow layers build on top of it; the handshake engine only ever sees the
// interface.
type BaseSession struct {
	name   string
	tag    string
	epd    []byte
	id     uint32
	status handshake.Status
	failed bool
	err    error

	dh     *crypto.DiffieHellman
	record *handshake.Handshake

	peerID      [crypto.PeerIDSize]byte
	peerIDBuilt bool

	farID       uint32
	requestKey  [crypto.SessionKeySize]byte
	responseKey [crypto.SessionKeySize]byte
	keysReady   bool

	// acceptPeer, when set, decides whether a 0x70 is answered.
	acceptPeer func(addr *net.UDPAddr, farKey, cookie []byte) bool
}

// NewBaseSession creates a session with a fresh random tag. epd is the
// endpoint descriptor this session connects toward (PeerEPD or URLEPD);
// dh is the endpoint's shared keypair.
func NewBaseSession(name string, id uint32, epd []byte, dh *crypto.DiffieHellman) (*BaseSession, error) {
	tag := make([]byte, handshake.TagSize)
	if err := crypto.RandomFill(tag); err != nil {
		return nil, err
	}
	return &BaseSession{
		name: name,
		tag:  string(tag),
		epd:  epd,
		id:   id,
		dh:   dh,
	}, nil
}

// AttachRecord binds the session to its pending handshake so key
// derivation can reach the negotiated material.
func (s *BaseSession) AttachRecord(record *handshake.Handshake) {
	s.record = record
}

// OnAcceptPeer installs the decision hook consulted when the far side
// answers with its 0x70. Without one every answer is accepted.
func (s *BaseSession) OnAcceptPeer(accept func(addr *net.UDPAddr, farKey, cookie []byte) bool) {
	s.acceptPeer = accept
}

// Name implements handshake.Session.
func (s *BaseSession) Name() string { return s.name }

// Tag implements handshake.Session.
func (s *BaseSession) Tag() string { return s.tag }

// EPD implements handshake.Session.
func (s *BaseSession) EPD() []byte { return s.epd }

// SessionID implements handshake.Session.
func (s *BaseSession) SessionID() uint32 { return s.id }

// Status implements handshake.Session.
func (s *BaseSession) Status() handshake.Status { return s.status }

// SetStatus implements handshake.Session.
func (s *BaseSession) SetStatus(status handshake.Status) { s.status = status }

// Failed implements handshake.Session.
func (s *BaseSession) Failed() bool { return s.failed }

// Err returns what failed the session, if anything.
func (s *BaseSession) Err() error { return s.err }

// OnPeerHandshake70 implements handshake.Session.
func (s *BaseSession) OnPeerHandshake70(addr *net.UDPAddr, farKey, cookie []byte) bool {
	if s.acceptPeer != nil {
		return s.acceptPeer(addr, farKey, cookie)
	}
	return true
}

// BuildPeerID implements handshake.Session: the engine hands over the
// exact key-blob slice the far side will hash, so our own identity comes
// out the same on both ends.
func (s *BaseSession) BuildPeerID(keyBlob []byte) {
	s.peerID = crypto.PeerIDFromBlob(keyBlob)
	s.peerIDBuilt = true
	logrus.WithFields(logrus.Fields{
		"function": "BuildPeerID",
		"session":  s.name,
		"peer_id":  crypto.FormatPeerID(s.peerID),
	}).Debug("Built local peer ID")
}

// PeerID returns the identity built from the last 0x38 emission, and
// whether one has been built.
func (s *BaseSession) PeerID() ([crypto.PeerIDSize]byte, bool) {
	return s.peerID, s.peerIDBuilt
}

// ComputeKeys implements handshake.Session: derives the directional
// session keys from the shared secret and both nonces carried by the
// handshake record.
func (s *BaseSession) ComputeKeys(farID uint32) error {
	rec := s.record
	if rec == nil {
		return ErrNoHandshakeRecord
	}
	shared, err := s.dh.ComputeSharedSecret(rec.FarKey)
	if err != nil {
		return err
	}

	initiatorNonce, responderNonce := rec.Nonce, rec.FarNonce
	if rec.Role == handshake.RoleResponder {
		initiatorNonce, responderNonce = rec.FarNonce, rec.Nonce
	}
	s.requestKey, s.responseKey = crypto.ComputeAsymmetricKeys(shared, initiatorNonce, responderNonce)
	s.farID = farID
	s.keysReady = true

	logrus.WithFields(logrus.Fields{
		"function": "ComputeKeys",
		"session":  s.name,
		"far_id":   farID,
	}).Debug("Session keys derived")
	return nil
}

// Keys returns the derived directional keys and whether derivation has
// happened.
func (s *BaseSession) Keys() (requestKey, responseKey [crypto.SessionKeySize]byte, ready bool) {
	return s.requestKey, s.responseKey, s.keysReady
}

// FarID returns the far session id learned during the handshake.
func (s *BaseSession) FarID() uint32 { return s.farID }

// OnHandshakeFailed implements handshake.Session.
func (s *BaseSession) OnHandshakeFailed(err error) {
	s.failed = true
	s.err = err
	s.status = handshake.StatusFailed
	logrus.WithFields(logrus.Fields{
		"function": "OnHandshakeFailed",
		"session":  s.name,
		"error":    err.Error(),
	}).Warn("Handshake failed")
}
