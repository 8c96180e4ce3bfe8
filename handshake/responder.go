package handshake

import (
	"crypto/subtle"
	"net"

	"github.com/sirupsen/logrus"

	"github.com/opd-ai/rtmfp/codec"
	"github.com/opd-ai/rtmfp/crypto"
	"github.com/opd-ai/rtmfp/transport"
)

// handleHandshake30 processes an unsolicited connection request from a
// peer. The endpoint descriptor must target our own peer identity;
// anything else is dropped without creating state.
func (hs *Handshaker) handleHandshake30(r *codec.BinaryReader) {
	log := logrus.WithFields(logrus.Fields{
		"function": "handleHandshake30",
		"peer":     hs.addr.String(),
	})

	epdSize := r.Read7BitLongValue()
	if epdSize != 0x22 {
		log.WithField("epd_size", epdSize).Error("Unexpected peer id size (expected 34)")
		return
	}
	if innerSize := r.Read7BitLongValue(); innerSize != 0x21 {
		log.WithField("epd_size", innerSize).Error("Unexpected peer id size (expected 33)")
		return
	}
	if marker := r.Read8(); marker != 0x0F {
		log.WithField("marker", marker).Error("Unexpected marker (expected 0x0F)")
		return
	}

	peerID := r.ReadBytes(crypto.PeerIDSize)
	tag := r.ReadBytes(TagSize)
	if r.Err() != nil {
		log.Warn(ErrMalformedField.Error())
		return
	}

	localID := hs.owner.PeerID()
	if subtle.ConstantTimeCompare(peerID, localID[:]) != 1 {
		log.WithField("peer_id", hexPreview(peerID)).Warn(ErrPeerIDMismatch.Error())
		return
	}

	hs.SendHandshake70(string(tag), hs.addr, hs.owner.Address())
}

// SendHandshake70 answers a connection request for tag from addr. When
// the tag is unknown a responder record is created without a session; an
// existing record just learns addr as another public candidate.
func (hs *Handshaker) SendHandshake70(tag string, addr, host *net.UDPAddr) {
	h := hs.table.findByTag(tag)
	if h == nil {
		addresses := []transport.AddressEntry{{Addr: addr, Kind: transport.AddressPublic}}
		h, _ = hs.table.insertByTag(tag, newHandshake(nil, host, addresses, true, RoleResponder))
		logrus.WithFields(logrus.Fields{
			"function": "SendHandshake70",
			"tag":      hexPreview([]byte(tag)),
		}).Debug("Creating responder handshake")
	} else {
		h.AddAddress(addr, transport.AddressPublic)
	}

	hs.addr = addr
	hs.sendHandshake70(tag, h)
}

// sendHandshake70 emits the cookie challenge: the echoed tag, a fresh
// 64-byte cookie registered in the cookie index, and our public key blob.
func (hs *Handshaker) sendHandshake70(tag string, h *Handshake) {
	log := logrus.WithFields(logrus.Fields{
		"function": "sendHandshake70",
		"peer":     hs.addr.String(),
	})

	if h.Cookie == "" {
		cookie := make([]byte, CookieSize)
		if err := crypto.RandomFill(cookie); err != nil {
			log.WithField("error", err.Error()).Error("Unable to generate cookie")
			return
		}
		hs.table.bindCookie(h, string(cookie))
		log.WithField("cookie", hexPreview(cookie)).Debug("Creating cookie")
	}

	dh := hs.diffieHellman()
	if dh == nil {
		return
	}
	h.PubKey = dh.PublicKey()

	w := codec.NewBinaryWriter(hs.buf)
	transport.StartPacket(w)

	w.Write8(TagSize)
	w.Write([]byte(tag))

	w.Write8(CookieSize)
	w.Write([]byte(h.Cookie))

	w.Write7BitValue(uint32(len(h.PubKey) + 2))
	w.Write16(keySignature)
	w.Write(h.PubKey)

	hs.flush(0x70, w)
	hs.buf = w.Data()[:0]
}

// sendHandshake78 processes an inbound 0x38 and answers it. The cookie
// proves the round trip; the far public key blob names the peer, and the
// session adopted for it derives the symmetric keys.
func (hs *Handshaker) sendHandshake78(r *codec.BinaryReader) {
	log := logrus.WithFields(logrus.Fields{
		"function": "sendHandshake78",
		"peer":     hs.addr.String(),
	})

	farID := r.Read32()
	if cookieSize := r.Read8(); cookieSize != CookieSize {
		log.WithField("cookie_size", cookieSize).Error("Cookie size should be 64 bytes")
		return
	}
	cookie := r.ReadBytes(CookieSize)
	if r.Err() != nil {
		log.Warn(ErrMalformedField.Error())
		return
	}

	h := hs.table.findByCookie(string(cookie))
	if h == nil {
		log.WithField("error", ErrStaleCookie.Error()).Debug("No cookie found for handshake 38, possible old request, ignored")
		return
	}

	if outerSize := r.Read7BitValue(); outerSize != 0x84 {
		log.WithField("key_size", outerSize).Debug("Public key size should be 132 bytes")
	}
	idPos := r.Position()
	innerSize := r.Read7BitValue()
	if innerSize != 0x82 {
		log.WithField("key_size", innerSize).Debug("Public key size should be 130 bytes")
	}
	if signature := r.Read16(); signature != keySignature {
		log.WithField("signature", signature).Error(ErrSignatureMismatch.Error())
		hs.RemoveHandshake(h)
		return
	}
	h.FarKey = r.ReadBytes(int(innerSize) - 2)

	if nonceSize := r.Read7BitValue(); nonceSize != initiatorNonceSize {
		log.WithField("nonce_size", nonceSize).Error("Initiator nonce size should be 76 bytes")
		hs.RemoveHandshake(h)
		return
	}
	h.FarNonce = r.ReadBytes(initiatorNonceSize)

	if endByte := r.Read8(); endByte != 0x58 || r.Err() != nil {
		log.WithField("end_byte", endByte).Error("Unexpected end byte (expected 0x58)")
		hs.RemoveHandshake(h)
		return
	}

	// The peer identity is the digest of the inner key blob exactly as it
	// appeared on the wire.
	blob := r.Data()[idPos : idPos+int(innerSize)+2]
	id := crypto.PeerIDFromBlob(blob)
	rawID := crypto.RawPeerID(id)
	peerID := crypto.FormatPeerID(id)
	h.PeerID = peerID
	log.WithField("peer_id", peerID).Debug("Peer ID calculated from public key")

	if !hs.owner.OnNewPeerID(hs.addr, h, farID, rawID, peerID) {
		hs.RemoveHandshake(h)
		return
	}
	sess := h.Session
	if sess == nil {
		log.Error("No session adopted the peer, dropping handshake")
		hs.RemoveHandshake(h)
		return
	}

	nonce, err := buildResponderNonce()
	if err != nil {
		log.WithField("error", err.Error()).Error("Unable to build responder nonce")
		hs.RemoveHandshake(h)
		return
	}
	h.Nonce = nonce

	w := codec.NewBinaryWriter(hs.buf)
	transport.StartPacket(w)
	w.Write32(sess.SessionID())
	w.Write8(responderNonceSize)
	w.Write(nonce)
	w.Write8(0x58)

	// The far session id just learned is exposed through FarID for this
	// one flush only; the envelope written by flush does not include it.
	hs.farID = farID
	hs.flush(0x78, w)
	hs.farID = 0
	hs.buf = w.Data()[:0]
	sess.SetStatus(StatusHandshake78)

	if err := sess.ComputeKeys(farID); err != nil {
		log.WithField("error", err.Error()).Error("Unable to compute session keys")
	} else {
		sess.SetStatus(StatusConnected)
	}
	// The session has what it needs; the record is done.
	hs.RemoveHandshake(h)
}
