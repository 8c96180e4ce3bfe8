package handshake

import (
	"github.com/sirupsen/logrus"

	"github.com/opd-ai/rtmfp/codec"
	"github.com/opd-ai/rtmfp/transport"
)

// sendHandshake30 emits the connection request to the current peer
// address: the endpoint descriptor behind its length, then the raw tag.
func (hs *Handshaker) sendHandshake30(epd []byte, tag string) {
	w := codec.NewBinaryWriter(hs.buf)
	transport.StartPacket(w)

	w.Write7BitLongValue(uint64(len(epd)))
	w.Write(epd)
	w.Write([]byte(tag))

	hs.flush(0x30, w)
	hs.buf = w.Data()[:0]
}

// handleHandshake70 processes the responder's reply to our 0x30 and, when
// the session accepts it, answers with the 0x38.
func (hs *Handshaker) handleHandshake70(r *codec.BinaryReader) {
	log := logrus.WithFields(logrus.Fields{
		"function": "handleHandshake70",
		"peer":     hs.addr.String(),
	})

	if tagSize := r.Read8(); tagSize != TagSize {
		log.WithField("tag_size", tagSize).Warn("Unexpected tag size")
		return
	}
	tag := r.ReadBytes(TagSize)
	if r.Err() != nil {
		log.Warn(ErrMalformedField.Error())
		return
	}

	h := hs.table.findByTag(string(tag))
	if h == nil {
		log.WithField("error", ErrStaleTag.Error()).Debug("Unexpected tag received, possible old request")
		return
	}
	if h.Role != RoleInitiator || h.Session == nil {
		log.Warn(ErrWrongRole.Error())
		return
	}

	if cookieSize := r.Read8(); cookieSize != CookieSize {
		log.WithField("cookie_size", cookieSize).Error("Unexpected cookie size")
		return
	}
	cookie := r.ReadBytes(CookieSize)

	if !h.IsP2P {
		certificate := r.ReadBytes(serverCertificateSize)
		log.WithField("certificate", hexPreview(certificate)).Debug("Server certificate")
	} else {
		keySize := uint32(r.Read7BitLongValue()) - 2
		if keySize != 0x80 && keySize != 0x7F {
			log.WithField("key_size", keySize).Error("Unexpected responder key size")
			return
		}
		if signature := r.Read16(); signature != keySignature {
			log.WithField("signature", signature).Error(ErrSignatureMismatch.Error())
			return
		}
		h.FarKey = r.ReadBytes(int(keySize))
	}
	if r.Err() != nil {
		log.Warn(ErrMalformedField.Error())
		return
	}

	if h.Session.OnPeerHandshake70(hs.addr, h.FarKey, cookie) {
		hs.sendHandshake38(h, cookie)
	}
}

// sendHandshake38 emits the cookie echo: our session id, the cookie, our
// public key blob (its inner slice is handed to the session so it derives
// the same peer identity the far side will), and the initiator nonce.
func (hs *Handshaker) sendHandshake38(h *Handshake, cookie []byte) {
	dh := hs.diffieHellman()
	if dh == nil {
		return
	}
	h.PubKey = dh.PublicKey()

	w := codec.NewBinaryWriter(hs.buf)
	transport.StartPacket(w)

	w.Write32(h.Session.SessionID())
	w.Write7BitLongValue(uint64(len(cookie)))
	w.Write(cookie)

	w.Write7BitLongValue(uint64(len(h.PubKey) + 4))
	idPos := w.Size()
	w.Write7BitValue(uint32(len(h.PubKey) + 2))
	w.Write16(keySignature)
	w.Write(h.PubKey)
	h.Session.BuildPeerID(w.Data()[idPos:w.Size()])

	nonce, err := buildInitiatorNonce()
	if err != nil {
		logrus.WithFields(logrus.Fields{
			"function": "sendHandshake38",
			"session":  h.Session.Name(),
			"error":    err.Error(),
		}).Error("Unable to build initiator nonce")
		hs.buf = w.Data()[:0]
		return
	}
	h.Nonce = nonce
	w.Write7BitValue(initiatorNonceSize)
	w.Write(nonce)
	w.Write8(0x58)

	hs.flush(0x38, w)
	hs.buf = w.Data()[:0]
	h.Session.SetStatus(StatusHandshake38)
}

// handleHandshake78 processes the responder's acknowledgement: the far
// session id and the 73-byte responder nonce. The record carries no far
// cookie and the packet no tag, so it is correlated by sender address
// among the records waiting in the cookie-echo stage.
func (hs *Handshaker) handleHandshake78(r *codec.BinaryReader) {
	log := logrus.WithFields(logrus.Fields{
		"function": "handleHandshake78",
		"peer":     hs.addr.String(),
	})

	h := hs.findAwaiting78(hs.addr.String())
	if h == nil {
		log.Debug("No handshake waiting for acknowledgement, possible old request")
		return
	}

	farID := r.Read32()
	if nonceSize := r.Read8(); nonceSize != responderNonceSize {
		log.WithField("nonce_size", nonceSize).Error("Responder nonce size should be 73 bytes")
		return
	}
	farNonce := r.ReadBytes(responderNonceSize)
	if endByte := r.Read8(); endByte != 0x58 || r.Err() != nil {
		log.WithField("end_byte", endByte).Error("Unexpected end byte")
		return
	}
	h.FarNonce = farNonce

	if err := h.Session.ComputeKeys(farID); err != nil {
		log.WithField("error", err.Error()).Error("Unable to compute session keys")
		hs.RemoveHandshake(h)
		return
	}
	h.Session.SetStatus(StatusConnected)
	// The session has extracted keys and nonces; the record is done.
	hs.RemoveHandshake(h)
}

// findAwaiting78 returns the initiator record in the cookie-echo stage
// whose host or candidate set contains the sender.
func (hs *Handshaker) findAwaiting78(peer string) *Handshake {
	for _, h := range hs.table.byTag {
		if h.Role != RoleInitiator || h.Session == nil || h.Session.Status() != StatusHandshake38 {
			continue
		}
		if h.HostAddress != nil && h.HostAddress.String() == peer {
			return h
		}
		for _, e := range h.Addresses() {
			if e.Addr.String() == peer {
				return h
			}
		}
	}
	return nil
}

// handleRedirection processes a 0x71: a server redirection or the peer
// address list of a rendezvous. New addresses merge into the candidate
// set; for a P2P handshake the 0x30 goes straight back out to each of
// them.
func (hs *Handshaker) handleRedirection(r *codec.BinaryReader) {
	log := logrus.WithFields(logrus.Fields{
		"function": "handleRedirection",
		"peer":     hs.addr.String(),
	})

	if tagSize := r.Read8(); tagSize != TagSize {
		log.WithField("tag_size", tagSize).Error("Unexpected tag size")
		return
	}
	tag := r.ReadBytes(TagSize)
	if r.Err() != nil {
		log.Warn(ErrMalformedField.Error())
		return
	}

	h := hs.table.findByTag(string(tag))
	if h == nil {
		log.WithField("error", ErrStaleTag.Error()).Debug("Unexpected tag received, possible old request")
		return
	}
	if h.Session == nil {
		log.Warn("Unable to find the session related to handshake 71")
		return
	}
	if h.Session.Status().PastHandshake30() {
		log.Debug("Redirection message ignored, handshake already answered")
		return
	}

	entries, host, err := transport.ReadAddresses(r)
	if err != nil {
		log.WithField("error", err.Error()).Warn(ErrMalformedField.Error())
		return
	}
	if host != nil {
		h.HostAddress = host
	}
	var fresh []transport.AddressEntry
	for _, e := range entries {
		if h.AddAddress(e.Addr, e.Kind) {
			fresh = append(fresh, e)
		}
	}

	if h.IsP2P {
		log.WithField("addresses", len(fresh)).Debug("Server sent the responder's peer addresses")
		for _, e := range fresh {
			hs.addr = e.Addr
			hs.sendHandshake30(h.Session.EPD(), string(tag))
		}
	} else {
		log.Debug("Server redirection message, resending handshake 30 on next tick")
	}
}
