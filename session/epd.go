package session

import "github.com/opd-ai/rtmfp/crypto"

// epdPeerMarker opens a peer-targeted endpoint descriptor.
const epdPeerMarker = 0x0F

// epdURLMarker opens a URL-targeted endpoint descriptor.
const epdURLMarker = 0x0A

// PeerEPD builds the 34-byte endpoint descriptor addressing a peer: the
// inner length, the peer marker, and the 32-byte identity.
func PeerEPD(peerID [crypto.PeerIDSize]byte) []byte {
	epd := make([]byte, 0, 2+crypto.PeerIDSize)
	epd = append(epd, 0x21, epdPeerMarker)
	return append(epd, peerID[:]...)
}

// URLEPD builds the endpoint descriptor addressing a rendezvous server by
// its connection URL.
func URLEPD(url string) []byte {
	epd := make([]byte, 0, 1+len(url))
	epd = append(epd, epdURLMarker)
	return append(epd, url...)
}
