package crypto

import (
	"crypto/sha256"
	"encoding/hex"
)

// PeerIDSize is the length of a peer identity in bytes.
const PeerIDSize = 32

// rawPeerIDPrefix precedes the digest in the raw form used by the flow
// layer to address a peer.
var rawPeerIDPrefix = []byte{0x21, 0x0F}

// PeerIDFromBlob derives a peer identity from the wire encoding of a
// public key blob: the inner length varint, the 0x1D02 signature, and the
// key bytes. Both sides feed the identical slice, so both derive the same
// identity.
func PeerIDFromBlob(blob []byte) [PeerIDSize]byte {
	return sha256.Sum256(blob)
}

// FormatPeerID returns the lowercase hex form of a peer identity.
func FormatPeerID(id [PeerIDSize]byte) string {
	return hex.EncodeToString(id[:])
}

// RawPeerID returns the 34-byte raw form: the 0x21 0x0F prefix followed by
// the digest.
func RawPeerID(id [PeerIDSize]byte) []byte {
	out := make([]byte, 0, len(rawPeerIDPrefix)+PeerIDSize)
	out = append(out, rawPeerIDPrefix...)
	return append(out, id[:]...)
}
