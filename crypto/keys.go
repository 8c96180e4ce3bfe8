package crypto

import (
	"crypto/hmac"
	"crypto/sha256"
)

// DefaultKeyText is the well-known symmetric key under which every
// handshake packet travels. Derived session keys take over only once the
// handshake completes.
const DefaultKeyText = "Adobe Systems 02"

// SessionKeySize is the length of each derived session key.
const SessionKeySize = sha256.Size

// ComputeAsymmetricKeys derives the two directional session keys from the
// Diffie-Hellman shared secret and both handshake nonces. Each side's
// nonce is first digested keyed by the other's, then both digests are
// digested keyed by the shared secret.
func ComputeAsymmetricKeys(sharedSecret, initiatorNonce, responderNonce []byte) (requestKey, responseKey [SessionKeySize]byte) {
	md1 := hmacSHA256(responderNonce, initiatorNonce)
	md2 := hmacSHA256(initiatorNonce, responderNonce)

	copy(requestKey[:], hmacSHA256(sharedSecret, md1))
	copy(responseKey[:], hmacSHA256(sharedSecret, md2))
	return requestKey, responseKey
}

func hmacSHA256(key, data []byte) []byte {
	mac := hmac.New(sha256.New, key)
	mac.Write(data)
	return mac.Sum(nil)
}
