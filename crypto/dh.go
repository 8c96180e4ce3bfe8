package crypto

import (
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"

	"github.com/sirupsen/logrus"
)

// DHKeySize is the modulus size of the RTMFP Diffie-Hellman group in
// bytes. Public keys are this long, or one byte shorter when the leading
// byte of the value happens to be zero.
const DHKeySize = 128

// ErrCryptoInit indicates the crypto provider could not be set up. This is
// terminal for the endpoint: no handshake can complete without it.
var ErrCryptoInit = errors.New("crypto provider initialization failed")

// dhPrime1024 is the 1024-bit MODP group modulus (RFC 2409 group 2) that
// RTMFP fixes for every handshake. The generator is 2.
const dhPrime1024 = "FFFFFFFFFFFFFFFFC90FDAA22168C234C4C6628B80DC1CD1" +
	"29024E088A67CC74020BBEA63B139B22514A08798E3404DD" +
	"EF9519B3CD3A431B302B0A6DF25F14374FE1356D6D51C245" +
	"E485B576625E7EC6F44C42E9A637ED6B0BFF5CB6F406B7ED" +
	"EE386BFB5A899FA5AE9F24117C4B1FE649286651ECE65381" +
	"FFFFFFFFFFFFFFFF"

// DiffieHellman holds the endpoint's keypair over the fixed RTMFP group.
// It is initialized lazily on first use and shared by every concurrent
// handshake; after Initialize succeeds it is read-only.
type DiffieHellman struct {
	p    *big.Int
	g    *big.Int
	priv *big.Int
	pub  *big.Int
}

// Initialized reports whether a keypair has been generated.
func (dh *DiffieHellman) Initialized() bool {
	return dh.pub != nil
}

// Initialize sets up the group and generates a fresh keypair. It is not
// idempotent protection against misuse: callers go through the lazy
// accessor on the handshaker.
func (dh *DiffieHellman) Initialize() error {
	p, ok := new(big.Int).SetString(dhPrime1024, 16)
	if !ok {
		return fmt.Errorf("%w: bad group modulus", ErrCryptoInit)
	}
	dh.p = p
	dh.g = big.NewInt(2)

	priv, err := rand.Int(rand.Reader, p)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrCryptoInit, err)
	}
	dh.priv = priv
	dh.pub = new(big.Int).Exp(dh.g, dh.priv, dh.p)

	logrus.WithFields(logrus.Fields{
		"function":        "Initialize",
		"public_key_size": len(dh.pub.Bytes()),
	}).Debug("Diffie-Hellman keypair generated")
	return nil
}

// InitializeFrom restores a keypair from a saved private key, as loaded
// from the identity keystore.
func (dh *DiffieHellman) InitializeFrom(privateKey []byte) error {
	if len(privateKey) == 0 {
		return fmt.Errorf("%w: empty private key", ErrCryptoInit)
	}
	p, ok := new(big.Int).SetString(dhPrime1024, 16)
	if !ok {
		return fmt.Errorf("%w: bad group modulus", ErrCryptoInit)
	}
	dh.p = p
	dh.g = big.NewInt(2)
	dh.priv = new(big.Int).SetBytes(privateKey)
	dh.pub = new(big.Int).Exp(dh.g, dh.priv, dh.p)
	return nil
}

// PrivateKey returns the private key bytes for persistence.
func (dh *DiffieHellman) PrivateKey() []byte {
	if dh.priv == nil {
		return nil
	}
	return dh.priv.Bytes()
}

// PublicKey returns the public key in its wire encoding. The leading zero
// byte of the value, when present, is not emitted, which is why far keys
// of 127 bytes appear on the wire alongside the usual 128.
func (dh *DiffieHellman) PublicKey() []byte {
	if dh.pub == nil {
		return nil
	}
	return dh.pub.Bytes()
}

// Size returns the byte length of this endpoint's public key.
func (dh *DiffieHellman) Size() int {
	return len(dh.PublicKey())
}

// ComputeSharedSecret derives the shared secret from the far side's public
// key as received in the handshake.
func (dh *DiffieHellman) ComputeSharedSecret(farPublicKey []byte) ([]byte, error) {
	if !dh.Initialized() {
		return nil, fmt.Errorf("%w: keypair not generated", ErrCryptoInit)
	}
	if len(farPublicKey) == 0 {
		return nil, errors.New("empty far public key")
	}
	far := new(big.Int).SetBytes(farPublicKey)
	if far.Sign() <= 0 || far.Cmp(dh.p) >= 0 {
		return nil, errors.New("far public key out of group range")
	}
	secret := new(big.Int).Exp(far, dh.priv, dh.p)
	return secret.Bytes(), nil
}
