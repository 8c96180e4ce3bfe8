// Package crypto implements the cryptographic primitives of the RTMFP
// handshake: the fixed-group Diffie-Hellman provider, SHA-256 peer
// identity derivation, session key computation, the default-keyed packet
// cipher, and an encrypted store for the endpoint identity.
//
// Example:
//
//	dh := &crypto.DiffieHellman{}
//	if err := dh.Initialize(); err != nil {
//	    log.Fatal(err)
//	}
//	fmt.Println("Public key:", hex.EncodeToString(dh.PublicKey()))
package crypto
