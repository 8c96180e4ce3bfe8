// Package transport implements the network-facing pieces of the RTMFP
// handshake: the outer packet envelope, the address-list wire format used
// by redirection messages, and a UDP socket wrapper.
//
// The envelope of every handshake datagram is a 2-byte checksum slot, the
// 0x0B marker, a 16-bit echoed timestamp, then a type byte and 16-bit body
// length. Bytes past the declared length are padding and ignored.
package transport
