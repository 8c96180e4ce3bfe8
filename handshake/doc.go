// Package handshake implements the RTMFP handshake engine: the pending
// handshake table keyed by tag and by cookie, the state machine for
// message types 0x30, 0x38, 0x70, 0x71 and 0x78, and the retransmission
// schedule for unanswered connection requests.
//
// The engine is single-threaded by design. Packet ingress, the periodic
// Manage tick, and every session callback run to completion on one event
// loop; a multi-threaded host must serialize calls behind a mailbox rather
// than rely on internal locking, because there is none.
//
// Example:
//
//	hs := handshake.NewHandshaker(endpoint)
//	h, created := hs.StartHandshake(serverAddr, nil, sess, false)
//	if created {
//	    hs.Manage() // first tick emits the 0x30
//	}
package handshake
