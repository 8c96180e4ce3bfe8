package handshake

import "errors"

var (
	// ErrUnexpectedType is logged for handshake datagrams whose type byte
	// is none of 0x30, 0x38, 0x70, 0x71, 0x78.
	ErrUnexpectedType = errors.New("unexpected handshake type")
	// ErrMalformedField is logged when a field inside a known message
	// cannot be parsed. The packet is dropped.
	ErrMalformedField = errors.New("malformed handshake field")
	// ErrStaleTag is logged when a 0x70 or 0x71 names a tag the table does
	// not hold, typically a reply to an old request.
	ErrStaleTag = errors.New("unknown handshake tag")
	// ErrStaleCookie is logged when a 0x38 names a cookie the table does
	// not hold, typically after a responder restart.
	ErrStaleCookie = errors.New("unknown handshake cookie")
	// ErrWrongRole is logged when a 0x70 lands on a record that never
	// initiated.
	ErrWrongRole = errors.New("handshake received for wrong role")
	// ErrPeerIDMismatch is logged when a 0x30 targets a peer identity
	// other than ours. No record is created.
	ErrPeerIDMismatch = errors.New("peer id does not match local endpoint")
	// ErrSignatureMismatch is logged when the 0x1D02 marker before a
	// public key blob is absent. In a 0x38 this removes the record.
	ErrSignatureMismatch = errors.New("unexpected key signature")
	// ErrAttemptLimitReached surfaces to the session when a handshake has
	// been retransmitted to its limit without an answer.
	ErrAttemptLimitReached = errors.New("handshake attempt limit reached")
)
