package handshake

// Status is the session-visible progression of a handshake.
type Status uint8

const (
	// StatusNone means no handshake message has been sent yet.
	StatusNone Status = iota
	// StatusHandshake30 means the connection request is in flight.
	StatusHandshake30
	// StatusHandshake38 means the cookie echo has been sent.
	StatusHandshake38
	// StatusHandshake78 means the responder acknowledgement has been sent.
	StatusHandshake78
	// StatusConnected means session keys are derived and the session owns
	// the connection from here.
	StatusConnected
	// StatusFailed means the handshake was abandoned.
	StatusFailed
)

// String returns a human-readable form of the Status.
func (s Status) String() string {
	switch s {
	case StatusNone:
		return "None"
	case StatusHandshake30:
		return "Handshake30"
	case StatusHandshake38:
		return "Handshake38"
	case StatusHandshake78:
		return "Handshake78"
	case StatusConnected:
		return "Connected"
	case StatusFailed:
		return "Failed"
	default:
		return "Unknown"
	}
}

// PastHandshake30 reports whether the handshake has advanced beyond the
// connection-request stage, after which redirections arrive too late to
// matter.
func (s Status) PastHandshake30() bool {
	switch s {
	case StatusNone, StatusHandshake30:
		return false
	default:
		return true
	}
}
