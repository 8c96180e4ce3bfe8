package handshake

import (
	"time"

	"github.com/sirupsen/logrus"
)

const (
	// maxAttempt is the highest attempt number that still sends; the tick
	// that would push a record past it removes the record instead.
	maxAttempt = 11
	// retryInterval is the backoff base: attempt n waits n times this.
	retryInterval = 1500 * time.Millisecond
)

// Manage is the periodic retransmission tick. It walks the pending
// initiator handshakes, resends the 0x30 for those whose backoff has
// elapsed, reaps records whose session died, and abandons handshakes that
// ran out of attempts.
func (hs *Handshaker) Manage() {
	now := hs.clock.Now()
	for tag, h := range hs.table.byTag {
		if h.Cookie != "" {
			// The responder already answered; either the 0x38 is in
			// flight or the session is past handshake.
			continue
		}
		if h.Session == nil {
			continue
		}
		if h.Session.Failed() {
			hs.RemoveHandshake(h)
			continue
		}
		if h.Attempt != 0 && now.Sub(h.LastAttempt) < time.Duration(h.Attempt)*retryInterval {
			continue
		}

		h.Attempt++
		if h.Attempt > maxAttempt {
			logrus.WithFields(logrus.Fields{
				"function": "Manage",
				"session":  h.Session.Name(),
				"attempt":  maxAttempt,
			}).Debug("Handshake reached attempt limit without answer, closing")
			h.Session.OnHandshakeFailed(ErrAttemptLimitReached)
			hs.RemoveHandshake(h)
			continue
		}

		logrus.WithFields(logrus.Fields{
			"function": "Manage",
			"session":  h.Session.Name(),
			"attempt":  h.Attempt,
			"limit":    maxAttempt,
		}).Debug("Sending new handshake 30")

		if h.HostAddress != nil {
			hs.addr = h.HostAddress
			hs.sendHandshake30(h.Session.EPD(), tag)
		}
		// Outside P2P the request also goes to every known candidate.
		if !h.IsP2P {
			for _, e := range h.Addresses() {
				hs.addr = e.Addr
				hs.sendHandshake30(h.Session.EPD(), tag)
			}
		}
		if h.Session.Status() == StatusNone {
			h.Session.SetStatus(StatusHandshake30)
		}
		h.LastAttempt = now
	}
}
