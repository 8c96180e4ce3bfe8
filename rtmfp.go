// Package rtmfp implements the handshake subsystem of an RTMFP endpoint:
// Diffie-Hellman key negotiation, cookie liveness proof, peer identity
// derivation, and server-mediated rendezvous over UDP.
//
// Create an Endpoint with options and drive it from one goroutine:
//
//	options := rtmfp.NewOptions()
//	ep, err := rtmfp.New(options)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer ep.Kill()
//
//	sess, err := ep.Connect("rtmfp://example.net/app", "198.51.100.9:1935")
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	for ep.IsRunning() {
//	    ep.Iterate()
//	    time.Sleep(ep.IterationInterval())
//	}
package rtmfp

import (
	"errors"
	"fmt"
	"net"
	"os"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/opd-ai/rtmfp/codec"
	"github.com/opd-ai/rtmfp/crypto"
	"github.com/opd-ai/rtmfp/handshake"
	"github.com/opd-ai/rtmfp/session"
	"github.com/opd-ai/rtmfp/transport"
)

// datagram is one received UDP payload queued for the event loop.
type datagram struct {
	data []byte
	addr *net.UDPAddr
}

// Endpoint is the API facade: one UDP socket, one handshake engine, and
// the sessions negotiated through them. All methods except the internal
// receive loop must be called from a single goroutine; inbound datagrams
// are queued into Iterate rather than processed concurrently, because the
// engine runs to completion without locks.
type Endpoint struct {
	options    *Options
	socket     *transport.UDPSocket
	handshaker *handshake.Handshaker
	buffers    *transport.BufferPool

	localPeerID [crypto.PeerIDSize]byte
	address     *net.UDPAddr

	sessions      map[string]*session.BaseSession // by tag
	peerSessions  map[string]*session.BaseSession // by far peer id (hex)
	nextSessionID uint32

	// onPeerSession observes sessions adopted for inbound peers.
	onPeerSession func(sess *session.BaseSession, peerID string)

	recv    chan datagram
	done    chan struct{}
	running bool
	failed  bool
}

// New creates an endpoint, binds its socket, and establishes its identity
// (restored from the keystore when one is configured, freshly generated
// otherwise).
func New(options *Options) (*Endpoint, error) {
	if options == nil {
		options = NewOptions()
	}

	sock, err := transport.NewUDPSocket(options.ListenAddr)
	if err != nil {
		return nil, fmt.Errorf("failed to bind socket: %w", err)
	}

	ep := &Endpoint{
		options:      options,
		socket:       sock,
		buffers:      transport.NewBufferPool(),
		sessions:     make(map[string]*session.BaseSession),
		peerSessions: make(map[string]*session.BaseSession),
		recv:         make(chan datagram, 64),
		done:         make(chan struct{}),
		running:      true,
	}
	ep.handshaker = handshake.NewHandshaker(ep)

	if err := ep.setupIdentity(); err != nil {
		sock.Close()
		return nil, err
	}
	if err := ep.resolveAddress(); err != nil {
		sock.Close()
		return nil, err
	}

	go ep.receiveLoop()

	logrus.WithFields(logrus.Fields{
		"function": "New",
		"peer_id":  crypto.FormatPeerID(ep.localPeerID),
		"address":  ep.address.String(),
	}).Info("RTMFP endpoint created")
	return ep, nil
}

// setupIdentity loads or creates the endpoint keypair and derives the
// local peer identity from its wire encoding.
func (ep *Endpoint) setupIdentity() error {
	if ep.options.DataDir != "" {
		ks, err := crypto.NewIdentityStore(ep.options.DataDir, ep.options.MasterPassword)
		if err != nil {
			return fmt.Errorf("failed to open identity store: %w", err)
		}
		defer ks.Close()
		priv, err := ks.LoadIdentity()
		switch {
		case err == nil:
			if err := ep.handshaker.RestoreIdentity(priv); err != nil {
				return err
			}
		case errors.Is(err, os.ErrNotExist):
			dh, err := ep.handshaker.DiffieHellman()
			if err != nil {
				return err
			}
			if err := ks.SaveIdentity(dh.PrivateKey()); err != nil {
				return fmt.Errorf("failed to save identity: %w", err)
			}
		default:
			return err
		}
	}

	dh, err := ep.handshaker.DiffieHellman()
	if err != nil {
		return err
	}
	ep.localPeerID = crypto.PeerIDFromBlob(publicKeyBlob(dh.PublicKey()))
	return nil
}

// publicKeyBlob encodes a public key the way it travels in 0x38, which is
// the slice both sides hash into the peer identity.
func publicKeyBlob(pub []byte) []byte {
	w := codec.NewBinaryWriter(nil)
	w.Write7BitValue(uint32(len(pub) + 2))
	w.Write16(0x1D02)
	w.Write(pub)
	return w.Data()
}

func (ep *Endpoint) resolveAddress() error {
	if ep.options.PublicAddress != "" {
		addr, err := net.ResolveUDPAddr("udp", ep.options.PublicAddress)
		if err != nil {
			return fmt.Errorf("bad public address: %w", err)
		}
		ep.address = addr
		return nil
	}
	if addr, ok := ep.socket.LocalAddr().(*net.UDPAddr); ok {
		ep.address = addr
		return nil
	}
	return errors.New("cannot determine endpoint address")
}

// receiveLoop queues inbound datagrams for Iterate. Runs until Kill.
// Each datagram gets a pooled buffer that Iterate recycles after the
// engine has consumed it.
func (ep *Endpoint) receiveLoop() {
	for {
		select {
		case <-ep.done:
			return
		default:
		}
		buf := ep.buffers.Get()
		n, addr, err := ep.socket.ReadFrom(buf)
		if err != nil {
			ep.buffers.Put(buf)
			if netErr, ok := err.(net.Error); ok && netErr.Timeout() {
				continue
			}
			select {
			case <-ep.done:
			default:
				logrus.WithFields(logrus.Fields{
					"function": "receiveLoop",
					"error":    err.Error(),
				}).Warn("Socket read failed")
			}
			return
		}
		udpAddr, ok := addr.(*net.UDPAddr)
		if !ok {
			ep.buffers.Put(buf)
			continue
		}
		select {
		case ep.recv <- datagram{data: buf[:n], addr: udpAddr}:
		default:
			ep.buffers.Put(buf)
			logrus.WithField("function", "receiveLoop").Warn("Receive queue full, dropping datagram")
		}
	}
}

// Iterate runs one turn of the event loop: drains queued datagrams into
// the handshake engine, then ticks the retransmission schedule.
func (ep *Endpoint) Iterate() {
	for {
		select {
		case d := <-ep.recv:
			ep.handshaker.Process(d.addr, d.data)
			ep.buffers.Put(d.data)
		default:
			ep.handshaker.Manage()
			return
		}
	}
}

// IterationInterval returns how long to sleep between Iterate calls.
func (ep *Endpoint) IterationInterval() time.Duration {
	return 50 * time.Millisecond
}

// IsRunning reports whether the endpoint is still running, that is,
// whether Kill has not been called yet.
func (ep *Endpoint) IsRunning() bool {
	return ep.running
}

// Kill shuts the endpoint down: pending handshakes are dropped and the
// socket closed.
func (ep *Endpoint) Kill() {
	if !ep.running {
		return
	}
	ep.running = false
	close(ep.done)
	ep.handshaker.Close()
	ep.socket.Close()
}

// Connect starts a handshake toward a rendezvous server at addr serving
// url. The first 0x30 goes out on the next Iterate.
func (ep *Endpoint) Connect(url, addr string) (*session.BaseSession, error) {
	udpAddr, err := net.ResolveUDPAddr("udp", addr)
	if err != nil {
		return nil, fmt.Errorf("bad server address: %w", err)
	}
	return ep.startSession("server:"+url, session.URLEPD(url), udpAddr, nil, false)
}

// ConnectPeer starts a P2P handshake toward the peer with the given
// identity, reachable at the candidate addresses (usually learned through
// a rendezvous server).
func (ep *Endpoint) ConnectPeer(peerID [crypto.PeerIDSize]byte, host string, candidates []string) (*session.BaseSession, error) {
	hostAddr, err := net.ResolveUDPAddr("udp", host)
	if err != nil {
		return nil, fmt.Errorf("bad host address: %w", err)
	}
	var entries []transport.AddressEntry
	for _, c := range candidates {
		addr, err := net.ResolveUDPAddr("udp", c)
		if err != nil {
			return nil, fmt.Errorf("bad candidate address %q: %w", c, err)
		}
		entries = append(entries, transport.AddressEntry{Addr: addr, Kind: transport.AddressPublic})
	}
	name := "peer:" + crypto.FormatPeerID(peerID)[:8]
	return ep.startSession(name, session.PeerEPD(peerID), hostAddr, entries, true)
}

func (ep *Endpoint) startSession(name string, epd []byte, host *net.UDPAddr, candidates []transport.AddressEntry, p2p bool) (*session.BaseSession, error) {
	dh, err := ep.handshaker.DiffieHellman()
	if err != nil {
		return nil, err
	}
	ep.nextSessionID++
	sess, err := session.NewBaseSession(name, ep.nextSessionID, epd, dh)
	if err != nil {
		return nil, err
	}

	record, created := ep.handshaker.StartHandshake(host, candidates, sess, p2p)
	if !created {
		return nil, fmt.Errorf("handshake already pending for tag of %s", name)
	}
	sess.AttachRecord(record)
	ep.sessions[sess.Tag()] = sess
	return sess, nil
}

// OnPeerSession registers an observer for sessions adopted when inbound
// peers complete their handshake.
func (ep *Endpoint) OnPeerSession(f func(sess *session.BaseSession, peerID string)) {
	ep.onPeerSession = f
}

// Session returns the session negotiated with the given far peer id, if
// any.
func (ep *Endpoint) Session(peerID string) (*session.BaseSession, bool) {
	sess, ok := ep.peerSessions[peerID]
	return sess, ok
}

// PeerID implements handshake.Endpoint.
func (ep *Endpoint) PeerID() [crypto.PeerIDSize]byte {
	return ep.localPeerID
}

// Address implements handshake.Endpoint.
func (ep *Endpoint) Address() *net.UDPAddr {
	return ep.address
}

// Socket implements handshake.Endpoint. A single dual-stack socket serves
// both families.
func (ep *Endpoint) Socket(family transport.Family) transport.PacketSocket {
	return ep.socket
}

// Failed implements handshake.Endpoint.
func (ep *Endpoint) Failed() bool {
	return ep.failed
}

// OnNewPeerID implements handshake.Endpoint: adopts a session for an
// inbound peer whose identity was just derived from its 0x38. A peer we
// already hold a connected session for is ignored.
func (ep *Endpoint) OnNewPeerID(addr *net.UDPAddr, h *handshake.Handshake, farID uint32, rawID []byte, peerID string) bool {
	if existing, ok := ep.peerSessions[peerID]; ok && existing.Status() == handshake.StatusConnected {
		logrus.WithFields(logrus.Fields{
			"function": "OnNewPeerID",
			"peer_id":  peerID,
		}).Debug("Session already connected, ignoring handshake")
		return false
	}

	dh, err := ep.handshaker.DiffieHellman()
	if err != nil {
		return false
	}
	ep.nextSessionID++
	sess, err := session.NewBaseSession("peer:"+peerID[:8], ep.nextSessionID, nil, dh)
	if err != nil {
		logrus.WithFields(logrus.Fields{
			"function": "OnNewPeerID",
			"error":    err.Error(),
		}).Error("Unable to create session for inbound peer")
		return false
	}
	sess.AttachRecord(h)
	h.Session = sess
	ep.peerSessions[peerID] = sess

	if ep.onPeerSession != nil {
		ep.onPeerSession(sess, peerID)
	}
	return true
}
