package handshake

import (
	"net"
	"testing"
	"time"

	"github.com/opd-ai/rtmfp/crypto"
	"github.com/opd-ai/rtmfp/transport"
)

func mustUDPAddr(t *testing.T, s string) *net.UDPAddr {
	t.Helper()
	addr, err := net.ResolveUDPAddr("udp", s)
	if err != nil {
		t.Fatalf("bad test address %q: %v", s, err)
	}
	return addr
}

// testCipher opens and seals packets the way a far endpoint would.
var testCipher = crypto.NewDefaultPacketCipher()

// capturedPacket is one datagram a mock socket swallowed, already opened
// back to plaintext so tests can parse the envelope directly.
type capturedPacket struct {
	data []byte
	addr string
}

// mockSocket records every emission instead of touching the network. It
// refuses anything not sealed under the default packet key.
type mockSocket struct {
	sent []capturedPacket
}

func (m *mockSocket) WriteTo(b []byte, addr net.Addr) (int, error) {
	data := make([]byte, len(b))
	copy(data, b)
	if err := testCipher.Decrypt(data); err != nil {
		return 0, err
	}
	m.sent = append(m.sent, capturedPacket{data: data, addr: addr.String()})
	return len(b), nil
}

func (m *mockSocket) LocalAddr() net.Addr {
	return &net.UDPAddr{IP: net.IPv4(127, 0, 0, 1), Port: 1935}
}

// ofType filters captured packets by handshake type.
func (m *mockSocket) ofType(packetType uint8) []capturedPacket {
	var out []capturedPacket
	for _, p := range m.sent {
		if p.data[transport.HeaderSize] == packetType {
			out = append(out, p)
		}
	}
	return out
}

// mockSession implements Session for driving the engine in tests.
type mockSession struct {
	name   string
	tag    string
	epd    []byte
	id     uint32
	status Status
	failed bool

	accept70    bool
	computed    []uint32
	computeErr  error
	builtPeerID []byte
	failures    []error
}

func newMockSession(name string, id uint32, epd []byte) *mockSession {
	tag := make([]byte, TagSize)
	for i := range tag {
		tag[i] = byte(id) + byte(i)
	}
	return &mockSession{
		name:     name,
		tag:      string(tag),
		epd:      epd,
		id:       id,
		accept70: true,
	}
}

func (s *mockSession) Name() string            { return s.name }
func (s *mockSession) Tag() string             { return s.tag }
func (s *mockSession) EPD() []byte             { return s.epd }
func (s *mockSession) SessionID() uint32       { return s.id }
func (s *mockSession) Status() Status          { return s.status }
func (s *mockSession) SetStatus(status Status) { s.status = status }
func (s *mockSession) Failed() bool            { return s.failed }

func (s *mockSession) OnPeerHandshake70(addr *net.UDPAddr, farKey, cookie []byte) bool {
	return s.accept70
}

func (s *mockSession) BuildPeerID(keyBlob []byte) {
	s.builtPeerID = append([]byte(nil), keyBlob...)
}

func (s *mockSession) ComputeKeys(farID uint32) error {
	if s.computeErr != nil {
		return s.computeErr
	}
	s.computed = append(s.computed, farID)
	return nil
}

func (s *mockSession) OnHandshakeFailed(err error) {
	s.failed = true
	s.failures = append(s.failures, err)
}

// mockEndpoint implements Endpoint. By default it adopts every inbound
// peer with a fresh mockSession.
type mockEndpoint struct {
	peerID  [crypto.PeerIDSize]byte
	addr    *net.UDPAddr
	sock    *mockSocket
	failed  bool
	reject  bool
	adopted *mockSession

	newPeerIDs []string
	farIDs     []uint32
}

func newMockEndpoint() *mockEndpoint {
	ep := &mockEndpoint{
		addr: &net.UDPAddr{IP: net.IPv4(127, 0, 0, 1), Port: 1935},
		sock: &mockSocket{},
	}
	for i := range ep.peerID {
		ep.peerID[i] = byte(i)
	}
	return ep
}

func (ep *mockEndpoint) PeerID() [crypto.PeerIDSize]byte { return ep.peerID }
func (ep *mockEndpoint) Address() *net.UDPAddr           { return ep.addr }

func (ep *mockEndpoint) Failed() bool { return ep.failed }

func (ep *mockEndpoint) Socket(family transport.Family) transport.PacketSocket {
	return ep.sock
}

func (ep *mockEndpoint) OnNewPeerID(addr *net.UDPAddr, h *Handshake, farID uint32, rawID []byte, peerID string) bool {
	ep.newPeerIDs = append(ep.newPeerIDs, peerID)
	ep.farIDs = append(ep.farIDs, farID)
	if ep.reject {
		return false
	}
	ep.adopted = newMockSession("adopted", 77, nil)
	h.Session = ep.adopted
	return true
}

// fakeClock drives the retransmission schedule deterministically.
type fakeClock struct {
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	return c.now
}

func (c *fakeClock) advance(d time.Duration) {
	c.now = c.now.Add(d)
}
