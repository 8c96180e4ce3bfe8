package transport

import (
	"net"
	"time"

	"github.com/sirupsen/logrus"
)

// PacketSocket is the outbound surface the handshaker drives. Emissions
// are flushed through it before a handler returns.
type PacketSocket interface {
	WriteTo(b []byte, addr net.Addr) (int, error)
	LocalAddr() net.Addr
}

// UDPSocket wraps a net.PacketConn for RTMFP datagrams.
type UDPSocket struct {
	conn net.PacketConn
}

// NewUDPSocket opens a UDP listener on listenAddr ("ip:port", empty port
// for ephemeral).
func NewUDPSocket(listenAddr string) (*UDPSocket, error) {
	conn, err := net.ListenPacket("udp", listenAddr)
	if err != nil {
		return nil, err
	}
	logrus.WithFields(logrus.Fields{
		"function":   "NewUDPSocket",
		"local_addr": conn.LocalAddr().String(),
	}).Debug("UDP socket opened")
	return &UDPSocket{conn: conn}, nil
}

// WriteTo sends one datagram.
func (s *UDPSocket) WriteTo(b []byte, addr net.Addr) (int, error) {
	return s.conn.WriteTo(b, addr)
}

// ReadFrom reads one datagram into buf with a short deadline so callers
// can interleave reads with timer work. A timeout is returned as a
// net.Error with Timeout() true.
func (s *UDPSocket) ReadFrom(buf []byte) (int, net.Addr, error) {
	_ = s.conn.SetReadDeadline(time.Now().Add(100 * time.Millisecond))
	return s.conn.ReadFrom(buf)
}

// LocalAddr returns the bound address.
func (s *UDPSocket) LocalAddr() net.Addr {
	return s.conn.LocalAddr()
}

// Close shuts the socket down.
func (s *UDPSocket) Close() error {
	return s.conn.Close()
}
