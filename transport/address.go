package transport

import (
	"fmt"
	"net"

	"github.com/opd-ai/rtmfp/codec"
)

// AddressKind classifies a candidate address learned during a handshake.
type AddressKind uint8

const (
	// AddressUnspecified is the zero kind, never emitted.
	AddressUnspecified AddressKind = 0x00
	// AddressPublic is a publicly reachable address.
	AddressPublic AddressKind = 0x01
	// AddressLocalHost is a loopback address.
	AddressLocalHost AddressKind = 0x02
	// AddressLocal is a LAN address behind the same NAT.
	AddressLocal AddressKind = 0x03
	// AddressStun is an address discovered through STUN.
	AddressStun AddressKind = 0x04
	// AddressRedirection marks the entry carrying the host to fall back
	// to; it terminates an address list.
	AddressRedirection AddressKind = 0x05
)

// addressFamilyIPv6 is the family bit in the kind byte.
const addressFamilyIPv6 = 0x80

// String returns a human-readable form of the AddressKind.
func (k AddressKind) String() string {
	switch k {
	case AddressPublic:
		return "Public"
	case AddressLocalHost:
		return "LocalHost"
	case AddressLocal:
		return "Local"
	case AddressStun:
		return "Stun"
	case AddressRedirection:
		return "Redirection"
	default:
		return fmt.Sprintf("AddressKind(%d)", uint8(k))
	}
}

// AddressEntry pairs a candidate address with how it was learned.
type AddressEntry struct {
	Addr *net.UDPAddr
	Kind AddressKind
}

// Family distinguishes the IP families a socket can serve.
type Family uint8

const (
	// FamilyIPv4 selects the IPv4 socket.
	FamilyIPv4 Family = iota
	// FamilyIPv6 selects the IPv6 socket.
	FamilyIPv6
)

// AddrFamily returns the family of a UDP address.
func AddrFamily(addr *net.UDPAddr) Family {
	if addr != nil && addr.IP.To4() == nil {
		return FamilyIPv6
	}
	return FamilyIPv4
}

// WriteAddress appends one address entry: the kind byte with the family
// bit, the 4- or 16-byte IP, and the 16-bit port.
func WriteAddress(w *codec.BinaryWriter, addr *net.UDPAddr, kind AddressKind) {
	if ip4 := addr.IP.To4(); ip4 != nil {
		w.Write8(uint8(kind))
		w.Write(ip4)
	} else {
		w.Write8(uint8(kind) | addressFamilyIPv6)
		w.Write(addr.IP.To16())
	}
	w.Write16(uint16(addr.Port))
}

// readAddress reads the IP and port following a kind byte.
func readAddress(r *codec.BinaryReader, kindAndFamily uint8) (*net.UDPAddr, error) {
	size := net.IPv4len
	if kindAndFamily&addressFamilyIPv6 != 0 {
		size = net.IPv6len
	}
	ip := r.ReadBytes(size)
	port := r.Read16()
	if err := r.Err(); err != nil {
		return nil, fmt.Errorf("truncated address entry: %w", err)
	}
	return &net.UDPAddr{IP: net.IP(ip), Port: int(port)}, nil
}

// ReadAddresses parses the address list of a redirection message. Entries
// of kind AddressRedirection name the host to reach the rendezvous server
// at and are returned separately; everything else is a candidate.
func ReadAddresses(r *codec.BinaryReader) (entries []AddressEntry, host *net.UDPAddr, err error) {
	for r.Available() > 0 {
		kindAndFamily := r.Read8()
		addr, err := readAddress(r, kindAndFamily)
		if err != nil {
			return entries, host, err
		}
		kind := AddressKind(kindAndFamily & 0x0F)
		if kind == AddressRedirection {
			host = addr
			continue
		}
		entries = append(entries, AddressEntry{Addr: addr, Kind: kind})
	}
	return entries, host, nil
}
