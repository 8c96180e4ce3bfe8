package transport

import (
	"net"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/opd-ai/rtmfp/codec"
)

// TestAddressListRoundTrip tests candidate entries plus a redirection host
// through the wire format.
func TestAddressListRoundTrip(t *testing.T) {
	a1 := &net.UDPAddr{IP: net.ParseIP("203.0.113.5").To4(), Port: 1935}
	a2 := &net.UDPAddr{IP: net.ParseIP("192.168.1.10").To4(), Port: 40000}
	host := &net.UDPAddr{IP: net.ParseIP("198.51.100.9").To4(), Port: 1935}

	w := codec.NewBinaryWriter(nil)
	WriteAddress(w, a1, AddressPublic)
	WriteAddress(w, a2, AddressLocal)
	WriteAddress(w, host, AddressRedirection)

	entries, gotHost, err := ReadAddresses(codec.NewBinaryReader(w.Data()))
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, a1.String(), entries[0].Addr.String())
	assert.Equal(t, AddressPublic, entries[0].Kind)
	assert.Equal(t, a2.String(), entries[1].Addr.String())
	assert.Equal(t, AddressLocal, entries[1].Kind)
	require.NotNil(t, gotHost)
	assert.Equal(t, host.String(), gotHost.String())
}

// TestAddressIPv6 tests the family bit.
func TestAddressIPv6(t *testing.T) {
	a := &net.UDPAddr{IP: net.ParseIP("2001:db8::1"), Port: 1935}

	w := codec.NewBinaryWriter(nil)
	WriteAddress(w, a, AddressStun)
	assert.Equal(t, uint8(AddressStun)|0x80, w.Data()[0])
	assert.Equal(t, 1+16+2, w.Size())

	entries, host, err := ReadAddresses(codec.NewBinaryReader(w.Data()))
	require.NoError(t, err)
	assert.Nil(t, host)
	require.Len(t, entries, 1)
	assert.Equal(t, a.String(), entries[0].Addr.String())
	assert.Equal(t, FamilyIPv6, AddrFamily(entries[0].Addr))
}

// TestAddressTruncated tests that a short entry surfaces an error without
// inventing addresses.
func TestAddressTruncated(t *testing.T) {
	w := codec.NewBinaryWriter(nil)
	w.Write8(uint8(AddressPublic))
	w.Write([]byte{203, 0, 113}) // three of four IPv4 bytes

	entries, host, err := ReadAddresses(codec.NewBinaryReader(w.Data()))
	assert.Error(t, err)
	assert.Nil(t, host)
	assert.Empty(t, entries)
}

// TestAddrFamily tests family detection for an IPv4 address (held in its
// 16-byte v4-mapped form) and an IPv6 address.
func TestAddrFamily(t *testing.T) {
	v4 := &net.UDPAddr{IP: net.ParseIP("127.0.0.1"), Port: 1}
	assert.Equal(t, FamilyIPv4, AddrFamily(v4))
	v6 := &net.UDPAddr{IP: net.ParseIP("::1"), Port: 1}
	assert.Equal(t, FamilyIPv6, AddrFamily(v6))
}
