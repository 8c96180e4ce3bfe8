package codec

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestFixedWidthRoundTrip tests that fixed-width fields decode to what was
// written.
func TestFixedWidthRoundTrip(t *testing.T) {
	w := NewBinaryWriter(nil)
	w.Write8(0x0B)
	w.Write16(0x1D02)
	w.Write32(0xDEADBEEF)
	w.Write([]byte{1, 2, 3, 4})

	r := NewBinaryReader(w.Data())
	assert.Equal(t, uint8(0x0B), r.Read8())
	assert.Equal(t, uint16(0x1D02), r.Read16())
	assert.Equal(t, uint32(0xDEADBEEF), r.Read32())
	assert.Equal(t, []byte{1, 2, 3, 4}, r.ReadBytes(4))
	require.NoError(t, r.Err())
	assert.Equal(t, 0, r.Available())
}

// Test7BitValueRoundTrip tests the bounded varint across the group
// boundaries.
func Test7BitValueRoundTrip(t *testing.T) {
	values := []uint32{
		0, 1, 0x7F, 0x80, 0x84, 0x3FFF, 0x4000, 0x1FFFFF, 0x200000, 0xFFFFFFF,
	}
	for _, v := range values {
		w := NewBinaryWriter(nil)
		w.Write7BitValue(v)
		require.Equal(t, Get7BitValueSize(uint64(v)), w.Size(), "encoded size for %#x", v)

		r := NewBinaryReader(w.Data())
		assert.Equal(t, v, r.Read7BitValue(), "value %#x", v)
		require.NoError(t, r.Err())
	}
}

// Test7BitLongValueRoundTrip tests the long varint across the group
// boundaries.
func Test7BitLongValueRoundTrip(t *testing.T) {
	values := []uint64{
		0, 1, 0x7F, 0x80, 0x3FFF, 0x4000, 0x1FFFFF, 0x10000000, 0xFFFFFFFFF,
	}
	for _, v := range values {
		w := NewBinaryWriter(nil)
		w.Write7BitLongValue(v)

		r := NewBinaryReader(w.Data())
		assert.Equal(t, v, r.Read7BitLongValue(), "value %#x", v)
		require.NoError(t, r.Err())
	}
}

// Test7BitValueKnownEncodings pins the wire bytes for values the handshake
// actually emits.
func Test7BitValueKnownEncodings(t *testing.T) {
	tests := []struct {
		value uint32
		want  []byte
	}{
		{0x22, []byte{0x22}},
		{0x4C, []byte{0x4C}},
		{0x7F, []byte{0x7F}},
		{0x80, []byte{0x81, 0x00}},
		{0x82, []byte{0x81, 0x02}},
		{0x84, []byte{0x81, 0x04}},
	}
	for _, tt := range tests {
		w := NewBinaryWriter(nil)
		w.Write7BitValue(tt.value)
		if !bytes.Equal(w.Data(), tt.want) {
			t.Errorf("Write7BitValue(%#x) = %x, want %x", tt.value, w.Data(), tt.want)
		}
	}
}

// TestReaderOverflow tests that reads past the end latch an error and
// return zero values.
func TestReaderOverflow(t *testing.T) {
	r := NewBinaryReader([]byte{0x01})
	assert.Equal(t, uint8(1), r.Read8())
	assert.Equal(t, uint16(0), r.Read16())
	assert.ErrorIs(t, r.Err(), ErrReadOverflow)
	assert.Nil(t, r.ReadBytes(4))
	assert.Equal(t, uint32(0), r.Read32())
}

// TestReaderShrink tests that Shrink drops trailing padding.
func TestReaderShrink(t *testing.T) {
	r := NewBinaryReader([]byte{0xAA, 0xBB, 0xCC, 0xDD, 0xEE})
	r.Next(1)
	r.Shrink(2)
	assert.Equal(t, 2, r.Available())
	assert.Equal(t, uint8(0xBB), r.Read8())
	assert.Equal(t, uint8(0xCC), r.Read8())
	assert.Equal(t, 0, r.Available())
	require.NoError(t, r.Err())
}

// TestWriterReservedHeader tests the reserve-then-backfill pattern used by
// the packet emitters.
func TestWriterReservedHeader(t *testing.T) {
	w := NewBinaryWriter(nil)
	w.Clear(8)
	w.Write([]byte{1, 2, 3})
	w.Write8At(5, 0x30)
	w.Write16At(6, uint16(w.Size()-8))

	want := []byte{0, 0, 0, 0, 0, 0x30, 0x00, 0x03, 1, 2, 3}
	assert.Equal(t, want, w.Data())
}

// TestReaderPositioning tests absolute and relative positioning.
func TestReaderPositioning(t *testing.T) {
	r := NewBinaryReader([]byte{1, 2, 3, 4, 5})
	r.Next(2)
	assert.Equal(t, 2, r.Position())
	pos := r.Position()
	assert.Equal(t, uint8(3), r.Read8())
	r.SetPosition(pos)
	assert.Equal(t, uint8(3), r.Read8())
	assert.Equal(t, []byte{4, 5}, r.Current())
}
