// Package codec implements the binary reader and writer primitives used by
// the RTMFP wire format.
//
// RTMFP fields are big-endian fixed-width integers, raw byte strings, and a
// 7-bit variable-length integer where each byte contributes its low seven
// bits MSB-first and the high bit signals continuation. The bounded form
// caps at four bytes (the last byte then carries all eight bits); the long
// form extends the same scheme to 64-bit values.
//
// Example:
//
//	w := codec.NewBinaryWriter(nil)
//	w.Write7BitValue(0x84)
//	w.Write16(0x1D02)
//
//	r := codec.NewBinaryReader(w.Data())
//	size := r.Read7BitValue()
//	sig := r.Read16()
package codec
