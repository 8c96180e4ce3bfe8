package transport

import (
	"errors"

	"github.com/opd-ai/rtmfp/codec"
	"github.com/opd-ai/rtmfp/crypto"
)

const (
	// HandshakeMarker tags every handshake datagram.
	HandshakeMarker = 0x0B
	// HeaderSize is the envelope prefix before the type/length triplet:
	// checksum slot, marker, echoed timestamp.
	HeaderSize = 5
	// MaxPacketSize bounds an RTMFP datagram.
	MaxPacketSize = 1192
)

var (
	// ErrUnexpectedMarker is returned for datagrams whose marker byte is
	// not HandshakeMarker.
	ErrUnexpectedMarker = errors.New("unexpected handshake marker")
	// ErrTruncatedPacket is returned for datagrams too short to carry an
	// envelope, or whose declared length overruns the datagram.
	ErrTruncatedPacket = errors.New("truncated handshake packet")
)

// Envelope is the decoded outer frame of a handshake datagram. Body is
// positioned at the first payload byte and already shrunk to the declared
// length, so padding past it is invisible to the message handlers.
type Envelope struct {
	Type          uint8
	TimestampEcho uint16
	Body          *codec.BinaryReader
}

// DecodeEnvelope parses the outer frame. The leading checksum slot is not
// validated here.
func DecodeEnvelope(data []byte) (*Envelope, error) {
	if len(data) < HeaderSize+3 {
		return nil, ErrTruncatedPacket
	}
	r := codec.NewBinaryReader(data)
	r.Next(2) // checksum slot
	if marker := r.Read8(); marker != HandshakeMarker {
		return nil, ErrUnexpectedMarker
	}
	env := &Envelope{}
	env.TimestampEcho = r.Read16()
	env.Type = r.Read8()
	length := int(r.Read16())
	if length > r.Available() {
		return nil, ErrTruncatedPacket
	}
	r.Shrink(length)
	env.Body = r
	return env, nil
}

// StartPacket prepares w for a handshake body: the envelope prefix plus
// the type/length triplet are reserved and filled in by FinalizePacket.
func StartPacket(w *codec.BinaryWriter) {
	w.Clear(HeaderSize + 3)
}

// FinalizePacket backfills the envelope around a body written after
// StartPacket and returns the framed plaintext. The checksum slot is
// zero-filled.
func FinalizePacket(w *codec.BinaryWriter, packetType uint8, timestampEcho uint16) []byte {
	w.Write8At(2, HandshakeMarker)
	w.Write16At(3, timestampEcho)
	w.Write8At(HeaderSize, packetType)
	w.Write16At(HeaderSize+1, uint16(w.Size()-HeaderSize-3))
	return w.Data()
}

// paddingByte fills a packet out to the cipher block boundary. The
// declared body length keeps the padding invisible to the handlers.
const paddingByte = 0xFF

// SealPacket pads a finalized packet to the cipher block size and
// encrypts it in place, returning the wire bytes.
func SealPacket(c *crypto.PacketCipher, w *codec.BinaryWriter) ([]byte, error) {
	for w.Size()%c.BlockSize() != 0 {
		w.Write8(paddingByte)
	}
	data := w.Data()
	if err := c.Encrypt(data); err != nil {
		return nil, err
	}
	return data, nil
}

// OpenPacket decrypts a received datagram in place ahead of envelope
// decoding. A length that is not a cipher block multiple cannot be a
// sealed packet.
func OpenPacket(c *crypto.PacketCipher, data []byte) error {
	if len(data) == 0 || len(data)%c.BlockSize() != 0 {
		return ErrTruncatedPacket
	}
	return c.Decrypt(data)
}
