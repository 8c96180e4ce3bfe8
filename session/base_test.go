package session

import (
	"net"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/opd-ai/rtmfp/crypto"
	"github.com/opd-ai/rtmfp/handshake"
)

// TestComputeKeysBothSides tests that an initiator session and a
// responder session derive the same directional keys from mirrored
// handshake records.
func TestComputeKeysBothSides(t *testing.T) {
	var dhA, dhB crypto.DiffieHellman
	require.NoError(t, dhA.Initialize())
	require.NoError(t, dhB.Initialize())

	initNonce := make([]byte, 76)
	respNonce := make([]byte, 73)
	require.NoError(t, crypto.RandomFill(initNonce))
	require.NoError(t, crypto.RandomFill(respNonce))

	initiator, err := NewBaseSession("initiator", 1, URLEPD("rtmfp://host/app"), &dhA)
	require.NoError(t, err)
	initiator.AttachRecord(&handshake.Handshake{
		Role:     handshake.RoleInitiator,
		FarKey:   dhB.PublicKey(),
		Nonce:    initNonce,
		FarNonce: respNonce,
	})

	responder, err := NewBaseSession("responder", 2, nil, &dhB)
	require.NoError(t, err)
	responder.AttachRecord(&handshake.Handshake{
		Role:     handshake.RoleResponder,
		FarKey:   dhA.PublicKey(),
		Nonce:    respNonce,
		FarNonce: initNonce,
	})

	require.NoError(t, initiator.ComputeKeys(7))
	require.NoError(t, responder.ComputeKeys(1))

	reqA, respA, ready := initiator.Keys()
	require.True(t, ready)
	reqB, respB, ready := responder.Keys()
	require.True(t, ready)

	assert.Equal(t, reqA, reqB)
	assert.Equal(t, respA, respB)
	assert.NotEqual(t, reqA, respA)
	assert.Equal(t, uint32(7), initiator.FarID())
}

// TestComputeKeysWithoutRecord tests the guard against deriving before a
// handshake exists.
func TestComputeKeysWithoutRecord(t *testing.T) {
	var dh crypto.DiffieHellman
	require.NoError(t, dh.Initialize())
	sess, err := NewBaseSession("s", 1, nil, &dh)
	require.NoError(t, err)

	assert.ErrorIs(t, sess.ComputeKeys(1), ErrNoHandshakeRecord)
	_, _, ready := sess.Keys()
	assert.False(t, ready)
}

// TestSessionTagUnique tests that every session draws a fresh 16-byte
// tag.
func TestSessionTagUnique(t *testing.T) {
	var dh crypto.DiffieHellman
	require.NoError(t, dh.Initialize())

	a, err := NewBaseSession("a", 1, nil, &dh)
	require.NoError(t, err)
	b, err := NewBaseSession("b", 2, nil, &dh)
	require.NoError(t, err)

	assert.Len(t, a.Tag(), handshake.TagSize)
	assert.NotEqual(t, a.Tag(), b.Tag())
}

// TestBuildPeerID tests identity building from the emitted key blob.
func TestBuildPeerID(t *testing.T) {
	var dh crypto.DiffieHellman
	require.NoError(t, dh.Initialize())
	sess, err := NewBaseSession("s", 1, nil, &dh)
	require.NoError(t, err)

	_, built := sess.PeerID()
	assert.False(t, built)

	blob := []byte{0x81, 0x02, 0x1D, 0x02, 0xAA}
	sess.BuildPeerID(blob)
	id, built := sess.PeerID()
	assert.True(t, built)
	assert.Equal(t, crypto.PeerIDFromBlob(blob), id)
}

// TestOnHandshakeFailed tests the failure transition.
func TestOnHandshakeFailed(t *testing.T) {
	var dh crypto.DiffieHellman
	require.NoError(t, dh.Initialize())
	sess, err := NewBaseSession("s", 1, nil, &dh)
	require.NoError(t, err)

	sess.OnHandshakeFailed(handshake.ErrAttemptLimitReached)
	assert.True(t, sess.Failed())
	assert.Equal(t, handshake.StatusFailed, sess.Status())
	assert.ErrorIs(t, sess.Err(), handshake.ErrAttemptLimitReached)
}

// TestAcceptPeerHook tests the 0x70 decision hook.
func TestAcceptPeerHook(t *testing.T) {
	var dh crypto.DiffieHellman
	require.NoError(t, dh.Initialize())
	sess, err := NewBaseSession("s", 1, nil, &dh)
	require.NoError(t, err)

	assert.True(t, sess.OnPeerHandshake70(nil, nil, nil))

	sess.OnAcceptPeer(func(addr *net.UDPAddr, farKey, cookie []byte) bool { return false })
	assert.False(t, sess.OnPeerHandshake70(nil, nil, nil))
}

// TestEPDForms tests the two endpoint descriptor shapes.
func TestEPDForms(t *testing.T) {
	var id [crypto.PeerIDSize]byte
	for i := range id {
		id[i] = byte(i)
	}
	epd := PeerEPD(id)
	require.Len(t, epd, 34)
	assert.Equal(t, uint8(0x21), epd[0])
	assert.Equal(t, uint8(0x0F), epd[1])
	assert.Equal(t, id[:], epd[2:])

	url := URLEPD("rtmfp://host/app")
	assert.Equal(t, uint8(0x0A), url[0])
	assert.Equal(t, "rtmfp://host/app", string(url[1:]))
}
