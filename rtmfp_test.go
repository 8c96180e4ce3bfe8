package rtmfp

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/opd-ai/rtmfp/crypto"
	"github.com/opd-ai/rtmfp/handshake"
	"github.com/opd-ai/rtmfp/session"
)

func newTestEndpoint(t *testing.T) *Endpoint {
	t.Helper()
	options := NewOptions()
	options.ListenAddr = "127.0.0.1:0"
	ep, err := New(options)
	require.NoError(t, err)
	t.Cleanup(ep.Kill)
	return ep
}

// TestEndpointLifecycle tests creation, identity, and shutdown.
func TestEndpointLifecycle(t *testing.T) {
	ep := newTestEndpoint(t)

	assert.True(t, ep.IsRunning())
	assert.NotEqual(t, [crypto.PeerIDSize]byte{}, ep.PeerID())
	assert.NotNil(t, ep.Address())
	assert.Positive(t, ep.IterationInterval())

	ep.Kill()
	assert.False(t, ep.IsRunning())
	ep.Kill() // idempotent
}

// TestConnectStartsHandshake tests that Connect queues a pending
// handshake and the first Iterate emits toward the server.
func TestConnectStartsHandshake(t *testing.T) {
	ep := newTestEndpoint(t)

	sess, err := ep.Connect("rtmfp://example.net/app", "127.0.0.1:19350")
	require.NoError(t, err)
	require.NotNil(t, sess)
	assert.Equal(t, handshake.StatusNone, sess.Status())

	ep.Iterate()
	assert.Equal(t, handshake.StatusHandshake30, sess.Status())

	_, err = ep.Connect("rtmfp://example.net/app", "not an address")
	assert.Error(t, err)
}

// TestLoopbackP2PHandshake runs a complete P2P handshake between two
// endpoints over loopback UDP and checks both sides derive matching keys.
func TestLoopbackP2PHandshake(t *testing.T) {
	responder := newTestEndpoint(t)
	initiator := newTestEndpoint(t)

	var adopted *session.BaseSession
	responder.OnPeerSession(func(sess *session.BaseSession, peerID string) {
		adopted = sess
	})

	sess, err := initiator.ConnectPeer(responder.PeerID(), responder.Address().String(), nil)
	require.NoError(t, err)

	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		initiator.Iterate()
		responder.Iterate()
		if sess.Status() == handshake.StatusConnected && adopted != nil {
			break
		}
		time.Sleep(10 * time.Millisecond)
	}

	require.Equal(t, handshake.StatusConnected, sess.Status(), "initiator never connected")
	require.NotNil(t, adopted, "responder never adopted a session")
	assert.Equal(t, handshake.StatusConnected, adopted.Status())

	reqI, respI, ready := sess.Keys()
	require.True(t, ready)
	reqR, respR, ready := adopted.Keys()
	require.True(t, ready)
	assert.Equal(t, reqI, reqR)
	assert.Equal(t, respI, respR)

	// The responder learned the initiator's identity, and the initiator
	// built its own identically.
	ownID, built := sess.PeerID()
	require.True(t, built)
	_, ok := responder.Session(crypto.FormatPeerID(ownID))
	assert.True(t, ok)
}

// TestIdentityPersistence tests that an endpoint keeps its peer ID across
// restarts when the keystore is configured.
func TestIdentityPersistence(t *testing.T) {
	dir := t.TempDir()

	options := NewOptions()
	options.ListenAddr = "127.0.0.1:0"
	options.DataDir = dir
	options.MasterPassword = []byte("master password")
	ep, err := New(options)
	require.NoError(t, err)
	firstID := ep.PeerID()
	ep.Kill()

	options = NewOptions()
	options.ListenAddr = "127.0.0.1:0"
	options.DataDir = dir
	options.MasterPassword = []byte("master password")
	ep2, err := New(options)
	require.NoError(t, err)
	defer ep2.Kill()

	assert.Equal(t, firstID, ep2.PeerID())
}
