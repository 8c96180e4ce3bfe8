package rtmfp

// Options configures a new Endpoint.
type Options struct {
	// ListenAddr is the UDP address to bind ("ip:port"; port 0 for
	// ephemeral).
	ListenAddr string
	// PublicAddress, when set, overrides the bound address as the address
	// advertised in responder handshakes (needed behind NAT).
	PublicAddress string
	// DataDir, when set, enables the encrypted identity keystore so the
	// endpoint keeps the same peer ID across restarts.
	DataDir string
	// MasterPassword protects the identity keystore at rest. Required
	// when DataDir is set.
	MasterPassword []byte
}

// NewOptions returns the default configuration.
func NewOptions() *Options {
	return &Options{
		ListenAddr: "0.0.0.0:0",
	}
}
