package transport

import "sync"

// BufferPool recycles datagram buffers between the receive loop and the
// event loop so steady-state traffic does not allocate.
type BufferPool struct {
	pool sync.Pool
}

// NewBufferPool creates a pool handing out MaxPacketSize buffers.
func NewBufferPool() *BufferPool {
	return &BufferPool{
		pool: sync.Pool{
			New: func() interface{} {
				return make([]byte, MaxPacketSize)
			},
		},
	}
}

// Get returns a full-capacity buffer.
func (p *BufferPool) Get() []byte {
	return p.pool.Get().([]byte)[:MaxPacketSize]
}

// Put returns a buffer obtained from Get. The caller must not touch it
// afterwards.
func (p *BufferPool) Put(b []byte) {
	if cap(b) < MaxPacketSize {
		return
	}
	p.pool.Put(b[:MaxPacketSize])
}
