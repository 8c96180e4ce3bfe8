package crypto

import (
	"crypto/aes"
	"crypto/cipher"
	"fmt"
)

// PacketCipher applies the RTMFP symmetric packet encryption: AES-128-CBC
// with a zero IV on every packet. All handshake traffic travels under the
// well-known default key; sessions switch to ciphers keyed by the derived
// directional keys (their first 16 bytes) once the handshake completes.
type PacketCipher struct {
	block cipher.Block
}

// NewPacketCipher creates a cipher for a 16-byte packet key.
func NewPacketCipher(key []byte) (*PacketCipher, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCryptoInit, err)
	}
	return &PacketCipher{block: block}, nil
}

// NewDefaultPacketCipher creates the cipher keyed by DefaultKeyText.
func NewDefaultPacketCipher() *PacketCipher {
	c, _ := NewPacketCipher([]byte(DefaultKeyText)) // the default key is a valid AES-128 key
	return c
}

// BlockSize returns the block size packets must be padded to.
func (c *PacketCipher) BlockSize() int {
	return c.block.BlockSize()
}

// Encrypt encrypts data in place. The length must be a positive multiple
// of BlockSize.
func (c *PacketCipher) Encrypt(data []byte) error {
	if err := c.checkLength(data); err != nil {
		return err
	}
	iv := make([]byte, c.block.BlockSize())
	cipher.NewCBCEncrypter(c.block, iv).CryptBlocks(data, data)
	return nil
}

// Decrypt decrypts data in place. The length must be a positive multiple
// of BlockSize.
func (c *PacketCipher) Decrypt(data []byte) error {
	if err := c.checkLength(data); err != nil {
		return err
	}
	iv := make([]byte, c.block.BlockSize())
	cipher.NewCBCDecrypter(c.block, iv).CryptBlocks(data, data)
	return nil
}

func (c *PacketCipher) checkLength(data []byte) error {
	if len(data) == 0 || len(data)%c.block.BlockSize() != 0 {
		return fmt.Errorf("packet length %d is not a cipher block multiple", len(data))
	}
	return nil
}
