package crypto

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"golang.org/x/crypto/pbkdf2"
)

// IdentityStore persists the endpoint's Diffie-Hellman private key at
// rest, so an endpoint keeps the same peer ID across restarts. The key is
// sealed with AES-GCM under a file key derived from the master password
// via PBKDF2; the salt travels in the file header, so every save (and a
// password rotation in particular) rewrites the whole file.
//
// On-disk layout: version (2) | salt (32) | nonce (12) | sealed key.
type IdentityStore struct {
	path     string
	password []byte
}

const (
	// identityIterations is the PBKDF2 iteration count for the file key.
	identityIterations = 100000
	// identityVersion is the on-disk format version.
	identityVersion = 1
	// identitySaltSize is the per-file PBKDF2 salt length.
	identitySaltSize = 32
	// identityFile is the store's file name inside its directory.
	identityFile = "identity.key"
)

// identityLabel binds the seal to this store, so ciphertext cannot be
// replayed into another context that happens to share the password.
var identityLabel = []byte("rtmfp identity v1")

// NewIdentityStore opens (or creates) the store rooted at dataDir. The
// caller's password buffer is wiped; the store keeps its own copy until
// Close.
func NewIdentityStore(dataDir string, masterPassword []byte) (*IdentityStore, error) {
	if len(masterPassword) == 0 {
		return nil, errors.New("master password cannot be empty")
	}
	if err := os.MkdirAll(dataDir, 0o700); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}
	password := make([]byte, len(masterPassword))
	copy(password, masterPassword)
	wipe(masterPassword)
	return &IdentityStore{
		path:     filepath.Join(dataDir, identityFile),
		password: password,
	}, nil
}

// Close wipes the retained master password. The store is unusable
// afterwards.
func (s *IdentityStore) Close() {
	wipe(s.password)
}

// SaveIdentity seals the private key under a fresh salt and nonce and
// replaces any stored identity atomically.
func (s *IdentityStore) SaveIdentity(privateKey []byte) error {
	if len(privateKey) == 0 {
		return errors.New("empty private key")
	}

	salt := make([]byte, identitySaltSize)
	if _, err := rand.Read(salt); err != nil {
		return fmt.Errorf("failed to generate salt: %w", err)
	}
	gcm, err := s.sealer(salt)
	if err != nil {
		return err
	}
	nonce := make([]byte, gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return fmt.Errorf("failed to generate nonce: %w", err)
	}
	sealed := gcm.Seal(nil, nonce, privateKey, identityLabel)

	out := make([]byte, 2, 2+identitySaltSize+len(nonce)+len(sealed))
	binary.BigEndian.PutUint16(out, identityVersion)
	out = append(out, salt...)
	out = append(out, nonce...)
	out = append(out, sealed...)

	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, out, 0o600); err != nil {
		return fmt.Errorf("failed to write identity: %w", err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("failed to replace identity: %w", err)
	}
	return nil
}

// LoadIdentity opens and returns the stored private key. os.ErrNotExist
// surfaces through the wrapped error when no identity has been saved yet.
func (s *IdentityStore) LoadIdentity() ([]byte, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		return nil, fmt.Errorf("failed to read identity: %w", err)
	}

	if len(data) < 2+identitySaltSize {
		return nil, fmt.Errorf("identity file too short: %d bytes", len(data))
	}
	if version := binary.BigEndian.Uint16(data[:2]); version != identityVersion {
		return nil, fmt.Errorf("unsupported identity version: %d", version)
	}
	salt := data[2 : 2+identitySaltSize]
	gcm, err := s.sealer(salt)
	if err != nil {
		return nil, err
	}
	rest := data[2+identitySaltSize:]
	if len(rest) < gcm.NonceSize()+gcm.Overhead() {
		return nil, fmt.Errorf("identity file too short for seal: %d bytes", len(data))
	}

	privateKey, err := gcm.Open(nil, rest[:gcm.NonceSize()], rest[gcm.NonceSize():], identityLabel)
	if err != nil {
		return nil, fmt.Errorf("failed to unseal identity: %w", err)
	}
	return privateKey, nil
}

// DeleteIdentity removes the stored identity; the next endpoint start
// generates a new peer ID. Deleting a store that holds nothing is fine.
func (s *IdentityStore) DeleteIdentity() error {
	if err := os.Remove(s.path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to delete identity: %w", err)
	}
	return nil
}

// ChangeMasterPassword reseals the stored identity under a new password.
// The new password buffer is wiped like the one given at open.
func (s *IdentityStore) ChangeMasterPassword(newPassword []byte) error {
	if len(newPassword) == 0 {
		return errors.New("master password cannot be empty")
	}
	privateKey, err := s.LoadIdentity()
	if err != nil {
		wipe(newPassword)
		return err
	}

	wipe(s.password)
	s.password = make([]byte, len(newPassword))
	copy(s.password, newPassword)
	wipe(newPassword)

	err = s.SaveIdentity(privateKey)
	wipe(privateKey)
	return err
}

// sealer derives the file key for a salt and builds the AEAD around it.
func (s *IdentityStore) sealer(salt []byte) (cipher.AEAD, error) {
	fileKey := pbkdf2.Key(s.password, salt, identityIterations, 32, sha256.New)
	defer wipe(fileKey)

	block, err := aes.NewCipher(fileKey)
	if err != nil {
		return nil, fmt.Errorf("failed to create cipher: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("failed to create GCM: %w", err)
	}
	return gcm, nil
}

// wipe overwrites sensitive bytes once they are no longer needed.
func wipe(b []byte) {
	for i := range b {
		b[i] = 0
	}
}
