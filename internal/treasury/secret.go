// Package treasury seals and opens tenant wallet secrets. Plaintext only lives
// in memory for the duration of a transfer batch.
package treasury

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"strings"

	"golang.org/x/crypto/chacha20poly1305"
	"golang.org/x/crypto/hkdf"
)

var ErrInvalidMasterKey = errors.New("invalid_master_key")

const keyInfo = "treasury-secret-v1"

// SecretResolver opens an encrypted wallet secret. ok is false when the value
// cannot be decrypted.
type SecretResolver interface {
	Decrypt(encrypted string) (plaintext []byte, ok bool)
}

type Sealer interface {
	SecretResolver
	Encrypt(plaintext []byte) (string, error)
}

// Cipher implements Sealer with XChaCha20-Poly1305 under a key derived from
// the configured master key. Sealed values are base64(nonce || ciphertext).
type Cipher struct {
	key []byte
}

// NewCipher accepts a hex-encoded master key of at least 32 bytes.
func NewCipher(masterKeyHex string) (*Cipher, error) {
	master, err := hex.DecodeString(strings.TrimSpace(masterKeyHex))
	if err != nil || len(master) < 32 {
		return nil, ErrInvalidMasterKey
	}
	key := make([]byte, chacha20poly1305.KeySize)
	if _, err := io.ReadFull(hkdf.New(sha256.New, master, nil, []byte(keyInfo)), key); err != nil {
		return nil, fmt.Errorf("derive key: %w", err)
	}
	return &Cipher{key: key}, nil
}

func (c *Cipher) Encrypt(plaintext []byte) (string, error) {
	aead, err := chacha20poly1305.NewX(c.key)
	if err != nil {
		return "", err
	}
	nonce := make([]byte, aead.NonceSize(), aead.NonceSize()+len(plaintext)+aead.Overhead())
	if _, err := rand.Read(nonce); err != nil {
		return "", err
	}
	sealed := aead.Seal(nonce, nonce, plaintext, nil)
	return base64.StdEncoding.EncodeToString(sealed), nil
}

func (c *Cipher) Decrypt(encrypted string) ([]byte, bool) {
	raw, err := base64.StdEncoding.DecodeString(strings.TrimSpace(encrypted))
	if err != nil {
		return nil, false
	}
	aead, err := chacha20poly1305.NewX(c.key)
	if err != nil || len(raw) < aead.NonceSize()+aead.Overhead() {
		return nil, false
	}
	nonce, ct := raw[:aead.NonceSize()], raw[aead.NonceSize():]
	plain, err := aead.Open(nil, nonce, ct, nil)
	if err != nil {
		return nil, false
	}
	return plain, true
}

// Wipe zeroes a plaintext secret once the caller is done with it.
func Wipe(b []byte) {
	for i := range b {
		b[i] = 0
	}
}
