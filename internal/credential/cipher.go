// Package credential keeps platform access tokens encrypted at rest and
// resolves them for the dispatch and follower jobs.
package credential

import (
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"encoding/binary"
	"errors"
	"fmt"

	"golang.org/x/crypto/chacha20poly1305"
)

// ErrMalformedCiphertext is returned when a sealed token cannot be opened.
var ErrMalformedCiphertext = errors.New("credential: malformed ciphertext")

// Cipher seals tokens with XChaCha20-Poly1305. The owner id is bound as
// associated data so a row copied to another owner fails to open.
type Cipher struct {
	aead cipher.AEAD
}

// NewCipher builds a Cipher from a 32-byte key.
func NewCipher(key []byte) (*Cipher, error) {
	aead, err := chacha20poly1305.NewX(key)
	if err != nil {
		return nil, fmt.Errorf("credential: init cipher: %w", err)
	}
	return &Cipher{aead: aead}, nil
}

// NewCipherFromBase64 decodes a standard base64 key and builds a Cipher.
func NewCipherFromBase64(encoded string) (*Cipher, error) {
	key, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return nil, fmt.Errorf("credential: decode key: %w", err)
	}
	return NewCipher(key)
}

// Seal returns nonce || ciphertext.
func (c *Cipher) Seal(ownerID uint, plaintext []byte) ([]byte, error) {
	nonce := make([]byte, c.aead.NonceSize(), c.aead.NonceSize()+len(plaintext)+c.aead.Overhead())
	if _, err := rand.Read(nonce); err != nil {
		return nil, fmt.Errorf("credential: nonce: %w", err)
	}
	return c.aead.Seal(nonce, nonce, plaintext, associatedData(ownerID)), nil
}

// Open reverses Seal.
func (c *Cipher) Open(ownerID uint, sealed []byte) ([]byte, error) {
	ns := c.aead.NonceSize()
	if len(sealed) < ns+c.aead.Overhead() {
		return nil, ErrMalformedCiphertext
	}
	plain, err := c.aead.Open(nil, sealed[:ns], sealed[ns:], associatedData(ownerID))
	if err != nil {
		return nil, ErrMalformedCiphertext
	}
	return plain, nil
}

func associatedData(ownerID uint) []byte {
	ad := make([]byte, 8)
	binary.BigEndian.PutUint64(ad, uint64(ownerID))
	return ad
}
