// Package secret seals credentials stored in the database (OFD tokens, SMTP and
// SSH passwords) with NaCl secretbox.
//
// Sealed values are base64 text: a 24-byte random nonce followed by the box.
//
// Import Path: supportportal.io/portal/internal/pkg/secret
package secret

import (
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"io"

	"golang.org/x/crypto/nacl/secretbox"
)

const nonceSize = 24

// ErrOpen is returned when a sealed value cannot be decrypted with the key.
var ErrOpen = errors.New("secret: cannot open sealed value")

// Box seals and opens values with a fixed 32-byte key.
type Box struct {
	key [32]byte
}

// NewBox creates a Box for the given key.
func NewBox(key [32]byte) *Box {
	return &Box{key: key}
}

// Seal encrypts plaintext. The empty string seals to the empty string so
// "not configured" survives a round trip unchanged.
func (b *Box) Seal(plaintext string) (string, error) {
	if plaintext == "" {
		return "", nil
	}
	var nonce [nonceSize]byte
	if _, err := io.ReadFull(rand.Reader, nonce[:]); err != nil {
		return "", fmt.Errorf("read nonce: %w", err)
	}
	sealed := secretbox.Seal(nonce[:], []byte(plaintext), &nonce, &b.key)
	return base64.StdEncoding.EncodeToString(sealed), nil
}

// Open decrypts a value produced by Seal.
func (b *Box) Open(sealed string) (string, error) {
	if sealed == "" {
		return "", nil
	}
	raw, err := base64.StdEncoding.DecodeString(sealed)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrOpen, err)
	}
	if len(raw) < nonceSize+secretbox.Overhead {
		return "", ErrOpen
	}
	var nonce [nonceSize]byte
	copy(nonce[:], raw[:nonceSize])
	out, ok := secretbox.Open(nil, raw[nonceSize:], &nonce, &b.key)
	if !ok {
		return "", ErrOpen
	}
	return string(out), nil
}
