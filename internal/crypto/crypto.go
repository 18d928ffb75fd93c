// Package crypto provides optional at-rest encryption for credential slot
// values. The credential store works with a nil *SlotCipher, in which case
// values are stored in the clear.
package crypto

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"io"
)

// SlotCipher seals and opens individual slot values with AES-256-GCM.
type SlotCipher struct {
	aead cipher.AEAD
}

// NewSlotCipher builds a SlotCipher from a hex-encoded 32-byte key. An empty
// key returns (nil, nil): encryption disabled, all operations pass through.
func NewSlotCipher(hexKey string) (*SlotCipher, error) {
	if hexKey == "" {
		return nil, nil
	}

	key, err := hex.DecodeString(hexKey)
	if err != nil {
		return nil, fmt.Errorf("decoding encryption key: %w", err)
	}
	if len(key) != 32 {
		return nil, fmt.Errorf("encryption key must be 32 bytes, got %d", len(key))
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("creating AES cipher: %w", err)
	}

	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("creating GCM: %w", err)
	}

	return &SlotCipher{aead: aead}, nil
}

// Seal encrypts a slot value and returns base64 ciphertext with the nonce
// prepended. A nil receiver returns the value unchanged.
func (c *SlotCipher) Seal(value string) (string, error) {
	if c == nil {
		return value, nil
	}

	nonce := make([]byte, c.aead.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", fmt.Errorf("generating nonce: %w", err)
	}

	sealed := c.aead.Seal(nonce, nonce, []byte(value), nil)
	return base64.StdEncoding.EncodeToString(sealed), nil
}

// Open decrypts a value produced by Seal. A nil receiver returns the input
// unchanged, which lets a store created without a key read its own data.
func (c *SlotCipher) Open(stored string) (string, error) {
	if c == nil {
		return stored, nil
	}

	data, err := base64.StdEncoding.DecodeString(stored)
	if err != nil {
		return "", fmt.Errorf("decoding stored value: %w", err)
	}

	nonceSize := c.aead.NonceSize()
	if len(data) < nonceSize {
		return "", fmt.Errorf("stored value too short")
	}

	nonce, sealed := data[:nonceSize], data[nonceSize:]
	value, err := c.aead.Open(nil, nonce, sealed, nil)
	if err != nil {
		return "", fmt.Errorf("decrypting stored value: %w", err)
	}

	return string(value), nil
}
