package crypto

import (
	"encoding/hex"
	"testing"
)

func testKey(t *testing.T) string {
	t.Helper()
	// Fixed 32-byte key for deterministic tests.
	return hex.EncodeToString([]byte("0123456789abcdef0123456789abcdef"))
}

func TestRoundtrip(t *testing.T) {
	c, err := NewSlotCipher(testKey(t))
	if err != nil {
		t.Fatalf("NewSlotCipher: %v", err)
	}

	original := "tok_parent_9f8e7d6c"
	sealed, err := c.Seal(original)
	if err != nil {
		t.Fatalf("Seal: %v", err)
	}

	if sealed == original {
		t.Fatal("sealed value should differ from plaintext")
	}

	opened, err := c.Open(sealed)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}

	if opened != original {
		t.Errorf("roundtrip failed: got %q, want %q", opened, original)
	}
}

func TestDifferentCiphertexts(t *testing.T) {
	c, err := NewSlotCipher(testKey(t))
	if err != nil {
		t.Fatalf("NewSlotCipher: %v", err)
	}

	value := "same token"
	s1, err := c.Seal(value)
	if err != nil {
		t.Fatalf("Seal 1: %v", err)
	}
	s2, err := c.Seal(value)
	if err != nil {
		t.Fatalf("Seal 2: %v", err)
	}

	if s1 == s2 {
		t.Error("two seals of the same value should produce different ciphertexts (random nonce)")
	}

	o1, _ := c.Open(s1)
	o2, _ := c.Open(s2)
	if o1 != o2 {
		t.Error("both ciphertexts should open to the same value")
	}
}

func TestNilCipherPassthrough(t *testing.T) {
	var c *SlotCipher

	value := "tok_plain"
	sealed, err := c.Seal(value)
	if err != nil {
		t.Fatalf("nil Seal: %v", err)
	}
	if sealed != value {
		t.Errorf("nil Seal should return value unchanged, got %q", sealed)
	}

	opened, err := c.Open(value)
	if err != nil {
		t.Fatalf("nil Open: %v", err)
	}
	if opened != value {
		t.Errorf("nil Open should return value unchanged, got %q", opened)
	}
}

func TestEmptyKeyReturnsNil(t *testing.T) {
	c, err := NewSlotCipher("")
	if err != nil {
		t.Fatalf("NewSlotCipher with empty key: %v", err)
	}
	if c != nil {
		t.Error("NewSlotCipher with empty key should return nil")
	}
}

func TestInvalidKey(t *testing.T) {
	tests := []struct {
		name string
		key  string
	}{
		{"not hex", "zzzz"},
		{"too short", hex.EncodeToString([]byte("short"))},
		{"too long", hex.EncodeToString(make([]byte, 48))},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := NewSlotCipher(tt.key); err == nil {
				t.Error("expected error for invalid key")
			}
		})
	}
}

func TestOpenGarbage(t *testing.T) {
	c, err := NewSlotCipher(testKey(t))
	if err != nil {
		t.Fatalf("NewSlotCipher: %v", err)
	}

	if _, err := c.Open("not-base64!!!"); err == nil {
		t.Error("expected error opening non-base64 input")
	}
	if _, err := c.Open("c2hvcnQ="); err == nil {
		t.Error("expected error opening truncated ciphertext")
	}
}
