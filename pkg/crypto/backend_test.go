package crypto_test

import (
	"bytes"
	"testing"

	"github.com/wisun-go/wsbrd/pkg/crypto"
)

func TestAESKeyWrapUnwrapRoundTrip(t *testing.T) {
	b := crypto.New()
	kek := bytes.Repeat([]byte{0x42}, 16)
	plaintext := bytes.Repeat([]byte{0x24}, 16) // a GTK-sized payload

	wrapped, err := b.AESKeyWrap(kek, plaintext)
	if err != nil {
		t.Fatalf("wrap: %v", err)
	}
	if len(wrapped) != len(plaintext)+8 {
		t.Fatalf("wrapped length = %d, want %d", len(wrapped), len(plaintext)+8)
	}

	unwrapped, err := b.AESKeyUnwrap(kek, wrapped)
	if err != nil {
		t.Fatalf("unwrap: %v", err)
	}
	if !bytes.Equal(unwrapped, plaintext) {
		t.Fatalf("unwrapped = %x, want %x", unwrapped, plaintext)
	}
}

func TestAESKeyUnwrapRejectsTamperedData(t *testing.T) {
	b := crypto.New()
	kek := bytes.Repeat([]byte{0x11}, 16)
	plaintext := bytes.Repeat([]byte{0x22}, 16)

	wrapped, err := b.AESKeyWrap(kek, plaintext)
	if err != nil {
		t.Fatalf("wrap: %v", err)
	}
	wrapped[10] ^= 0xff

	if _, err := b.AESKeyUnwrap(kek, wrapped); err != crypto.ErrIntegrityCheck {
		t.Fatalf("expected ErrIntegrityCheck, got %v", err)
	}
}

func TestGTKHashIsPureFunctionOfKeyBytes(t *testing.T) {
	b := crypto.New()
	key := [16]byte{1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11, 12, 13, 14, 15, 16}

	h1 := b.GTKHash(key)
	h2 := b.GTKHash(key)
	if h1 != h2 {
		t.Fatalf("GTKHash not deterministic: %x vs %x", h1, h2)
	}
}

func TestKDFHashLen256ProducesRequestedLength(t *testing.T) {
	b := crypto.New()
	out, err := b.KDFHashLen256([]byte("pmk-bytes-pmk-bytes-pmk-bytes-32"), []byte("label"), []byte("context"), 384)
	if err != nil {
		t.Fatalf("kdf: %v", err)
	}
	if len(out) != 48 {
		t.Fatalf("len(out) = %d, want 48", len(out))
	}
}
