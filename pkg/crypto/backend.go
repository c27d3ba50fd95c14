// Package crypto is the one place in this daemon that is allowed to import
// crypto/aes, crypto/hmac and golang.org/x/crypto/hkdf. Every other package
// calls the named Backend operations instead; the daemon never invents its
// own cryptographic primitives.
package crypto

import (
	"crypto/aes"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/binary"
	"errors"
	"io"

	"golang.org/x/crypto/hkdf"
)

// Backend groups the key-derivation, wrapping and hashing primitives the key
// store and the EAPOL pipeline depend on.
type Backend struct{}

// New returns the standard-library-backed crypto backend. There is only one
// implementation; call sites hold it as a concrete *Backend.
func New() *Backend { return &Backend{} }

// KDFHashLen256 derives bits/8 bytes of key material from key, a label and
// context octets, the shape of the Wi-SUN/802.11-style PTK KDF: an
// HMAC-SHA256-based expansion, here delegated to golang.org/x/crypto/hkdf
// rather than a hand-rolled counter-mode loop.
func (b *Backend) KDFHashLen256(key, label, context []byte, bits int) ([]byte, error) {
	n := bits / 8
	info := append(append([]byte{}, label...), context...)
	r := hkdf.New(sha256.New, key, nil, info)
	out := make([]byte, n)
	if _, err := io.ReadFull(r, out); err != nil {
		return nil, err
	}
	return out, nil
}

// ErrKeyWrapLength is returned when AESKeyWrap/AESKeyUnwrap receive data that
// is not a multiple of the RFC 3394 64-bit block size.
var ErrKeyWrapLength = errors.New("crypto: key wrap input must be a multiple of 8 bytes")

// ErrIntegrityCheck is returned by AESKeyUnwrap when the wrapped data fails
// the RFC 3394 integrity check (wrong KEK or corrupted wire data).
var ErrIntegrityCheck = errors.New("crypto: key unwrap integrity check failed")

var kekDefaultIV = [8]byte{0xa6, 0xa6, 0xa6, 0xa6, 0xa6, 0xa6, 0xa6, 0xa6}

// AESKeyWrap implements RFC 3394 AES key wrap, used to carry the GTK in the
// EAPOL key-data field under the PTK's KEK half.
func (b *Backend) AESKeyWrap(kek, plaintext []byte) ([]byte, error) {
	if len(plaintext)%8 != 0 || len(plaintext) == 0 {
		return nil, ErrKeyWrapLength
	}
	block, err := aes.NewCipher(kek)
	if err != nil {
		return nil, err
	}

	n := len(plaintext) / 8
	r := make([][8]byte, n)
	for i := range r {
		copy(r[i][:], plaintext[i*8:(i+1)*8])
	}

	a := kekDefaultIV
	for j := 0; j <= 5; j++ {
		for i := 1; i <= n; i++ {
			var buf [16]byte
			copy(buf[:8], a[:])
			copy(buf[8:], r[i-1][:])
			block.Encrypt(buf[:], buf[:])

			copy(a[:], buf[:8])
			t := uint64(n*j + i)
			xorBE64(a[:], t)
			copy(r[i-1][:], buf[8:])
		}
	}

	out := make([]byte, 8+len(plaintext))
	copy(out[:8], a[:])
	for i := range r {
		copy(out[8+i*8:], r[i][:])
	}
	return out, nil
}

// AESKeyUnwrap is the dual of AESKeyWrap.
func (b *Backend) AESKeyUnwrap(kek, wrapped []byte) ([]byte, error) {
	if len(wrapped)%8 != 0 || len(wrapped) < 16 {
		return nil, ErrKeyWrapLength
	}
	block, err := aes.NewCipher(kek)
	if err != nil {
		return nil, err
	}

	n := len(wrapped)/8 - 1
	var a [8]byte
	copy(a[:], wrapped[:8])

	r := make([][8]byte, n)
	for i := range r {
		copy(r[i][:], wrapped[8+i*8:16+i*8])
	}

	for j := 5; j >= 0; j-- {
		for i := n; i >= 1; i-- {
			t := uint64(n*j + i)
			xorBE64(a[:], t)

			var buf [16]byte
			copy(buf[:8], a[:])
			copy(buf[8:], r[i-1][:])
			block.Decrypt(buf[:], buf[:])

			copy(a[:], buf[:8])
			copy(r[i-1][:], buf[8:])
		}
	}

	if !hmac.Equal(a[:], kekDefaultIV[:]) {
		return nil, ErrIntegrityCheck
	}

	out := make([]byte, n*8)
	for i := range r {
		copy(out[i*8:], r[i][:])
	}
	return out, nil
}

func xorBE64(a []byte, t uint64) {
	var tb [8]byte
	binary.BigEndian.PutUint64(tb[:], t)
	for i := range a {
		a[i] ^= tb[i]
	}
}

// GTKHash is SHA-256(key)[0:8], the on-air hash advertised for a GTK slot.
// Must remain bit-exact with deployed Wi-SUN peers.
func (b *Backend) GTKHash(key [16]byte) [8]byte {
	sum := sha256.Sum256(key[:])
	var out [8]byte
	copy(out[:], sum[:8])
	return out
}

// CompactGTKHash truncates GTKHash to the 2-byte form used by the
// authenticator-side compact storage.
func (b *Backend) CompactGTKHash(key [16]byte) [2]byte {
	full := b.GTKHash(key)
	var out [2]byte
	copy(out[:], full[:2])
	return out
}

// GAK derives the Group AES Key advertised over the management property
// interface: SHA-256(networkName || gtk)[0:16].
func (b *Backend) GAK(networkName string, gtk [16]byte) [16]byte {
	h := sha256.New()
	h.Write([]byte(networkName))
	h.Write(gtk[:])
	sum := h.Sum(nil)
	var out [16]byte
	copy(out[:], sum[:16])
	return out
}
