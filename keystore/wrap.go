package keystore

import (
	"crypto/aes"
	"encoding/binary"
	"fmt"
)

// kwDefaultIV is the standard RFC 3394 integrity-check value, prepended to
// every wrapped key so unwrap can detect a wrong key-encrypting key instead
// of silently returning garbage plaintext.
var kwDefaultIV = [8]byte{0xA6, 0xA6, 0xA6, 0xA6, 0xA6, 0xA6, 0xA6, 0xA6}

// wrapKey implements RFC 3394 / NIST SP 800-38F AES Key Wrap with a
// 256-bit key-encrypting key, built directly on crypto/aes since no
// third-party AES-KW package exists anywhere in the pack. keyIn must be
// a multiple of 8 bytes and at least 16.
func wrapKey(kek, keyIn []byte) ([]byte, error) {
	if len(kek) != 32 {
		return nil, fmt.Errorf("keystore: key-encrypting key must be 32 bytes, got %d", len(kek))
	}
	n := len(keyIn) / 8
	if n < 2 || len(keyIn)%8 != 0 {
		return nil, fmt.Errorf("keystore: wrapped key length must be a multiple of 8 and at least 16 bytes, got %d", len(keyIn))
	}

	block, err := aes.NewCipher(kek)
	if err != nil {
		return nil, fmt.Errorf("keystore: new cipher: %w", err)
	}

	r := make([][]byte, n)
	for i := 0; i < n; i++ {
		r[i] = append([]byte(nil), keyIn[i*8:(i+1)*8]...)
	}

	a := append([]byte(nil), kwDefaultIV[:]...)
	buf := make([]byte, 16)
	for j := 0; j <= 5; j++ {
		for i := 1; i <= n; i++ {
			copy(buf[:8], a)
			copy(buf[8:], r[i-1])
			block.Encrypt(buf, buf)

			t := uint64(n*j + i)
			var tb [8]byte
			binary.BigEndian.PutUint64(tb[:], t)
			for k := range a {
				a[k] = buf[k] ^ tb[k]
			}
			r[i-1] = append([]byte(nil), buf[8:]...)
		}
	}

	out := make([]byte, 8+len(keyIn))
	copy(out[:8], a)
	for i := 0; i < n; i++ {
		copy(out[8+i*8:], r[i])
	}
	return out, nil
}

// unwrapKey reverses wrapKey, returning an error (rather than corrupted
// plaintext) if the recovered integrity value doesn't match kwDefaultIV —
// the signal that kek was wrong or wrapped was tampered with.
func unwrapKey(kek, wrapped []byte) ([]byte, error) {
	if len(kek) != 32 {
		return nil, fmt.Errorf("keystore: key-encrypting key must be 32 bytes, got %d", len(kek))
	}
	if len(wrapped) < 24 || len(wrapped)%8 != 0 {
		return nil, fmt.Errorf("keystore: wrapped ciphertext length invalid: %d", len(wrapped))
	}

	block, err := aes.NewCipher(kek)
	if err != nil {
		return nil, fmt.Errorf("keystore: new cipher: %w", err)
	}

	n := len(wrapped)/8 - 1
	a := append([]byte(nil), wrapped[:8]...)
	r := make([][]byte, n)
	for i := 0; i < n; i++ {
		r[i] = append([]byte(nil), wrapped[8+i*8:8+(i+1)*8]...)
	}

	buf := make([]byte, 16)
	for j := 5; j >= 0; j-- {
		for i := n; i >= 1; i-- {
			t := uint64(n*j + i)
			var tb [8]byte
			binary.BigEndian.PutUint64(tb[:], t)
			var xored [8]byte
			for k := 0; k < 8; k++ {
				xored[k] = a[k] ^ tb[k]
			}
			copy(buf[:8], xored[:])
			copy(buf[8:], r[i-1])
			block.Decrypt(buf, buf)
			a = append([]byte(nil), buf[:8]...)
			r[i-1] = append([]byte(nil), buf[8:]...)
		}
	}

	for k := range a {
		if a[k] != kwDefaultIV[k] {
			return nil, fmt.Errorf("keystore: integrity check failed, wrong key-encrypting key")
		}
	}

	out := make([]byte, 0, n*8)
	for i := 0; i < n; i++ {
		out = append(out, r[i]...)
	}
	return out, nil
}
