// Copyright (c) 2025 Jeremy Hahn
// Copyright (c) 2025 Automate The Things, LLC
//
// This file is part of go-repokey.
//
// go-repokey is dual-licensed:
//
// 1. GNU Affero General Public License v3.0 (AGPL-3.0)
//    See LICENSE file or visit https://www.gnu.org/licenses/agpl-3.0.html
//
// 2. Commercial License
//    Contact licensing@automatethethings.com for commercial licensing options.

// Package cipherkey provides the symmetric key used to seal repository data.
//
// A Key combines AES-256 in counter mode with a Poly1305-AES authenticator.
// Sealed messages have the layout
//
//	IV (16 bytes) || ciphertext || MAC (16 bytes)
//
// where the MAC covers the ciphertext and its one-time Poly1305 key is built
// from the IV. Decryption verifies the MAC before any plaintext is produced.
package cipherkey

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/subtle"
	"errors"
	"fmt"
	"io"

	"golang.org/x/crypto/poly1305"
)

const (
	// EncryptionKeySize is the AES-256 key length.
	EncryptionKeySize = 32

	// MACKeySize is the length of each of the two MAC sub-keys (k and r).
	MACKeySize = 16

	// Size is the length of a serialized key (encrypt || k || r).
	Size = EncryptionKeySize + 2*MACKeySize

	// IVSize is the length of the random IV prepended to every ciphertext.
	IVSize = aes.BlockSize

	// MACSize is the length of the appended authenticator.
	MACSize = poly1305.TagSize

	// Overhead is the number of bytes EncryptData adds to the plaintext.
	Overhead = IVSize + MACSize
)

var (
	// ErrAuthenticationFailed is returned when a ciphertext fails MAC verification.
	ErrAuthenticationFailed = errors.New("cipherkey: ciphertext verification failed")

	// ErrCiphertextTooShort is returned when a ciphertext cannot hold an IV and MAC.
	ErrCiphertextTooShort = errors.New("cipherkey: ciphertext too short")

	// ErrInvalidKeySize is returned when sub-key material has the wrong length.
	ErrInvalidKeySize = errors.New("cipherkey: invalid key size")
)

// Key seals and opens byte buffers with authenticated encryption and can be
// decomposed into its raw sub-keys.
type Key interface {
	// EncryptData returns IV || ciphertext || MAC for plaintext.
	EncryptData(plaintext []byte) ([]byte, error)

	// DecryptData verifies and decrypts a buffer produced by EncryptData.
	// It returns ErrAuthenticationFailed when the MAC does not verify.
	DecryptData(ciphertext []byte) ([]byte, error)

	// Keys returns copies of the encryption key and the MAC sub-keys k and r.
	Keys() (encrypt, macK, macR []byte)
}

// AESPoly1305Key is the AES-256-CTR / Poly1305-AES implementation of Key.
type AESPoly1305Key struct {
	encrypt [EncryptionKeySize]byte
	macK    [MACKeySize]byte
	macR    [MACKeySize]byte
}

// FromKeys builds a key from its three raw sub-keys.
func FromKeys(encrypt, macK, macR []byte) (*AESPoly1305Key, error) {
	if len(encrypt) != EncryptionKeySize {
		return nil, fmt.Errorf("%w: encryption key is %d bytes, want %d", ErrInvalidKeySize, len(encrypt), EncryptionKeySize)
	}
	if len(macK) != MACKeySize || len(macR) != MACKeySize {
		return nil, fmt.Errorf("%w: mac keys are %d/%d bytes, want %d", ErrInvalidKeySize, len(macK), len(macR), MACKeySize)
	}
	k := &AESPoly1305Key{}
	copy(k.encrypt[:], encrypt)
	copy(k.macK[:], macK)
	copy(k.macR[:], macR)
	return k, nil
}

// FromSlice splits Size bytes of key material, e.g. the output of a password
// derivation, into encrypt = [0:32], k = [32:48] and r = [48:64].
func FromSlice(b []byte) (*AESPoly1305Key, error) {
	if len(b) != Size {
		return nil, fmt.Errorf("%w: got %d bytes, want %d", ErrInvalidKeySize, len(b), Size)
	}
	return FromKeys(
		b[:EncryptionKeySize],
		b[EncryptionKeySize:EncryptionKeySize+MACKeySize],
		b[EncryptionKeySize+MACKeySize:])
}

// NewRandom generates a fresh key from crypto/rand.
func NewRandom() (*AESPoly1305Key, error) {
	return NewRandomFrom(rand.Reader)
}

// NewRandomFrom generates a fresh key from the given entropy source.
func NewRandomFrom(r io.Reader) (*AESPoly1305Key, error) {
	buf := make([]byte, Size)
	defer zero(buf)
	if _, err := io.ReadFull(r, buf); err != nil {
		return nil, fmt.Errorf("cipherkey: failed to read random key material: %w", err)
	}
	return FromSlice(buf)
}

// Keys returns copies of the raw sub-keys.
func (k *AESPoly1305Key) Keys() (encrypt, macK, macR []byte) {
	encrypt = append([]byte(nil), k.encrypt[:]...)
	macK = append([]byte(nil), k.macK[:]...)
	macR = append([]byte(nil), k.macR[:]...)
	return encrypt, macK, macR
}

// Equal reports whether both keys hold the same sub-key material.
func (k *AESPoly1305Key) Equal(other Key) bool {
	if other == nil {
		return false
	}
	e, mk, mr := other.Keys()
	return subtle.ConstantTimeCompare(k.encrypt[:], e) == 1 &&
		subtle.ConstantTimeCompare(k.macK[:], mk) == 1 &&
		subtle.ConstantTimeCompare(k.macR[:], mr) == 1
}

// EncryptData encrypts and authenticates plaintext under a fresh random IV.
func (k *AESPoly1305Key) EncryptData(plaintext []byte) ([]byte, error) {
	out := make([]byte, IVSize+len(plaintext), len(plaintext)+Overhead)
	iv := out[:IVSize]
	if _, err := io.ReadFull(rand.Reader, iv); err != nil {
		return nil, fmt.Errorf("cipherkey: failed to generate IV: %w", err)
	}

	block, err := aes.NewCipher(k.encrypt[:])
	if err != nil {
		return nil, fmt.Errorf("cipherkey: failed to create cipher: %w", err)
	}
	cipher.NewCTR(block, iv).XORKeyStream(out[IVSize:], plaintext)

	mac, err := k.mac(out[IVSize:], iv)
	if err != nil {
		return nil, err
	}
	return append(out, mac[:]...), nil
}

// DecryptData checks the MAC and returns the plaintext.
func (k *AESPoly1305Key) DecryptData(ciphertext []byte) ([]byte, error) {
	if len(ciphertext) < Overhead {
		return nil, ErrCiphertextTooShort
	}

	iv := ciphertext[:IVSize]
	body := ciphertext[IVSize : len(ciphertext)-MACSize]
	var tag [MACSize]byte
	copy(tag[:], ciphertext[len(ciphertext)-MACSize:])

	polyKey, err := k.polyKey(iv)
	if err != nil {
		return nil, err
	}
	if !poly1305.Verify(&tag, body, &polyKey) {
		return nil, ErrAuthenticationFailed
	}

	block, err := aes.NewCipher(k.encrypt[:])
	if err != nil {
		return nil, fmt.Errorf("cipherkey: failed to create cipher: %w", err)
	}
	plaintext := make([]byte, len(body))
	cipher.NewCTR(block, iv).XORKeyStream(plaintext, body)
	return plaintext, nil
}

func (k *AESPoly1305Key) mac(msg, iv []byte) ([MACSize]byte, error) {
	var out [MACSize]byte
	polyKey, err := k.polyKey(iv)
	if err != nil {
		return out, err
	}
	poly1305.Sum(&out, msg, &polyKey)
	return out, nil
}

// polyKey builds the one-time Poly1305 key mask(r) || AES_k(iv).
func (k *AESPoly1305Key) polyKey(iv []byte) ([32]byte, error) {
	var key [32]byte
	block, err := aes.NewCipher(k.macK[:])
	if err != nil {
		return key, fmt.Errorf("cipherkey: failed to create mac cipher: %w", err)
	}
	r := k.macR
	maskKey(&r)
	copy(key[:16], r[:])
	block.Encrypt(key[16:], iv)
	return key, nil
}

// maskKey clears the bits Poly1305 requires to be zero in r.
func maskKey(r *[MACKeySize]byte) {
	r[3] &= 15
	r[7] &= 15
	r[11] &= 15
	r[15] &= 15
	r[4] &= 252
	r[8] &= 252
	r[12] &= 252
}

func zero(b []byte) {
	for i := range b {
		b[i] = 0
	}
}

var _ Key = (*AESPoly1305Key)(nil)
