// Package cryptox implements the symmetric file codec: a passphrase-derived
// AES-256-GCM transform with a self-describing envelope, so decryption needs
// nothing beyond the passphrase itself.
package cryptox

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/sha256"
	"fmt"

	"golang.org/x/crypto/argon2"

	"github.com/mvogonkachristophe0112/privora12-sub002/internal/common"
)

// Envelope layout (fixed):
//
//	[0:4)   magic "PVE1"
//	[4:20)  argon2id salt, 16 random bytes
//	[20:32) AES-GCM nonce, 12 random bytes
//	[32:)   ciphertext + 16-byte GCM tag
const (
	saltSize  = 16
	nonceSize = 12
	headerLen = len(envelopeMagic) + saltSize + nonceSize

	envelopeMagic = "PVE1"
)

// DeriveKey stretches a passphrase into a 32-byte AES key using argon2id.
func DeriveKey(passphrase, salt []byte) []byte {
	return argon2.IDKey(passphrase, salt, 1, 64*1024, 4, 32)
}

// MakeVerifier returns a non-reversible fingerprint of a derived key,
// suitable for storing server-side to detect a wrong passphrase without
// ever holding the key.
func MakeVerifier(key []byte) []byte {
	hash := sha256.Sum256(key)
	return hash[:]
}

// Encrypt seals plaintext under a key derived from passphrase and returns a
// self-describing envelope. A fresh random salt and nonce are drawn on every
// call, so two encryptions of identical input never produce identical output.
func Encrypt(plaintext, passphrase []byte) ([]byte, error) {
	salt := common.GenerateRandByteArray(saltSize)
	nonce := common.GenerateRandByteArray(nonceSize)

	key := DeriveKey(passphrase, salt)
	defer common.WipeByteArray(key)

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	aesgcm, err := cipher.NewGCMWithNonceSize(block, nonceSize)
	if err != nil {
		return nil, err
	}

	out := make([]byte, 0, headerLen+len(plaintext)+aesgcm.Overhead())
	out = append(out, envelopeMagic...)
	out = append(out, salt...)
	out = append(out, nonce...)
	out = aesgcm.Seal(out, nonce, plaintext, nil)
	return out, nil
}

// Decrypt reverses Encrypt. It fails with common.ErrDecryption when the
// envelope is malformed, truncated, or sealed under a different passphrase,
// so callers can tell "wrong key" apart from a corrupted download at the
// transport level.
func Decrypt(envelope, passphrase []byte) ([]byte, error) {
	if len(envelope) < headerLen {
		return nil, fmt.Errorf("%w: envelope too short (%d bytes)", common.ErrDecryption, len(envelope))
	}
	if string(envelope[:len(envelopeMagic)]) != envelopeMagic {
		return nil, fmt.Errorf("%w: bad envelope header", common.ErrDecryption)
	}

	salt := envelope[len(envelopeMagic) : len(envelopeMagic)+saltSize]
	nonce := envelope[len(envelopeMagic)+saltSize : headerLen]
	ciphertext := envelope[headerLen:]

	key := DeriveKey(passphrase, salt)
	defer common.WipeByteArray(key)

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	aesgcm, err := cipher.NewGCMWithNonceSize(block, nonceSize)
	if err != nil {
		return nil, err
	}

	plaintext, err := aesgcm.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		// GCM authentication failure: wrong key or tampered ciphertext.
		return nil, fmt.Errorf("%w: %v", common.ErrDecryption, err)
	}
	return plaintext, nil
}
