// Package cryptox implements the passphrase-based authenticated envelope
// protecting the vault at rest. Keys are derived with Argon2id and the
// payload is sealed with AES-256-GCM.
package cryptox

import (
	"bytes"
	"crypto/aes"
	"crypto/cipher"
	"fmt"

	"golang.org/x/crypto/argon2"

	"github.com/mlukins/keyfob/internal/common"
)

// Envelope layout: magic | salt | nonce | ciphertext+tag.
var envelopeMagic = []byte("KFV1")

const (
	saltSize  = 16
	nonceSize = 12
	keySize   = 32

	// Argon2id cost parameters.
	argonTime    = 1
	argonMemory  = 64 * 1024
	argonThreads = 4
)

// DeriveKey stretches a passphrase into an AES-256 key using Argon2id.
// Deterministic for a given (passphrase, salt) pair.
func DeriveKey(passphrase, salt []byte) []byte {
	return argon2.IDKey(passphrase, salt, argonTime, argonMemory, argonThreads, keySize)
}

// Encrypt seals plaintext under a key derived from passphrase. A fresh salt
// and nonce are generated per call, so encrypting the same plaintext twice
// yields different blobs.
func Encrypt(passphrase, plaintext []byte) ([]byte, error) {
	salt := common.GenerateRandByteArray(saltSize)
	nonce := common.GenerateRandByteArray(nonceSize)

	key := DeriveKey(passphrase, salt)
	defer common.WipeByteArray(key)

	aead, err := newAEAD(key)
	if err != nil {
		return nil, err
	}

	blob := make([]byte, 0, len(envelopeMagic)+saltSize+nonceSize+len(plaintext)+aead.Overhead())
	blob = append(blob, envelopeMagic...)
	blob = append(blob, salt...)
	blob = append(blob, nonce...)
	return aead.Seal(blob, nonce, plaintext, nil), nil
}

// Decrypt opens a blob produced by Encrypt. A wrong passphrase, a truncated
// blob or any tampering yields common.ErrDecryptAuth; a plausible plaintext
// is never returned on failure.
func Decrypt(passphrase, blob []byte) ([]byte, error) {
	header := len(envelopeMagic) + saltSize + nonceSize
	if len(blob) < header || !bytes.Equal(blob[:len(envelopeMagic)], envelopeMagic) {
		return nil, fmt.Errorf("malformed envelope: %w", common.ErrDecryptAuth)
	}

	salt := blob[len(envelopeMagic) : len(envelopeMagic)+saltSize]
	nonce := blob[len(envelopeMagic)+saltSize : header]

	key := DeriveKey(passphrase, salt)
	defer common.WipeByteArray(key)

	aead, err := newAEAD(key)
	if err != nil {
		return nil, err
	}

	plaintext, err := aead.Open(nil, nonce, blob[header:], nil)
	if err != nil {
		return nil, common.ErrDecryptAuth
	}
	return plaintext, nil
}

func newAEAD(key []byte) (cipher.AEAD, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("create cipher: %w", err)
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("create AEAD: %w", err)
	}
	return aead, nil
}
