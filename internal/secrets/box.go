// Package secrets seals small credential payloads with a passphrase so they
// can rest in the database without being readable on disk.
//
// The format is scrypt-derived AES-256-GCM: a random salt and nonce are
// prepended to the ciphertext, so each sealed blob is self-contained.
package secrets

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"errors"
	"fmt"
	"io"

	"golang.org/x/crypto/scrypt"
)

const (
	saltLength = 16
	keyLength  = 32

	scryptN = 1 << 15
	scryptR = 8
	scryptP = 1
)

// ErrInvalidPayload indicates a sealed blob is truncated or corrupted.
var ErrInvalidPayload = errors.New("invalid sealed payload")

// ErrWrongPassphrase indicates decryption failed, typically because the
// passphrase does not match the one used to seal.
var ErrWrongPassphrase = errors.New("wrong passphrase or corrupted payload")

// Box seals and opens credential payloads with a shared passphrase.
type Box struct {
	passphrase []byte
}

// NewBox builds a Box from the configured passphrase.
func NewBox(passphrase string) (*Box, error) {
	if passphrase == "" {
		return nil, errors.New("secrets passphrase is empty")
	}
	return &Box{passphrase: []byte(passphrase)}, nil
}

// Seal encrypts plaintext and returns a self-contained blob.
func (b *Box) Seal(plaintext []byte) ([]byte, error) {
	salt := make([]byte, saltLength)
	if _, err := io.ReadFull(rand.Reader, salt); err != nil {
		return nil, fmt.Errorf("generate salt: %w", err)
	}

	gcm, err := b.cipherFor(salt)
	if err != nil {
		return nil, err
	}

	nonce := make([]byte, gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, fmt.Errorf("generate nonce: %w", err)
	}

	sealed := make([]byte, 0, saltLength+len(nonce)+len(plaintext)+gcm.Overhead())
	sealed = append(sealed, salt...)
	sealed = append(sealed, nonce...)
	sealed = gcm.Seal(sealed, nonce, plaintext, nil)
	return sealed, nil
}

// Open decrypts a blob produced by Seal.
func (b *Box) Open(sealed []byte) ([]byte, error) {
	if len(sealed) < saltLength {
		return nil, ErrInvalidPayload
	}
	salt := sealed[:saltLength]

	gcm, err := b.cipherFor(salt)
	if err != nil {
		return nil, err
	}

	rest := sealed[saltLength:]
	if len(rest) < gcm.NonceSize() {
		return nil, ErrInvalidPayload
	}
	nonce := rest[:gcm.NonceSize()]
	ciphertext := rest[gcm.NonceSize():]

	plaintext, err := gcm.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return nil, ErrWrongPassphrase
	}
	return plaintext, nil
}

func (b *Box) cipherFor(salt []byte) (cipher.AEAD, error) {
	key, err := scrypt.Key(b.passphrase, salt, scryptN, scryptR, scryptP, keyLength)
	if err != nil {
		return nil, fmt.Errorf("derive key: %w", err)
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("build cipher: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("build gcm: %w", err)
	}
	return gcm, nil
}
