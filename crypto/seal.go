package crypto

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"errors"
	"fmt"
	"io"

	"golang.org/x/crypto/pbkdf2"
)

const (
	sealSaltSize   = 16
	sealKeySize    = 32
	sealIterations = 4096
)

// ErrWrongPassword is returned by OpenWithPassword when the password does
// not open the sealed blob.
var ErrWrongPassword = errors.New("seal: wrong password")

// SealWithPassword encrypts a secret under a password with AES-256-GCM,
// the key stretched by PBKDF2. The returned blob embeds the salt and
// nonce and can only be opened by OpenWithPassword with the same
// password.
func SealWithPassword(password string, secret []byte) ([]byte, error) {
	if password == "" {
		return nil, errors.New("seal: password is empty")
	}

	salt := make([]byte, sealSaltSize)
	if _, err := io.ReadFull(rand.Reader, salt); err != nil {
		return nil, fmt.Errorf("seal: read salt: %w", err)
	}

	gcm, err := passwordCipher(password, salt)
	if err != nil {
		return nil, err
	}

	nonce := make([]byte, gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, fmt.Errorf("seal: read nonce: %w", err)
	}

	out := make([]byte, 0, sealSaltSize+len(nonce)+len(secret)+gcm.Overhead())
	out = append(out, salt...)
	out = append(out, nonce...)
	return gcm.Seal(out, nonce, secret, nil), nil
}

// OpenWithPassword decrypts a blob produced by SealWithPassword.
func OpenWithPassword(password string, sealed []byte) ([]byte, error) {
	if password == "" {
		return nil, errors.New("seal: password is empty")
	}
	if len(sealed) < sealSaltSize {
		return nil, errors.New("seal: sealed blob too short")
	}

	salt, rest := sealed[:sealSaltSize], sealed[sealSaltSize:]
	gcm, err := passwordCipher(password, salt)
	if err != nil {
		return nil, err
	}
	if len(rest) < gcm.NonceSize() {
		return nil, errors.New("seal: sealed blob too short")
	}

	nonce, ciphertext := rest[:gcm.NonceSize()], rest[gcm.NonceSize():]
	secret, err := gcm.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return nil, ErrWrongPassword
	}
	return secret, nil
}

func passwordCipher(password string, salt []byte) (cipher.AEAD, error) {
	key := pbkdf2.Key([]byte(password), salt, sealIterations, sealKeySize, sha256.New)

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("seal: new cipher: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("seal: new gcm: %w", err)
	}
	return gcm, nil
}
