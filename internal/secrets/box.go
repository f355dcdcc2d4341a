// internal/secrets/box.go
package secrets

import (
	"crypto/rand"
	"errors"
	"io"

	"golang.org/x/crypto/nacl/secretbox"
)

var ErrSealedCorrupt = errors.New("sealed value is corrupt or key is wrong")

// Seal encrypts a remote access token for at-rest storage. The nonce is
// prepended to the ciphertext.
func Seal(key [32]byte, plaintext []byte) ([]byte, error) {
	var nonce [24]byte
	if _, err := io.ReadFull(rand.Reader, nonce[:]); err != nil {
		return nil, err
	}
	return secretbox.Seal(nonce[:], plaintext, &nonce, &key), nil
}

// Open decrypts a value produced by Seal.
func Open(key [32]byte, sealed []byte) ([]byte, error) {
	if len(sealed) < 24 {
		return nil, ErrSealedCorrupt
	}
	var nonce [24]byte
	copy(nonce[:], sealed[:24])
	plaintext, ok := secretbox.Open(nil, sealed[24:], &nonce, &key)
	if !ok {
		return nil, ErrSealedCorrupt
	}
	return plaintext, nil
}
