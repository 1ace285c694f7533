// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package settings

import (
	"crypto/rand"
	"crypto/sha256"
	"errors"
	"fmt"
	"io"
	"os"
	"os/user"

	"golang.org/x/crypto/chacha20poly1305"
	"golang.org/x/crypto/hkdf"
)

// Key is the symmetric key protecting the settings file.
type Key [chacha20poly1305.KeySize]byte

// fileMagic prefixes every settings file written by this package.
var fileMagic = []byte("ERAG1")

var errCorrupt = errors.New("settings file is corrupt")

// DeriveKey builds the settings key from the OS user name, host name and
// application name.
//
// The key is reproducible by anyone who can read those three values, so the
// encryption only keeps the file opaque to casual inspection (for example by
// other users of a shared disk or a backup). It offers no protection against
// someone who controls the same account.
func DeriveKey(username, hostname, appName string) Key {
	seed := sha256.Sum256([]byte(username + ":" + hostname + ":" + appName))
	r := hkdf.New(sha256.New, seed[:], nil, []byte("easyrag-settings"))

	var k Key
	// hkdf cannot fail for a 32-byte read
	io.ReadFull(r, k[:])
	return k
}

// DefaultKey derives the key for the current user and host.
func DefaultKey(appName string) Key {
	username := os.Getenv("USER")
	if u, err := user.Current(); err == nil && u.Username != "" {
		username = u.Username
	}
	hostname, err := os.Hostname()
	if err != nil || hostname == "" {
		hostname = "localhost"
	}
	return DeriveKey(username, hostname, appName)
}

func seal(key Key, plaintext []byte) ([]byte, error) {
	aead, err := chacha20poly1305.NewX(key[:])
	if err != nil {
		return nil, fmt.Errorf("create cipher: %w", err)
	}

	nonce := make([]byte, aead.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, fmt.Errorf("generate nonce: %w", err)
	}

	out := make([]byte, 0, len(fileMagic)+len(nonce)+len(plaintext)+aead.Overhead())
	out = append(out, fileMagic...)
	out = append(out, nonce...)
	return aead.Seal(out, nonce, plaintext, fileMagic), nil
}

func open(key Key, data []byte) ([]byte, error) {
	aead, err := chacha20poly1305.NewX(key[:])
	if err != nil {
		return nil, fmt.Errorf("create cipher: %w", err)
	}

	if len(data) < len(fileMagic)+aead.NonceSize()+aead.Overhead() {
		return nil, errCorrupt
	}
	if string(data[:len(fileMagic)]) != string(fileMagic) {
		return nil, errCorrupt
	}
	data = data[len(fileMagic):]
	nonce, ciphertext := data[:aead.NonceSize()], data[aead.NonceSize():]

	plaintext, err := aead.Open(nil, nonce, ciphertext, fileMagic)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", errCorrupt, err)
	}
	return plaintext, nil
}
