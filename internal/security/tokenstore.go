// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package security

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/crypto/pbkdf2"

	"github.com/jeranaias/termchat/internal/util"
)

// =============================================================================
// CONSTANTS
// =============================================================================

const (
	// KeySize is the AES-256 key length.
	KeySize = 32
	// NonceSize is the AES-GCM nonce length (96 bits).
	NonceSize = 12
	// SaltSize is the per-encryption PBKDF2 salt length.
	SaltSize = 16
	// PBKDF2Iterations follows the OWASP recommendation for
	// PBKDF2-SHA-256.
	PBKDF2Iterations = 600000

	// encPrefix marks a stored value as encrypted.
	encPrefix = "ENC:"

	tokenFileName = "token.enc"
	keyFileName   = ".keyfile"
)

var (
	// ErrNoStoredToken indicates no token has been saved yet.
	ErrNoStoredToken = errors.New("no stored API token")
	// ErrDecryptFailed indicates the token file is corrupt or the key
	// file changed since the token was saved.
	ErrDecryptFailed = errors.New("failed to decrypt stored token")
)

// =============================================================================
// TOKEN STORE
// =============================================================================

// TokenStore persists the OpenRouter API token encrypted at rest.
//
// The token is sealed with AES-256-GCM under a key derived via
// PBKDF2-SHA-256 from a random master secret kept in a 0600 key file
// next to the token. This keeps the token out of plaintext config and
// shell history; it does not defend against an attacker who can read
// the user's home directory.
type TokenStore struct {
	dir string
}

// NewTokenStore creates a store rooted at dir (typically the config
// directory).
func NewTokenStore(dir string) *TokenStore {
	return &TokenStore{dir: dir}
}

func (s *TokenStore) tokenPath() string { return filepath.Join(s.dir, tokenFileName) }
func (s *TokenStore) keyPath() string   { return filepath.Join(s.dir, keyFileName) }

// Exists reports whether a token has been saved.
func (s *TokenStore) Exists() bool {
	_, err := os.Stat(s.tokenPath())
	return err == nil
}

// Save encrypts and stores the token, creating the master secret on
// first use.
func (s *TokenStore) Save(token string) error {
	if token == "" {
		return errors.New("refusing to store an empty token")
	}
	master, err := s.loadOrCreateMaster()
	if err != nil {
		return err
	}
	defer ZeroBytes(master)

	sealed, err := seal(master, []byte(token))
	if err != nil {
		return fmt.Errorf("failed to encrypt token: %w", err)
	}

	// RELIABILITY: Atomic write with fsync prevents data loss on crash
	if err := util.AtomicWriteFile(s.tokenPath(), []byte(encPrefix+sealed), 0600); err != nil {
		return fmt.Errorf("failed to write token file: %w", err)
	}
	return nil
}

// Load decrypts and returns the stored token.
func (s *TokenStore) Load() (string, error) {
	raw, err := os.ReadFile(s.tokenPath())
	if err != nil {
		if os.IsNotExist(err) {
			return "", ErrNoStoredToken
		}
		return "", fmt.Errorf("failed to read token file: %w", err)
	}

	payload := strings.TrimSpace(string(raw))
	if !strings.HasPrefix(payload, encPrefix) {
		return "", ErrDecryptFailed
	}

	master, err := s.loadMaster()
	if err != nil {
		return "", err
	}
	defer ZeroBytes(master)

	token, err := open(master, strings.TrimPrefix(payload, encPrefix))
	if err != nil {
		return "", err
	}
	return string(token), nil
}

// Delete removes the stored token. The master secret stays so other
// sealed values, if any, remain readable.
func (s *TokenStore) Delete() error {
	if err := os.Remove(s.tokenPath()); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to delete token file: %w", err)
	}
	return nil
}

// =============================================================================
// MASTER SECRET
// =============================================================================

func (s *TokenStore) loadOrCreateMaster() ([]byte, error) {
	master, err := s.loadMaster()
	if err == nil {
		return master, nil
	}
	if !errors.Is(err, os.ErrNotExist) {
		return nil, err
	}

	master = make([]byte, KeySize)
	if _, err := io.ReadFull(rand.Reader, master); err != nil {
		return nil, fmt.Errorf("failed to generate master secret: %w", err)
	}
	if err := util.AtomicWriteFile(s.keyPath(), master, 0600); err != nil {
		return nil, fmt.Errorf("failed to write key file: %w", err)
	}
	return master, nil
}

func (s *TokenStore) loadMaster() ([]byte, error) {
	master, err := os.ReadFile(s.keyPath())
	if err != nil {
		return nil, fmt.Errorf("failed to read key file: %w", err)
	}
	if len(master) != KeySize {
		return nil, fmt.Errorf("key file has wrong size: %d bytes", len(master))
	}
	return master, nil
}

// ZeroBytes zeros sensitive byte slices after use.
// SECURITY: Zero key material to limit exposure via crash dumps.
func ZeroBytes(b []byte) {
	for i := range b {
		b[i] = 0
	}
}

// =============================================================================
// AES-256-GCM SEALING
// =============================================================================

// seal encrypts plaintext under a key derived from master with a fresh
// salt and nonce. Output layout: base64(salt || nonce || ciphertext).
func seal(master, plaintext []byte) (string, error) {
	salt := make([]byte, SaltSize)
	if _, err := io.ReadFull(rand.Reader, salt); err != nil {
		return "", err
	}

	key := pbkdf2.Key(master, salt, PBKDF2Iterations, KeySize, sha256.New)
	defer ZeroBytes(key)

	aead, err := newAEAD(key)
	if err != nil {
		return "", err
	}

	nonce := make([]byte, NonceSize)
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", err
	}

	out := make([]byte, 0, SaltSize+NonceSize+len(plaintext)+aead.Overhead())
	out = append(out, salt...)
	out = append(out, nonce...)
	out = aead.Seal(out, nonce, plaintext, nil)
	return base64.StdEncoding.EncodeToString(out), nil
}

// open reverses seal.
func open(master []byte, encoded string) ([]byte, error) {
	raw, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return nil, ErrDecryptFailed
	}
	if len(raw) < SaltSize+NonceSize {
		return nil, ErrDecryptFailed
	}

	salt := raw[:SaltSize]
	nonce := raw[SaltSize : SaltSize+NonceSize]
	ciphertext := raw[SaltSize+NonceSize:]

	key := pbkdf2.Key(master, salt, PBKDF2Iterations, KeySize, sha256.New)
	defer ZeroBytes(key)

	aead, err := newAEAD(key)
	if err != nil {
		return nil, err
	}
	plaintext, err := aead.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return nil, ErrDecryptFailed
	}
	return plaintext, nil
}

func newAEAD(key []byte) (cipher.AEAD, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	return cipher.NewGCM(block)
}
