// Copyright 2025 Slidesmith
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package credential stores provider API keys encrypted at rest.
// Secrets are sealed with AES-256-GCM; the key is derived from a
// process-wide passphrase and never stored alongside the data.
// Plaintext exists only in memory for the duration of a provider call.
package credential

import (
	"context"
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"time"

	"golang.org/x/crypto/pbkdf2"
)

const (
	// keySize is the AES-256 key length.
	keySize = 32

	// nonceSize is the AES-GCM nonce length.
	nonceSize = 12

	// saltSize is the key-derivation salt length.
	saltSize = 32

	// pbkdf2Iterations follows the OWASP recommendation for PBKDF2-SHA-256.
	pbkdf2Iterations = 600_000

	saltMetaKey = "credential_kdf_salt"
)

var (
	// ErrNotFound indicates no credential exists for the provider.
	ErrNotFound = errors.New("credential not found")

	// ErrDecryption indicates the stored ciphertext could not be opened,
	// usually a wrong passphrase or tampered data.
	ErrDecryption = errors.New("credential decryption failed")
)

// Info describes a stored credential without exposing the secret.
type Info struct {
	Provider  string    `json:"provider"`
	CreatedAt time.Time `json:"created_at"`
	RotatedAt time.Time `json:"rotated_at"`
}

// Store persists encrypted provider credentials in the credentials table.
type Store struct {
	db   *sql.DB
	aead cipher.AEAD
}

// NewStore derives the encryption key from the passphrase and prepares
// the store. The KDF salt is created on first use and kept in the meta
// table; the passphrase itself is never persisted.
func NewStore(db *sql.DB, passphrase string) (*Store, error) {
	if passphrase == "" {
		return nil, errors.New("credential passphrase is required")
	}

	salt, err := loadOrCreateSalt(db)
	if err != nil {
		return nil, err
	}

	key := pbkdf2.Key([]byte(passphrase), salt, pbkdf2Iterations, keySize, sha256.New)
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("failed to init cipher: %w", err)
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("failed to init GCM: %w", err)
	}

	return &Store{db: db, aead: aead}, nil
}

func loadOrCreateSalt(db *sql.DB) ([]byte, error) {
	var salt []byte
	err := db.QueryRow(`SELECT value FROM meta WHERE key = ?`, saltMetaKey).Scan(&salt)
	if err == nil {
		if len(salt) != saltSize {
			return nil, errors.New("stored KDF salt has unexpected size")
		}
		return salt, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("failed to load KDF salt: %w", err)
	}

	salt = make([]byte, saltSize)
	if _, err := io.ReadFull(rand.Reader, salt); err != nil {
		return nil, fmt.Errorf("failed to generate KDF salt: %w", err)
	}
	// INSERT OR IGNORE + reread guards against a concurrent first writer.
	if _, err := db.Exec(`INSERT OR IGNORE INTO meta (key, value) VALUES (?, ?)`, saltMetaKey, salt); err != nil {
		return nil, fmt.Errorf("failed to persist KDF salt: %w", err)
	}
	if err := db.QueryRow(`SELECT value FROM meta WHERE key = ?`, saltMetaKey).Scan(&salt); err != nil {
		return nil, fmt.Errorf("failed to reread KDF salt: %w", err)
	}
	return salt, nil
}

// seal encrypts a secret into nonce|ciphertext|tag.
func (s *Store) seal(secret string) ([]byte, error) {
	nonce := make([]byte, nonceSize)
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, fmt.Errorf("failed to generate nonce: %w", err)
	}
	return s.aead.Seal(nonce, nonce, []byte(secret), nil), nil
}

// open decrypts a nonce|ciphertext|tag blob.
func (s *Store) open(blob []byte) (string, error) {
	if len(blob) < nonceSize {
		return "", ErrDecryption
	}
	plaintext, err := s.aead.Open(nil, blob[:nonceSize], blob[nonceSize:], nil)
	if err != nil {
		return "", ErrDecryption
	}
	return string(plaintext), nil
}

// Get returns the decrypted secret for a provider.
func (s *Store) Get(ctx context.Context, provider string) (string, error) {
	var blob []byte
	err := s.db.QueryRowContext(ctx,
		`SELECT secret_enc FROM credentials WHERE provider = ?`, provider,
	).Scan(&blob)
	if errors.Is(err, sql.ErrNoRows) {
		return "", ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("failed to read credential: %w", err)
	}
	return s.open(blob)
}

// Set stores a secret for a provider. It is an idempotent upsert keyed
// by provider identifier, executed as a single transaction.
func (s *Store) Set(ctx context.Context, provider, secret string) error {
	if provider == "" {
		return errors.New("provider is required")
	}
	if secret == "" {
		return errors.New("secret is required")
	}

	blob, err := s.seal(secret)
	if err != nil {
		return err
	}

	now := time.Now().UTC()
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO credentials (provider, secret_enc, created_at, rotated_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT (provider) DO UPDATE SET
			secret_enc = excluded.secret_enc,
			rotated_at = excluded.rotated_at
	`, provider, blob, now, now)
	if err != nil {
		return fmt.Errorf("failed to save credential: %w", err)
	}
	return nil
}

// Rotate replaces an existing secret. Unlike Set it fails with
// ErrNotFound when the provider was never credentialed.
func (s *Store) Rotate(ctx context.Context, provider, newSecret string) error {
	if newSecret == "" {
		return errors.New("secret is required")
	}

	blob, err := s.seal(newSecret)
	if err != nil {
		return err
	}

	result, err := s.db.ExecContext(ctx, `
		UPDATE credentials SET secret_enc = ?, rotated_at = ? WHERE provider = ?
	`, blob, time.Now().UTC(), provider)
	if err != nil {
		return fmt.Errorf("failed to rotate credential: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check affected rows: %w", err)
	}
	if rows == 0 {
		return ErrNotFound
	}
	return nil
}

// Has reports whether a provider is credentialed without decrypting.
func (s *Store) Has(ctx context.Context, provider string) (bool, error) {
	var one int
	err := s.db.QueryRowContext(ctx,
		`SELECT 1 FROM credentials WHERE provider = ?`, provider,
	).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to check credential: %w", err)
	}
	return true, nil
}

// List returns metadata for all stored credentials, never secrets.
func (s *Store) List(ctx context.Context) ([]Info, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT provider, created_at, rotated_at FROM credentials ORDER BY provider`)
	if err != nil {
		return nil, fmt.Errorf("failed to list credentials: %w", err)
	}
	defer rows.Close()

	var infos []Info
	for rows.Next() {
		var info Info
		if err := rows.Scan(&info.Provider, &info.CreatedAt, &info.RotatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan credential row: %w", err)
		}
		infos = append(infos, info)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating credentials: %w", err)
	}
	return infos, nil
}
