package store

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/archlens/archlens/internal/apperr"
)

// apiKeyPrefix marks plaintext keys so they are recognizable in client
// configs without revealing anything about the hash.
const apiKeyPrefix = "alk_"

// APIKey is a stored credential. Only the SHA-256 of the plaintext is
// kept; the plaintext is shown once at creation.
type APIKey struct {
	ID         string     `json:"id"`
	Name       string     `json:"name"`
	Disabled   bool       `json:"disabled"`
	CreatedAt  time.Time  `json:"created_at"`
	LastUsedAt *time.Time `json:"last_used_at,omitempty"`
}

// CreateAPIKey mints a new key and returns its id and the plaintext.
// The plaintext cannot be recovered later.
func (s *Store) CreateAPIKey(ctx context.Context, name string) (string, string, error) {
	raw := make([]byte, 24)
	if _, err := rand.Read(raw); err != nil {
		return "", "", fmt.Errorf("failed to generate key material; %w", err)
	}
	plaintext := apiKeyPrefix + hex.EncodeToString(raw)
	id := uuid.NewString()

	_, err := s.db.ExecContext(ctx,
		"INSERT INTO api_keys (id, name, key_hash) VALUES (?, ?, ?)",
		id, name, hashAPIKey(plaintext))
	if err != nil {
		return "", "", fmt.Errorf("failed to store api key; %w", err)
	}
	return id, plaintext, nil
}

// ValidateAPIKey resolves a plaintext key to its id, rejecting unknown
// and disabled keys. A successful lookup stamps last_used_at.
func (s *Store) ValidateAPIKey(ctx context.Context, plaintext string) (string, error) {
	var id string
	var disabled int
	err := s.db.QueryRowContext(ctx,
		"SELECT id, disabled FROM api_keys WHERE key_hash = ?",
		hashAPIKey(plaintext)).Scan(&id, &disabled)
	if errors.Is(err, sql.ErrNoRows) {
		return "", apperr.New(apperr.CodeAuthInvalidKey, "unknown api key")
	}
	if err != nil {
		return "", fmt.Errorf("failed to look up api key; %w", err)
	}
	if disabled != 0 {
		return "", apperr.New(apperr.CodeAuthInvalidKey, "api key is disabled")
	}

	_, err = s.db.ExecContext(ctx,
		"UPDATE api_keys SET last_used_at = CURRENT_TIMESTAMP WHERE id = ?", id)
	if err != nil {
		return "", fmt.Errorf("failed to stamp api key use; %w", err)
	}
	return id, nil
}

// DisableAPIKey revokes a key without deleting its audit trail.
func (s *Store) DisableAPIKey(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, "UPDATE api_keys SET disabled = 1 WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("failed to disable api key; %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return apperr.Newf(apperr.CodeAuthInvalidKey, "api key %s not found", id)
	}
	return nil
}

// ListAPIKeys returns all keys, newest first, without hashes.
func (s *Store) ListAPIKeys(ctx context.Context) ([]APIKey, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, name, disabled, created_at, last_used_at
		 FROM api_keys ORDER BY created_at DESC, id DESC`)
	if err != nil {
		return nil, fmt.Errorf("failed to list api keys; %w", err)
	}
	defer rows.Close()

	var keys []APIKey
	for rows.Next() {
		var k APIKey
		var disabled int
		var lastUsed sql.NullTime
		if err := rows.Scan(&k.ID, &k.Name, &disabled, &k.CreatedAt, &lastUsed); err != nil {
			return nil, fmt.Errorf("failed to scan api key; %w", err)
		}
		k.Disabled = disabled != 0
		if lastUsed.Valid {
			t := lastUsed.Time
			k.LastUsedAt = &t
		}
		keys = append(keys, k)
	}
	return keys, rows.Err()
}

func hashAPIKey(plaintext string) string {
	sum := sha256.Sum256([]byte(plaintext))
	return hex.EncodeToString(sum[:])
}
