package store

import (
	"crypto/rand"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"fmt"
	"time"

	"choreboard/internal/model"
)

// RefreshTokenStore tracks issued refresh tokens server-side so they can be
// rotated and revoked. The raw token never touches the database; lookups go
// through its SHA-256 hash.
type RefreshTokenStore struct {
	db *sql.DB
}

func NewRefreshTokenStore(db *sql.DB) *RefreshTokenStore {
	return &RefreshTokenStore{db: db}
}

func scanRefreshToken(scanner interface{ Scan(...any) error }) (*model.RefreshToken, error) {
	var t model.RefreshToken
	var revokedAt sql.NullTime

	err := scanner.Scan(&t.ID, &t.TokenHash, &t.UserID, &t.ExpiresAt, &revokedAt, &t.CreatedAt)
	if err != nil {
		return nil, err
	}

	if revokedAt.Valid {
		t.RevokedAt = &revokedAt.Time
	}
	return &t, nil
}

const refreshTokenCols = `id, token_hash, user_id, expires_at, revoked_at, created_at`

func hashToken(raw string) string {
	sum := sha256.Sum256([]byte(raw))
	return hex.EncodeToString(sum[:])
}

// Create issues a new refresh token for the user: 20 crypto-random bytes,
// hex-encoded. The raw value is returned exactly once; only its hash persists.
func (s *RefreshTokenStore) Create(userID int64, ttl time.Duration) (string, *model.RefreshToken, error) {
	raw := make([]byte, 20)
	if _, err := rand.Read(raw); err != nil {
		return "", nil, fmt.Errorf("generate token: %w", err)
	}
	token := hex.EncodeToString(raw)
	expiresAt := time.Now().UTC().Add(ttl)

	result, err := s.db.Exec(
		`INSERT INTO refresh_tokens (token_hash, user_id, expires_at) VALUES (?, ?, ?)`,
		hashToken(token), userID, expiresAt,
	)
	if err != nil {
		return "", nil, fmt.Errorf("insert refresh token: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return "", nil, fmt.Errorf("last insert id: %w", err)
	}

	row := s.db.QueryRow(`SELECT `+refreshTokenCols+` FROM refresh_tokens WHERE id = ?`, id)
	rt, err := scanRefreshToken(row)
	if err != nil {
		return "", nil, fmt.Errorf("get refresh token: %w", err)
	}
	return token, rt, nil
}

// GetByToken returns the live record for a raw token, or nil if the token is
// unknown, expired, or already revoked.
func (s *RefreshTokenStore) GetByToken(raw string) (*model.RefreshToken, error) {
	row := s.db.QueryRow(
		`SELECT `+refreshTokenCols+` FROM refresh_tokens
		 WHERE token_hash = ? AND expires_at > datetime('now') AND revoked_at IS NULL`,
		hashToken(raw),
	)
	rt, err := scanRefreshToken(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get refresh token: %w", err)
	}
	return rt, nil
}

// Revoke marks a token unusable. Rotation revokes the presented token before
// issuing its replacement, so a replayed token always misses GetByToken.
func (s *RefreshTokenStore) Revoke(id int64) error {
	_, err := s.db.Exec(
		`UPDATE refresh_tokens SET revoked_at = datetime('now') WHERE id = ? AND revoked_at IS NULL`,
		id,
	)
	if err != nil {
		return fmt.Errorf("revoke refresh token: %w", err)
	}
	return nil
}

// RevokeAllForUser invalidates every live token for a user (compromise
// response, password change).
func (s *RefreshTokenStore) RevokeAllForUser(userID int64) error {
	_, err := s.db.Exec(
		`UPDATE refresh_tokens SET revoked_at = datetime('now') WHERE user_id = ? AND revoked_at IS NULL`,
		userID,
	)
	if err != nil {
		return fmt.Errorf("revoke refresh tokens for user: %w", err)
	}
	return nil
}

// DeleteExpired removes tokens past expiry, returning how many were swept.
func (s *RefreshTokenStore) DeleteExpired() (int64, error) {
	result, err := s.db.Exec(`DELETE FROM refresh_tokens WHERE expires_at <= datetime('now')`)
	if err != nil {
		return 0, fmt.Errorf("delete expired refresh tokens: %w", err)
	}
	count, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("rows affected: %w", err)
	}
	return count, nil
}
