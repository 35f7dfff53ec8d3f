package model

import "time"

// RefreshToken is the server-side record of an issued refresh token. Only a
// SHA-256 hash of the token is stored; the raw value exists solely in the
// client's cookie. Tokens are single-use: a successful refresh revokes the
// presented token and issues a new one.
type RefreshToken struct {
	ID        int64      `json:"id"`
	TokenHash string     `json:"-"`
	UserID    int64      `json:"user_id"`
	ExpiresAt time.Time  `json:"expires_at"`
	RevokedAt *time.Time `json:"revoked_at,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
}
