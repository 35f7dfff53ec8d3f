package store

import (
	"testing"
	"time"

	"choreboard/internal/database"
	"choreboard/internal/model"
)

func setupRefreshTokenTestDB(t *testing.T) (*RefreshTokenStore, *model.User) {
	t.Helper()
	db, err := database.Open(":memory:")
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	user, err := NewUserStore(db).Create("ada@example.com", strPtr("hash"), "Ada")
	if err != nil {
		t.Fatalf("create user: %v", err)
	}
	return NewRefreshTokenStore(db), user
}

func TestRefreshTokenCreateAndGet(t *testing.T) {
	rts, user := setupRefreshTokenTestDB(t)

	raw, token, err := rts.Create(user.ID, time.Hour)
	if err != nil {
		t.Fatalf("create token: %v", err)
	}
	if len(raw) != 40 {
		t.Errorf("raw token length = %d, want 40 hex chars", len(raw))
	}
	if token.TokenHash == raw {
		t.Error("stored hash equals the raw token; it must be hashed")
	}

	got, err := rts.GetByToken(raw)
	if err != nil {
		t.Fatalf("get by token: %v", err)
	}
	if got == nil || got.ID != token.ID || got.UserID != user.ID {
		t.Fatalf("get by token = %+v, want id %d for user %d", got, token.ID, user.ID)
	}

	// An unknown token yields nothing.
	got, err = rts.GetByToken("deadbeefdeadbeefdeadbeefdeadbeefdeadbeef")
	if err != nil {
		t.Fatalf("get unknown token: %v", err)
	}
	if got != nil {
		t.Fatalf("expected nil for unknown token, got %+v", got)
	}
}

func TestRefreshTokenRevoke(t *testing.T) {
	rts, user := setupRefreshTokenTestDB(t)

	raw, token, err := rts.Create(user.ID, time.Hour)
	if err != nil {
		t.Fatalf("create token: %v", err)
	}
	if err := rts.Revoke(token.ID); err != nil {
		t.Fatalf("revoke: %v", err)
	}

	got, err := rts.GetByToken(raw)
	if err != nil {
		t.Fatalf("get revoked token: %v", err)
	}
	if got != nil {
		t.Fatalf("revoked token still resolves: %+v", got)
	}
}

func TestRefreshTokenExpired(t *testing.T) {
	rts, user := setupRefreshTokenTestDB(t)

	raw, _, err := rts.Create(user.ID, -time.Minute)
	if err != nil {
		t.Fatalf("create token: %v", err)
	}
	got, err := rts.GetByToken(raw)
	if err != nil {
		t.Fatalf("get expired token: %v", err)
	}
	if got != nil {
		t.Fatalf("expired token still resolves: %+v", got)
	}
}

func TestRefreshTokenRevokeAllForUser(t *testing.T) {
	rts, user := setupRefreshTokenTestDB(t)

	raw1, _, _ := rts.Create(user.ID, time.Hour)
	raw2, _, _ := rts.Create(user.ID, time.Hour)

	if err := rts.RevokeAllForUser(user.ID); err != nil {
		t.Fatalf("revoke all: %v", err)
	}
	for _, raw := range []string{raw1, raw2} {
		got, err := rts.GetByToken(raw)
		if err != nil {
			t.Fatalf("get token: %v", err)
		}
		if got != nil {
			t.Fatalf("token still resolves after revoke all: %+v", got)
		}
	}
}

func TestRefreshTokenDeleteExpired(t *testing.T) {
	rts, user := setupRefreshTokenTestDB(t)

	rts.Create(user.ID, -time.Minute)
	rts.Create(user.ID, -time.Hour)
	live, _, _ := rts.Create(user.ID, time.Hour)

	n, err := rts.DeleteExpired()
	if err != nil {
		t.Fatalf("delete expired: %v", err)
	}
	if n != 2 {
		t.Errorf("deleted = %d, want 2", n)
	}

	got, err := rts.GetByToken(live)
	if err != nil {
		t.Fatalf("get live token: %v", err)
	}
	if got == nil {
		t.Fatal("live token was deleted")
	}
}
