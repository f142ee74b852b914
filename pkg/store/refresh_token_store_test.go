package store

import (
	"errors"
	"testing"
	"time"
)

func TestMemoryRefreshTokenStoreRotate(t *testing.T) {
	s := NewMemoryRefreshTokenStore()

	token, err := s.NewToken("user-1", time.Minute)
	if err != nil {
		t.Fatalf("new token: %v", err)
	}
	userID, next, err := s.RotateToken(token, time.Minute)
	if err != nil {
		t.Fatalf("rotate: %v", err)
	}
	if userID != "user-1" || next == "" || next == token {
		t.Fatalf("unexpected rotation outcome: user=%q next=%q", userID, next)
	}
}

func TestMemoryRefreshTokenStoreReplayBurnsFamily(t *testing.T) {
	s := NewMemoryRefreshTokenStore()

	token, err := s.NewToken("user-1", time.Minute)
	if err != nil {
		t.Fatalf("new token: %v", err)
	}
	_, next, err := s.RotateToken(token, time.Minute)
	if err != nil {
		t.Fatalf("first rotate: %v", err)
	}
	if _, _, err := s.RotateToken(token, time.Minute); !errors.Is(err, ErrRefreshTokenReplay) {
		t.Fatalf("expected replay detection, got %v", err)
	}
	if _, _, err := s.RotateToken(next, time.Minute); !errors.Is(err, ErrInvalidRefreshToken) {
		t.Fatalf("expected family burned after replay, got %v", err)
	}
}

func TestMemoryRefreshTokenStoreDelete(t *testing.T) {
	s := NewMemoryRefreshTokenStore()

	token, err := s.NewToken("user-1", time.Minute)
	if err != nil {
		t.Fatalf("new token: %v", err)
	}
	if err := s.DeleteToken(token); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, _, err := s.RotateToken(token, time.Minute); !errors.Is(err, ErrInvalidRefreshToken) {
		t.Fatalf("expected invalid after delete, got %v", err)
	}
	// Deleting an unknown token is a no-op.
	if err := s.DeleteToken("unknown"); err != nil {
		t.Fatalf("delete unknown: %v", err)
	}
}

func TestMemoryRefreshTokenStoreRevokeUser(t *testing.T) {
	s := NewMemoryRefreshTokenStore()

	t1, err := s.NewToken("user-1", time.Minute)
	if err != nil {
		t.Fatalf("new token 1: %v", err)
	}
	t2, err := s.NewToken("user-1", time.Minute)
	if err != nil {
		t.Fatalf("new token 2: %v", err)
	}
	other, err := s.NewToken("user-2", time.Minute)
	if err != nil {
		t.Fatalf("new token other: %v", err)
	}

	if err := s.RevokeUserRefreshTokens("user-1"); err != nil {
		t.Fatalf("revoke user: %v", err)
	}
	for _, token := range []string{t1, t2} {
		if _, _, err := s.RotateToken(token, time.Minute); !errors.Is(err, ErrInvalidRefreshToken) {
			t.Fatalf("expected revoked token, got %v", err)
		}
	}
	if _, _, err := s.RotateToken(other, time.Minute); err != nil {
		t.Fatalf("other user's token should survive: %v", err)
	}
}

func TestMemoryRefreshTokenStoreExpiry(t *testing.T) {
	s := NewMemoryRefreshTokenStore()

	token, err := s.NewToken("user-1", 10*time.Millisecond)
	if err != nil {
		t.Fatalf("new token: %v", err)
	}
	time.Sleep(30 * time.Millisecond)
	if _, _, err := s.RotateToken(token, time.Minute); !errors.Is(err, ErrInvalidRefreshToken) {
		t.Fatalf("expected expired token rejection, got %v", err)
	}
}
