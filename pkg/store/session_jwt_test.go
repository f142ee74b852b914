package store

import (
	"strings"
	"testing"
	"time"
)

const testSecret = "0123456789abcdef0123456789abcdef"

func newTestSessionStore(t *testing.T, revoker TokenRevoker) *JWTSessionStore {
	t.Helper()
	s, err := NewJWTSessionStore(testSecret, time.Minute, revoker, JWTOptions{})
	if err != nil {
		t.Fatalf("new session store: %v", err)
	}
	return s
}

func TestJWTSessionRoundTrip(t *testing.T) {
	s := newTestSessionStore(t, NewMemoryTokenRevoker())

	token, err := s.NewSession("user-1")
	if err != nil {
		t.Fatalf("new session: %v", err)
	}
	userID, ok, err := s.GetUserIDByToken(token)
	if err != nil || !ok {
		t.Fatalf("get user id: ok=%v err=%v", ok, err)
	}
	if userID != "user-1" {
		t.Fatalf("unexpected user id: %q", userID)
	}
}

func TestJWTSessionRejectsTamperedToken(t *testing.T) {
	s := newTestSessionStore(t, NewMemoryTokenRevoker())

	token, err := s.NewSession("user-1")
	if err != nil {
		t.Fatalf("new session: %v", err)
	}
	parts := strings.Split(token, ".")
	if len(parts) != 3 {
		t.Fatalf("unexpected token shape: %q", token)
	}
	tampered := parts[0] + "." + parts[1] + "." + strings.Repeat("A", len(parts[2]))
	if _, ok, _ := s.GetUserIDByToken(tampered); ok {
		t.Fatal("tampered token should not verify")
	}
	if _, ok, _ := s.GetUserIDByToken(""); ok {
		t.Fatal("empty token should not verify")
	}
}

func TestJWTSessionDeleteRevokesJTI(t *testing.T) {
	s := newTestSessionStore(t, NewMemoryTokenRevoker())

	token, err := s.NewSession("user-1")
	if err != nil {
		t.Fatalf("new session: %v", err)
	}
	other, err := s.NewSession("user-1")
	if err != nil {
		t.Fatalf("second session: %v", err)
	}
	if err := s.DeleteSession(token); err != nil {
		t.Fatalf("delete session: %v", err)
	}
	if _, ok, _ := s.GetUserIDByToken(token); ok {
		t.Fatal("deleted session should not verify")
	}
	// Revocation is per token, not per user.
	if _, ok, _ := s.GetUserIDByToken(other); !ok {
		t.Fatal("sibling session should still verify")
	}
}

func TestJWTSessionUserCutoffRevokesOldTokens(t *testing.T) {
	s := newTestSessionStore(t, NewMemoryTokenRevoker())

	old, err := s.NewSession("user-1")
	if err != nil {
		t.Fatalf("new session: %v", err)
	}
	if err := s.RevokeUserSessions("user-1", time.Now().UTC()); err != nil {
		t.Fatalf("revoke user sessions: %v", err)
	}
	if _, ok, _ := s.GetUserIDByToken(old); ok {
		t.Fatal("pre-cutoff token should be rejected")
	}

	// A token issued after the cutoff verifies again. JWT issued-at has
	// second precision, so step past the cutoff second.
	time.Sleep(1100 * time.Millisecond)
	fresh, err := s.NewSession("user-1")
	if err != nil {
		t.Fatalf("fresh session: %v", err)
	}
	if _, ok, _ := s.GetUserIDByToken(fresh); !ok {
		t.Fatal("post-cutoff token should verify")
	}
}

func TestNewJWTSessionStoreValidation(t *testing.T) {
	if _, err := NewJWTSessionStore("", time.Minute, nil, JWTOptions{}); err == nil {
		t.Fatal("expected error for empty secret")
	}
	if _, err := NewJWTSessionStore("too-short", time.Minute, nil, JWTOptions{}); err == nil {
		t.Fatal("expected error for short secret")
	}
	if _, err := NewJWTSessionStore(testSecret, 0, nil, JWTOptions{}); err == nil {
		t.Fatal("expected error for zero ttl")
	}
}
