package app

import (
	"errors"
	"testing"

	"edustore/pkg/domain"
)

func TestSignUpFirstUserBecomesAdmin(t *testing.T) {
	env := newTestEnv(t)

	first, access, refresh, err := env.app.SignUp("Admin", "admin@example.com", "secret1")
	if err != nil {
		t.Fatalf("first signup: %v", err)
	}
	if first.Role != domain.RoleAdmin {
		t.Fatalf("expected first user to be admin, got %q", first.Role)
	}
	if access == "" || refresh == "" {
		t.Fatal("expected token pair on signup")
	}

	second, _, _, err := env.app.SignUp("Student", "student@example.com", "secret1")
	if err != nil {
		t.Fatalf("second signup: %v", err)
	}
	if second.Role != domain.RoleStudent {
		t.Fatalf("expected second user to be student, got %q", second.Role)
	}
}

func TestSignUpDuplicateEmail(t *testing.T) {
	env := newTestEnv(t)
	env.seedUser(t, "dup@example.com")

	if _, _, _, err := env.app.SignUp("Again", "dup@example.com", "secret1"); !errors.Is(err, ErrEmailAlreadyExists) {
		t.Fatalf("expected duplicate email error, got %v", err)
	}
	// Email comparison is case-insensitive.
	if _, _, _, err := env.app.SignUp("Again", "DUP@example.com", "secret1"); !errors.Is(err, ErrEmailAlreadyExists) {
		t.Fatalf("expected duplicate email error for upper-cased email, got %v", err)
	}
}

func TestLoginWrongPassword(t *testing.T) {
	env := newTestEnv(t)
	env.seedUser(t, "user@example.com")

	if _, _, _, err := env.app.Login("user@example.com", "wrong-password"); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("expected invalid credentials, got %v", err)
	}
	if _, _, _, err := env.app.Login("nobody@example.com", "secret1"); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("expected invalid credentials for unknown user, got %v", err)
	}
}

func TestUserFromToken(t *testing.T) {
	env := newTestEnv(t)
	user, access, _, err := env.app.SignUp("User", "user@example.com", "secret1")
	if err != nil {
		t.Fatalf("signup: %v", err)
	}

	got, ok := env.app.UserFromToken(access)
	if !ok || got.ID != user.ID {
		t.Fatalf("expected user from token, got ok=%v id=%q", ok, got.ID)
	}
	if _, ok := env.app.UserFromToken("garbage"); ok {
		t.Fatal("garbage token should not resolve")
	}
}

func TestLogoutInvalidatesAccessToken(t *testing.T) {
	env := newTestEnv(t)
	_, access, refresh, err := env.app.SignUp("User", "user@example.com", "secret1")
	if err != nil {
		t.Fatalf("signup: %v", err)
	}
	if err := env.app.Logout(access, refresh); err != nil {
		t.Fatalf("logout: %v", err)
	}
	if _, ok := env.app.UserFromToken(access); ok {
		t.Fatal("access token should be revoked after logout")
	}
	if _, _, _, err := env.app.Refresh(refresh); !errors.Is(err, ErrInvalidRefreshToken) {
		t.Fatalf("refresh token should be gone after logout, got %v", err)
	}
}

func TestRefreshRotatesAndDetectsReplay(t *testing.T) {
	env := newTestEnv(t)
	user, _, refresh, err := env.app.SignUp("User", "user@example.com", "secret1")
	if err != nil {
		t.Fatalf("signup: %v", err)
	}

	got, access, next, err := env.app.Refresh(refresh)
	if err != nil {
		t.Fatalf("refresh: %v", err)
	}
	if got.ID != user.ID || access == "" || next == "" || next == refresh {
		t.Fatalf("unexpected refresh outcome: id=%q next=%q", got.ID, next)
	}

	// Replaying the consumed token burns the family.
	if _, _, _, err := env.app.Refresh(refresh); !errors.Is(err, ErrInvalidRefreshToken) {
		t.Fatalf("expected replay to fail, got %v", err)
	}
	if _, _, _, err := env.app.Refresh(next); !errors.Is(err, ErrInvalidRefreshToken) {
		t.Fatalf("expected family burned after replay, got %v", err)
	}
}

func TestChangePasswordRevokesOutstandingTokens(t *testing.T) {
	env := newTestEnv(t)
	user, access, refresh, err := env.app.SignUp("User", "user@example.com", "secret1")
	if err != nil {
		t.Fatalf("signup: %v", err)
	}

	if err := env.app.ChangePassword(user.ID, "secret1", "secret2"); err != nil {
		t.Fatalf("change password: %v", err)
	}
	if _, ok := env.app.UserFromToken(access); ok {
		t.Fatal("old access token should be revoked after password change")
	}
	if _, _, _, err := env.app.Refresh(refresh); !errors.Is(err, ErrInvalidRefreshToken) {
		t.Fatalf("old refresh token should be revoked, got %v", err)
	}
	if _, _, _, err := env.app.Login("user@example.com", "secret2"); err != nil {
		t.Fatalf("login with new password: %v", err)
	}
	if _, _, _, err := env.app.Login("user@example.com", "secret1"); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("old password should be rejected, got %v", err)
	}
}

func TestChangePasswordRequiresCurrent(t *testing.T) {
	env := newTestEnv(t)
	user := env.seedUser(t, "user@example.com")

	if err := env.app.ChangePassword(user.ID, "wrong", "secret2"); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("expected invalid credentials, got %v", err)
	}
	if err := env.app.ChangePassword(user.ID, "", "secret2"); !errors.Is(err, ErrCurrentPasswordRequired) {
		t.Fatalf("expected current password required, got %v", err)
	}
}

func TestAdminCannotDisableSelf(t *testing.T) {
	env := newTestEnv(t)
	admin := env.seedUser(t, "admin@example.com")
	student := env.seedUser(t, "student@example.com")

	disabled := domain.StatusDisabled
	if _, err := env.app.AdminUpdateUser(admin, admin.ID, nil, &disabled); !errors.Is(err, ErrValidation) {
		t.Fatalf("expected self-disable rejection, got %v", err)
	}
	if err := env.app.AdminDeleteUser(admin, admin.ID); !errors.Is(err, ErrValidation) {
		t.Fatalf("expected self-delete rejection, got %v", err)
	}

	updated, err := env.app.AdminUpdateUser(admin, student.ID, nil, &disabled)
	if err != nil {
		t.Fatalf("disable student: %v", err)
	}
	if updated.Status != domain.StatusDisabled {
		t.Fatalf("expected disabled status, got %q", updated.Status)
	}
	if _, _, _, err := env.app.Login("student@example.com", "secret1"); !errors.Is(err, ErrUserDisabled) {
		t.Fatalf("expected disabled login rejection, got %v", err)
	}
}
