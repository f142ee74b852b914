package app

import (
	"fmt"
	"time"

	"edustore/pkg/domain"
)

// ListUsers returns all users (admin use only).
func (a *App) ListUsers() ([]domain.User, error) {
	return a.store.ListUsers()
}

// AdminUpdateUser changes a user's role and/or status. Admins cannot demote
// or disable themselves.
func (a *App) AdminUpdateUser(admin domain.User, userID string, role *domain.UserRole, status *domain.UserStatus) (domain.User, error) {
	target, ok, err := a.store.GetUserByID(userID)
	if err != nil {
		return domain.User{}, fmt.Errorf("fetch user: %w", err)
	}
	if !ok {
		return domain.User{}, ErrUserNotFound
	}
	if target.ID == admin.ID {
		if role != nil && *role != admin.Role {
			return domain.User{}, validationErr("cannot change own role")
		}
		if status != nil && *status == domain.StatusDisabled {
			return domain.User{}, validationErr("cannot disable self")
		}
	}
	if role != nil {
		if *role != domain.RoleStudent && *role != domain.RoleAdmin {
			return domain.User{}, validationErr("invalid role")
		}
		target.Role = *role
	}
	if status != nil {
		if *status != domain.StatusActive && *status != domain.StatusDisabled {
			return domain.User{}, validationErr("invalid status")
		}
		target.Status = *status
	}
	target.UpdatedAt = time.Now().UTC()
	if err := a.store.SaveUser(target); err != nil {
		return domain.User{}, fmt.Errorf("update user: %w", err)
	}
	if status != nil && *status == domain.StatusDisabled {
		if err := a.revokeAllUserTokens(target.ID, target.UpdatedAt); err != nil {
			return domain.User{}, fmt.Errorf("revoke disabled user tokens: %w", err)
		}
	}
	return target, nil
}

// AdminDeleteUser removes a user account. Admins cannot delete themselves.
func (a *App) AdminDeleteUser(admin domain.User, userID string) error {
	if userID == admin.ID {
		return validationErr("cannot delete self")
	}
	target, ok, err := a.store.GetUserByID(userID)
	if err != nil {
		return fmt.Errorf("fetch user: %w", err)
	}
	if !ok {
		return ErrUserNotFound
	}
	if err := a.revokeAllUserTokens(target.ID, time.Now().UTC()); err != nil {
		return fmt.Errorf("revoke user tokens: %w", err)
	}
	if err := a.store.DeleteUser(userID); err != nil {
		return fmt.Errorf("delete user: %w", err)
	}
	return nil
}
