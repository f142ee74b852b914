package app

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"edustore/internal/util"
	"edustore/pkg/domain"
	"edustore/pkg/store"
)

// ListSubjects returns all subjects, optionally filtered by class, ordered by
// class then name, each with its book count.
func (a *App) ListSubjects(class int) ([]domain.Subject, error) {
	return a.store.ListSubjects(class)
}

// GetSubject returns a subject with its books, newest first.
func (a *App) GetSubject(id string) (domain.Subject, error) {
	subject, ok, err := a.store.GetSubject(id)
	if err != nil {
		return domain.Subject{}, fmt.Errorf("fetch subject: %w", err)
	}
	if !ok {
		return domain.Subject{}, ErrSubjectNotFound
	}
	return subject, nil
}

// CreateSubject adds a subject. Name and a class in 1-12 are required; one
// subject per (name, class).
func (a *App) CreateSubject(name string, class int) (domain.Subject, error) {
	name = strings.TrimSpace(name)
	if name == "" || class == 0 {
		return domain.Subject{}, validationErr("Name and class are required")
	}
	if class < domain.MinClass || class > domain.MaxClass {
		return domain.Subject{}, validationErr("Class must be between 1 and 12")
	}
	now := time.Now().UTC()
	subject := domain.Subject{
		ID:        util.NewID(),
		Name:      name,
		Class:     class,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := a.store.CreateSubject(subject); err != nil {
		if errors.Is(err, store.ErrDuplicate) {
			return domain.Subject{}, ErrSubjectExists
		}
		return domain.Subject{}, fmt.Errorf("create subject: %w", err)
	}
	return subject, nil
}

// UpdateSubject applies a partial update.
func (a *App) UpdateSubject(id string, name *string, class *int) (domain.Subject, error) {
	subject, ok, err := a.store.GetSubject(id)
	if err != nil {
		return domain.Subject{}, fmt.Errorf("fetch subject: %w", err)
	}
	if !ok {
		return domain.Subject{}, ErrSubjectNotFound
	}
	if name != nil && strings.TrimSpace(*name) != "" {
		subject.Name = strings.TrimSpace(*name)
	}
	if class != nil && *class != 0 {
		if *class < domain.MinClass || *class > domain.MaxClass {
			return domain.Subject{}, validationErr("Class must be between 1 and 12")
		}
		subject.Class = *class
	}
	subject.UpdatedAt = time.Now().UTC()
	if err := a.store.UpdateSubject(subject); err != nil {
		if errors.Is(err, store.ErrDuplicate) {
			return domain.Subject{}, ErrSubjectExists
		}
		return domain.Subject{}, fmt.Errorf("update subject: %w", err)
	}
	return subject, nil
}

// DeleteSubject removes a subject.
func (a *App) DeleteSubject(id string) error {
	_, ok, err := a.store.GetSubject(id)
	if err != nil {
		return fmt.Errorf("fetch subject: %w", err)
	}
	if !ok {
		return ErrSubjectNotFound
	}
	return a.store.DeleteSubject(id)
}
