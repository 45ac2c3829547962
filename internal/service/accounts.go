package service

import (
	"context"
	"errors"
	"strings"

	"github.com/nebari-dev/accessd/internal/auth"
	"github.com/nebari-dev/accessd/internal/db"
	"github.com/nebari-dev/accessd/internal/models"
	"gorm.io/gorm"
)

// MinPasswordLength is enforced on registration and password changes.
const MinPasswordLength = 8

// AccountService manages the caller's own account: registration, profile
// edits and self-deletion.
type AccountService struct {
	db     *gorm.DB
	policy PolicyInvalidator
}

// NewAccountService creates a new AccountService. policy is told when a
// registration adds default role assignments; it may be nil.
func NewAccountService(db *gorm.DB, policy PolicyInvalidator) *AccountService {
	return &AccountService{db: db, policy: policy}
}

// Registration holds the fields of a self-service sign-up.
type Registration struct {
	Email           string
	Password        string
	PasswordConfirm string
	FirstName       string
	LastName        string
	MiddleName      string
}

// ProfilePatch is a partial profile update. Changing the password requires
// the current one.
type ProfilePatch struct {
	FirstName       *string
	LastName        *string
	MiddleName      *string
	CurrentPassword *string
	NewPassword     *string
}

// Apply merges the name fields into u.
func (p ProfilePatch) Apply(u *models.User) {
	if p.FirstName != nil {
		u.FirstName = *p.FirstName
	}
	if p.LastName != nil {
		u.LastName = *p.LastName
	}
	if p.MiddleName != nil {
		u.MiddleName = *p.MiddleName
	}
}

// Register creates an active, non-superuser account holding the default
// roles.
func (s *AccountService) Register(ctx context.Context, r Registration) (*models.User, error) {
	switch {
	case strings.TrimSpace(r.FirstName) == "" || strings.TrimSpace(r.LastName) == "":
		return nil, invalid("first_name and last_name are required")
	case len(r.Password) < MinPasswordLength:
		return nil, invalid("password must be at least 8 characters")
	case r.Password != r.PasswordConfirm:
		return nil, invalid("passwords do not match")
	}

	user, err := db.CreateUser(s.db.WithContext(ctx), db.NewUser{
		Email:      r.Email,
		Password:   r.Password,
		FirstName:  strings.TrimSpace(r.FirstName),
		LastName:   strings.TrimSpace(r.LastName),
		MiddleName: strings.TrimSpace(r.MiddleName),
	})
	if errors.Is(err, db.ErrUserExists) {
		return nil, invalid(err.Error())
	}
	if err != nil {
		return nil, err
	}
	if s.policy != nil {
		s.policy.InvalidatePolicy(ctx)
	}
	return user, nil
}

// UpdateProfile applies patch to u and persists it.
func (s *AccountService) UpdateProfile(ctx context.Context, u *models.User, patch ProfilePatch) (*models.User, error) {
	if patch.NewPassword != nil {
		if patch.CurrentPassword == nil {
			return nil, invalid("current_password is required to change the password")
		}
		if !auth.VerifyPassword(u.PasswordHash, *patch.CurrentPassword) {
			return nil, invalid("current password is incorrect")
		}
		if len(*patch.NewPassword) < MinPasswordLength {
			return nil, invalid("new_password must be at least 8 characters")
		}
		hash, err := auth.HashPassword(*patch.NewPassword)
		if err != nil {
			return nil, err
		}
		u.PasswordHash = hash
	}

	patch.Apply(u)
	for _, name := range []string{u.FirstName, u.LastName, u.MiddleName} {
		if len(name) > 50 {
			return nil, invalid("names must be at most 50 characters")
		}
	}

	if err := s.db.WithContext(ctx).Model(u).Select("first_name", "last_name", "middle_name", "password_hash").Updates(u).Error; err != nil {
		return nil, err
	}
	return u, nil
}

// DeleteAccount soft-deletes u. The row stays so audit history keeps its
// author.
func (s *AccountService) DeleteAccount(ctx context.Context, u *models.User) error {
	return u.SoftDelete(s.db.WithContext(ctx))
}
