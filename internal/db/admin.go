package db

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/nebari-dev/accessd/internal/auth"
	"github.com/nebari-dev/accessd/internal/models"
	"gorm.io/gorm"
)

// CreateDefaultAdmin creates a superuser if ADMIN_EMAIL and ADMIN_PASSWORD are set
// and no superuser exists in the database
func CreateDefaultAdmin(db *gorm.DB) error {
	email := os.Getenv("ADMIN_EMAIL")
	password := os.Getenv("ADMIN_PASSWORD")

	// If no admin credentials provided, skip
	if email == "" || password == "" {
		slog.Info("No ADMIN_EMAIL or ADMIN_PASSWORD set, skipping default admin creation")
		return nil
	}

	// If a superuser already exists, skip
	var count int64
	if err := db.Model(&models.User{}).Where("is_superuser = ?", true).Count(&count).Error; err != nil {
		return fmt.Errorf("failed to count superusers: %w", err)
	}
	if count > 0 {
		slog.Info("Superuser already exists, skipping default admin creation")
		return nil
	}

	user, err := CreateUser(db, NewUser{Email: email, Password: password, Superuser: true})
	if err != nil {
		return fmt.Errorf("failed to create admin user: %w", err)
	}

	slog.Info("Default admin user created", "user_id", user.ID, "email", user.Email)
	return nil
}

// NewUser carries the fields needed to provision an account from the CLI
// or the bootstrap path.
type NewUser struct {
	Email      string
	Password   string
	FirstName  string
	LastName   string
	MiddleName string
	Superuser  bool
}

// ErrUserExists is returned when the email is already registered.
var ErrUserExists = errors.New("user with this email already exists")

// CreateUser hashes the password, inserts the user and assigns every role
// marked as default.
func CreateUser(db *gorm.DB, req NewUser) (*models.User, error) {
	req.Email = strings.ToLower(strings.TrimSpace(req.Email))
	if req.Email == "" {
		return nil, errors.New("email is required")
	}

	hash, err := auth.HashPassword(req.Password)
	if err != nil {
		return nil, err
	}

	user := models.User{
		Email:        req.Email,
		PasswordHash: hash,
		FirstName:    req.FirstName,
		LastName:     req.LastName,
		MiddleName:   req.MiddleName,
		IsActive:     true,
		IsSuperuser:  req.Superuser,
	}

	err = db.Transaction(func(tx *gorm.DB) error {
		var existing int64
		// Soft-deleted accounts keep their email reserved.
		if err := tx.Unscoped().Model(&models.User{}).Where("email = ?", req.Email).Count(&existing).Error; err != nil {
			return err
		}
		if existing > 0 {
			return ErrUserExists
		}
		if err := tx.Create(&user).Error; err != nil {
			if errors.Is(err, gorm.ErrDuplicatedKey) {
				return ErrUserExists
			}
			return err
		}

		var defaults []models.Role
		if err := tx.Where("is_default = ?", true).Find(&defaults).Error; err != nil {
			return err
		}
		for _, role := range defaults {
			if err := tx.Create(&models.UserRole{UserID: user.ID, RoleID: role.ID}).Error; err != nil {
				return fmt.Errorf("assign default role %q: %w", role.Name, err)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return &user, nil
}
