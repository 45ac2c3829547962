package store

import (
	"context"

	"github.com/google/uuid"
	"github.com/nebari-dev/accessd/internal/models"
)

// GetUser fetches a live (not soft-deleted) user.
func (s *Store) GetUser(ctx context.Context, id uuid.UUID) (*models.User, error) {
	var u models.User
	if err := s.conn(ctx).First(&u, "id = ?", id).Error; err != nil {
		return nil, notFound(err)
	}
	return &u, nil
}
