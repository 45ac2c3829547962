package auth

import (
	"errors"

	"github.com/gin-gonic/gin"
	"github.com/nebari-dev/accessd/internal/models"
)

var (
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrInactiveAccount    = errors.New("account is deactivated")
	ErrUnauthorized       = errors.New("unauthorized")
)

// LoginRequest represents a login request
type LoginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

// LoginResponse represents a login response
type LoginResponse struct {
	Token string       `json:"token"`
	User  *models.User `json:"user"`
}

// Authenticator is an interface for authentication providers
type Authenticator interface {
	// Login authenticates a user and returns a JWT token
	Login(email, password string) (*LoginResponse, error)

	// Middleware returns a Gin middleware that attaches the caller's identity.
	// Requests without credentials pass through anonymously so the
	// authorization gate can make the decision.
	Middleware() gin.HandlerFunc

	// GetUserFromContext extracts the authenticated user from the Gin context
	GetUserFromContext(c *gin.Context) (*models.User, error)
}

// UserFromContext returns the user attached by an authenticator middleware, or nil.
func UserFromContext(c *gin.Context) *models.User {
	value, exists := c.Get(UserContextKey)
	if !exists {
		return nil
	}
	user, _ := value.(*models.User)
	return user
}
