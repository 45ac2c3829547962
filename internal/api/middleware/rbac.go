package middleware

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/nebari-dev/accessd/internal/auth"
	"github.com/nebari-dev/accessd/internal/rbac"
)

// DecisionContextKey holds the rbac.Result of the current request.
const DecisionContextKey = "rbac_result"

// Resolver is the permission check the gate delegates to.
type Resolver interface {
	Resolve(ctx context.Context, req rbac.Request, id *rbac.Identity) (rbac.Result, error)
}

// AuthorizeOptions configures Authorize.
type AuthorizeOptions struct {
	// AllowUnmapped lets requests through when no policy is configured
	// for the endpoint.
	AllowUnmapped bool
}

// Authorize gates every request on the resolver's decision. It must run
// after the authentication middleware so the caller's identity is set.
func Authorize(resolver Resolver, opts AuthorizeOptions) gin.HandlerFunc {
	return func(c *gin.Context) {
		user := auth.UserFromContext(c)
		id := rbac.IdentityFromUser(user)
		req := rbac.Request{
			Path:   c.Request.URL.Path,
			Route:  c.FullPath(),
			Method: c.Request.Method,
		}

		res, err := resolver.Resolve(c.Request.Context(), req, id)
		if err != nil {
			slog.Error("Authorization check failed", "path", req.Path, "method", req.Method, "error", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Authorization check failed"})
			c.Abort()
			return
		}
		c.Set(DecisionContextKey, res)

		attrs := []any{
			"decision", res.Decision.String(),
			"reason", res.Reason,
			"method", req.Method,
			"path", req.Path,
			"resource", res.Resource,
			"action", res.Action,
		}
		if user != nil {
			attrs = append(attrs, "user_id", user.ID)
		}

		switch res.Decision {
		case rbac.DecisionAllow:
			slog.Debug("Request authorized", attrs...)
			c.Next()
		case rbac.DecisionNotConfigured:
			if opts.AllowUnmapped {
				slog.Debug("No policy configured, allowing", attrs...)
				c.Next()
				return
			}
			slog.Info("No policy configured, denying", attrs...)
			deny(c, id)
		default:
			slog.Info("Request denied", attrs...)
			deny(c, id)
		}
	}
}

func deny(c *gin.Context, id *rbac.Identity) {
	if id == nil || !id.Authenticated {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Authentication required"})
	} else {
		c.JSON(http.StatusForbidden, gin.H{"error": "Access denied"})
	}
	c.Abort()
}

// RequireAuth rejects anonymous callers with 401.
func RequireAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		if auth.UserFromContext(c) == nil {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
			c.Abort()
			return
		}
		c.Next()
	}
}
