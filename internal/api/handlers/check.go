package handlers

import (
	"context"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/nebari-dev/accessd/internal/auth"
	"github.com/nebari-dev/accessd/internal/rbac"
)

// DecisionResolver explains authorization decisions.
type DecisionResolver interface {
	Resolve(ctx context.Context, req rbac.Request, id *rbac.Identity) (rbac.Result, error)
}

// CheckResponse explains how a request would be authorized.
type CheckResponse struct {
	Path     string `json:"path"`
	Method   string `json:"method"`
	Decision string `json:"decision"`
	Allowed  bool   `json:"allowed"`
	Reason   string `json:"reason"`
	Resource string `json:"resource,omitempty"`
	Action   string `json:"action,omitempty"`
}

// CheckPermission godoc
// @Summary Explain an authorization decision
// @Description Resolves whether the caller may send method to path, without performing the request.
// @Description allowed applies the configured unmapped policy to not_configured decisions.
// @Tags rbac
// @Security BearerAuth
// @Produce json
// @Param path query string true "Request path, e.g. /api/users/profile/"
// @Param method query string false "HTTP method (default GET)"
// @Success 200 {object} CheckResponse
// @Failure 400 {object} ErrorResponse
// @Router /rbac/check/ [get]
func CheckPermission(resolver DecisionResolver, allowUnmapped bool) gin.HandlerFunc {
	return func(c *gin.Context) {
		path := c.Query("path")
		if path == "" {
			c.JSON(http.StatusBadRequest, ErrorResponse{Error: "path is required"})
			return
		}
		method := strings.ToUpper(c.DefaultQuery("method", http.MethodGet))

		id := rbac.IdentityFromUser(auth.UserFromContext(c))
		res, err := resolver.Resolve(c.Request.Context(), rbac.Request{Path: path, Route: path, Method: method}, id)
		if err != nil {
			handleServiceError(c, err)
			return
		}

		c.JSON(http.StatusOK, CheckResponse{
			Path:     path,
			Method:   method,
			Decision: res.Decision.String(),
			Allowed:  res.Permits(allowUnmapped),
			Reason:   res.Reason,
			Resource: res.Resource,
			Action:   res.Action,
		})
	}
}
