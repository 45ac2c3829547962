package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/nebari-dev/accessd/internal/auth"
	"github.com/nebari-dev/accessd/internal/models"
	"github.com/nebari-dev/accessd/internal/rbac"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type stubResolver struct {
	result rbac.Result
	err    error
	got    rbac.Request
}

func (s *stubResolver) Resolve(ctx context.Context, req rbac.Request, id *rbac.Identity) (rbac.Result, error) {
	s.got = req
	return s.result, s.err
}

func newGatedRouter(resolver Resolver, opts AuthorizeOptions, user *models.User) *gin.Engine {
	r := gin.New()
	r.Use(func(c *gin.Context) {
		if user != nil {
			c.Set(auth.UserContextKey, user)
		}
		c.Next()
	})
	r.Use(Authorize(resolver, opts))
	r.GET("/api/items/:id/", func(c *gin.Context) {
		c.String(http.StatusOK, "ok")
	})
	return r
}

func TestAuthorize(t *testing.T) {
	member := &models.User{ID: uuid.New(), Email: "m@test.com", IsActive: true}

	tests := []struct {
		name       string
		result     rbac.Result
		err        error
		user       *models.User
		opts       AuthorizeOptions
		wantStatus int
	}{
		{"allow", rbac.Result{Decision: rbac.DecisionAllow}, nil, member, AuthorizeOptions{}, http.StatusOK},
		{"deny anonymous", rbac.Result{Decision: rbac.DecisionDeny}, nil, nil, AuthorizeOptions{}, http.StatusUnauthorized},
		{"deny authenticated", rbac.Result{Decision: rbac.DecisionDeny}, nil, member, AuthorizeOptions{}, http.StatusForbidden},
		{"unmapped allowed", rbac.Result{Decision: rbac.DecisionNotConfigured}, nil, member, AuthorizeOptions{AllowUnmapped: true}, http.StatusOK},
		{"unmapped denied", rbac.Result{Decision: rbac.DecisionNotConfigured}, nil, member, AuthorizeOptions{}, http.StatusForbidden},
		{"resolver error", rbac.Result{}, errors.New("db down"), member, AuthorizeOptions{}, http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			stub := &stubResolver{result: tt.result, err: tt.err}
			r := newGatedRouter(stub, tt.opts, tt.user)

			w := httptest.NewRecorder()
			req := httptest.NewRequest(http.MethodGet, "/api/items/7/", nil)
			r.ServeHTTP(w, req)

			if w.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d (body %s)", w.Code, tt.wantStatus, w.Body.String())
			}
		})
	}
}

func TestAuthorizePassesRouteTemplate(t *testing.T) {
	stub := &stubResolver{result: rbac.Result{Decision: rbac.DecisionAllow}}
	r := newGatedRouter(stub, AuthorizeOptions{}, nil)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/items/42/", nil))

	if stub.got.Path != "/api/items/42/" {
		t.Errorf("Path = %q, want /api/items/42/", stub.got.Path)
	}
	if stub.got.Route != "/api/items/:id/" {
		t.Errorf("Route = %q, want /api/items/:id/", stub.got.Route)
	}
	if stub.got.Method != http.MethodGet {
		t.Errorf("Method = %q, want GET", stub.got.Method)
	}
}

func TestRequireAuth(t *testing.T) {
	r := gin.New()
	r.Use(RequireAuth())
	r.GET("/x", func(c *gin.Context) { c.Status(http.StatusOK) })

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/x", nil))
	if w.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", w.Code)
	}
}
