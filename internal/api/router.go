package api

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/nebari-dev/accessd/internal/api/handlers"
	"github.com/nebari-dev/accessd/internal/api/middleware"
	"github.com/nebari-dev/accessd/internal/auth"
	"github.com/nebari-dev/accessd/internal/config"
	"github.com/nebari-dev/accessd/internal/rbac"
	"github.com/nebari-dev/accessd/internal/service"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"gorm.io/gorm"
)

// NewRouter creates and configures the Gin router
func NewRouter(cfg *config.Config, db *gorm.DB, resolver *rbac.Resolver, svc *service.RBACService) *gin.Engine {
	// Set Gin mode
	if cfg.Server.Mode == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()

	// Middleware
	router.Use(gin.Recovery())
	router.Use(loggingMiddleware())
	router.Use(corsMiddleware())

	authenticator := auth.NewBasicAuthenticator(db, cfg.Auth.JWTSecret)
	accounts := handlers.NewAccountHandler(service.NewAccountService(db, resolver))
	rbacHandler := handlers.NewRBACHandler(svc)

	// Public routes
	router.GET("/health", handlers.HealthCheck)
	router.GET("/version", handlers.GetVersion)
	router.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	public := router.Group("/api/auth")
	{
		public.POST("/login", handlers.Login(authenticator))
		public.POST("/register", accounts.Register)
	}

	// Everything else passes the authorization gate
	protected := router.Group("/api")
	protected.Use(authenticator.Middleware())
	protected.Use(middleware.Authorize(resolver, middleware.AuthorizeOptions{
		AllowUnmapped: cfg.RBAC.UnmappedPolicy != "deny",
	}))
	{
		protected.GET("/auth/me", handlers.GetCurrentUser(authenticator))

		users := protected.Group("/users")
		{
			users.GET("/profile/", accounts.GetProfile)
			users.PUT("/profile/", accounts.UpdateProfile)
			users.PATCH("/profile/", accounts.UpdateProfile)
			users.POST("/delete/", accounts.DeleteAccount)
		}

		r := protected.Group("/rbac")
		{
			r.GET("/resources/", rbacHandler.ListResources)
			r.POST("/resources/", rbacHandler.CreateResource)
			r.GET("/resources/:id/", rbacHandler.GetResource)
			r.PUT("/resources/:id/", rbacHandler.ReplaceResource)
			r.PATCH("/resources/:id/", rbacHandler.UpdateResource)
			r.DELETE("/resources/:id/", rbacHandler.DeleteResource)

			r.GET("/actions/", rbacHandler.ListActions)
			r.POST("/actions/", rbacHandler.CreateAction)
			r.GET("/actions/:id/", rbacHandler.GetAction)
			r.PUT("/actions/:id/", rbacHandler.ReplaceAction)
			r.PATCH("/actions/:id/", rbacHandler.UpdateAction)
			r.DELETE("/actions/:id/", rbacHandler.DeleteAction)

			r.GET("/permissions/", rbacHandler.ListPermissions)
			r.POST("/permissions/", rbacHandler.CreatePermission)
			r.GET("/permissions/:id/", rbacHandler.GetPermission)
			r.PUT("/permissions/:id/", rbacHandler.ReplacePermission)
			r.PATCH("/permissions/:id/", rbacHandler.UpdatePermission)
			r.DELETE("/permissions/:id/", rbacHandler.DeletePermission)

			r.GET("/roles/", rbacHandler.ListRoles)
			r.POST("/roles/", rbacHandler.CreateRole)
			r.GET("/roles/:id/", rbacHandler.GetRole)
			r.PUT("/roles/:id/", rbacHandler.ReplaceRole)
			r.PATCH("/roles/:id/", rbacHandler.UpdateRole)
			r.DELETE("/roles/:id/", rbacHandler.DeleteRole)

			r.GET("/user-roles/", rbacHandler.ListUserRoles)
			r.POST("/user-roles/", rbacHandler.CreateUserRole)
			r.GET("/user-roles/:id/", rbacHandler.GetUserRole)
			r.PUT("/user-roles/:id/", rbacHandler.ReplaceUserRole)
			r.PATCH("/user-roles/:id/", rbacHandler.UpdateUserRole)
			r.DELETE("/user-roles/:id/", rbacHandler.DeleteUserRole)

			r.GET("/audit-logs/", rbacHandler.ListAuditLogs)
			r.GET("/audit-logs/:id/", rbacHandler.GetAuditLog)

			r.GET("/check/", handlers.CheckPermission(resolver, cfg.RBAC.UnmappedPolicy != "deny"))
		}
	}

	slog.Info("API router initialized", "mode", cfg.Server.Mode, "unmapped_policy", cfg.RBAC.UnmappedPolicy)
	return router
}

// loggingMiddleware logs HTTP requests
func loggingMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		method := c.Request.Method

		c.Next()

		latency := time.Since(start)
		status := c.Writer.Status()

		attrs := []any{
			"method", method,
			"path", path,
			"status", status,
			"latency", latency.String(),
			"ip", c.ClientIP(),
		}
		if user := auth.UserFromContext(c); user != nil {
			attrs = append(attrs, "user_id", user.ID)
		}
		slog.Info("HTTP request", attrs...)
	}
}

// corsMiddleware adds CORS headers
func corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set("Access-Control-Allow-Credentials", "true")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, PATCH, DELETE, OPTIONS")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}
