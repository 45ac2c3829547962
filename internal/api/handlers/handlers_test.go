package handlers

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strconv"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/glebarez/sqlite"
	"github.com/nebari-dev/accessd/internal/audit"
	"github.com/nebari-dev/accessd/internal/auth"
	"github.com/nebari-dev/accessd/internal/models"
	"github.com/nebari-dev/accessd/internal/rbac"
	"github.com/nebari-dev/accessd/internal/service"
	"github.com/nebari-dev/accessd/internal/store"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type testEnv struct {
	db       *gorm.DB
	store    *store.Store
	resolver *rbac.Resolver
	rbac     *RBACHandler
	accounts *AccountHandler
}

func setupTestEnv(t *testing.T) *testEnv {
	t.Helper()

	dbPath := filepath.Join(t.TempDir(), "test.db")
	db, err := gorm.Open(sqlite.Open(dbPath), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
	})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	if err := db.AutoMigrate(
		&models.User{},
		&models.Resource{},
		&models.Action{},
		&models.Permission{},
		&models.Role{},
		&models.UserRole{},
		&models.AuditLog{},
	); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	st := store.New(db)
	resolver := rbac.NewResolver(st, rbac.Options{CacheTTL: time.Minute})
	svc := service.New(st, audit.NewRecorder(st, audit.ModeBestEffort, nil), resolver)
	return &testEnv{
		db:       db,
		store:    st,
		resolver: resolver,
		rbac:     NewRBACHandler(svc),
		accounts: NewAccountHandler(service.NewAccountService(db, resolver)),
	}
}

func (e *testEnv) createUser(t *testing.T, email string, superuser bool) *models.User {
	t.Helper()
	hash, err := auth.HashPassword("password123")
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	u := &models.User{Email: email, PasswordHash: hash, IsActive: true, IsSuperuser: superuser}
	if err := e.db.Create(u).Error; err != nil {
		t.Fatalf("create user: %v", err)
	}
	return u
}

// router mounts the handlers without the gate, acting as user.
func (e *testEnv) router(user *models.User) *gin.Engine {
	r := gin.New()
	r.Use(func(c *gin.Context) {
		if user != nil {
			c.Set(auth.UserContextKey, user)
		}
		c.Next()
	})
	r.POST("/api/auth/register", e.accounts.Register)
	r.GET("/api/users/profile/", e.accounts.GetProfile)
	r.PATCH("/api/users/profile/", e.accounts.UpdateProfile)
	r.POST("/api/users/delete/", e.accounts.DeleteAccount)
	r.GET("/api/rbac/resources/", e.rbac.ListResources)
	r.POST("/api/rbac/resources/", e.rbac.CreateResource)
	r.GET("/api/rbac/resources/:id/", e.rbac.GetResource)
	r.PUT("/api/rbac/resources/:id/", e.rbac.ReplaceResource)
	r.PATCH("/api/rbac/resources/:id/", e.rbac.UpdateResource)
	r.DELETE("/api/rbac/resources/:id/", e.rbac.DeleteResource)
	r.POST("/api/rbac/actions/", e.rbac.CreateAction)
	r.POST("/api/rbac/permissions/", e.rbac.CreatePermission)
	r.POST("/api/rbac/roles/", e.rbac.CreateRole)
	r.PATCH("/api/rbac/roles/:id/", e.rbac.UpdateRole)
	r.POST("/api/rbac/user-roles/", e.rbac.CreateUserRole)
	r.GET("/api/rbac/user-roles/", e.rbac.ListUserRoles)
	r.GET("/api/rbac/audit-logs/", e.rbac.ListAuditLogs)
	r.GET("/api/rbac/audit-logs/:id/", e.rbac.GetAuditLog)
	r.GET("/api/rbac/check/", CheckPermission(e.resolver, true))
	return r
}

func doJSON(t *testing.T, r http.Handler, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", "handlers-test")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder, v interface{}) {
	t.Helper()
	if err := json.Unmarshal(w.Body.Bytes(), v); err != nil {
		t.Fatalf("decode %s: %v", w.Body.String(), err)
	}
}

func TestResourceCRUD(t *testing.T) {
	env := setupTestEnv(t)
	admin := env.createUser(t, "admin@test.com", true)
	r := env.router(admin)

	w := doJSON(t, r, http.MethodPost, "/api/rbac/resources/", ResourceRequest{Name: "Reports", Endpoint: "/api/reports/"})
	if w.Code != http.StatusCreated {
		t.Fatalf("create status = %d, body %s", w.Code, w.Body.String())
	}
	var created models.Resource
	decode(t, w, &created)
	if created.ID == 0 || created.Endpoint != "/api/reports/" {
		t.Fatalf("created = %+v", created)
	}

	w = doJSON(t, r, http.MethodPost, "/api/rbac/resources/", ResourceRequest{Name: "Reports", Endpoint: "/api/other/"})
	if w.Code != http.StatusBadRequest {
		t.Errorf("duplicate status = %d, want 400", w.Code)
	}

	w = doJSON(t, r, http.MethodPost, "/api/rbac/resources/", map[string]string{"name": "NoEndpoint"})
	if w.Code != http.StatusBadRequest {
		t.Errorf("missing endpoint status = %d, want 400", w.Code)
	}

	path := "/api/rbac/resources/" + itoa(created.ID) + "/"
	w = doJSON(t, r, http.MethodPatch, path, map[string]string{"description": "Monthly reports"})
	if w.Code != http.StatusOK {
		t.Fatalf("patch status = %d, body %s", w.Code, w.Body.String())
	}
	var patched models.Resource
	decode(t, w, &patched)
	if patched.Description != "Monthly reports" || patched.Name != "Reports" {
		t.Errorf("patched = %+v", patched)
	}

	w = doJSON(t, r, http.MethodPut, path, ResourceRequest{Name: "Reports v2", Endpoint: "/api/v2/reports/"})
	if w.Code != http.StatusOK {
		t.Fatalf("put status = %d, body %s", w.Code, w.Body.String())
	}
	var replaced models.Resource
	decode(t, w, &replaced)
	if replaced.Description != "" || replaced.Endpoint != "/api/v2/reports/" {
		t.Errorf("replaced = %+v, want description cleared", replaced)
	}

	if w = doJSON(t, r, http.MethodDelete, path, nil); w.Code != http.StatusNoContent {
		t.Errorf("delete status = %d, want 204", w.Code)
	}
	if w = doJSON(t, r, http.MethodGet, path, nil); w.Code != http.StatusNotFound {
		t.Errorf("get after delete status = %d, want 404", w.Code)
	}
	if w = doJSON(t, r, http.MethodGet, "/api/rbac/resources/abc/", nil); w.Code != http.StatusNotFound {
		t.Errorf("non-numeric id status = %d, want 404", w.Code)
	}
}

func TestRoleWithPermissions(t *testing.T) {
	env := setupTestEnv(t)
	admin := env.createUser(t, "admin@test.com", true)
	r := env.router(admin)

	var res models.Resource
	decode(t, doJSON(t, r, http.MethodPost, "/api/rbac/resources/", ResourceRequest{Name: "Reports", Endpoint: "/api/reports/"}), &res)
	var act models.Action
	decode(t, doJSON(t, r, http.MethodPost, "/api/rbac/actions/", ActionRequest{Name: "View", Code: "view"}), &act)
	w := doJSON(t, r, http.MethodPost, "/api/rbac/permissions/", PermissionRequest{Resource: res.ID, Action: act.ID})
	if w.Code != http.StatusCreated {
		t.Fatalf("create permission status = %d, body %s", w.Code, w.Body.String())
	}
	var perm models.Permission
	decode(t, w, &perm)

	w = doJSON(t, r, http.MethodPost, "/api/rbac/roles/", RoleRequest{Name: "Analyst", Permissions: []uint{perm.ID}})
	if w.Code != http.StatusCreated {
		t.Fatalf("create role status = %d, body %s", w.Code, w.Body.String())
	}
	var role struct {
		ID          uint   `json:"id"`
		Name        string `json:"name"`
		Permissions []uint `json:"permissions"`
	}
	decode(t, w, &role)
	if len(role.Permissions) != 1 || role.Permissions[0] != perm.ID {
		t.Errorf("permissions = %v, want [%d]", role.Permissions, perm.ID)
	}

	w = doJSON(t, r, http.MethodPost, "/api/rbac/roles/", RoleRequest{Name: "Broken", Permissions: []uint{9999}})
	if w.Code != http.StatusBadRequest {
		t.Errorf("unknown permission status = %d, want 400", w.Code)
	}

	// PATCH without permissions keeps the grants
	w = doJSON(t, r, http.MethodPatch, "/api/rbac/roles/"+itoa(role.ID)+"/", map[string]string{"description": "Reads reports"})
	if w.Code != http.StatusOK {
		t.Fatalf("patch role status = %d, body %s", w.Code, w.Body.String())
	}
	decode(t, w, &role)
	if len(role.Permissions) != 1 {
		t.Errorf("permissions after patch = %v, want unchanged", role.Permissions)
	}

	analyst := env.createUser(t, "analyst@test.com", false)
	w = doJSON(t, r, http.MethodPost, "/api/rbac/user-roles/", map[string]interface{}{"user": analyst.ID, "role": role.ID})
	if w.Code != http.StatusCreated {
		t.Fatalf("assign role status = %d, body %s", w.Code, w.Body.String())
	}
	w = doJSON(t, r, http.MethodPost, "/api/rbac/user-roles/", map[string]interface{}{"role": role.ID})
	if w.Code != http.StatusBadRequest {
		t.Errorf("assignment without user status = %d, want 400", w.Code)
	}

	// The analyst now passes the check for the granted endpoint
	w = doJSON(t, env.router(analyst), http.MethodGet, "/api/rbac/check/?path=/api/reports/&method=get", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("check status = %d", w.Code)
	}
	var check CheckResponse
	decode(t, w, &check)
	if !check.Allowed || check.Decision != "allow" || check.Action != "view" {
		t.Errorf("check = %+v, want allow view", check)
	}

	w = doJSON(t, env.router(analyst), http.MethodGet, "/api/rbac/check/?path=/api/reports/&method=DELETE", nil)
	decode(t, w, &check)
	if check.Decision != "not_configured" {
		t.Errorf("DELETE check = %+v, want not_configured", check)
	}
}

func TestCheckAppliesUnmappedPolicy(t *testing.T) {
	env := setupTestEnv(t)
	member := env.createUser(t, "member@test.com", false)

	tests := []struct {
		name          string
		allowUnmapped bool
		wantAllowed   bool
	}{
		{"allow policy", true, true},
		{"deny policy", false, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := gin.New()
			r.Use(func(c *gin.Context) {
				c.Set(auth.UserContextKey, member)
				c.Next()
			})
			r.GET("/api/rbac/check/", CheckPermission(env.resolver, tt.allowUnmapped))

			w := doJSON(t, r, http.MethodGet, "/api/rbac/check/?path=/api/auth/me", nil)
			if w.Code != http.StatusOK {
				t.Fatalf("status = %d, body %s", w.Code, w.Body.String())
			}
			var check CheckResponse
			decode(t, w, &check)
			if check.Decision != "not_configured" {
				t.Errorf("decision = %q, want not_configured", check.Decision)
			}
			if check.Allowed != tt.wantAllowed {
				t.Errorf("allowed = %v, want %v", check.Allowed, tt.wantAllowed)
			}
		})
	}
}

func TestAuditLogListing(t *testing.T) {
	env := setupTestEnv(t)
	admin := env.createUser(t, "admin@test.com", true)
	member := env.createUser(t, "member@test.com", false)
	r := env.router(admin)

	doJSON(t, r, http.MethodPost, "/api/rbac/resources/", ResourceRequest{Name: "Reports", Endpoint: "/api/reports/"})
	doJSON(t, r, http.MethodPost, "/api/rbac/actions/", ActionRequest{Name: "View", Code: "view"})

	w := doJSON(t, r, http.MethodGet, "/api/rbac/audit-logs/?resource=resource", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("list status = %d", w.Code)
	}
	var logs []AuditLogResponse
	decode(t, w, &logs)
	if len(logs) != 1 {
		t.Fatalf("filtered logs = %d, want 1", len(logs))
	}
	entry := logs[0]
	if entry.UserEmail == nil || *entry.UserEmail != "admin@test.com" {
		t.Errorf("user_email = %v, want admin@test.com", entry.UserEmail)
	}
	if entry.Action != audit.ActionCreate || entry.UserAgent != "handlers-test" {
		t.Errorf("entry = %+v", entry)
	}
	var details map[string]interface{}
	if err := json.Unmarshal(entry.Details, &details); err != nil {
		t.Fatalf("details not an object: %s", entry.Details)
	}
	if details["endpoint"] != "/api/reports/" {
		t.Errorf("details = %v", details)
	}

	w = doJSON(t, r, http.MethodGet, "/api/rbac/audit-logs/"+itoa(entry.ID)+"/", nil)
	if w.Code != http.StatusOK {
		t.Errorf("get status = %d", w.Code)
	}

	// Members only see their own entries
	w = doJSON(t, env.router(member), http.MethodGet, "/api/rbac/audit-logs/", nil)
	decode(t, w, &logs)
	if len(logs) != 0 {
		t.Errorf("member sees %d entries, want 0", len(logs))
	}
	if w = doJSON(t, env.router(member), http.MethodGet, "/api/rbac/audit-logs/"+itoa(entry.ID)+"/", nil); w.Code != http.StatusNotFound {
		t.Errorf("member get status = %d, want 404", w.Code)
	}

	for _, q := range []string{"limit=abc", "offset=-1", "user_id=nope"} {
		if w = doJSON(t, r, http.MethodGet, "/api/rbac/audit-logs/?"+q, nil); w.Code != http.StatusBadRequest {
			t.Errorf("%s status = %d, want 400", q, w.Code)
		}
	}
}

func TestAccountEndpoints(t *testing.T) {
	env := setupTestEnv(t)

	w := doJSON(t, env.router(nil), http.MethodPost, "/api/auth/register", RegisterRequest{
		Email: "jane@test.com", Password: "password123", PasswordConfirm: "password123",
		FirstName: "Jane", LastName: "Doe",
	})
	if w.Code != http.StatusCreated {
		t.Fatalf("register status = %d, body %s", w.Code, w.Body.String())
	}
	var user models.User
	decode(t, w, &user)
	if bytes.Contains(w.Body.Bytes(), []byte("password")) {
		t.Error("register response leaks password fields")
	}

	w = doJSON(t, env.router(nil), http.MethodPost, "/api/auth/register", RegisterRequest{
		Email: "joe@test.com", Password: "password123", PasswordConfirm: "different1",
		FirstName: "Joe", LastName: "Doe",
	})
	if w.Code != http.StatusBadRequest {
		t.Errorf("mismatched passwords status = %d, want 400", w.Code)
	}

	if w = doJSON(t, env.router(nil), http.MethodGet, "/api/users/profile/", nil); w.Code != http.StatusUnauthorized {
		t.Errorf("anonymous profile status = %d, want 401", w.Code)
	}

	var stored models.User
	if err := env.db.First(&stored, "id = ?", user.ID).Error; err != nil {
		t.Fatalf("load user: %v", err)
	}
	r := env.router(&stored)
	w = doJSON(t, r, http.MethodPatch, "/api/users/profile/", map[string]string{"middle_name": "Q"})
	if w.Code != http.StatusOK {
		t.Fatalf("patch profile status = %d, body %s", w.Code, w.Body.String())
	}
	decode(t, w, &user)
	if user.MiddleName != "Q" || user.FirstName != "Jane" {
		t.Errorf("profile = %+v", user)
	}

	if w = doJSON(t, r, http.MethodPost, "/api/users/delete/", nil); w.Code != http.StatusOK {
		t.Errorf("delete status = %d", w.Code)
	}
	var count int64
	env.db.Model(&models.User{}).Where("id = ?", user.ID).Count(&count)
	if count != 0 {
		t.Error("deleted account still visible")
	}
}

func TestVersionAndHealth(t *testing.T) {
	r := gin.New()
	r.GET("/health", HealthCheck)
	r.GET("/version", GetVersion)

	w := doJSON(t, r, http.MethodGet, "/health", nil)
	if w.Code != http.StatusOK {
		t.Errorf("health status = %d", w.Code)
	}
	w = doJSON(t, r, http.MethodGet, "/version", nil)
	var body map[string]string
	decode(t, w, &body)
	if body["version"] != Version || body["go_version"] == "" {
		t.Errorf("version body = %v", body)
	}
}

func itoa(id uint) string {
	return strconv.FormatUint(uint64(id), 10)
}
