package rbac

import (
	"context"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/nebari-dev/accessd/internal/models"
	"github.com/nebari-dev/accessd/internal/store"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func setupTestStore(t *testing.T) *store.Store {
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
	return store.New(db)
}

func seededStore(t *testing.T) *store.Store {
	t.Helper()
	st := setupTestStore(t)
	if err := NewSeeder(st, nil).InitializeBaseline(context.Background()); err != nil {
		t.Fatalf("seed: %v", err)
	}
	return st
}

func createUser(t *testing.T, st *store.Store, email string, roles ...string) *models.User {
	t.Helper()
	ctx := context.Background()
	u := &models.User{Email: email, PasswordHash: "x", IsActive: true}
	if err := st.DB().Create(u).Error; err != nil {
		t.Fatalf("create user: %v", err)
	}
	for _, name := range roles {
		role, err := st.FindRoleByName(ctx, name)
		if err != nil {
			t.Fatalf("find role %s: %v", name, err)
		}
		if err := st.CreateUserRole(ctx, &models.UserRole{UserID: u.ID, RoleID: role.ID}); err != nil {
			t.Fatalf("assign role: %v", err)
		}
	}
	return u
}

// grant gives the named role the permission for endpoint and action code.
func grant(t *testing.T, st *store.Store, roleName, endpoint, code string) {
	t.Helper()
	ctx := context.Background()
	var perm models.Permission
	err := st.DB().
		Joins("JOIN resources ON resources.id = permissions.resource_id").
		Joins("JOIN actions ON actions.id = permissions.action_id").
		Where("resources.endpoint = ? AND actions.code = ?", endpoint, code).
		First(&perm).Error
	if err != nil {
		t.Fatalf("find permission %s %s: %v", endpoint, code, err)
	}
	role, err := st.FindRoleByName(ctx, roleName)
	if err != nil {
		t.Fatalf("find role: %v", err)
	}
	if err := st.GrantPermissions(ctx, role, []*models.Permission{&perm}); err != nil {
		t.Fatalf("grant: %v", err)
	}
}

func newTestResolver(st *store.Store, ttl time.Duration) *Resolver {
	return NewResolver(st, Options{
		MatchMode:   MatchContains,
		CacheTTL:    ttl,
		PublicPaths: []string{"/swagger/", "/redoc/"},
	})
}

func TestManagerProfileScenario(t *testing.T) {
	st := seededStore(t)
	grant(t, st, "Manager", "/api/users/profile/", models.ActionEdit)
	m := createUser(t, st, "manager@test.com", "Manager")
	r := newTestResolver(st, time.Minute)
	id := IdentityFromUser(m)
	ctx := context.Background()

	res, err := r.Resolve(ctx, Request{Path: "/api/users/profile/", Method: "PUT"}, id)
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if res.Decision != DecisionAllow {
		t.Errorf("PUT profile = %v (%s), want allow", res.Decision, res.Reason)
	}
	if res.Resource != "/api/users/profile/" || res.Action != models.ActionEdit {
		t.Errorf("result = %+v, want profile/edit", res)
	}

	res, err = r.Resolve(ctx, Request{Path: "/api/users/profile/", Method: "DELETE"}, id)
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if res.Decision != DecisionDeny {
		t.Errorf("DELETE profile = %v, want deny", res.Decision)
	}

	res, _ = r.Resolve(ctx, Request{Path: "/api/users/profile/", Method: "PATCH"}, id)
	if res.Decision != DecisionAllow {
		t.Errorf("PATCH profile = %v, want allow", res.Decision)
	}
}

func TestResolveIdentityRules(t *testing.T) {
	st := seededStore(t)
	r := newTestResolver(st, time.Minute)
	ctx := context.Background()

	plain := createUser(t, st, "plain@test.com", "User")
	inactive := createUser(t, st, "gone@test.com", "Administrator")
	inactive.IsActive = false
	super := createUser(t, st, "root@test.com")
	super.IsSuperuser = true

	tests := []struct {
		name string
		req  Request
		id   *Identity
		want Decision
	}{
		{"anonymous swagger", Request{Path: "/swagger/index.html", Method: "GET"}, nil, DecisionAllow},
		{"anonymous redoc", Request{Path: "/redoc/", Method: "GET"}, nil, DecisionAllow},
		{"anonymous api", Request{Path: "/api/users/", Method: "GET"}, nil, DecisionDeny},
		{"unauthenticated identity", Request{Path: "/api/users/", Method: "GET"}, &Identity{Active: true}, DecisionDeny},
		{"inactive admin", Request{Path: "/api/users/", Method: "GET"}, IdentityFromUser(inactive), DecisionDeny},
		{"superuser unmapped", Request{Path: "/api/anything/", Method: "DELETE"}, IdentityFromUser(super), DecisionAllow},
		{"superuser mapped", Request{Path: "/api/users/", Method: "POST"}, IdentityFromUser(super), DecisionAllow},
		{"no grant", Request{Path: "/api/users/", Method: "GET"}, IdentityFromUser(plain), DecisionDeny},
		{"unmapped endpoint", Request{Path: "/api/billing/", Method: "GET"}, IdentityFromUser(plain), DecisionNotConfigured},
		{"route preferred over path", Request{Path: "/api/other/", Route: "/api/auth/", Method: "GET"}, IdentityFromUser(plain), DecisionDeny},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := r.Resolve(ctx, tt.req, tt.id)
			if err != nil {
				t.Fatalf("resolve: %v", err)
			}
			if res.Decision != tt.want {
				t.Errorf("decision = %v (%s), want %v", res.Decision, res.Reason, tt.want)
			}
		})
	}
}

func TestResolveAdministratorGrants(t *testing.T) {
	st := seededStore(t)
	r := newTestResolver(st, time.Minute)
	admin := IdentityFromUser(createUser(t, st, "admin@test.com", "Administrator"))

	for _, endpoint := range []string{"/api/users/", "/api/users/profile/", "/api/auth/"} {
		for _, method := range []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"} {
			res, err := r.Resolve(context.Background(), Request{Path: endpoint, Method: method}, admin)
			if err != nil {
				t.Fatalf("resolve: %v", err)
			}
			if !res.Allowed() {
				t.Errorf("%s %s = %v, want allow", method, endpoint, res.Decision)
			}
		}
	}
}

func TestResolveMissingPermissionIsNotConfigured(t *testing.T) {
	st := setupTestStore(t)
	ctx := context.Background()

	st.CreateResource(ctx, &models.Resource{Name: "Reports", Endpoint: "/api/reports/"})
	st.CreateAction(ctx, &models.Action{Name: "View", Code: models.ActionView})
	u := createUser(t, st, "u@test.com")
	r := newTestResolver(st, 0)

	res, err := r.Resolve(ctx, Request{Path: "/api/reports/", Method: "GET"}, IdentityFromUser(u))
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if res.Decision != DecisionNotConfigured {
		t.Errorf("missing permission = %v, want not_configured", res.Decision)
	}

	res, _ = r.Resolve(ctx, Request{Path: "/api/reports/", Method: "POST"}, IdentityFromUser(u))
	if res.Decision != DecisionNotConfigured || res.Reason != "no action for method" {
		t.Errorf("missing action = %+v, want not_configured", res)
	}
}

func TestSnapshotCaching(t *testing.T) {
	st := seededStore(t)
	m := IdentityFromUser(createUser(t, st, "m@test.com", "Manager"))
	req := Request{Path: "/api/users/", Method: "GET"}
	ctx := context.Background()

	cached := newTestResolver(st, time.Hour)
	uncached := newTestResolver(st, 0)
	for _, r := range []*Resolver{cached, uncached} {
		if res, _ := r.Resolve(ctx, req, m); res.Decision != DecisionDeny {
			t.Fatalf("before grant = %v, want deny", res.Decision)
		}
	}

	grant(t, st, "Manager", "/api/users/", models.ActionView)

	if res, _ := uncached.Resolve(ctx, req, m); res.Decision != DecisionAllow {
		t.Errorf("ttl=0 should see new grant, got %v", res.Decision)
	}
	if res, _ := cached.Resolve(ctx, req, m); res.Decision != DecisionDeny {
		t.Errorf("cached snapshot should still deny, got %v", res.Decision)
	}

	cached.Invalidate()
	if res, _ := cached.Resolve(ctx, req, m); res.Decision != DecisionAllow {
		t.Errorf("after invalidate = %v, want allow", res.Decision)
	}
}

func TestSnapshotExpiresAfterTTL(t *testing.T) {
	st := seededStore(t)
	m := IdentityFromUser(createUser(t, st, "m@test.com", "Manager"))
	req := Request{Path: "/api/auth/", Method: "GET"}
	ctx := context.Background()

	now := time.Now()
	r := newTestResolver(st, time.Minute)
	r.now = func() time.Time { return now }

	r.Resolve(ctx, req, m)
	grant(t, st, "Manager", "/api/auth/", models.ActionView)

	now = now.Add(30 * time.Second)
	if res, _ := r.Resolve(ctx, req, m); res.Decision != DecisionDeny {
		t.Errorf("within ttl = %v, want deny", res.Decision)
	}
	now = now.Add(time.Minute)
	if res, _ := r.Resolve(ctx, req, m); res.Decision != DecisionAllow {
		t.Errorf("after ttl = %v, want allow", res.Decision)
	}
}

func TestDecisionString(t *testing.T) {
	for d, want := range map[Decision]string{
		DecisionAllow:         "allow",
		DecisionDeny:          "deny",
		DecisionNotConfigured: "not_configured",
		Decision(42):          "unknown",
	} {
		if got := d.String(); got != want {
			t.Errorf("Decision(%d).String() = %q, want %q", d, got, want)
		}
	}
}

func TestResultPermits(t *testing.T) {
	tests := []struct {
		decision      Decision
		allowUnmapped bool
		want          bool
	}{
		{DecisionAllow, false, true},
		{DecisionDeny, true, false},
		{DecisionNotConfigured, true, true},
		{DecisionNotConfigured, false, false},
	}
	for _, tt := range tests {
		if got := (Result{Decision: tt.decision}).Permits(tt.allowUnmapped); got != tt.want {
			t.Errorf("Permits(%v) with %v = %v, want %v", tt.allowUnmapped, tt.decision, got, tt.want)
		}
	}
}

type countingBus struct {
	published atomic.Int32
}

func (b *countingBus) Publish(ctx context.Context) error {
	b.published.Add(1)
	return nil
}

func (b *countingBus) Subscribe(ctx context.Context, handler func()) error {
	<-ctx.Done()
	return nil
}

func (b *countingBus) Close() error { return nil }

func TestInvalidatePolicyPublishesOnceBusIsSet(t *testing.T) {
	r := newTestResolver(seededStore(t), time.Minute)
	bus := &countingBus{}
	ctx := context.Background()

	r.InvalidatePolicy(ctx)
	if got := bus.published.Load(); got != 0 {
		t.Fatalf("published = %d before SetBus, want 0", got)
	}

	r.SetBus(bus)
	r.InvalidatePolicy(ctx)
	if got := bus.published.Load(); got != 1 {
		t.Errorf("published = %d, want 1", got)
	}
}
