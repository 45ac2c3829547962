package audit

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"github.com/nebari-dev/accessd/internal/logger"
	"github.com/nebari-dev/accessd/internal/models"
	"github.com/nebari-dev/accessd/internal/store"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

func setupTestStore(t *testing.T) *store.Store {
	t.Helper()

	dbPath := filepath.Join(t.TempDir(), "test.db")
	db, err := gorm.Open(sqlite.Open(dbPath), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	if err := db.AutoMigrate(&models.User{}, &models.Resource{}, &models.AuditLog{}); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return store.New(db)
}

func TestClientIP(t *testing.T) {
	tests := []struct {
		name       string
		xff        string
		remoteAddr string
		want       string // empty means nil
	}{
		{"forwarded leftmost", "203.0.113.7, 10.0.0.1", "10.0.0.2:5000", "203.0.113.7"},
		{"forwarded single with spaces", "  198.51.100.1 ", "10.0.0.2:5000", "198.51.100.1"},
		{"forwarded ipv6", "2001:db8::1", "10.0.0.2:5000", "2001:db8::1"},
		{"remote addr with port", "", "192.0.2.10:41234", "192.0.2.10"},
		{"remote addr ipv6 with port", "", "[2001:db8::2]:8080", "2001:db8::2"},
		{"remote addr without port", "", "192.0.2.11", "192.0.2.11"},
		{"invalid forwarded falls back", "unknown", "192.0.2.10:41234", "192.0.2.10"},
		{"invalid forwarded and remote", "unknown, 203.0.113.7", "pipe", ""},
		{"invalid remote", "", "pipe", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest("GET", "/", nil)
			req.RemoteAddr = tt.remoteAddr
			if tt.xff != "" {
				req.Header.Set("X-Forwarded-For", tt.xff)
			}
			got := ClientIP(req)
			if tt.want == "" {
				if got != nil {
					t.Errorf("ClientIP = %q, want nil", *got)
				}
				return
			}
			if got == nil || *got != tt.want {
				t.Errorf("ClientIP = %v, want %q", got, tt.want)
			}
		})
	}
}

func TestRecordWritesEntry(t *testing.T) {
	st := setupTestStore(t)
	rec := NewRecorder(st, ModeBestEffort, nil)

	req := httptest.NewRequest("POST", "/api/rbac/roles/", nil)
	req.RemoteAddr = "192.0.2.1:1234"
	req.Header.Set("User-Agent", "accessd-test")
	actor := uuid.New()

	err := rec.Record(context.Background(), Entry{
		Actor:    &actor,
		Action:   ActionCreate,
		Resource: ResourceRole,
		Details:  map[string]interface{}{"name": "Manager"},
		Request:  FromRequest(req),
	})
	if err != nil {
		t.Fatalf("record: %v", err)
	}

	var entry models.AuditLog
	if err := st.DB().First(&entry).Error; err != nil {
		t.Fatalf("load entry: %v", err)
	}
	if entry.UserID == nil || *entry.UserID != actor {
		t.Errorf("user = %v, want %s", entry.UserID, actor)
	}
	if entry.Action != ActionCreate || entry.Resource != ResourceRole {
		t.Errorf("entry = %s/%s", entry.Action, entry.Resource)
	}
	if entry.IPAddress == nil || *entry.IPAddress != "192.0.2.1" {
		t.Errorf("ip = %v", entry.IPAddress)
	}
	if entry.UserAgent != "accessd-test" {
		t.Errorf("user agent = %q", entry.UserAgent)
	}
	var details map[string]interface{}
	if err := json.Unmarshal([]byte(entry.DetailsJSON), &details); err != nil || details["name"] != "Manager" {
		t.Errorf("details = %s (%v)", entry.DetailsJSON, err)
	}
}

func TestRecordSystemEntryWithoutDetails(t *testing.T) {
	st := setupTestStore(t)
	rec := NewRecorder(st, "", nil)
	if rec.Mode() != ModeBestEffort {
		t.Errorf("default mode = %q", rec.Mode())
	}
	if err := rec.Record(context.Background(), Entry{Action: ActionDelete, Resource: ResourceAction}); err != nil {
		t.Fatalf("record: %v", err)
	}
	var entry models.AuditLog
	st.DB().First(&entry)
	if entry.UserID != nil {
		t.Errorf("expected system entry, got user %v", entry.UserID)
	}
	if entry.DetailsJSON != "{}" {
		t.Errorf("details = %q, want {}", entry.DetailsJSON)
	}
}

func createResource(name string) func(tx *store.Store) (Entry, error) {
	return func(tx *store.Store) (Entry, error) {
		r := &models.Resource{Name: name, Endpoint: "/api/" + name + "/"}
		if err := tx.CreateResource(context.Background(), r); err != nil {
			return Entry{}, err
		}
		return Entry{Action: ActionCreate, Resource: ResourceResource, Details: r}, nil
	}
}

func TestMutateWritesOneEntryPerMutation(t *testing.T) {
	for _, mode := range []Mode{ModeBestEffort, ModeStrict} {
		t.Run(string(mode), func(t *testing.T) {
			st := setupTestStore(t)
			rec := NewRecorder(st, mode, nil)

			if err := rec.Mutate(context.Background(), createResource("reports")); err != nil {
				t.Fatalf("mutate: %v", err)
			}
			var n int64
			st.DB().Model(&models.AuditLog{}).Count(&n)
			if n != 1 {
				t.Errorf("audit rows = %d, want 1", n)
			}
		})
	}
}

func TestMutateBestEffortIgnoresCancellation(t *testing.T) {
	st := setupTestStore(t)
	rec := NewRecorder(st, ModeBestEffort, nil)

	var cancellable []bool
	err := st.DB().Callback().Create().Before("gorm:create").Register("test:audit_ctx", func(db *gorm.DB) {
		if db.Statement.Table == "audit_logs" {
			cancellable = append(cancellable, db.Statement.Context.Done() != nil)
		}
	})
	if err != nil {
		t.Fatalf("register callback: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := rec.Mutate(ctx, createResource("reports")); err != nil {
		t.Fatalf("mutate: %v", err)
	}
	if len(cancellable) != 1 {
		t.Fatalf("audit writes = %d, want 1", len(cancellable))
	}
	if cancellable[0] {
		t.Error("audit write after commit should not follow the request context")
	}
}

func TestMutateFailureWritesNothing(t *testing.T) {
	st := setupTestStore(t)
	rec := NewRecorder(st, ModeBestEffort, nil)
	boom := errors.New("boom")

	err := rec.Mutate(context.Background(), func(tx *store.Store) (Entry, error) {
		return Entry{}, boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("err = %v, want boom", err)
	}
	var n int64
	st.DB().Model(&models.AuditLog{}).Count(&n)
	if n != 0 {
		t.Errorf("audit rows = %d, want 0", n)
	}
}

func TestMutateAuditFailure(t *testing.T) {
	t.Run("best effort keeps mutation", func(t *testing.T) {
		st := setupTestStore(t)
		var buf bytes.Buffer
		rec := NewRecorder(st, ModeBestEffort, logger.New(&buf, "text", "error"))
		if err := st.DB().Migrator().DropTable(&models.AuditLog{}); err != nil {
			t.Fatalf("drop: %v", err)
		}

		if err := rec.Mutate(context.Background(), createResource("reports")); err != nil {
			t.Fatalf("mutate should succeed, got %v", err)
		}
		var n int64
		st.DB().Model(&models.Resource{}).Count(&n)
		if n != 1 {
			t.Errorf("resources = %d, want 1", n)
		}
		if !strings.Contains(buf.String(), "Failed to record audit log") {
			t.Errorf("expected audit failure to be logged, got %q", buf.String())
		}
	})

	t.Run("strict rolls back", func(t *testing.T) {
		st := setupTestStore(t)
		rec := NewRecorder(st, ModeStrict, nil)
		if err := st.DB().Migrator().DropTable(&models.AuditLog{}); err != nil {
			t.Fatalf("drop: %v", err)
		}

		if err := rec.Mutate(context.Background(), createResource("reports")); err == nil {
			t.Fatal("expected strict mode to surface the audit failure")
		}
		var n int64
		st.DB().Model(&models.Resource{}).Count(&n)
		if n != 0 {
			t.Errorf("resources = %d, want 0 after rollback", n)
		}
	})
}

func TestParseMode(t *testing.T) {
	if m, err := ParseMode(""); err != nil || m != ModeBestEffort {
		t.Errorf("empty = %q, %v", m, err)
	}
	if m, err := ParseMode("strict"); err != nil || m != ModeStrict {
		t.Errorf("strict = %q, %v", m, err)
	}
	if _, err := ParseMode("paranoid"); err == nil {
		t.Error("expected error for unknown mode")
	}
}
