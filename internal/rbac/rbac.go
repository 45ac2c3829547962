// Package rbac decides whether a caller may perform an action on an API
// endpoint, based on the roles and permissions held in the entity store.
package rbac

import (
	_ "embed"
	"fmt"
	"strconv"

	"github.com/casbin/casbin/v2"
	"github.com/casbin/casbin/v2/model"
	"github.com/google/uuid"
	"github.com/nebari-dev/accessd/internal/models"
	"github.com/nebari-dev/accessd/internal/store"
)

//go:embed model.conf
var modelConf string

// Decision is the outcome of a permission check.
type Decision int

const (
	// DecisionDeny rejects the request
	DecisionDeny Decision = iota
	// DecisionAllow lets the request through
	DecisionAllow
	// DecisionNotConfigured means no resource, action or permission exists
	// for the request; the caller applies its unmapped policy.
	DecisionNotConfigured
)

func (d Decision) String() string {
	switch d {
	case DecisionAllow:
		return "allow"
	case DecisionDeny:
		return "deny"
	case DecisionNotConfigured:
		return "not_configured"
	default:
		return "unknown"
	}
}

// Result explains a decision.
type Result struct {
	Decision Decision `json:"-"`
	Reason   string   `json:"reason"`
	Resource string   `json:"resource,omitempty"` // matched resource endpoint
	Action   string   `json:"action,omitempty"`   // action code derived from the method
}

// Allowed reports whether the decision is DecisionAllow.
func (r Result) Allowed() bool {
	return r.Decision == DecisionAllow
}

// Permits reports whether the request goes through once the unmapped policy
// is applied to DecisionNotConfigured.
func (r Result) Permits(allowUnmapped bool) bool {
	return r.Decision == DecisionAllow || (r.Decision == DecisionNotConfigured && allowUnmapped)
}

// Identity is the caller as seen by the resolver.
type Identity struct {
	UserID        uuid.UUID
	Authenticated bool
	Active        bool
	Superuser     bool
}

// IdentityFromUser builds an authenticated identity from a loaded user.
// A nil user yields nil (anonymous).
func IdentityFromUser(u *models.User) *Identity {
	if u == nil {
		return nil
	}
	return &Identity{
		UserID:        u.ID,
		Authenticated: true,
		Active:        u.IsActive && !u.DeletedAt.Valid,
		Superuser:     u.IsSuperuser,
	}
}

// Request is the part of an HTTP request the resolver looks at.
type Request struct {
	Path   string // raw URL path
	Route  string // matched route template, may be empty
	Method string
}

func userSubject(id uuid.UUID) string { return "user:" + id.String() }
func roleSubject(id uint) string      { return "role:" + strconv.FormatUint(uint64(id), 10) }
func permObject(id uint) string       { return "perm:" + strconv.FormatUint(uint64(id), 10) }

// newEnforcer loads the grant graph into an adapter-less casbin enforcer:
// g(user, role) for assignments and p(role, permission) for grants.
func newEnforcer(data *store.PolicyData) (*casbin.SyncedEnforcer, error) {
	m, err := model.NewModelFromString(modelConf)
	if err != nil {
		return nil, fmt.Errorf("failed to parse casbin model: %w", err)
	}

	e, err := casbin.NewSyncedEnforcer(m)
	if err != nil {
		return nil, fmt.Errorf("failed to create casbin enforcer: %w", err)
	}

	if len(data.RolePermissions) > 0 {
		rules := make([][]string, 0, len(data.RolePermissions))
		for _, rp := range data.RolePermissions {
			rules = append(rules, []string{roleSubject(rp.RoleID), permObject(rp.PermissionID)})
		}
		if _, err := e.AddPolicies(rules); err != nil {
			return nil, fmt.Errorf("failed to load role grants: %w", err)
		}
	}

	if len(data.UserRoles) > 0 {
		rules := make([][]string, 0, len(data.UserRoles))
		for _, ur := range data.UserRoles {
			rules = append(rules, []string{userSubject(ur.UserID), roleSubject(ur.RoleID)})
		}
		if _, err := e.AddGroupingPolicies(rules); err != nil {
			return nil, fmt.Errorf("failed to load role assignments: %w", err)
		}
	}

	return e, nil
}
