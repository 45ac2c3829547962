package rbac

import (
	"fmt"
	"sort"
	"time"

	"github.com/casbin/casbin/v2"
	"github.com/google/uuid"
	"github.com/nebari-dev/accessd/internal/store"
)

type permKey struct {
	resourceID uint
	actionID   uint
}

// snapshot is an immutable view of the policy tables. It is replaced as a
// whole on rebuild and never mutated afterwards.
type snapshot struct {
	endpoints   []endpointEntry
	actions     map[string]uint // code -> id
	permissions map[permKey]uint
	enforcer    *casbin.SyncedEnforcer
	builtAt     time.Time
}

func buildSnapshot(data *store.PolicyData, now time.Time) (*snapshot, error) {
	enforcer, err := newEnforcer(data)
	if err != nil {
		return nil, err
	}

	s := &snapshot{
		endpoints:   make([]endpointEntry, 0, len(data.Resources)),
		actions:     make(map[string]uint, len(data.Actions)),
		permissions: make(map[permKey]uint, len(data.Permissions)),
		enforcer:    enforcer,
		builtAt:     now,
	}
	for _, r := range data.Resources {
		s.endpoints = append(s.endpoints, endpointEntry{resource: r, lower: lower(r.Endpoint)})
	}
	sort.Slice(s.endpoints, func(i, j int) bool {
		return s.endpoints[i].resource.ID < s.endpoints[j].resource.ID
	})
	for _, a := range data.Actions {
		s.actions[a.Code] = a.ID
	}
	for _, p := range data.Permissions {
		s.permissions[permKey{p.ResourceID, p.ActionID}] = p.ID
	}
	return s, nil
}

// granted reports whether any role assigned to userID holds permID.
func (s *snapshot) granted(userID uuid.UUID, permID uint) (bool, error) {
	ok, err := s.enforcer.Enforce(userSubject(userID), permObject(permID))
	if err != nil {
		return false, fmt.Errorf("failed to evaluate grants: %w", err)
	}
	return ok, nil
}
