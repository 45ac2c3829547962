package rbac

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/nebari-dev/accessd/internal/models"
	"github.com/nebari-dev/accessd/internal/store"
)

// AdministratorRole is granted every permission by the seeder.
const AdministratorRole = "Administrator"

var baselineActions = []models.Action{
	{Name: "View", Code: models.ActionView, Description: "Read access"},
	{Name: "Create", Code: models.ActionCreate, Description: "Create new records"},
	{Name: "Edit", Code: models.ActionEdit, Description: "Modify existing records"},
	{Name: "Delete", Code: models.ActionDelete, Description: "Remove records"},
}

var baselineResources = []models.Resource{
	{Name: "Users", Endpoint: "/api/users/", Description: "User accounts"},
	{Name: "Profile", Endpoint: "/api/users/profile/", Description: "The caller's own profile"},
	{Name: "Authentication", Endpoint: "/api/auth/", Description: "Login and token endpoints"},
}

var baselineRoles = []models.Role{
	{Name: AdministratorRole, Description: "Full access to every resource"},
	{Name: "User", Description: "Default role for new accounts", IsDefault: true},
	{Name: "Manager", Description: "Elevated access granted by administrators"},
}

// Seeder installs the baseline catalogue.
type Seeder struct {
	store  *store.Store
	logger *slog.Logger
}

// NewSeeder creates a seeder writing to st.
func NewSeeder(st *store.Store, logger *slog.Logger) *Seeder {
	if logger == nil {
		logger = slog.Default()
	}
	return &Seeder{store: st, logger: logger}
}

// InitializeBaseline creates the baseline actions, resources and roles if
// they are missing, ensures a permission exists for every resource and
// action pair, and grants all of them to the Administrator role. Existing
// rows are left as they are, so running it repeatedly changes nothing. A
// baseline row whose name was taken by a renamed record is skipped.
func (s *Seeder) InitializeBaseline(ctx context.Context) error {
	var granted int
	err := s.store.Transaction(ctx, func(tx *store.Store) error {
		for _, a := range baselineActions {
			if err := tx.EnsureAction(ctx, &a); err != nil {
				if errors.Is(err, store.ErrNameTaken) {
					s.logger.Warn("Skipping baseline action", "code", a.Code, "error", err)
					continue
				}
				return fmt.Errorf("failed to seed action %q: %w", a.Code, err)
			}
		}
		for _, r := range baselineResources {
			if err := tx.EnsureResource(ctx, &r); err != nil {
				if errors.Is(err, store.ErrNameTaken) {
					s.logger.Warn("Skipping baseline resource", "endpoint", r.Endpoint, "error", err)
					continue
				}
				return fmt.Errorf("failed to seed resource %q: %w", r.Endpoint, err)
			}
		}

		var admin *models.Role
		for _, r := range baselineRoles {
			if err := tx.EnsureRole(ctx, &r); err != nil {
				return fmt.Errorf("failed to seed role %q: %w", r.Name, err)
			}
			if r.Name == AdministratorRole {
				admin = &r
			}
		}

		resources, err := tx.ListResources(ctx)
		if err != nil {
			return err
		}
		actions, err := tx.ListActions(ctx)
		if err != nil {
			return err
		}

		perms := make([]*models.Permission, 0, len(resources)*len(actions))
		for _, res := range resources {
			for _, act := range actions {
				p, err := tx.EnsurePermission(ctx, res.ID, act.ID)
				if err != nil {
					return fmt.Errorf("failed to seed permission %s/%s: %w", res.Endpoint, act.Code, err)
				}
				perms = append(perms, p)
			}
		}

		if err := tx.GrantPermissions(ctx, admin, perms); err != nil {
			return fmt.Errorf("failed to grant administrator permissions: %w", err)
		}
		granted = len(perms)
		return nil
	})
	if err != nil {
		return err
	}

	s.logger.Info("RBAC baseline initialized",
		"actions", len(baselineActions),
		"resources", len(baselineResources),
		"roles", len(baselineRoles),
		"administrator_permissions", granted)
	return nil
}
