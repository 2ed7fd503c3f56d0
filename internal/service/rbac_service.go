package service

import (
	"context"

	"backend/internal/model"
	"backend/internal/rbac"
	"backend/internal/repository"

	"github.com/sirupsen/logrus"
)

// --- DTOs ---

type RoleSummary struct {
	Role      string `json:"role"`
	Active    bool   `json:"active"`
	UserCount int64  `json:"user_count"`
}

// PermissionMatrix is the resolver-filtered listing returned to the
// permissions screen: the catalog and every role's assignment, both reduced
// to the modules this installation can actually show.
type PermissionMatrix struct {
	Catalog          []rbac.Permission   `json:"catalog"`
	Roles            map[string][]string `json:"roles"`
	EffectiveModules []string            `json:"effective_modules"`
}

type UpdateRolePermissionsRequest struct {
	Permissions []string `json:"permissions" binding:"required"`
}

type UpdateRoleModulesRequest struct {
	AllowModules   []string `json:"allowModules" binding:"required"`
	AllowSubroutes []string `json:"allowSubroutes"`
}

type SetRoleActiveRequest struct {
	Active *bool `json:"active" binding:"required"`
}

// --- Interface ---

// RBACService maps roles to fine-grained permissions and owns the derived
// module/subroute caches.
type RBACService interface {
	ListRoles(ctx context.Context) ([]RoleSummary, error)
	SetRoleActive(ctx context.Context, actor Actor, role string, active bool) error

	PermissionMatrix(ctx context.Context) (*PermissionMatrix, error)
	SetRolePermissions(ctx context.Context, actor Actor, role string, perms []string) (ModuleAssignment, error)

	ModuleAssignments(ctx context.Context) (map[string]ModuleAssignment, error)
	ModuleAssignmentFor(ctx context.Context, role string) (ModuleAssignment, error)
	OverrideModuleAssignment(ctx context.Context, actor Actor, role string, a ModuleAssignment) error
	MyModules(ctx context.Context, role string) (ModuleAssignment, error)
}

type rbacService struct {
	settings  SettingsService
	users     repository.UserRepository
	licensing LicensingService
	catalog   *rbac.Catalog
	audit     AuditService
	notify    Notifier
}

// NewRBACService returns a new instance of RBACService
func NewRBACService(
	settings SettingsService,
	users repository.UserRepository,
	licensing LicensingService,
	catalog *rbac.Catalog,
	audit AuditService,
	notify Notifier,
) RBACService {
	if notify == nil {
		notify = NopNotifier{}
	}
	return &rbacService{
		settings:  settings,
		users:     users,
		licensing: licensing,
		catalog:   catalog,
		audit:     audit,
		notify:    notify,
	}
}

// --- Implementation ---

// ListRoles is a pure read: active flag (default true) plus the user count
// per fixed role. No derivation happens here.
func (s *rbacService) ListRoles(ctx context.Context) ([]RoleSummary, error) {
	roles := s.catalog.Roles()
	res := make([]RoleSummary, 0, len(roles))
	for _, role := range roles {
		active, err := s.settings.RoleActive(ctx, role)
		if err != nil {
			return nil, err
		}
		count, err := s.users.CountByRole(ctx, role)
		if err != nil {
			return nil, err
		}
		res = append(res, RoleSummary{Role: role, Active: active, UserCount: count})
	}
	return res, nil
}

func (s *rbacService) SetRoleActive(ctx context.Context, actor Actor, role string, active bool) error {
	if !s.catalog.IsRole(role) {
		return NotFound("unknown role")
	}
	if role == model.RoleOwner {
		return Forbidden("the owner role cannot be deactivated")
	}
	if err := s.settings.SetRoleActive(ctx, role, active); err != nil {
		return err
	}
	s.audit.Record(ctx, &actor.ID, model.ActionSetRoleActive, role, "", map[string]interface{}{"active": active})
	return nil
}

// effectiveModuleKeys resolves the two-stage visibility rule fresh on every
// read: licensed modules intersected with the admin role's assigned module
// cache, regardless of who is asking.
func (s *rbacService) effectiveModuleKeys(ctx context.Context) ([]string, error) {
	snap, err := s.licensing.Snapshot(ctx)
	if err != nil {
		return nil, err
	}
	adminAssigned, err := s.settings.ModuleAssignmentFor(ctx, model.RoleAdmin)
	if err != nil {
		return nil, err
	}
	return s.catalog.EffectiveModuleKeys(snap.AllowedModules, adminAssigned.AllowModules), nil
}

func (s *rbacService) PermissionMatrix(ctx context.Context) (*PermissionMatrix, error) {
	effective, err := s.effectiveModuleKeys(ctx)
	if err != nil {
		return nil, err
	}

	matrix := &PermissionMatrix{
		Catalog:          s.catalog.FilterCatalogByModuleKeys(effective),
		Roles:            make(map[string][]string),
		EffectiveModules: effective,
	}
	for _, role := range s.catalog.Roles() {
		perms, err := s.settings.RolePermissions(ctx, role)
		if err != nil {
			return nil, err
		}
		matrix.Roles[role] = rbac.FilterPermsByModuleKeys(perms, effective)
	}
	return matrix, nil
}

// SetRolePermissions filters the request to the fixed catalog (unknown ids
// are silently dropped), persists the set and unconditionally recomputes
// both derived caches from scratch.
func (s *rbacService) SetRolePermissions(ctx context.Context, actor Actor, role string, perms []string) (ModuleAssignment, error) {
	if !s.catalog.IsRole(role) {
		return ModuleAssignment{}, NotFound("unknown role")
	}

	filtered := s.catalog.Filter(perms)
	if err := s.settings.SetRolePermissions(ctx, role, filtered); err != nil {
		return ModuleAssignment{}, err
	}

	assignment := ModuleAssignment{
		AllowModules:   s.catalog.DeriveModules(filtered),
		AllowSubroutes: s.catalog.DeriveSubroutes(filtered),
	}
	if err := s.settings.SetModuleAssignment(ctx, role, assignment); err != nil {
		return ModuleAssignment{}, err
	}

	logrus.WithFields(logrus.Fields{"role": role, "permissions": len(filtered)}).Info("role permissions updated")
	s.audit.Record(ctx, &actor.ID, model.ActionUpdateRolePerms, role, "", map[string]interface{}{
		"permissions":   filtered,
		"allow_modules": assignment.AllowModules,
	})
	s.notify.AccessControlChanged(model.ActionUpdateRolePerms, role)
	return assignment, nil
}

func (s *rbacService) ModuleAssignments(ctx context.Context) (map[string]ModuleAssignment, error) {
	out := make(map[string]ModuleAssignment)
	for _, role := range s.catalog.Roles() {
		a, err := s.settings.ModuleAssignmentFor(ctx, role)
		if err != nil {
			return nil, err
		}
		out[role] = a
	}
	return out, nil
}

func (s *rbacService) ModuleAssignmentFor(ctx context.Context, role string) (ModuleAssignment, error) {
	if !s.catalog.IsRole(role) {
		return ModuleAssignment{}, NotFound("unknown role")
	}
	return s.settings.ModuleAssignmentFor(ctx, role)
}

// OverrideModuleAssignment is the explicit operator escape hatch that writes
// the derived cache directly. It replaces the cache whole and lasts until
// the next permission write recomputes it; both paths are audited so the
// precedence is traceable.
func (s *rbacService) OverrideModuleAssignment(ctx context.Context, actor Actor, role string, a ModuleAssignment) error {
	if !s.catalog.IsRole(role) {
		return NotFound("unknown role")
	}
	if err := s.settings.SetModuleAssignment(ctx, role, a); err != nil {
		return err
	}
	s.audit.Record(ctx, &actor.ID, model.ActionOverrideRoleModules, role, "", a)
	s.notify.AccessControlChanged(model.ActionOverrideRoleModules, role)
	return nil
}

// MyModules returns what the requester's dashboard may render. The owner
// sees every licensed module; everyone else gets their role's cache.
func (s *rbacService) MyModules(ctx context.Context, role string) (ModuleAssignment, error) {
	if role == model.RoleOwner {
		snap, err := s.licensing.Snapshot(ctx)
		if err != nil {
			return ModuleAssignment{}, err
		}
		return ModuleAssignment{
			AllowModules:   snap.AllowedModules,
			AllowSubroutes: s.catalog.DeriveSubroutes(s.allPermIDs()),
		}, nil
	}
	if !s.catalog.IsRole(role) {
		return ModuleAssignment{}, NotFound("unknown role")
	}
	return s.settings.ModuleAssignmentFor(ctx, role)
}

func (s *rbacService) allPermIDs() []string {
	perms := s.catalog.Permissions()
	ids := make([]string, 0, len(perms))
	for _, p := range perms {
		ids = append(ids, p.ID)
	}
	return ids
}
