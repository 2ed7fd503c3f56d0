package service

import (
	"context"
	"testing"

	"backend/internal/config"
	"backend/internal/model"
	"backend/internal/rbac"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type rbacFixture struct {
	*licensingFixture
	catalog *rbac.Catalog
	rbac    RBACService
	actor   Actor
}

func newRBACFixture(t *testing.T) *rbacFixture {
	t.Helper()
	lf := newLicensingFixture(t, config.OwnerConfig{})
	catalog := rbac.New()
	f := &rbacFixture{
		licensingFixture: lf,
		catalog:          catalog,
		rbac:             NewRBACService(lf.settings, lf.users, lf.licensing, catalog, NewAuditService(lf.audit), lf.notify),
		actor:            Actor{ID: uuid.New(), Role: model.RoleOwner},
	}
	// Licensing configured with the full default module list.
	_, err := lf.licensing.BootstrapOwner(context.Background(), testOwnerPassword, testOwnerKey)
	require.NoError(t, err)
	return f
}

func TestSetRolePermissionsDerivesCaches(t *testing.T) {
	f := newRBACFixture(t)
	ctx := context.Background()

	assignment, err := f.rbac.SetRolePermissions(ctx, f.actor, model.RoleTeacher, []string{
		"attendance.edit", "attendance.view", "students.view", "not.a.permission",
	})
	require.NoError(t, err)

	assert.Equal(t, []string{"Students", "Attendance"}, assignment.AllowModules)
	assert.Equal(t, []string{"/attendance", "/attendance/manual", "/students"}, assignment.AllowSubroutes)

	// The stored permission set is filtered to catalog members, catalog order.
	perms, err := f.settings.RolePermissions(ctx, model.RoleTeacher)
	require.NoError(t, err)
	assert.Equal(t, []string{"students.view", "attendance.view", "attendance.edit"}, perms)

	// The persisted cache matches the returned assignment.
	stored, err := f.rbac.ModuleAssignmentFor(ctx, model.RoleTeacher)
	require.NoError(t, err)
	assert.Equal(t, assignment, stored)

	assert.Contains(t, f.audit.actions(), model.ActionUpdateRolePerms)
	assert.Contains(t, f.notify.all(), model.ActionUpdateRolePerms+":"+model.RoleTeacher)
}

// The cache is always recomputable from the permission set: recompute from
// what was stored and compare against the cache rows.
func TestModuleCacheDerivability(t *testing.T) {
	f := newRBACFixture(t)
	ctx := context.Background()

	_, err := f.rbac.SetRolePermissions(ctx, f.actor, model.RoleAdmin, []string{
		"dashboard.view", "students.view", "students.edit", "finance.view", "settings.edit",
	})
	require.NoError(t, err)

	perms, err := f.settings.RolePermissions(ctx, model.RoleAdmin)
	require.NoError(t, err)
	cached, err := f.settings.ModuleAssignmentFor(ctx, model.RoleAdmin)
	require.NoError(t, err)

	assert.Equal(t, f.catalog.DeriveModules(perms), cached.AllowModules)
	assert.Equal(t, f.catalog.DeriveSubroutes(perms), cached.AllowSubroutes)
}

func TestAttendanceEditUnlocksManualEntryOnly(t *testing.T) {
	f := newRBACFixture(t)

	assignment, err := f.rbac.SetRolePermissions(context.Background(), f.actor, model.RoleTeacher, []string{"attendance.edit"})
	require.NoError(t, err)
	assert.Equal(t, []string{"Attendance"}, assignment.AllowModules)
	assert.Equal(t, []string{"/attendance/manual"}, assignment.AllowSubroutes)
}

func TestEmptyPermissionsClearCaches(t *testing.T) {
	f := newRBACFixture(t)
	ctx := context.Background()

	_, err := f.rbac.SetRolePermissions(ctx, f.actor, model.RoleStudent, []string{"dashboard.view"})
	require.NoError(t, err)

	assignment, err := f.rbac.SetRolePermissions(ctx, f.actor, model.RoleStudent, nil)
	require.NoError(t, err)
	assert.Empty(t, assignment.AllowModules)
	assert.Empty(t, assignment.AllowSubroutes)
}

func TestOverrideModuleAssignmentPrecedence(t *testing.T) {
	f := newRBACFixture(t)
	ctx := context.Background()

	_, err := f.rbac.SetRolePermissions(ctx, f.actor, model.RoleTeacher, []string{"attendance.view"})
	require.NoError(t, err)

	// Operator widens the cache directly.
	override := ModuleAssignment{
		AllowModules:   []string{"Attendance", "Syllabus"},
		AllowSubroutes: []string{"/attendance", "/syllabus"},
	}
	require.NoError(t, f.rbac.OverrideModuleAssignment(ctx, f.actor, model.RoleTeacher, override))

	got, err := f.rbac.ModuleAssignmentFor(ctx, model.RoleTeacher)
	require.NoError(t, err)
	assert.Equal(t, override, got)
	assert.Contains(t, f.audit.actions(), model.ActionOverrideRoleModules)

	// The next permission write recomputes and supersedes the override.
	recomputed, err := f.rbac.SetRolePermissions(ctx, f.actor, model.RoleTeacher, []string{"attendance.view"})
	require.NoError(t, err)
	got, err = f.rbac.ModuleAssignmentFor(ctx, model.RoleTeacher)
	require.NoError(t, err)
	assert.Equal(t, recomputed, got)
	assert.NotContains(t, got.AllowModules, "Syllabus")
}

func TestPermissionMatrixAppliesTwoStageVisibility(t *testing.T) {
	f := newRBACFixture(t)
	ctx := context.Background()

	// License covers Students and Finance only.
	require.NoError(t, f.settings.SetLicensedModules(ctx, []string{"Students", "Finance"}))
	// Admin is assigned Students only; Finance is licensed but unassigned.
	_, err := f.rbac.SetRolePermissions(ctx, f.actor, model.RoleAdmin, []string{"students.view"})
	require.NoError(t, err)
	// Teacher holds a finance permission that must not surface.
	_, err = f.rbac.SetRolePermissions(ctx, f.actor, model.RoleTeacher, []string{"students.view", "finance.view"})
	require.NoError(t, err)

	matrix, err := f.rbac.PermissionMatrix(ctx)
	require.NoError(t, err)

	assert.Equal(t, []string{"students"}, matrix.EffectiveModules)
	for _, p := range matrix.Catalog {
		assert.Equal(t, "students", p.Module)
	}
	assert.Equal(t, []string{"students.view"}, matrix.Roles[model.RoleTeacher])
	assert.NotContains(t, matrix.Roles[model.RoleTeacher], "finance.view")
}

func TestSetRoleActive(t *testing.T) {
	f := newRBACFixture(t)
	ctx := context.Background()

	require.NoError(t, f.rbac.SetRoleActive(ctx, f.actor, model.RoleDriver, false))

	roles, err := f.rbac.ListRoles(ctx)
	require.NoError(t, err)
	byRole := make(map[string]RoleSummary, len(roles))
	for _, r := range roles {
		byRole[r.Role] = r
	}
	assert.False(t, byRole[model.RoleDriver].Active)
	// Unset roles default to active.
	assert.True(t, byRole[model.RoleTeacher].Active)

	// The owner role cannot be deactivated.
	err = f.rbac.SetRoleActive(ctx, f.actor, model.RoleOwner, false)
	apiErr, ok := AsAPIError(err)
	require.True(t, ok)
	assert.Equal(t, "FORBIDDEN", apiErr.Code)

	err = f.rbac.SetRoleActive(ctx, f.actor, "janitor", false)
	apiErr, ok = AsAPIError(err)
	require.True(t, ok)
	assert.Equal(t, "NOT_FOUND", apiErr.Code)
}

func TestMyModules(t *testing.T) {
	f := newRBACFixture(t)
	ctx := context.Background()

	_, err := f.rbac.SetRolePermissions(ctx, f.actor, model.RoleTeacher, []string{"attendance.view"})
	require.NoError(t, err)

	// A role sees its own cache.
	mine, err := f.rbac.MyModules(ctx, model.RoleTeacher)
	require.NoError(t, err)
	assert.Equal(t, []string{"Attendance"}, mine.AllowModules)

	// The owner sees every licensed module.
	owner, err := f.rbac.MyModules(ctx, model.RoleOwner)
	require.NoError(t, err)
	assert.Equal(t, f.catalog.DefaultModules(), owner.AllowModules)
	assert.NotEmpty(t, owner.AllowSubroutes)

	_, err = f.rbac.MyModules(ctx, "janitor")
	assert.Error(t, err)
}
