package service

import (
	"context"
	"testing"

	"backend/internal/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLicensingAccessorDefaults(t *testing.T) {
	svc := NewSettingsService(newFakeSettingRepo())
	ctx := context.Background()

	cfg, err := svc.Licensing(ctx)
	require.NoError(t, err)
	assert.False(t, cfg.Configured)
	assert.Empty(t, cfg.AllowedModules)
}

func TestLicensingConfiguredOnlyEverBecomesTrue(t *testing.T) {
	repo := newFakeSettingRepo()
	svc := NewSettingsService(repo)
	ctx := context.Background()

	require.NoError(t, svc.MarkLicensingConfigured(ctx))
	cfg, err := svc.Licensing(ctx)
	require.NoError(t, err)
	assert.True(t, cfg.Configured)

	// Any stored value other than "true" reads as unconfigured.
	_, err = repo.Set(ctx, model.SettingLicensingConfigured, "yes")
	require.NoError(t, err)
	cfg, err = svc.Licensing(ctx)
	require.NoError(t, err)
	assert.False(t, cfg.Configured)
}

func TestUnparseableListDefaultsToEmpty(t *testing.T) {
	repo := newFakeSettingRepo()
	svc := NewSettingsService(repo)
	ctx := context.Background()

	_, err := repo.Set(ctx, model.SettingLicensedModules, "{broken json")
	require.NoError(t, err)

	cfg, err := svc.Licensing(ctx)
	require.NoError(t, err)
	assert.Empty(t, cfg.AllowedModules)
}

func TestSeedLicensedModulesDoesNotOverwrite(t *testing.T) {
	svc := NewSettingsService(newFakeSettingRepo())
	ctx := context.Background()

	require.NoError(t, svc.SetLicensedModules(ctx, []string{"Teachers"}))
	require.NoError(t, svc.SeedLicensedModules(ctx, []string{"Teachers", "Students", "Finance"}))

	cfg, err := svc.Licensing(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"Teachers"}, cfg.AllowedModules)
}

func TestInitOwnerKeyHashIsFirstWriterWins(t *testing.T) {
	svc := NewSettingsService(newFakeSettingRepo())
	ctx := context.Background()

	won, err := svc.InitOwnerKeyHash(ctx, "hash-one")
	require.NoError(t, err)
	assert.True(t, won)

	won, err = svc.InitOwnerKeyHash(ctx, "hash-two")
	require.NoError(t, err)
	assert.False(t, won)

	stored, err := svc.OwnerKeyHash(ctx)
	require.NoError(t, err)
	assert.Equal(t, "hash-one", stored)
}

func TestRoleActiveDefaultsTrue(t *testing.T) {
	svc := NewSettingsService(newFakeSettingRepo())
	ctx := context.Background()

	active, err := svc.RoleActive(ctx, model.RoleTeacher)
	require.NoError(t, err)
	assert.True(t, active)

	require.NoError(t, svc.SetRoleActive(ctx, model.RoleTeacher, false))
	active, err = svc.RoleActive(ctx, model.RoleTeacher)
	require.NoError(t, err)
	assert.False(t, active)
}

func TestModuleAssignmentRoundTrip(t *testing.T) {
	svc := NewSettingsService(newFakeSettingRepo())
	ctx := context.Background()

	want := ModuleAssignment{
		AllowModules:   []string{"Students", "Attendance"},
		AllowSubroutes: []string{"/attendance", "/students"},
	}
	require.NoError(t, svc.SetModuleAssignment(ctx, model.RoleTeacher, want))

	got, err := svc.ModuleAssignmentFor(ctx, model.RoleTeacher)
	require.NoError(t, err)
	assert.Equal(t, want, got)

	// Absent role reads as empty, not an error.
	got, err = svc.ModuleAssignmentFor(ctx, model.RoleDriver)
	require.NoError(t, err)
	assert.Empty(t, got.AllowModules)
	assert.Empty(t, got.AllowSubroutes)
}

func TestGenericSettingAccess(t *testing.T) {
	svc := NewSettingsService(newFakeSettingRepo())
	ctx := context.Background()

	_, err := svc.Get(ctx, "missing.key")
	apiErr, ok := AsAPIError(err)
	require.True(t, ok)
	assert.Equal(t, "NOT_FOUND", apiErr.Code)

	row, err := svc.Set(ctx, "branding.title", "Springfield Elementary")
	require.NoError(t, err)
	assert.Equal(t, "Springfield Elementary", row.Value)

	require.NoError(t, svc.Delete(ctx, "branding.title"))
	_, err = svc.Get(ctx, "branding.title")
	assert.Error(t, err)
}
