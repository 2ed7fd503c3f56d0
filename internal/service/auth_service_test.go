package service

import (
	"context"
	"testing"
	"time"

	"backend/internal/config"
	"backend/internal/model"
	"backend/internal/rbac"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

type authFixture struct {
	*licensingFixture
	tokens TokenService
	auth   AuthService
}

func newAuthFixture(t *testing.T) *authFixture {
	t.Helper()
	lf := newLicensingFixture(t, config.OwnerConfig{})
	tokens := NewTokenService(config.AuthConfig{
		AccessSecret:  "access-secret",
		RefreshSecret: "refresh-secret",
		AccessTTL:     15 * time.Minute,
		RefreshTTL:    7 * 24 * time.Hour,
	})
	return &authFixture{
		licensingFixture: lf,
		tokens:           tokens,
		auth:             NewAuthService(lf.users, lf.settings, lf.licensing, tokens),
	}
}

func (f *authFixture) seedUser(t *testing.T, username, email, phone, password, role string, campusID *uuid.UUID) *model.User {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	require.NoError(t, err)
	u := &model.User{
		Username: username,
		Email:    email,
		Phone:    phone,
		Password: string(hash),
		Role:     role,
		CampusID: campusID,
	}
	require.NoError(t, f.users.Create(context.Background(), u))
	return u
}

func (f *authFixture) completeSetup(t *testing.T) {
	t.Helper()
	_, err := f.licensing.BootstrapOwner(context.Background(), testOwnerPassword, testOwnerKey)
	require.NoError(t, err)
}

func TestLoginBlockedBeforeSetup(t *testing.T) {
	f := newAuthFixture(t)
	f.seedUser(t, "teacher1", "teacher@school.local", "", "secret123", model.RoleTeacher, nil)

	// Valid credentials make no difference while the gate is closed.
	_, err := f.auth.Login(context.Background(), LoginRequest{Username: "teacher1", Password: "secret123"})
	apiErr, ok := AsAPIError(err)
	require.True(t, ok)
	assert.Equal(t, "SETUP_PENDING", apiErr.Code)
	assert.Equal(t, 423, apiErr.Status)
}

func TestLoginOwnerBranchesIntoBootstrap(t *testing.T) {
	f := newAuthFixture(t)

	_, err := f.auth.Login(context.Background(), LoginRequest{Email: testOwnerEmail, Password: testOwnerPassword})
	apiErr, ok := AsAPIError(err)
	require.True(t, ok)
	assert.Equal(t, "OWNER_KEY_REQUIRED", apiErr.Code)

	res, err := f.auth.Login(context.Background(), LoginRequest{
		Email:    testOwnerEmail,
		Password: testOwnerPassword,
		OwnerKey: testOwnerKey,
	})
	require.NoError(t, err)
	assert.NotEmpty(t, res.Token)
	assert.NotEmpty(t, res.RefreshToken)
	assert.Equal(t, model.RoleOwner, res.User.Role)
}

func TestLoginAfterSetup(t *testing.T) {
	f := newAuthFixture(t)
	f.completeSetup(t)
	f.seedUser(t, "teacher1", "teacher@school.local", "", "secret123", model.RoleTeacher, nil)

	res, err := f.auth.Login(context.Background(), LoginRequest{Username: "teacher1", Password: "secret123"})
	require.NoError(t, err)
	assert.Equal(t, "teacher1", res.User.Username)

	claims, err := f.tokens.VerifyAccess(res.Token)
	require.NoError(t, err)
	assert.Equal(t, model.RoleTeacher, claims.Role)
	assert.Equal(t, res.User.ID.String(), claims.UserID)
}

func TestLoginUniformErrorHidesUserExistence(t *testing.T) {
	f := newAuthFixture(t)
	f.completeSetup(t)
	f.seedUser(t, "teacher1", "teacher@school.local", "", "secret123", model.RoleTeacher, nil)

	_, errUnknown := f.auth.Login(context.Background(), LoginRequest{Username: "ghost", Password: "whatever"})
	_, errWrongPw := f.auth.Login(context.Background(), LoginRequest{Username: "teacher1", Password: "wrong"})

	a, ok := AsAPIError(errUnknown)
	require.True(t, ok)
	b, ok := AsAPIError(errWrongPw)
	require.True(t, ok)
	assert.Equal(t, "INVALID_CREDENTIALS", a.Code)
	assert.Equal(t, a.Code, b.Code)
	assert.Equal(t, a.Message, b.Message)
}

func TestLoginRoleNotLicensed(t *testing.T) {
	f := newAuthFixture(t)
	f.completeSetup(t)
	// Shrink the license: Transport gone, so drivers are locked out.
	require.NoError(t, f.settings.SetLicensedModules(context.Background(), []string{"Teachers", "Students"}))
	f.seedUser(t, "driver1", "driver@school.local", "", "secret123", model.RoleDriver, nil)

	_, err := f.auth.Login(context.Background(), LoginRequest{Username: "driver1", Password: "secret123"})
	apiErr, ok := AsAPIError(err)
	require.True(t, ok)
	assert.Equal(t, "ROLE_NOT_LICENSED", apiErr.Code)
	assert.Equal(t, 423, apiErr.Status)

	// Teachers remain licensed.
	f.seedUser(t, "teacher1", "teacher@school.local", "", "secret123", model.RoleTeacher, nil)
	_, err = f.auth.Login(context.Background(), LoginRequest{Username: "teacher1", Password: "secret123"})
	assert.NoError(t, err)
}

func TestLoginAdminWithoutCampus(t *testing.T) {
	f := newAuthFixture(t)
	f.completeSetup(t)
	f.seedUser(t, "admin1", "admin@school.local", "", "secret123", model.RoleAdmin, nil)

	_, err := f.auth.Login(context.Background(), LoginRequest{Username: "admin1", Password: "secret123"})
	apiErr, ok := AsAPIError(err)
	require.True(t, ok)
	assert.Equal(t, "ADMIN_WITHOUT_CAMPUS", apiErr.Code)
	assert.Equal(t, 403, apiErr.Status)

	campus := uuid.New()
	f.seedUser(t, "admin2", "admin2@school.local", "", "secret123", model.RoleAdmin, &campus)
	_, err = f.auth.Login(context.Background(), LoginRequest{Username: "admin2", Password: "secret123"})
	assert.NoError(t, err)
}

func TestResolveIdentifier(t *testing.T) {
	tests := []struct {
		name string
		req  LoginRequest
		kind IdentifierKind
		val  string
		err  bool
	}{
		{"email wins over username", LoginRequest{Email: "A@B.co", Username: "alice"}, IdentifierEmail, "a@b.co", false},
		{"plain username", LoginRequest{Username: "alice"}, IdentifierUsername, "alice", false},
		{"digits are a phone", LoginRequest{Username: "0912345678"}, IdentifierPhone, "0912345678", false},
		{"plus prefix phone", LoginRequest{Username: "+84912345678"}, IdentifierPhone, "+84912345678", false},
		{"short digits stay username", LoginRequest{Username: "12345"}, IdentifierUsername, "12345", false},
		{"empty payload", LoginRequest{}, 0, "", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ResolveIdentifier(tt.req)
			if tt.err {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.kind, got.Kind)
			assert.Equal(t, tt.val, got.Value)
		})
	}
}

func TestLoginByPhone(t *testing.T) {
	f := newAuthFixture(t)
	f.completeSetup(t)
	f.seedUser(t, "teacher1", "teacher@school.local", "0912345678", "secret123", model.RoleTeacher, nil)

	res, err := f.auth.Login(context.Background(), LoginRequest{Username: "0912345678", Password: "secret123"})
	require.NoError(t, err)
	assert.Equal(t, "teacher1", res.User.Username)
}

func TestRefreshIssuesNewPair(t *testing.T) {
	f := newAuthFixture(t)
	f.completeSetup(t)
	f.seedUser(t, "teacher1", "teacher@school.local", "", "secret123", model.RoleTeacher, nil)

	res, err := f.auth.Login(context.Background(), LoginRequest{Username: "teacher1", Password: "secret123"})
	require.NoError(t, err)

	refreshed, err := f.auth.Refresh(context.Background(), res.RefreshToken)
	require.NoError(t, err)
	assert.NotEmpty(t, refreshed.Token)
	assert.Equal(t, res.User.ID, refreshed.User.ID)

	// An access token is not a refresh token: independent secrets.
	_, err = f.auth.Refresh(context.Background(), res.Token)
	apiErr, ok := AsAPIError(err)
	require.True(t, ok)
	assert.Equal(t, "TOKEN_INVALID", apiErr.Code)
}

func TestRefreshForDeletedUser(t *testing.T) {
	f := newAuthFixture(t)
	f.completeSetup(t)
	u := f.seedUser(t, "teacher1", "teacher@school.local", "", "secret123", model.RoleTeacher, nil)

	res, err := f.auth.Login(context.Background(), LoginRequest{Username: "teacher1", Password: "secret123"})
	require.NoError(t, err)

	require.NoError(t, f.users.Delete(context.Background(), u.ID.String()))
	_, err = f.auth.Refresh(context.Background(), res.RefreshToken)
	apiErr, ok := AsAPIError(err)
	require.True(t, ok)
	assert.Equal(t, "TOKEN_INVALID", apiErr.Code)
}

func TestStatusProbe(t *testing.T) {
	f := newAuthFixture(t)
	ctx := context.Background()

	status, err := f.auth.Status(ctx)
	require.NoError(t, err)
	assert.False(t, status.LicensingConfigured)
	assert.False(t, status.AdminExists)

	f.completeSetup(t)
	campus := uuid.New()
	f.seedUser(t, "admin1", "admin@school.local", "", "secret123", model.RoleAdmin, &campus)

	status, err = f.auth.Status(ctx)
	require.NoError(t, err)
	assert.True(t, status.LicensingConfigured)
	assert.True(t, status.AdminExists)
	assert.NotEmpty(t, status.AllowedModules)
}

func TestMeReturnsRolePermissions(t *testing.T) {
	f := newAuthFixture(t)
	f.completeSetup(t)
	u := f.seedUser(t, "teacher1", "teacher@school.local", "", "secret123", model.RoleTeacher, nil)
	require.NoError(t, f.settings.SetRolePermissions(context.Background(), model.RoleTeacher, []string{"attendance.view", "attendance.edit"}))

	user, perms, err := f.auth.Me(context.Background(), u.ID.String())
	require.NoError(t, err)
	assert.Equal(t, "teacher1", user.Username)
	assert.Equal(t, []string{"attendance.view", "attendance.edit"}, perms)
}

// Guard against catalog drift: the licensed-role mapping used by the gate
// matches the fixed module list.
func TestDefaultLicenseCoversAllGatedRoles(t *testing.T) {
	c := rbac.New()
	roles := c.LicensedRoles(c.DefaultModules())
	assert.ElementsMatch(t, []string{
		model.RoleAdmin, model.RoleTeacher, model.RoleStudent,
		model.RoleDriver, model.RoleParent,
	}, roles)
}
