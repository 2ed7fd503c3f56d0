package service

import (
	"context"
	"strings"

	"backend/internal/model"
	"backend/internal/repository"

	"github.com/sirupsen/logrus"
	"golang.org/x/crypto/bcrypt"
)

// --- DTOs ---

type LoginRequest struct {
	Email    string `json:"email"`
	Username string `json:"username"`
	Password string `json:"password" binding:"required"`
	OwnerKey string `json:"ownerKey"`
}

type RefreshTokenRequest struct {
	RefreshToken string `json:"refreshToken" binding:"required"`
}

type AuthResponse struct {
	Token        string        `json:"token"`
	RefreshToken string        `json:"refreshToken"`
	User         *UserResponse `json:"user"`
}

// StatusResponse is the public pre-login probe the frontend uses to decide
// between the setup screen and the login form.
type StatusResponse struct {
	LicensingConfigured bool     `json:"licensingConfigured"`
	AllowedModules      []string `json:"allowedModules"`
	AdminExists         bool     `json:"adminExists"`
}

// IdentifierKind tags how the caller identified themselves.
type IdentifierKind int

const (
	IdentifierEmail IdentifierKind = iota
	IdentifierUsername
	IdentifierPhone
)

// LoginIdentifier is the closed variant resolved once at the boundary;
// everything downstream consumes the tag instead of re-sniffing strings.
type LoginIdentifier struct {
	Kind  IdentifierKind
	Value string
}

var phonePattern = func(v string) bool {
	if len(v) < 6 {
		return false
	}
	for i, r := range v {
		if r >= '0' && r <= '9' {
			continue
		}
		if i == 0 && r == '+' {
			continue
		}
		return false
	}
	return true
}

// ResolveIdentifier normalizes the login payload into a tagged identifier.
// An explicit email field wins; a username consisting only of digits is
// treated as a phone number.
func ResolveIdentifier(req LoginRequest) (LoginIdentifier, error) {
	if email := strings.ToLower(strings.TrimSpace(req.Email)); email != "" {
		return LoginIdentifier{Kind: IdentifierEmail, Value: email}, nil
	}
	if username := strings.TrimSpace(req.Username); username != "" {
		if phonePattern(username) {
			return LoginIdentifier{Kind: IdentifierPhone, Value: username}, nil
		}
		return LoginIdentifier{Kind: IdentifierUsername, Value: username}, nil
	}
	return LoginIdentifier{}, BadRequest("email or username is required")
}

// --- Interface ---

// AuthService orchestrates the login flow: licensing gate first, owner
// bootstrap branch for the owner email, credential verification against the
// user store, then token issuance.
type AuthService interface {
	Login(ctx context.Context, req LoginRequest) (*AuthResponse, error)
	Refresh(ctx context.Context, refreshToken string) (*AuthResponse, error)
	Status(ctx context.Context) (*StatusResponse, error)
	Me(ctx context.Context, userID string) (*UserResponse, []string, error)
}

type authService struct {
	users     repository.UserRepository
	settings  SettingsService
	licensing LicensingService
	tokens    TokenService
}

// NewAuthService returns a new instance of AuthService
func NewAuthService(
	users repository.UserRepository,
	settings SettingsService,
	licensing LicensingService,
	tokens TokenService,
) AuthService {
	return &authService{
		users:     users,
		settings:  settings,
		licensing: licensing,
		tokens:    tokens,
	}
}

func (s *authService) Login(ctx context.Context, req LoginRequest) (*AuthResponse, error) {
	ident, err := ResolveIdentifier(req)
	if err != nil {
		return nil, err
	}

	// The owner can always attempt to authenticate, independent of
	// licensing state.
	if ident.Kind == IdentifierEmail && s.licensing.IsOwnerEmail(ident.Value) {
		owner, err := s.licensing.BootstrapOwner(ctx, req.Password, req.OwnerKey)
		if err != nil {
			return nil, err
		}
		return s.issue(owner)
	}

	// Resolve the gate once; the decision below never re-reads it.
	snap, err := s.licensing.Snapshot(ctx)
	if err != nil {
		return nil, err
	}
	if !snap.Configured {
		return nil, ErrSetupPending
	}

	user, err := s.lookup(ctx, ident)
	if err != nil {
		return nil, ErrInvalidCredentials
	}
	if bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(req.Password)) != nil {
		return nil, ErrInvalidCredentials
	}

	if err := s.licensing.CheckRole(snap, user.Role); err != nil {
		return nil, err
	}
	if user.Role == model.RoleAdmin && user.CampusID == nil {
		return nil, ErrAdminWithoutCampus
	}

	logrus.WithFields(logrus.Fields{"user": user.Username, "role": user.Role}).Info("login")
	return s.issue(user)
}

func (s *authService) lookup(ctx context.Context, ident LoginIdentifier) (*model.User, error) {
	switch ident.Kind {
	case IdentifierEmail:
		return s.users.GetByEmail(ctx, ident.Value)
	case IdentifierPhone:
		return s.users.GetByPhone(ctx, ident.Value)
	default:
		return s.users.GetByUsername(ctx, ident.Value)
	}
}

func (s *authService) issue(user *model.User) (*AuthResponse, error) {
	pair, err := s.tokens.IssuePair(user)
	if err != nil {
		return nil, err
	}
	return &AuthResponse{
		Token:        pair.Token,
		RefreshToken: pair.RefreshToken,
		User:         mapToResponse(user),
	}, nil
}

func (s *authService) Refresh(ctx context.Context, refreshToken string) (*AuthResponse, error) {
	claims, err := s.tokens.VerifyRefresh(refreshToken)
	if err != nil {
		return nil, err
	}
	user, err := s.users.GetByID(ctx, claims.UserID)
	if err != nil {
		return nil, ErrTokenInvalid
	}
	return s.issue(user)
}

func (s *authService) Status(ctx context.Context) (*StatusResponse, error) {
	snap, err := s.licensing.Snapshot(ctx)
	if err != nil {
		return nil, err
	}
	adminExists, err := s.users.ExistsByRole(ctx, model.RoleAdmin)
	if err != nil {
		return nil, err
	}
	return &StatusResponse{
		LicensingConfigured: snap.Configured,
		AllowedModules:      snap.AllowedModules,
		AdminExists:         adminExists,
	}, nil
}

func (s *authService) Me(ctx context.Context, userID string) (*UserResponse, []string, error) {
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return nil, nil, NotFound("user not found")
	}
	perms, err := s.settings.RolePermissions(ctx, user.Role)
	if err != nil {
		perms = []string{}
	}
	return mapToResponse(user), perms, nil
}
