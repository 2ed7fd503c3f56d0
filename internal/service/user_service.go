package service

import (
	"context"
	"errors"
	"regexp"

	"backend/internal/model"
	"backend/internal/rbac"
	"backend/internal/repository"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

// DTOs for Request validation
type CreateUserRequest struct {
	Username string `json:"username" binding:"required"`
	Email    string `json:"email" binding:"required,email"`
	Name     string `json:"name"`
	Phone    string `json:"phone"`
	Password string `json:"password" binding:"required,min=6"`
	Role     string `json:"role" binding:"required"`
	CampusID string `json:"campus_id"`
}

type UpdateUserRequest struct {
	Username string `json:"username"`
	Email    string `json:"email" binding:"omitempty,email"`
	Name     string `json:"name"`
	Phone    string `json:"phone"`
	Role     string `json:"role"`
	CampusID string `json:"campus_id"`
}

// DTO for returning User without exposing sensitive data
type UserResponse struct {
	ID        uuid.UUID  `json:"id"`
	Username  string     `json:"username"`
	Email     string     `json:"email"`
	Name      string     `json:"name"`
	Phone     string     `json:"phone"`
	Role      string     `json:"role"`
	CampusID  *uuid.UUID `json:"campus_id"`
	CreatedAt string     `json:"created_at"`
	UpdatedAt string     `json:"updated_at"`
}

// UserService defines the business logic for user administration. Accounts
// are only ever created by an authenticated owner/admin (or the owner
// bootstrap); login never auto-provisions.
type UserService interface {
	CreateUser(ctx context.Context, actor Actor, req CreateUserRequest) (*UserResponse, error)
	GetUserByID(ctx context.Context, actor Actor, id string) (*UserResponse, error)
	ListUsers(ctx context.Context, actor Actor, page, limit int) ([]UserResponse, int64, error)
	UpdateUser(ctx context.Context, actor Actor, id string, req UpdateUserRequest) (*UserResponse, error)
	DeleteUser(ctx context.Context, actor Actor, id string) error
	// Actor resolves the authenticated caller's identity from the token
	// subject for use by campus scoping and audit attribution.
	Actor(ctx context.Context, id string) (Actor, error)
}

type userService struct {
	repo    repository.UserRepository
	catalog *rbac.Catalog
	audit   AuditService
}

// NewUserService returns a new instance of UserService
func NewUserService(repo repository.UserRepository, catalog *rbac.Catalog, audit AuditService) UserService {
	return &userService{repo: repo, catalog: catalog, audit: audit}
}

var emailRegex = regexp.MustCompile(`^[a-zA-Z0-9._%+\-]+@[a-zA-Z0-9.\-]+\.[a-zA-Z]{2,}$`)

// Helper: parse model to standard json API response
func mapToResponse(user *model.User) *UserResponse {
	return &UserResponse{
		ID:        user.ID,
		Username:  user.Username,
		Email:     user.Email,
		Name:      user.Name,
		Phone:     user.Phone,
		Role:      user.Role,
		CampusID:  user.CampusID,
		CreatedAt: user.CreatedAt.Format("2006-01-02T15:04:05Z07:00"),
		UpdatedAt: user.UpdatedAt.Format("2006-01-02T15:04:05Z07:00"),
	}
}

// requireCampus enforces tenant scoping for admin actors: an admin with no
// campus assigned gets Forbidden semantics, never another tenant's data.
func requireCampus(actor Actor) error {
	if actor.IsAdmin() && actor.CampusID == nil {
		return ErrAdminWithoutCampus
	}
	return nil
}

// sameCampus reports whether the target is visible to the actor.
func sameCampus(actor Actor, target *model.User) bool {
	if !actor.IsAdmin() {
		return true
	}
	return target.CampusID != nil && actor.CampusID != nil && *target.CampusID == *actor.CampusID
}

func (s *userService) Actor(ctx context.Context, id string) (Actor, error) {
	user, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return Actor{}, ErrTokenInvalid
	}
	return Actor{ID: user.ID, Role: user.Role, CampusID: user.CampusID}, nil
}

func (s *userService) CreateUser(ctx context.Context, actor Actor, req CreateUserRequest) (*UserResponse, error) {
	if err := requireCampus(actor); err != nil {
		return nil, err
	}
	if !s.catalog.IsRole(req.Role) {
		return nil, BadRequest("invalid role")
	}
	// The owner account exists exactly once and is created by bootstrap only.
	if req.Role == model.RoleOwner {
		return nil, Forbidden("the owner account cannot be created through registration")
	}
	if !emailRegex.MatchString(req.Email) {
		return nil, BadRequest("invalid email format")
	}

	if _, err := s.repo.GetByUsername(ctx, req.Username); err == nil {
		return nil, BadRequest("username already exists")
	}
	if _, err := s.repo.GetByEmail(ctx, req.Email); err == nil {
		return nil, BadRequest("email already exists")
	}

	campusID, err := s.resolveCampus(actor, req.CampusID)
	if err != nil {
		return nil, err
	}

	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, errors.New("failed to hash password")
	}

	user := &model.User{
		Username: req.Username,
		Email:    req.Email,
		Name:     req.Name,
		Phone:    req.Phone,
		Password: string(hashedPassword),
		Role:     req.Role,
		CampusID: campusID,
	}

	if err := s.repo.Create(ctx, user); err != nil {
		return nil, err
	}

	s.audit.Record(ctx, &actor.ID, model.ActionCreateUser, user.ID.String(), user.Username, map[string]interface{}{"role": user.Role})
	return mapToResponse(user), nil
}

// resolveCampus picks the tenant for a new/updated account. Admins can only
// ever place accounts in their own campus; the requested value is ignored.
func (s *userService) resolveCampus(actor Actor, requested string) (*uuid.UUID, error) {
	if actor.IsAdmin() {
		return actor.CampusID, nil
	}
	if requested == "" {
		return nil, nil
	}
	id, err := uuid.Parse(requested)
	if err != nil {
		return nil, BadRequest("invalid campus id")
	}
	return &id, nil
}

func (s *userService) GetUserByID(ctx context.Context, actor Actor, id string) (*UserResponse, error) {
	if err := requireCampus(actor); err != nil {
		return nil, err
	}
	user, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, NotFound("user not found")
	}
	if !sameCampus(actor, user) {
		return nil, NotFound("user not found")
	}
	return mapToResponse(user), nil
}

func (s *userService) ListUsers(ctx context.Context, actor Actor, page, limit int) ([]UserResponse, int64, error) {
	if err := requireCampus(actor); err != nil {
		return nil, 0, err
	}
	if page <= 0 {
		page = 1
	}
	if limit <= 0 {
		limit = 10
	}

	var campusID *uuid.UUID
	if actor.IsAdmin() {
		campusID = actor.CampusID
	}

	users, total, err := s.repo.List(ctx, campusID, page, limit)
	if err != nil {
		return nil, 0, err
	}

	responses := make([]UserResponse, 0, len(users))
	for i := range users {
		responses = append(responses, *mapToResponse(&users[i]))
	}

	return responses, total, nil
}

func (s *userService) UpdateUser(ctx context.Context, actor Actor, id string, req UpdateUserRequest) (*UserResponse, error) {
	if err := requireCampus(actor); err != nil {
		return nil, err
	}
	user, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, NotFound("user not found")
	}
	if !sameCampus(actor, user) {
		return nil, NotFound("user not found")
	}

	if req.Role != "" && req.Role != user.Role {
		// Self-lockout prevention: nobody changes their own role, and the
		// owner role is never granted or revoked here.
		if user.ID == actor.ID {
			return nil, Forbidden("cannot change your own role")
		}
		if user.Role == model.RoleOwner || req.Role == model.RoleOwner {
			return nil, Forbidden("the owner role cannot be reassigned")
		}
		if !s.catalog.IsRole(req.Role) {
			return nil, BadRequest("invalid role")
		}
		user.Role = req.Role
	}

	if req.Username != "" && req.Username != user.Username {
		if _, err := s.repo.GetByUsername(ctx, req.Username); err == nil {
			return nil, BadRequest("username already exists")
		}
		user.Username = req.Username
	}

	if req.Email != "" && req.Email != user.Email {
		if !emailRegex.MatchString(req.Email) {
			return nil, BadRequest("invalid email format")
		}
		if _, err := s.repo.GetByEmail(ctx, req.Email); err == nil {
			return nil, BadRequest("email already exists")
		}
		user.Email = req.Email
	}

	if req.Name != "" {
		user.Name = req.Name
	}
	if req.Phone != "" {
		user.Phone = req.Phone
	}
	if req.CampusID != "" && !actor.IsAdmin() {
		campusID, err := uuid.Parse(req.CampusID)
		if err != nil {
			return nil, BadRequest("invalid campus id")
		}
		user.CampusID = &campusID
	}

	if err := s.repo.Update(ctx, user); err != nil {
		return nil, err
	}

	s.audit.Record(ctx, &actor.ID, model.ActionUpdateUser, user.ID.String(), user.Username, nil)
	return mapToResponse(user), nil
}

func (s *userService) DeleteUser(ctx context.Context, actor Actor, id string) error {
	if err := requireCampus(actor); err != nil {
		return err
	}
	user, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return NotFound("user not found")
	}
	if !sameCampus(actor, user) {
		return NotFound("user not found")
	}
	if user.ID == actor.ID {
		return Forbidden("cannot delete your own account")
	}
	if user.Role == model.RoleOwner {
		return Forbidden("the owner account cannot be deleted")
	}

	if err := s.repo.Delete(ctx, id); err != nil {
		return err
	}
	s.audit.Record(ctx, &actor.ID, model.ActionDeleteUser, user.ID.String(), user.Username, nil)
	return nil
}
