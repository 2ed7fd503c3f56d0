package service

import (
	"backend/internal/model"

	"github.com/google/uuid"
)

// Actor is the authenticated caller of a service operation, resolved from
// the access token by the HTTP layer. Services use it for audit attribution,
// campus scoping and the self-lockout rules.
type Actor struct {
	ID       uuid.UUID
	Role     string
	CampusID *uuid.UUID
}

// IsOwner reports whether the actor is the distinguished owner account.
func (a Actor) IsOwner() bool { return a.Role == model.RoleOwner }

// IsAdmin reports whether the actor is a campus admin.
func (a Actor) IsAdmin() bool { return a.Role == model.RoleAdmin }
