package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Fixed role identifiers. The owner is the single distinguished account
// matching the configured owner email; superadmin is a support role that is
// still subject to the licensing gate.
const (
	RoleOwner      = "owner"
	RoleAdmin      = "admin"
	RoleTeacher    = "teacher"
	RoleStudent    = "student"
	RoleDriver     = "driver"
	RoleParent     = "parent"
	RoleSuperadmin = "superadmin"
)

// User represents the central user entity for logic and database structure
type User struct {
	ID        uuid.UUID      `gorm:"type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	Username  string         `gorm:"type:varchar(255);uniqueIndex;not null" json:"username"`
	Email     string         `gorm:"type:varchar(255);uniqueIndex;not null" json:"email"`
	Name      string         `gorm:"type:varchar(255)" json:"name"`
	Phone     string         `gorm:"type:varchar(20)" json:"phone"`
	Password  string         `gorm:"type:varchar(255);not null" json:"-"` // Omit password hash from JSON requests/responses
	Role      string         `gorm:"type:varchar(50);not null;index" json:"role"`
	CampusID  *uuid.UUID     `gorm:"type:uuid;index" json:"campus_id"` // Tenant assignment; required for admin accounts to act
	CreatedAt time.Time      `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time      `gorm:"autoUpdateTime" json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"` // GORM soft delete
}
