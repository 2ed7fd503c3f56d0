package model

import (
	"time"

	"github.com/google/uuid"
)

const (
	ActionOwnerBootstrap      = "OWNER_BOOTSTRAP"
	ActionLicensingConfigured = "LICENSING_CONFIGURED"
	ActionUpdateRolePerms     = "UPDATE_ROLE_PERMISSIONS"
	ActionOverrideRoleModules = "OVERRIDE_ROLE_MODULES"
	ActionSetRoleActive       = "SET_ROLE_ACTIVE"
	ActionCreateUser          = "CREATE_USER"
	ActionUpdateUser          = "UPDATE_USER"
	ActionDeleteUser          = "DELETE_USER"
	ActionUpdateSetting       = "UPDATE_SETTING"
	ActionDeleteSetting       = "DELETE_SETTING"
)

// AuditLog tracks Who, What, and When for critical system changes
type AuditLog struct {
	ID         uuid.UUID  `gorm:"type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	UserID     *uuid.UUID `gorm:"type:uuid;index" json:"user_id"` // Nullable gracefully if system-initiated
	User       *User      `gorm:"foreignKey:UserID" json:"user"`
	Action     string     `gorm:"type:varchar(50);not null;index" json:"action"`
	EntityID   string     `gorm:"type:varchar(255);index" json:"entity_id"`       // Reference string (uuid/role/settings key)
	EntityName string     `gorm:"type:varchar(255)" json:"entity_name,omitempty"` // Human readable name
	Details    string     `gorm:"type:jsonb" json:"details"`                      // Serialized JSON payload of the action
	CreatedAt  time.Time  `gorm:"index" json:"created_at"`
}
