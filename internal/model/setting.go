package model

import "time"

// Well-known settings keys. Values are strings; list-valued entries are
// JSON-encoded arrays, booleans are stored as "true"/"false".
const (
	SettingLicensingConfigured = "licensing.configured"
	SettingLicensedModules     = "licensing.allowed_modules"
	SettingOwnerKeyHash        = "owner.key_hash"

	SettingRolePermsPrefix     = "perms."           // perms.<role>
	SettingAllowModulesPrefix  = "modules.allow."   // modules.allow.<role>
	SettingAllowSubroutePrefix = "subroutes.allow." // subroutes.allow.<role>
	SettingRoleActivePrefix    = "role.active."     // role.active.<role>
)

// Setting is a generic key/value row. It is the schema-less escape hatch
// backing licensing state, per-role permission sets and the derived
// module/subroute caches. Each key is an independent row; there is no
// cross-key atomicity.
type Setting struct {
	Key       string    `gorm:"type:varchar(255);primaryKey" json:"key"`
	Value     string    `gorm:"type:text;not null" json:"value"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}
