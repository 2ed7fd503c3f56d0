package rbac

import (
	"sort"
	"strings"

	"backend/internal/model"
)

// Permission is a single assignable permission from the fixed catalog.
// The ID is always "<module>.<action>".
type Permission struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Module string `json:"module"`
}

// Catalog is the immutable access-control configuration built once at
// startup: the fixed role list, the permission catalog, the permission to
// UI-subroute table and the module key/display-name maps. Services receive
// it by reference and never mutate it.
type Catalog struct {
	roles       []string
	permissions []Permission
	permIndex   map[string]Permission

	moduleKeys    []string          // catalog order
	displayByKey  map[string]string // "students" -> "Students"
	keyByDisplay  map[string]string // lowercased display name -> "students"
	permSubroutes map[string][]string
	roleByModule  map[string]string // licensing display name -> role id
	defaultMods   []string
}

// New builds the catalog. The tables below are the single source of truth
// for what the installation can ever grant; unknown permission ids and
// unknown module names are dropped everywhere they appear.
func New() *Catalog {
	c := &Catalog{
		roles: []string{
			model.RoleOwner,
			model.RoleAdmin,
			model.RoleTeacher,
			model.RoleStudent,
			model.RoleDriver,
			model.RoleParent,
			model.RoleSuperadmin,
		},
		moduleKeys: []string{
			"dashboard", "students", "teachers", "parents", "attendance",
			"classes", "syllabus", "finance", "transport", "alerts", "settings",
		},
		displayByKey: map[string]string{
			"dashboard":  "Dashboard",
			"students":   "Students",
			"teachers":   "Teachers",
			"parents":    "Parents",
			"attendance": "Attendance",
			"classes":    "Classes",
			"syllabus":   "Syllabus",
			"finance":    "Finance",
			"transport":  "Transport",
			"alerts":     "Alerts",
			"settings":   "Settings",
		},
		permSubroutes: map[string][]string{
			"students.view":     {"/students"},
			"students.edit":     {"/students/new", "/students/import"},
			"teachers.view":     {"/teachers"},
			"teachers.edit":     {"/teachers/new"},
			"parents.view":      {"/parents"},
			"attendance.view":   {"/attendance"},
			"attendance.edit":   {"/attendance/manual"},
			"attendance.report": {"/attendance/reports"},
			"classes.view":      {"/classes"},
			"classes.edit":      {"/classes/new"},
			"syllabus.view":     {"/syllabus"},
			"finance.view":      {"/fees"},
			"finance.edit":      {"/fees/rules"},
			"finance.collect":   {"/fees/collect"},
			"transport.view":    {"/transport"},
			"transport.edit":    {"/transport/routes"},
			"transport.assign":  {"/transport/assignments"},
			"alerts.view":       {"/alerts"},
			"settings.view":     {"/settings"},
			"settings.edit":     {"/settings"},
		},
		// Which role a licensed module unlocks at the login gate. Owner is
		// implicitly allowed and never appears here.
		roleByModule: map[string]string{
			"Teachers":  model.RoleTeacher,
			"Students":  model.RoleStudent,
			"Parents":   model.RoleParent,
			"Transport": model.RoleDriver,
			"Dashboard": model.RoleAdmin,
			"Settings":  model.RoleAdmin,
		},
	}

	c.permissions = []Permission{
		{ID: "dashboard.view", Name: "View dashboard"},
		{ID: "students.view", Name: "View students"},
		{ID: "students.edit", Name: "Manage students"},
		{ID: "students.delete", Name: "Delete students"},
		{ID: "teachers.view", Name: "View teachers"},
		{ID: "teachers.edit", Name: "Manage teachers"},
		{ID: "parents.view", Name: "View parents"},
		{ID: "parents.edit", Name: "Manage parents"},
		{ID: "attendance.view", Name: "View attendance"},
		{ID: "attendance.edit", Name: "Record attendance"},
		{ID: "attendance.report", Name: "Attendance reports"},
		{ID: "classes.view", Name: "View classes"},
		{ID: "classes.edit", Name: "Manage classes"},
		{ID: "syllabus.view", Name: "View syllabus"},
		{ID: "syllabus.edit", Name: "Manage syllabus"},
		{ID: "finance.view", Name: "View fees"},
		{ID: "finance.edit", Name: "Manage fee rules"},
		{ID: "finance.collect", Name: "Collect fees"},
		{ID: "transport.view", Name: "View transport"},
		{ID: "transport.edit", Name: "Manage routes"},
		{ID: "transport.assign", Name: "Assign transport"},
		{ID: "alerts.view", Name: "View alerts"},
		{ID: "alerts.edit", Name: "Manage alerts"},
		{ID: "settings.view", Name: "View settings"},
		{ID: "settings.edit", Name: "Manage settings"},
	}

	c.permIndex = make(map[string]Permission, len(c.permissions))
	for i := range c.permissions {
		c.permissions[i].Module = ModuleOf(c.permissions[i].ID)
		c.permIndex[c.permissions[i].ID] = c.permissions[i]
	}

	c.keyByDisplay = make(map[string]string, len(c.displayByKey))
	for key, name := range c.displayByKey {
		c.keyByDisplay[strings.ToLower(name)] = key
	}

	// Seeded into licensing.allowed_modules when the owner key is first set.
	c.defaultMods = make([]string, 0, len(c.moduleKeys))
	for _, key := range c.moduleKeys {
		c.defaultMods = append(c.defaultMods, c.displayByKey[key])
	}

	return c
}

// ModuleOf returns the "<module>" prefix of a permission id.
func ModuleOf(permID string) string {
	if i := strings.IndexByte(permID, '.'); i > 0 {
		return permID[:i]
	}
	return permID
}

// Roles returns the fixed role list in display order.
func (c *Catalog) Roles() []string {
	return append([]string(nil), c.roles...)
}

// IsRole reports whether role is one of the fixed roles.
func (c *Catalog) IsRole(role string) bool {
	for _, r := range c.roles {
		if r == role {
			return true
		}
	}
	return false
}

// Permissions returns the full permission catalog.
func (c *Catalog) Permissions() []Permission {
	return append([]Permission(nil), c.permissions...)
}

// HasPermission reports whether id is a catalog member.
func (c *Catalog) HasPermission(id string) bool {
	_, ok := c.permIndex[id]
	return ok
}

// DefaultModules returns the module display names licensed by default when
// the owner completes initial setup.
func (c *Catalog) DefaultModules() []string {
	return append([]string(nil), c.defaultMods...)
}

// Filter drops permission ids that are not catalog members and deduplicates,
// preserving catalog order. Only the result is ever persisted.
func (c *Catalog) Filter(perms []string) []string {
	requested := make(map[string]bool, len(perms))
	for _, p := range perms {
		requested[p] = true
	}
	out := make([]string, 0, len(perms))
	for _, p := range c.permissions {
		if requested[p.ID] {
			out = append(out, p.ID)
		}
	}
	return out
}

// DeriveModules computes the module display names unlocked by a permission
// list: the distinct "<module>" prefixes mapped through the display-name
// table. Unmapped prefixes are dropped. Pure function of perms.
func (c *Catalog) DeriveModules(perms []string) []string {
	present := make(map[string]bool, len(perms))
	for _, p := range perms {
		present[ModuleOf(p)] = true
	}
	out := make([]string, 0, len(present))
	for _, key := range c.moduleKeys {
		if present[key] {
			out = append(out, c.displayByKey[key])
		}
	}
	return out
}

// DeriveSubroutes computes the union of UI subroutes unlocked by a
// permission list via the fixed permission->subroute table. A permission may
// contribute zero, one or several subroutes. Pure function of perms.
func (c *Catalog) DeriveSubroutes(perms []string) []string {
	seen := make(map[string]bool)
	out := make([]string, 0, len(perms))
	for _, p := range perms {
		for _, sr := range c.permSubroutes[p] {
			if !seen[sr] {
				seen[sr] = true
				out = append(out, sr)
			}
		}
	}
	sort.Strings(out)
	return out
}

// LicensedRoles maps licensed module display names to the role ids they
// unlock at the login gate. Owner is implicitly allowed and never listed.
func (c *Catalog) LicensedRoles(modules []string) []string {
	allowed := make(map[string]bool, len(modules))
	for _, m := range modules {
		if role, ok := c.roleByModule[m]; ok {
			allowed[role] = true
		}
	}
	out := make([]string, 0, len(allowed))
	for _, r := range c.roles {
		if allowed[r] {
			out = append(out, r)
		}
	}
	return out
}

// ModuleKeys normalizes module display names to lowercase internal keys.
// Names outside the fixed map are dropped.
func (c *Catalog) ModuleKeys(displayNames []string) []string {
	present := make(map[string]bool, len(displayNames))
	for _, name := range displayNames {
		if key, ok := c.keyByDisplay[strings.ToLower(strings.TrimSpace(name))]; ok {
			present[key] = true
		}
	}
	out := make([]string, 0, len(present))
	for _, key := range c.moduleKeys {
		if present[key] {
			out = append(out, key)
		}
	}
	return out
}

// EffectiveModuleKeys is the two-stage visibility rule: the intersection of
// the licensing-allowed modules and the admin-assigned modules, both
// normalized to internal keys. The assignment side is always the admin
// role's cache, for owner and admin requesters alike.
func (c *Catalog) EffectiveModuleKeys(licensed, assigned []string) []string {
	lic := make(map[string]bool)
	for _, key := range c.ModuleKeys(licensed) {
		lic[key] = true
	}
	out := make([]string, 0, len(lic))
	for _, key := range c.ModuleKeys(assigned) {
		if lic[key] {
			out = append(out, key)
		}
	}
	return out
}

// FilterPermsByModuleKeys keeps only permissions whose module prefix is in
// keys, preserving input order.
func FilterPermsByModuleKeys(perms []string, keys []string) []string {
	allowed := make(map[string]bool, len(keys))
	for _, k := range keys {
		allowed[k] = true
	}
	out := make([]string, 0, len(perms))
	for _, p := range perms {
		if allowed[ModuleOf(p)] {
			out = append(out, p)
		}
	}
	return out
}

// FilterCatalogByModuleKeys keeps only catalog entries whose module is in keys.
func (c *Catalog) FilterCatalogByModuleKeys(keys []string) []Permission {
	allowed := make(map[string]bool, len(keys))
	for _, k := range keys {
		allowed[k] = true
	}
	out := make([]Permission, 0, len(c.permissions))
	for _, p := range c.permissions {
		if allowed[p.Module] {
			out = append(out, p)
		}
	}
	return out
}
