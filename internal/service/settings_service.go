package service

import (
	"context"
	"encoding/json"
	"errors"
	"strconv"

	"backend/internal/model"
	"backend/internal/repository"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// LicensingConfig is the typed view over the licensing settings rows.
type LicensingConfig struct {
	Configured     bool     `json:"configured"`
	AllowedModules []string `json:"allowedModules"`
}

// ModuleAssignment is the derived per-role cache of allowed UI modules and
// subroutes. It is always recomputable from the role's permission set and is
// overwritten whole on every write (no incremental patching).
type ModuleAssignment struct {
	AllowModules   []string `json:"allowModules"`
	AllowSubroutes []string `json:"allowSubroutes"`
}

// SettingsService wraps the settings rows with one typed accessor per
// logical value so (de)serialization and parse-or-default behavior live in
// one place instead of scattered ad hoc parsing.
type SettingsService interface {
	Licensing(ctx context.Context) (LicensingConfig, error)
	// MarkLicensingConfigured only ever writes "true"; nothing on the login
	// path can flip the gate back.
	MarkLicensingConfigured(ctx context.Context) error
	SeedLicensedModules(ctx context.Context, modules []string) error
	SetLicensedModules(ctx context.Context, modules []string) error

	OwnerKeyHash(ctx context.Context) (string, error)
	// InitOwnerKeyHash atomically writes the hash only if no hash exists
	// yet, reporting whether this call won the write.
	InitOwnerKeyHash(ctx context.Context, hash string) (bool, error)

	RolePermissions(ctx context.Context, role string) ([]string, error)
	SetRolePermissions(ctx context.Context, role string, perms []string) error

	ModuleAssignmentFor(ctx context.Context, role string) (ModuleAssignment, error)
	SetModuleAssignment(ctx context.Context, role string, a ModuleAssignment) error

	RoleActive(ctx context.Context, role string) (bool, error)
	SetRoleActive(ctx context.Context, role string, active bool) error

	// Generic passthrough for the /settings admin surface.
	Get(ctx context.Context, key string) (*model.Setting, error)
	Set(ctx context.Context, key, value string) (*model.Setting, error)
	Delete(ctx context.Context, key string) error
	List(ctx context.Context) ([]model.Setting, error)
}

type settingsService struct {
	repo repository.SettingRepository
}

// NewSettingsService returns a new instance of SettingsService
func NewSettingsService(repo repository.SettingRepository) SettingsService {
	return &settingsService{repo: repo}
}

// stringValue returns the raw value or "" when the key is absent.
func (s *settingsService) stringValue(ctx context.Context, key string) (string, error) {
	row, err := s.repo.Get(ctx, key)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	return row.Value, nil
}

// jsonList parses a JSON string array value, defaulting to empty on absence
// or parse failure. A bad blob is logged and treated as empty rather than
// propagated; the value is operator-writable and must not brick logins.
func (s *settingsService) jsonList(ctx context.Context, key string) ([]string, error) {
	raw, err := s.stringValue(ctx, key)
	if err != nil {
		return nil, err
	}
	if raw == "" {
		return []string{}, nil
	}
	var out []string
	if err := json.Unmarshal([]byte(raw), &out); err != nil {
		logrus.WithField("key", key).WithError(err).Warn("unparseable settings list, defaulting to empty")
		return []string{}, nil
	}
	return out, nil
}

func (s *settingsService) setJSONList(ctx context.Context, key string, values []string) error {
	if values == nil {
		values = []string{}
	}
	raw, err := json.Marshal(values)
	if err != nil {
		return err
	}
	_, err = s.repo.Set(ctx, key, string(raw))
	return err
}

func (s *settingsService) Licensing(ctx context.Context) (LicensingConfig, error) {
	configured, err := s.stringValue(ctx, model.SettingLicensingConfigured)
	if err != nil {
		return LicensingConfig{}, err
	}
	modules, err := s.jsonList(ctx, model.SettingLicensedModules)
	if err != nil {
		return LicensingConfig{}, err
	}
	return LicensingConfig{
		Configured:     configured == "true",
		AllowedModules: modules,
	}, nil
}

func (s *settingsService) MarkLicensingConfigured(ctx context.Context) error {
	_, err := s.repo.Set(ctx, model.SettingLicensingConfigured, "true")
	return err
}

func (s *settingsService) SeedLicensedModules(ctx context.Context, modules []string) error {
	raw, err := json.Marshal(modules)
	if err != nil {
		return err
	}
	_, err = s.repo.SetIfAbsent(ctx, model.SettingLicensedModules, string(raw))
	return err
}

func (s *settingsService) SetLicensedModules(ctx context.Context, modules []string) error {
	return s.setJSONList(ctx, model.SettingLicensedModules, modules)
}

func (s *settingsService) OwnerKeyHash(ctx context.Context) (string, error) {
	return s.stringValue(ctx, model.SettingOwnerKeyHash)
}

func (s *settingsService) InitOwnerKeyHash(ctx context.Context, hash string) (bool, error) {
	return s.repo.SetIfAbsent(ctx, model.SettingOwnerKeyHash, hash)
}

func (s *settingsService) RolePermissions(ctx context.Context, role string) ([]string, error) {
	return s.jsonList(ctx, model.SettingRolePermsPrefix+role)
}

func (s *settingsService) SetRolePermissions(ctx context.Context, role string, perms []string) error {
	return s.setJSONList(ctx, model.SettingRolePermsPrefix+role, perms)
}

func (s *settingsService) ModuleAssignmentFor(ctx context.Context, role string) (ModuleAssignment, error) {
	modules, err := s.jsonList(ctx, model.SettingAllowModulesPrefix+role)
	if err != nil {
		return ModuleAssignment{}, err
	}
	subroutes, err := s.jsonList(ctx, model.SettingAllowSubroutePrefix+role)
	if err != nil {
		return ModuleAssignment{}, err
	}
	return ModuleAssignment{AllowModules: modules, AllowSubroutes: subroutes}, nil
}

func (s *settingsService) SetModuleAssignment(ctx context.Context, role string, a ModuleAssignment) error {
	if err := s.setJSONList(ctx, model.SettingAllowModulesPrefix+role, a.AllowModules); err != nil {
		return err
	}
	return s.setJSONList(ctx, model.SettingAllowSubroutePrefix+role, a.AllowSubroutes)
}

func (s *settingsService) RoleActive(ctx context.Context, role string) (bool, error) {
	raw, err := s.stringValue(ctx, model.SettingRoleActivePrefix+role)
	if err != nil {
		return false, err
	}
	// Default active when absent; the flag is advisory metadata.
	if raw == "" {
		return true, nil
	}
	return raw == "true", nil
}

func (s *settingsService) SetRoleActive(ctx context.Context, role string, active bool) error {
	_, err := s.repo.Set(ctx, model.SettingRoleActivePrefix+role, strconv.FormatBool(active))
	return err
}

func (s *settingsService) Get(ctx context.Context, key string) (*model.Setting, error) {
	row, err := s.repo.Get(ctx, key)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, NotFound("setting not found")
	}
	return row, err
}

func (s *settingsService) Set(ctx context.Context, key, value string) (*model.Setting, error) {
	return s.repo.Set(ctx, key, value)
}

func (s *settingsService) Delete(ctx context.Context, key string) error {
	return s.repo.Delete(ctx, key)
}

func (s *settingsService) List(ctx context.Context) ([]model.Setting, error) {
	return s.repo.List(ctx)
}
