package service

import (
	"context"
	"errors"
	"strings"

	"backend/internal/config"
	"backend/internal/model"
	"backend/internal/rbac"
	"backend/internal/repository"

	"github.com/sirupsen/logrus"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

// LicensingSnapshot is the gate state resolved once per login attempt. The
// decision rule never re-reads mid-evaluation.
type LicensingSnapshot struct {
	Configured     bool
	AllowedModules []string
	AllowedRoles   []string
}

// LicensingService owns the licensing gate and the owner bootstrap flow:
// whether initial setup has completed, which modules are licensed, and the
// one-time owner-key initialization that unlocks all non-owner logins.
type LicensingService interface {
	Snapshot(ctx context.Context) (LicensingSnapshot, error)
	// CheckRole applies the gate decision rule to a non-owner candidate.
	CheckRole(snap LicensingSnapshot, role string) error
	// BootstrapOwner runs the idempotent owner login flow: account
	// creation with the server-configured password, password verification,
	// and owner-key initialization or re-proof.
	BootstrapOwner(ctx context.Context, password, ownerKey string) (*model.User, error)
	IsOwnerEmail(email string) bool
}

type licensingService struct {
	settings SettingsService
	users    repository.UserRepository
	catalog  *rbac.Catalog
	owner    config.OwnerConfig
	audit    AuditService
	notify   Notifier
}

// NewLicensingService returns a new instance of LicensingService
func NewLicensingService(
	settings SettingsService,
	users repository.UserRepository,
	catalog *rbac.Catalog,
	owner config.OwnerConfig,
	audit AuditService,
	notify Notifier,
) LicensingService {
	if notify == nil {
		notify = NopNotifier{}
	}
	return &licensingService{
		settings: settings,
		users:    users,
		catalog:  catalog,
		owner:    owner,
		audit:    audit,
		notify:   notify,
	}
}

func (s *licensingService) IsOwnerEmail(email string) bool {
	return strings.EqualFold(strings.TrimSpace(email), s.owner.Email)
}

func (s *licensingService) Snapshot(ctx context.Context) (LicensingSnapshot, error) {
	cfg, err := s.settings.Licensing(ctx)
	if err != nil {
		return LicensingSnapshot{}, err
	}

	snap := LicensingSnapshot{
		Configured:     cfg.Configured,
		AllowedModules: cfg.AllowedModules,
	}
	if s.owner.ForceSetup {
		// Escape hatch: the installation is treated as always configured,
		// with the hard-coded default module list when none is stored.
		snap.Configured = true
		if len(snap.AllowedModules) == 0 {
			snap.AllowedModules = s.catalog.DefaultModules()
		}
	}
	snap.AllowedRoles = s.catalog.LicensedRoles(snap.AllowedModules)
	return snap, nil
}

func (s *licensingService) CheckRole(snap LicensingSnapshot, role string) error {
	if !snap.Configured {
		return ErrSetupPending
	}
	if len(snap.AllowedRoles) == 0 {
		return nil
	}
	for _, r := range snap.AllowedRoles {
		if r == role {
			return nil
		}
	}
	return ErrRoleNotLicensed
}

// ensureOwnerAccount returns the owner row, creating it with the
// server-configured password when missing. The caller-supplied password is
// never used for creation, so a first-boot race cannot seed an
// attacker-chosen credential. A lost create race falls back to re-fetch.
func (s *licensingService) ensureOwnerAccount(ctx context.Context) (*model.User, error) {
	user, err := s.users.GetByEmail(ctx, s.owner.Email)
	if err == nil {
		return user, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(s.owner.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, err
	}
	user = &model.User{
		Username: s.owner.Email,
		Email:    s.owner.Email,
		Name:     "Owner",
		Password: string(hash),
		Role:     model.RoleOwner,
	}
	if createErr := s.users.Create(ctx, user); createErr != nil {
		// Unique index on email: another request created the row first.
		if existing, getErr := s.users.GetByEmail(ctx, s.owner.Email); getErr == nil {
			return existing, nil
		}
		return nil, createErr
	}

	s.audit.Record(ctx, nil, model.ActionOwnerBootstrap, user.ID.String(), user.Email, nil)
	return user, nil
}

func (s *licensingService) BootstrapOwner(ctx context.Context, password, ownerKey string) (*model.User, error) {
	user, err := s.ensureOwnerAccount(ctx)
	if err != nil {
		return nil, err
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(password)); err != nil {
		return nil, ErrInvalidCredentials
	}

	if s.owner.ForceSetup {
		return user, nil
	}

	storedHash, err := s.settings.OwnerKeyHash(ctx)
	if err != nil {
		return nil, err
	}

	switch {
	case storedHash == "":
		if err := s.initOwnerKey(ctx, user, ownerKey); err != nil {
			return nil, err
		}
	case ownerKey != "":
		// Key already set and re-supplied: re-prove it. Once set the key is
		// immutable via the login path.
		if err := bcrypt.CompareHashAndPassword([]byte(storedHash), []byte(ownerKey)); err != nil {
			return nil, ErrInvalidOwnerKey
		}
	default:
		// Key set, none supplied: the key step is only required once to
		// set, optional to re-prove afterwards.
	}

	return user, nil
}

// initOwnerKey performs the single state transition that unlocks all
// non-owner logins: persist the key hash, flip licensing.configured and
// seed the default licensed modules. The hash write is a conditional upsert
// so two racing first logins cannot overwrite each other; the loser must
// verify against the winning hash.
func (s *licensingService) initOwnerKey(ctx context.Context, owner *model.User, ownerKey string) error {
	if ownerKey == "" {
		return OwnerKeyRequired(s.owner.KeyMinLength)
	}
	if len(ownerKey) < s.owner.KeyMinLength {
		return OwnerKeyRequired(s.owner.KeyMinLength)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(ownerKey), bcrypt.DefaultCost)
	if err != nil {
		return err
	}

	won, err := s.settings.InitOwnerKeyHash(ctx, string(hash))
	if err != nil {
		return err
	}
	if !won {
		current, err := s.settings.OwnerKeyHash(ctx)
		if err != nil {
			return err
		}
		if bcrypt.CompareHashAndPassword([]byte(current), []byte(ownerKey)) != nil {
			return ErrInvalidOwnerKey
		}
		return nil
	}

	if err := s.settings.MarkLicensingConfigured(ctx); err != nil {
		return err
	}
	defaults := s.catalog.DefaultModules()
	if err := s.settings.SeedLicensedModules(ctx, defaults); err != nil {
		return err
	}

	logrus.WithField("modules", len(defaults)).Info("licensing configured by owner")
	s.audit.Record(ctx, &owner.ID, model.ActionLicensingConfigured, model.SettingLicensingConfigured, "", map[string]interface{}{
		"allowed_modules": defaults,
	})
	s.notify.AccessControlChanged(model.ActionLicensingConfigured, "")
	return nil
}
