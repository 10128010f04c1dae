package passkey

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-webauthn/webauthn/protocol"
	"github.com/go-webauthn/webauthn/webauthn"
	"gorm.io/gorm"

	"clubhub/internal/config"
	"clubhub/internal/models"
)

var (
	ErrNoPasskeys = errors.New("no passkeys registered")
	ErrUnknownKey = errors.New("unknown passkey")
)

// Service runs registration and login ceremonies against stored passkeys.
type Service struct {
	wa    *webauthn.WebAuthn
	db    *gorm.DB
	store SessionStore
	now   func() time.Time
}

func NewService(settings config.WebAuthnSettings, db *gorm.DB, store SessionStore) (*Service, error) {
	wa, err := webauthn.New(&webauthn.Config{
		RPID:          settings.RPID,
		RPDisplayName: settings.RPDisplayName,
		RPOrigins:     settings.RPOrigins,
	})
	if err != nil {
		return nil, fmt.Errorf("invalid webauthn settings: %w", err)
	}
	return &Service{wa: wa, db: db, store: store, now: time.Now}, nil
}

func registrationKey(profileID int64) string { return fmt.Sprintf("register:%d", profileID) }
func loginKey(profileID int64) string        { return fmt.Sprintf("login:%d", profileID) }

func (s *Service) loadUser(ctx context.Context, p *models.Profile) (*user, error) {
	var keys []models.Passkey
	if err := s.db.WithContext(ctx).Where("profile_id = ?", p.ID).Order("id").Find(&keys).Error; err != nil {
		return nil, err
	}
	return &user{profile: p, passkeys: keys}, nil
}

// BeginRegistration returns creation options that exclude the profile's existing credentials.
func (s *Service) BeginRegistration(ctx context.Context, p *models.Profile) (*protocol.CredentialCreation, error) {
	u, err := s.loadUser(ctx, p)
	if err != nil {
		return nil, err
	}

	opts, session, err := s.wa.BeginRegistration(u,
		webauthn.WithExclusions(u.descriptors()),
		webauthn.WithResidentKeyRequirement(protocol.ResidentKeyRequirementPreferred),
	)
	if err != nil {
		return nil, err
	}
	if err := s.store.Save(ctx, registrationKey(p.ID), session); err != nil {
		return nil, err
	}
	return opts, nil
}

// FinishRegistration verifies the attestation in r and stores the new credential.
func (s *Service) FinishRegistration(ctx context.Context, p *models.Profile, name string, r *http.Request) (*models.Passkey, error) {
	session, err := s.store.Load(ctx, registrationKey(p.ID))
	if err != nil {
		return nil, err
	}
	u, err := s.loadUser(ctx, p)
	if err != nil {
		return nil, err
	}

	cred, err := s.wa.FinishRegistration(u, *session, r)
	if err != nil {
		return nil, err
	}

	name = strings.TrimSpace(name)
	if name == "" {
		name = "Passkey"
	}
	pk := fromCredential(p.ID, name, cred)
	if err := s.db.WithContext(ctx).Create(&pk).Error; err != nil {
		return nil, err
	}
	return &pk, nil
}

// BeginLogin returns assertion options for the profile with email.
func (s *Service) BeginLogin(ctx context.Context, email string) (*protocol.CredentialAssertion, error) {
	p, err := s.profileByEmail(ctx, email)
	if err != nil {
		return nil, err
	}
	u, err := s.loadUser(ctx, p)
	if err != nil {
		return nil, err
	}
	if len(u.passkeys) == 0 {
		return nil, ErrNoPasskeys
	}

	opts, session, err := s.wa.BeginLogin(u)
	if err != nil {
		return nil, err
	}
	if err := s.store.Save(ctx, loginKey(p.ID), session); err != nil {
		return nil, err
	}
	return opts, nil
}

// FinishLogin verifies the assertion in r and returns the authenticated profile.
func (s *Service) FinishLogin(ctx context.Context, email string, r *http.Request) (*models.Profile, error) {
	p, err := s.profileByEmail(ctx, email)
	if err != nil {
		return nil, err
	}
	session, err := s.store.Load(ctx, loginKey(p.ID))
	if err != nil {
		return nil, err
	}
	u, err := s.loadUser(ctx, p)
	if err != nil {
		return nil, err
	}

	cred, err := s.wa.FinishLogin(u, *session, r)
	if err != nil {
		return nil, err
	}

	now := s.now()
	res := s.db.WithContext(ctx).Model(&models.Passkey{}).
		Where("profile_id = ? AND credential_id = ?", p.ID, EncodeCredentialID(cred.ID)).
		Updates(map[string]interface{}{
			"sign_count":   cred.Authenticator.SignCount,
			"backup_state": cred.Flags.BackupState,
			"last_used_at": now,
		})
	if res.Error != nil {
		return nil, res.Error
	}
	if res.RowsAffected == 0 {
		return nil, ErrUnknownKey
	}
	return p, nil
}

// List returns the profile's passkeys, oldest first.
func (s *Service) List(ctx context.Context, profileID int64) ([]models.Passkey, error) {
	var keys []models.Passkey
	err := s.db.WithContext(ctx).Where("profile_id = ?", profileID).Order("id").Find(&keys).Error
	return keys, err
}

// Delete removes one of the profile's own passkeys.
func (s *Service) Delete(ctx context.Context, profileID, id int64) error {
	res := s.db.WithContext(ctx).Where("id = ? AND profile_id = ?", id, profileID).Delete(&models.Passkey{})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

func (s *Service) profileByEmail(ctx context.Context, email string) (*models.Profile, error) {
	var p models.Profile
	err := s.db.WithContext(ctx).Where("email = ?", strings.ToLower(strings.TrimSpace(email))).First(&p).Error
	if err != nil {
		return nil, err
	}
	return &p, nil
}
