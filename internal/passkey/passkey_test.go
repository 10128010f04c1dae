package passkey

import (
	"context"
	"testing"
	"time"

	"github.com/go-webauthn/webauthn/protocol"
	"github.com/go-webauthn/webauthn/webauthn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"clubhub/internal/config"
	"clubhub/internal/db"
	"clubhub/internal/models"
)

func newService(t *testing.T) (*Service, *gorm.DB) {
	t.Helper()
	gdb := db.NewTestDB(t)
	svc, err := NewService(config.WebAuthnSettings{
		RPID:          "localhost",
		RPDisplayName: "Clubhub",
		RPOrigins:     []string{"http://localhost:8080"},
	}, gdb, NewGormStore(gdb))
	require.NoError(t, err)
	return svc, gdb
}

func createProfile(t *testing.T, gdb *gorm.DB, email string) *models.Profile {
	t.Helper()
	p := &models.Profile{Email: email, FullName: "Sam Rider", Status: models.ProfileActive, CalendarToken: email}
	require.NoError(t, gdb.Create(p).Error)
	return p
}

func TestCredentialConversion(t *testing.T) {
	cred := &webauthn.Credential{
		ID:              []byte{0x01, 0xfe, 0x7a},
		PublicKey:       []byte("public-key"),
		AttestationType: "none",
		Transport:       []protocol.AuthenticatorTransport{protocol.USB, protocol.Internal},
		Flags:           webauthn.CredentialFlags{BackupEligible: true, BackupState: true},
		Authenticator:   webauthn.Authenticator{AAGUID: []byte("aaguid"), SignCount: 7},
	}

	pk := fromCredential(3, "Laptop", cred)
	assert.Equal(t, "Af56", pk.CredentialID)
	assert.Equal(t, "usb,internal", pk.Transports)
	assert.True(t, pk.BackupEligible)

	back, err := toCredential(pk)
	require.NoError(t, err)
	assert.Equal(t, cred.ID, back.ID)
	assert.Equal(t, cred.Transport, back.Transport)
	assert.Equal(t, uint32(7), back.Authenticator.SignCount)
	assert.True(t, back.Flags.BackupState)

	_, err = toCredential(models.Passkey{CredentialID: "not base64!"})
	assert.Error(t, err)
}

func TestUserAdapter(t *testing.T) {
	u := &user{profile: &models.Profile{ID: 42, Email: "a@example.org"}}
	assert.Equal(t, []byte("42"), u.WebAuthnID())
	assert.Equal(t, "a@example.org", u.WebAuthnDisplayName())
	assert.Empty(t, u.WebAuthnCredentials())

	u.profile.FullName = "Alex"
	assert.Equal(t, "Alex", u.WebAuthnDisplayName())
}

func TestGormStore(t *testing.T) {
	gdb := db.NewTestDB(t)
	store := NewGormStore(gdb).(*gormStore)
	ctx := context.Background()

	now := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)
	store.now = func() time.Time { return now }

	session := &webauthn.SessionData{Challenge: "challenge-1", UserID: []byte("1")}
	require.NoError(t, store.Save(ctx, "register:1", session))

	got, err := store.Load(ctx, "register:1")
	require.NoError(t, err)
	assert.Equal(t, "challenge-1", got.Challenge)

	_, err = store.Load(ctx, "register:1")
	assert.ErrorIs(t, err, ErrSessionNotFound, "load consumes the session")

	require.NoError(t, store.Save(ctx, "login:1", session))
	require.NoError(t, store.Save(ctx, "login:1", &webauthn.SessionData{Challenge: "challenge-2"}))
	now = now.Add(SessionTTL + time.Second)
	_, err = store.Load(ctx, "login:1")
	assert.ErrorIs(t, err, ErrSessionNotFound, "expired sessions are rejected")
}

func TestBeginRegistration_ExcludesExisting(t *testing.T) {
	svc, gdb := newService(t)
	ctx := context.Background()
	p := createProfile(t, gdb, "sam@example.org")

	existing := fromCredential(p.ID, "Phone", &webauthn.Credential{ID: []byte("cred-1"), PublicKey: []byte("k")})
	require.NoError(t, gdb.Create(&existing).Error)

	opts, err := svc.BeginRegistration(ctx, p)
	require.NoError(t, err)
	require.Len(t, opts.Response.CredentialExcludeList, 1)
	assert.Equal(t, protocol.URLEncodedBase64("cred-1"), opts.Response.CredentialExcludeList[0].CredentialID)

	var count int64
	require.NoError(t, gdb.Model(&models.WebauthnSession{}).Where("session_key = ?", registrationKey(p.ID)).Count(&count).Error)
	assert.Equal(t, int64(1), count)
}

func TestBeginLogin(t *testing.T) {
	svc, gdb := newService(t)
	ctx := context.Background()
	p := createProfile(t, gdb, "sam@example.org")

	_, err := svc.BeginLogin(ctx, "nobody@example.org")
	assert.ErrorIs(t, err, gorm.ErrRecordNotFound)

	_, err = svc.BeginLogin(ctx, "sam@example.org")
	assert.ErrorIs(t, err, ErrNoPasskeys)

	pk := fromCredential(p.ID, "Phone", &webauthn.Credential{ID: []byte("cred-1"), PublicKey: []byte("k")})
	require.NoError(t, gdb.Create(&pk).Error)

	opts, err := svc.BeginLogin(ctx, " SAM@example.org ")
	require.NoError(t, err)
	assert.Len(t, opts.Response.AllowedCredentials, 1)
}

func TestListAndDelete(t *testing.T) {
	svc, gdb := newService(t)
	ctx := context.Background()
	owner := createProfile(t, gdb, "owner@example.org")
	other := createProfile(t, gdb, "other@example.org")

	pk := fromCredential(owner.ID, "Phone", &webauthn.Credential{ID: []byte("cred-1")})
	require.NoError(t, gdb.Create(&pk).Error)

	keys, err := svc.List(ctx, owner.ID)
	require.NoError(t, err)
	assert.Len(t, keys, 1)

	assert.ErrorIs(t, svc.Delete(ctx, other.ID, pk.ID), gorm.ErrRecordNotFound)
	require.NoError(t, svc.Delete(ctx, owner.ID, pk.ID))

	keys, err = svc.List(ctx, owner.ID)
	require.NoError(t, err)
	assert.Empty(t, keys)
}
