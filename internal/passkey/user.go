package passkey

import (
	"encoding/base64"
	"strconv"
	"strings"

	"github.com/go-webauthn/webauthn/protocol"
	"github.com/go-webauthn/webauthn/webauthn"

	"clubhub/internal/models"
)

// user adapts a profile and its stored passkeys to webauthn.User.
type user struct {
	profile  *models.Profile
	passkeys []models.Passkey
}

func (u *user) WebAuthnID() []byte {
	return []byte(strconv.FormatInt(u.profile.ID, 10))
}

func (u *user) WebAuthnName() string {
	return u.profile.Email
}

func (u *user) WebAuthnDisplayName() string {
	if u.profile.FullName != "" {
		return u.profile.FullName
	}
	return u.profile.Email
}

func (u *user) WebAuthnCredentials() []webauthn.Credential {
	creds := make([]webauthn.Credential, 0, len(u.passkeys))
	for _, pk := range u.passkeys {
		if c, err := toCredential(pk); err == nil {
			creds = append(creds, c)
		}
	}
	return creds
}

func (u *user) descriptors() []protocol.CredentialDescriptor {
	creds := u.WebAuthnCredentials()
	out := make([]protocol.CredentialDescriptor, len(creds))
	for i, c := range creds {
		out[i] = c.Descriptor()
	}
	return out
}

// EncodeCredentialID is the stored form of a raw credential id.
func EncodeCredentialID(id []byte) string {
	return base64.RawURLEncoding.EncodeToString(id)
}

func toCredential(pk models.Passkey) (webauthn.Credential, error) {
	id, err := base64.RawURLEncoding.DecodeString(pk.CredentialID)
	if err != nil {
		return webauthn.Credential{}, err
	}

	var transports []protocol.AuthenticatorTransport
	for _, t := range strings.Split(pk.Transports, ",") {
		if t != "" {
			transports = append(transports, protocol.AuthenticatorTransport(t))
		}
	}

	return webauthn.Credential{
		ID:              id,
		PublicKey:       pk.PublicKey,
		AttestationType: pk.AttestationType,
		Transport:       transports,
		Flags: webauthn.CredentialFlags{
			UserPresent:    true,
			BackupEligible: pk.BackupEligible,
			BackupState:    pk.BackupState,
		},
		Authenticator: webauthn.Authenticator{
			AAGUID:    pk.AAGUID,
			SignCount: pk.SignCount,
		},
	}, nil
}

func fromCredential(profileID int64, name string, c *webauthn.Credential) models.Passkey {
	transports := make([]string, len(c.Transport))
	for i, t := range c.Transport {
		transports[i] = string(t)
	}

	return models.Passkey{
		ProfileID:       profileID,
		CredentialID:    EncodeCredentialID(c.ID),
		PublicKey:       c.PublicKey,
		AttestationType: c.AttestationType,
		AAGUID:          c.Authenticator.AAGUID,
		SignCount:       c.Authenticator.SignCount,
		Transports:      strings.Join(transports, ","),
		BackupEligible:  c.Flags.BackupEligible,
		BackupState:     c.Flags.BackupState,
		Name:            name,
	}
}
