package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/go-webauthn/webauthn/protocol"

	"clubhub/internal/audit"
	"clubhub/internal/auth"
)

// BeginPasskeyRegistration returns creation options for the caller.
func BeginPasskeyRegistration(d *Deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		opts, err := d.Passkeys.BeginRegistration(c, auth.CurrentProfile(c))
		if err != nil {
			d.respond(c, err)
			return
		}
		c.JSON(http.StatusOK, opts)
	}
}

// FinishPasskeyRegistration verifies the attestation body and stores the credential as ?name=.
func FinishPasskeyRegistration(d *Deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		pk, err := d.Passkeys.FinishRegistration(c, auth.CurrentProfile(c), c.Query("name"), c.Request)
		if err != nil {
			var verifyErr *protocol.Error
			if errors.As(err, &verifyErr) {
				c.JSON(http.StatusBadRequest, gin.H{"error": verifyErr.Details})
				return
			}
			d.respond(c, err)
			return
		}
		d.record(c, audit.Entry{
			Action: "passkeys.register", ResourceType: "passkey", ResourceID: pk.ID,
			Metadata: map[string]interface{}{"name": pk.Name},
		})
		c.JSON(http.StatusCreated, gin.H{"passkey": pk})
	}
}

func ListPasskeys(d *Deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		keys, err := d.Passkeys.List(c, auth.CurrentProfile(c).ID)
		if err != nil {
			d.respond(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"passkeys": keys})
	}
}

// DeletePasskey removes one of the caller's own passkeys.
func DeletePasskey(d *Deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := paramID(c, "id")
		if !ok {
			return
		}
		if err := d.Passkeys.Delete(c, auth.CurrentProfile(c).ID, id); err != nil {
			d.respond(c, err)
			return
		}
		d.record(c, audit.Entry{Action: "passkeys.delete", ResourceType: "passkey", ResourceID: id})
		c.Status(http.StatusNoContent)
	}
}
