package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"clubhub/internal/csvimport"
	"clubhub/internal/notify"
	"clubhub/internal/passkey"
)

var (
	ErrNotFound  = errors.New("not found")
	ErrForbidden = errors.New("forbidden")
	ErrConflict  = errors.New("conflict")
	ErrInvalid   = errors.New("invalid request")
)

// statusFor maps domain errors onto HTTP statuses; anything unknown is a 500.
func statusFor(err error) int {
	switch {
	case errors.Is(err, ErrNotFound), errors.Is(err, gorm.ErrRecordNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, ErrConflict), errors.Is(err, gorm.ErrDuplicatedKey):
		return http.StatusConflict
	case errors.Is(err, ErrInvalid), errors.Is(err, notify.ErrInvalid),
		errors.Is(err, csvimport.ErrEmptyFile), errors.Is(err, csvimport.ErrMissingColumn),
		errors.Is(err, csvimport.ErrTooManyRows), errors.Is(err, csvimport.ErrMalformed):
		return http.StatusBadRequest
	case errors.Is(err, csvimport.ErrRejected):
		return http.StatusUnprocessableEntity
	case errors.Is(err, passkey.ErrSessionNotFound), errors.Is(err, passkey.ErrUnknownKey):
		return http.StatusUnauthorized
	default:
		return http.StatusInternalServerError
	}
}

// respond writes err as {"error": ...}. Server errors are logged and answered generically.
func (d *Deps) respond(c *gin.Context, err error) {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		d.Log.Error(c.Request.Method, " ", c.FullPath(), ": ", err)
		c.JSON(status, gin.H{"error": "internal server error"})
		return
	}
	if errors.Is(err, gorm.ErrRecordNotFound) {
		c.JSON(status, gin.H{"error": "not found"})
		return
	}
	c.JSON(status, gin.H{"error": err.Error()})
}

func badRequest(c *gin.Context, err error) {
	c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
}

// paramID parses a positive integer path parameter, answering 400 when it is malformed.
func paramID(c *gin.Context, name string) (int64, bool) {
	id, err := strconv.ParseInt(c.Param(name), 10, 64)
	if err != nil || id <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid " + name})
		return 0, false
	}
	return id, true
}
