package handlers

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"gorm.io/gorm"

	"clubhub/internal/csvimport"
	"clubhub/internal/notify"
	"clubhub/internal/passkey"
)

func TestStatusFor(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{fmt.Errorf("event %w", ErrNotFound), http.StatusNotFound},
		{gorm.ErrRecordNotFound, http.StatusNotFound},
		{fmt.Errorf("%w: nope", ErrForbidden), http.StatusForbidden},
		{fmt.Errorf("%w: taken", ErrConflict), http.StatusConflict},
		{gorm.ErrDuplicatedKey, http.StatusConflict},
		{fmt.Errorf("%w: bad", ErrInvalid), http.StatusBadRequest},
		{fmt.Errorf("%w: title", notify.ErrInvalid), http.StatusBadRequest},
		{fmt.Errorf("%w: first_name", csvimport.ErrMissingColumn), http.StatusBadRequest},
		{csvimport.ErrRejected, http.StatusUnprocessableEntity},
		{passkey.ErrSessionNotFound, http.StatusUnauthorized},
		{errors.New("connection reset"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, statusFor(tt.err), tt.err.Error())
	}
}

func TestUniqueIDs(t *testing.T) {
	assert.Equal(t, []int64{3, 1}, uniqueIDs([]int64{3, 0, 1, 3, -2}))
	assert.Equal(t, []int64{}, uniqueIDs(nil))
}

func TestParseTimeParam(t *testing.T) {
	ts, err := parseTimeParam("2026-05-01")
	assert.NoError(t, err)
	assert.Equal(t, 2026, ts.Year())

	_, err = parseTimeParam("2026-05-01T10:00:00Z")
	assert.NoError(t, err)

	_, err = parseTimeParam("yesterday")
	assert.Error(t, err)
}
