package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"clubhub/internal/db"
	"clubhub/internal/models"
)

const testSecret = "test-secret-123"

func TestIssueAndParseToken(t *testing.T) {
	p := &models.Profile{ID: 42, Email: "coach@example.org"}
	tok, err := IssueToken(testSecret, p, time.Hour, time.Now())
	require.NoError(t, err)

	claims, err := ParseToken(testSecret, tok)
	require.NoError(t, err)
	assert.Equal(t, int64(42), claims.ProfileID)
	assert.Equal(t, "coach@example.org", claims.Email)

	_, err = ParseToken("other-secret", tok)
	assert.Error(t, err)
}

func TestParseToken_Expired(t *testing.T) {
	p := &models.Profile{ID: 1, Email: "a@example.org"}
	tok, err := IssueToken(testSecret, p, time.Minute, time.Now().Add(-time.Hour))
	require.NoError(t, err)

	_, err = ParseToken(testSecret, tok)
	assert.Error(t, err)
}

func TestPasswordHashing(t *testing.T) {
	_, err := HashPassword("short")
	assert.ErrorIs(t, err, ErrWeakPassword)

	hash, err := HashPassword("long-enough")
	require.NoError(t, err)
	assert.True(t, CheckPassword(hash, "long-enough"))
	assert.False(t, CheckPassword(hash, "wrong-password"))
	assert.False(t, CheckPassword("", "long-enough"))
}

func TestJWTMiddleware(t *testing.T) {
	gin.SetMode(gin.TestMode)
	gdb := db.NewTestDB(t)

	active := models.Profile{Email: "active@example.org", Status: models.ProfileActive, CalendarToken: "a"}
	suspended := models.Profile{Email: "suspended@example.org", Status: models.ProfileSuspended, CalendarToken: "b"}
	require.NoError(t, gdb.Create(&active).Error)
	require.NoError(t, gdb.Create(&suspended).Error)

	r := gin.New()
	r.GET("/me", JWT(gdb, testSecret), func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"email": CurrentProfile(c).Email})
	})

	activeTok, _ := IssueToken(testSecret, &active, time.Hour, time.Now())
	suspendedTok, _ := IssueToken(testSecret, &suspended, time.Hour, time.Now())
	ghostTok, _ := IssueToken(testSecret, &models.Profile{ID: 999}, time.Hour, time.Now())

	tests := []struct {
		name   string
		header string
		cookie string
		status int
	}{
		{name: "missing token", status: http.StatusUnauthorized},
		{name: "garbage token", header: "Bearer nope", status: http.StatusUnauthorized},
		{name: "bearer header", header: "Bearer " + activeTok, status: http.StatusOK},
		{name: "cookie", cookie: activeTok, status: http.StatusOK},
		{name: "suspended", header: "Bearer " + suspendedTok, status: http.StatusForbidden},
		{name: "unknown profile", header: "Bearer " + ghostTok, status: http.StatusUnauthorized},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/me", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			if tt.cookie != "" {
				req.AddCookie(&http.Cookie{Name: CookieName, Value: tt.cookie})
			}
			w := httptest.NewRecorder()
			r.ServeHTTP(w, req)
			assert.Equal(t, tt.status, w.Code)
		})
	}
}

func TestInviteTokens(t *testing.T) {
	tok, hash, err := NewInviteToken()
	require.NoError(t, err)
	assert.Len(t, hash, 64)
	assert.Equal(t, hash, HashToken(tok))
	assert.NotEqual(t, tok, hash)

	other, _, err := NewInviteToken()
	require.NoError(t, err)
	assert.NotEqual(t, tok, other)

	assert.Len(t, NewCalendarToken(), 32)
	assert.NotEqual(t, NewCalendarToken(), NewCalendarToken())
}
