package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newService(t *testing.T, now func() time.Time) *JWTService {
	t.Helper()
	svc, err := NewJWTService(JWTConfig{Secret: "test-secret", Issuer: "circlet", TokenTTL: time.Hour, Clock: now})
	require.NoError(t, err)
	return svc
}

func TestIssueAndVerify(t *testing.T) {
	svc := newService(t, nil)

	token, err := svc.Issue("user-1")
	require.NoError(t, err)

	userID, err := svc.Verify(token)
	require.NoError(t, err)
	assert.Equal(t, "user-1", userID)
}

func TestVerifyRejectsExpiredToken(t *testing.T) {
	issuedAt := time.Now().Add(-2 * time.Hour)
	token, err := newService(t, func() time.Time { return issuedAt }).Issue("user-1")
	require.NoError(t, err)

	_, err = newService(t, nil).Verify(token)
	require.ErrorIs(t, err, ErrInvalidToken)
}

func TestVerifyRejectsForeignSecret(t *testing.T) {
	other, err := NewJWTService(JWTConfig{Secret: "other", Issuer: "circlet"})
	require.NoError(t, err)
	token, err := other.Issue("user-1")
	require.NoError(t, err)

	_, err = newService(t, nil).Verify(token)
	require.ErrorIs(t, err, ErrInvalidToken)
}

func TestVerifyEmptyToken(t *testing.T) {
	_, err := newService(t, nil).Verify("")
	require.ErrorIs(t, err, ErrMissingToken)
}

func TestNewJWTServiceRequiresSecret(t *testing.T) {
	_, err := NewJWTService(JWTConfig{})
	require.Error(t, err)
}

func TestTokenFromRequest(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/ws?token=query-token", nil)
	assert.Equal(t, "query-token", TokenFromRequest(r))

	r.Header.Set("Authorization", "Bearer header-token")
	assert.Equal(t, "header-token", TokenFromRequest(r))
}

func TestMiddleware(t *testing.T) {
	gin.SetMode(gin.TestMode)
	svc := newService(t, nil)

	router := gin.New()
	router.GET("/me", Middleware(svc), func(c *gin.Context) {
		c.String(http.StatusOK, UserID(c))
	})

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/me", nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	token, err := svc.Issue("user-9")
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodGet, "/me", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "user-9", rec.Body.String())
}
