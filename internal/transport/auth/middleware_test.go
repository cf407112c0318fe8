package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const secret = "0123456789abcdef-test"

func router(t *testing.T, v *Verifier, got *string) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(Middleware(v, nil))
	r.GET("/me", func(c *gin.Context) {
		id, err := PartyID(c)
		require.NoError(t, err)
		ctxID, err := GetPartyID(c.Request.Context())
		require.NoError(t, err)
		assert.Equal(t, id, ctxID)
		*got = id
		c.Status(http.StatusOK)
	})
	return r
}

func TestMiddleware_SetsPartyID(t *testing.T) {
	v, err := NewVerifier(secret, "liaison")
	require.NoError(t, err)
	tok, err := v.Issue("firm-1", time.Minute)
	require.NoError(t, err)

	var got string
	r := router(t, v, &got)

	req := httptest.NewRequest(http.MethodGet, "/me", nil)
	req.Header.Set("Authorization", "Bearer "+tok)
	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, req)
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "firm-1", got)

	got = ""
	rr = httptest.NewRecorder()
	r.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/me?token="+tok, nil))
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "firm-1", got)
}

func TestMiddleware_BlocksMissingAndInvalid(t *testing.T) {
	v, err := NewVerifier(secret, "liaison")
	require.NoError(t, err)
	var got string
	r := router(t, v, &got)

	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/me", nil))
	assert.Equal(t, http.StatusUnauthorized, rr.Code)

	expired, err := v.Issue("firm-1", -time.Minute)
	require.NoError(t, err)
	other, _ := NewVerifier("another-secret-of-16", "liaison")
	forged, err := other.Issue("firm-1", time.Minute)
	require.NoError(t, err)
	noExp, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{Subject: "firm-1", Issuer: "liaison"}).SignedString([]byte(secret))
	require.NoError(t, err)

	for _, tok := range []string{expired, forged, noExp, "garbage"} {
		req := httptest.NewRequest(http.MethodGet, "/me", nil)
		req.Header.Set("Authorization", "Bearer "+tok)
		rr := httptest.NewRecorder()
		r.ServeHTTP(rr, req)
		assert.Equal(t, http.StatusUnauthorized, rr.Code)
	}
	assert.Empty(t, got)
}

func TestNewVerifier_ShortSecret(t *testing.T) {
	_, err := NewVerifier("short", "")
	assert.Error(t, err)
}

func TestMiddleware_RejectsSystemSubject(t *testing.T) {
	v, err := NewVerifier(secret, "liaison")
	require.NoError(t, err)

	_, err = v.Issue("system", time.Minute)
	assert.ErrorIs(t, err, ErrReservedParty)
	_, err = v.Issue(" System ", time.Minute)
	assert.ErrorIs(t, err, ErrReservedParty)

	var got string
	r := router(t, v, &got)
	for _, sub := range []string{"system", "SYSTEM"} {
		tok, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
			Subject:   sub,
			Issuer:    "liaison",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Minute)),
		}).SignedString([]byte(secret))
		require.NoError(t, err)

		_, err = v.Parse(tok)
		assert.ErrorIs(t, err, ErrReservedParty)

		req := httptest.NewRequest(http.MethodGet, "/me", nil)
		req.Header.Set("Authorization", "Bearer "+tok)
		rr := httptest.NewRecorder()
		r.ServeHTTP(rr, req)
		assert.Equal(t, http.StatusUnauthorized, rr.Code)
	}
	assert.Empty(t, got)
}
