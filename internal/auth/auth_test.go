// internal/auth/auth_test.go
package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/jason-s-yu/typerace/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var fastParams = HashParams{Memory: 1024, Iterations: 1, Parallelism: 1, SaltLength: 16, KeyLength: 32}

func TestPasswordHashRoundTrip(t *testing.T) {
	hash, err := CreateHash("correct horse", fastParams)
	require.NoError(t, err)
	assert.Contains(t, hash, "$argon2id$")

	ok, err := ComparePasswordAndHash("correct horse", hash)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = ComparePasswordAndHash("battery staple", hash)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestCompareRejectsMalformedHash(t *testing.T) {
	_, err := ComparePasswordAndHash("x", "plaintext")
	assert.ErrorIs(t, err, ErrInvalidHash)

	_, err = ComparePasswordAndHash("x", "$argon2id$v=1$m=1,t=1,p=1$AAAA$AAAA")
	assert.ErrorIs(t, err, ErrIncompatibleVersion)
}

func TestJWTRoundTrip(t *testing.T) {
	iss, err := NewIssuer(time.Hour)
	require.NoError(t, err)
	userID := uuid.New()

	token, err := iss.CreateJWT(userID)
	require.NoError(t, err)
	got, err := iss.AuthenticateJWT(token)
	require.NoError(t, err)
	assert.Equal(t, userID, got)
}

func TestJWTFromOtherIssuerFails(t *testing.T) {
	a, err := NewIssuer(0)
	require.NoError(t, err)
	b, err := NewIssuer(0)
	require.NoError(t, err)

	token, err := a.CreateJWT(uuid.New())
	require.NoError(t, err)
	_, err = b.AuthenticateJWT(token)
	assert.ErrorIs(t, err, models.ErrAuthenticationFailed)
}

func TestExpiredJWTFails(t *testing.T) {
	iss, err := NewIssuer(time.Hour)
	require.NoError(t, err)
	claims := jwt.MapClaims{
		"sub": uuid.NewString(),
		"iat": time.Now().Add(-2 * time.Hour).Unix(),
		"exp": time.Now().Add(-time.Hour).Unix(),
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodEdDSA, claims).SignedString(iss.privateKey)
	require.NoError(t, err)

	_, err = iss.AuthenticateJWT(token)
	assert.ErrorIs(t, err, models.ErrAuthenticationFailed)
	assert.ErrorIs(t, err, jwt.ErrTokenExpired)
}

func TestNonPositiveExpiryOmitsExp(t *testing.T) {
	iss, err := NewIssuer(-time.Minute)
	require.NoError(t, err)
	token, err := iss.CreateJWT(uuid.New())
	require.NoError(t, err)

	_, err = iss.AuthenticateJWT(token)
	assert.NoError(t, err)
}

func TestParseExpiry(t *testing.T) {
	for _, never := range []string{"", "0", "never"} {
		d, err := ParseExpiry(never)
		require.NoError(t, err)
		assert.Zero(t, d)
	}
	d, err := ParseExpiry("72h")
	require.NoError(t, err)
	assert.Equal(t, 72*time.Hour, d)

	_, err = ParseExpiry("soon")
	assert.Error(t, err)
}

func TestTokenFromRequest(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/ws?token=query", nil)
	assert.Equal(t, "query", TokenFromRequest(r))

	r.AddCookie(&http.Cookie{Name: CookieName, Value: "cookie"})
	assert.Equal(t, "cookie", TokenFromRequest(r))

	r.Header.Set("Authorization", "Bearer header")
	assert.Equal(t, "header", TokenFromRequest(r))
}
