// internal/auth/session.go
package auth

import (
	"crypto/ed25519"
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/jason-s-yu/typerace/internal/models"
)

// CookieName carries the token for browser clients.
const CookieName = "auth_token"

// Issuer signs and verifies ed25519 JWTs whose subject is a user id.
type Issuer struct {
	privateKey ed25519.PrivateKey
	publicKey  ed25519.PublicKey
	expiry     time.Duration // 0 => tokens never expire
}

// ParseExpiry reads a TOKEN_EXPIRE_TIME value. "never", "0" and "" disable expiry.
func ParseExpiry(s string) (time.Duration, error) {
	if s == "never" || s == "0" || s == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, fmt.Errorf("failed to parse token expire time: %w", err)
	}
	return d, nil
}

// NewIssuer generates a fresh key pair. Tokens do not survive a restart.
func NewIssuer(expiry time.Duration) (*Issuer, error) {
	pub, priv, err := ed25519.GenerateKey(nil)
	if err != nil {
		return nil, fmt.Errorf("failed to generate ed25519 key pair: %w", err)
	}
	return &Issuer{privateKey: priv, publicKey: pub, expiry: expiry}, nil
}

// NewIssuerFromFiles reads raw ed25519 keys from disk.
func NewIssuerFromFiles(privatePath, publicPath string, expiry time.Duration) (*Issuer, error) {
	priv, err := os.ReadFile(privatePath)
	if err != nil {
		return nil, fmt.Errorf("failed to read private key file: %w", err)
	}
	pub, err := os.ReadFile(publicPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read public key file: %w", err)
	}
	if len(priv) != ed25519.PrivateKeySize || len(pub) != ed25519.PublicKeySize {
		return nil, fmt.Errorf("key files are not raw ed25519 keys")
	}
	return &Issuer{privateKey: priv, publicKey: pub, expiry: expiry}, nil
}

// Expiry is the token lifetime; 0 means tokens never expire.
func (i *Issuer) Expiry() time.Duration {
	return i.expiry
}

// CreateJWT signs a token with sub = userID.
func (i *Issuer) CreateJWT(userID uuid.UUID) (string, error) {
	claims := jwt.MapClaims{
		"sub": userID.String(),
		"iat": time.Now().Unix(),
	}
	if i.expiry > 0 {
		claims["exp"] = time.Now().Add(i.expiry).Unix()
	}
	return jwt.NewWithClaims(jwt.SigningMethodEdDSA, claims).SignedString(i.privateKey)
}

// AuthenticateJWT verifies tokenString and returns its subject. Every failure
// wraps models.ErrAuthenticationFailed.
func (i *Issuer) AuthenticateJWT(tokenString string) (uuid.UUID, error) {
	t, err := jwt.Parse(tokenString, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodEd25519); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return i.publicKey, nil
	})
	if err != nil {
		return uuid.Nil, fmt.Errorf("%w: %w", models.ErrAuthenticationFailed, err)
	}

	claims, ok := t.Claims.(jwt.MapClaims)
	if !ok || !t.Valid {
		return uuid.Nil, fmt.Errorf("%w: invalid jwt claims", models.ErrAuthenticationFailed)
	}
	sub, ok := claims["sub"].(string)
	if !ok {
		return uuid.Nil, fmt.Errorf("%w: missing sub in jwt", models.ErrAuthenticationFailed)
	}
	userID, err := uuid.Parse(sub)
	if err != nil {
		return uuid.Nil, fmt.Errorf("%w: sub is not a user id", models.ErrAuthenticationFailed)
	}
	return userID, nil
}

// TokenFromRequest finds a token in the Authorization header, the auth
// cookie or the token query parameter, in that order.
func TokenFromRequest(r *http.Request) string {
	if h := r.Header.Get("Authorization"); strings.HasPrefix(h, "Bearer ") {
		return strings.TrimSpace(strings.TrimPrefix(h, "Bearer "))
	}
	if c, err := r.Cookie(CookieName); err == nil && c.Value != "" {
		return c.Value
	}
	return r.URL.Query().Get("token")
}

// AuthenticateRequest verifies the token carried by r.
func (i *Issuer) AuthenticateRequest(r *http.Request) (uuid.UUID, error) {
	token := TokenFromRequest(r)
	if token == "" {
		return uuid.Nil, fmt.Errorf("%w: no token", models.ErrAuthenticationFailed)
	}
	return i.AuthenticateJWT(token)
}
