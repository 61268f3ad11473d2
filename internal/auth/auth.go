package auth

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"

	"gitlab.com/servio/api/station-feedback-service/internal/apperrors"
	"gitlab.com/servio/api/station-feedback-service/internal/config"
)

// Claims carries the authenticated administrator identity.
type Claims struct {
	jwt.RegisteredClaims
}

// Authenticator issues and validates administrator access tokens.
type Authenticator struct {
	cfg config.Config
}

// NewAuthenticator creates an authenticator from admin configuration.
func NewAuthenticator(cfg config.Config) *Authenticator {
	return &Authenticator{cfg: cfg}
}

// Login verifies the credentials and returns a signed access token. The
// stored password is a bcrypt hash; the configured username must match
// exactly.
func (a *Authenticator) Login(username, password string) (string, error) {
	if username != a.cfg.Admin.Username || !CheckPasswordHash(password, a.cfg.Admin.PasswordHash) {
		return "", fmt.Errorf("%w: incorrect username or password", apperrors.ErrUnauthorized)
	}

	now := time.Now()
	claims := &Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   username,
			ExpiresAt: jwt.NewNumericDate(now.Add(a.cfg.Admin.AccessTokenExpiry)),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(a.cfg.Admin.SecretKey))
	if err != nil {
		return "", fmt.Errorf("failed to sign access token: %w", err)
	}
	return signed, nil
}

// Verify parses and validates an access token, returning the admin
// username it was issued to.
func (a *Authenticator) Verify(tokenString string) (string, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return []byte(a.cfg.Admin.SecretKey), nil
	})
	if err != nil {
		return "", fmt.Errorf("%w: %w", apperrors.ErrUnauthorized, err)
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return "", fmt.Errorf("%w: invalid token claims", apperrors.ErrUnauthorized)
	}
	if claims.Subject != a.cfg.Admin.Username {
		return "", fmt.Errorf("%w: token subject mismatch", apperrors.ErrUnauthorized)
	}
	return claims.Subject, nil
}

// HashPassword hashes a password using bcrypt
func HashPassword(password string) (string, error) {
	bytes, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	return string(bytes), err
}

// CheckPasswordHash compares a password with its hash
func CheckPasswordHash(password, hash string) bool {
	err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password))
	return err == nil
}
