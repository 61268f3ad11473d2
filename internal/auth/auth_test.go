package auth

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "gitlab.com/servio/api/station-feedback-service/internal/apperrors"
	"gitlab.com/servio/api/station-feedback-service/internal/config"
)

func testAuthenticator(t *testing.T) *Authenticator {
	t.Helper()
	hash, err := HashPassword("s3cret")
	require.NoError(t, err)

	cfg := config.Config{}
	cfg.Admin.Username = "admin"
	cfg.Admin.PasswordHash = hash
	cfg.Admin.SecretKey = "test-signing-key"
	cfg.Admin.AccessTokenExpiry = 30 * time.Minute
	return NewAuthenticator(cfg)
}

func TestLoginAndVerify(t *testing.T) {
	a := testAuthenticator(t)

	token, err := a.Login("admin", "s3cret")
	require.NoError(t, err)
	require.NotEmpty(t, token)

	subject, err := a.Verify(token)
	require.NoError(t, err)
	assert.Equal(t, "admin", subject)
}

func TestLogin_WrongCredentials(t *testing.T) {
	a := testAuthenticator(t)

	_, err := a.Login("admin", "wrong")
	assert.ErrorIs(t, err, apperrors.ErrUnauthorized)

	_, err = a.Login("root", "s3cret")
	assert.ErrorIs(t, err, apperrors.ErrUnauthorized)
}

func TestVerify_Garbage(t *testing.T) {
	a := testAuthenticator(t)

	_, err := a.Verify("not.a.token")
	assert.ErrorIs(t, err, apperrors.ErrUnauthorized)
}

func TestVerify_WrongKey(t *testing.T) {
	a := testAuthenticator(t)
	token, err := a.Login("admin", "s3cret")
	require.NoError(t, err)

	other := testAuthenticator(t)
	other.cfg.Admin.SecretKey = "different-key"
	_, err = other.Verify(token)
	assert.ErrorIs(t, err, apperrors.ErrUnauthorized)
}

func TestVerify_Expired(t *testing.T) {
	a := testAuthenticator(t)
	a.cfg.Admin.AccessTokenExpiry = -time.Minute

	token, err := a.Login("admin", "s3cret")
	require.NoError(t, err)

	_, err = a.Verify(token)
	assert.ErrorIs(t, err, apperrors.ErrUnauthorized)
}

func TestCheckPasswordHash(t *testing.T) {
	hash, err := HashPassword("pa55word")
	require.NoError(t, err)

	assert.True(t, CheckPasswordHash("pa55word", hash))
	assert.False(t, CheckPasswordHash("other", hash))
	assert.False(t, CheckPasswordHash("pa55word", "not-a-hash"))
}
