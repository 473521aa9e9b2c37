package auth

import (
	"errors"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIssueAndValidate(t *testing.T) {
	issuer, err := NewTokenIssuer("secret", time.Hour)
	require.NoError(t, err)

	token, err := issuer.Issue(7, "ann@example.com", "admin")
	require.NoError(t, err)

	claims, err := issuer.Validate(token)
	require.NoError(t, err)
	assert.Equal(t, int64(7), claims.UserID)
	assert.Equal(t, "ann@example.com", claims.Email)
	assert.Equal(t, "admin", claims.Role)
	assert.Equal(t, "7", claims.Subject)
}

func TestValidateRejectsExpired(t *testing.T) {
	issuer, err := NewTokenIssuer("secret", time.Minute)
	require.NoError(t, err)

	issued := time.Now().Add(-time.Hour)
	issuer.now = func() time.Time { return issued }
	token, err := issuer.Issue(1, "a@b.c", "user")
	require.NoError(t, err)

	issuer.now = time.Now
	_, err = issuer.Validate(token)
	assert.True(t, errors.Is(err, ErrInvalidToken))
}

func TestValidateRejectsWrongSecret(t *testing.T) {
	a, _ := NewTokenIssuer("one", time.Hour)
	b, _ := NewTokenIssuer("two", time.Hour)

	token, err := a.Issue(1, "a@b.c", "user")
	require.NoError(t, err)

	_, err = b.Validate(token)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestValidateRejectsNoneAlgorithm(t *testing.T) {
	issuer, _ := NewTokenIssuer("secret", time.Hour)

	token := jwt.NewWithClaims(jwt.SigningMethodNone, Claims{UserID: 1})
	signed, err := token.SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	_, err = issuer.Validate(signed)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestValidateRejectsGarbage(t *testing.T) {
	issuer, _ := NewTokenIssuer("secret", time.Hour)
	_, err := issuer.Validate("not.a.token")
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestNewTokenIssuerRequiresSecret(t *testing.T) {
	_, err := NewTokenIssuer("", time.Hour)
	assert.ErrorIs(t, err, ErrEmptySecret)
}

func TestPasswordHashing(t *testing.T) {
	hash, err := HashPassword("hunter2")
	require.NoError(t, err)

	assert.NotEqual(t, "hunter2", hash)
	assert.True(t, CheckPassword(hash, "hunter2"))
	assert.False(t, CheckPassword(hash, "hunter3"))
}
