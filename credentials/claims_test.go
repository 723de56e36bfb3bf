package credentials_test

import (
	"testing"
	"time"

	jwtlib "github.com/golang-jwt/jwt/v5"
	"github.com/jrsteele09/pcexpress-session/credentials"
	"github.com/stretchr/testify/require"
)

func TestClaims(t *testing.T) {
	exp := time.Now().Add(time.Hour).Truncate(time.Second)
	raw, err := jwtlib.NewWithClaims(jwtlib.SigningMethodHS256, jwtlib.MapClaims{
		"sub":   "user-1",
		"email": "admin@pc-express.com",
		"roles": []string{"admin", "buyer"},
		"exp":   exp.Unix(),
	}).SignedString([]byte("unknown-to-the-client"))
	require.NoError(t, err)

	claims, err := credentials.Claims(raw)
	require.NoError(t, err)
	require.Equal(t, "user-1", claims.Subject)
	require.Equal(t, "admin@pc-express.com", claims.Email)
	require.Equal(t, []string{"admin", "buyer"}, claims.Roles)
	require.True(t, exp.Equal(claims.ExpiresAt))
}

func TestClaims_OpaqueToken(t *testing.T) {
	_, err := credentials.Claims("abc123")
	require.Error(t, err)
}
