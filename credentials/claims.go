package credentials

import (
	"errors"
	"time"

	jwtlib "github.com/golang-jwt/jwt/v5"
	"github.com/jrsteele09/pcexpress-session/internal/utils"
)

// TokenClaims is the decoded payload of a JWT access token.
type TokenClaims struct {
	Subject   string
	Email     string
	Roles     []string
	IssuedAt  time.Time
	ExpiresAt time.Time
}

// Claims decodes a JWT access token WITHOUT verifying its signature. It is
// for display only; session validity never depends on it.
func Claims(rawToken string) (*TokenClaims, error) {
	token, _, err := jwtlib.NewParser().ParseUnverified(rawToken, jwtlib.MapClaims{})
	if err != nil {
		return nil, err
	}
	mc, ok := token.Claims.(jwtlib.MapClaims)
	if !ok {
		return nil, errors.New("error extracting claims")
	}

	tc := &TokenClaims{}
	tc.Subject, _ = mc.GetSubject()
	if exp, _ := mc.GetExpirationTime(); exp != nil {
		tc.ExpiresAt = exp.Time
	}
	if iat, _ := mc.GetIssuedAt(); iat != nil {
		tc.IssuedAt = iat.Time
	}
	tc.Email, _ = mc["email"].(string)
	if roles, ok := mc["roles"].([]any); ok {
		tc.Roles = utils.ToStringSlice(roles)
	}
	return tc, nil
}
