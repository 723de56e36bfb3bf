package mockapi

import (
	"fmt"
	"time"

	jwtlib "github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// TokenResponse is the body returned by the token endpoint.
type TokenResponse struct {
	AccessToken  *string `json:"access_token,omitempty"`
	TokenType    string  `json:"token_type,omitempty"`
	ExpiresIn    int     `json:"expires_in,omitempty"`
	RefreshToken *string `json:"refresh_token,omitempty"`
}

// ErrorResponse mirrors the {"detail": "..."} error shape of the real API.
type ErrorResponse struct {
	Detail string `json:"detail"`
}

type tokenIssuer struct {
	secret []byte
	expiry time.Duration
	now    func() time.Time
}

// accessToken returns a signed token and its id.
func (ti *tokenIssuer) accessToken(user *User) (string, string, error) {
	now := ti.now()
	jti := uuid.New().String()
	claims := jwtlib.MapClaims{
		"sub":   user.ID,
		"email": user.Email,
		"roles": []string{"staff"},
		"iat":   now.Unix(),
		"exp":   now.Add(ti.expiry).Unix(),
		"jti":   jti,
	}
	signed, err := jwtlib.NewWithClaims(jwtlib.SigningMethodHS256, claims).SignedString(ti.secret)
	if err != nil {
		return "", "", fmt.Errorf("[accessToken] sign: %w", err)
	}
	return signed, jti, nil
}

// verify returns the token id and email of a valid token issued by ti.
func (ti *tokenIssuer) verify(raw string) (jti, email string, err error) {
	token, err := jwtlib.Parse(raw, func(t *jwtlib.Token) (any, error) {
		return ti.secret, nil
	},
		jwtlib.WithValidMethods([]string{jwtlib.SigningMethodHS256.Alg()}),
		jwtlib.WithTimeFunc(ti.now),
	)
	if err != nil {
		return "", "", err
	}
	mc, ok := token.Claims.(jwtlib.MapClaims)
	if !ok {
		return "", "", fmt.Errorf("[verify] unexpected claims type")
	}
	jti, _ = mc["jti"].(string)
	email, _ = mc["email"].(string)
	return jti, email, nil
}
