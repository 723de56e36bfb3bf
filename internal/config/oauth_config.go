package config

type OAuthConfig interface {
	GetTokenPath() string
	GetRegisterPath() string
}

type OAuth struct{}

var _ OAuthConfig = OAuth{}

// GetTokenPath is the form-encoded password grant endpoint.
func (OAuth) GetTokenPath() string {
	return GetEnv("AUTH_TOKEN_PATH", "/auth/token")
}

func (OAuth) GetRegisterPath() string {
	return GetEnv("AUTH_REGISTER_PATH", "/auth/register")
}
