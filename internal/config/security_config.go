package config

import "time"

type SecurityConfig interface {
	GetSessionTimeout() time.Duration
	GetCookieMaxAge() time.Duration
	GetKeyPrefix() string
	IsSecureCookie() bool
}

type Security struct{}

var _ SecurityConfig = Security{}

func (Security) GetSessionTimeout() time.Duration {
	return GetDuration("SESSION_TIMEOUT", 30*time.Minute) // Sessions expire after 30 minutes of inactivity
}

func (Security) GetCookieMaxAge() time.Duration {
	return GetDuration("COOKIE_MAX_AGE", 7*24*time.Hour) // 7 days
}

func (Security) GetKeyPrefix() string {
	return GetEnv("CREDENTIAL_KEY_PREFIX", "pcexpress_")
}

// IsSecureCookie ties the cookie Secure flag to production builds.
func (Security) IsSecureCookie() bool {
	return EnvVars{}.GetEnv() == EnvProduction
}
