package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

const (
	appNameVar     = "APP_NAME"
	envVar         = "ENV"
	apiBaseURLVar  = "API_BASE_URL"
	appURLVar      = "APP_URL"
	redisAddrVar   = "REDIS_ADDR"
	redisPassVar   = "REDIS_PASSWORD"
	portEnvVar     = "PORT"
	logLevelEnvVar = "LOG_LEVEL"

	EnvProduction  = "PROD"
	EnvDevelopment = "DEV"
)

type EnvVars struct{}

var _ EnvConfig = EnvVars{}

func (EnvVars) GetAppName() string {
	return GetEnv(appNameVar, "PC Express")
}

func (EnvVars) GetEnv() string {
	env := strings.ToUpper(os.Getenv(envVar))
	if env == "" {
		return EnvDevelopment
	}
	return env
}

// GetAPIBaseURL returns the root of the remote inventory API (e.g. "https://api.pc-express.com")
func (EnvVars) GetAPIBaseURL() string {
	return strings.TrimSuffix(GetEnv(apiBaseURLVar, "http://localhost:8000"), "/")
}

// GetAppURL is the origin the credential cookies are scoped to.
func (e EnvVars) GetAppURL() string {
	if e.GetEnv() == EnvProduction {
		return GetEnv(appURLVar, "https://app.pc-express.com/")
	}
	return GetEnv(appURLVar, "http://localhost/")
}

func (EnvVars) GetRedisAddr() string {
	return GetEnv(redisAddrVar, "")
}

func (EnvVars) GetRedisPassword() string {
	return GetEnv(redisPassVar, "")
}

func (EnvVars) GetPort() string {
	port := GetEnv(portEnvVar, "8000")
	if !strings.HasPrefix(port, ":") {
		port = fmt.Sprintf(":%s", port)
	}
	return port
}

func (EnvVars) GetLogLevel() string {
	return GetEnv(logLevelEnvVar, "info")
}

func GetEnv(envVar, defaultValue string) string {
	value := os.Getenv(envVar)
	if value == "" {
		return defaultValue
	}
	return value
}

// GetDuration parses a Go duration string, falling back to defaultValue when
// the variable is unset or malformed.
func GetDuration(envVar string, defaultValue time.Duration) time.Duration {
	d, err := time.ParseDuration(os.Getenv(envVar))
	if err != nil || d <= 0 {
		return defaultValue
	}
	return d
}

func GetInt(envVar string, defaultValue int) int {
	n, err := strconv.Atoi(os.Getenv(envVar))
	if err != nil || n < 0 {
		return defaultValue
	}
	return n
}
