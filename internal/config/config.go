package config

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const configFileVar = "CONFIG_FILE"

type Config interface {
	EnvConfig
	OAuthConfig
	SecurityConfig
	RetryConfig
}

type EnvConfig interface {
	GetAppName() string
	GetEnv() string
	GetAPIBaseURL() string
	GetAppURL() string
	GetRedisAddr() string
	GetRedisPassword() string
	GetPort() string
	GetLogLevel() string
}

type mainConfig struct {
	EnvVars
	OAuth
	Security
	Retry
}

func New() Config {
	return mainConfig{}
}

// Load reads an optional .env file and an optional YAML file named by
// CONFIG_FILE into the process environment, then returns the env-backed
// config. Values already present in the environment always win.
func Load(envFiles ...string) (Config, error) {
	if len(envFiles) == 0 {
		envFiles = []string{".env"}
	}
	for _, f := range envFiles {
		if _, err := os.Stat(f); err != nil {
			continue
		}
		if err := godotenv.Load(f); err != nil {
			return nil, fmt.Errorf("config.Load %s: %w", f, err)
		}
	}

	if path := os.Getenv(configFileVar); path != "" {
		if err := applyYAML(path); err != nil {
			return nil, err
		}
	}
	return New(), nil
}

// applyYAML maps a flat YAML document of ENV_NAME: value pairs onto the
// environment.
func applyYAML(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("config.applyYAML read %s: %w", path, err)
	}
	values := map[string]string{}
	if err := yaml.Unmarshal(data, &values); err != nil {
		return fmt.Errorf("config.applyYAML parse %s: %w", path, err)
	}
	for k, v := range values {
		if _, set := os.LookupEnv(k); set {
			continue
		}
		if err := os.Setenv(k, v); err != nil {
			return fmt.Errorf("config.applyYAML set %s: %w", k, err)
		}
	}
	return nil
}
