package config

import (
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
)

const (
	appNameVar   = "APP_NAME"
	apiURLVar    = "API_URL"
	folderEnvVar = "FOLDER"
	logLevelVar  = "LOG_LEVEL"

	defaultAPIURL = "https://crm-system-gray.vercel.app/api"
)

type EnvVars struct{}

var _ EnvConfig = EnvVars{}

func (EnvVars) GetAppName() string {
	return GetEnv(appNameVar, "Contractor")
}

// GetAPIBaseURL returns the backend base URL without a trailing slash
func (EnvVars) GetAPIBaseURL() string {
	return strings.TrimRight(GetEnv(apiURLVar, defaultAPIURL), "/")
}

func (EnvVars) GetDataFolder() string {
	return GetEnv(folderEnvVar, "./data")
}

func (EnvVars) GetLogLevel() string {
	return GetEnv(logLevelVar, "info")
}

func (EnvVars) GetEnv() string {
	env := os.Getenv("ENV")
	if env == "" {
		return "DEV"
	}
	return env
}

func GetEnv(envVar, defaultValue string) string {
	value := os.Getenv(envVar)
	if value == "" {
		return defaultValue
	}
	return value
}

// GetDurationEnv parses a Go duration string, falling back to the default
// when the variable is unset or malformed.
func GetDurationEnv(envVar string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(envVar)
	if value == "" {
		return defaultValue
	}
	d, err := time.ParseDuration(value)
	if err != nil || d <= 0 {
		log.Warn().Str("var", envVar).Str("value", value).Msg("Invalid duration, using default")
		return defaultValue
	}
	return d
}
