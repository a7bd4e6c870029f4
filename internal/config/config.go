package config

import "time"

type Config interface {
	EnvConfig
	SessionConfig
	IdentityConfig
}

type EnvConfig interface {
	GetAppName() string
	GetAPIBaseURL() string
	GetDataFolder() string
	GetLogLevel() string
	GetEnv() string
}

type SessionConfig interface {
	GetRefreshInterval() time.Duration
	GetCredentialWaitTimeout() time.Duration
	GetRequestTimeout() time.Duration
	GetClientApp() string
}

type mainConfig struct {
	EnvVars
	Session
	Identity
}

func New() Config {
	return mainConfig{}
}
