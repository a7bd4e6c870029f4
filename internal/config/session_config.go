package config

import "time"

type Session struct{}

var _ SessionConfig = Session{}

// GetRefreshInterval sits safely inside the usual 60 minute ID token lifetime
func (Session) GetRefreshInterval() time.Duration {
	return GetDurationEnv("REFRESH_INTERVAL", 50*time.Minute)
}

func (Session) GetCredentialWaitTimeout() time.Duration {
	return GetDurationEnv("CREDENTIAL_WAIT_TIMEOUT", 5*time.Second)
}

func (Session) GetRequestTimeout() time.Duration {
	return GetDurationEnv("REQUEST_TIMEOUT", 30*time.Second)
}

func (Session) GetClientApp() string {
	return GetEnv("CLIENT_APP", "mobile")
}
