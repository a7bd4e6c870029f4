package apiclient

import (
	"net/http"
	"net/http/cookiejar"
	"time"

	"golang.org/x/net/publicsuffix"
)

// NewHTTPClient returns an HTTP client with a cookie jar, the Go version of
// fetch's `credentials: "include"`. Share it between the API client and the
// session bridge so the session cookie rides on every call.
func NewHTTPClient(timeout time.Duration) *http.Client {
	// cookiejar.New never returns an error
	jar, _ := cookiejar.New(&cookiejar.Options{PublicSuffixList: publicsuffix.List})
	return &http.Client{
		Jar:     jar,
		Timeout: timeout,
	}
}
