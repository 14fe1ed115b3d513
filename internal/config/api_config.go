package config

import (
	"strings"
	"time"
)

type API struct {
	src *source
}

var _ APIConfig = API{}

// GetAPIBaseURL returns the registry API root, without a trailing slash
// (e.g. "https://registry.example.com/api").
func (a API) GetAPIBaseURL() string {
	return strings.TrimRight(a.src.get("API_BASE_URL", "http://localhost:8080/api"), "/")
}

func (a API) GetHTTPTimeout() time.Duration {
	return a.src.getDuration("HTTP_TIMEOUT", 30*time.Second)
}

// GetLoginRatePerMinute caps credential exchanges per minute. Zero disables the limit.
func (a API) GetLoginRatePerMinute() int {
	return a.src.getInt("LOGIN_RATE_PER_MINUTE", 10)
}
