package config

import "time"

type Config interface {
	EnvConfig
	APIConfig
	SessionConfig
	StoreConfig
	RouteConfig
	DevServerConfig
}

type EnvConfig interface {
	GetAppName() string
	GetEnv() string
	GetLogLevel() string
}

type APIConfig interface {
	GetAPIBaseURL() string
	GetHTTPTimeout() time.Duration
	GetLoginRatePerMinute() int
}

type SessionConfig interface {
	GetRefreshInterval() time.Duration
	GetMinUserIDLength() int
	GetMinPasswordLength() int
}

type StoreConfig interface {
	GetStoreBackend() string
	GetStorePath() string
	GetStoreNamespace() string
	GetStoreKey() string
}

type RouteConfig interface {
	GetSignInPath() string
	GetLandingPath() string
}

type DevServerConfig interface {
	GetPort() string
	GetTokenSecret() string
	GetAccessTokenExpiry() time.Duration
	GetRefreshTokenExpiry() time.Duration
}

type mainConfig struct {
	EnvVars
	API
	Session
	Store
	Routes
	DevServer
}

// New returns a configuration backed by environment variables only.
func New() Config {
	return newMainConfig(&source{})
}

// Load returns a configuration backed by environment variables overlaid on the
// TOML file named by CONFIG_FILE, if set.
func Load() (Config, error) {
	return LoadFile(GetEnv(configFileEnvVar, ""))
}

// LoadFile is Load with an explicit file path. An empty path skips the file.
func LoadFile(path string) (Config, error) {
	src := &source{}
	if path != "" {
		values, err := readFile(path)
		if err != nil {
			return nil, err
		}
		src.file = values
	}
	return newMainConfig(src), nil
}

func newMainConfig(src *source) Config {
	return mainConfig{
		EnvVars:   EnvVars{src: src},
		API:       API{src: src},
		Session:   Session{src: src},
		Store:     Store{src: src},
		Routes:    Routes{src: src},
		DevServer: DevServer{src: src},
	}
}
