package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

const (
	configFileEnvVar = "CONFIG_FILE"
	appNameVar       = "APP_NAME"
	envVar           = "ENV"
	logLevelVar      = "LOG_LEVEL"
)

// source resolves a key from the environment first, then the config file.
type source struct {
	file map[string]string
}

func (s *source) get(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	if s != nil {
		if value, ok := s.file[key]; ok && value != "" {
			return value
		}
	}
	return defaultValue
}

func (s *source) getInt(key string, defaultValue int) int {
	raw := strings.TrimSpace(s.get(key, ""))
	if raw == "" {
		return defaultValue
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return defaultValue
	}
	return v
}

// getDuration accepts Go duration strings ("30m") or whole seconds ("1800").
func (s *source) getDuration(key string, defaultValue time.Duration) time.Duration {
	raw := strings.TrimSpace(s.get(key, ""))
	if raw == "" {
		return defaultValue
	}
	if d, err := time.ParseDuration(raw); err == nil && d > 0 {
		return d
	}
	if secs, err := strconv.Atoi(raw); err == nil && secs > 0 {
		return time.Duration(secs) * time.Second
	}
	return defaultValue
}

type EnvVars struct {
	src *source
}

var _ EnvConfig = EnvVars{}

func (e EnvVars) GetAppName() string {
	return e.src.get(appNameVar, "Gov Console")
}

func (e EnvVars) GetEnv() string {
	return e.src.get(envVar, "DEV")
}

func (e EnvVars) GetLogLevel() string {
	return strings.ToLower(e.src.get(logLevelVar, "info"))
}

func GetEnv(envVar, defaultValue string) string {
	value := os.Getenv(envVar)
	if value == "" {
		return defaultValue
	}
	return value
}
