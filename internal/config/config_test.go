package config_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/jrsteele09/gov-console/internal/config"
	"github.com/stretchr/testify/require"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range []string{
		"API_BASE_URL", "REFRESH_INTERVAL", "MIN_USER_ID_LENGTH", "MIN_PASSWORD_LENGTH",
		"STORE_BACKEND", "STORE_NAMESPACE", "SIGN_IN_PATH", "LANDING_PATH", "PORT",
	} {
		t.Setenv(k, "")
	}
}

func TestDefaults(t *testing.T) {
	clearEnv(t)
	c := config.New()

	require.Equal(t, "http://localhost:8080/api", c.GetAPIBaseURL())
	require.Equal(t, 30*time.Minute, c.GetRefreshInterval())
	require.Equal(t, 3, c.GetMinUserIDLength())
	require.Equal(t, 6, c.GetMinPasswordLength())
	require.Equal(t, config.StoreBackendFile, c.GetStoreBackend())
	require.Equal(t, "gov", c.GetStoreNamespace())
	require.Equal(t, "/login", c.GetSignInPath())
	require.Equal(t, "/dashboard", c.GetLandingPath())
	require.Equal(t, ":8080", c.GetPort())
}

func TestEnvironmentOverrides(t *testing.T) {
	clearEnv(t)
	t.Setenv("API_BASE_URL", "https://registry.example.com/api/")
	t.Setenv("REFRESH_INTERVAL", "90")
	t.Setenv("PORT", "9000")

	c := config.New()

	require.Equal(t, "https://registry.example.com/api", c.GetAPIBaseURL())
	require.Equal(t, 90*time.Second, c.GetRefreshInterval())
	require.Equal(t, ":9000", c.GetPort())
}

func TestInvalidValuesFallBackToDefaults(t *testing.T) {
	clearEnv(t)
	t.Setenv("REFRESH_INTERVAL", "soon")
	t.Setenv("MIN_PASSWORD_LENGTH", "six")

	c := config.New()

	require.Equal(t, 30*time.Minute, c.GetRefreshInterval())
	require.Equal(t, 6, c.GetMinPasswordLength())
}

func TestLoadFile(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), "console.toml")
	require.NoError(t, os.WriteFile(path, []byte(`
api_base_url = "https://file.example.com/api"
refresh_interval = "10m"
store_backend = "sqlite"
min_password_length = 8
`), 0o600))

	t.Setenv("STORE_BACKEND", "memory")

	c, err := config.LoadFile(path)
	require.NoError(t, err)

	require.Equal(t, "https://file.example.com/api", c.GetAPIBaseURL())
	require.Equal(t, 10*time.Minute, c.GetRefreshInterval())
	require.Equal(t, 8, c.GetMinPasswordLength())
	// environment wins over the file
	require.Equal(t, config.StoreBackendMemory, c.GetStoreBackend())
}

func TestLoadFileRejectsTables(t *testing.T) {
	path := filepath.Join(t.TempDir(), "console.toml")
	require.NoError(t, os.WriteFile(path, []byte("[api]\nbase_url = \"x\"\n"), 0o600))

	_, err := config.LoadFile(path)
	require.Error(t, err)
}

func TestLoadFileMissing(t *testing.T) {
	_, err := config.LoadFile(filepath.Join(t.TempDir(), "missing.toml"))
	require.Error(t, err)
}
