package config

import (
	"os"
	"path/filepath"
	"strings"
)

const (
	StoreBackendFile   = "file"
	StoreBackendSQLite = "sqlite"
	StoreBackendMemory = "memory"
)

type Store struct {
	src *source
}

var _ StoreConfig = Store{}

func (s Store) GetStoreBackend() string {
	return strings.ToLower(s.src.get("STORE_BACKEND", StoreBackendFile))
}

// GetStorePath is the directory (file backend) or database file (sqlite backend).
func (s Store) GetStorePath() string {
	def := "./data"
	if dir, err := os.UserConfigDir(); err == nil {
		def = filepath.Join(dir, "gov-console")
	}
	return s.src.get("STORE_PATH", def)
}

func (s Store) GetStoreNamespace() string {
	return s.src.get("STORE_NAMESPACE", "gov")
}

// GetStoreKey returns the hex or base64 encoded 32 byte key used to seal the
// stored session. Empty means slots are stored in clear.
func (s Store) GetStoreKey() string {
	return s.src.get("STORE_KEY", "")
}
