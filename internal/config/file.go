package config

import (
	"fmt"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/pkg/errors"
)

// readFile decodes a flat TOML document. Keys are matched case-insensitively
// against the environment variable names, so api_base_url and API_BASE_URL
// configure the same value.
func readFile(path string) (map[string]string, error) {
	raw := map[string]any{}
	if _, err := toml.DecodeFile(path, &raw); err != nil {
		return nil, errors.Wrapf(err, "[config.LoadFile] decode %s", path)
	}

	values := make(map[string]string, len(raw))
	for k, v := range raw {
		switch v.(type) {
		case map[string]any, []map[string]any:
			return nil, errors.Errorf("[config.LoadFile] %s: tables are not supported (key %q)", path, k)
		}
		values[strings.ToUpper(k)] = fmt.Sprint(v)
	}
	return values, nil
}
