package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// hostPathFields are expanded on the host. In-container paths such as the mounts and the
// discovery link are left as written.
func hostPathFields(cfg *Config) []*string {
	return []*string{
		&cfg.Sandbox.BaseDir,
		&cfg.Journal.Dir,
		&cfg.Lock.Dir,
		&cfg.Log.File,
	}
}

func normalizePathFields(cfg *Config) error {
	if cfg == nil {
		return nil
	}
	for _, field := range hostPathFields(cfg) {
		expanded, err := ExpandHostPath(*field)
		if err != nil {
			return err
		}
		*field = expanded
	}
	return nil
}

// ExpandHostPath resolves environment variables and a leading "~" against the invoking
// user's home directory. Blank input stays blank.
func ExpandHostPath(path string) (string, error) {
	trimmed := strings.TrimSpace(path)
	if trimmed == "" {
		return "", nil
	}

	expanded := os.ExpandEnv(trimmed)
	if expanded == "~" || strings.HasPrefix(expanded, "~/") {
		home, err := os.UserHomeDir()
		if err != nil || strings.HasPrefix(home, "~") {
			return "", fmt.Errorf("expand %q: home directory is not resolvable", path)
		}
		expanded = filepath.Join(home, strings.TrimPrefix(expanded, "~"))
	}
	return filepath.Clean(expanded), nil
}
