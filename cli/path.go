package cli

import (
	"os"
	"path/filepath"
	"sync"

	"github.com/ardnew/safeval/pkg"
)

// baseConfig is the base name of the configuration file.
const baseConfig = "config.yaml"

// defaultDirMode is the permission mode for created directories.
const defaultDirMode os.FileMode = 0o700

// configDir returns the configuration directory path. It is not created
// until a command writes to it.
var configDir = sync.OnceValue(func() string {
	return userDir(os.UserConfigDir, ".config")
})

// cacheDir returns the cache directory path used for transient files such as
// the REPL history.
var cacheDir = sync.OnceValue(func() string {
	return userDir(os.UserCacheDir, ".cache")
})

// userDir returns the per-user directory reported by base, falling back to
// fallback under the home directory and then the temporary directory.
func userDir(base func() (string, error), fallback string) string {
	dir, err := base()
	if err != nil {
		home, herr := os.UserHomeDir()
		if herr != nil {
			return filepath.Join(os.TempDir(), pkg.Name)
		}

		dir = filepath.Join(home, fallback)
	}

	return filepath.Join(dir, pkg.Name)
}

// configPath returns the path formed by joining the configuration directory
// with the given path elements.
//
// If no elements are given, it is equivalent to calling [configDir].
func configPath(elem ...string) string {
	return filepath.Join(append([]string{configDir()}, elem...)...)
}

// mkdirCache creates the cache directory.
func mkdirCache() error {
	return os.MkdirAll(cacheDir(), defaultDirMode)
}
