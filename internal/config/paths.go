package config

import (
	"os"
	"path/filepath"
	"runtime"
)

const (
	platformLinux  = "linux"
	platformDarwin = "darwin"
)

const appName = "selstorage"

const (
	configFileName = "config.toml"
	tokenFileName  = "session.json"
)

// userDir names a per-user base directory: the XDG variable that overrides
// it on Linux and its location under $HOME otherwise.
type userDir struct {
	xdgVar  string
	homeRel []string
}

var (
	configHome = userDir{xdgVar: "XDG_CONFIG_HOME", homeRel: []string{".config"}}
	dataHome   = userDir{xdgVar: "XDG_DATA_HOME", homeRel: []string{".local", "share"}}
)

// appDir returns the selstorage subdirectory of d, or "" when the home
// directory is unknown. On macOS config and session share Application Support.
func (d userDir) appDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}

	if runtime.GOOS == platformDarwin {
		return filepath.Join(home, "Library", "Application Support", appName)
	}

	if runtime.GOOS == platformLinux {
		if base := os.Getenv(d.xdgVar); base != "" {
			return filepath.Join(base, appName)
		}
	}

	return filepath.Join(append(append([]string{home}, d.homeRel...), appName)...)
}

// DefaultConfigDir holds config.toml.
func DefaultConfigDir() string {
	return configHome.appDir()
}

// DefaultDataDir holds the saved login session.
func DefaultDataDir() string {
	return dataHome.appDir()
}

// DefaultConfigPath is where the CLI looks for its config when neither
// --config nor SELSTORAGE_CONFIG is set.
func DefaultConfigPath() string {
	return joinIfSet(DefaultConfigDir(), configFileName)
}

// DefaultTokenPath is the session file written by login and by any command
// that had to authenticate.
func DefaultTokenPath() string {
	return joinIfSet(DefaultDataDir(), tokenFileName)
}

func joinIfSet(dir, name string) string {
	if dir == "" {
		return ""
	}

	return filepath.Join(dir, name)
}
