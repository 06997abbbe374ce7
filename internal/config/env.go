package config

import "os"

// Environment variable names for overrides.
const (
	EnvConfig   = "SELSTORAGE_CONFIG"
	EnvUser     = "SELSTORAGE_USER"
	EnvPassword = "SELSTORAGE_PASSWORD"
)

// EnvOverrides holds values derived from environment variables.
type EnvOverrides struct {
	ConfigPath string // SELSTORAGE_CONFIG: override config file path
	User       string // SELSTORAGE_USER
	Password   string // SELSTORAGE_PASSWORD
}

// ReadEnvOverrides reads environment variables and returns any overrides found.
func ReadEnvOverrides() EnvOverrides {
	return EnvOverrides{
		ConfigPath: os.Getenv(EnvConfig),
		User:       os.Getenv(EnvUser),
		Password:   os.Getenv(EnvPassword),
	}
}
