package config

import (
	"errors"
	"io/fs"
	"os"

	"github.com/joho/godotenv"
)

// Environment variables read by ApplyEnv.
const (
	EnvChromePath  = "ROOMSCOUT_CHROME"
	EnvProxy       = "ROOMSCOUT_PROXY"
	EnvPostgresDSN = "ROOMSCOUT_POSTGRES_DSN"
	EnvDBDir       = "ROOMSCOUT_DB_DIR"
)

// LoadDotEnv loads variables from the given .env files into the process
// environment without overriding variables that are already set.
// Missing files are ignored.
func LoadDotEnv(paths ...string) error {
	for _, p := range paths {
		if err := godotenv.Load(p); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return err
		}
	}
	return nil
}

// ApplyEnv copies ROOMSCOUT_* variables into c. CLI flags are applied
// afterwards and win.
func (c *Config) ApplyEnv() {
	if v := os.Getenv(EnvChromePath); v != "" {
		c.ChromePath = v
	}
	if v := os.Getenv(EnvProxy); v != "" {
		c.ProxyAddress = v
	}
	if v := os.Getenv(EnvPostgresDSN); v != "" {
		c.PostgresDSN = v
	}
	if v := os.Getenv(EnvDBDir); v != "" {
		c.DBDir = v
	}
}
