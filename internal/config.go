package internal

import (
	"errors"
	"fmt"
	"os"

	"github.com/ilyakaznacheev/cleanenv"
	"github.com/reelgrab/reelgrab/internal/api"
	"github.com/reelgrab/reelgrab/internal/extractor"
)

// ReelGrabConfig is the user-supplied configuration, sourced from an
// optional TOML file with environment variable overrides.
type ReelGrabConfig struct {
	API       api.RestConfig   `toml:"api"`
	Extractor extractor.Config `toml:"extractor"`
	Session   SessionConfig    `toml:"session"`
	History   HistoryConfig    `toml:"history"`
}

// SessionConfig tunes the per-connection operation lifecycle.
type SessionConfig struct {
	// Mode selects what a session resolves a URL in to: 'metadata'
	// returns a direct remote link, 'download' fetches the bytes to
	// local storage. Mutually exclusive per deployment.
	Mode string `toml:"mode" env:"SESSION_MODE" env-default:"metadata"`

	// ResolveTimeoutSeconds bounds how long a single extraction may
	// run. Zero disables the bound.
	ResolveTimeoutSeconds int `toml:"resolve_timeout_seconds" env:"SESSION_RESOLVE_TIMEOUT" env-default:"600"`
}

// HistoryConfig locates the persisted history and sets its capacity.
type HistoryConfig struct {
	FilePath string `toml:"file_path" env:"HISTORY_FILE_PATH" env-default:"./videos_info.json"`
	Capacity int    `toml:"capacity" env:"HISTORY_CAPACITY" env-default:"3"`
}

// LoadFromFile populates the config from the TOML file at the provided
// path, falling back to environment variables alone when the path is
// empty or the file does not exist.
func (config *ReelGrabConfig) LoadFromFile(configPath string) error {
	if configPath != "" {
		if _, err := os.Stat(configPath); err == nil {
			if err := cleanenv.ReadConfig(configPath, config); err != nil {
				return fmt.Errorf("failed to load configuration from '%s': %w", configPath, err)
			}
			return nil
		} else if !errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("configuration file '%s' could not be accessed: %w", configPath, err)
		}
	}

	if err := cleanenv.ReadEnv(config); err != nil {
		return fmt.Errorf("failed to load configuration from environment: %w", err)
	}
	return nil
}
