// Package config manages the application configuration singleton.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/uschtwill/hiersnap/internal/debug"
)

var v *viper.Viper

// Initialize sets up the viper configuration singleton.
// Should be called once at application startup.
func Initialize() error {
	v = viper.New()
	v.SetConfigType("yaml")

	// Precedence: project .hiersnap/config.yaml > ~/.config/hx/config.yaml
	// > ~/.hiersnap/config.yaml
	configFileSet := false

	// Walk up from CWD so commands work from subdirectories.
	if cwd, err := os.Getwd(); err == nil {
		for dir := cwd; dir != filepath.Dir(dir); dir = filepath.Dir(dir) {
			configPath := filepath.Join(dir, ".hiersnap", "config.yaml")
			if _, err := os.Stat(configPath); err == nil {
				v.SetConfigFile(configPath)
				configFileSet = true
				break
			}
		}
	}

	if !configFileSet {
		if configDir, err := os.UserConfigDir(); err == nil {
			configPath := filepath.Join(configDir, "hx", "config.yaml")
			if _, err := os.Stat(configPath); err == nil {
				v.SetConfigFile(configPath)
				configFileSet = true
			}
		}
	}

	if !configFileSet {
		if homeDir, err := os.UserHomeDir(); err == nil {
			configPath := filepath.Join(homeDir, ".hiersnap", "config.yaml")
			if _, err := os.Stat(configPath); err == nil {
				v.SetConfigFile(configPath)
				configFileSet = true
			}
		}
	}

	// Environment variables take precedence over the config file.
	// E.g. HX_DB, HX_GITLAB_TOKEN, HX_GITLAB_URL.
	v.SetEnvPrefix("HX")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	v.SetDefault("db", "hierarchy.db")
	v.SetDefault("json", false)

	v.SetDefault("gitlab.url", "")
	v.SetDefault("gitlab.token", "")
	v.SetDefault("gitlab.per-page", 100)
	v.SetDefault("gitlab.timeout", "30s")
	v.SetDefault("gitlab.retries", 3)

	v.SetDefault("extract.strategy", "incremental")
	v.SetDefault("extract.max-depth", 0)
	v.SetDefault("extract.groups", []string{})

	v.SetDefault("labels.patterns-file", "")

	v.SetDefault("snapshots.keep-days", 90)

	if configFileSet {
		if err := v.ReadInConfig(); err != nil {
			return fmt.Errorf("error reading config file: %w", err)
		}
		debug.Logf("loaded config from %s", v.ConfigFileUsed())
	} else {
		debug.Logf("no config.yaml found; using defaults and environment variables")
	}

	return nil
}

// ResetForTesting clears the config state, allowing Initialize() to be
// called again. Not thread-safe; only call from single-threaded tests.
func ResetForTesting() {
	v = nil
}

// GetString returns a string configuration value.
func GetString(key string) string {
	if v == nil {
		return ""
	}
	return v.GetString(key)
}

// GetBool returns a boolean configuration value.
func GetBool(key string) bool {
	if v == nil {
		return false
	}
	return v.GetBool(key)
}

// GetInt returns an integer configuration value.
func GetInt(key string) int {
	if v == nil {
		return 0
	}
	return v.GetInt(key)
}

// GetDuration returns a duration configuration value.
func GetDuration(key string) time.Duration {
	if v == nil {
		return 0
	}
	return v.GetDuration(key)
}

// GetIntSlice returns an integer slice configuration value.
func GetIntSlice(key string) []int {
	if v == nil {
		return nil
	}
	return v.GetIntSlice(key)
}

// Set overrides a configuration value at runtime. Used to apply flag
// values, which take precedence over everything else.
func Set(key string, value any) {
	if v == nil {
		v = viper.New()
	}
	v.Set(key, value)
}

// AllSettings returns all configuration values as a map.
func AllSettings() map[string]any {
	if v == nil {
		return map[string]any{}
	}
	return v.AllSettings()
}
