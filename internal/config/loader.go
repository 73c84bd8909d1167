package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"

	"gopkg.in/yaml.v3"
)

// DefaultConfigFile is the config file name searched for.
const DefaultConfigFile = ".intermittents.yaml"

// EnvAPIKey is the environment variable holding the tracker API key.
const EnvAPIKey = "BUGZILLA_API_KEY"

// ErrConfigNotFound is returned when the config file does not exist.
var ErrConfigNotFound = errors.New("configuration file not found")

var envVarPattern = regexp.MustCompile(`\$\{([^}]+)\}`)

// LoadConfigFile reads a YAML config file. ${VAR} references in the
// tracker section are expanded from the environment.
func LoadConfigFile(path string) (*File, error) {
	data, err := os.ReadFile(path) //nolint:gosec // User-provided config path is intentional
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrConfigNotFound
		}
		return nil, err
	}

	var cf File
	if err := yaml.Unmarshal(data, &cf); err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", path, err)
	}

	if cf.Profiles == nil {
		cf.Profiles = make(map[string]Profile)
	}
	cf.Tracker.URL = expandEnvVars(cf.Tracker.URL)
	cf.Tracker.APIKey = expandEnvVars(cf.Tracker.APIKey)
	cf.Tracker.Proxy = expandEnvVars(cf.Tracker.Proxy)

	return &cf, nil
}

// FindConfigFile returns the config file to load, or "" when none exists.
// The search order is the explicit path, the current directory, the XDG
// config directory, and the home directory.
func FindConfigFile(configPath string) string {
	if configPath != "" {
		if _, err := os.Stat(configPath); err == nil {
			return configPath
		}
		return ""
	}

	var candidates []string
	if cwd, err := os.Getwd(); err == nil {
		candidates = append(candidates, filepath.Join(cwd, DefaultConfigFile))
	}
	candidates = append(candidates, filepath.Join(XDGConfigDir(), DefaultConfigFile))
	if home, err := os.UserHomeDir(); err == nil {
		candidates = append(candidates, filepath.Join(home, DefaultConfigFile))
	}

	for _, c := range candidates {
		if _, err := os.Stat(c); err == nil {
			return c
		}
	}
	return ""
}

// ApplyEnv applies environment overrides to c.
func (c *Config) ApplyEnv() {
	if key := os.Getenv(EnvAPIKey); key != "" {
		c.APIKey = key
	}
}

// expandEnvVars replaces ${VAR} with the value of VAR. Unset variables
// are left as written.
func expandEnvVars(s string) string {
	return envVarPattern.ReplaceAllStringFunc(s, func(match string) string {
		name := envVarPattern.FindStringSubmatch(match)[1]
		if v := os.Getenv(name); v != "" {
			return v
		}
		return match
	})
}
