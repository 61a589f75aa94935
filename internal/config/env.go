package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// EnvLoader provides type-safe environment variable loading scoped to a
// prefix.
type EnvLoader struct {
	prefix string
	vars   map[string]string
}

// NewEnvLoader creates a loader for variables carrying the given prefix.
func NewEnvLoader(prefix string) *EnvLoader {
	return &EnvLoader{
		prefix: prefix,
		vars:   make(map[string]string),
	}
}

// LoadAll snapshots all environment variables with the configured prefix.
func (e *EnvLoader) LoadAll() {
	for _, env := range os.Environ() {
		if parts := strings.SplitN(env, "=", 2); len(parts) == 2 {
			if strings.HasPrefix(parts[0], e.prefix) {
				e.vars[parts[0]] = parts[1]
			}
		}
	}
}

// GetString returns a string value, falling back to defaultValue.
func (e *EnvLoader) GetString(key, defaultValue string) string {
	if val, ok := e.vars[e.prefix+key]; ok {
		return val
	}
	return defaultValue
}

// GetStringSlice returns a comma-separated list value.
func (e *EnvLoader) GetStringSlice(key string, defaultValue []string) []string {
	val := e.GetString(key, "")
	if val == "" {
		return defaultValue
	}
	parts := strings.Split(val, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// GetInt returns an integer value.
func (e *EnvLoader) GetInt(key string, defaultValue int) (int, error) {
	if val := e.GetString(key, ""); val != "" {
		n, err := strconv.Atoi(val)
		if err != nil {
			return 0, fmt.Errorf("invalid integer value for %s: %w", key, err)
		}
		return n, nil
	}
	return defaultValue, nil
}

// GetBool returns a boolean value; "true" and "1" are truthy.
func (e *EnvLoader) GetBool(key string, defaultValue bool) bool {
	if val := e.GetString(key, ""); val != "" {
		return strings.EqualFold(val, "true") || val == "1"
	}
	return defaultValue
}

// GetDuration returns a duration value in Go duration syntax.
func (e *EnvLoader) GetDuration(key string, defaultValue time.Duration) (time.Duration, error) {
	if val := e.GetString(key, ""); val != "" {
		d, err := time.ParseDuration(val)
		if err != nil {
			return 0, fmt.Errorf("invalid duration value for %s: %w", key, err)
		}
		return d, nil
	}
	return defaultValue, nil
}
