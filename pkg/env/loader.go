// Package env loads process settings from a .env file and the OS
// environment. Values set in the OS environment win over the file.
package env

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
)

// Loader resolves settings by key.
type Loader interface {
	// Load merges the KEY=VALUE pairs of a .env file.
	Load(path string) error
	// Get returns the value for key, or "" when it is unset.
	Get(key string) string
	// GetWithDefault returns fallback when key is unset or empty.
	GetWithDefault(key, fallback string) string
}

// DefaultLoader keeps the pairs read from .env files in memory. It
// never writes to the process environment.
type DefaultLoader struct {
	mu   sync.RWMutex
	file map[string]string
}

// NewLoader creates a loader backed by the OS environment only.
func NewLoader() *DefaultLoader {
	return &DefaultLoader{file: make(map[string]string)}
}

// Load reads path and merges its pairs. Later files override
// earlier ones. Lines without '=' are reported with their line
// number.
func (l *DefaultLoader) Load(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open env file %s: %w", path, err)
	}
	defer f.Close()

	pairs, err := parseDotEnv(f)
	if err != nil {
		return fmt.Errorf("parse env file %s: %w", path, err)
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	for k, v := range pairs {
		l.file[k] = v
	}
	return nil
}

// Lookup reports where a value is set. The OS environment is
// consulted first; an empty OS value falls through to the file.
func (l *DefaultLoader) Lookup(key string) (string, bool) {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v, true
	}
	l.mu.RLock()
	defer l.mu.RUnlock()
	v, ok := l.file[key]
	return v, ok
}

// Get returns the OS value, then the file value, then "".
func (l *DefaultLoader) Get(key string) string {
	v, _ := l.Lookup(key)
	return v
}

// GetWithDefault returns fallback when key is unset or empty.
func (l *DefaultLoader) GetWithDefault(key, fallback string) string {
	if v := l.Get(key); v != "" {
		return v
	}
	return fallback
}

// parseDotEnv understands comments, an optional "export " prefix,
// single or double quoted values and trailing " #" comments on
// unquoted values.
func parseDotEnv(r io.Reader) (map[string]string, error) {
	pairs := make(map[string]string)
	scanner := bufio.NewScanner(r)
	for n := 1; scanner.Scan(); n++ {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || line[0] == '#' {
			continue
		}
		line = strings.TrimPrefix(line, "export ")

		key, value, ok := strings.Cut(line, "=")
		key = strings.TrimSpace(key)
		if !ok || key == "" {
			return nil, fmt.Errorf("line %d: expected KEY=VALUE", n)
		}
		pairs[key] = unquote(strings.TrimSpace(value))
	}
	return pairs, scanner.Err()
}

func unquote(v string) string {
	if len(v) >= 2 {
		if q := v[0]; (q == '"' || q == '\'') && v[len(v)-1] == q {
			return v[1 : len(v)-1]
		}
	}
	if i := strings.Index(v, " #"); i >= 0 {
		v = strings.TrimSpace(v[:i])
	}
	return v
}
