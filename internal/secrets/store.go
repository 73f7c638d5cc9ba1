// Package secrets holds the passwords a batch needs, loaded once from a dotenv
// file. Values must never be logged.
package secrets

import (
	"errors"
	"fmt"
	"os"
	"sort"

	"github.com/joho/godotenv"

	"github.com/hamed0406/healthreport/internal/domain"
)

var (
	ErrNotFound = errors.New("secrets file not found")
	ErrEmpty    = errors.New("secrets file defines no keys")
)

// Store is a read-only key/value view over the loaded secrets.
type Store struct {
	values map[string]string
}

// Load reads a dotenv file. A missing or empty file is an error.
func Load(path string) (*Store, error) {
	values, err := godotenv.Read(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, path)
		}
		return nil, fmt.Errorf("read secrets %s: %w", path, err)
	}
	if len(values) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrEmpty, path)
	}
	return New(values), nil
}

func New(values map[string]string) *Store {
	cp := make(map[string]string, len(values))
	for k, v := range values {
		cp[k] = v
	}
	return &Store{values: cp}
}

// Lookup distinguishes an absent key from one set to the empty string.
func (s *Store) Lookup(key string) (string, bool) {
	if s == nil {
		return "", false
	}
	v, ok := s.values[key]
	return v, ok
}

// Keys returns the key names, sorted.
func (s *Store) Keys() []string {
	keys := make([]string, 0, len(s.values))
	for k := range s.values {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Overlay returns a copy where each of keys found by lookup (usually
// os.LookupEnv) replaces the file value.
func (s *Store) Overlay(keys []string, lookup func(string) (string, bool)) *Store {
	out := New(s.values)
	for _, k := range keys {
		if v, ok := lookup(k); ok {
			out.values[k] = v
		}
	}
	return out
}

// RequiredKeys lists the keys a batch over systems will look up.
func RequiredKeys(systems []domain.SystemSpec, smtp bool) []string {
	var keys []string
	for _, s := range systems {
		if !s.Enabled {
			continue
		}
		keys = append(keys, s.WebPasswordKey(), s.DBPasswordKey())
	}
	if smtp {
		keys = append(keys, domain.SMTPPasswordKey)
	}
	return keys
}

// Missing returns the keys absent from the store, in input order.
func (s *Store) Missing(keys []string) []string {
	var out []string
	for _, k := range keys {
		if _, ok := s.Lookup(k); !ok {
			out = append(out, k)
		}
	}
	return out
}
