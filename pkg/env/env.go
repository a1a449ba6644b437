// Package env reads environment variables with fallbacks, for the few
// values that live outside the envconfig-loaded configuration.
package env

import "os"

// Get returns the named environment variable, or fallback when unset or
// empty.
func Get(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
