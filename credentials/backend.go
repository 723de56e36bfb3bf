package credentials

import (
	"net/http"
	"time"
)

// Backend is the raw key-value persistence the Store writes through.
// Implementations report failures as errors; the Store is responsible for
// degrading them to "no session".
type Backend interface {
	// Get returns the value for key and whether it was present
	Get(key string) (string, bool, error)

	// Set creates or replaces the value for key
	Set(key, value string) error

	// Remove deletes key. Removing an absent key is not an error.
	Remove(key string) error
}

// CookieOptions describes how credential entries are scoped and expired.
type CookieOptions struct {
	Path     string
	Secure   bool
	SameSite http.SameSite
	MaxAge   time.Duration
}

// normalize applies safe defaults without breaking callers
func (o CookieOptions) normalize() CookieOptions {
	if o.Path == "" {
		o.Path = "/"
	}
	if o.SameSite == 0 || o.SameSite == http.SameSiteDefaultMode {
		o.SameSite = http.SameSiteStrictMode
	}
	if o.MaxAge <= 0 {
		o.MaxAge = 7 * 24 * time.Hour
	}
	return o
}
