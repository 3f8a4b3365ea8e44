package middleware

import (
	"crypto/subtle"
	"net/http"
	"strings"
	"sync"
)

const realm = "rai"

// AuthConfig holds basic auth credentials. Safe for concurrent reads and
// updates so a config reload can swap credentials in place.
type AuthConfig struct {
	mu       sync.RWMutex
	Enabled  bool
	User     string
	Password string
}

// Update safely updates auth configuration.
func (c *AuthConfig) Update(enabled bool, user, password string) {
	c.mu.Lock()
	c.Enabled = enabled
	c.User = user
	c.Password = password
	c.mu.Unlock()
}

func (c *AuthConfig) get() (enabled bool, user, password string) {
	c.mu.RLock()
	enabled = c.Enabled
	user = c.User
	password = c.Password
	c.mu.RUnlock()
	return
}

// check reports whether r carries the configured credentials.
func (c *AuthConfig) check(r *http.Request) bool {
	_, configUser, configPass := c.get()

	user, pass, ok := r.BasicAuth()
	if !ok {
		return false
	}
	userMatch := subtle.ConstantTimeCompare([]byte(user), []byte(configUser)) == 1
	passMatch := subtle.ConstantTimeCompare([]byte(pass), []byte(configPass)) == 1
	return userMatch && passMatch
}

// Auth creates a Basic Auth middleware.
// Paths ending with "*" in excludePaths are prefixes ("/debug/*" matches "/debug/foo").
func Auth(config *AuthConfig, excludePaths ...string) Middleware {
	exactExcludes := make(map[string]bool)
	var prefixExcludes []string

	for _, path := range excludePaths {
		if strings.HasSuffix(path, "*") {
			prefixExcludes = append(prefixExcludes, strings.TrimSuffix(path, "*"))
		} else {
			exactExcludes[path] = true
		}
	}

	excluded := func(path string) bool {
		if exactExcludes[path] {
			return true
		}
		for _, prefix := range prefixExcludes {
			if strings.HasPrefix(path, prefix) {
				return true
			}
		}
		return false
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			enabled, _, _ := config.get()
			if !enabled || excluded(r.URL.Path) || config.check(r) {
				next.ServeHTTP(w, r)
				return
			}
			unauthorized(w, realm)
		})
	}
}

// TokenAuthConfig protects the profiling endpoints.
type TokenAuthConfig struct {
	// Token for Bearer authentication. Empty falls back to basic auth.
	Token    string
	Fallback *AuthConfig
}

// TokenAuth requires "Bearer <token>" when a token is set, otherwise the
// fallback basic auth credentials. With neither configured every request
// is forbidden.
func TokenAuth(config *TokenAuthConfig) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if config.Token != "" {
				if checkBearerToken(r, config.Token) {
					next.ServeHTTP(w, r)
					return
				}
				writeError(w, http.StatusForbidden, "profiling authentication required")
				return
			}

			if config.Fallback != nil {
				if enabled, _, _ := config.Fallback.get(); enabled {
					if !config.Fallback.check(r) {
						unauthorized(w, realm+"-profiling")
						return
					}
					next.ServeHTTP(w, r)
					return
				}
			}

			writeError(w, http.StatusForbidden, "profiling authentication required")
		})
	}
}

func checkBearerToken(r *http.Request, expectedToken string) bool {
	token, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
	if !ok {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(token), []byte(expectedToken)) == 1
}

func unauthorized(w http.ResponseWriter, realm string) {
	w.Header().Set("WWW-Authenticate", `Basic realm="`+realm+`"`)
	writeError(w, http.StatusUnauthorized, "unauthorized")
}
