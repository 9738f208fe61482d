package middleware

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/obsplane/observability/internal/apperr"
)

// CSRF token constants, per the double-submit cookie pattern.
const (
	csrfTokenLength = 32
	csrfTokenHeader = "X-CSRF-Token"
	csrfCookieName  = "csrf_token"
	csrfTokenExpiry = 24 * time.Hour
)

type csrfStore struct {
	mu     sync.RWMutex
	tokens map[string]time.Time
}

func (s *csrfStore) add(token string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tokens[token] = time.Now().Add(csrfTokenExpiry)
}

func (s *csrfStore) valid(token string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	expiry, ok := s.tokens[token]
	return ok && time.Now().Before(expiry)
}

func (s *csrfStore) sweep() {
	ticker := time.NewTicker(time.Hour)
	defer ticker.Stop()
	for range ticker.C {
		s.mu.Lock()
		now := time.Now()
		for token, expiry := range s.tokens {
			if now.After(expiry) {
				delete(s.tokens, token)
			}
		}
		s.mu.Unlock()
	}
}

var (
	globalCSRFStore = &csrfStore{tokens: make(map[string]time.Time)}
	csrfSweepOnce   sync.Once
	csrfIssueMu     sync.Mutex
)

func generateCSRFToken() (string, error) {
	b := make([]byte, csrfTokenLength)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base64.URLEncoding.EncodeToString(b), nil
}

// CSRFProtection enforces the double-submit cookie pattern, but only for
// cross-origin state-changing requests: same-host/localhost traffic and
// requests carrying the replay engine's x-internal-replay marker bypass it
// entirely, since those never rely on a victim's ambient browser cookie jar.
func CSRFProtection() gin.HandlerFunc {
	csrfSweepOnce.Do(func() { go globalCSRFStore.sweep() })

	return func(c *gin.Context) {
		if c.GetHeader("X-Internal-Replay") == "true" {
			c.Next()
			return
		}
		if isCrossOrigin(c) {
			enforceCSRF(c, globalCSRFStore)
			if c.IsAborted() {
				return
			}
		}
		c.Next()
	}
}

func isCrossOrigin(c *gin.Context) bool {
	origin := c.GetHeader("Origin")
	if origin == "" {
		return false
	}
	if isLocalOrigin(origin) || sameHost(origin, c.Request.Host) {
		return false
	}
	return true
}

func enforceCSRF(c *gin.Context, store *csrfStore) {
	method := c.Request.Method
	if method == http.MethodGet || method == http.MethodHead || method == http.MethodOptions {
		csrfIssueMu.Lock()
		defer csrfIssueMu.Unlock()

		if existing, err := c.Cookie(csrfCookieName); err == nil && existing != "" && store.valid(existing) {
			c.Header(csrfTokenHeader, existing)
			return
		}
		token, err := generateCSRFToken()
		if err != nil {
			apperr.Abort(c, apperr.Fatal(err))
			return
		}
		store.add(token)
		c.Header(csrfTokenHeader, token)
		c.SetCookie(csrfCookieName, token, int(csrfTokenExpiry.Seconds()), "/", "", gin.Mode() != gin.DebugMode, true)
		return
	}

	headerToken := c.GetHeader(csrfTokenHeader)
	cookieToken, err := c.Cookie(csrfCookieName)
	if err != nil || cookieToken == "" {
		apperr.Abort(c, apperr.Forbidden("csrf token missing"))
		return
	}
	if subtle.ConstantTimeCompare([]byte(headerToken), []byte(cookieToken)) != 1 || !store.valid(cookieToken) {
		apperr.Abort(c, apperr.Forbidden("csrf token invalid"))
		return
	}
}
